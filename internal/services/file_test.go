package services

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/media"
	"github.com/saxon-wu/living/internal/models"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var zeroQuery media.Query

type recordingQueue struct {
	mu       sync.Mutex
	variants []string
}

func (q *recordingQueue) EnqueueVariant(_ context.Context, filename string, _ media.Query) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.variants = append(q.variants, filename)
	return nil
}

func newTestFileService(t *testing.T, db *gorm.DB, queue VariantQueue) *FileService {
	t.Helper()

	dir := t.TempDir()
	processor := media.NewProcessor(2)
	return NewFileService(db, FileOptions{
		BaseURL:   "http://localhost:8080",
		MaxBytes:  1 << 20,
		Store:     media.NewStore(filepath.Join(dir, "uploads"), filepath.Join(dir, "cache"), processor),
		Processor: processor,
		Queue:     queue,
	})
}

func pngReader(t *testing.T, w, h int) *bytes.Reader {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})))
	return bytes.NewReader(buf.Bytes())
}

func TestFileStoreSniffsContent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	queue := &recordingQueue{}
	files := newTestFileService(t, db, queue)
	alice := createUser(t, db, "alice")

	image, err := files.Store(ctx, alice, "holiday.jpeg", pngReader(t, 40, 30))
	require.NoError(t, err)
	assert.Equal(t, "image/png", image.MimeType)
	assert.Equal(t, image.UUID+".png", image.Filename)
	assert.Equal(t, "holiday.jpeg", image.OriginalName)
	assert.Equal(t, "http://localhost:8080/v1/files/"+image.Filename, image.URL)
	assert.Equal(t, []string{image.Filename}, queue.variants)

	text, err := files.Store(ctx, alice, "notes", strings.NewReader("just some notes"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", text.MimeType)
	assert.True(t, strings.HasSuffix(text.Filename, ".txt"))
	assert.Len(t, queue.variants, 1, "only images are warmed up")

	var stored models.File
	require.NoError(t, db.Where("uuid = ?", image.UUID).First(&stored).Error)
	assert.Equal(t, alice.ID, stored.UploaderID)
}

func TestFileStoreEnforcesLimits(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := createUser(t, db, "alice")

	dir := t.TempDir()
	processor := media.NewProcessor(1)
	files := NewFileService(db, FileOptions{
		MaxBytes:  8,
		Store:     media.NewStore(filepath.Join(dir, "uploads"), filepath.Join(dir, "cache"), processor),
		Processor: processor,
	})

	_, err := files.Store(ctx, alice, "big.txt", strings.NewReader("more than eight bytes"))
	assertKind(t, err, apperr.KindBadRequest)

	_, err = files.Store(ctx, alice, "empty.txt", strings.NewReader(""))
	assertKind(t, err, apperr.KindBadRequest)

	entries, err := os.ReadDir(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files are cleaned up")
}

func TestFileUploadFromMultipart(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	files := newTestFileService(t, db, nil)
	alice := createUser(t, db, "alice")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "avatar.png")
	require.NoError(t, err)
	_, err = pngReader(t, 8, 8).WriteTo(part)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	view, err := files.Upload(ctx, alice, form.File["file"][0])
	require.NoError(t, err)
	assert.Equal(t, "image/png", view.MimeType)
	assert.Equal(t, "avatar.png", view.OriginalName)

	_, err = files.Upload(ctx, alice, nil)
	assertKind(t, err, apperr.KindBadRequest)
}

func TestFileOpenVariants(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	files := newTestFileService(t, db, nil)
	alice := createUser(t, db, "alice")

	image, err := files.Store(ctx, alice, "photo.png", pngReader(t, 200, 100))
	require.NoError(t, err)
	text, err := files.Store(ctx, alice, "notes.txt", strings.NewReader("plain words"))
	require.NoError(t, err)

	original, err := files.Open(ctx, image.Filename, zeroQuery)
	require.NoError(t, err)
	assert.FileExists(t, original)

	q := media.Query{Format: "jpeg", Width: 50, Height: 50}
	variant, err := files.Open(ctx, image.Filename, q)
	require.NoError(t, err)
	assert.NotEqual(t, original, variant)

	img, err := imaging.Open(variant)
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	again, err := files.Open(ctx, image.Filename, q)
	require.NoError(t, err)
	assert.Equal(t, variant, again)

	_, err = files.Open(ctx, "missing.png", zeroQuery)
	assertKind(t, err, apperr.KindNotFound)
	_, err = files.Open(ctx, "missing.png", q)
	assertKind(t, err, apperr.KindNotFound)
	_, err = files.Open(ctx, "../"+image.Filename, zeroQuery)
	assertKind(t, err, apperr.KindNotFound)
	_, err = files.Open(ctx, text.Filename, q)
	assertKind(t, err, apperr.KindBadRequest)
}

func TestFilePlaceholder(t *testing.T) {
	files := newTestFileService(t, newTestDB(t), nil)

	var buf bytes.Buffer
	require.NoError(t, files.Placeholder(context.Background(), &buf, media.Query{Format: "png", Width: 20, Height: 10}))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())
}

func TestFileRemove(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	files := newTestFileService(t, db, nil)
	users := NewUserService(db, "", files, nil)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	image, err := files.Store(ctx, alice, "me.png", pngReader(t, 64, 64))
	require.NoError(t, err)
	_, err = users.UpdateProfile(ctx, alice, UpdateProfileInput{Avatar: &image.UUID})
	require.NoError(t, err)

	original, err := files.Open(ctx, image.Filename, zeroQuery)
	require.NoError(t, err)
	variant, err := files.Open(ctx, image.Filename, media.Query{Width: 10})
	require.NoError(t, err)

	assertKind(t, files.Remove(ctx, bob, image.Filename), apperr.KindForbidden)
	require.NoError(t, files.Remove(ctx, alice, image.Filename))

	assert.NoFileExists(t, original)
	assert.NoFileExists(t, variant)

	profile, err := users.FindOne(ctx, alice.UUID)
	require.NoError(t, err)
	assert.Nil(t, profile.Avatar)

	assertKind(t, files.Remove(ctx, alice, image.Filename), apperr.KindNotFound)
}
