package media

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(dir, filepath.Join(dir, "cache"), NewProcessor(2))
}

func TestStoreVariantIsRenderedOnce(t *testing.T) {
	s := newStore(t)
	writeImage(t, filepath.Join(s.UploadDir(), "photo.png"), 200, 100)

	q := Query{Width: 50}

	var wg sync.WaitGroup
	paths := make([]string, 8)
	errs := make([]error, 8)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = s.Variant(context.Background(), "photo.png", q)
		}(i)
	}
	wg.Wait()

	for i := range paths {
		require.NoError(t, errs[i])
		assert.Equal(t, paths[0], paths[i])
	}
	assert.FileExists(t, paths[0])

	entries, err := os.ReadDir(filepath.Join(s.UploadDir(), "cache"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestStoreVariantErrors(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.UploadDir(), "notes.txt"), []byte("hi"), 0o644))

	_, err := s.Variant(context.Background(), "missing.png", Query{Width: 10})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Variant(context.Background(), "notes.txt", Query{Width: 10})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = s.Variant(context.Background(), "../etc/passwd", Query{Width: 10})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreRemove(t *testing.T) {
	s := newStore(t)
	writeImage(t, filepath.Join(s.UploadDir(), "photo.png"), 40, 40)

	small, err := s.Variant(context.Background(), "photo.png", Query{Width: 10})
	require.NoError(t, err)
	require.NoError(t, s.RenderVariant(context.Background(), "photo.png", Query{Format: "jpeg"}))

	require.NoError(t, s.Remove("photo.png"))
	assert.NoFileExists(t, small)
	assert.NoFileExists(t, filepath.Join(s.UploadDir(), "photo.png"))

	entries, err := os.ReadDir(filepath.Join(s.UploadDir(), "cache"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.NoError(t, s.Remove("photo.png"), "removing twice is fine")
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("abc.jpg"))
	for _, name := range []string{"", ".", "..", "a/b.jpg", `a\b.jpg`, "../x"} {
		assert.False(t, ValidName(name), name)
	}
}
