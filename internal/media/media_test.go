package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Query
		wantErr bool
	}{
		{name: "empty", raw: "", want: Query{}},
		{name: "box", raw: "both=200x100", want: Query{Width: 200, Height: 100}},
		{name: "width only", raw: "both=300x0", want: Query{Width: 300}},
		{name: "alias", raw: "format=JPG&gaussblur=2.5", want: Query{Format: "jpeg", Blur: 2.5}},
		{name: "zero box", raw: "both=0x0", wantErr: true},
		{name: "too large", raw: "both=5000x10", wantErr: true},
		{name: "malformed box", raw: "both=abc", wantErr: true},
		{name: "webp output", raw: "format=webp", wantErr: true},
		{name: "blur out of range", raw: "gaussblur=101", wantErr: true},
		{name: "negative blur", raw: "gaussblur=-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.raw)
			require.NoError(t, err)

			got, err := ParseQuery(values)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuery)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyIsOrderIndependent(t *testing.T) {
	a, err := ParseQuery(url.Values{"both": {"10x20"}, "format": {"png"}, "gaussblur": {"3"}})
	require.NoError(t, err)
	b, err := ParseQuery(url.Values{"gaussblur": {"3"}, "format": {"png"}, "both": {"10x20"}})
	require.NoError(t, err)

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "both_10x20_format_png_gaussblur_3", a.Key())

	round, err := ParseQuery(a.Values())
	require.NoError(t, err)
	assert.Equal(t, a, round)
}

func TestVariantName(t *testing.T) {
	assert.Equal(t, "abc-both_400x0.jpg", VariantName("abc.jpg", DefaultThumbnail))
	assert.Equal(t, "abc-format_png.png", VariantName("abc.jpg", Query{Format: "png"}))
	assert.Equal(t, "abc-both_400x0.png", VariantName("abc.webp", DefaultThumbnail))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentType("a.jpg"))
	assert.Equal(t, "image/png", ContentType("a.PNG"))
	assert.Equal(t, "application/octet-stream", ContentType("a.txt"))
	assert.True(t, CanTransform("a.webp"))
	assert.False(t, CanTransform("a.pdf"))
}

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	require.NoError(t, imaging.Save(img, path))
}

func TestTransform(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	writeImage(t, src, 800, 600)

	p := NewProcessor(2)
	ctx := context.Background()

	t.Run("fill", func(t *testing.T) {
		q := Query{Width: 100, Height: 100, Format: "jpeg"}
		dst := filepath.Join(dir, "cache", VariantName("src.png", q))
		require.NoError(t, p.Transform(ctx, src, dst, q))

		img, err := imaging.Open(dst)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(100, 100), img.Bounds().Size())
	})

	t.Run("keeps aspect ratio", func(t *testing.T) {
		q := Query{Width: 400, Blur: 2}
		dst := filepath.Join(dir, "cache", VariantName("src.png", q))
		require.NoError(t, p.Transform(ctx, src, dst, q))

		img, err := imaging.Open(dst)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(400, 300), img.Bounds().Size())
	})

	t.Run("undecodable source", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.png")
		require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
		err := p.Transform(ctx, bad, filepath.Join(dir, "cache", "bad-x.png"), Query{Width: 10})
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		busy := NewProcessor(1)
		release, err := busy.acquire(ctx)
		require.NoError(t, err)
		defer release()

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err = busy.Transform(cctx, src, filepath.Join(dir, "cache", "never.png"), Query{Width: 10})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPlaceholder(t *testing.T) {
	p := NewProcessor(1)

	var buf bytes.Buffer
	require.NoError(t, p.Placeholder(context.Background(), &buf, Query{Width: 64, Format: "png"}))

	img, _, err := image.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(64, 64), img.Bounds().Size())
}

func TestSweepCache(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	fresh := filepath.Join(dir, "fresh.jpg")
	stale := filepath.Join(dir, "stale.jpg")
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	old := now.Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	removed, err := SweepCache(dir, 24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.FileExists(t, fresh)
	assert.NoFileExists(t, stale)

	removed, err = SweepCache(filepath.Join(dir, "missing"), time.Hour, now)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
