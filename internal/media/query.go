package media

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	MaxDimension = 4096
	MaxBlur      = 100
)

var ErrInvalidQuery = errors.New("invalid image query")

// Query describes an on-demand variant: target format, box and gaussian blur.
// A zero Width or Height keeps the aspect ratio.
type Query struct {
	Format string
	Width  int
	Height int
	Blur   float64
}

// DefaultThumbnail is pre-rendered for every uploaded image.
var DefaultThumbnail = Query{Width: 400}

var formatAliases = map[string]string{
	"jpeg": "jpeg",
	"jpg":  "jpeg",
	"png":  "png",
	"gif":  "gif",
	"bmp":  "bmp",
	"tif":  "tiff",
	"tiff": "tiff",
}

var formatExt = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"bmp":  ".bmp",
	"tiff": ".tiff",
}

// ParseQuery reads format, both=<w>x<h> and gaussblur=<radius>. Unknown keys are ignored.
func ParseQuery(values url.Values) (Query, error) {
	var q Query

	if raw := strings.ToLower(strings.TrimSpace(values.Get("format"))); raw != "" {
		f, ok := formatAliases[raw]
		if !ok {
			return Query{}, fmt.Errorf("%w: unsupported format %q", ErrInvalidQuery, raw)
		}
		q.Format = f
	}

	if raw := strings.TrimSpace(values.Get("both")); raw != "" {
		w, h, err := parseBox(raw)
		if err != nil {
			return Query{}, err
		}
		q.Width, q.Height = w, h
	}

	if raw := strings.TrimSpace(values.Get("gaussblur")); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r <= 0 || r > MaxBlur {
			return Query{}, fmt.Errorf("%w: gaussblur must be in (0, %d]", ErrInvalidQuery, MaxBlur)
		}
		q.Blur = r
	}

	return q, nil
}

func parseBox(raw string) (int, int, error) {
	parts := strings.Split(strings.ToLower(raw), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: both must look like <w>x<h>", ErrInvalidQuery)
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w < 0 || h < 0 || (w == 0 && h == 0) {
		return 0, 0, fmt.Errorf("%w: both must look like <w>x<h>", ErrInvalidQuery)
	}
	if w > MaxDimension || h > MaxDimension {
		return 0, 0, fmt.Errorf("%w: dimensions are limited to %d", ErrInvalidQuery, MaxDimension)
	}
	return w, h, nil
}

func (q Query) IsZero() bool {
	return q == Query{}
}

func (q Query) HasBox() bool {
	return q.Width > 0 || q.Height > 0
}

// Key serialises the query as sorted key_value pairs, so parameter order in the
// URL does not produce distinct cache entries.
func (q Query) Key() string {
	pairs := make([]string, 0, 3)
	if q.HasBox() {
		pairs = append(pairs, fmt.Sprintf("both_%dx%d", q.Width, q.Height))
	}
	if q.Format != "" {
		pairs = append(pairs, "format_"+q.Format)
	}
	if q.Blur > 0 {
		pairs = append(pairs, "gaussblur_"+strconv.FormatFloat(q.Blur, 'f', -1, 64))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "_")
}

// Values renders the query back to URL form.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.HasBox() {
		v.Set("both", fmt.Sprintf("%dx%d", q.Width, q.Height))
	}
	if q.Format != "" {
		v.Set("format", q.Format)
	}
	if q.Blur > 0 {
		v.Set("gaussblur", strconv.FormatFloat(q.Blur, 'f', -1, 64))
	}
	return v
}

// VariantName is the cache file name for filename rendered with q.
func VariantName(filename string, q Query) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)
	if q.Format != "" {
		ext = formatExt[q.Format]
	} else if _, err := imaging.FormatFromExtension(ext); err != nil {
		// webp and friends decode fine but cannot be encoded.
		ext = ".png"
	}
	return base + "-" + q.Key() + strings.ToLower(ext)
}

// ContentType is the MIME type of a rendered variant file.
func ContentType(name string) string {
	f, err := imaging.FormatFromFilename(name)
	if err != nil {
		return "application/octet-stream"
	}
	switch f {
	case imaging.JPEG:
		return "image/jpeg"
	case imaging.PNG:
		return "image/png"
	case imaging.GIF:
		return "image/gif"
	case imaging.BMP:
		return "image/bmp"
	case imaging.TIFF:
		return "image/tiff"
	}
	return "application/octet-stream"
}

// CanTransform reports whether imaging can decode files with this extension.
func CanTransform(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}
