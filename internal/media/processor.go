// Package media renders image variants (resize, blur, transcode) and placeholders.
package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/saxon-wu/living/internal/logging"

	"github.com/disintegration/imaging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"
)

var (
	tracer = otel.Tracer("living/media")
	meter  = otel.Meter("living/media")
)

var placeholderColor = color.NRGBA{R: 0xe8, G: 0xe8, B: 0xe8, A: 0xff}

// Processor runs CPU-bound image work on a bounded number of workers so that
// request goroutines queue instead of saturating every core.
type Processor struct {
	sem         *semaphore.Weighted
	transformed metric.Int64Counter
	duration    metric.Float64Histogram
}

func NewProcessor(workers int) *Processor {
	if workers < 1 {
		workers = 1
	}

	p := &Processor{sem: semaphore.NewWeighted(int64(workers))}

	var err error
	p.transformed, err = meter.Int64Counter(
		"images.transformed",
		metric.WithDescription("Total number of image variants rendered"),
	)
	if err != nil {
		logging.Logger().Error().Err(err).Msg("failed to create images transformed counter")
	}
	p.duration, err = meter.Float64Histogram(
		"images.transform.duration",
		metric.WithDescription("Image transform duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		logging.Logger().Error().Err(err).Msg("failed to create images duration histogram")
	}

	return p
}

func (p *Processor) acquire(ctx context.Context) (func(), error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for image worker: %w", err)
	}
	return func() { p.sem.Release(1) }, nil
}

// Transform renders src with q and writes the result to dst atomically.
func (p *Processor) Transform(ctx context.Context, src, dst string, q Query) error {
	ctx, span := tracer.Start(ctx, "media.transform")
	defer span.End()

	span.SetAttributes(
		attribute.String("media.src", filepath.Base(src)),
		attribute.String("media.query", q.Key()),
	)

	release, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(src), err)
	}

	img = apply(img, q)

	if err := saveAtomic(img, dst); err != nil {
		span.RecordError(err)
		return err
	}

	p.record(ctx, "transform", time.Since(start))
	return nil
}

// Placeholder writes a flat placeholder image of the requested box and format.
func (p *Processor) Placeholder(ctx context.Context, w io.Writer, q Query) error {
	_, span := tracer.Start(ctx, "media.placeholder")
	defer span.End()

	release, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()

	width, height := q.Width, q.Height
	switch {
	case width == 0 && height == 0:
		width, height = 100, 100
	case width == 0:
		width = height
	case height == 0:
		height = width
	}

	var img image.Image = imaging.New(width, height, placeholderColor)
	if q.Blur > 0 {
		img = imaging.Blur(img, q.Blur)
	}

	format := imaging.PNG
	if q.Format != "" {
		format, err = imaging.FormatFromExtension(q.Format)
		if err != nil {
			return err
		}
	}

	if err := imaging.Encode(w, img, format, imaging.JPEGQuality(85)); err != nil {
		return err
	}

	p.record(ctx, "placeholder", time.Since(start))
	return nil
}

func (p *Processor) record(ctx context.Context, kind string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("media.kind", kind))
	if p.transformed != nil {
		p.transformed.Add(ctx, 1, attrs)
	}
	if p.duration != nil {
		p.duration.Record(ctx, float64(d.Milliseconds()), attrs)
	}
}

func apply(img image.Image, q Query) image.Image {
	switch {
	case q.Width > 0 && q.Height > 0:
		img = imaging.Fill(img, q.Width, q.Height, imaging.Center, imaging.Lanczos)
	case q.HasBox():
		img = imaging.Resize(img, q.Width, q.Height, imaging.Lanczos)
	}
	if q.Blur > 0 {
		img = imaging.Blur(img, q.Blur)
	}
	return img
}

func saveAtomic(img image.Image, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	format, err := imaging.FormatFromFilename(dst)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".variant-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := imaging.Encode(tmp, img, format, imaging.JPEGQuality(85)); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(dst), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// SweepCache removes cached variants whose modification time is older than maxAge.
func SweepCache(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
