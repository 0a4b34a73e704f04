package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"
)

var ErrNotFound = errors.New("file not found")

// Store locates uploaded originals and their rendered variants on disk.
// Concurrent requests for the same missing variant share a single render.
type Store struct {
	uploadDir string
	cacheDir  string
	processor *Processor
	group     singleflight.Group
}

func NewStore(uploadDir, cacheDir string, processor *Processor) *Store {
	return &Store{uploadDir: uploadDir, cacheDir: cacheDir, processor: processor}
}

func (s *Store) UploadDir() string { return s.uploadDir }

// OriginalPath rejects names that could escape the upload directory.
func (s *Store) OriginalPath(filename string) (string, error) {
	if !ValidName(filename) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, filename)
	}
	return filepath.Join(s.uploadDir, filename), nil
}

func ValidName(filename string) bool {
	return filename != "" &&
		filename != "." &&
		filename != ".." &&
		filepath.Base(filename) == filename &&
		!strings.ContainsAny(filename, `/\`)
}

// Variant returns the path of filename rendered with q, rendering it on first use.
func (s *Store) Variant(ctx context.Context, filename string, q Query) (string, error) {
	src, err := s.OriginalPath(filename)
	if err != nil {
		return "", err
	}
	if !CanTransform(filename) {
		return "", fmt.Errorf("%w: %s cannot be transformed", ErrInvalidQuery, filename)
	}

	dst := filepath.Join(s.cacheDir, VariantName(filename, q))
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
	}

	_, err, _ = s.group.Do(dst, func() (interface{}, error) {
		if _, err := os.Stat(dst); err == nil {
			return nil, nil
		}
		return nil, s.processor.Transform(context.WithoutCancel(ctx), src, dst, q)
	})
	if err != nil {
		return "", err
	}
	return dst, nil
}

// Remove deletes the original and every cached variant of filename.
func (s *Store) Remove(filename string) error {
	src, err := s.OriginalPath(filename)
	if err != nil {
		return err
	}

	var errs []error
	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}

	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	variants, err := filepath.Glob(filepath.Join(s.cacheDir, base+"-*"))
	if err != nil {
		errs = append(errs, err)
	}
	for _, v := range variants {
		if err := os.Remove(v); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) RenderVariant(ctx context.Context, filename string, q Query) error {
	_, err := s.Variant(ctx, filename, q)
	return err
}
