package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/media"
	"github.com/saxon-wu/living/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const DefaultMaxUploadBytes = 10 << 20

// VariantQueue schedules background rendering of image variants.
type VariantQueue interface {
	EnqueueVariant(ctx context.Context, filename string, q media.Query) error
}

type FileOptions struct {
	BaseURL   string
	MaxBytes  int64
	Store     *media.Store
	Processor *media.Processor
	Queue     VariantQueue
}

type FileService struct {
	db        *gorm.DB
	baseURL   string
	maxBytes  int64
	store     *media.Store
	processor *media.Processor
	queue     VariantQueue
}

func NewFileService(db *gorm.DB, opts FileOptions) *FileService {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxUploadBytes
	}
	return &FileService{
		db:        db,
		baseURL:   opts.BaseURL,
		maxBytes:  opts.MaxBytes,
		store:     opts.Store,
		processor: opts.Processor,
		queue:     opts.Queue,
	}
}

// Upload stores the multipart file as <uuid><ext> and records it for actor.
func (s *FileService) Upload(ctx context.Context, actor *models.User, header *multipart.FileHeader) (models.FileView, error) {
	if header == nil {
		return models.FileView{}, apperr.BadRequest("file is required")
	}
	if header.Size > s.maxBytes {
		return models.FileView{}, apperr.BadRequest("file too large", fmt.Sprintf("files must be at most %d bytes", s.maxBytes))
	}

	src, err := header.Open()
	if err != nil {
		return models.FileView{}, apperr.Internal(err)
	}
	defer src.Close()

	return s.Store(ctx, actor, header.Filename, src)
}

// Store writes src to the upload directory. The MIME type is sniffed from the
// content, never taken from the client.
func (s *FileService) Store(ctx context.Context, actor *models.User, originalName string, src io.ReadSeeker) (models.FileView, error) {
	ctx, span := tracer.Start(ctx, "file.upload")
	defer span.End()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return models.FileView{}, apperr.Internal(err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return models.FileView{}, apperr.Internal(err)
	}

	ext := mtype.Extension()
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(originalName))
	}
	id := uuid.NewString()
	filename := id + ext

	span.SetAttributes(
		attribute.String("file.mime_type", mtype.String()),
		attribute.String("file.filename", filename),
	)

	size, err := s.write(filename, src)
	if err != nil {
		return models.FileView{}, err
	}

	file := models.File{
		UUID:         id,
		Filename:     filename,
		OriginalName: filepath.Base(originalName),
		MimeType:     strings.SplitN(mtype.String(), ";", 2)[0],
		Size:         size,
		UploaderID:   actor.ID,
	}
	if err := s.db.WithContext(ctx).Omit("Uploader").Create(&file).Error; err != nil {
		_ = s.store.Remove(filename)
		return models.FileView{}, apperr.Internal(err)
	}

	logging.Info(ctx).
		Uint("file_id", file.ID).
		Uint("uploader_id", actor.ID).
		Str("filename", filename).
		Str("mime_type", file.MimeType).
		Int64("size", size).
		Msg("file uploaded")

	if file.IsImage() && media.CanTransform(filename) && s.queue != nil {
		if err := s.queue.EnqueueVariant(ctx, filename, media.DefaultThumbnail); err != nil {
			logging.Warn(ctx).Err(err).Str("filename", filename).Msg("failed to enqueue variant warm-up")
		}
	}

	return file.ToView(s.baseURL), nil
}

// write copies src into the upload directory through a temp file, enforcing the size limit.
func (s *FileService) write(filename string, src io.Reader) (int64, error) {
	dir := s.store.UploadDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, apperr.Internal(err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, apperr.Internal(err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(src, s.maxBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, apperr.Internal(err)
	}
	if n > s.maxBytes {
		return 0, apperr.BadRequest("file too large", fmt.Sprintf("files must be at most %d bytes", s.maxBytes))
	}
	if n == 0 {
		return 0, apperr.BadRequest("file is empty")
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, filename)); err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

// Open resolves the on-disk path to serve for filename. A zero query serves the
// original; anything else serves a cached or freshly rendered variant.
func (s *FileService) Open(ctx context.Context, filename string, q media.Query) (string, error) {
	ctx, span := tracer.Start(ctx, "file.open")
	defer span.End()

	span.SetAttributes(
		attribute.String("file.filename", filename),
		attribute.String("file.variant", q.Key()),
	)

	if q.IsZero() {
		path, err := s.store.OriginalPath(filename)
		if err != nil {
			return "", apperr.NotFound("file not found")
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", apperr.NotFound("file not found")
			}
			return "", apperr.Internal(err)
		}
		return path, nil
	}

	path, err := s.store.Variant(ctx, filename, q)
	if err != nil {
		return "", mediaError(err)
	}
	return path, nil
}

// Placeholder renders a flat image of the requested box straight to w.
func (s *FileService) Placeholder(ctx context.Context, w io.Writer, q media.Query) error {
	if err := s.processor.Placeholder(ctx, w, q); err != nil {
		return mediaError(err)
	}
	return nil
}

// Remove deletes a file the actor uploaded, clearing any avatar pointing at it.
func (s *FileService) Remove(ctx context.Context, actor *models.User, filename string) error {
	ctx, span := tracer.Start(ctx, "file.remove")
	defer span.End()

	span.SetAttributes(attribute.String("file.filename", filename))

	var file models.File
	if err := s.db.WithContext(ctx).Where("filename = ?", filename).First(&file).Error; err != nil {
		return notFoundOr(err, "file not found")
	}
	if err := ensureOwnership(actor, file.UploaderID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("avatar_id = ?", file.ID).Update("avatar_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Article{}).Unscoped().Where("cover_id = ?", file.ID).Update("cover_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&file).Error
	})
	if err != nil {
		return apperr.Internal(err)
	}

	logging.Info(ctx).Uint("file_id", file.ID).Str("filename", filename).Msg("file removed")

	s.RemoveStored(ctx, []string{filename})
	return nil
}

// RemoveStored deletes originals and variants from disk. Failures are logged only.
func (s *FileService) RemoveStored(ctx context.Context, filenames []string) {
	for _, name := range filenames {
		if err := s.store.Remove(name); err != nil {
			logging.Warn(ctx).Err(err).Str("filename", name).Msg("failed to remove stored file")
		}
	}
}

func mediaError(err error) error {
	switch {
	case errors.Is(err, media.ErrInvalidQuery):
		return apperr.BadRequest("invalid image query", err.Error())
	case errors.Is(err, media.ErrNotFound):
		return apperr.NotFound("file not found")
	default:
		return apperr.Internal(err)
	}
}
