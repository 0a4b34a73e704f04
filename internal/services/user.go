package services

import (
	"context"
	"errors"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/models"
	"github.com/saxon-wu/living/internal/pagination"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db       *gorm.DB
	baseURL  string
	files    *FileService
	tagCache TagTreeCache
}

// NewUserService takes the tag tree cache because removing a user removes the
// tags they created.
func NewUserService(db *gorm.DB, baseURL string, files *FileService, tagCache TagTreeCache) *UserService {
	if tagCache == nil {
		tagCache = noTagTreeCache{}
	}
	return &UserService{db: db, baseURL: baseURL, files: files, tagCache: tagCache}
}

// UpdateProfileInput.Avatar is a file uuid; an empty string removes the avatar.
type UpdateProfileInput struct {
	Avatar *string `json:"avatar" validate:"omitempty,uuid"`
}

type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

// FindByUUID loads the full user, used to resolve token subjects.
func (s *UserService) FindByUUID(ctx context.Context, uuid string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "user.find_by_uuid")
	defer span.End()

	span.SetAttributes(attribute.String("user.uuid", uuid))

	var user models.User
	if err := s.db.WithContext(ctx).Preload("Avatar").Where("uuid = ?", uuid).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return &user, nil
}

func (s *UserService) FindOne(ctx context.Context, uuid string) (models.UserResponse, error) {
	user, err := s.FindByUUID(ctx, uuid)
	if err != nil {
		return models.UserResponse{}, err
	}
	return user.ToResponse(s.baseURL), nil
}

func (s *UserService) FindAll(ctx context.Context, params pagination.Params) (pagination.Page[models.UserResponse], error) {
	ctx, span := tracer.Start(ctx, "user.find_all")
	defer span.End()

	query := s.db.WithContext(ctx).Model(&models.User{}).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return pagination.Page[models.UserResponse]{}, apperr.Internal(err)
	}

	var users []models.User
	if err := query.
		Preload("Avatar").
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&users).Error; err != nil {
		return pagination.Page[models.UserResponse]{}, apperr.Internal(err)
	}

	views := make([]models.UserResponse, len(users))
	for i := range users {
		views[i] = users[i].ToResponse(s.baseURL)
	}
	return pagination.NewPage(views, total, params), nil
}

// UpdateProfile sets the avatar to one of the actor's own uploaded images.
func (s *UserService) UpdateProfile(ctx context.Context, actor *models.User, input UpdateProfileInput) (models.UserResponse, error) {
	ctx, span := tracer.Start(ctx, "user.update_profile")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", int64(actor.ID)))

	updates := make(map[string]interface{})
	if input.Avatar != nil {
		if *input.Avatar == "" {
			updates["avatar_id"] = nil
		} else {
			file, err := resolveImage(ctx, s.db, *input.Avatar)
			if err != nil {
				return models.UserResponse{}, err
			}
			if file.UploaderID != actor.ID {
				return models.UserResponse{}, apperr.Forbidden("avatar must be one of your own uploads")
			}
			updates["avatar_id"] = file.ID
		}
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", actor.ID).Updates(updates).Error; err != nil {
			return models.UserResponse{}, apperr.Internal(err)
		}
		logging.Info(ctx).Uint("user_id", actor.ID).Msg("user profile updated")
	}

	return s.FindOne(ctx, actor.UUID)
}

func (s *UserService) ChangePassword(ctx context.Context, actor *models.User, input ChangePasswordInput) error {
	ctx, span := tracer.Start(ctx, "user.change_password")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", int64(actor.ID)))

	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", actor.ID).First(&user).Error; err != nil {
		return notFoundOr(err, "user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.OldPassword)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return apperr.BadRequest("current password is incorrect")
		}
		return apperr.Internal(err)
	}
	if len(input.NewPassword) < 6 || len(input.NewPassword) > 72 {
		return apperr.BadRequest("invalid password", "password must be between 6 and 72 bytes")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Internal(err)
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", actor.ID).
		Update("password_hash", string(hashed)).Error; err != nil {
		return apperr.Internal(err)
	}

	logging.Info(ctx).Uint("user_id", actor.ID).Msg("user password changed")
	return nil
}

// Remove hard-deletes the actor together with everything they own, then removes
// their uploads from disk. Tags other users hung under the actor's tags move to
// the root.
func (s *UserService) Remove(ctx context.Context, actor *models.User) error {
	ctx, span := tracer.Start(ctx, "user.remove")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", int64(actor.ID)))

	var filenames []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.File{}).Where("uploader_id = ?", actor.ID).Pluck("filename", &filenames).Error; err != nil {
			return err
		}

		ownFiles := tx.Model(&models.File{}).Select("id").Where("uploader_id = ?", actor.ID)
		if err := tx.Model(&models.User{}).
			Where("avatar_id IN (?)", ownFiles).
			Update("avatar_id", nil).Error; err != nil {
			return err
		}

		ownTags := tx.Model(&models.Tag{}).Select("id").Where("creator_id = ?", actor.ID)
		res := tx.Model(&models.Tag{}).
			Where("parent_id IN (?) AND creator_id <> ?", ownTags, actor.ID).
			Update("parent_id", 0)
		if res.Error != nil {
			return res.Error
		}
		span.SetAttributes(attribute.Int64("tags.reparented", res.RowsAffected))

		if err := tx.Exec(
			"DELETE FROM article_tags WHERE article_id IN (SELECT id FROM articles WHERE publisher_id = ?) OR tag_id IN (SELECT id FROM tags WHERE creator_id = ?)",
			actor.ID, actor.ID,
		).Error; err != nil {
			return err
		}

		res = tx.Delete(&models.User{}, actor.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return notFoundOr(err, "user not found")
	}

	if err := s.tagCache.Invalidate(ctx); err != nil {
		logging.Warn(ctx).Err(err).Msg("failed to invalidate tag tree cache")
	}

	logging.Info(ctx).
		Uint("user_id", actor.ID).
		Int("files", len(filenames)).
		Msg("user removed")

	if s.files != nil {
		s.files.RemoveStored(ctx, filenames)
	}
	return nil
}
