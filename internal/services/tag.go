package services

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/models"
	"github.com/saxon-wu/living/internal/pagination"
	"github.com/saxon-wu/living/internal/tree"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagTreeCache stores the derived tag forest between mutations.
type TagTreeCache interface {
	Get(ctx context.Context) ([]*models.TagNode, bool, error)
	Set(ctx context.Context, nodes []*models.TagNode) error
	Invalidate(ctx context.Context) error
}

type noTagTreeCache struct{}

func (noTagTreeCache) Get(context.Context) ([]*models.TagNode, bool, error) { return nil, false, nil }
func (noTagTreeCache) Set(context.Context, []*models.TagNode) error         { return nil }
func (noTagTreeCache) Invalidate(context.Context) error                     { return nil }

type TagService struct {
	db    *gorm.DB
	cache TagTreeCache
}

func NewTagService(db *gorm.DB, cache TagTreeCache) *TagService {
	if cache == nil {
		cache = noTagTreeCache{}
	}
	return &TagService{db: db, cache: cache}
}

type CreateTagInput struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=255"`
	Parent      string `json:"parent" validate:"omitempty,uuid"`
}

// UpdateTagInput leaves nil fields untouched. An empty Parent moves the tag to the root.
type UpdateTagInput struct {
	Name        *string `json:"name" validate:"omitempty,max=64"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	Parent      *string `json:"parent" validate:"omitempty,uuid"`
}

func (s *TagService) Create(ctx context.Context, actor *models.User, input CreateTagInput) (models.TagView, error) {
	ctx, span := tracer.Start(ctx, "tag.create")
	defer span.End()

	name, err := tagName(input.Name)
	if err != nil {
		return models.TagView{}, err
	}
	span.SetAttributes(attribute.String("tag.name", name))

	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return models.TagView{}, err
	}

	tag := models.Tag{
		Name:        name,
		Description: sanitize(input.Description),
		CreatorID:   actor.ID,
	}

	// The parent is share-locked so a concurrent Remove cannot delete it in between.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.Parent != "" {
			parent, err := s.parent(ctx, tx, input.Parent)
			if err != nil {
				return err
			}
			tag.ParentID = parent.ID
		}
		return tx.Omit("Creator").Create(&tag).Error
	})
	if err != nil {
		if apperr.As(err) != nil {
			return models.TagView{}, err
		}
		return models.TagView{}, conflictOr(err, "tag name already exists")
	}

	s.invalidate(ctx)

	logging.Info(ctx).
		Uint("tag_id", tag.ID).
		Str("name", tag.Name).
		Uint("parent_id", tag.ParentID).
		Msg("tag created")

	return s.FindOne(ctx, tag.UUID)
}

// Update rejects parent changes that would make the tag its own ancestor.
func (s *TagService) Update(ctx context.Context, actor *models.User, uuid string, input UpdateTagInput) (models.TagView, error) {
	ctx, span := tracer.Start(ctx, "tag.update")
	defer span.End()

	span.SetAttributes(attribute.String("tag.uuid", uuid))

	tag, err := s.load(ctx, uuid)
	if err != nil {
		return models.TagView{}, err
	}
	if err := ensureOwnership(actor, tag.CreatorID); err != nil {
		return models.TagView{}, err
	}

	updates := make(map[string]interface{})
	if input.Name != nil {
		name, err := tagName(*input.Name)
		if err != nil {
			return models.TagView{}, err
		}
		if err := s.ensureNameFree(ctx, name, tag.ID); err != nil {
			return models.TagView{}, err
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = sanitize(*input.Description)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.Parent != nil {
			var parentID uint
			if *input.Parent != "" {
				parent, err := s.parent(ctx, tx, *input.Parent)
				if err != nil {
					return err
				}
				parentID = parent.ID
			}

			if parentID != 0 {
				parentOf, err := s.parentIndex(ctx, tx)
				if err != nil {
					return err
				}
				if tree.CreatesCycle(parentOf, tag.ID, parentID) {
					return apperr.BadRequest("invalid parent", "a tag cannot be moved under itself or one of its descendants")
				}
			}
			updates["parent_id"] = parentID
		}

		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.Tag{}).Where("id = ?", tag.ID).Updates(updates).Error
	})
	if err != nil {
		if apperr.As(err) != nil {
			return models.TagView{}, err
		}
		return models.TagView{}, conflictOr(err, "tag name already exists")
	}
	if len(updates) > 0 {
		s.invalidate(ctx)
	}

	logging.Info(ctx).
		Uint("tag_id", tag.ID).
		Int("fields", len(updates)).
		Msg("tag updated")

	return s.FindOne(ctx, uuid)
}

// Remove refuses to delete a tag that other tags still hang under.
func (s *TagService) Remove(ctx context.Context, actor *models.User, uuid string) error {
	ctx, span := tracer.Start(ctx, "tag.remove")
	defer span.End()

	span.SetAttributes(attribute.String("tag.uuid", uuid))

	tag, err := s.load(ctx, uuid)
	if err != nil {
		return err
	}
	if err := ensureOwnership(actor, tag.CreatorID); err != nil {
		return err
	}

	// Locking the tag serialises this with Create and Update, which share-lock
	// the parent they attach to.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Take(&models.Tag{}, tag.ID).Error; err != nil {
			return err
		}

		var children int64
		if err := tx.Model(&models.Tag{}).Where("parent_id = ?", tag.ID).Count(&children).Error; err != nil {
			return err
		}
		if children > 0 {
			return apperr.Conflict("tag still has child tags")
		}

		if err := tx.Exec("DELETE FROM article_tags WHERE tag_id = ?", tag.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Tag{}, tag.ID).Error
	})
	if err != nil {
		if apperr.As(err) != nil {
			return err
		}
		return notFoundOr(err, "tag not found")
	}

	s.invalidate(ctx)

	logging.Info(ctx).Uint("tag_id", tag.ID).Msg("tag removed")
	return nil
}

func (s *TagService) FindAll(ctx context.Context, params pagination.Params) (pagination.Page[models.TagView], error) {
	ctx, span := tracer.Start(ctx, "tag.find_all")
	defer span.End()

	query := s.db.WithContext(ctx).Model(&models.Tag{}).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return pagination.Page[models.TagView]{}, apperr.Internal(err)
	}

	var tags []models.Tag
	if err := query.
		Preload("Creator").
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&tags).Error; err != nil {
		return pagination.Page[models.TagView]{}, apperr.Internal(err)
	}

	counts, err := s.articleCounts(ctx, tags)
	if err != nil {
		return pagination.Page[models.TagView]{}, err
	}

	views := make([]models.TagView, len(tags))
	for i := range tags {
		views[i] = tags[i].ToView(counts[tags[i].ID])
	}

	return pagination.NewPage(views, total, params), nil
}

func (s *TagService) FindOne(ctx context.Context, uuid string) (models.TagView, error) {
	ctx, span := tracer.Start(ctx, "tag.find_one")
	defer span.End()

	span.SetAttributes(attribute.String("tag.uuid", uuid))

	tag, err := s.load(ctx, uuid)
	if err != nil {
		return models.TagView{}, err
	}

	counts, err := s.articleCounts(ctx, []models.Tag{*tag})
	if err != nil {
		return models.TagView{}, err
	}
	return tag.ToView(counts[tag.ID]), nil
}

// Tree returns every tag arranged as a forest, served from the cache when warm.
func (s *TagService) Tree(ctx context.Context) ([]*models.TagNode, error) {
	ctx, span := tracer.Start(ctx, "tag.tree")
	defer span.End()

	if nodes, ok, err := s.cache.Get(ctx); err != nil {
		logging.Warn(ctx).Err(err).Msg("tag tree cache read failed")
	} else if ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return nodes, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	var tags []models.Tag
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&tags).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	forest, err := tree.BuildForest(tags,
		func(t models.Tag) uint { return t.ID },
		func(t models.Tag) uint { return t.ParentID },
	)
	if err != nil {
		if errors.Is(err, tree.ErrCyclicHierarchy) {
			logging.Error(ctx).Err(err).Msg("stored tag hierarchy contains a cycle")
		}
		return nil, apperr.Internal(err)
	}

	nodes := toTagNodes(forest)
	if nodes == nil {
		nodes = []*models.TagNode{}
	}

	if err := s.cache.Set(ctx, nodes); err != nil {
		logging.Warn(ctx).Err(err).Msg("tag tree cache write failed")
	}

	span.SetAttributes(attribute.Int("tags.count", len(tags)))
	return nodes, nil
}

func toTagNodes(branches []*tree.Branch[models.Tag]) []*models.TagNode {
	if len(branches) == 0 {
		return nil
	}
	out := make([]*models.TagNode, len(branches))
	for i, b := range branches {
		out[i] = &models.TagNode{
			ID:          b.Value.ID,
			UUID:        b.Value.UUID,
			Name:        b.Value.Name,
			Description: b.Value.Description,
			ParentID:    b.Value.ParentID,
			Children:    toTagNodes(b.Children),
		}
	}
	return out
}

func (s *TagService) load(ctx context.Context, uuid string) (*models.Tag, error) {
	var tag models.Tag
	if err := s.db.WithContext(ctx).Preload("Creator").Where("uuid = ?", uuid).First(&tag).Error; err != nil {
		return nil, notFoundOr(err, "tag not found")
	}
	return &tag, nil
}

func (s *TagService) parent(ctx context.Context, db *gorm.DB, uuid string) (*models.Tag, error) {
	var parent models.Tag
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("uuid = ?", uuid).
		First(&parent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.BadRequest("invalid parent", "parent tag does not exist")
		}
		return nil, apperr.Internal(err)
	}
	return &parent, nil
}

func (s *TagService) ensureNameFree(ctx context.Context, name string, except uint) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Tag{}).
		Where("name = ? AND id <> ?", name, except).
		Count(&n).Error; err != nil {
		return apperr.Internal(err)
	}
	if n > 0 {
		return apperr.Conflict("tag name already exists")
	}
	return nil
}

func (s *TagService) parentIndex(ctx context.Context, db *gorm.DB) (map[uint]uint, error) {
	var rows []struct {
		ID       uint
		ParentID uint
	}
	if err := db.WithContext(ctx).Model(&models.Tag{}).Select("id", "parent_id").Scan(&rows).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	parentOf := make(map[uint]uint, len(rows))
	for _, r := range rows {
		parentOf[r.ID] = r.ParentID
	}
	return parentOf, nil
}

// articleCounts counts live articles per tag.
func (s *TagService) articleCounts(ctx context.Context, tags []models.Tag) (map[uint]int64, error) {
	ids := make([]uint, len(tags))
	for i := range tags {
		ids[i] = tags[i].ID
	}
	base := s.db.WithContext(ctx).Table("article_tags").
		Joins("JOIN articles ON articles.id = article_tags.article_id AND articles.deleted_at IS NULL")
	counts, err := countBy(base, "article_tags.tag_id", ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return counts, nil
}

func (s *TagService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		logging.Warn(ctx).Err(err).Msg("tag tree cache invalidation failed")
	}
}

func tagName(raw string) (string, error) {
	name := sanitize(raw)
	if name == "" {
		return "", apperr.BadRequest("invalid name", "name must not be empty")
	}
	if utf8.RuneCountInString(name) > 64 {
		return "", apperr.BadRequest("invalid name", "name must be at most 64 characters")
	}
	return name, nil
}
