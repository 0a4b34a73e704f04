package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/events"
	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/models"
	"github.com/saxon-wu/living/internal/pagination"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultArticleCooldown = 60 * time.Second

var ErrArticleNotFound = apperr.NotFound("article not found")

type ArticleOptions struct {
	BaseURL  string
	Cooldown time.Duration
	Events   events.Publisher
	Now      func() time.Time
}

type ArticleService struct {
	db       *gorm.DB
	baseURL  string
	cooldown time.Duration
	events   events.Publisher
	now      func() time.Time
	created  metric.Int64Counter
}

func NewArticleService(db *gorm.DB, opts ArticleOptions) *ArticleService {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultArticleCooldown
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &ArticleService{
		db:       db,
		baseURL:  opts.BaseURL,
		cooldown: opts.Cooldown,
		events:   opts.Events,
		now:      opts.Now,
		created:  newCounter("articles.created", "Total number of articles created"),
	}
}

type CreateArticleInput struct {
	Title    string               `json:"title" validate:"required,max=255"`
	Content  json.RawMessage      `json:"content" validate:"required"`
	Status   models.ArticleStatus `json:"status" validate:"omitempty,oneof=draft published"`
	IsPublic *bool                `json:"isPublic"`
	Tags     []string             `json:"tags" validate:"omitempty,dive,uuid"`
	Cover    string               `json:"cover" validate:"omitempty,uuid"`
}

// UpdateArticleInput leaves nil fields untouched. An empty Cover removes the cover.
type UpdateArticleInput struct {
	Title    *string               `json:"title" validate:"omitempty,max=255"`
	Content  *json.RawMessage      `json:"content"`
	Status   *models.ArticleStatus `json:"status" validate:"omitempty,oneof=draft published"`
	IsPublic *bool                 `json:"isPublic"`
	Tags     *[]string             `json:"tags" validate:"omitempty,dive,uuid"`
	Cover    *string               `json:"cover" validate:"omitempty,uuid"`
}

const (
	SortCreated = "created"
	SortViews   = "views"
	SortLikes   = "likes"
)

type ListArticlesInput struct {
	Page pagination.Params
	Tag  string
	Sort string
}

func (s *ArticleService) Create(ctx context.Context, actor *models.User, input CreateArticleInput) (models.ArticleAdminView, error) {
	ctx, span := tracer.Start(ctx, "article.create")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("publisher.id", int64(actor.ID)),
		attribute.String("article.title", input.Title),
	)

	title := strings.TrimSpace(input.Title)
	if err := validateTitle(title); err != nil {
		return models.ArticleAdminView{}, err
	}
	if err := validateContent(input.Content); err != nil {
		return models.ArticleAdminView{}, err
	}

	status := input.Status
	if status == "" {
		status = models.ArticlePublished
	}
	if !status.Valid() {
		return models.ArticleAdminView{}, apperr.BadRequest("invalid status", "status must be draft or published")
	}
	isPublic := true
	if input.IsPublic != nil {
		isPublic = *input.IsPublic
	}

	now := s.now()

	tags, err := s.resolveTags(ctx, s.db, input.Tags)
	if err != nil {
		return models.ArticleAdminView{}, err
	}

	article := models.Article{
		Title:       title,
		Content:     string(input.Content),
		Status:      status,
		IsPublic:    isPublic,
		PublisherID: actor.ID,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if input.Cover != "" {
		cover, err := resolveImage(ctx, s.db, input.Cover)
		if err != nil {
			return models.ArticleAdminView{}, err
		}
		article.CoverID = &cover.ID
	}

	// The publisher row lock serializes creates per publisher so the cooldown
	// check and the insert cannot interleave.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Take(&models.User{}, actor.ID).Error; err != nil {
			return err
		}

		var recent int64
		if err := tx.Model(&models.Article{}).
			Where("publisher_id = ? AND title = ? AND created_at > ?", actor.ID, title, now.Add(-s.cooldown)).
			Count(&recent).Error; err != nil {
			return err
		}
		if recent > 0 {
			span.SetAttributes(attribute.Bool("article.cooldown", true))
			return apperr.Conflict("an article with this title was just published, please wait before posting it again")
		}

		return tx.Omit("Publisher", "Cover").Create(&article).Error
	})
	if err != nil {
		if apperr.As(err) != nil {
			return models.ArticleAdminView{}, err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ArticleAdminView{}, apperr.Unauthorized("user no longer exists")
		}
		return models.ArticleAdminView{}, apperr.Internal(err)
	}

	if s.created != nil {
		s.created.Add(ctx, 1)
	}

	span.SetAttributes(
		attribute.Int64("article.id", int64(article.ID)),
		attribute.String("article.uuid", article.UUID),
	)

	logging.Info(ctx).
		Uint("article_id", article.ID).
		Str("article_uuid", article.UUID).
		Uint("publisher_id", actor.ID).
		Msg("article created")

	publish(ctx, s.events, events.Event{
		Subject:    events.SubjectArticleCreated,
		ActorUUID:  actor.UUID,
		TargetUUID: article.UUID,
		Active:     true,
	})

	loaded, err := s.load(ctx, s.db, article.UUID)
	if err != nil {
		return models.ArticleAdminView{}, err
	}
	return s.adminView(ctx, actor, loaded)
}

func (s *ArticleService) FindAll(ctx context.Context, viewer *models.User, input ListArticlesInput) (pagination.Page[models.ArticlePublicView], error) {
	ctx, span := tracer.Start(ctx, "article.find_all")
	defer span.End()

	span.SetAttributes(
		attribute.Int("pagination.page", input.Page.Page),
		attribute.Int("pagination.page_size", input.Page.PageSize),
		attribute.String("sort", input.Sort),
	)

	query := s.db.WithContext(ctx).Model(&models.Article{}).
		Where("articles.status = ? AND articles.is_public = ?", models.ArticlePublished, true)

	if input.Tag != "" {
		var tag models.Tag
		if err := s.db.WithContext(ctx).Select("id").Where("uuid = ?", input.Tag).First(&tag).Error; err != nil {
			return pagination.Page[models.ArticlePublicView]{}, notFoundOr(err, "tag not found")
		}
		query = query.Where("articles.id IN (?)",
			s.db.Table("article_tags").Select("article_id").Where("tag_id = ?", tag.ID))
		span.SetAttributes(attribute.String("filter.tag", input.Tag))
	}

	articles, total, err := s.page(query, input.Page, articleOrder(input.Sort))
	if err != nil {
		return pagination.Page[models.ArticlePublicView]{}, apperr.Internal(err)
	}

	stats, err := s.stats(ctx, viewer, articles)
	if err != nil {
		return pagination.Page[models.ArticlePublicView]{}, apperr.Internal(err)
	}

	views := make([]models.ArticlePublicView, len(articles))
	for i := range articles {
		views[i] = articles[i].ToPublicView(s.baseURL, stats[articles[i].ID])
	}

	span.SetAttributes(attribute.Int64("result.total_count", total))

	return pagination.NewPage(views, total, input.Page), nil
}

// FindOne returns a readable article and counts the visit.
func (s *ArticleService) FindOne(ctx context.Context, viewer *models.User, uuid string) (models.ArticlePublicView, error) {
	ctx, span := tracer.Start(ctx, "article.find_one")
	defer span.End()

	span.SetAttributes(attribute.String("article.uuid", uuid))

	article, err := s.readable(ctx, viewer, uuid)
	if err != nil {
		return models.ArticlePublicView{}, err
	}

	if err := s.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ?", article.ID).
		UpdateColumn("views", gorm.Expr("views + ?", 1)).Error; err != nil {
		logging.Warn(ctx).Err(err).Uint("article_id", article.ID).Msg("failed to count article view")
	} else {
		article.Views++
	}

	return s.publicView(ctx, viewer, article)
}

// FindMine lists every article of actor, including drafts, private and deleted ones.
func (s *ArticleService) FindMine(ctx context.Context, actor *models.User, params pagination.Params) (pagination.Page[models.ArticleAdminView], error) {
	ctx, span := tracer.Start(ctx, "article.find_mine")
	defer span.End()

	span.SetAttributes(attribute.Int64("publisher.id", int64(actor.ID)))

	query := s.db.WithContext(ctx).Unscoped().Model(&models.Article{}).
		Where("articles.publisher_id = ?", actor.ID)

	articles, total, err := s.page(query, params, "articles.created_at DESC")
	if err != nil {
		return pagination.Page[models.ArticleAdminView]{}, apperr.Internal(err)
	}

	stats, err := s.stats(ctx, actor, articles)
	if err != nil {
		return pagination.Page[models.ArticleAdminView]{}, apperr.Internal(err)
	}

	views := make([]models.ArticleAdminView, len(articles))
	for i := range articles {
		views[i] = articles[i].ToAdminView(s.baseURL, stats[articles[i].ID])
	}

	return pagination.NewPage(views, total, params), nil
}

func (s *ArticleService) Update(ctx context.Context, actor *models.User, uuid string, input UpdateArticleInput) (models.ArticleAdminView, error) {
	ctx, span := tracer.Start(ctx, "article.update")
	defer span.End()

	span.SetAttributes(attribute.String("article.uuid", uuid))

	article, err := s.load(ctx, s.db, uuid)
	if err != nil {
		return models.ArticleAdminView{}, err
	}
	if err := ensureOwnership(actor, article.PublisherID); err != nil {
		return models.ArticleAdminView{}, err
	}

	updates := make(map[string]interface{})
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if err := validateTitle(title); err != nil {
			return models.ArticleAdminView{}, err
		}
		updates["title"] = title
	}
	if input.Content != nil {
		if err := validateContent(*input.Content); err != nil {
			return models.ArticleAdminView{}, err
		}
		updates["content"] = string(*input.Content)
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return models.ArticleAdminView{}, apperr.BadRequest("invalid status", "status must be draft or published")
		}
		updates["status"] = *input.Status
	}
	if input.IsPublic != nil {
		updates["is_public"] = *input.IsPublic
	}
	if input.Cover != nil {
		if *input.Cover == "" {
			updates["cover_id"] = nil
		} else {
			cover, err := resolveImage(ctx, s.db, *input.Cover)
			if err != nil {
				return models.ArticleAdminView{}, err
			}
			updates["cover_id"] = cover.ID
		}
	}

	var tags []models.Tag
	if input.Tags != nil {
		tags, err = s.resolveTags(ctx, s.db, *input.Tags)
		if err != nil {
			return models.ArticleAdminView{}, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.Tags != nil {
			if err := tx.Model(article).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			updates["updated_at"] = s.now()
			if err := tx.Model(&models.Article{}).Where("id = ?", article.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.ArticleAdminView{}, apperr.Internal(err)
	}

	logging.Info(ctx).
		Uint("article_id", article.ID).
		Int("fields", len(updates)).
		Bool("tags_replaced", input.Tags != nil).
		Msg("article updated")

	article, err = s.load(ctx, s.db, uuid)
	if err != nil {
		return models.ArticleAdminView{}, err
	}
	return s.adminView(ctx, actor, article)
}

// Remove soft-deletes the article; Restore brings it back.
func (s *ArticleService) Remove(ctx context.Context, actor *models.User, uuid string) error {
	ctx, span := tracer.Start(ctx, "article.remove")
	defer span.End()

	span.SetAttributes(attribute.String("article.uuid", uuid))

	article, err := s.load(ctx, s.db, uuid)
	if err != nil {
		return err
	}
	if err := ensureOwnership(actor, article.PublisherID); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(article).Error; err != nil {
		return apperr.Internal(err)
	}

	logging.Info(ctx).Uint("article_id", article.ID).Msg("article removed")
	return nil
}

func (s *ArticleService) Restore(ctx context.Context, actor *models.User, uuid string) (models.ArticleAdminView, error) {
	ctx, span := tracer.Start(ctx, "article.restore")
	defer span.End()

	span.SetAttributes(attribute.String("article.uuid", uuid))

	var article models.Article
	if err := s.db.WithContext(ctx).Unscoped().
		Where("uuid = ? AND deleted_at IS NOT NULL", uuid).
		First(&article).Error; err != nil {
		return models.ArticleAdminView{}, notFoundOr(err, "deleted article not found")
	}
	if err := ensureOwnership(actor, article.PublisherID); err != nil {
		return models.ArticleAdminView{}, err
	}

	if err := s.db.WithContext(ctx).Unscoped().Model(&models.Article{}).
		Where("id = ?", article.ID).
		Update("deleted_at", nil).Error; err != nil {
		return models.ArticleAdminView{}, apperr.Internal(err)
	}

	logging.Info(ctx).Uint("article_id", article.ID).Msg("article restored")

	loaded, err := s.load(ctx, s.db, uuid)
	if err != nil {
		return models.ArticleAdminView{}, err
	}
	return s.adminView(ctx, actor, loaded)
}

// Like toggles actor's like on the article.
func (s *ArticleService) Like(ctx context.Context, actor *models.User, uuid string) (models.ArticlePublicView, error) {
	ctx, span := tracer.Start(ctx, "article.like")
	defer span.End()

	span.SetAttributes(attribute.String("article.uuid", uuid))

	article, err := s.readable(ctx, actor, uuid)
	if err != nil {
		return models.ArticlePublicView{}, err
	}

	added, err := toggle(ctx, s.db, &models.Article{}, article.ID,
		&models.ArticleLike{UserID: actor.ID, ArticleID: article.ID}, "article_like")
	if err != nil {
		return models.ArticlePublicView{}, notFoundOr(err, "article not found")
	}

	span.SetAttributes(attribute.Bool("like.added", added))

	logging.Info(ctx).
		Uint("article_id", article.ID).
		Uint("user_id", actor.ID).
		Bool("liked", added).
		Msg("article like toggled")

	publish(ctx, s.events, events.Event{
		Subject:    events.SubjectArticleLiked,
		ActorUUID:  actor.UUID,
		TargetUUID: article.UUID,
		Active:     added,
	})

	return s.publicView(ctx, actor, article)
}

// Favorite toggles actor's bookmark. Publishers cannot bookmark their own articles.
func (s *ArticleService) Favorite(ctx context.Context, actor *models.User, uuid string) (models.ArticlePublicView, error) {
	ctx, span := tracer.Start(ctx, "article.favorite")
	defer span.End()

	span.SetAttributes(attribute.String("article.uuid", uuid))

	article, err := s.readable(ctx, actor, uuid)
	if err != nil {
		return models.ArticlePublicView{}, err
	}
	if article.PublisherID == actor.ID {
		return models.ArticlePublicView{}, apperr.Forbidden("you cannot favorite your own article")
	}

	added, err := toggle(ctx, s.db, &models.Article{}, article.ID,
		&models.ArticleBookmark{UserID: actor.ID, ArticleID: article.ID}, "article_favorite")
	if err != nil {
		return models.ArticlePublicView{}, notFoundOr(err, "article not found")
	}

	span.SetAttributes(attribute.Bool("favorite.added", added))

	logging.Info(ctx).
		Uint("article_id", article.ID).
		Uint("user_id", actor.ID).
		Bool("favorited", added).
		Msg("article favorite toggled")

	publish(ctx, s.events, events.Event{
		Subject:    events.SubjectArticleFavorited,
		ActorUUID:  actor.UUID,
		TargetUUID: article.UUID,
		Active:     added,
	})

	return s.publicView(ctx, actor, article)
}

// Favorites lists the published articles bookmarked by the user, newest bookmark first.
func (s *ArticleService) Favorites(ctx context.Context, viewer *models.User, userUUID string, params pagination.Params) (pagination.Page[models.ArticlePublicView], error) {
	ctx, span := tracer.Start(ctx, "article.favorites")
	defer span.End()

	span.SetAttributes(attribute.String("user.uuid", userUUID))

	var owner models.User
	if err := s.db.WithContext(ctx).Select("id").Where("uuid = ?", userUUID).First(&owner).Error; err != nil {
		return pagination.Page[models.ArticlePublicView]{}, notFoundOr(err, "user not found")
	}

	query := s.db.WithContext(ctx).Model(&models.Article{}).
		Joins("JOIN article_bookmarks ON article_bookmarks.article_id = articles.id AND article_bookmarks.user_id = ?", owner.ID).
		Where("articles.status = ? AND articles.is_public = ?", models.ArticlePublished, true)

	articles, total, err := s.page(query, params, "article_bookmarks.created_at DESC")
	if err != nil {
		return pagination.Page[models.ArticlePublicView]{}, apperr.Internal(err)
	}

	stats, err := s.stats(ctx, viewer, articles)
	if err != nil {
		return pagination.Page[models.ArticlePublicView]{}, apperr.Internal(err)
	}

	views := make([]models.ArticlePublicView, len(articles))
	for i := range articles {
		views[i] = articles[i].ToPublicView(s.baseURL, stats[articles[i].ID])
	}

	return pagination.NewPage(views, total, params), nil
}

// Purge hard-deletes articles that were soft-deleted before cutoff, with their
// comments, replies and likes.
func (s *ArticleService) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "article.purge")
	defer span.End()

	var purged int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Unscoped().Model(&models.Article{}).
			Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Exec("DELETE FROM article_tags WHERE article_id IN ?", ids).Error; err != nil {
			return err
		}

		res := tx.Unscoped().Where("id IN ?", ids).Delete(&models.Article{})
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, apperr.Internal(err)
	}

	span.SetAttributes(attribute.Int64("articles.purged", purged))

	logging.Info(ctx).
		Int64("purged", purged).
		Time("cutoff", cutoff).
		Msg("deleted articles purged")

	return purged, nil
}

func (s *ArticleService) load(ctx context.Context, db *gorm.DB, uuid string) (*models.Article, error) {
	var article models.Article
	if err := db.WithContext(ctx).
		Preload("Publisher").
		Preload("Cover").
		Preload("Tags").
		Where("uuid = ?", uuid).
		First(&article).Error; err != nil {
		return nil, notFoundOr(err, "article not found")
	}
	return &article, nil
}

// readable hides drafts and private articles from everyone but their publisher.
func (s *ArticleService) readable(ctx context.Context, viewer *models.User, uuid string) (*models.Article, error) {
	article, err := s.load(ctx, s.db, uuid)
	if err != nil {
		return nil, err
	}
	if !article.Readable(viewer) {
		return nil, ErrArticleNotFound
	}
	return article, nil
}

// page counts and fetches one page of query with publisher, cover and tags preloaded.
func (s *ArticleService) page(query *gorm.DB, params pagination.Params, order string) ([]models.Article, int64, error) {
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var articles []models.Article
	if err := query.
		Preload("Publisher").
		Preload("Cover").
		Preload("Tags").
		Order(order).
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&articles).Error; err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

func articleOrder(sort string) string {
	switch sort {
	case SortViews:
		return "articles.views DESC, articles.created_at DESC"
	case SortLikes:
		return "(SELECT COUNT(*) FROM article_likes WHERE article_likes.article_id = articles.id) DESC, articles.created_at DESC"
	default:
		return "articles.created_at DESC"
	}
}

func (s *ArticleService) stats(ctx context.Context, viewer *models.User, articles []models.Article) (map[uint]models.ArticleStats, error) {
	ids := make([]uint, len(articles))
	for i := range articles {
		ids[i] = articles[i].ID
	}

	db := s.db.WithContext(ctx)

	likes, err := countBy(db.Model(&models.ArticleLike{}), "article_id", ids)
	if err != nil {
		return nil, err
	}
	favorites, err := countBy(db.Model(&models.ArticleBookmark{}), "article_id", ids)
	if err != nil {
		return nil, err
	}
	comments, err := countBy(db.Model(&models.Comment{}), "article_id", ids)
	if err != nil {
		return nil, err
	}
	liked, err := memberSet(db.Model(&models.ArticleLike{}), "article_id", viewer, ids)
	if err != nil {
		return nil, err
	}
	favorited, err := memberSet(db.Model(&models.ArticleBookmark{}), "article_id", viewer, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[uint]models.ArticleStats, len(ids))
	for _, id := range ids {
		out[id] = models.ArticleStats{
			Likes:     likes[id],
			Favorites: favorites[id],
			Comments:  comments[id],
			Liked:     liked[id],
			Favorited: favorited[id],
		}
	}
	return out, nil
}

func (s *ArticleService) publicView(ctx context.Context, viewer *models.User, article *models.Article) (models.ArticlePublicView, error) {
	stats, err := s.stats(ctx, viewer, []models.Article{*article})
	if err != nil {
		return models.ArticlePublicView{}, apperr.Internal(err)
	}
	return article.ToPublicView(s.baseURL, stats[article.ID]), nil
}

func (s *ArticleService) adminView(ctx context.Context, actor *models.User, article *models.Article) (models.ArticleAdminView, error) {
	stats, err := s.stats(ctx, actor, []models.Article{*article})
	if err != nil {
		return models.ArticleAdminView{}, apperr.Internal(err)
	}
	return article.ToAdminView(s.baseURL, stats[article.ID]), nil
}

// resolveTags loads tags by uuid; every uuid must exist.
func (s *ArticleService) resolveTags(ctx context.Context, db *gorm.DB, uuids []string) ([]models.Tag, error) {
	uuids = dedupe(uuids)
	if len(uuids) == 0 {
		return []models.Tag{}, nil
	}

	var tags []models.Tag
	if err := db.WithContext(ctx).Where("uuid IN ?", uuids).Find(&tags).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if len(tags) != len(uuids) {
		return nil, apperr.BadRequest("unknown tag", "every tag must reference an existing tag uuid")
	}
	return tags, nil
}

func resolveImage(ctx context.Context, db *gorm.DB, uuid string) (*models.File, error) {
	var file models.File
	if err := db.WithContext(ctx).Where("uuid = ?", uuid).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.BadRequest("unknown file", "file "+uuid+" does not exist")
		}
		return nil, apperr.Internal(err)
	}
	if !file.IsImage() {
		return nil, apperr.BadRequest("file is not an image")
	}
	return &file, nil
}

func validateTitle(title string) error {
	if title == "" {
		return apperr.BadRequest("invalid title", "title is required")
	}
	if utf8.RuneCountInString(title) > 255 {
		return apperr.BadRequest("invalid title", "title must be at most 255 characters")
	}
	return nil
}

func validateContent(content json.RawMessage) error {
	if len(content) == 0 || !json.Valid(content) {
		return apperr.BadRequest("invalid content", "content must be a JSON document")
	}
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
