package services

import (
	"context"
	"unicode/utf8"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/events"
	"github.com/saxon-wu/living/internal/jobs/tasks"
	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/models"
	"github.com/saxon-wu/living/internal/pagination"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const maxTextLength = 5000

type CommentOptions struct {
	Notifier Notifier
	Events   events.Publisher
}

type CommentService struct {
	db       *gorm.DB
	notifier Notifier
	events   events.Publisher
	replies  *ReplyService
}

func NewCommentService(db *gorm.DB, opts CommentOptions) *CommentService {
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	return &CommentService{
		db:       db,
		notifier: opts.Notifier,
		events:   opts.Events,
		replies:  &ReplyService{db: db},
	}
}

type CreateCommentInput struct {
	Content string `json:"content" validate:"required,max=5000"`
}

func (s *CommentService) Create(ctx context.Context, actor *models.User, articleUUID string, input CreateCommentInput) (models.CommentView, error) {
	ctx, span := tracer.Start(ctx, "comment.create")
	defer span.End()

	span.SetAttributes(attribute.String("article.uuid", articleUUID))

	content, err := cleanText(input.Content)
	if err != nil {
		return models.CommentView{}, err
	}

	article, err := readableArticle(ctx, s.db, actor, articleUUID)
	if err != nil {
		return models.CommentView{}, err
	}

	comment := models.Comment{
		Content:     content,
		CommenterID: actor.ID,
		ArticleID:   article.ID,
	}
	if err := s.db.WithContext(ctx).Omit("Commenter", "Article").Create(&comment).Error; err != nil {
		return models.CommentView{}, apperr.Internal(err)
	}

	span.SetAttributes(attribute.String("comment.uuid", comment.UUID))

	logging.Info(ctx).
		Uint("comment_id", comment.ID).
		Uint("article_id", article.ID).
		Uint("commenter_id", actor.ID).
		Msg("comment created")

	if article.PublisherID != actor.ID {
		notify(ctx, s.notifier, tasks.CommentNotification{
			RecipientID: article.PublisherID,
			ActorUUID:   actor.UUID,
			ActorName:   actor.Username,
			ArticleUUID: article.UUID,
			TargetUUID:  comment.UUID,
			Kind:        tasks.KindArticleComment,
			Excerpt:     excerpt(content, 80),
		})
	}

	publish(ctx, s.events, events.Event{
		Subject:    events.SubjectCommentCreated,
		ActorUUID:  actor.UUID,
		TargetUUID: comment.UUID,
		Active:     true,
	})

	loaded, err := s.load(ctx, actor, comment.UUID)
	if err != nil {
		return models.CommentView{}, err
	}
	return s.view(ctx, actor, loaded)
}

// FindAll lists the comments of a readable article, newest first.
func (s *CommentService) FindAll(ctx context.Context, viewer *models.User, articleUUID string, params pagination.Params) (pagination.Page[models.CommentView], error) {
	ctx, span := tracer.Start(ctx, "comment.find_all")
	defer span.End()

	span.SetAttributes(attribute.String("article.uuid", articleUUID))

	article, err := readableArticle(ctx, s.db, viewer, articleUUID)
	if err != nil {
		return pagination.Page[models.CommentView]{}, err
	}

	query := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("article_id = ?", article.ID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return pagination.Page[models.CommentView]{}, apperr.Internal(err)
	}

	var comments []models.Comment
	if err := query.
		Preload("Commenter").
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&comments).Error; err != nil {
		return pagination.Page[models.CommentView]{}, apperr.Internal(err)
	}
	for i := range comments {
		comments[i].Article = *article
	}

	views, err := s.views(ctx, viewer, comments)
	if err != nil {
		return pagination.Page[models.CommentView]{}, err
	}

	return pagination.NewPage(views, total, params), nil
}

// FindOne returns the comment with all of its live replies, quoted.
func (s *CommentService) FindOne(ctx context.Context, viewer *models.User, uuid string) (models.CommentView, error) {
	ctx, span := tracer.Start(ctx, "comment.find_one")
	defer span.End()

	span.SetAttributes(attribute.String("comment.uuid", uuid))

	comment, err := s.load(ctx, viewer, uuid)
	if err != nil {
		return models.CommentView{}, err
	}

	view, err := s.view(ctx, viewer, comment)
	if err != nil {
		return models.CommentView{}, err
	}

	var replies []models.Reply
	if err := s.db.WithContext(ctx).
		Preload("Replier").
		Where("comment_id = ?", comment.ID).
		Order("created_at DESC").
		Find(&replies).Error; err != nil {
		return models.CommentView{}, apperr.Internal(err)
	}
	for i := range replies {
		replies[i].Comment = *comment
	}

	view.Replies, err = s.replies.views(ctx, viewer, replies)
	if err != nil {
		return models.CommentView{}, err
	}

	return view, nil
}

// Remove hard-deletes the comment; its replies and likes go with it.
func (s *CommentService) Remove(ctx context.Context, actor *models.User, uuid string) error {
	ctx, span := tracer.Start(ctx, "comment.remove")
	defer span.End()

	span.SetAttributes(attribute.String("comment.uuid", uuid))

	var comment models.Comment
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&comment).Error; err != nil {
		return notFoundOr(err, "comment not found")
	}
	if err := ensureOwnership(actor, comment.CommenterID); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&comment).Error; err != nil {
		return apperr.Internal(err)
	}

	logging.Info(ctx).Uint("comment_id", comment.ID).Msg("comment removed")
	return nil
}

func (s *CommentService) Like(ctx context.Context, actor *models.User, uuid string) (models.CommentView, error) {
	ctx, span := tracer.Start(ctx, "comment.like")
	defer span.End()

	span.SetAttributes(attribute.String("comment.uuid", uuid))

	comment, err := s.load(ctx, actor, uuid)
	if err != nil {
		return models.CommentView{}, err
	}

	added, err := toggle(ctx, s.db, &models.Comment{}, comment.ID,
		&models.CommentLike{UserID: actor.ID, CommentID: comment.ID}, "comment_like")
	if err != nil {
		return models.CommentView{}, notFoundOr(err, "comment not found")
	}

	logging.Info(ctx).
		Uint("comment_id", comment.ID).
		Uint("user_id", actor.ID).
		Bool("liked", added).
		Msg("comment like toggled")

	publish(ctx, s.events, events.Event{
		Subject:    events.SubjectCommentLiked,
		ActorUUID:  actor.UUID,
		TargetUUID: comment.UUID,
		Active:     added,
	})

	return s.view(ctx, actor, comment)
}

// load fetches a comment whose article is still readable by viewer.
func (s *CommentService) load(ctx context.Context, viewer *models.User, uuid string) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).
		Preload("Commenter").
		Preload("Article").
		Where("uuid = ?", uuid).
		First(&comment).Error; err != nil {
		return nil, notFoundOr(err, "comment not found")
	}
	if comment.Article.ID == 0 || !comment.Article.Readable(viewer) {
		return nil, apperr.NotFound("comment not found")
	}
	return &comment, nil
}

func (s *CommentService) view(ctx context.Context, viewer *models.User, comment *models.Comment) (models.CommentView, error) {
	views, err := s.views(ctx, viewer, []models.Comment{*comment})
	if err != nil {
		return models.CommentView{}, err
	}
	return views[0], nil
}

func (s *CommentService) views(ctx context.Context, viewer *models.User, comments []models.Comment) ([]models.CommentView, error) {
	ids := make([]uint, len(comments))
	for i := range comments {
		ids[i] = comments[i].ID
	}

	db := s.db.WithContext(ctx)

	likes, err := countBy(db.Model(&models.CommentLike{}), "comment_id", ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	replies, err := countBy(db.Model(&models.Reply{}), "comment_id", ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	liked, err := memberSet(db.Model(&models.CommentLike{}), "comment_id", viewer, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	views := make([]models.CommentView, len(comments))
	for i := range comments {
		id := comments[i].ID
		views[i] = comments[i].ToView(likes[id], replies[id], liked[id])
	}
	return views, nil
}

func readableArticle(ctx context.Context, db *gorm.DB, viewer *models.User, uuid string) (*models.Article, error) {
	var article models.Article
	if err := db.WithContext(ctx).Where("uuid = ?", uuid).First(&article).Error; err != nil {
		return nil, notFoundOr(err, "article not found")
	}
	if !article.Readable(viewer) {
		return nil, ErrArticleNotFound
	}
	return &article, nil
}

func cleanText(raw string) (string, error) {
	content := sanitize(raw)
	if content == "" {
		return "", apperr.BadRequest("invalid content", "content must not be empty")
	}
	if utf8.RuneCountInString(content) > maxTextLength {
		return "", apperr.BadRequest("invalid content", "content is too long")
	}
	return content, nil
}
