package services

import (
	"context"
	"errors"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/events"
	"github.com/saxon-wu/living/internal/jobs/tasks"
	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/models"
	"github.com/saxon-wu/living/internal/pagination"
	"github.com/saxon-wu/living/internal/tree"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type ReplyOptions struct {
	Notifier Notifier
	Events   events.Publisher
}

type ReplyService struct {
	db       *gorm.DB
	notifier Notifier
	events   events.Publisher
}

func NewReplyService(db *gorm.DB, opts ReplyOptions) *ReplyService {
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	return &ReplyService{db: db, notifier: opts.Notifier, events: opts.Events}
}

// CreateReplyInput.Parent is the uuid of the reply being answered, empty for a
// reply to the comment itself.
type CreateReplyInput struct {
	Content string `json:"content" validate:"required,max=5000"`
	Parent  string `json:"replyParent" validate:"omitempty,uuid"`
}

func (s *ReplyService) Create(ctx context.Context, actor *models.User, commentUUID string, input CreateReplyInput) (models.ReplyView, error) {
	ctx, span := tracer.Start(ctx, "reply.create")
	defer span.End()

	span.SetAttributes(attribute.String("comment.uuid", commentUUID))

	content, err := cleanText(input.Content)
	if err != nil {
		return models.ReplyView{}, err
	}

	comment, err := s.comment(ctx, actor, commentUUID)
	if err != nil {
		return models.ReplyView{}, err
	}

	reply := models.Reply{
		Content:   content,
		ReplierID: actor.ID,
		CommentID: comment.ID,
	}

	recipient := comment.CommenterID
	kind := tasks.KindCommentReply

	if input.Parent != "" {
		var parent models.Reply
		if err := s.db.WithContext(ctx).Where("uuid = ?", input.Parent).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ReplyView{}, apperr.BadRequest("invalid reply parent", "the reply being answered does not exist")
			}
			return models.ReplyView{}, apperr.Internal(err)
		}
		if parent.CommentID != comment.ID {
			return models.ReplyView{}, apperr.BadRequest("invalid reply parent", "the reply being answered belongs to another comment")
		}
		reply.ParentID = parent.ID
		recipient = parent.ReplierID
		kind = tasks.KindReplyReply
		span.SetAttributes(attribute.String("reply.parent_uuid", parent.UUID))
	}

	if err := s.db.WithContext(ctx).Omit("Replier", "Comment").Create(&reply).Error; err != nil {
		return models.ReplyView{}, apperr.Internal(err)
	}

	logging.Info(ctx).
		Uint("reply_id", reply.ID).
		Uint("comment_id", comment.ID).
		Uint("parent_id", reply.ParentID).
		Uint("replier_id", actor.ID).
		Msg("reply created")

	if recipient != actor.ID {
		notify(ctx, s.notifier, tasks.CommentNotification{
			RecipientID: recipient,
			ActorUUID:   actor.UUID,
			ActorName:   actor.Username,
			ArticleUUID: comment.Article.UUID,
			TargetUUID:  reply.UUID,
			Kind:        kind,
			Excerpt:     excerpt(content, 80),
		})
	}

	publish(ctx, s.events, events.Event{
		Subject:    events.SubjectReplyCreated,
		ActorUUID:  actor.UUID,
		TargetUUID: reply.UUID,
		Active:     true,
	})

	return s.FindOne(ctx, actor, reply.UUID)
}

// FindAll pages through the live replies of a comment. Quotes are resolved
// within the page only.
func (s *ReplyService) FindAll(ctx context.Context, viewer *models.User, commentUUID string, params pagination.Params) (pagination.Page[models.ReplyView], error) {
	ctx, span := tracer.Start(ctx, "reply.find_all")
	defer span.End()

	span.SetAttributes(attribute.String("comment.uuid", commentUUID))

	comment, err := s.comment(ctx, viewer, commentUUID)
	if err != nil {
		return pagination.Page[models.ReplyView]{}, err
	}

	query := s.db.WithContext(ctx).Model(&models.Reply{}).
		Where("comment_id = ?", comment.ID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return pagination.Page[models.ReplyView]{}, apperr.Internal(err)
	}

	var replies []models.Reply
	if err := query.
		Preload("Replier").
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&replies).Error; err != nil {
		return pagination.Page[models.ReplyView]{}, apperr.Internal(err)
	}
	for i := range replies {
		replies[i].Comment = *comment
	}

	views, err := s.views(ctx, viewer, replies)
	if err != nil {
		return pagination.Page[models.ReplyView]{}, err
	}

	return pagination.NewPage(views, total, params), nil
}

func (s *ReplyService) FindOne(ctx context.Context, viewer *models.User, uuid string) (models.ReplyView, error) {
	ctx, span := tracer.Start(ctx, "reply.find_one")
	defer span.End()

	span.SetAttributes(attribute.String("reply.uuid", uuid))

	reply, err := s.load(ctx, s.db, viewer, uuid)
	if err != nil {
		return models.ReplyView{}, err
	}

	batch := []models.Reply{*reply}
	if reply.ParentID != 0 {
		var parent models.Reply
		err := s.db.WithContext(ctx).Preload("Replier").Where("id = ?", reply.ParentID).First(&parent).Error
		switch {
		case err == nil:
			batch = append(batch, parent)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return models.ReplyView{}, apperr.Internal(err)
		}
	}

	views, err := s.views(ctx, viewer, batch)
	if err != nil {
		return models.ReplyView{}, err
	}
	return views[0], nil
}

// Remove soft-deletes the reply. Replies quoting it keep their own content.
func (s *ReplyService) Remove(ctx context.Context, actor *models.User, uuid string) error {
	ctx, span := tracer.Start(ctx, "reply.remove")
	defer span.End()

	span.SetAttributes(attribute.String("reply.uuid", uuid))

	var reply models.Reply
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&reply).Error; err != nil {
		return notFoundOr(err, "reply not found")
	}
	if err := ensureOwnership(actor, reply.ReplierID); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&reply).Error; err != nil {
		return apperr.Internal(err)
	}

	logging.Info(ctx).Uint("reply_id", reply.ID).Msg("reply removed")
	return nil
}

func (s *ReplyService) Restore(ctx context.Context, actor *models.User, uuid string) (models.ReplyView, error) {
	ctx, span := tracer.Start(ctx, "reply.restore")
	defer span.End()

	span.SetAttributes(attribute.String("reply.uuid", uuid))

	var reply models.Reply
	if err := s.db.WithContext(ctx).Unscoped().
		Where("uuid = ? AND deleted_at IS NOT NULL", uuid).
		First(&reply).Error; err != nil {
		return models.ReplyView{}, notFoundOr(err, "deleted reply not found")
	}
	if err := ensureOwnership(actor, reply.ReplierID); err != nil {
		return models.ReplyView{}, err
	}

	if err := s.db.WithContext(ctx).Unscoped().Model(&models.Reply{}).
		Where("id = ?", reply.ID).
		Update("deleted_at", nil).Error; err != nil {
		return models.ReplyView{}, apperr.Internal(err)
	}

	logging.Info(ctx).Uint("reply_id", reply.ID).Msg("reply restored")

	return s.FindOne(ctx, actor, uuid)
}

func (s *ReplyService) Like(ctx context.Context, actor *models.User, uuid string) (models.ReplyView, error) {
	ctx, span := tracer.Start(ctx, "reply.like")
	defer span.End()

	span.SetAttributes(attribute.String("reply.uuid", uuid))

	reply, err := s.load(ctx, s.db, actor, uuid)
	if err != nil {
		return models.ReplyView{}, err
	}

	added, err := toggle(ctx, s.db, &models.Reply{}, reply.ID,
		&models.ReplyLike{UserID: actor.ID, ReplyID: reply.ID}, "reply_like")
	if err != nil {
		return models.ReplyView{}, notFoundOr(err, "reply not found")
	}

	logging.Info(ctx).
		Uint("reply_id", reply.ID).
		Uint("user_id", actor.ID).
		Bool("liked", added).
		Msg("reply like toggled")

	publish(ctx, s.events, events.Event{
		Subject:    events.SubjectReplyLiked,
		ActorUUID:  actor.UUID,
		TargetUUID: reply.UUID,
		Active:     added,
	})

	return s.FindOne(ctx, actor, uuid)
}

// comment loads a comment whose article viewer may read.
func (s *ReplyService) comment(ctx context.Context, viewer *models.User, uuid string) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Article").Where("uuid = ?", uuid).First(&comment).Error; err != nil {
		return nil, notFoundOr(err, "comment not found")
	}
	if comment.Article.ID == 0 || !comment.Article.Readable(viewer) {
		return nil, apperr.NotFound("comment not found")
	}
	return &comment, nil
}

func (s *ReplyService) load(ctx context.Context, db *gorm.DB, viewer *models.User, uuid string) (*models.Reply, error) {
	var reply models.Reply
	if err := db.WithContext(ctx).
		Preload("Replier").
		Preload("Comment.Article").
		Where("uuid = ?", uuid).
		First(&reply).Error; err != nil {
		return nil, notFoundOr(err, "reply not found")
	}
	if reply.Comment.Article.ID == 0 || !reply.Comment.Article.Readable(viewer) {
		return nil, apperr.NotFound("reply not found")
	}
	return &reply, nil
}

// views decorates replies with quotes, parent uuids and like counts. The
// result has one entry per input reply, in order.
func (s *ReplyService) views(ctx context.Context, viewer *models.User, replies []models.Reply) ([]models.ReplyView, error) {
	if len(replies) == 0 {
		return []models.ReplyView{}, nil
	}

	ids := make([]uint, len(replies))
	quotes := make([]tree.Quote, len(replies))
	var parentIDs []uint
	for i := range replies {
		r := &replies[i]
		ids[i] = r.ID
		quotes[i] = tree.Quote{ID: r.ID, ParentID: r.ParentID, Username: r.Replier.Username, Content: r.Content}
		if r.ParentID != 0 {
			parentIDs = append(parentIDs, r.ParentID)
		}
	}

	parentUUIDs := make(map[uint]string, len(parentIDs))
	if len(parentIDs) > 0 {
		var parents []models.Reply
		if err := s.db.WithContext(ctx).Unscoped().
			Select("id", "uuid").
			Where("id IN ?", parentIDs).
			Find(&parents).Error; err != nil {
			return nil, apperr.Internal(err)
		}
		for _, p := range parents {
			parentUUIDs[p.ID] = p.UUID
		}
	}

	db := s.db.WithContext(ctx)
	likes, err := countBy(db.Model(&models.ReplyLike{}), "reply_id", ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	liked, err := memberSet(db.Model(&models.ReplyLike{}), "reply_id", viewer, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	quoted := tree.QuoteReplies(quotes)

	views := make([]models.ReplyView, len(replies))
	for i := range replies {
		r := replies[i]
		r.Content = quoted[i].Content

		var parent *string
		if u, ok := parentUUIDs[r.ParentID]; ok {
			parent = &u
		}
		views[i] = r.ToView(parent, likes[r.ID], liked[r.ID])
	}
	return views, nil
}
