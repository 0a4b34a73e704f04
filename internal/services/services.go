// Package services holds the domain operations behind the HTTP handlers. Every
// service takes its *gorm.DB explicitly and returns *apperr.Error values.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/events"
	"github.com/saxon-wu/living/internal/jobs/tasks"
	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/models"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"
)

var (
	tracer = otel.Tracer("living")
	meter  = otel.Meter("living")
)

var textPolicy = bluemonday.StrictPolicy()

// Notifier delivers comment and reply notifications out of band.
type Notifier interface {
	NotifyComment(ctx context.Context, n tasks.CommentNotification) error
}

type nopNotifier struct{}

func (nopNotifier) NotifyComment(context.Context, tasks.CommentNotification) error { return nil }

func ensureOwnership(actor *models.User, ownerID uint) error {
	if actor == nil {
		return apperr.Unauthorized("authentication required")
	}
	if actor.ID != ownerID {
		return apperr.Forbidden("you are not the owner of this resource")
	}
	return nil
}

// notFoundOr maps a missing row to NotFound(msg) and anything else to Internal.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(msg)
	}
	return apperr.Internal(err)
}

// conflictOr maps a unique violation to Conflict(msg).
func conflictOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict(msg)
	}
	return apperr.Internal(err)
}

// sanitize strips every HTML tag; comments, replies and tag names are plain text.
func sanitize(s string) string {
	return strings.TrimSpace(textPolicy.Sanitize(s))
}

type refCount struct {
	RefID uint
	Total int64
}

// countBy groups base by column and returns the row count per id in ids.
func countBy(base *gorm.DB, column string, ids []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []refCount
	if err := base.
		Select(column+" AS ref_id, COUNT(*) AS total").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, r := range rows {
		out[r.RefID] = r.Total
	}
	return out, nil
}

// memberSet reports which of ids userID has a junction row for.
func memberSet(base *gorm.DB, column string, user *models.User, ids []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(ids))
	if user == nil || len(ids) == 0 {
		return out, nil
	}

	var hits []uint
	if err := base.
		Where("user_id = ? AND "+column+" IN ?", user.ID, ids).
		Pluck(column, &hits).Error; err != nil {
		return nil, err
	}

	for _, id := range hits {
		out[id] = true
	}
	return out, nil
}

func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if err := p.Publish(ctx, e); err != nil {
		logging.Warn(ctx).Err(err).Str("subject", e.Subject).Msg("failed to publish event")
	}
}

func notify(ctx context.Context, n Notifier, payload tasks.CommentNotification) {
	if err := n.NotifyComment(ctx, payload); err != nil {
		logging.Warn(ctx).Err(err).Str("kind", payload.Kind).Msg("failed to enqueue notification")
	}
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func newCounter(name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		logging.Logger().Error().Err(err).Str("counter", name).Msg("failed to create counter")
	}
	return c
}
