package services

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var likesToggled = newCounter("likes.toggled", "Total number of like and favorite toggles")

// toggle flips the existence of a junction row (ArticleLike, CommentLike, ...)
// and reports whether the row exists afterwards.
//
// The target row is locked first so that two concurrent toggles by the same
// user run one after the other and cancel out. The insert itself relies on the
// junction's composite primary key: ON CONFLICT DO NOTHING reports zero rows
// when the pair already exists, in which case the pair is deleted instead.
func toggle(ctx context.Context, db *gorm.DB, target any, targetID uint, row any, kind string) (bool, error) {
	var added bool

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Take(target, targetID).Error; err != nil {
			return err
		}

		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			added = true
			return nil
		}

		added = false
		return tx.Delete(row).Error
	})
	if err != nil {
		return false, err
	}

	if likesToggled != nil {
		likesToggled.Add(ctx, 1, metric.WithAttributes(
			attribute.String("toggle.kind", kind),
			attribute.Bool("toggle.added", added),
		))
	}

	return added, nil
}
