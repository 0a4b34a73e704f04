package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/media"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ImageVariant asks the worker to pre-render a cached variant of an uploaded image.
// An empty Query means the default thumbnail.
type ImageVariant struct {
	Filename     string            `json:"filename"`
	Query        string            `json:"query,omitempty"`
	TraceContext map[string]string `json:"trace_context"`
}

type VariantRenderer interface {
	RenderVariant(ctx context.Context, filename string, q media.Query) error
}

func NewImageVariantHandler(renderer VariantRenderer) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		start := time.Now()

		var payload ImageVariant
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			recordJobMetrics(ctx, TypeImageVariant, false, time.Since(start))
			return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
		}

		q := media.DefaultThumbnail
		if payload.Query != "" {
			values, err := url.ParseQuery(payload.Query)
			if err == nil {
				q, err = media.ParseQuery(values)
			}
			if err != nil {
				recordJobMetrics(ctx, TypeImageVariant, false, time.Since(start))
				return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
			}
		}

		spanCtx, span := startSpan(payload.TraceContext, "job.image.variant")
		defer span.End()

		span.SetAttributes(
			attribute.String("file.name", payload.Filename),
			attribute.String("media.query", q.Key()),
			attribute.String("job.type", TypeImageVariant),
		)

		// keep the worker's cancellation, but the caller's trace
		ctx = contextWithSpan(ctx, spanCtx)

		if err := renderer.RenderVariant(ctx, payload.Filename, q); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logging.Error(ctx).Err(err).Str("filename", payload.Filename).Msg("image variant failed")
			recordJobMetrics(ctx, TypeImageVariant, false, time.Since(start))
			return err
		}

		span.SetStatus(codes.Ok, "variant rendered")

		logging.Info(ctx).
			Str("filename", payload.Filename).
			Str("variant", media.VariantName(payload.Filename, q)).
			Msg("image variant rendered")

		recordJobMetrics(ctx, TypeImageVariant, true, time.Since(start))
		return nil
	}
}
