package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/saxon-wu/living/internal/logging"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	TypeCommentNotification = "notification:comment"
	TypeImageVariant        = "image:variant"
)

var (
	tracer        = otel.Tracer("living-worker")
	meter         = otel.Meter("living-worker")
	jobsCompleted metric.Int64Counter
	jobsFailed    metric.Int64Counter
	jobsDuration  metric.Float64Histogram
)

func init() {
	var err error

	jobsCompleted, err = meter.Int64Counter(
		"jobs.completed",
		metric.WithDescription("Total number of jobs completed successfully"),
	)
	if err != nil {
		logging.Logger().Error().Err(err).Msg("failed to create jobs completed counter")
	}

	jobsFailed, err = meter.Int64Counter(
		"jobs.failed",
		metric.WithDescription("Total number of jobs failed"),
	)
	if err != nil {
		logging.Logger().Error().Err(err).Msg("failed to create jobs failed counter")
	}

	jobsDuration, err = meter.Float64Histogram(
		"jobs.duration_ms",
		metric.WithDescription("Job processing duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		logging.Logger().Error().Err(err).Msg("failed to create jobs duration histogram")
	}
}

// Notification kinds.
const (
	KindArticleComment = "article_comment"
	KindCommentReply   = "comment_reply"
	KindReplyReply     = "reply_reply"
)

// CommentNotification tells RecipientID that someone commented on or replied to their content.
type CommentNotification struct {
	RecipientID  uint              `json:"recipient_id"`
	ActorUUID    string            `json:"actor_uuid"`
	ActorName    string            `json:"actor_name"`
	ArticleUUID  string            `json:"article_uuid"`
	TargetUUID   string            `json:"target_uuid"`
	Kind         string            `json:"kind"`
	Excerpt      string            `json:"excerpt"`
	TraceContext map[string]string `json:"trace_context"`
}

// HandleCommentNotification logs the notification. Delivery channels (mail, push)
// plug in here.
func HandleCommentNotification(ctx context.Context, task *asynq.Task) error {
	start := time.Now()

	var payload CommentNotification
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		recordJobMetrics(ctx, TypeCommentNotification, false, time.Since(start))
		return err
	}

	ctx, span := startSpan(payload.TraceContext, "job.notification.comment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("recipient.id", int64(payload.RecipientID)),
		attribute.String("notification.kind", payload.Kind),
		attribute.String("job.type", TypeCommentNotification),
	)

	logging.Info(ctx).
		Uint("recipient_id", payload.RecipientID).
		Str("actor", payload.ActorName).
		Str("kind", payload.Kind).
		Str("article_uuid", payload.ArticleUUID).
		Str("target_uuid", payload.TargetUUID).
		Str("excerpt", payload.Excerpt).
		Msg("comment notification delivered")

	span.SetStatus(codes.Ok, "notification processed")
	span.SetAttributes(attribute.Bool("job.success", true))

	recordJobMetrics(ctx, TypeCommentNotification, true, time.Since(start))

	return nil
}

func startSpan(traceContext map[string]string, name string) (context.Context, trace.Span) {
	parentCtx := otel.GetTextMapPropagator().Extract(
		context.Background(),
		propagation.MapCarrier(traceContext),
	)
	return tracer.Start(parentCtx, name)
}

func recordJobMetrics(ctx context.Context, jobType string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("job.type", jobType),
	}

	if success {
		if jobsCompleted != nil {
			jobsCompleted.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
	} else {
		if jobsFailed != nil {
			jobsFailed.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
	}

	if jobsDuration != nil {
		jobsDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	}
}

func contextWithSpan(ctx, spanCtx context.Context) context.Context {
	return trace.ContextWithSpan(ctx, trace.SpanFromContext(spanCtx))
}
