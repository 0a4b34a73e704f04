// Package jobs enqueues and serves background tasks on asynq.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/saxon-wu/living/internal/jobs/tasks"
	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/media"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
)

const (
	DefaultQueue = "default"
	MediaQueue   = "media"
)

var (
	tracer       = otel.Tracer("living")
	meter        = otel.Meter("living")
	jobsEnqueued metric.Int64Counter
)

type Client struct {
	client *asynq.Client
}

func NewClient(redisAddr string) (*Client, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})

	var err error
	jobsEnqueued, err = meter.Int64Counter(
		"jobs.enqueued",
		metric.WithDescription("Total number of jobs enqueued"),
	)
	if err != nil {
		logging.Logger().Error().Err(err).Msg("failed to create jobs enqueued counter")
	}

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) NotifyComment(ctx context.Context, n tasks.CommentNotification) error {
	ctx, span := tracer.Start(ctx, "job.enqueue.notification")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("recipient.id", int64(n.RecipientID)),
		attribute.String("notification.kind", n.Kind),
		attribute.String("job.type", tasks.TypeCommentNotification),
	)

	n.TraceContext = traceCarrier(ctx)
	return c.enqueue(ctx, tasks.TypeCommentNotification, n, asynq.Queue(DefaultQueue), asynq.MaxRetry(5))
}

// EnqueueVariant schedules a variant render. A zero query means the default thumbnail.
func (c *Client) EnqueueVariant(ctx context.Context, filename string, q media.Query) error {
	ctx, span := tracer.Start(ctx, "job.enqueue.image_variant")
	defer span.End()

	span.SetAttributes(
		attribute.String("file.name", filename),
		attribute.String("job.type", tasks.TypeImageVariant),
	)

	payload := tasks.ImageVariant{
		Filename:     filename,
		TraceContext: traceCarrier(ctx),
	}
	if !q.IsZero() {
		payload.Query = q.Values().Encode()
	}
	return c.enqueue(ctx, tasks.TypeImageVariant, payload, asynq.Queue(MediaQueue), asynq.MaxRetry(3))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskType, payloadBytes, opts...)
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		logging.Error(ctx).Err(err).Str("job_type", taskType).Msg("failed to enqueue job")
		return err
	}

	if jobsEnqueued != nil {
		jobsEnqueued.Add(ctx, 1, metric.WithAttributes(
			attribute.String("job.type", taskType),
		))
	}

	logging.Info(ctx).
		Str("job_id", info.ID).
		Str("job_type", taskType).
		Str("queue", info.Queue).
		Msg("job enqueued")

	return nil
}

func traceCarrier(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}
