// Package events publishes domain events (likes, favorites, new comments) to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/saxon-wu/living/internal/logging"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	SubjectArticleCreated   = "living.article.created"
	SubjectArticleLiked     = "living.article.liked"
	SubjectArticleFavorited = "living.article.favorited"
	SubjectCommentCreated   = "living.comment.created"
	SubjectCommentLiked     = "living.comment.liked"
	SubjectReplyCreated     = "living.reply.created"
	SubjectReplyLiked       = "living.reply.liked"
)

type Event struct {
	Subject      string            `json:"subject"`
	ActorUUID    string            `json:"actorUuid"`
	TargetUUID   string            `json:"targetUuid"`
	Active       bool              `json:"active"`
	OccurredAt   time.Time         `json:"occurredAt"`
	TraceContext map[string]string `json:"traceContext,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("living-api"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	e.TraceContext = carrier

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(e.Subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		logging.Logger().Error().Err(err).Msg("failed to drain nats connection")
	}
}

// Subscribe decodes every event published under living.> and hands it to fn.
func Subscribe(conn *nats.Conn, fn func(Event)) (*nats.Subscription, error) {
	return conn.Subscribe("living.>", func(msg *nats.Msg) {
		var e Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			logging.Logger().Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed event")
			return
		}
		fn(e)
	})
}

func (p *NATSPublisher) Conn() *nats.Conn {
	return p.conn
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                               {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Close() {}
