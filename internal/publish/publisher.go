// Package publish delivers committed ledger events to NATS JetStream
// for downstream consumers (feeds, notifications, analytics).
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"OutcomeLedger/internal/event"
	"OutcomeLedger/internal/observability"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// StreamName holds all outbound ledger events.
const StreamName = "OUTCOME_LEDGER_EVENTS"

// Publisher buffers committed events and publishes them to NATS.
// Enqueue never blocks the request path: when the buffer is full the
// event is dropped and counted. Downstream consumers needing a
// complete record read the ledger_entries table instead.
type Publisher struct {
	js      jetstream.JetStream
	ch      chan event.Event
	metrics *observability.Metrics
	log     zerolog.Logger
}

// NewPublisher creates a publisher with the given buffer capacity.
// metrics may be nil.
func NewPublisher(js jetstream.JetStream, buffer int, metrics *observability.Metrics, log zerolog.Logger) *Publisher {
	return &Publisher{
		js:      js,
		ch:      make(chan event.Event, buffer),
		metrics: metrics,
		log:     log,
	}
}

// Enqueue hands an event to the publish loop without blocking.
func (p *Publisher) Enqueue(evt event.Event) {
	select {
	case p.ch <- evt:
	default:
		if p.metrics != nil {
			p.metrics.PublishDrops.Inc()
		}
		p.log.Warn().Str("type", evt.TypeName).Msg("publish buffer full, event dropped")
	}
}

// Run drains the buffer until ctx is canceled. Publish failures are
// non-fatal.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt := <-p.ch:
			if err := p.publish(ctx, evt); err != nil {
				if p.metrics != nil {
					p.metrics.PublishErrors.Inc()
				}
				p.log.Warn().Err(err).Str("type", evt.TypeName).Msg("outbound publish failed")
				continue
			}
			if p.metrics != nil {
				p.metrics.EventsPublished.Inc()
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, evt event.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = p.js.Publish(ctx, SubjectFor(evt), data)
	return err
}

// SubjectFor builds the subject outcome.ledger.events.{type}[.{market}].
func SubjectFor(evt event.Event) string {
	subject := fmt.Sprintf("outcome.ledger.events.%s", evt.Type)
	if evt.MarketID != "" {
		subject = fmt.Sprintf("%s.%s", subject, evt.MarketID)
	}
	return subject
}

// EnsureStream creates or updates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"outcome.ledger.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
