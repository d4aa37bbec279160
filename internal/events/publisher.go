package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/emadnahed/flakeid/internal/metrics"
	"github.com/emadnahed/flakeid/pkg/logger"
)

// StreamPublisher appends events to a Redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
	logger *logger.Logger
}

var _ Publisher = (*StreamPublisher)(nil)

// NewStreamPublisher creates a publisher writing to stream.
func NewStreamPublisher(client *redis.Client, stream string, log *logger.Logger) *StreamPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &StreamPublisher{
		client: client,
		stream: stream,
		logger: log,
	}
}

// PublishProductUpdated appends the event to the stream.
func (p *StreamPublisher) PublishProductUpdated(ctx context.Context, event ProductUpdated) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: event.values(),
	}).Err()
	metrics.RecordEventPublished(TypeProductUpdated, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", TypeProductUpdated, err)
	}

	p.logger.Debug("event published",
		"event_type", TypeProductUpdated,
		"product_id", event.ProductID.String(),
		"stream", p.stream,
	)
	return nil
}

// SyncPublisher runs the handler inline. It is used when no broker is
// configured.
type SyncPublisher struct {
	handler Handler
}

var _ Publisher = (*SyncPublisher)(nil)

// NewSyncPublisher creates a publisher that calls handler directly.
func NewSyncPublisher(handler Handler) *SyncPublisher {
	return &SyncPublisher{handler: handler}
}

// PublishProductUpdated invokes the handler and returns its error.
func (p *SyncPublisher) PublishProductUpdated(ctx context.Context, event ProductUpdated) error {
	if event.Attempt <= 0 {
		event.Attempt = 1
	}
	err := p.handler.Handle(ctx, event)
	metrics.RecordEventPublished(TypeProductUpdated, nil)
	metrics.RecordEventHandled(TypeProductUpdated, err)
	return err
}

// NopPublisher drops every event.
type NopPublisher struct{}

// PublishProductUpdated does nothing.
func (NopPublisher) PublishProductUpdated(context.Context, ProductUpdated) error { return nil }
