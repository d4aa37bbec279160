// Package events publishes and consumes domain events over Redis Streams.
package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emadnahed/flakeid/internal/idgen"
)

// TypeProductUpdated identifies ProductUpdated messages on the stream.
const TypeProductUpdated = "product.updated"

// ErrMalformedMessage is returned for stream entries that cannot be decoded.
var ErrMalformedMessage = errors.New("malformed event message")

// ProductUpdated is emitted after a product has been modified.
type ProductUpdated struct {
	ProductID idgen.ID
	UpdatedAt time.Time
	// Attempt counts deliveries, starting at 1.
	Attempt int
	// MessageID is the stream entry ID. Empty until the event is read back.
	MessageID string
}

// Handler processes ProductUpdated events.
type Handler interface {
	Handle(ctx context.Context, event ProductUpdated) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event ProductUpdated) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, event ProductUpdated) error {
	return f(ctx, event)
}

// Publisher delivers events to their consumers.
type Publisher interface {
	PublishProductUpdated(ctx context.Context, event ProductUpdated) error
}

func (e ProductUpdated) values() map[string]any {
	attempt := e.Attempt
	if attempt <= 0 {
		attempt = 1
	}
	return map[string]any{
		"event_type": TypeProductUpdated,
		"product_id": e.ProductID.String(),
		"updated_at": e.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"attempt":    attempt,
	}
}

// ParseProductUpdated decodes a stream entry.
func ParseProductUpdated(msg redis.XMessage) (ProductUpdated, error) {
	eventType := stringValue(msg.Values, "event_type")
	if eventType != TypeProductUpdated {
		return ProductUpdated{}, fmt.Errorf("%w: unexpected event_type %q", ErrMalformedMessage, eventType)
	}

	rawID, ok := msg.Values["product_id"]
	if !ok {
		return ProductUpdated{}, fmt.Errorf("%w: missing product_id", ErrMalformedMessage)
	}
	productID, err := idgen.ParseID(fmt.Sprint(rawID))
	if err != nil {
		return ProductUpdated{}, fmt.Errorf("%w: product_id: %w", ErrMalformedMessage, err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, stringValue(msg.Values, "updated_at"))
	if err != nil {
		return ProductUpdated{}, fmt.Errorf("%w: updated_at: %w", ErrMalformedMessage, err)
	}

	attempt := 1
	if raw := stringValue(msg.Values, "attempt"); raw != "" {
		attempt, err = strconv.Atoi(raw)
		if err != nil {
			return ProductUpdated{}, fmt.Errorf("%w: attempt: %w", ErrMalformedMessage, err)
		}
	}

	return ProductUpdated{
		ProductID: productID,
		UpdatedAt: updatedAt,
		Attempt:   attempt,
		MessageID: msg.ID,
	}, nil
}

func stringValue(values map[string]any, key string) string {
	raw, ok := values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}
