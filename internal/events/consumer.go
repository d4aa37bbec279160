package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emadnahed/flakeid/internal/metrics"
	"github.com/emadnahed/flakeid/pkg/logger"
)

// ConsumerConfig configures a StreamConsumer.
type ConsumerConfig struct {
	Stream          string        // stream to read from
	Group           string        // consumer group name
	Consumer        string        // consumer name within the group
	DLQStream       string        // where events go after MaxAttempts failures
	BatchSize       int64         // entries per read
	Block           time.Duration // how long a read waits for new entries
	MaxAttempts     int           // deliveries before an event is dead-lettered
	ClaimIdle       time.Duration // pending time after which another consumer may take an entry
	ReclaimInterval time.Duration // how often idle pending entries are claimed
}

func (c *ConsumerConfig) setDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Block <= 0 {
		c.Block = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.DLQStream == "" {
		c.DLQStream = c.Stream + ".dlq"
	}
	if c.ClaimIdle <= 0 {
		c.ClaimIdle = time.Minute
	}
	if c.ReclaimInterval <= 0 {
		c.ReclaimInterval = 30 * time.Second
	}
}

// settleTimeout bounds the ack or forward that records a handler's outcome
// after Run's context has been cancelled.
const settleTimeout = 5 * time.Second

// StreamConsumer reads events from a Redis stream through a consumer group.
type StreamConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
	logger *logger.Logger
}

// NewStreamConsumer creates the consumer group if needed.
func NewStreamConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig, log *logger.Logger) (*StreamConsumer, error) {
	cfg.setDefaults()
	if log == nil {
		log = logger.Nop()
	}
	c := &StreamConsumer{
		client: client,
		cfg:    cfg,
		logger: log.With("component", "events.consumer", "stream", cfg.Stream),
	}
	if err := c.ensureGroup(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// ensureGroup starts new groups at "0" so entries added before the first
// consumer came up are still delivered.
func (c *StreamConsumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Read returns the next batch of undelivered events. Entries that cannot be
// decoded are acknowledged and dropped.
func (c *StreamConsumer) Read(ctx context.Context) ([]ProductUpdated, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var out []ProductUpdated
	for _, stream := range streams {
		out = append(out, c.decode(ctx, stream.Messages)...)
	}
	return out, nil
}

// ReadPending returns entries already delivered to this consumer but never
// acknowledged, starting after the entry ID after. Pass "0" for the first page.
// The second return value is the ID to continue from, empty once the list is exhausted.
func (c *StreamConsumer) ReadPending(ctx context.Context, after string) ([]ProductUpdated, string, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, after},
		Count:    c.cfg.BatchSize,
		Block:    -1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("reading pending entries: %w", err)
	}

	var (
		out  []ProductUpdated
		next string
	)
	for _, stream := range streams {
		if len(stream.Messages) > 0 {
			next = stream.Messages[len(stream.Messages)-1].ID
		}
		out = append(out, c.decode(ctx, stream.Messages)...)
	}
	return out, next, nil
}

// Reclaim takes over entries that have sat unacknowledged in any consumer of
// the group for at least ClaimIdle, and returns them.
func (c *StreamConsumer) Reclaim(ctx context.Context) ([]ProductUpdated, error) {
	msgs, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  c.cfg.ClaimIdle,
		Start:    "0-0",
		Count:    c.cfg.BatchSize,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("claiming idle entries: %w", err)
	}
	return c.decode(ctx, msgs), nil
}

func (c *StreamConsumer) decode(ctx context.Context, msgs []redis.XMessage) []ProductUpdated {
	out := make([]ProductUpdated, 0, len(msgs))
	for _, msg := range msgs {
		event, err := ParseProductUpdated(msg)
		if err != nil {
			c.logger.Error("dropping malformed message", "message_id", msg.ID, "error", err.Error())
			_ = c.Ack(ctx, msg.ID)
			continue
		}
		out = append(out, event)
	}
	return out
}

// Ack acknowledges a stream entry.
func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, messageID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

// Requeue appends the event again with the attempt counter incremented, then
// acknowledges the original entry. If the append fails the entry stays pending.
func (c *StreamConsumer) Requeue(ctx context.Context, event ProductUpdated, cause error) error {
	event.Attempt++
	values := event.values()
	values["last_error"] = cause.Error()

	if err := c.forward(ctx, c.cfg.Stream, event.MessageID, values); err != nil {
		return fmt.Errorf("requeue: %w", err)
	}
	return nil
}

// SendDLQ appends the event to the dead letter stream, then acknowledges the
// original entry. If the append fails the entry stays pending.
func (c *StreamConsumer) SendDLQ(ctx context.Context, event ProductUpdated, cause error) error {
	values := event.values()
	values["error"] = cause.Error()

	if err := c.forward(ctx, c.cfg.DLQStream, event.MessageID, values); err != nil {
		return fmt.Errorf("dead-letter: %w", err)
	}
	return nil
}

// forward writes values to stream and acks messageID only once the write has
// succeeded. A failed ack after a successful write means the event is seen twice.
func (c *StreamConsumer) forward(ctx context.Context, stream, messageID string, values map[string]any) error {
	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd (stream=%s): %w", stream, err)
	}
	return c.Ack(ctx, messageID)
}

// Run reads and handles events until ctx is done. Entries left pending by an
// earlier run of this consumer are handled first. Entries abandoned by other
// consumers are claimed every ReclaimInterval.
func (c *StreamConsumer) Run(ctx context.Context, handler Handler) error {
	c.logger.Info("consumer started", "group", c.cfg.Group, "consumer", c.cfg.Consumer)
	defer c.logger.Info("consumer stopped")

	c.drainPending(ctx, handler)

	ticker := time.NewTicker(c.cfg.ReclaimInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		select {
		case <-ticker.C:
			c.reclaim(ctx, handler)
		default:
		}

		batch, err := c.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("read failed", "error", err.Error())
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		c.handleBatch(ctx, handler, batch)
	}
}

func (c *StreamConsumer) drainPending(ctx context.Context, handler Handler) {
	after := "0"
	for ctx.Err() == nil {
		batch, next, err := c.ReadPending(ctx, after)
		if err != nil {
			c.logger.Error("reading pending entries failed", "error", err.Error())
			return
		}
		if next == "" {
			return
		}
		if len(batch) > 0 {
			c.logger.Info("redelivering pending entries", "count", len(batch))
		}
		c.handleBatch(ctx, handler, batch)
		after = next
	}
}

func (c *StreamConsumer) reclaim(ctx context.Context, handler Handler) {
	batch, err := c.Reclaim(ctx)
	if err != nil {
		c.logger.Error("reclaim failed", "error", err.Error())
		return
	}
	if len(batch) > 0 {
		c.logger.Info("reclaimed idle entries", "count", len(batch))
	}
	c.handleBatch(ctx, handler, batch)
}

// handleBatch stops at cancellation. Unhandled entries stay pending for the
// next run to pick up.
func (c *StreamConsumer) handleBatch(ctx context.Context, handler Handler, batch []ProductUpdated) {
	for _, event := range batch {
		if ctx.Err() != nil {
			return
		}
		c.process(ctx, handler, event)
	}
}

func (c *StreamConsumer) process(ctx context.Context, handler Handler, event ProductUpdated) {
	err := handler.Handle(ctx, event)
	metrics.RecordEventHandled(TypeProductUpdated, err)

	log := c.logger.With("message_id", event.MessageID, "product_id", event.ProductID.String(), "attempt", event.Attempt)

	if err != nil && ctx.Err() != nil {
		log.Warn("handling interrupted, leaving entry pending", "error", err.Error())
		return
	}

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	switch {
	case err == nil:
		if ackErr := c.Ack(settleCtx, event.MessageID); ackErr != nil {
			log.Error("ack failed", "error", ackErr.Error())
		}
	case event.Attempt >= c.cfg.MaxAttempts:
		log.Error("event failed permanently", "error", err.Error())
		if dlqErr := c.SendDLQ(settleCtx, event, err); dlqErr != nil {
			log.Error("dead-lettering failed, entry left pending", "error", dlqErr.Error())
		}
	default:
		log.Warn("event failed, requeueing", "error", err.Error())
		if reqErr := c.Requeue(settleCtx, event, err); reqErr != nil {
			log.Error("requeue failed, entry left pending", "error", reqErr.Error())
		}
	}
}
