package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const relaySource = "price-tracker"

// RedisClient is the subset of *redis.Client the relay uses.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

type OutboxRepo interface {
	GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
}

// RelayRecorder observes publish attempts. It may be nil.
type RelayRecorder interface {
	ObservePublish(eventType string, err error)
}

// Relay moves outbox events to their Redis streams, where the notification
// service picks up price drops.
type Relay struct {
	redis     RedisClient
	outbox    OutboxRepo
	recorder  RelayRecorder
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	maxLen    int64
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxStreamLen trims streams approximately to this length. Zero keeps
	// everything.
	MaxStreamLen int64
	Recorder     RelayRecorder
}

func NewRelay(outbox OutboxRepo, redisClient RedisClient, logger *slog.Logger, config RelayConfig) *Relay {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	return &Relay{
		redis:     redisClient,
		outbox:    outbox,
		recorder:  config.Recorder,
		logger:    logger.With("component", "relay"),
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
		maxLen:    config.MaxStreamLen,
	}
}

// Start polls the outbox until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting relay",
		"interval", r.interval,
		"batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if _, err := r.ProcessBatch(ctx); err != nil {
		r.logger.Error("failed to process events on startup", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil {
				r.logger.Error("failed to process events", "error", err)
			}
		}
	}
}

// ProcessBatch publishes one batch of due events and returns how many were
// published. A failing event is marked for retry and does not stop the batch.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	events, err := r.outbox.GetPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	published := 0
	for _, event := range events {
		if err := r.processEvent(ctx, event); err != nil {
			r.logger.Error("failed to process event",
				"event_id", event.ID,
				"aggregate_id", event.AggregateID,
				"error", err)
			continue
		}
		published++
	}

	if len(events) > 0 {
		r.logger.Debug("processed outbox batch", "count", len(events), "published", published)
	}
	return published, nil
}

func (r *Relay) processEvent(ctx context.Context, event *OutboxEvent) error {
	err := r.publish(ctx, event)
	if r.recorder != nil {
		r.recorder.ObservePublish(event.EventType, err)
	}
	if err != nil {
		if markErr := r.outbox.MarkFailed(ctx, event.ID, err); markErr != nil {
			r.logger.Error("failed to mark event as failed",
				"event_id", event.ID,
				"error", markErr)
		}
		return err
	}

	if err := r.outbox.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}

	r.logger.Info("event published",
		"event_id", event.ID,
		"event_type", event.EventType,
		"aggregate_id", event.AggregateID,
		"target_stream", event.TargetStream)
	return nil
}

type streamEnvelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     string          `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      streamMetadata  `json:"metadata"`
}

type streamMetadata struct {
	Source     string `json:"source"`
	OutboxID   string `json:"outbox_id"`
	RetryCount int    `json:"retry_count"`
}

func (r *Relay) publish(ctx context.Context, event *OutboxEvent) error {
	if !json.Valid(event.Payload) {
		return fmt.Errorf("%w: payload is not JSON", ErrInvalidEvent)
	}

	data, err := json.Marshal(streamEnvelope{
		ID:            event.ID.String(),
		Type:          event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Timestamp:     event.CreatedAt.Format(time.RFC3339),
		Payload:       event.Payload,
		Metadata: streamMetadata{
			Source:     relaySource,
			OutboxID:   event.ID.String(),
			RetryCount: event.RetryCount,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal stream data: %w", err)
	}

	stream := event.TargetStream
	if stream == "" {
		stream = StreamFor(event.EventType)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data":         string(data),
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID,
			"outbox_id":    event.ID.String(),
			"timestamp":    strconv.FormatInt(event.CreatedAt.UnixNano(), 10),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if _, err := r.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}
