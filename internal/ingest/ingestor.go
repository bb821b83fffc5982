package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chime/internal/models"
	"chime/internal/store"
)

// SampleStore is the slice of the telemetry repository the drain
// worker consumes.
type SampleStore interface {
	EnsureSchema(ctx context.Context) error
	InsertSample(ctx context.Context, s *models.TelemetrySample) error
}

// Ingestor absorbs telemetry messages from the bus into durable
// storage. HandleMessage runs on the bus goroutine and only decodes
// and enqueues; Run is the single drain worker that persists, so the
// store sees one writer. Persistence is at-most-once: a failed insert
// drops the sample and moves on.
type Ingestor struct {
	clockID   int64
	queue     *Queue
	samples   SampleStore
	kv        store.KV // nil disables the latest-sample cache
	latestTTL time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewIngestor(clockID int64, queue *Queue, samples SampleStore, kv store.KV, latestTTL time.Duration, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		clockID:   clockID,
		queue:     queue,
		samples:   samples,
		kv:        kv,
		latestTTL: latestTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleMessage is the bus callback: decode, stamp, enqueue. A decode
// failure drops the message without touching the queue; a full queue
// drops the newest sample with a warning.
func (i *Ingestor) HandleMessage(topic string, payload []byte) error {
	var s models.TelemetrySample
	if err := json.Unmarshal(payload, &s); err != nil {
		return fmt.Errorf("failed to decode telemetry payload: %w", err)
	}

	s.ClockID = i.clockID
	s.ReceivedAt = i.now()

	if !i.queue.TryEnqueue(&s) {
		i.logger.Warn("Telemetry queue full, dropping sample",
			zap.String("topic", topic),
			zap.Int("capacity", i.queue.Cap()),
		)
		return nil
	}

	i.logger.Debug("Telemetry sample enqueued",
		zap.String("topic", topic),
		zap.Int("queue_len", i.queue.Len()),
	)

	return nil
}

// Run ensures the schema exists, then drains the queue until the
// context is cancelled. Each sample is handled independently; a store
// error never stops the loop.
func (i *Ingestor) Run(ctx context.Context) error {
	if err := i.samples.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure telemetry schema: %w", err)
	}

	i.logger.Info("Telemetry drain worker started",
		zap.Int("queue_capacity", i.queue.Cap()),
	)

	for {
		s, ok := i.queue.Dequeue(ctx)
		if !ok {
			i.logger.Info("Telemetry drain worker stopped")
			return nil
		}

		if s.Temperature == nil || s.Humidity == nil {
			i.logger.Debug("Dropping incomplete sample")
			continue
		}

		if err := i.samples.InsertSample(ctx, s); err != nil {
			i.logger.Error("Failed to persist telemetry sample", zap.Error(err))
			continue
		}

		i.cacheLatest(ctx, s)

		i.logger.Debug("Telemetry sample persisted",
			zap.Float64("temperature", *s.Temperature),
			zap.Float64("humidity", *s.Humidity),
		)
	}
}

// cacheLatest writes the newest persisted sample for the dashboard.
// Best effort: a cache failure is logged and ignored.
func (i *Ingestor) cacheLatest(ctx context.Context, s *models.TelemetrySample) {
	if i.kv == nil {
		return
	}

	data, err := json.Marshal(s)
	if err != nil {
		i.logger.Warn("Failed to marshal latest sample", zap.Error(err))
		return
	}

	key := store.LatestTelemetryKey(s.ClockID)
	if err := i.kv.Set(ctx, key, string(data), i.latestTTL); err != nil {
		i.logger.Warn("Failed to cache latest sample",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
