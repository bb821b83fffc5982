package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chime/internal/models"
)

// AlarmStore is the slice of the alarm repository the scheduler
// consumes: read the nearest candidate, retire the one that fired.
type AlarmStore interface {
	FindNearestDue(ctx context.Context, date, tm string) (*models.AlarmRecord, error)
	Retire(ctx context.Context, id int64) (bool, error)
}

// Publisher sends ring notifications to the bus.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Scheduler polls the alarm table on a fixed period and announces due
// alarms on the ring topic. It is the only component that flips
// enabled to false, and it runs as a single instance; retirement is
// still a conditional update so an overlapping tick cannot double-fire
// a record.
type Scheduler struct {
	store    AlarmStore
	pub      Publisher
	topic    string
	qos      byte
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func New(store AlarmStore, pub Publisher, topic string, qos byte, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		pub:      pub,
		topic:    topic,
		qos:      qos,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run ticks until the context is cancelled. Iterations are short and
// never carry state across, so cancellation only happens between
// ticks.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Alarm scheduler started",
		zap.String("topic", s.topic),
		zap.Duration("poll_interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Alarm scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one poll cycle. The wall clock is truncated to the whole
// minute before matching, so a tick landing a few seconds after the
// alarm minute began still fires it. Store failures skip the cycle;
// the next tick retries with no backoff since the period is short and
// fixed.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().Truncate(time.Minute)
	date := now.Format("2006-01-02")
	tm := now.Format("15:04:05")

	rec, err := s.store.FindNearestDue(ctx, date, tm)
	if err != nil {
		s.logger.Warn("Failed to query nearest alarm, skipping tick", zap.Error(err))
		return
	}

	if rec == nil {
		s.logger.Debug("No alarms scheduled", zap.String("date", date))
		return
	}

	if rec.Date != date || rec.Time != tm {
		s.logger.Debug("Next alarm is in the future",
			zap.Int64("alarm_id", rec.ID),
			zap.String("alarm_date", rec.Date),
			zap.String("alarm_time", rec.Time),
		)
		return
	}

	// Publish before retiring: an unannounced retirement would
	// silently eat the alarm, while an unretired announcement is
	// caught by the conditional update on a later tick.
	if err := s.pub.Publish(s.topic, s.qos, false, []byte(models.RingPayload)); err != nil {
		s.logger.Error("Failed to publish ring event", zap.Error(err))
		return
	}

	retired, err := s.store.Retire(ctx, rec.ID)
	if err != nil {
		// Best effort: the ring is already out, the record stays
		// enabled and may ring again within this minute.
		s.logger.Error("Failed to retire fired alarm", zap.Int64("alarm_id", rec.ID), zap.Error(err))
		return
	}
	if !retired {
		s.logger.Debug("Alarm already retired", zap.Int64("alarm_id", rec.ID))
		return
	}

	s.logger.Info("Alarm fired",
		zap.Int64("alarm_id", rec.ID),
		zap.Int64("clock_id", rec.ClockID),
		zap.String("alarm_time", rec.Time),
		zap.String("alarm_date", rec.Date),
	)
}
