package device

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"chime/internal/models"
)

// Phase is the alarm phase of the device. Exactly one phase holds at
// any instant; a restart always begins in Idle (snooze deadlines are
// not persisted).
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRinging
	PhaseSnoozed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRinging:
		return "ringing"
	case PhaseSnoozed:
		return "snoozed"
	default:
		return "unknown"
	}
}

// Button identifiers. Snooze defers the ring, off ends it.
const (
	ButtonSnooze = 1
	ButtonOff    = 2
)

// Pins is the device I/O surface: one alarm output, one indicator LED
// per button, the two buttons and the clock display.
type Pins interface {
	SetAlarmOutput(on bool)
	SetIndicatorOutput(id int, on bool)
	ReadButton(id int) bool
	UpdateDisplay(now time.Time)
}

// Clock abstracts the wall clock so snooze expiry is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }

// Controller drives the device's snooze state machine. Ring events
// arrive asynchronously on the bus goroutine via OnMessage; button
// sampling, display refresh and snooze expiry run on the Run tick.
// A periodic tick stands in for the original tight poll loop so the
// display and time-sync tasks are never starved.
type Controller struct {
	pins         Pins
	clock        Clock
	snoozeDelay  time.Duration
	pollInterval time.Duration
	logger       *zap.Logger

	mu             sync.Mutex
	phase          Phase
	snoozeDeadline time.Time // non-zero iff phase == PhaseSnoozed

	readyOnce sync.Once
	ready     chan struct{}
}

func NewController(pins Pins, clock Clock, snoozeDelay, pollInterval time.Duration, logger *zap.Logger) *Controller {
	c := &Controller{
		pins:         pins,
		clock:        clock,
		snoozeDelay:  snoozeDelay,
		pollInterval: pollInterval,
		logger:       logger,
		phase:        PhaseIdle,
		ready:        make(chan struct{}),
	}

	// Outputs off until the first ring.
	pins.SetAlarmOutput(false)
	pins.SetIndicatorOutput(ButtonSnooze, false)
	pins.SetIndicatorOutput(ButtonOff, false)

	return c
}

// Ready is closed when the first bus message of any kind has arrived,
// so startup can wait for the subscription to be live before settling
// into the steady-state loop.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// SnoozeDeadline returns the pending re-ring time. ok is true only
// while snoozed.
func (c *Controller) SnoozeDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snoozeDeadline, c.phase == PhaseSnoozed
}

// OnMessage is the bus callback. Only the ring sentinel changes state;
// any other payload is a no-op in every phase, since the two physical
// buttons are the sole exit transitions from ringing.
func (c *Controller) OnMessage(topic string, payload []byte) error {
	c.readyOnce.Do(func() { close(c.ready) })

	if string(payload) != models.RingPayload {
		c.logger.Debug("Ignoring non-ring message",
			zap.String("topic", topic),
			zap.Int("payload_size", len(payload)),
		)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.startRinging("ring event")
	return nil
}

// Run drives the periodic tick until the context is cancelled. The
// display is refreshed every tick regardless of phase.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("Device controller started",
		zap.Duration("poll_interval", c.pollInterval),
		zap.Duration("snooze_delay", c.snoozeDelay),
	)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Device controller stopped")
			return nil
		case <-ticker.C:
			c.Step()
		}
	}
}

// Step runs one poll iteration: refresh the display, sample buttons
// while ringing, re-ring once a snooze deadline has passed.
func (c *Controller) Step() {
	now := c.clock.Now()
	c.pins.UpdateDisplay(now)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case PhaseRinging:
		// Snooze wins if both buttons read pressed in one tick.
		if c.pins.ReadButton(ButtonSnooze) {
			c.snooze(now)
		} else if c.pins.ReadButton(ButtonOff) {
			c.turnOff()
		}
	case PhaseSnoozed:
		if !now.Before(c.snoozeDeadline) {
			c.startRinging("snooze expired")
		}
	}
}

// startRinging enters the ringing phase. Callers hold the lock.
func (c *Controller) startRinging(reason string) {
	c.phase = PhaseRinging
	c.snoozeDeadline = time.Time{}
	c.pins.SetAlarmOutput(true)
	c.pins.SetIndicatorOutput(ButtonSnooze, true)
	c.pins.SetIndicatorOutput(ButtonOff, true)
	c.logger.Info("Alarm is ringing", zap.String("reason", reason))
}

// snooze defers the ring without consulting the server. Callers hold
// the lock.
func (c *Controller) snooze(now time.Time) {
	c.phase = PhaseSnoozed
	c.snoozeDeadline = now.Add(c.snoozeDelay)
	c.pins.SetAlarmOutput(false)
	c.pins.SetIndicatorOutput(ButtonSnooze, false)
	c.pins.SetIndicatorOutput(ButtonOff, false)
	c.logger.Info("Alarm snoozed",
		zap.Time("re_ring_at", c.snoozeDeadline),
	)
}

// turnOff ends the alarm completely. Callers hold the lock.
func (c *Controller) turnOff() {
	c.phase = PhaseIdle
	c.snoozeDeadline = time.Time{}
	c.pins.SetAlarmOutput(false)
	c.pins.SetIndicatorOutput(ButtonSnooze, false)
	c.pins.SetIndicatorOutput(ButtonOff, false)
	c.logger.Info("Alarm turned off")
}
