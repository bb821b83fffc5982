package device

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// SimPins is a pin bank for running the controller without hardware.
// Outputs are logged, the display prints once per minute change, and
// button presses are injected via Press (one-shot, consumed by the
// next ReadButton).
type SimPins struct {
	logger *zap.Logger

	mu        sync.Mutex
	alarm     bool
	indicator map[int]bool
	pressed   map[int]bool
	lastShown string
}

func NewSimPins(logger *zap.Logger) *SimPins {
	return &SimPins{
		logger:    logger,
		indicator: make(map[int]bool),
		pressed:   make(map[int]bool),
	}
}

func (p *SimPins) SetAlarmOutput(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alarm != on {
		p.logger.Info("Alarm output", zap.Bool("on", on))
	}
	p.alarm = on
}

func (p *SimPins) SetIndicatorOutput(id int, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.indicator[id] != on {
		p.logger.Info("Indicator output", zap.Int("button", id), zap.Bool("on", on))
	}
	p.indicator[id] = on
}

// Press latches a one-shot button press.
func (p *SimPins) Press(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pressed[id] = true
}

func (p *SimPins) ReadButton(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pressed[id] {
		p.pressed[id] = false
		return true
	}
	return false
}

func (p *SimPins) UpdateDisplay(now time.Time) {
	shown := now.Format("15:04")

	p.mu.Lock()
	defer p.mu.Unlock()
	if shown == p.lastShown {
		return
	}
	p.lastShown = shown
	p.logger.Info("Display", zap.String("time", shown))
}

// AlarmOn reports the current alarm output, for inspection.
func (p *SimPins) AlarmOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alarm
}
