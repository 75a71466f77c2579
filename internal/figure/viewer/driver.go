package viewer

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/skintrack/internal/monitoring"
	"github.com/banshee-data/skintrack/internal/timeutil"
)

// Driver runs the frame loop: one Session.Tick per clock tick, with the
// measured time between ticks as the frame delta.
type Driver struct {
	session  *Session
	clock    timeutil.Clock
	interval time.Duration
}

// NewDriver creates a driver ticking every interval.
func NewDriver(s *Session, clock timeutil.Clock, interval time.Duration) *Driver {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Driver{session: s, clock: clock, interval: interval}
}

// Run ticks until ctx is cancelled. Frames before the model is ready are
// skipped silently; other frame errors are logged and the loop continues.
func (d *Driver) Run(ctx context.Context) error {
	last := d.clock.Now()
	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C():
			dt := now.Sub(last).Seconds()
			last = now
			if _, err := d.session.Tick(dt); err != nil && !errors.Is(err, ErrNotReady) {
				monitoring.Logf("[viewer] tick: %v", err)
			}
		}
	}
}
