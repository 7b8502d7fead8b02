package skedge

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// FakeClock is a Clock that only moves when advanced.
type FakeClock interface {
	Clock
	Advance(d time.Duration)
}

// RealClock returns the wall clock.
func RealClock() Clock { return clockwork.NewRealClock() }

// NewFakeClock returns a clock frozen at t.
func NewFakeClock(t time.Time) FakeClock { return clockwork.NewFakeClockAt(t) }

// InLocation reports c's time in loc. A nil loc returns c unchanged.
func InLocation(c Clock, loc *time.Location) Clock {
	if loc == nil {
		return c
	}
	return zonedClock{base: c, loc: loc}
}

type zonedClock struct {
	base Clock
	loc  *time.Location
}

func (z zonedClock) Now() time.Time { return z.base.Now().In(z.loc) }

// timerClock is implemented by every clockwork.Clock.
type timerClock interface {
	NewTimer(d time.Duration) clockwork.Timer
}

func (z zonedClock) NewTimer(d time.Duration) clockwork.Timer { return newTimer(z.base, d) }

func newTimer(c Clock, d time.Duration) clockwork.Timer {
	if tc, ok := c.(timerClock); ok {
		return tc.NewTimer(d)
	}
	return clockwork.NewRealClock().NewTimer(d)
}

// sleep waits d on c, or until ctx is done.
func sleep(ctx context.Context, c Clock, d time.Duration) error {
	t := newTimer(c, d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}
