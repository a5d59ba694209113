// Package clock abstracts wall-clock access so expiry math is testable and
// clock failure degrades timers instead of crashing them.
package clock

import "time"

// Clock supplies the current time. Implementations may fail (e.g. a device
// clock source that is temporarily unreadable); callers treat failure as
// degraded mode, not fatal.
type Clock interface {
	Now() (time.Time, error)
}

// System reads the real wall clock. It never fails.
type System struct{}

func NewSystem() *System { return &System{} }

func (*System) Now() (time.Time, error) { return time.Now(), nil }

// Manual is a hand-advanced clock for tests and can be made to fail on
// demand to exercise degraded timer mode.
type Manual struct {
	now time.Time
	err error
}

// NewManual returns a manual clock pinned to start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() (time.Time, error) {
	if m.err != nil {
		return time.Time{}, m.err
	}
	return m.now, nil
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) { m.now = m.now.Add(d) }

// Set pins the clock to t.
func (m *Manual) Set(t time.Time) { m.now = t }

// Fail makes subsequent Now calls return err; pass nil to recover.
func (m *Manual) Fail(err error) { m.err = err }
