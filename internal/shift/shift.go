// Package shift resolves which on-call shift, if any, contains a given moment.
package shift

import (
	"time"

	"github.com/calloutapp/callout/internal/model"
)

// Current returns the first shift whose interval contains now. Intervals are
// half-open [start, end): a shift's end time is not inside it, so adjacent
// shifts never double-count the boundary. A false result is a normal,
// frequent outcome, not an error.
//
// Membership is recomputed on every call; the server's IsActive hint is
// deliberately ignored so a stale hint can never report a finished shift as
// current.
func Current(shifts []model.OnCallShift, now time.Time) (model.OnCallShift, bool) {
	for _, s := range shifts {
		if !now.Before(s.StartTime) && now.Before(s.EndTime) {
			return s, true
		}
	}
	return model.OnCallShift{}, false
}

// Next returns the earliest shift starting after now, for "your next shift
// begins at ..." displays.
func Next(shifts []model.OnCallShift, now time.Time) (model.OnCallShift, bool) {
	var (
		best  model.OnCallShift
		found bool
	)
	for _, s := range shifts {
		if !s.StartTime.After(now) {
			continue
		}
		if !found || s.StartTime.Before(best.StartTime) {
			best = s
			found = true
		}
	}
	return best, found
}
