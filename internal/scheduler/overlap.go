package scheduler

import (
	"time"

	"github.com/example/seasonal-allocation/internal/timeslot"
)

// Interval is a half-open span of absolute time: Start is inclusive and End
// is exclusive.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the interval has no duration. Reversed intervals are
// empty as well.
func (i Interval) Empty() bool {
	return !i.End.After(i.Start)
}

// Extend returns the interval widened by before and after.
func (i Interval) Extend(before, after time.Duration) Interval {
	return Interval{Start: i.Start.Add(-before), End: i.End.Add(after)}
}

// Collides reports whether a and b overlap. Empty intervals never collide,
// not even with themselves, and touching intervals do not collide.
func Collides(a, b Interval) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// DayWindow is a half-open range of decimal hours on a weekday, recurring
// every week.
type DayWindow struct {
	Day   timeslot.Weekday
	Start float64
	End   float64
}

// Empty reports whether the window has no duration.
func (w DayWindow) Empty() bool {
	return w.End <= w.Start
}

// Duration returns the window length.
func (w DayWindow) Duration() time.Duration {
	if w.Empty() {
		return 0
	}
	return time.Duration((w.End - w.Start) * float64(time.Hour))
}

// Overlaps reports whether both windows share a day and an hour range.
func (w DayWindow) Overlaps(other DayWindow) bool {
	if w.Day != other.Day || w.Empty() || other.Empty() {
		return false
	}
	return w.Start < other.End && other.Start < w.End
}

// IsInsideSelection reports whether a weekly range overlaps the selection.
// The days must match first; a range ending exactly when the selection
// begins does not overlap.
func IsInsideSelection(selection, rng DayWindow) bool {
	if selection.Day != rng.Day {
		return false
	}
	return selection.Overlaps(rng)
}
