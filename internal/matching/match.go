package matching

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/seasonal-allocation/internal/scheduler"
)

var (
	// ErrNoMatch indicates no schedule overlaps the selection.
	ErrNoMatch = errors.New("matching: no schedule matches the selection")
	// ErrAmbiguousMatch indicates more than one schedule overlaps the
	// selection and the caller has to pick one explicitly.
	ErrAmbiguousMatch = errors.New("matching: selection matches more than one schedule")
)

// Windowed is anything that can be placed on the weekly calendar.
type Windowed interface {
	Window() (scheduler.DayWindow, bool)
}

// Match returns the candidates whose window overlaps the selection, in input
// order. Candidates with malformed times never match.
func Match[T Windowed](candidates []T, selection scheduler.DayWindow) []T {
	var matches []T
	for _, candidate := range candidates {
		w, ok := candidate.Window()
		if !ok {
			continue
		}
		if scheduler.IsInsideSelection(selection, w) {
			matches = append(matches, candidate)
		}
	}
	return matches
}

// Single returns the only match. It never picks among several.
func Single[T Windowed](matches []T) (T, error) {
	var zero T
	switch len(matches) {
	case 0:
		return zero, ErrNoMatch
	case 1:
		return matches[0], nil
	default:
		return zero, fmt.Errorf("%w: %d candidates", ErrAmbiguousMatch, len(matches))
	}
}

// IsOutsideOfRequestedTimes reports whether the selection leaves the
// requested window: a different day, an earlier start or a later end. A range
// with malformed times counts as outside. The result is advisory.
func IsOutsideOfRequestedTimes(requested SuitableTimeRange, selection scheduler.DayWindow) bool {
	w, ok := requested.Window()
	if !ok {
		return true
	}
	return outside(w, selection)
}

// IsOutsideOfAllocatedTimes reports whether an allocation strays from what
// was originally requested.
func IsOutsideOfAllocatedTimes(requested SuitableTimeRange, allocated AllocatedTimeSlot) bool {
	req, ok := requested.Window()
	if !ok {
		return true
	}
	got, ok := allocated.Window()
	if !ok {
		return true
	}
	return outside(req, got)
}

func outside(requested, actual scheduler.DayWindow) bool {
	return actual.Day != requested.Day || actual.Start < requested.Start || actual.End > requested.End
}

// DurationBounds limits how long an allocated slot may be.
type DurationBounds struct {
	Min time.Duration
	Max time.Duration
}

// BoundsFromSeconds converts bounds stored in seconds.
func BoundsFromSeconds(minSeconds, maxSeconds int) DurationBounds {
	return DurationBounds{
		Min: time.Duration(minSeconds) * time.Second,
		Max: time.Duration(maxSeconds) * time.Second,
	}
}

// Allows reports whether Min <= d <= Max.
func (b DurationBounds) Allows(d time.Duration) bool {
	return b.Min <= d && d <= b.Max
}
