package matching

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/seasonal-allocation/internal/scheduler"
	"github.com/example/seasonal-allocation/internal/timeslot"
)

var (
	// ErrEmptySelection indicates no calendar cells are selected.
	ErrEmptySelection = errors.New("matching: empty selection")
	// ErrMixedDays indicates the selected cells fall on more than one day.
	ErrMixedDays = errors.New("matching: selection spans more than one day")
)

// Selection is the set of calendar cells an operator dragged over. Cells are
// expected to share a day and to be contiguous.
type Selection []timeslot.Key

// Slots decodes the selection, drops duplicate keys and orders the result by
// start time.
func (s Selection) Slots() ([]timeslot.Slot, error) {
	if len(s) == 0 {
		return nil, ErrEmptySelection
	}
	seen := make(map[timeslot.Key]struct{}, len(s))
	slots := make([]timeslot.Slot, 0, len(s))
	for _, key := range s {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		slot, err := timeslot.Decode(key)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Day != slots[j].Day {
			return slots[i].Day < slots[j].Day
		}
		return slots[i].Start() < slots[j].Start()
	})
	return slots, nil
}

// Window returns the span from the first selected cell's start to the last
// selected cell's end.
func (s Selection) Window() (scheduler.DayWindow, error) {
	slots, err := s.Slots()
	if err != nil {
		return scheduler.DayWindow{}, err
	}
	first, last := slots[0], slots[len(slots)-1]
	if first.Day != last.Day {
		return scheduler.DayWindow{}, fmt.Errorf("%w: %s and %s", ErrMixedDays, first.Day, last.Day)
	}
	return scheduler.DayWindow{Day: first.Day, Start: first.Start(), End: last.End()}, nil
}

// Contiguous reports whether the cells form one gapless run on one day.
func (s Selection) Contiguous() bool {
	slots, err := s.Slots()
	if err != nil {
		return false
	}
	for i := 1; i < len(slots); i++ {
		next, ok := slots[i-1].Next()
		if !ok || next != slots[i] {
			return false
		}
	}
	return true
}

// Duration is the number of distinct selected cells times the cell length.
func (s Selection) Duration() time.Duration {
	slots, err := s.Slots()
	if err != nil {
		return 0
	}
	return time.Duration(len(slots)*timeslot.SlotLength) * time.Minute
}

// ValidDuration reports whether the selection length is within bounds.
func (s Selection) ValidDuration(bounds DurationBounds) bool {
	return bounds.Allows(s.Duration())
}
