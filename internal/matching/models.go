package matching

import (
	"github.com/example/seasonal-allocation/internal/scheduler"
	"github.com/example/seasonal-allocation/internal/timeslot"
)

// Priority ranks an applicant's suitable time ranges.
type Priority string

const (
	PriorityPrimary   Priority = "PRIMARY"
	PrioritySecondary Priority = "SECONDARY"
)

// SuitableTimeRange is a weekly window an applicant declared as suitable.
// Times use the API format "HH:MM:SS".
type SuitableTimeRange struct {
	ID        string
	SectionID string
	Day       timeslot.Weekday
	BeginTime string
	EndTime   string
	Priority  Priority
}

// Window converts the range into hours. It reports false when the day or
// either time is malformed, or the range is empty.
func (r SuitableTimeRange) Window() (scheduler.DayWindow, bool) {
	return window(r.Day, r.BeginTime, r.EndTime)
}

// AllocatedTimeSlot is the accepted outcome of allocating a suitable time
// range to a reservation unit.
type AllocatedTimeSlot struct {
	ID                  string
	SuitableTimeRangeID string
	ReservationUnitID   string
	Day                 timeslot.Weekday
	BeginTime           string
	EndTime             string
}

// Window converts the allocated slot into hours.
func (a AllocatedTimeSlot) Window() (scheduler.DayWindow, bool) {
	return window(a.Day, a.BeginTime, a.EndTime)
}

// Section is the query-layer view of an application section: its duration
// bounds, reservation unit options, requested ranges and allocations.
type Section struct {
	ID                 string
	Name               string
	MinDurationSeconds int
	MaxDurationSeconds int
	ReservationUnitIDs []string
	Ranges             []SuitableTimeRange
	Allocations        []AllocatedTimeSlot
}

// Bounds returns the section's duration bounds.
func (s Section) Bounds() DurationBounds {
	return BoundsFromSeconds(s.MinDurationSeconds, s.MaxDurationSeconds)
}

// Range looks up a suitable time range by id.
func (s Section) Range(id string) (SuitableTimeRange, bool) {
	for _, r := range s.Ranges {
		if r.ID == id {
			return r, true
		}
	}
	return SuitableTimeRange{}, false
}

// AllocationFor returns the allocation made for a suitable time range.
func (s Section) AllocationFor(rangeID string) (AllocatedTimeSlot, bool) {
	for _, a := range s.Allocations {
		if a.SuitableTimeRangeID == rangeID {
			return a, true
		}
	}
	return AllocatedTimeSlot{}, false
}

func window(day timeslot.Weekday, begin, end string) (scheduler.DayWindow, bool) {
	if !day.Valid() {
		return scheduler.DayWindow{}, false
	}
	start, ok := timeslot.ParseAPITime(begin)
	if !ok {
		return scheduler.DayWindow{}, false
	}
	finish, ok := timeslot.ParseAPIEnd(end)
	if !ok {
		return scheduler.DayWindow{}, false
	}
	w := scheduler.DayWindow{Day: day, Start: start, End: finish}
	if w.Empty() {
		return scheduler.DayWindow{}, false
	}
	return w, true
}
