package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/seasonal-allocation/internal/matching"
	"github.com/example/seasonal-allocation/internal/persistence"
	"github.com/example/seasonal-allocation/internal/scheduler"
	"github.com/example/seasonal-allocation/internal/timeslot"
)

var (
	sectionCounter     uint64
	rangeCounter       uint64
	reservationCounter uint64
)

var seasonStart = time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

// SeasonStart is the Monday fixtures anchor dates to.
func SeasonStart() time.Time {
	return seasonStart
}

// ----------------------------- Section fixtures -----------------------------

// SectionFixture is an application section in allocation, with one hour to
// three hour slots and two reservation unit options by default.
type SectionFixture struct {
	ID                 string
	ApplicationID      string
	Name               string
	Status             persistence.SectionStatus
	ApplicationStatus  persistence.ApplicationStatus
	MinDuration        time.Duration
	MaxDuration        time.Duration
	ReservationUnitIDs []string
	Ranges             []RangeFixture
}

// SectionOption configures a SectionFixture.
type SectionOption func(*SectionFixture)

// NewSectionFixture returns a section fixture with optional overrides.
func NewSectionFixture(opts ...SectionOption) SectionFixture {
	idx := atomic.AddUint64(&sectionCounter, 1)
	fixture := SectionFixture{
		ID:                 fmt.Sprintf("section-%03d", idx),
		ApplicationID:      fmt.Sprintf("application-%03d", idx),
		Name:               fmt.Sprintf("Section %03d", idx),
		Status:             persistence.SectionUnallocated,
		ApplicationStatus:  persistence.ApplicationInAllocation,
		MinDuration:        time.Hour,
		MaxDuration:        3 * time.Hour,
		ReservationUnitIDs: []string{"unit-hall", "unit-field"},
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	for i := range fixture.Ranges {
		fixture.Ranges[i].SectionID = fixture.ID
	}
	return fixture
}

// WithSectionID overrides the generated id.
func WithSectionID(id string) SectionOption {
	return func(f *SectionFixture) { f.ID = id }
}

// WithStatuses sets the section and application statuses.
func WithStatuses(section persistence.SectionStatus, application persistence.ApplicationStatus) SectionOption {
	return func(f *SectionFixture) {
		f.Status = section
		f.ApplicationStatus = application
	}
}

// WithDurationBounds sets the slot duration bounds.
func WithDurationBounds(minDuration, maxDuration time.Duration) SectionOption {
	return func(f *SectionFixture) {
		f.MinDuration = minDuration
		f.MaxDuration = maxDuration
	}
}

// WithReservationUnits replaces the unit options.
func WithReservationUnits(ids ...string) SectionOption {
	return func(f *SectionFixture) { f.ReservationUnitIDs = append([]string(nil), ids...) }
}

// WithRanges attaches suitable time ranges.
func WithRanges(ranges ...RangeFixture) SectionOption {
	return func(f *SectionFixture) { f.Ranges = append(f.Ranges, ranges...) }
}

// Record returns the section as stored.
func (f SectionFixture) Record() persistence.ApplicationSection {
	return persistence.ApplicationSection{
		ID:                 f.ID,
		ApplicationID:      f.ApplicationID,
		Name:               f.Name,
		Status:             f.Status,
		ApplicationStatus:  f.ApplicationStatus,
		MinDurationSeconds: int(f.MinDuration / time.Second),
		MaxDurationSeconds: int(f.MaxDuration / time.Second),
		ReservationUnitIDs: append([]string(nil), f.ReservationUnitIDs...),
		CreatedAt:          seasonStart,
		UpdatedAt:          seasonStart,
	}
}

// View returns the query view of the section with no allocations.
func (f SectionFixture) View() matching.Section {
	view := matching.Section{
		ID:                 f.ID,
		Name:               f.Name,
		MinDurationSeconds: int(f.MinDuration / time.Second),
		MaxDurationSeconds: int(f.MaxDuration / time.Second),
		ReservationUnitIDs: append([]string(nil), f.ReservationUnitIDs...),
	}
	for _, r := range f.Ranges {
		view.Ranges = append(view.Ranges, r.View())
	}
	return view
}

// ----------------------------- Range fixtures -----------------------------

// RangeFixture is a suitable time range.
type RangeFixture struct {
	ID        string
	SectionID string
	Day       timeslot.Weekday
	BeginTime string
	EndTime   string
	Priority  matching.Priority
}

// NewRangeFixture returns a primary range on day from begin to end ("HH:MM:SS").
func NewRangeFixture(day timeslot.Weekday, begin, end string) RangeFixture {
	idx := atomic.AddUint64(&rangeCounter, 1)
	return RangeFixture{
		ID:        fmt.Sprintf("range-%03d", idx),
		Day:       day,
		BeginTime: begin,
		EndTime:   end,
		Priority:  matching.PriorityPrimary,
	}
}

// WithID returns a copy with the given id.
func (f RangeFixture) WithID(id string) RangeFixture {
	f.ID = id
	return f
}

// Record returns the range as stored.
func (f RangeFixture) Record() persistence.SuitableTimeRange {
	return persistence.SuitableTimeRange{
		ID:        f.ID,
		SectionID: f.SectionID,
		Day:       int(f.Day),
		BeginTime: f.BeginTime,
		EndTime:   f.EndTime,
		Priority:  string(f.Priority),
	}
}

// View returns the range in the matcher's form.
func (f RangeFixture) View() matching.SuitableTimeRange {
	return matching.SuitableTimeRange{
		ID:        f.ID,
		SectionID: f.SectionID,
		Day:       f.Day,
		BeginTime: f.BeginTime,
		EndTime:   f.EndTime,
		Priority:  f.Priority,
	}
}

// ----------------------------- Reservation fixtures -----------------------------

// ReservationFixture is a confirmed one hour reservation at SeasonStart.
type ReservationFixture struct {
	ID                string
	SeriesID          string
	ReservationUnitID string
	Index             int
	Begin             time.Time
	End               time.Time
	BufferBefore      time.Duration
	BufferAfter       time.Duration
	State             scheduler.ReservationState
	Type              scheduler.ReservationType
}

// ReservationOption configures a ReservationFixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a reservation fixture with optional overrides.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	fixture := ReservationFixture{
		ID:                fmt.Sprintf("reservation-%03d", idx),
		ReservationUnitID: "unit-hall",
		Begin:             seasonStart.Add(8 * time.Hour),
		End:               seasonStart.Add(9 * time.Hour),
		State:             scheduler.StateConfirmed,
		Type:              scheduler.TypeNormal,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated id.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) { f.ID = id }
}

// WithReservationUnit sets the reserved unit.
func WithReservationUnit(id string) ReservationOption {
	return func(f *ReservationFixture) { f.ReservationUnitID = id }
}

// WithTimes sets begin and end.
func WithTimes(begin, end time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.Begin = begin
		f.End = end
	}
}

// WithBuffers sets the buffers around the reservation.
func WithBuffers(before, after time.Duration) ReservationOption {
	return func(f *ReservationFixture) {
		f.BufferBefore = before
		f.BufferAfter = after
	}
}

// WithState sets the reservation state.
func WithState(state scheduler.ReservationState) ReservationOption {
	return func(f *ReservationFixture) { f.State = state }
}

// WithSeries places the reservation in a series at index.
func WithSeries(seriesID string, index int) ReservationOption {
	return func(f *ReservationFixture) {
		f.SeriesID = seriesID
		f.Index = index
	}
}

// Record returns the reservation as stored.
func (f ReservationFixture) Record() persistence.Reservation {
	return persistence.Reservation{
		ID:                f.ID,
		SeriesID:          f.SeriesID,
		ReservationUnitID: f.ReservationUnitID,
		Index:             f.Index,
		Begin:             f.Begin,
		End:               f.End,
		BufferBefore:      f.BufferBefore,
		BufferAfter:       f.BufferAfter,
		State:             string(f.State),
		Type:              string(f.Type),
		UpdatedAt:         seasonStart,
	}
}

// Occupancy returns the reservation in the collision engine's form.
func (f ReservationFixture) Occupancy() scheduler.Reservation {
	return scheduler.Reservation{
		ID:           f.ID,
		Begin:        f.Begin,
		End:          f.End,
		BufferBefore: f.BufferBefore,
		BufferAfter:  f.BufferAfter,
		State:        f.State,
		Type:         f.Type,
	}
}
