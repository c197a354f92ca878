package application

import (
	"time"

	"github.com/example/seasonal-allocation/internal/persistence"
	"github.com/example/seasonal-allocation/internal/scheduler"
	"github.com/example/seasonal-allocation/internal/timeslot"
)

// CreateAllocationInput captures an allocation request. Times are "HH:MM" or
// "HH:MM:SS"; an end of "00:00" means midnight at the end of the day.
type CreateAllocationInput struct {
	SuitableTimeRangeID string
	ReservationUnitID   string
	Day                 timeslot.Weekday
	BeginTime           string
	EndTime             string
	// Force skips the overlap check against other allocations of the unit.
	Force bool
}

// Reservation is a dated booking of a reservation unit.
type Reservation struct {
	ID                string
	SeriesID          string
	ReservationUnitID string
	Index             int
	Name              string
	Description       string
	Memo              string
	Begin             time.Time
	End               time.Time
	BufferBefore      time.Duration
	BufferAfter       time.Duration
	State             scheduler.ReservationState
	Type              scheduler.ReservationType
	UpdatedAt         time.Time
}

func (r Reservation) occupancy() scheduler.Reservation {
	return scheduler.Reservation{
		ID:           r.ID,
		Begin:        r.Begin,
		End:          r.End,
		BufferBefore: r.BufferBefore,
		BufferAfter:  r.BufferAfter,
		State:        r.State,
		Type:         r.Type,
	}
}

func reservationFromRecord(rec persistence.Reservation) Reservation {
	return Reservation{
		ID:                rec.ID,
		SeriesID:          rec.SeriesID,
		ReservationUnitID: rec.ReservationUnitID,
		Index:             rec.Index,
		Name:              rec.Name,
		Description:       rec.Description,
		Memo:              rec.Memo,
		Begin:             rec.Begin,
		End:               rec.End,
		BufferBefore:      rec.BufferBefore,
		BufferAfter:       rec.BufferAfter,
		State:             scheduler.ReservationState(rec.State),
		Type:              scheduler.ReservationType(rec.Type),
		UpdatedAt:         rec.UpdatedAt,
	}
}

func (r Reservation) record() persistence.Reservation {
	return persistence.Reservation{
		ID:                r.ID,
		SeriesID:          r.SeriesID,
		ReservationUnitID: r.ReservationUnitID,
		Index:             r.Index,
		Name:              r.Name,
		Description:       r.Description,
		Memo:              r.Memo,
		Begin:             r.Begin,
		End:               r.End,
		BufferBefore:      r.BufferBefore,
		BufferAfter:       r.BufferAfter,
		State:             string(r.State),
		Type:              string(r.Type),
		UpdatedAt:         r.UpdatedAt,
	}
}

// Series is a recurring reservation rule with its occurrences.
type Series struct {
	ID                string
	ReservationUnitID string
	Name              string
	Description       string
	Weekdays          []timeslot.Weekday
	BeginTime         string
	EndTime           string
	StartsOn          time.Time
	EndsOn            time.Time
	IntervalWeeks     int
	Occurrences       []Reservation
}

// CreateSeriesParams wraps the data required to create a recurring series.
type CreateSeriesParams struct {
	ReservationUnitID string
	Name              string
	Description       string
	Weekdays          []timeslot.Weekday
	BeginTime         string
	EndTime           string
	StartsOn          time.Time
	EndsOn            time.Time
	IntervalWeeks     int
	SkipDates         []time.Time
	BufferBefore      time.Duration
	BufferAfter       time.Duration
	Type              scheduler.ReservationType
}

// EditReservationParams changes one reservation. Nil fields are left as is.
type EditReservationParams struct {
	ReservationID string
	Name          *string
	Description   *string
	Memo          *string
	BufferBefore  *time.Duration
	BufferAfter   *time.Duration
}

// CollisionQuery asks whether a proposed time fits a reservation unit.
type CollisionQuery struct {
	ReservationUnitID string
	Begin             time.Time
	End               time.Time
	BufferBefore      time.Duration
	BufferAfter       time.Duration
	// ExcludeID skips the reservation being edited.
	ExcludeID string
}

// OccurrenceCollision pairs a proposed occurrence with what it overlaps.
type OccurrenceCollision struct {
	Index int
	Begin time.Time
	End   time.Time
	With  []scheduler.Collision
}
