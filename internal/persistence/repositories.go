package persistence

import (
	"context"
	"time"
)

// SectionRepository stores application sections and their requested ranges.
type SectionRepository interface {
	CreateSection(ctx context.Context, section ApplicationSection) error
	GetSection(ctx context.Context, id string) (ApplicationSection, error)
	UpdateSectionStatus(ctx context.Context, id string, status SectionStatus, applicationStatus ApplicationStatus) error
	CreateSuitableTimeRange(ctx context.Context, r SuitableTimeRange) error
	GetSuitableTimeRange(ctx context.Context, id string) (SuitableTimeRange, error)
	ListSuitableTimeRanges(ctx context.Context, sectionID string) ([]SuitableTimeRange, error)
}

// AllocationRepository stores allocated time slots. CreateAllocation returns
// ErrDuplicate when the range is already allocated.
type AllocationRepository interface {
	CreateAllocation(ctx context.Context, slot AllocatedTimeSlot) error
	GetAllocation(ctx context.Context, id string) (AllocatedTimeSlot, error)
	DeleteAllocation(ctx context.Context, id string) error
	ListAllocationsForSection(ctx context.Context, sectionID string) ([]AllocatedTimeSlot, error)
	ListAllocationsForUnitDay(ctx context.Context, reservationUnitID string, day int) ([]AllocatedTimeSlot, error)
}

// ReservationFilter narrows reservation queries to a unit and a time window.
// Zero times leave that side open.
type ReservationFilter struct {
	ReservationUnitID string
	From              time.Time
	To                time.Time
}

// ReservationRepository stores series and reservations.
type ReservationRepository interface {
	CreateSeries(ctx context.Context, series ReservationSeries, occurrences []Reservation) error
	GetSeries(ctx context.Context, id string) (ReservationSeries, error)
	ListSeriesReservations(ctx context.Context, seriesID string) ([]Reservation, error)
	CreateReservation(ctx context.Context, r Reservation) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	UpdateReservation(ctx context.Context, r Reservation) error
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
}
