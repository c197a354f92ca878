package persistence

import "time"

// ApplicationStatus is the lifecycle state of a seasonal application.
type ApplicationStatus string

const (
	ApplicationDraft        ApplicationStatus = "DRAFT"
	ApplicationReceived     ApplicationStatus = "RECEIVED"
	ApplicationInAllocation ApplicationStatus = "IN_ALLOCATION"
	ApplicationHandled      ApplicationStatus = "HANDLED"
)

// SectionStatus is the allocation state of an application section.
type SectionStatus string

const (
	SectionUnallocated  SectionStatus = "UNALLOCATED"
	SectionInAllocation SectionStatus = "IN_ALLOCATION"
	SectionDeclined     SectionStatus = "DECLINED"
)

// ApplicationSection is one block of an application: how long each slot
// should last and which reservation units it may go to.
type ApplicationSection struct {
	ID                 string
	ApplicationID      string
	Name               string
	Status             SectionStatus
	ApplicationStatus  ApplicationStatus
	MinDurationSeconds int
	MaxDurationSeconds int
	ReservationUnitIDs []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SuitableTimeRange is a weekly window requested by the applicant. Day is
// 0 for Monday; times are "HH:MM:SS".
type SuitableTimeRange struct {
	ID        string
	SectionID string
	Day       int
	BeginTime string
	EndTime   string
	Priority  string
}

// AllocatedTimeSlot records a suitable time range granted to a unit. A range
// holds at most one allocation.
type AllocatedTimeSlot struct {
	ID                  string
	SuitableTimeRangeID string
	ReservationUnitID   string
	Day                 int
	BeginTime           string
	EndTime             string
	CreatedAt           time.Time
}

// ReservationSeries is a recurring reservation rule for one unit.
type ReservationSeries struct {
	ID                string
	ReservationUnitID string
	Name              string
	Description       string
	Weekdays          []int
	BeginTime         string
	EndTime           string
	StartsOn          time.Time
	EndsOn            time.Time
	IntervalWeeks     int
	CreatedAt         time.Time
}

// Reservation is a dated booking of a unit, standalone or one occurrence of
// a series.
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
	State             string
	Type              string
	UpdatedAt         time.Time
}
