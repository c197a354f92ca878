package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/seasonal-allocation/internal/matching"
	"github.com/example/seasonal-allocation/internal/persistence"
	"github.com/example/seasonal-allocation/internal/scheduler"
	"github.com/example/seasonal-allocation/internal/timeslot"
)

// SectionStore captures the section persistence needed by the allocation rules.
type SectionStore interface {
	GetSection(ctx context.Context, id string) (persistence.ApplicationSection, error)
	UpdateSectionStatus(ctx context.Context, id string, status persistence.SectionStatus, applicationStatus persistence.ApplicationStatus) error
	GetSuitableTimeRange(ctx context.Context, id string) (persistence.SuitableTimeRange, error)
	ListSuitableTimeRanges(ctx context.Context, sectionID string) ([]persistence.SuitableTimeRange, error)
}

// AllocationStore captures the allocation persistence needed by the service.
type AllocationStore interface {
	CreateAllocation(ctx context.Context, slot persistence.AllocatedTimeSlot) error
	GetAllocation(ctx context.Context, id string) (persistence.AllocatedTimeSlot, error)
	DeleteAllocation(ctx context.Context, id string) error
	ListAllocationsForSection(ctx context.Context, sectionID string) ([]persistence.AllocatedTimeSlot, error)
	ListAllocationsForUnitDay(ctx context.Context, reservationUnitID string, day int) ([]persistence.AllocatedTimeSlot, error)
}

// AllocationService is the authority on allocation rules. It is the
// counterpart the allocation workflow talks to.
type AllocationService struct {
	sections    SectionStore
	allocations AllocationStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	// mu serialises rule checks with the insert that follows them.
	mu sync.Mutex
}

// NewAllocationService wires the allocation rules.
func NewAllocationService(sections SectionStore, allocations AllocationStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AllocationService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &AllocationService{
		sections:    sections,
		allocations: allocations,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *AllocationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AllocationService", operation, attrs...)
}

// Section returns the query view of a section with its ranges and allocations.
func (s *AllocationService) Section(ctx context.Context, sectionID string) (matching.Section, error) {
	if s == nil || s.sections == nil || s.allocations == nil {
		return matching.Section{}, fmt.Errorf("AllocationService is not configured")
	}

	section, err := s.sections.GetSection(ctx, sectionID)
	if err != nil {
		return matching.Section{}, mapRepoError(err)
	}
	ranges, err := s.sections.ListSuitableTimeRanges(ctx, sectionID)
	if err != nil {
		return matching.Section{}, mapRepoError(err)
	}
	allocated, err := s.allocations.ListAllocationsForSection(ctx, sectionID)
	if err != nil {
		return matching.Section{}, mapRepoError(err)
	}

	view := matching.Section{
		ID:                 section.ID,
		Name:               section.Name,
		MinDurationSeconds: section.MinDurationSeconds,
		MaxDurationSeconds: section.MaxDurationSeconds,
		ReservationUnitIDs: slices.Clone(section.ReservationUnitIDs),
		Ranges:             make([]matching.SuitableTimeRange, 0, len(ranges)),
		Allocations:        make([]matching.AllocatedTimeSlot, 0, len(allocated)),
	}
	for _, r := range ranges {
		view.Ranges = append(view.Ranges, matching.SuitableTimeRange{
			ID:        r.ID,
			SectionID: r.SectionID,
			Day:       timeslot.Weekday(r.Day),
			BeginTime: r.BeginTime,
			EndTime:   r.EndTime,
			Priority:  matching.Priority(r.Priority),
		})
	}
	for _, a := range allocated {
		view.Allocations = append(view.Allocations, allocationView(a))
	}
	return view, nil
}

// CreateAllocation allocates a suitable time range to a reservation unit.
// Rule violations are returned as *RejectionError.
func (s *AllocationService) CreateAllocation(ctx context.Context, input CreateAllocationInput) (slot matching.AllocatedTimeSlot, err error) {
	if s == nil || s.sections == nil || s.allocations == nil {
		err = fmt.Errorf("AllocationService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateAllocation",
		"suitable_time_range_id", input.SuitableTimeRangeID,
		"reservation_unit_id", input.ReservationUnitID,
		"force", input.Force,
	)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "allocation refused", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("allocation_id", slot.ID).InfoContext(ctx, "allocation created")
	}()

	window, vErr := validateAllocationInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rng, err := s.sections.GetSuitableTimeRange(ctx, input.SuitableTimeRangeID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	section, err := s.sections.GetSection(ctx, rng.SectionID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if !slices.Contains(section.ReservationUnitIDs, input.ReservationUnitID) {
		v := &ValidationError{}
		v.add("reservation_unit_id", "reservation unit is not an option of the section")
		err = v
		return
	}

	if err = s.checkRules(ctx, section, rng, input, window); err != nil {
		return
	}

	record := persistence.AllocatedTimeSlot{
		ID:                  s.idGenerator(),
		SuitableTimeRangeID: rng.ID,
		ReservationUnitID:   input.ReservationUnitID,
		Day:                 int(window.Day),
		BeginTime:           apiClock(window.Start),
		EndTime:             apiClock(window.End),
		CreatedAt:           s.now(),
	}
	if err = s.allocations.CreateAllocation(ctx, record); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			err = reject(MsgAlreadyAllocated)
			return
		}
		err = mapRepoError(err)
		return
	}

	if section.Status == persistence.SectionUnallocated {
		if statusErr := s.sections.UpdateSectionStatus(ctx, section.ID, persistence.SectionInAllocation, section.ApplicationStatus); statusErr != nil {
			logger.WarnContext(ctx, "failed to mark section in allocation", "error", statusErr)
		}
	}

	slot = allocationView(record)
	return
}

func (s *AllocationService) checkRules(ctx context.Context, section persistence.ApplicationSection, rng persistence.SuitableTimeRange, input CreateAllocationInput, window scheduler.DayWindow) error {
	if section.Status == persistence.SectionDeclined {
		return reject(MsgEventDeclined)
	}
	if section.ApplicationStatus == persistence.ApplicationHandled {
		return reject(MsgApplicationHandled)
	}

	existing, err := s.allocations.ListAllocationsForSection(ctx, section.ID)
	if err != nil {
		return mapRepoError(err)
	}
	// A section holds at most one allocation per weekday until it is reset.
	for _, a := range existing {
		if a.SuitableTimeRangeID == rng.ID || a.Day == int(window.Day) {
			return reject(MsgAlreadyAllocated)
		}
	}

	switch section.ApplicationStatus {
	case persistence.ApplicationDraft, persistence.ApplicationReceived:
		return reject(fmt.Sprintf("Cannot allocate to application in status: '%s'", section.ApplicationStatus))
	}

	if input.Force {
		return nil
	}
	sameDay, err := s.allocations.ListAllocationsForUnitDay(ctx, input.ReservationUnitID, int(window.Day))
	if err != nil {
		return mapRepoError(err)
	}
	for _, a := range sameDay {
		other, ok := allocationView(a).Window()
		if ok && window.Overlaps(other) {
			return reject(MsgOverlapsAllocation)
		}
	}
	return nil
}

// DeleteAllocation removes an allocation. A missing allocation is a rejection
// rather than ErrNotFound so clients see the backend message.
func (s *AllocationService) DeleteAllocation(ctx context.Context, allocationID string) (err error) {
	if s == nil || s.sections == nil || s.allocations == nil {
		return fmt.Errorf("AllocationService is not configured")
	}

	logger := s.loggerWith(ctx, "DeleteAllocation", "allocation_id", allocationID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "allocation removal refused", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "allocation removed")
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.allocations.GetAllocation(ctx, allocationID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return reject(MsgAllocationMissing)
		}
		return mapRepoError(err)
	}
	rng, err := s.sections.GetSuitableTimeRange(ctx, existing.SuitableTimeRangeID)
	if err != nil {
		return mapRepoError(err)
	}
	section, err := s.sections.GetSection(ctx, rng.SectionID)
	if err != nil {
		return mapRepoError(err)
	}
	if section.ApplicationStatus == persistence.ApplicationHandled {
		return reject(MsgResetHandled)
	}

	if err := s.allocations.DeleteAllocation(ctx, allocationID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return reject(MsgAllocationMissing)
		}
		return mapRepoError(err)
	}

	remaining, listErr := s.allocations.ListAllocationsForSection(ctx, section.ID)
	if listErr == nil && len(remaining) == 0 && section.Status == persistence.SectionInAllocation {
		if statusErr := s.sections.UpdateSectionStatus(ctx, section.ID, persistence.SectionUnallocated, section.ApplicationStatus); statusErr != nil {
			logger.WarnContext(ctx, "failed to mark section unallocated", "error", statusErr)
		}
	}
	return nil
}

func validateAllocationInput(input CreateAllocationInput) (scheduler.DayWindow, *ValidationError) {
	v := &ValidationError{}
	if strings.TrimSpace(input.SuitableTimeRangeID) == "" {
		v.add("suitable_time_range_id", "suitable time range is required")
	}
	if strings.TrimSpace(input.ReservationUnitID) == "" {
		v.add("reservation_unit_id", "reservation unit is required")
	}
	if !input.Day.Valid() {
		v.add("day", "day must be a weekday")
	}
	start, ok := timeslot.ParseAPITime(input.BeginTime)
	if !ok {
		v.add("begin_time", "begin time must be HH:MM")
	}
	end, endOK := timeslot.ParseAPIEnd(input.EndTime)
	if !endOK {
		v.add("end_time", "end time must be HH:MM")
	}
	if ok && endOK && end <= start {
		v.add("end_time", "end time must be after begin time")
	}
	return scheduler.DayWindow{Day: input.Day, Start: start, End: end}, v
}

func allocationView(a persistence.AllocatedTimeSlot) matching.AllocatedTimeSlot {
	return matching.AllocatedTimeSlot{
		ID:                  a.ID,
		SuitableTimeRangeID: a.SuitableTimeRangeID,
		ReservationUnitID:   a.ReservationUnitID,
		Day:                 timeslot.Weekday(a.Day),
		BeginTime:           a.BeginTime,
		EndTime:             a.EndTime,
	}
}

// apiClock renders an hour as the stored "HH:MM:SS" form.
func apiClock(hour float64) string {
	return timeslot.FormatAPITime(hour) + ":00"
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
