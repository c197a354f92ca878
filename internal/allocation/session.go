package allocation

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/example/seasonal-allocation/internal/matching"
	"github.com/example/seasonal-allocation/internal/timeslot"
)

var (
	// ErrNoSelection indicates accept was requested before any cells were
	// selected.
	ErrNoSelection = errors.New("allocation: nothing selected")
	// ErrUnknownRange indicates the suitable time range is not part of the
	// section.
	ErrUnknownRange = errors.New("allocation: unknown suitable time range")
	// ErrUnknownReservationUnit indicates the unit is not one of the section's
	// options.
	ErrUnknownReservationUnit = errors.New("allocation: reservation unit is not an option of the section")
	// ErrInvalidDuration indicates the selection length is outside the
	// section's duration bounds.
	ErrInvalidDuration = errors.New("allocation: selection duration outside allowed bounds")
	// ErrNotAllocated indicates reset was requested for a range that holds no
	// allocation.
	ErrNotAllocated = errors.New("allocation: range is not allocated")
)

// State is the allocation state of one suitable time range.
type State int

const (
	Unallocated State = iota
	Allocated
)

func (s State) String() string {
	if s == Allocated {
		return "allocated"
	}
	return "unallocated"
}

// AcceptRequest is the mutation payload for accepting a selection. Force
// asks the backend to skip its overlap re-validation: the caller vouches that
// the slot was checked. Begin and End use "HH:MM".
type AcceptRequest struct {
	SuitableTimeRangeID string
	ReservationUnitID   string
	Day                 timeslot.Weekday
	Begin               string
	End                 string
	Force               bool
	// OutsideRequested mirrors the evaluation warning for the chosen range.
	OutsideRequested bool
}

// Session is one operator's working state over a section. Sessions are
// independent of each other; a Session is safe for concurrent use.
type Session struct {
	mu          sync.Mutex
	section     matching.Section
	selection   matching.Selection
	allocations map[string]matching.AllocatedTimeSlot
}

// NewSession starts a session from a freshly loaded section.
func NewSession(section matching.Section) *Session {
	s := &Session{}
	s.load(section)
	return s
}

func (s *Session) load(section matching.Section) {
	s.section = section
	s.allocations = make(map[string]matching.AllocatedTimeSlot, len(section.Allocations))
	for _, a := range section.Allocations {
		s.allocations[a.SuitableTimeRangeID] = a
	}
}

// Refresh replaces the section data after a successful mutation. The
// selection is kept.
func (s *Session) Refresh(section matching.Section) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load(section)
}

// Section returns the section the session was last loaded with.
func (s *Session) Section() matching.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.section
}

// Select replaces the current selection and evaluates it.
func (s *Session) Select(selection matching.Selection) (matching.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eval, err := matching.Evaluate(s.section, selection)
	if err != nil {
		return matching.Evaluation{}, err
	}
	s.selection = slices.Clone(selection)
	return eval, nil
}

// ClearSelection drops the current selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = nil
}

// Selection returns a copy of the current selection.
func (s *Session) Selection() matching.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.selection)
}

// State reports the allocation state of a suitable time range.
func (s *Session) State(rangeID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.allocations[rangeID]; ok {
		return Allocated
	}
	return Unallocated
}

// PrepareAccept builds the accept payload for the current selection. With an
// empty rangeID the selection must match exactly one requested range. An
// explicit rangeID may name any range of the section, including one the
// selection falls outside of.
func (s *Session) PrepareAccept(reservationUnitID, rangeID string) (AcceptRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.selection) == 0 {
		return AcceptRequest{}, ErrNoSelection
	}
	eval, err := matching.Evaluate(s.section, s.selection)
	if err != nil {
		return AcceptRequest{}, err
	}

	var target matching.SuitableTimeRange
	if rangeID == "" {
		target, err = eval.Schedule()
		if err != nil {
			return AcceptRequest{}, err
		}
	} else {
		var ok bool
		target, ok = s.section.Range(rangeID)
		if !ok {
			return AcceptRequest{}, fmt.Errorf("%w: %s", ErrUnknownRange, rangeID)
		}
	}

	if _, ok := s.allocations[target.ID]; ok {
		return AcceptRequest{}, &Error{
			Op:     OpAccept,
			Code:   CodeAlreadyAllocated,
			Detail: "range " + target.ID + " must be reset before it can be accepted again",
		}
	}
	for _, a := range s.allocations {
		if a.Day == eval.Window.Day {
			return AcceptRequest{}, &Error{
				Op:     OpAccept,
				Code:   CodeAlreadyAllocated,
				Detail: "section already has an allocation on " + a.Day.String() + " (" + a.SuitableTimeRangeID + ")",
			}
		}
	}
	if len(s.section.ReservationUnitIDs) > 0 && !slices.Contains(s.section.ReservationUnitIDs, reservationUnitID) {
		return AcceptRequest{}, fmt.Errorf("%w: %s", ErrUnknownReservationUnit, reservationUnitID)
	}
	if !eval.DurationValid {
		return AcceptRequest{}, fmt.Errorf("%w: %s", ErrInvalidDuration, s.selection.Duration())
	}

	return AcceptRequest{
		SuitableTimeRangeID: target.ID,
		ReservationUnitID:   reservationUnitID,
		Day:                 eval.Window.Day,
		Begin:               timeslot.FormatAPITime(eval.Window.Start),
		End:                 timeslot.FormatAPITime(eval.Window.End),
		Force:               true,
		OutsideRequested:    matching.IsOutsideOfRequestedTimes(target, eval.Window),
	}, nil
}

// allocationFor returns the allocation held for a range.
func (s *Session) allocationFor(rangeID string) (matching.AllocatedTimeSlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allocations[rangeID]
	return a, ok
}

// markAllocated records a successful accept until the next refresh.
func (s *Session) markAllocated(slot matching.AllocatedTimeSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocations[slot.SuitableTimeRangeID] = slot
	s.selection = nil
}

func (s *Session) markUnallocated(rangeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.allocations, rangeID)
}
