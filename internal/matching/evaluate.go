package matching

import "github.com/example/seasonal-allocation/internal/scheduler"

// Evaluation summarises how a selection relates to a section.
type Evaluation struct {
	Window        scheduler.DayWindow
	Matches       []SuitableTimeRange
	Allocated     []AllocatedTimeSlot
	Contiguous    bool
	DurationValid bool
	// OutsideRequested is true unless one matching range fully contains the
	// selection. It drives a warning, not a refusal.
	OutsideRequested bool
}

// Ambiguous reports whether more than one requested range overlaps.
func (e Evaluation) Ambiguous() bool {
	return len(e.Matches) > 1
}

// Schedule returns the single matching range.
func (e Evaluation) Schedule() (SuitableTimeRange, error) {
	return Single(e.Matches)
}

// Evaluate matches the selection against the section's requested ranges and
// existing allocations.
func Evaluate(section Section, selection Selection) (Evaluation, error) {
	w, err := selection.Window()
	if err != nil {
		return Evaluation{}, err
	}

	eval := Evaluation{
		Window:           w,
		Matches:          Match(section.Ranges, w),
		Allocated:        Match(section.Allocations, w),
		Contiguous:       selection.Contiguous(),
		DurationValid:    selection.ValidDuration(section.Bounds()),
		OutsideRequested: true,
	}
	for _, candidate := range eval.Matches {
		if !IsOutsideOfRequestedTimes(candidate, w) {
			eval.OutsideRequested = false
			break
		}
	}
	return eval, nil
}
