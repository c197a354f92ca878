package scheduler

import (
	"sort"
	"time"
)

// ReservationState mirrors the reservation state enum of the reservation API.
type ReservationState string

const (
	StateCreated           ReservationState = "CREATED"
	StateConfirmed         ReservationState = "CONFIRMED"
	StateRequiresHandling  ReservationState = "REQUIRES_HANDLING"
	StateWaitingForPayment ReservationState = "WAITING_FOR_PAYMENT"
	StateDenied            ReservationState = "DENIED"
	StateCancelled         ReservationState = "CANCELLED"
)

// ReservationType distinguishes staff blocks from ordinary reservations.
type ReservationType string

const (
	TypeNormal  ReservationType = "NORMAL"
	TypeStaff   ReservationType = "STAFF"
	TypeBehalf  ReservationType = "BEHALF"
	TypeBlocked ReservationType = "BLOCKED"
)

// Reservation is an existing booking of a reservation unit.
type Reservation struct {
	ID           string
	Begin        time.Time
	End          time.Time
	BufferBefore time.Duration
	BufferAfter  time.Duration
	State        ReservationState
	Type         ReservationType
}

// Blocking reports whether the reservation occupies its unit. Denied and
// cancelled reservations free the time.
func (r Reservation) Blocking() bool {
	switch r.State {
	case StateDenied, StateCancelled:
		return false
	default:
		return true
	}
}

// Interval returns the reserved time without buffers.
func (r Reservation) Interval() Interval {
	return Interval{Start: r.Begin, End: r.End}
}

// Span returns the reserved time including buffers. Blocked time carries no
// buffers.
func (r Reservation) Span() Interval {
	if r.Type == TypeBlocked {
		return r.Interval()
	}
	return r.Interval().Extend(r.BufferBefore, r.BufferAfter)
}

// Candidate is a proposed reservation time checked against existing ones.
type Candidate struct {
	Interval
	BufferBefore time.Duration
	BufferAfter  time.Duration
	// ExcludeID skips the reservation being edited.
	ExcludeID string
}

// Collision identifies an existing reservation the candidate would overlap.
type Collision struct {
	ReservationID string
	Begin         time.Time
	End           time.Time
	// Buffer is true when only a buffer overlaps, not the reserved time itself.
	Buffer bool
}

// DetectCollisions lists the blocking reservations that the candidate would
// overlap, ordered by begin time. A buffer may not overlap another
// reservation, but two buffers may overlap each other.
func DetectCollisions(existing []Reservation, candidate Candidate) []Collision {
	if candidate.Empty() {
		return nil
	}

	own := candidate.Interval
	padded := own.Extend(candidate.BufferBefore, candidate.BufferAfter)

	var collisions []Collision
	for _, reservation := range existing {
		if !reservation.Blocking() {
			continue
		}
		if candidate.ExcludeID != "" && reservation.ID == candidate.ExcludeID {
			continue
		}

		direct := Collides(own, reservation.Interval())
		if !direct && !Collides(padded, reservation.Interval()) && !Collides(own, reservation.Span()) {
			continue
		}
		collisions = append(collisions, Collision{
			ReservationID: reservation.ID,
			Begin:         reservation.Begin,
			End:           reservation.End,
			Buffer:        !direct,
		})
	}

	sort.SliceStable(collisions, func(i, j int) bool {
		return collisions[i].Begin.Before(collisions[j].Begin)
	})
	return collisions
}

// HasCollision reports whether DetectCollisions would find anything.
func HasCollision(existing []Reservation, candidate Candidate) bool {
	return len(DetectCollisions(existing, candidate)) > 0
}
