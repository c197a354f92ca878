package application

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when the requested resource does not exist.
var ErrNotFound = errors.New("application: not found")

// Rejection messages produced by the allocation rules. Clients match on
// these, so the wording is part of the API.
const (
	MsgEventDeclined       = "Schedule cannot be approved for event in status: 'DECLINED'"
	MsgApplicationHandled  = "Schedule cannot be approved for application in status: 'HANDLED'"
	MsgAlreadyAllocated    = "Given time slot has already been allocated"
	MsgApplicationReceived = "Cannot allocate to application in status: 'RECEIVED'"
	MsgOverlapsAllocation  = "Given time slot overlaps with an existing allocation"
	MsgAllocationMissing   = "Allocated time slot does not exist"
	MsgResetHandled        = "Cannot remove allocations from application in status: 'HANDLED'"
)

// RejectionError is a business rule refusal carrying user facing messages.
type RejectionError struct {
	Reasons []string
}

func reject(reasons ...string) *RejectionError {
	return &RejectionError{Reasons: reasons}
}

// Error implements the error interface.
func (r *RejectionError) Error() string {
	if r == nil || len(r.Reasons) == 0 {
		return "application: rejected"
	}
	return "application: rejected: " + strings.Join(r.Reasons, "; ")
}

// Messages returns the rejection messages.
func (r *RejectionError) Messages() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.Reasons))
	copy(out, r.Reasons)
	return out
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// CollisionError lists the occurrences of a new series that would overlap
// existing reservations. Nothing is stored when it is returned.
type CollisionError struct {
	Collisions []OccurrenceCollision
}

// Error implements the error interface.
func (c *CollisionError) Error() string {
	if c == nil {
		return ""
	}
	return "application: series collides with existing reservations"
}
