package batch

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/example/seasonal-allocation/internal/scheduler"
)

// ErrEmptyPayload indicates an edit that would change nothing.
var ErrEmptyPayload = errors.New("batch: edit payload is empty")

// Occurrence is one dated instance of a recurring reservation series.
type Occurrence struct {
	ID       string
	SeriesID string
	// Index is the position in the series; it orders occurrences.
	Index int
	Begin time.Time
	End   time.Time
	State scheduler.ReservationState
}

// EditPayload is the change applied to every targeted occurrence. Nil fields
// are left untouched.
type EditPayload struct {
	Name         *string        `json:"name,omitempty"`
	Description  *string        `json:"description,omitempty"`
	Memo         *string        `json:"memo,omitempty"`
	BufferBefore *time.Duration `json:"buffer_before,omitempty"`
	BufferAfter  *time.Duration `json:"buffer_after,omitempty"`
}

// Empty reports whether the payload sets no field.
func (p EditPayload) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Memo == nil && p.BufferBefore == nil && p.BufferAfter == nil
}

// Validate rejects empty payloads and negative buffers.
func (p EditPayload) Validate() error {
	if p.Empty() {
		return ErrEmptyPayload
	}
	if (p.BufferBefore != nil && *p.BufferBefore < 0) || (p.BufferAfter != nil && *p.BufferAfter < 0) {
		return errors.New("batch: buffers must not be negative")
	}
	return nil
}

// fingerprint identifies a job by series and payload.
func fingerprint(seriesID string, p EditPayload) (string, error) {
	encoded, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	h.Write([]byte(seriesID))
	h.Write([]byte{0})
	h.Write(encoded)
	return hex.EncodeToString(h.Sum(nil)), nil
}
