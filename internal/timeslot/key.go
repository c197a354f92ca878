package timeslot

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// SlotLength is the granularity of the allocation calendar in minutes.
const SlotLength = 30

// Key identifies a single half-hour calendar cell, e.g. "Mon-07-0" for
// Monday 07:00 and "Mon-07-1" for Monday 07:30.
type Key string

var (
	// ErrInvalidKey indicates a key does not follow the Day-HH-H format.
	ErrInvalidKey = errors.New("timeslot: invalid key")
	// ErrInvalidSlot indicates a day, hour or half flag is out of range.
	ErrInvalidSlot = errors.New("timeslot: invalid slot")
)

// Slot is the decoded form of a Key.
type Slot struct {
	Day  Weekday
	Hour int
	Half bool
}

// Encode builds the key for the given cell.
func Encode(day Weekday, hour int, half bool) (Key, error) {
	slot := Slot{Day: day, Hour: hour, Half: half}
	if err := slot.validate(); err != nil {
		return "", err
	}
	return slot.Key(), nil
}

// Decode parses a key produced by Encode. Decode(Encode(d, h, half)) always
// yields the same triple and re-encodes to the same string.
func Decode(key Key) (Slot, error) {
	parts := strings.Split(string(key), "-")
	if len(parts) != 3 {
		return Slot{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	day := -1
	for i, name := range shortNames {
		if parts[0] == name {
			day = i
			break
		}
	}
	if day < 0 {
		return Slot{}, fmt.Errorf("%w: unknown day in %q", ErrInvalidKey, key)
	}

	if len(parts[1]) != 2 || !isDigit(parts[1][0]) || !isDigit(parts[1][1]) {
		return Slot{}, fmt.Errorf("%w: hour must be two digits in %q", ErrInvalidKey, key)
	}
	hour := int(parts[1][0]-'0')*10 + int(parts[1][1]-'0')

	var half bool
	switch parts[2] {
	case "0":
	case "1":
		half = true
	default:
		return Slot{}, fmt.Errorf("%w: half flag must be 0 or 1 in %q", ErrInvalidKey, key)
	}

	slot := Slot{Day: Weekday(day), Hour: hour, Half: half}
	if err := slot.validate(); err != nil {
		return Slot{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return slot, nil
}

// FromHour returns the slot starting at the given decimal hour, which must be
// a multiple of 0.5 in [0, 24).
func FromHour(day Weekday, hour float64) (Slot, error) {
	if hour < 0 || hour >= 24 || math.Mod(hour*2, 1) != 0 {
		return Slot{}, fmt.Errorf("%w: hour %v", ErrInvalidSlot, hour)
	}
	slot := Slot{Day: day, Hour: int(hour), Half: hour-math.Floor(hour) == 0.5}
	if err := slot.validate(); err != nil {
		return Slot{}, err
	}
	return slot, nil
}

// Key encodes the slot. The slot is assumed to be valid.
func (s Slot) Key() Key {
	flag := 0
	if s.Half {
		flag = 1
	}
	return Key(fmt.Sprintf("%s-%02d-%d", s.Day.Short(), s.Hour, flag))
}

// Start returns the decimal hour at which the slot begins, e.g. 9.5.
func (s Slot) Start() float64 {
	if s.Half {
		return float64(s.Hour) + 0.5
	}
	return float64(s.Hour)
}

// End returns the decimal hour at which the slot ends. The last slot of the
// day ends at 24.
func (s Slot) End() float64 {
	return s.Start() + 0.5
}

// Next returns the following slot on the same day, or false after 23:30.
func (s Slot) Next() (Slot, bool) {
	if s.Hour == 23 && s.Half {
		return Slot{}, false
	}
	if s.Half {
		return Slot{Day: s.Day, Hour: s.Hour + 1}, true
	}
	return Slot{Day: s.Day, Hour: s.Hour, Half: true}, true
}

func (s Slot) validate() error {
	if !s.Day.Valid() {
		return fmt.Errorf("%w: day %d", ErrInvalidSlot, int(s.Day))
	}
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("%w: hour %d", ErrInvalidSlot, s.Hour)
	}
	return nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
