package timeslot

import (
	"strings"
	"time"
)

// Weekday identifies a day of the week. Monday is day 0, matching the
// ordering of the reservation API's weekday enum.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var apiNames = [...]string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

var shortNames = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Valid reports whether d is one of the seven days.
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

// String returns the API enum name, e.g. "MONDAY".
func (d Weekday) String() string {
	if !d.Valid() {
		return "UNKNOWN"
	}
	return apiNames[d]
}

// Short returns the three letter name used inside slot keys.
func (d Weekday) Short() string {
	if !d.Valid() {
		return ""
	}
	return shortNames[d]
}

// Time converts d to the standard library weekday.
func (d Weekday) Time() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

// FromTime converts a standard library weekday to a Weekday.
func FromTime(day time.Weekday) Weekday {
	return Weekday((int(day) + 6) % 7)
}

// ParseWeekday accepts an API enum name ("MONDAY") or a short name ("Mon"),
// case-insensitively.
func ParseWeekday(value string) (Weekday, bool) {
	value = strings.TrimSpace(value)
	for i := range apiNames {
		if strings.EqualFold(value, apiNames[i]) || strings.EqualFold(value, shortNames[i]) {
			return Weekday(i), true
		}
	}
	return 0, false
}
