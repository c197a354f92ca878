package timeslot

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseAPITime converts an API time string ("HH:MM:SS" or "HH:MM") into a
// decimal hour. The boolean is false for malformed input; callers must treat
// that as unknown, never as midnight.
func ParseAPITime(value string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	hour, ok := parseField(parts[0], 1, 23)
	if !ok {
		return 0, false
	}
	minute, ok := parseField(parts[1], 2, 59)
	if !ok {
		return 0, false
	}
	if len(parts) == 3 {
		if _, ok := parseField(parts[2], 2, 59); !ok {
			return 0, false
		}
	}
	return float64(hour) + float64(minute)/60, true
}

// ParseAPIEnd parses the end of a range. The API writes an end at midnight as
// "00:00:00", which is returned as 24 so the range stays ordered.
func ParseAPIEnd(value string) (float64, bool) {
	hour, ok := ParseAPITime(value)
	if !ok {
		return 0, false
	}
	if hour == 0 {
		return 24, true
	}
	return hour, true
}

// FormatAPITime renders a decimal hour as the "HH:MM" string used in mutation
// payloads. 24 is written as "00:00".
func FormatAPITime(hour float64) string {
	h, m := split(hour)
	return fmt.Sprintf("%02d:%02d", h%24, m)
}

// Label renders a decimal hour for display, e.g. "7:30". The end of the day
// wraps to "0:00"; the numeric hour used for comparisons is unaffected.
func Label(hour float64) string {
	h, m := split(hour)
	return fmt.Sprintf("%d:%02d", h%24, m)
}

// Keys lists the slot keys covering [start, end) on day. Both bounds must be
// multiples of half an hour within [0, 24].
func Keys(day Weekday, start, end float64) ([]Key, error) {
	if !day.Valid() {
		return nil, fmt.Errorf("%w: day %d", ErrInvalidSlot, int(day))
	}
	if start < 0 || end > 24 || start >= end || math.Mod(start*2, 1) != 0 || math.Mod(end*2, 1) != 0 {
		return nil, fmt.Errorf("%w: range %v-%v", ErrInvalidSlot, start, end)
	}
	keys := make([]Key, 0, int((end-start)*2))
	for hour := start; hour < end; hour += 0.5 {
		slot, err := FromHour(day, hour)
		if err != nil {
			return nil, err
		}
		keys = append(keys, slot.Key())
	}
	return keys, nil
}

func split(hour float64) (int, int) {
	total := int(math.Round(hour * 60))
	return total / 60, total % 60
}

func parseField(value string, minDigits, max int) (int, bool) {
	if len(value) < minDigits || len(value) > 2 {
		return 0, false
	}
	for i := 0; i < len(value); i++ {
		if !isDigit(value[i]) {
			return 0, false
		}
	}
	n, err := strconv.Atoi(value)
	if err != nil || n > max {
		return 0, false
	}
	return n, true
}
