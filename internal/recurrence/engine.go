package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/seasonal-allocation/internal/timeslot"
)

// DefaultMaxOccurrences bounds how many occurrences one series may expand to.
const DefaultMaxOccurrences = 2000

var (
	// ErrInvalidInterval indicates the repeat interval is not weekly or biweekly.
	ErrInvalidInterval = errors.New("recurrence: interval must be 1 or 2 weeks")
	// ErrNoWeekdays indicates the rule selects no days.
	ErrNoWeekdays = errors.New("recurrence: rule selects no weekdays")
	// ErrInvalidWindow indicates the rule ends before it starts.
	ErrInvalidWindow = errors.New("recurrence: rule ends before it starts")
	// ErrInvalidDuration indicates the daily end is not after the begin.
	ErrInvalidDuration = errors.New("recurrence: occurrence end must be after begin")
	// ErrTooManyOccurrences indicates the expansion exceeds the engine cap.
	ErrTooManyOccurrences = errors.New("recurrence: too many occurrences")
)

// Rule describes a recurring reservation series. StartsOn and EndsOn are
// dates; only their calendar day in the engine's location is used, and both
// are inclusive. BeginTime and EndTime are wall-clock "HH:MM" times.
type Rule struct {
	SeriesID      string
	Weekdays      []timeslot.Weekday
	BeginTime     string
	EndTime       string
	StartsOn      time.Time
	EndsOn        time.Time
	IntervalWeeks int
	SkipDates     []time.Time
}

// Occurrence is one generated instance of a series.
type Occurrence struct {
	SeriesID string
	Index    int
	Begin    time.Time
	End      time.Time
}

// Engine expands rules into dated occurrences.
type Engine struct {
	location *time.Location
	max      int
}

// NewEngine constructs an Engine that produces times in loc. A nil loc means
// UTC and a non-positive max means DefaultMaxOccurrences.
func NewEngine(loc *time.Location, max int) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if max <= 0 {
		max = DefaultMaxOccurrences
	}
	return &Engine{location: loc, max: max}
}

// Location returns the zone occurrences are generated in.
func (e *Engine) Location() *time.Location {
	return e.location
}

// Expand produces the occurrences of rule in chronological order, indexed
// from zero. Wall-clock times are kept across daylight saving changes.
func (e *Engine) Expand(rule Rule) ([]Occurrence, error) {
	interval := rule.IntervalWeeks
	if interval == 0 {
		interval = 1
	}
	if interval != 1 && interval != 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInterval, rule.IntervalWeeks)
	}

	weekdays := make(map[timeslot.Weekday]struct{}, len(rule.Weekdays))
	for _, day := range rule.Weekdays {
		if day.Valid() {
			weekdays[day] = struct{}{}
		}
	}
	if len(weekdays) == 0 {
		return nil, ErrNoWeekdays
	}

	begin, ok := timeslot.ParseAPITime(rule.BeginTime)
	if !ok {
		return nil, fmt.Errorf("%w: begin %q", ErrInvalidDuration, rule.BeginTime)
	}
	end, ok := timeslot.ParseAPIEnd(rule.EndTime)
	if !ok || end <= begin {
		return nil, fmt.Errorf("%w: %s-%s", ErrInvalidDuration, rule.BeginTime, rule.EndTime)
	}

	first := e.date(rule.StartsOn)
	last := e.date(rule.EndsOn)
	if last.Before(first) {
		return nil, ErrInvalidWindow
	}

	skip := make(map[time.Time]struct{}, len(rule.SkipDates))
	for _, d := range rule.SkipDates {
		skip[e.date(d)] = struct{}{}
	}

	anchor := weekStart(first)
	var occurrences []Occurrence
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if _, ok := weekdays[timeslot.FromTime(day.Weekday())]; !ok {
			continue
		}
		if _, ok := skip[day]; ok {
			continue
		}
		if weeksBetween(anchor, day)%interval != 0 {
			continue
		}
		if len(occurrences) == e.max {
			return nil, fmt.Errorf("%w: more than %d", ErrTooManyOccurrences, e.max)
		}
		occurrences = append(occurrences, Occurrence{
			SeriesID: rule.SeriesID,
			Index:    len(occurrences),
			Begin:    e.at(day, begin),
			End:      e.at(day, end),
		})
	}
	return occurrences, nil
}

// date truncates t to midnight of its calendar day in the engine location.
func (e *Engine) date(t time.Time) time.Time {
	y, m, d := t.In(e.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.location)
}

// at places a decimal hour on day. 24 rolls over to the next midnight.
func (e *Engine) at(day time.Time, hour float64) time.Time {
	minutes := int(hour*60 + 0.5)
	y, m, d := day.Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, e.location)
}

func weekStart(day time.Time) time.Time {
	offset := int(timeslot.FromTime(day.Weekday()))
	return day.AddDate(0, 0, -offset)
}

func weeksBetween(anchor, day time.Time) int {
	// Calendar arithmetic avoids DST-length days skewing the count.
	ay, am, ad := anchor.Date()
	dy, dm, dd := day.Date()
	a := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	b := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours()/24) / 7
}
