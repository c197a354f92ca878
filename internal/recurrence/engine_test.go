package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/example/seasonal-allocation/internal/timeslot"
)

func mustLocation(t testing.TB, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("time zone %s unavailable: %v", name, err)
	}
	return loc
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEngine_Expand(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC, 0)

	t.Run("respects weekday selections", func(t *testing.T) {
		t.Parallel()

		occurrences, err := engine.Expand(Rule{
			SeriesID:  "series-1",
			Weekdays:  []timeslot.Weekday{timeslot.Monday, timeslot.Wednesday},
			BeginTime: "07:00",
			EndTime:   "09:30",
			StartsOn:  date(2026, time.March, 2),
			EndsOn:    date(2026, time.March, 15),
		})
		if err != nil {
			t.Fatalf("Expand returned error: %v", err)
		}
		wantDays := []int{2, 4, 9, 11}
		if len(occurrences) != len(wantDays) {
			t.Fatalf("expected %d occurrences, got %d", len(wantDays), len(occurrences))
		}
		for i, occ := range occurrences {
			if occ.Index != i || occ.SeriesID != "series-1" {
				t.Fatalf("unexpected identity on %+v", occ)
			}
			if occ.Begin.Day() != wantDays[i] || occ.Begin.Hour() != 7 {
				t.Fatalf("occurrence %d begins %v", i, occ.Begin)
			}
			if occ.End.Sub(occ.Begin) != 150*time.Minute {
				t.Fatalf("occurrence %d lasts %v", i, occ.End.Sub(occ.Begin))
			}
		}
	})

	t.Run("biweekly counts weeks from the first week", func(t *testing.T) {
		t.Parallel()

		occurrences, err := engine.Expand(Rule{
			Weekdays:      []timeslot.Weekday{timeslot.Thursday},
			BeginTime:     "18:00",
			EndTime:       "20:00",
			StartsOn:      date(2026, time.March, 4),
			EndsOn:        date(2026, time.April, 1),
			IntervalWeeks: 2,
		})
		if err != nil {
			t.Fatalf("Expand returned error: %v", err)
		}
		if len(occurrences) != 2 || occurrences[0].Begin.Day() != 5 || occurrences[1].Begin.Day() != 19 {
			t.Fatalf("unexpected biweekly occurrences: %+v", occurrences)
		}
	})

	t.Run("skips dates and keeps midnight end", func(t *testing.T) {
		t.Parallel()

		occurrences, err := engine.Expand(Rule{
			Weekdays:  []timeslot.Weekday{timeslot.Friday},
			BeginTime: "22:00",
			EndTime:   "00:00",
			StartsOn:  date(2026, time.March, 6),
			EndsOn:    date(2026, time.March, 20),
			SkipDates: []time.Time{date(2026, time.March, 13)},
		})
		if err != nil {
			t.Fatalf("Expand returned error: %v", err)
		}
		if len(occurrences) != 2 || occurrences[1].Begin.Day() != 20 {
			t.Fatalf("expected skip date to be dropped, got %+v", occurrences)
		}
		if want := date(2026, time.March, 7); !occurrences[0].End.Equal(want) {
			t.Fatalf("expected end at next midnight, got %v", occurrences[0].End)
		}
	})

	t.Run("keeps wall clock across daylight saving", func(t *testing.T) {
		t.Parallel()

		helsinki := mustLocation(t, "Europe/Helsinki")
		occurrences, err := NewEngine(helsinki, 0).Expand(Rule{
			Weekdays:  []timeslot.Weekday{timeslot.Saturday},
			BeginTime: "10:00",
			EndTime:   "11:00",
			StartsOn:  time.Date(2026, time.March, 21, 0, 0, 0, 0, helsinki),
			EndsOn:    time.Date(2026, time.April, 4, 0, 0, 0, 0, helsinki),
		})
		if err != nil {
			t.Fatalf("Expand returned error: %v", err)
		}
		for _, occ := range occurrences {
			if occ.Begin.Hour() != 10 {
				t.Fatalf("expected 10:00 local, got %v", occ.Begin)
			}
		}
		if len(occurrences) != 3 {
			t.Fatalf("expected three Saturdays, got %d", len(occurrences))
		}
	})
}

func TestEngine_ExpandErrors(t *testing.T) {
	t.Parallel()

	valid := Rule{
		Weekdays:  []timeslot.Weekday{timeslot.Monday},
		BeginTime: "07:00",
		EndTime:   "08:00",
		StartsOn:  date(2026, time.March, 2),
		EndsOn:    date(2026, time.December, 28),
	}

	tests := []struct {
		name   string
		mutate func(r *Rule)
		want   error
	}{
		{name: "interval", mutate: func(r *Rule) { r.IntervalWeeks = 3 }, want: ErrInvalidInterval},
		{name: "no weekdays", mutate: func(r *Rule) { r.Weekdays = []timeslot.Weekday{9} }, want: ErrNoWeekdays},
		{name: "reversed times", mutate: func(r *Rule) { r.EndTime = "06:00" }, want: ErrInvalidDuration},
		{name: "malformed time", mutate: func(r *Rule) { r.BeginTime = "7am" }, want: ErrInvalidDuration},
		{name: "reversed dates", mutate: func(r *Rule) { r.EndsOn = date(2026, time.March, 1) }, want: ErrInvalidWindow},
	}
	for _, tc := range tests {
		rule := valid
		tc.mutate(&rule)
		if _, err := NewEngine(nil, 0).Expand(rule); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if _, err := NewEngine(nil, 10).Expand(valid); !errors.Is(err, ErrTooManyOccurrences) {
		t.Fatalf("expected cap to be enforced, got %v", err)
	}
}
