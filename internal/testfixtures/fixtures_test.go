package testfixtures

import (
	"testing"
	"time"

	"github.com/example/seasonal-allocation/internal/persistence"
	"github.com/example/seasonal-allocation/internal/scheduler"
	"github.com/example/seasonal-allocation/internal/timeslot"
)

func TestSectionFixtureAttachesRanges(t *testing.T) {
	t.Parallel()

	rng := NewRangeFixture(timeslot.Tuesday, "16:00:00", "18:00:00")
	section := NewSectionFixture(
		WithSectionID("section-x"),
		WithStatuses(persistence.SectionDeclined, persistence.ApplicationHandled),
		WithDurationBounds(30*time.Minute, time.Hour),
		WithReservationUnits("unit-a"),
		WithRanges(rng),
	)

	record := section.Record()
	if record.MinDurationSeconds != 1800 || record.MaxDurationSeconds != 3600 {
		t.Fatalf("unexpected duration bounds: %+v", record)
	}
	if record.Status != persistence.SectionDeclined || record.ApplicationStatus != persistence.ApplicationHandled {
		t.Fatalf("statuses not applied: %+v", record)
	}

	view := section.View()
	if len(view.Ranges) != 1 || view.Ranges[0].SectionID != "section-x" {
		t.Fatalf("range not attached to section: %+v", view.Ranges)
	}
	if w, ok := view.Ranges[0].Window(); !ok || w.Start != 16 || w.End != 18 {
		t.Fatalf("unexpected range window: %+v", w)
	}
}

func TestReservationFixtureOptions(t *testing.T) {
	t.Parallel()

	begin := SeasonStart().Add(10 * time.Hour)
	r := NewReservationFixture(
		WithReservationID("r-1"),
		WithReservationUnit("unit-field"),
		WithTimes(begin, begin.Add(time.Hour)),
		WithBuffers(15*time.Minute, 0),
		WithState(scheduler.StateDenied),
		WithSeries("series-1", 4),
	)

	if r.Occupancy().Blocking() {
		t.Fatalf("denied reservation should not block")
	}
	record := r.Record()
	if record.SeriesID != "series-1" || record.Index != 4 || record.State != "DENIED" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if got := r.Occupancy().Span().Start; !got.Equal(begin.Add(-15 * time.Minute)) {
		t.Fatalf("buffer not applied to span: %v", got)
	}
}
