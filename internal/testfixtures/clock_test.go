package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToSeasonStart(t *testing.T) {
	t.Parallel()

	clock := NewClock(time.Time{})
	if !clock.Now().Equal(SeasonStart()) {
		t.Fatalf("expected SeasonStart, got %v", clock.Now())
	}
	if clock.Now().Weekday() != time.Monday {
		t.Fatalf("season should start on a Monday, got %v", clock.Now().Weekday())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.September, 7, 6, 0, 0, 0, time.UTC)
	clock := NewClock(start)
	nowFn := clock.NowFunc()

	if got := clock.Advance(90 * time.Minute); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", got)
	}
	if got := nowFn(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("NowFunc did not follow the clock: %v", got)
	}

	clock.Set(start.Add(48 * time.Hour))
	if got := clock.Now(); !got.Equal(start.Add(48 * time.Hour)) {
		t.Fatalf("expected %v, got %v", start.Add(48*time.Hour), got)
	}

	var nilClock *Clock
	if nilClock.NowFunc() == nil {
		t.Fatalf("nil clock should fall back to time.Now")
	}
}
