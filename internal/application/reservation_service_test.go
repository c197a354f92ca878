package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/seasonal-allocation/internal/persistence"
	"github.com/example/seasonal-allocation/internal/recurrence"
	"github.com/example/seasonal-allocation/internal/scheduler"
	"github.com/example/seasonal-allocation/internal/timeslot"
)

// monday is the first day of the fixture season.
var monday = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

type sequence struct{ n int }

func (s *sequence) next() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

func newReservationService(t *testing.T, now time.Time) (*ReservationService, *sequence) {
	t.Helper()
	store := newStorage(t)
	ids := &sequence{}
	svc := NewReservationService(store, recurrence.NewEngine(time.UTC, 0), ids.next, func() time.Time { return now }, discardLogger())
	return svc, ids
}

func weeklyTraining() CreateSeriesParams {
	return CreateSeriesParams{
		ReservationUnitID: "unit-a",
		Name:              " Training ",
		Weekdays:          []timeslot.Weekday{timeslot.Monday, timeslot.Wednesday},
		BeginTime:         "18:00",
		EndTime:           "19:30",
		StartsOn:          monday,
		EndsOn:            monday.AddDate(0, 0, 13),
		BufferBefore:      15 * time.Minute,
	}
}

func TestReservationService_CreateSeries(t *testing.T) {
	t.Parallel()

	svc, _ := newReservationService(t, monday.Add(-24*time.Hour))
	ctx := context.Background()

	series, err := svc.CreateSeries(ctx, weeklyTraining())
	if err != nil {
		t.Fatalf("CreateSeries returned error: %v", err)
	}
	if series.Name != "Training" || series.IntervalWeeks != 1 {
		t.Fatalf("unexpected series header: %+v", series)
	}
	if len(series.Occurrences) != 4 {
		t.Fatalf("expected 4 occurrences over two weeks, got %d", len(series.Occurrences))
	}

	listed, err := svc.ListOccurrences(ctx, series.ID)
	if err != nil {
		t.Fatalf("ListOccurrences returned error: %v", err)
	}
	if len(listed) != 4 {
		t.Fatalf("expected 4 stored occurrences, got %d", len(listed))
	}
	for i, occ := range listed {
		if occ.Index != i || occ.State != scheduler.StateConfirmed || occ.SeriesID != series.ID {
			t.Fatalf("unexpected occurrence %d: %+v", i, occ)
		}
		if occ.End.Sub(occ.Begin) != 90*time.Minute || occ.BufferBefore != 15*time.Minute {
			t.Fatalf("unexpected occurrence timing: %+v", occ)
		}
	}
	if got := listed[1].Begin; !got.Equal(monday.AddDate(0, 0, 2).Add(18 * time.Hour)) {
		t.Fatalf("second occurrence should be Wednesday 18:00, got %v", got)
	}

	if _, err := svc.ListOccurrences(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown series, got %v", err)
	}
}

func TestReservationService_CreateSeriesRejectsCollisions(t *testing.T) {
	t.Parallel()

	svc, _ := newReservationService(t, monday)
	ctx := context.Background()

	if _, err := svc.CreateSeries(ctx, weeklyTraining()); err != nil {
		t.Fatalf("first series failed: %v", err)
	}

	// Ends at 17:50; the new series' 15 minute buffer before 18:00 reaches it.
	clash := CreateSeriesParams{
		ReservationUnitID: "unit-a",
		Weekdays:          []timeslot.Weekday{timeslot.Wednesday},
		BeginTime:         "17:00",
		EndTime:           "17:50",
		StartsOn:          monday,
		EndsOn:            monday.AddDate(0, 0, 6),
	}
	_, err := svc.CreateSeries(ctx, clash)
	var cErr *CollisionError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected CollisionError, got %v", err)
	}
	if len(cErr.Collisions) != 1 || len(cErr.Collisions[0].With) != 1 || !cErr.Collisions[0].With[0].Buffer {
		t.Fatalf("expected one buffer collision, got %+v", cErr.Collisions)
	}
	if ErrorKind(err) != "collision" {
		t.Fatalf("unexpected error kind %q", ErrorKind(err))
	}

	other := clash
	other.ReservationUnitID = "unit-b"
	if _, err := svc.CreateSeries(ctx, other); err != nil {
		t.Fatalf("series on another unit should not collide: %v", err)
	}
}

func TestReservationService_CreateSeriesValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newReservationService(t, monday)
	ctx := context.Background()

	params := weeklyTraining()
	params.Weekdays = nil
	var vErr *ValidationError
	if _, err := svc.CreateSeries(ctx, params); !errors.As(err, &vErr) || vErr.FieldErrors["weekdays"] == "" {
		t.Fatalf("expected weekdays validation error, got %v", err)
	}

	params = weeklyTraining()
	params.IntervalWeeks = 3
	if _, err := svc.CreateSeries(ctx, params); !errors.As(err, &vErr) || vErr.FieldErrors["rule"] == "" {
		t.Fatalf("expected rule validation error, got %v", err)
	}

	params = weeklyTraining()
	params.Weekdays = []timeslot.Weekday{timeslot.Sunday}
	params.EndsOn = monday.AddDate(0, 0, 2)
	if _, err := svc.CreateSeries(ctx, params); !errors.As(err, &vErr) || vErr.FieldErrors["rule"] == "" {
		t.Fatalf("expected empty rule validation error, got %v", err)
	}
}

func TestReservationService_EditReservation(t *testing.T) {
	t.Parallel()

	svc, _ := newReservationService(t, monday)
	ctx := context.Background()

	series, err := svc.CreateSeries(ctx, weeklyTraining())
	if err != nil {
		t.Fatalf("CreateSeries returned error: %v", err)
	}
	target := series.Occurrences[0]

	memo := "bring cones"
	edited, err := svc.EditReservation(ctx, EditReservationParams{ReservationID: target.ID, Memo: &memo})
	if err != nil {
		t.Fatalf("EditReservation returned error: %v", err)
	}
	if edited.Memo != memo || edited.Name != "Training" {
		t.Fatalf("unexpected edited reservation: %+v", edited)
	}

	if _, err := svc.DenyReservation(ctx, target.ID); err != nil {
		t.Fatalf("DenyReservation returned error: %v", err)
	}
	_, err = svc.EditReservation(ctx, EditReservationParams{ReservationID: target.ID, Memo: &memo})
	var rej *RejectionError
	if !errors.As(err, &rej) || rej.Messages()[0] != "Reservation cannot be changed in state: 'DENIED'" {
		t.Fatalf("expected rejection for denied reservation, got %v", err)
	}
	if _, err := svc.DenyReservation(ctx, target.ID); !IsRejection(err) {
		t.Fatalf("expected rejection when denying twice, got %v", err)
	}

	if _, err := svc.EditReservation(ctx, EditReservationParams{ReservationID: "missing", Memo: &memo}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.EditReservation(ctx, EditReservationParams{ReservationID: target.ID}); err == nil {
		t.Fatalf("expected validation error for empty edit")
	}
}

func TestReservationService_EditBuffersChecksNeighbours(t *testing.T) {
	t.Parallel()

	svc, _ := newReservationService(t, monday)
	ctx := context.Background()

	series, err := svc.CreateSeries(ctx, weeklyTraining())
	if err != nil {
		t.Fatalf("CreateSeries returned error: %v", err)
	}
	neighbour, err := svc.CreateSeries(ctx, CreateSeriesParams{
		ReservationUnitID: "unit-a",
		Weekdays:          []timeslot.Weekday{timeslot.Monday},
		BeginTime:         "20:00",
		EndTime:           "21:00",
		StartsOn:          monday,
		EndsOn:            monday,
	})
	if err != nil {
		t.Fatalf("neighbour series failed: %v", err)
	}

	wide := time.Hour
	_, err = svc.EditReservation(ctx, EditReservationParams{ReservationID: series.Occurrences[0].ID, BufferAfter: &wide})
	if !IsRejection(err) {
		t.Fatalf("expected buffer rejection, got %v", err)
	}

	narrow := 30 * time.Minute
	if _, err := svc.EditReservation(ctx, EditReservationParams{ReservationID: series.Occurrences[0].ID, BufferAfter: &narrow}); err != nil {
		t.Fatalf("buffer ending at the neighbour's begin should fit: %v", err)
	}

	collisions, err := svc.CheckCollisions(ctx, CollisionQuery{
		ReservationUnitID: "unit-a",
		Begin:             monday.Add(20 * time.Hour),
		End:               monday.Add(21 * time.Hour),
		ExcludeID:         neighbour.Occurrences[0].ID,
	})
	if err != nil {
		t.Fatalf("CheckCollisions returned error: %v", err)
	}
	if len(collisions) != 0 {
		t.Fatalf("buffers may touch but not overlap; got %+v", collisions)
	}
}

func TestReservationService_CheckCollisions(t *testing.T) {
	t.Parallel()

	svc, _ := newReservationService(t, monday)
	ctx := context.Background()

	series, err := svc.CreateSeries(ctx, weeklyTraining())
	if err != nil {
		t.Fatalf("CreateSeries returned error: %v", err)
	}
	first := series.Occurrences[0]

	query := CollisionQuery{ReservationUnitID: "unit-a", Begin: monday.Add(17 * time.Hour), End: monday.Add(17*time.Hour + 50*time.Minute)}
	collisions, err := svc.CheckCollisions(ctx, query)
	if err != nil {
		t.Fatalf("CheckCollisions returned error: %v", err)
	}
	if len(collisions) != 1 || collisions[0].ReservationID != first.ID || !collisions[0].Buffer {
		t.Fatalf("expected buffer collision with %s, got %+v", first.ID, collisions)
	}

	query.ExcludeID = first.ID
	if collisions, _ := svc.CheckCollisions(ctx, query); len(collisions) != 0 {
		t.Fatalf("excluded reservation should not collide: %+v", collisions)
	}

	// A denied reservation frees its time, and the write invalidates cached answers.
	query.ExcludeID = ""
	if _, err := svc.DenyReservation(ctx, first.ID); err != nil {
		t.Fatalf("DenyReservation returned error: %v", err)
	}
	if collisions, _ := svc.CheckCollisions(ctx, query); len(collisions) != 0 {
		t.Fatalf("denied reservation should not collide: %+v", collisions)
	}

	var vErr *ValidationError
	if _, err := svc.CheckCollisions(ctx, CollisionQuery{ReservationUnitID: "unit-a", Begin: monday, End: monday}); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for empty interval, got %v", err)
	}
}

// pausingReservations holds the first ListReservations call after it has
// read the store, until release is closed.
type pausingReservations struct {
	ReservationStore
	paused  atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (p *pausingReservations) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	records, err := p.ReservationStore.ListReservations(ctx, filter)
	if p.paused.CompareAndSwap(false, true) {
		close(p.read)
		<-p.release
	}
	return records, err
}

func TestReservationService_CheckCollisionsDropsAnswersOvertakenByWrites(t *testing.T) {
	t.Parallel()

	store := &pausingReservations{ReservationStore: newStorage(t), read: make(chan struct{}), release: make(chan struct{})}
	ids := &sequence{}
	svc := NewReservationService(store, recurrence.NewEngine(time.UTC, 0), ids.next, func() time.Time { return monday }, discardLogger())
	ctx := context.Background()
	release := sync.OnceFunc(func() { close(store.release) })
	defer release()

	query := CollisionQuery{ReservationUnitID: "unit-a", Begin: monday.Add(18 * time.Hour), End: monday.Add(19*time.Hour + 30*time.Minute)}

	type answer struct {
		collisions []scheduler.Collision
		err        error
	}
	inFlight := make(chan answer, 1)
	go func() {
		collisions, err := svc.CheckCollisions(ctx, query)
		inFlight <- answer{collisions: collisions, err: err}
	}()

	<-store.read
	series, err := svc.CreateSeries(ctx, weeklyTraining())
	if err != nil {
		release()
		t.Fatalf("CreateSeries returned error: %v", err)
	}
	release()

	if got := <-inFlight; got.err != nil || len(got.collisions) != 0 {
		t.Fatalf("in-flight check read the store before the write, got %+v", got)
	}

	collisions, err := svc.CheckCollisions(ctx, query)
	if err != nil {
		t.Fatalf("CheckCollisions returned error: %v", err)
	}
	if len(collisions) != 1 || collisions[0].ReservationID != series.Occurrences[0].ID {
		t.Fatalf("expected the committed occurrence to collide, got %+v", collisions)
	}
}

type failingReservations struct {
	ReservationStore
	err error
}

func (f failingReservations) ListReservations(context.Context, persistence.ReservationFilter) ([]persistence.Reservation, error) {
	return nil, f.err
}

func TestReservationService_StoreFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	svc := NewReservationService(failingReservations{ReservationStore: newStorage(t), err: boom}, nil, nil, nil, discardLogger())

	if _, err := svc.CreateSeries(context.Background(), weeklyTraining()); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if ErrorKind(boom) != "unexpected" {
		t.Fatalf("expected unexpected kind for raw store error")
	}
}
