package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/seasonal-allocation/internal/persistence"
	"github.com/example/seasonal-allocation/internal/recurrence"
	"github.com/example/seasonal-allocation/internal/scheduler"
	"github.com/example/seasonal-allocation/internal/timeslot"
)

// collisionLookaround widens store queries so reservations whose buffers
// reach into the checked window are considered.
const collisionLookaround = 24 * time.Hour

// ReservationStore captures the reservation persistence needed by the service.
type ReservationStore interface {
	CreateSeries(ctx context.Context, series persistence.ReservationSeries, occurrences []persistence.Reservation) error
	GetSeries(ctx context.Context, id string) (persistence.ReservationSeries, error)
	ListSeriesReservations(ctx context.Context, seriesID string) ([]persistence.Reservation, error)
	GetReservation(ctx context.Context, id string) (persistence.Reservation, error)
	UpdateReservation(ctx context.Context, r persistence.Reservation) error
	ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error)
}

// ReservationService manages recurring series, single occurrence edits and
// collision queries for reservation units.
type ReservationService struct {
	reservations ReservationStore
	engine       *recurrence.Engine
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
	cache        *collisionCache

	// mu serialises writes with the collision checks guarding them.
	mu sync.Mutex
}

// NewReservationService wires reservation operations. A nil engine expands
// series in UTC.
func NewReservationService(reservations ReservationStore, engine *recurrence.Engine, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if engine == nil {
		engine = recurrence.NewEngine(time.UTC, 0)
	}
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		reservations: reservations,
		engine:       engine,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
		cache:        newCollisionCache(0, 0, now),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// CreateSeries expands a recurring rule and stores the series with all of its
// occurrences. If any occurrence collides with an existing reservation of the
// unit nothing is stored and a *CollisionError lists every collision.
func (s *ReservationService) CreateSeries(ctx context.Context, params CreateSeriesParams) (series Series, err error) {
	if s == nil || s.reservations == nil {
		err = fmt.Errorf("ReservationService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateSeries", "reservation_unit_id", params.ReservationUnitID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create series", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("series_id", series.ID, "occurrences", len(series.Occurrences)).InfoContext(ctx, "series created")
	}()

	if vErr := validateSeriesParams(params); vErr.HasErrors() {
		err = vErr
		return
	}

	seriesID := s.idGenerator()
	occurrences, expandErr := s.engine.Expand(recurrence.Rule{
		SeriesID:      seriesID,
		Weekdays:      params.Weekdays,
		BeginTime:     params.BeginTime,
		EndTime:       params.EndTime,
		StartsOn:      params.StartsOn,
		EndsOn:        params.EndsOn,
		IntervalWeeks: params.IntervalWeeks,
		SkipDates:     params.SkipDates,
	})
	if expandErr != nil {
		v := &ValidationError{}
		v.add("rule", expandErr.Error())
		err = v
		return
	}
	if len(occurrences) == 0 {
		v := &ValidationError{}
		v.add("rule", "rule produces no occurrences")
		err = v
		return
	}

	kind := params.Type
	if kind == "" {
		kind = scheduler.TypeNormal
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	first, last := occurrences[0], occurrences[len(occurrences)-1]
	existing, err := s.unitOccupancy(ctx, params.ReservationUnitID,
		first.Begin.Add(-params.BufferBefore), last.End.Add(params.BufferAfter))
	if err != nil {
		return
	}

	var collisions []OccurrenceCollision
	records := make([]persistence.Reservation, 0, len(occurrences))
	series = Series{
		ID:                seriesID,
		ReservationUnitID: params.ReservationUnitID,
		Name:              strings.TrimSpace(params.Name),
		Description:       strings.TrimSpace(params.Description),
		Weekdays:          append([]timeslot.Weekday(nil), params.Weekdays...),
		BeginTime:         params.BeginTime,
		EndTime:           params.EndTime,
		StartsOn:          params.StartsOn,
		EndsOn:            params.EndsOn,
		IntervalWeeks:     max(params.IntervalWeeks, 1),
		Occurrences:       make([]Reservation, 0, len(occurrences)),
	}
	for _, occ := range occurrences {
		with := scheduler.DetectCollisions(existing, scheduler.Candidate{
			Interval:     scheduler.Interval{Start: occ.Begin, End: occ.End},
			BufferBefore: params.BufferBefore,
			BufferAfter:  params.BufferAfter,
		})
		if len(with) > 0 {
			collisions = append(collisions, OccurrenceCollision{Index: occ.Index, Begin: occ.Begin, End: occ.End, With: with})
			continue
		}
		reservation := Reservation{
			ID:                s.idGenerator(),
			SeriesID:          seriesID,
			ReservationUnitID: params.ReservationUnitID,
			Index:             occ.Index,
			Name:              series.Name,
			Description:       series.Description,
			Begin:             occ.Begin,
			End:               occ.End,
			BufferBefore:      params.BufferBefore,
			BufferAfter:       params.BufferAfter,
			State:             scheduler.StateConfirmed,
			Type:              kind,
			UpdatedAt:         now,
		}
		series.Occurrences = append(series.Occurrences, reservation)
		records = append(records, reservation.record())
	}
	if len(collisions) > 0 {
		series = Series{}
		err = &CollisionError{Collisions: collisions}
		return
	}

	weekdays := make([]int, len(params.Weekdays))
	for i, d := range params.Weekdays {
		weekdays[i] = int(d)
	}
	err = s.reservations.CreateSeries(ctx, persistence.ReservationSeries{
		ID:                seriesID,
		ReservationUnitID: params.ReservationUnitID,
		Name:              series.Name,
		Description:       series.Description,
		Weekdays:          weekdays,
		BeginTime:         params.BeginTime,
		EndTime:           params.EndTime,
		StartsOn:          params.StartsOn,
		EndsOn:            params.EndsOn,
		IntervalWeeks:     series.IntervalWeeks,
		CreatedAt:         now,
	}, records)
	if err != nil {
		series = Series{}
		err = mapRepoError(err)
		return
	}
	s.cache.Invalidate(params.ReservationUnitID)
	return
}

// ListOccurrences returns the reservations of a series in series order.
func (s *ReservationService) ListOccurrences(ctx context.Context, seriesID string) ([]Reservation, error) {
	if s == nil || s.reservations == nil {
		return nil, fmt.Errorf("ReservationService is not configured")
	}
	records, err := s.reservations.ListSeriesReservations(ctx, seriesID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	out := make([]Reservation, 0, len(records))
	for _, rec := range records {
		out = append(out, reservationFromRecord(rec))
	}
	return out, nil
}

// EditReservation changes one reservation. Only confirmed reservations can be
// changed, and new buffers must not reach into another reservation.
func (s *ReservationService) EditReservation(ctx context.Context, params EditReservationParams) (reservation Reservation, err error) {
	if s == nil || s.reservations == nil {
		err = fmt.Errorf("ReservationService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "EditReservation", "reservation_id", params.ReservationID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "reservation edit refused", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation edited")
	}()

	if vErr := validateEditParams(params); vErr.HasErrors() {
		err = vErr
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.reservations.GetReservation(ctx, params.ReservationID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	reservation = reservationFromRecord(record)
	if reservation.State != scheduler.StateConfirmed {
		err = reject(fmt.Sprintf("Reservation cannot be changed in state: '%s'", reservation.State))
		reservation = Reservation{}
		return
	}

	buffersChanged := false
	if params.Name != nil {
		reservation.Name = strings.TrimSpace(*params.Name)
	}
	if params.Description != nil {
		reservation.Description = strings.TrimSpace(*params.Description)
	}
	if params.Memo != nil {
		reservation.Memo = *params.Memo
	}
	if params.BufferBefore != nil && *params.BufferBefore != reservation.BufferBefore {
		reservation.BufferBefore = *params.BufferBefore
		buffersChanged = true
	}
	if params.BufferAfter != nil && *params.BufferAfter != reservation.BufferAfter {
		reservation.BufferAfter = *params.BufferAfter
		buffersChanged = true
	}

	if buffersChanged {
		var existing []scheduler.Reservation
		existing, err = s.unitOccupancy(ctx, reservation.ReservationUnitID,
			reservation.Begin.Add(-reservation.BufferBefore), reservation.End.Add(reservation.BufferAfter))
		if err != nil {
			reservation = Reservation{}
			return
		}
		if scheduler.HasCollision(existing, scheduler.Candidate{
			Interval:     reservation.occupancy().Interval(),
			BufferBefore: reservation.BufferBefore,
			BufferAfter:  reservation.BufferAfter,
			ExcludeID:    reservation.ID,
		}) {
			err = reject("Reservation buffers overlap with another reservation")
			reservation = Reservation{}
			return
		}
	}

	reservation.UpdatedAt = s.now()
	if err = s.reservations.UpdateReservation(ctx, reservation.record()); err != nil {
		err = mapRepoError(err)
		reservation = Reservation{}
		return
	}
	s.cache.Invalidate(reservation.ReservationUnitID)
	return
}

// DenyReservation frees a reservation's time by moving it to Denied.
func (s *ReservationService) DenyReservation(ctx context.Context, reservationID string) (reservation Reservation, err error) {
	if s == nil || s.reservations == nil {
		err = fmt.Errorf("ReservationService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "DenyReservation", "reservation_id", reservationID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "reservation denial refused", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation denied")
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	reservation = reservationFromRecord(record)
	if !reservation.occupancy().Blocking() {
		err = reject(fmt.Sprintf("Reservation cannot be denied in state: '%s'", reservation.State))
		reservation = Reservation{}
		return
	}

	reservation.State = scheduler.StateDenied
	reservation.UpdatedAt = s.now()
	if err = s.reservations.UpdateReservation(ctx, reservation.record()); err != nil {
		err = mapRepoError(err)
		reservation = Reservation{}
		return
	}
	s.cache.Invalidate(reservation.ReservationUnitID)
	return
}

// CheckCollisions lists the reservations of the unit that the proposed time
// would overlap, buffers included.
func (s *ReservationService) CheckCollisions(ctx context.Context, query CollisionQuery) ([]scheduler.Collision, error) {
	if s == nil || s.reservations == nil {
		return nil, fmt.Errorf("ReservationService is not configured")
	}

	v := &ValidationError{}
	if strings.TrimSpace(query.ReservationUnitID) == "" {
		v.add("reservation_unit_id", "reservation unit is required")
	}
	if !query.End.After(query.Begin) {
		v.add("end", "end must be after begin")
	}
	if query.BufferBefore < 0 || query.BufferAfter < 0 {
		v.add("buffer", "buffers must not be negative")
	}
	if v.HasErrors() {
		return nil, v
	}

	cached, generation, ok := s.cache.Lookup(query)
	if ok {
		return cached, nil
	}

	existing, err := s.unitOccupancy(ctx, query.ReservationUnitID,
		query.Begin.Add(-query.BufferBefore), query.End.Add(query.BufferAfter))
	if err != nil {
		return nil, err
	}
	collisions := scheduler.DetectCollisions(existing, scheduler.Candidate{
		Interval:     scheduler.Interval{Start: query.Begin, End: query.End},
		BufferBefore: query.BufferBefore,
		BufferAfter:  query.BufferAfter,
		ExcludeID:    query.ExcludeID,
	})
	s.cache.Store(query, generation, collisions)
	return collisions, nil
}

// unitOccupancy loads the unit's reservations around [from, to).
func (s *ReservationService) unitOccupancy(ctx context.Context, unitID string, from, to time.Time) ([]scheduler.Reservation, error) {
	records, err := s.reservations.ListReservations(ctx, persistence.ReservationFilter{
		ReservationUnitID: unitID,
		From:              from.Add(-collisionLookaround),
		To:                to.Add(collisionLookaround),
	})
	if err != nil {
		return nil, mapRepoError(err)
	}
	out := make([]scheduler.Reservation, 0, len(records))
	for _, rec := range records {
		out = append(out, reservationFromRecord(rec).occupancy())
	}
	return out, nil
}

func validateSeriesParams(params CreateSeriesParams) *ValidationError {
	v := &ValidationError{}
	if strings.TrimSpace(params.ReservationUnitID) == "" {
		v.add("reservation_unit_id", "reservation unit is required")
	}
	if len(params.Weekdays) == 0 {
		v.add("weekdays", "at least one weekday is required")
	}
	if params.StartsOn.IsZero() || params.EndsOn.IsZero() {
		v.add("dates", "start and end dates are required")
	}
	if params.BufferBefore < 0 || params.BufferAfter < 0 {
		v.add("buffer", "buffers must not be negative")
	}
	return v
}

func validateEditParams(params EditReservationParams) *ValidationError {
	v := &ValidationError{}
	if strings.TrimSpace(params.ReservationID) == "" {
		v.add("reservation_id", "reservation is required")
	}
	if params.Name == nil && params.Description == nil && params.Memo == nil && params.BufferBefore == nil && params.BufferAfter == nil {
		v.add("payload", "nothing to change")
	}
	if (params.BufferBefore != nil && *params.BufferBefore < 0) || (params.BufferAfter != nil && *params.BufferAfter < 0) {
		v.add("buffer", "buffers must not be negative")
	}
	return v
}

// IsRejection reports whether err is a business rule refusal.
func IsRejection(err error) bool {
	var r *RejectionError
	return errors.As(err, &r)
}
