package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/seasonal-allocation/internal/persistence"
)

const reservationColumns = `id, COALESCE(series_id, ''), reservation_unit_id, series_index, name, description, memo,
	begin_at, end_at, buffer_before_seconds, buffer_after_seconds, state, type, updated_at`

// CreateSeries stores a series together with its occurrences atomically.
func (s *Storage) CreateSeries(ctx context.Context, series persistence.ReservationSeries, occurrences []persistence.Reservation) error {
	if series.ID == "" || series.ReservationUnitID == "" || len(series.Weekdays) == 0 {
		return persistence.ErrConstraintViolation
	}
	if series.IntervalWeeks == 0 {
		series.IntervalWeeks = 1
	}
	if series.CreatedAt.IsZero() {
		series.CreatedAt = time.Now()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reservation_series (
				id, reservation_unit_id, name, description, weekdays, begin_time, end_time,
				starts_on, ends_on, interval_weeks, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			series.ID,
			series.ReservationUnitID,
			series.Name,
			series.Description,
			joinWeekdays(series.Weekdays),
			series.BeginTime,
			series.EndTime,
			formatTime(series.StartsOn),
			formatTime(series.EndsOn),
			series.IntervalWeeks,
			formatTime(series.CreatedAt),
		)
		if err != nil {
			return mapError(err)
		}
		for _, occ := range occurrences {
			occ.SeriesID = series.ID
			if err := insertReservation(ctx, tx, occ); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSeries loads a series by id.
func (s *Storage) GetSeries(ctx context.Context, id string) (persistence.ReservationSeries, error) {
	var (
		series                       persistence.ReservationSeries
		weekdays                     string
		startsOn, endsOn, createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, reservation_unit_id, name, description, weekdays, begin_time, end_time,
			starts_on, ends_on, interval_weeks, created_at
		FROM reservation_series WHERE id = ?`, id,
	).Scan(
		&series.ID,
		&series.ReservationUnitID,
		&series.Name,
		&series.Description,
		&weekdays,
		&series.BeginTime,
		&series.EndTime,
		&startsOn,
		&endsOn,
		&series.IntervalWeeks,
		&createdAt,
	)
	if err != nil {
		return persistence.ReservationSeries{}, mapError(err)
	}
	if series.Weekdays, err = splitWeekdays(weekdays); err != nil {
		return persistence.ReservationSeries{}, err
	}
	if series.StartsOn, err = parseTime(startsOn); err != nil {
		return persistence.ReservationSeries{}, err
	}
	if series.EndsOn, err = parseTime(endsOn); err != nil {
		return persistence.ReservationSeries{}, err
	}
	if series.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.ReservationSeries{}, err
	}
	return series, nil
}

// ListSeriesReservations returns a series' occurrences in series order.
func (s *Storage) ListSeriesReservations(ctx context.Context, seriesID string) ([]persistence.Reservation, error) {
	if _, err := s.GetSeries(ctx, seriesID); err != nil {
		return nil, err
	}
	return s.listReservations(ctx, `SELECT `+reservationColumns+`
		FROM reservations WHERE series_id = ?
		ORDER BY series_index ASC, begin_at ASC`, seriesID)
}

// CreateReservation inserts a standalone reservation or occurrence.
func (s *Storage) CreateReservation(ctx context.Context, r persistence.Reservation) error {
	return insertReservation(ctx, s.db, r)
}

// GetReservation loads a reservation by id.
func (s *Storage) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}
	return r, nil
}

// UpdateReservation overwrites the mutable fields of a reservation.
func (s *Storage) UpdateReservation(ctx context.Context, r persistence.Reservation) error {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE reservations
		SET name = ?, description = ?, memo = ?, begin_at = ?, end_at = ?,
			buffer_before_seconds = ?, buffer_after_seconds = ?, state = ?, type = ?, updated_at = ?
		WHERE id = ?`,
		r.Name,
		r.Description,
		r.Memo,
		formatTime(r.Begin),
		formatTime(r.End),
		int64(r.BufferBefore/time.Second),
		int64(r.BufferAfter/time.Second),
		r.State,
		r.Type,
		formatTime(r.UpdatedAt),
		r.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return affected(result)
}

// ListReservations returns a unit's reservations whose time, not counting
// buffers, overlaps the filter window. Callers widen the window to cover
// buffers.
func (s *Storage) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE reservation_unit_id = ?`
	args := []any{filter.ReservationUnitID}
	if !filter.To.IsZero() {
		query += ` AND begin_at < ?`
		args = append(args, formatTime(filter.To))
	}
	if !filter.From.IsZero() {
		query += ` AND end_at > ?`
		args = append(args, formatTime(filter.From))
	}
	query += ` ORDER BY begin_at ASC, id ASC`
	return s.listReservations(ctx, query, args...)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertReservation(ctx context.Context, db execer, r persistence.Reservation) error {
	if r.ID == "" || r.ReservationUnitID == "" {
		return persistence.ErrConstraintViolation
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	var seriesID any
	if r.SeriesID != "" {
		seriesID = r.SeriesID
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO reservations (
			id, series_id, reservation_unit_id, series_index, name, description, memo,
			begin_at, end_at, buffer_before_seconds, buffer_after_seconds, state, type, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		seriesID,
		r.ReservationUnitID,
		r.Index,
		r.Name,
		r.Description,
		r.Memo,
		formatTime(r.Begin),
		formatTime(r.End),
		int64(r.BufferBefore/time.Second),
		int64(r.BufferAfter/time.Second),
		r.State,
		r.Type,
		formatTime(r.UpdatedAt),
	)
	return mapError(err)
}

func (s *Storage) listReservations(ctx context.Context, query string, args ...any) ([]persistence.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, mapError(err)
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return reservations, nil
}

func scanReservation(row scanner) (persistence.Reservation, error) {
	var (
		r                         persistence.Reservation
		begin, end, updated       string
		bufferBefore, bufferAfter int64
	)
	if err := row.Scan(
		&r.ID,
		&r.SeriesID,
		&r.ReservationUnitID,
		&r.Index,
		&r.Name,
		&r.Description,
		&r.Memo,
		&begin,
		&end,
		&bufferBefore,
		&bufferAfter,
		&r.State,
		&r.Type,
		&updated,
	); err != nil {
		return persistence.Reservation{}, fmt.Errorf("scan reservation: %w", err)
	}
	var err error
	if r.Begin, err = parseTime(begin); err != nil {
		return persistence.Reservation{}, err
	}
	if r.End, err = parseTime(end); err != nil {
		return persistence.Reservation{}, err
	}
	if r.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Reservation{}, err
	}
	r.BufferBefore = time.Duration(bufferBefore) * time.Second
	r.BufferAfter = time.Duration(bufferAfter) * time.Second
	return r, nil
}

func joinWeekdays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

func splitWeekdays(value string) ([]int, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	days := make([]int, len(parts))
	for i, p := range parts {
		d, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse weekdays %q: %w", value, err)
		}
		days[i] = d
	}
	return days, nil
}
