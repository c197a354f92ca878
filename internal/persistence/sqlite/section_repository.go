package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/seasonal-allocation/internal/persistence"
)

// CreateSection inserts a section and its reservation unit options.
func (s *Storage) CreateSection(ctx context.Context, section persistence.ApplicationSection) error {
	if section.ID == "" || section.ApplicationID == "" {
		return persistence.ErrConstraintViolation
	}
	now := time.Now()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	if section.UpdatedAt.IsZero() {
		section.UpdatedAt = section.CreatedAt
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO application_sections (
				id, application_id, name, status, application_status,
				min_duration_seconds, max_duration_seconds, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			section.ID,
			section.ApplicationID,
			section.Name,
			string(section.Status),
			string(section.ApplicationStatus),
			section.MinDurationSeconds,
			section.MaxDurationSeconds,
			formatTime(section.CreatedAt),
			formatTime(section.UpdatedAt),
		)
		if err != nil {
			return mapError(err)
		}
		for i, unitID := range section.ReservationUnitIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO section_reservation_units (section_id, reservation_unit_id, position) VALUES (?, ?, ?)`,
				section.ID, unitID, i,
			); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// GetSection loads a section with its reservation unit options in order.
func (s *Storage) GetSection(ctx context.Context, id string) (persistence.ApplicationSection, error) {
	var (
		section            persistence.ApplicationSection
		status, appStatus  string
		createdAt, updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, application_id, name, status, application_status,
			min_duration_seconds, max_duration_seconds, created_at, updated_at
		FROM application_sections
		WHERE id = ?`, id,
	).Scan(
		&section.ID,
		&section.ApplicationID,
		&section.Name,
		&status,
		&appStatus,
		&section.MinDurationSeconds,
		&section.MaxDurationSeconds,
		&createdAt,
		&updated,
	)
	if err != nil {
		return persistence.ApplicationSection{}, mapError(err)
	}
	section.Status = persistence.SectionStatus(status)
	section.ApplicationStatus = persistence.ApplicationStatus(appStatus)
	if section.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.ApplicationSection{}, err
	}
	if section.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.ApplicationSection{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT reservation_unit_id FROM section_reservation_units WHERE section_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return persistence.ApplicationSection{}, mapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var unitID string
		if err := rows.Scan(&unitID); err != nil {
			return persistence.ApplicationSection{}, mapError(err)
		}
		section.ReservationUnitIDs = append(section.ReservationUnitIDs, unitID)
	}
	if err := rows.Err(); err != nil {
		return persistence.ApplicationSection{}, mapError(err)
	}
	return section, nil
}

// UpdateSectionStatus changes the section and application statuses.
func (s *Storage) UpdateSectionStatus(ctx context.Context, id string, status persistence.SectionStatus, applicationStatus persistence.ApplicationStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE application_sections SET status = ?, application_status = ?, updated_at = ? WHERE id = ?`,
		string(status), string(applicationStatus), formatTime(time.Now()), id,
	)
	if err != nil {
		return mapError(err)
	}
	return affected(result)
}

// CreateSuitableTimeRange inserts a requested range.
func (s *Storage) CreateSuitableTimeRange(ctx context.Context, r persistence.SuitableTimeRange) error {
	if r.ID == "" || r.SectionID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suitable_time_ranges (id, section_id, day, begin_time, end_time, priority)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.SectionID, r.Day, r.BeginTime, r.EndTime, r.Priority,
	)
	return mapError(err)
}

// GetSuitableTimeRange loads a requested range by id.
func (s *Storage) GetSuitableTimeRange(ctx context.Context, id string) (persistence.SuitableTimeRange, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, section_id, day, begin_time, end_time, priority
		FROM suitable_time_ranges WHERE id = ?`, id)
	r, err := scanRange(row)
	if err != nil {
		return persistence.SuitableTimeRange{}, mapError(err)
	}
	return r, nil
}

// ListSuitableTimeRanges returns a section's ranges ordered by day and begin.
func (s *Storage) ListSuitableTimeRanges(ctx context.Context, sectionID string) ([]persistence.SuitableTimeRange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, section_id, day, begin_time, end_time, priority
		FROM suitable_time_ranges
		WHERE section_id = ?
		ORDER BY day ASC, begin_time ASC, id ASC`, sectionID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ranges []persistence.SuitableTimeRange
	for rows.Next() {
		r, err := scanRange(rows)
		if err != nil {
			return nil, mapError(err)
		}
		ranges = append(ranges, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return ranges, nil
}

func scanRange(row scanner) (persistence.SuitableTimeRange, error) {
	var r persistence.SuitableTimeRange
	if err := row.Scan(&r.ID, &r.SectionID, &r.Day, &r.BeginTime, &r.EndTime, &r.Priority); err != nil {
		return persistence.SuitableTimeRange{}, fmt.Errorf("scan suitable time range: %w", err)
	}
	return r, nil
}
