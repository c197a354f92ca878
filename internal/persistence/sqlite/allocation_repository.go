package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/seasonal-allocation/internal/persistence"
)

const allocationColumns = `a.id, a.suitable_time_range_id, a.reservation_unit_id, a.day, a.begin_time, a.end_time, a.created_at`

// CreateAllocation inserts an allocated slot. A second allocation for the
// same range fails with persistence.ErrDuplicate.
func (s *Storage) CreateAllocation(ctx context.Context, slot persistence.AllocatedTimeSlot) error {
	if slot.ID == "" || slot.SuitableTimeRangeID == "" || slot.ReservationUnitID == "" {
		return persistence.ErrConstraintViolation
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO allocated_time_slots (id, suitable_time_range_id, reservation_unit_id, day, begin_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		slot.ID,
		slot.SuitableTimeRangeID,
		slot.ReservationUnitID,
		slot.Day,
		slot.BeginTime,
		slot.EndTime,
		formatTime(slot.CreatedAt),
	)
	return mapError(err)
}

// GetAllocation loads an allocation by id.
func (s *Storage) GetAllocation(ctx context.Context, id string) (persistence.AllocatedTimeSlot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+allocationColumns+` FROM allocated_time_slots a WHERE a.id = ?`, id)
	slot, err := scanAllocation(row)
	if err != nil {
		return persistence.AllocatedTimeSlot{}, mapError(err)
	}
	return slot, nil
}

// DeleteAllocation removes an allocation.
func (s *Storage) DeleteAllocation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM allocated_time_slots WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return affected(result)
}

// ListAllocationsForSection returns the allocations of a section's ranges.
func (s *Storage) ListAllocationsForSection(ctx context.Context, sectionID string) ([]persistence.AllocatedTimeSlot, error) {
	return s.listAllocations(ctx, `
		SELECT `+allocationColumns+`
		FROM allocated_time_slots a
		JOIN suitable_time_ranges r ON r.id = a.suitable_time_range_id
		WHERE r.section_id = ?
		ORDER BY a.day ASC, a.begin_time ASC, a.id ASC`, sectionID)
}

// ListAllocationsForUnitDay returns every allocation of a unit on a weekday.
func (s *Storage) ListAllocationsForUnitDay(ctx context.Context, reservationUnitID string, day int) ([]persistence.AllocatedTimeSlot, error) {
	return s.listAllocations(ctx, `
		SELECT `+allocationColumns+`
		FROM allocated_time_slots a
		WHERE a.reservation_unit_id = ? AND a.day = ?
		ORDER BY a.begin_time ASC, a.id ASC`, reservationUnitID, day)
}

func (s *Storage) listAllocations(ctx context.Context, query string, args ...any) ([]persistence.AllocatedTimeSlot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var slots []persistence.AllocatedTimeSlot
	for rows.Next() {
		slot, err := scanAllocation(rows)
		if err != nil {
			return nil, mapError(err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return slots, nil
}

func scanAllocation(row scanner) (persistence.AllocatedTimeSlot, error) {
	var (
		slot      persistence.AllocatedTimeSlot
		createdAt string
	)
	if err := row.Scan(&slot.ID, &slot.SuitableTimeRangeID, &slot.ReservationUnitID, &slot.Day, &slot.BeginTime, &slot.EndTime, &createdAt); err != nil {
		return persistence.AllocatedTimeSlot{}, fmt.Errorf("scan allocation: %w", err)
	}
	var err error
	if slot.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.AllocatedTimeSlot{}, err
	}
	return slot, nil
}
