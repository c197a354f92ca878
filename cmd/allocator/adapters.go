package main

import (
	"context"

	"github.com/example/seasonal-allocation/internal/allocation"
	"github.com/example/seasonal-allocation/internal/application"
	"github.com/example/seasonal-allocation/internal/batch"
	"github.com/example/seasonal-allocation/internal/matching"
)

// backendAdapter serves the allocation workflow from the reference backend.
type backendAdapter struct {
	service *application.AllocationService
}

func (a backendAdapter) LoadSection(ctx context.Context, id string) (matching.Section, error) {
	return a.service.Section(ctx, id)
}

func (a backendAdapter) CreateAllocation(ctx context.Context, req allocation.AcceptRequest) (matching.AllocatedTimeSlot, error) {
	return a.service.CreateAllocation(ctx, application.CreateAllocationInput{
		SuitableTimeRangeID: req.SuitableTimeRangeID,
		ReservationUnitID:   req.ReservationUnitID,
		Day:                 req.Day,
		BeginTime:           req.Begin,
		EndTime:             req.End,
		Force:               req.Force,
	})
}

func (a backendAdapter) DeleteAllocation(ctx context.Context, id string) error {
	return a.service.DeleteAllocation(ctx, id)
}

// seriesAdapter lets the batch orchestrator read and edit series occurrences.
type seriesAdapter struct {
	service *application.ReservationService
}

func (a seriesAdapter) ListOccurrences(ctx context.Context, seriesID string) ([]batch.Occurrence, error) {
	reservations, err := a.service.ListOccurrences(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	occurrences := make([]batch.Occurrence, 0, len(reservations))
	for _, r := range reservations {
		occurrences = append(occurrences, batch.Occurrence{
			ID:       r.ID,
			SeriesID: r.SeriesID,
			Index:    r.Index,
			Begin:    r.Begin,
			End:      r.End,
			State:    r.State,
		})
	}
	return occurrences, nil
}

func (a seriesAdapter) ApplyEdit(ctx context.Context, occurrence batch.Occurrence, payload batch.EditPayload) error {
	_, err := a.service.EditReservation(ctx, application.EditReservationParams{
		ReservationID: occurrence.ID,
		Name:          payload.Name,
		Description:   payload.Description,
		Memo:          payload.Memo,
		BufferBefore:  payload.BufferBefore,
		BufferAfter:   payload.BufferAfter,
	})
	return err
}
