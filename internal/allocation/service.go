package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/seasonal-allocation/internal/logging"
	"github.com/example/seasonal-allocation/internal/matching"
)

const tracerName = "github.com/example/seasonal-allocation/internal/allocation"

// SectionLoader reads the query-layer view of an application section.
type SectionLoader interface {
	LoadSection(ctx context.Context, sectionID string) (matching.Section, error)
}

// Mutator issues allocation mutations against the backend. Rejections should
// carry the backend's messages so they can be classified.
type Mutator interface {
	CreateAllocation(ctx context.Context, req AcceptRequest) (matching.AllocatedTimeSlot, error)
	DeleteAllocation(ctx context.Context, allocationID string) error
}

// Service runs accept and reset decisions. It holds no per-operator state;
// that lives in Session.
type Service struct {
	sections SectionLoader
	mutator  Mutator
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewService wires the allocation workflow.
func NewService(sections SectionLoader, mutator Mutator, logger *slog.Logger) *Service {
	return &Service{
		sections: sections,
		mutator:  mutator,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

func (s *Service) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, s.logger, "AllocationService", operation, attrs...)
}

// Open loads a section and starts a session over it.
func (s *Service) Open(ctx context.Context, sectionID string) (*Session, error) {
	if s == nil || s.sections == nil {
		return nil, errors.New("allocation: service is not configured")
	}
	section, err := s.sections.LoadSection(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("allocation: load section %s: %w", sectionID, err)
	}
	return NewSession(section), nil
}

// Accept allocates the session's current selection to a reservation unit.
// Backend rejections come back as *Error. On success the section is
// refetched; a failed refetch is logged and leaves the local state updated.
func (s *Service) Accept(ctx context.Context, session *Session, reservationUnitID, rangeID string) (matching.AllocatedTimeSlot, error) {
	if s == nil || s.mutator == nil {
		return matching.AllocatedTimeSlot{}, errors.New("allocation: service is not configured")
	}

	ctx, span := s.tracer.Start(ctx, "allocation.accept", trace.WithAttributes(
		attribute.String("allocation.section_id", session.Section().ID),
		attribute.String("allocation.reservation_unit_id", reservationUnitID),
	))
	defer span.End()

	logger := s.log(ctx, "Accept", "section_id", session.Section().ID, "reservation_unit_id", reservationUnitID)

	req, err := session.PrepareAccept(reservationUnitID, rangeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prepare failed")
		logger.InfoContext(ctx, "accept refused locally", "error", err, "code", CodeOf(err))
		return matching.AllocatedTimeSlot{}, err
	}
	span.SetAttributes(
		attribute.String("allocation.suitable_time_range_id", req.SuitableTimeRangeID),
		attribute.Bool("allocation.outside_requested", req.OutsideRequested),
	)
	logger = logger.With("suitable_time_range_id", req.SuitableTimeRangeID, "day", req.Day.String(), "begin", req.Begin, "end", req.End)
	if req.OutsideRequested {
		logger.WarnContext(ctx, "allocating outside the requested time range")
	}

	slot, err := s.mutator.CreateAllocation(ctx, req)
	if err != nil {
		classified := Classify(OpAccept, err)
		s.report(ctx, logger, span, classified)
		return matching.AllocatedTimeSlot{}, classified
	}

	session.markAllocated(slot)
	s.refetch(ctx, logger, session)
	logger.With("allocation_id", slot.ID).InfoContext(ctx, "allocation accepted")
	return slot, nil
}

// Reset removes the allocation held by a suitable time range in the session.
func (s *Service) Reset(ctx context.Context, session *Session, rangeID string) error {
	if s == nil || s.mutator == nil {
		return errors.New("allocation: service is not configured")
	}
	slot, ok := session.allocationFor(rangeID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAllocated, rangeID)
	}

	ctx, span := s.tracer.Start(ctx, "allocation.reset", trace.WithAttributes(
		attribute.String("allocation.section_id", session.Section().ID),
		attribute.String("allocation.id", slot.ID),
	))
	defer span.End()

	logger := s.log(ctx, "Reset", "section_id", session.Section().ID, "allocation_id", slot.ID)
	if err := s.mutator.DeleteAllocation(ctx, slot.ID); err != nil {
		classified := Classify(OpReset, err)
		s.report(ctx, logger, span, classified)
		return classified
	}

	session.markUnallocated(rangeID)
	s.refetch(ctx, logger, session)
	logger.InfoContext(ctx, "allocation reset")
	return nil
}

// ResetAllocation removes an allocation by id without a session.
func (s *Service) ResetAllocation(ctx context.Context, allocationID string) error {
	if s == nil || s.mutator == nil {
		return errors.New("allocation: service is not configured")
	}
	ctx, span := s.tracer.Start(ctx, "allocation.reset", trace.WithAttributes(
		attribute.String("allocation.id", allocationID),
	))
	defer span.End()

	logger := s.log(ctx, "ResetAllocation", "allocation_id", allocationID)
	if err := s.mutator.DeleteAllocation(ctx, allocationID); err != nil {
		classified := Classify(OpReset, err)
		s.report(ctx, logger, span, classified)
		return classified
	}
	logger.InfoContext(ctx, "allocation reset")
	return nil
}

func (s *Service) report(ctx context.Context, logger *slog.Logger, span trace.Span, err *Error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(err.Code))
	span.SetAttributes(attribute.String("allocation.error_code", string(err.Code)))

	attrs := []any{"error", err.Err, "code", err.Code, "message_key", err.MessageKey()}
	if err.Code == CodeGeneric {
		logger.WarnContext(ctx, "unrecognised allocation failure", attrs...)
		return
	}
	logger.InfoContext(ctx, "allocation rejected", attrs...)
}

func (s *Service) refetch(ctx context.Context, logger *slog.Logger, session *Session) {
	if s.sections == nil {
		return
	}
	section, err := s.sections.LoadSection(ctx, session.Section().ID)
	if err != nil {
		logger.WarnContext(ctx, "failed to refetch section", "error", err)
		return
	}
	session.Refresh(section)
}
