package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/seasonal-allocation/internal/allocation"
	"github.com/example/seasonal-allocation/internal/application"
	"github.com/example/seasonal-allocation/internal/matching"
	"github.com/example/seasonal-allocation/internal/scheduler"
	"github.com/example/seasonal-allocation/internal/timeslot"
)

type allocationWorkflow interface {
	Open(ctx context.Context, sectionID string) (*allocation.Session, error)
	Accept(ctx context.Context, session *allocation.Session, reservationUnitID, rangeID string) (matching.AllocatedTimeSlot, error)
	ResetAllocation(ctx context.Context, allocationID string) error
}

// AllocationHandler serves the seasonal allocation endpoints. Each request
// works on a fresh session loaded from the backend.
type AllocationHandler struct {
	workflow  allocationWorkflow
	responder responder
	logger    *slog.Logger
}

func NewAllocationHandler(workflow allocationWorkflow, logger *slog.Logger) *AllocationHandler {
	base := defaultLogger(logger)
	return &AllocationHandler{workflow: workflow, responder: newResponder(base), logger: base}
}

func (h *AllocationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AllocationHandler", operation, attrs...)
}

func (h *AllocationHandler) GetSection(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.workflow == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sectionID := strings.TrimSpace(r.PathValue("id"))
	if sectionID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	session, err := h.workflow.Open(r.Context(), sectionID)
	if err != nil {
		h.log(r.Context(), "GetSection", "section_id", sectionID).ErrorContext(r.Context(), "failed to load section", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSectionDTO(session))
}

func (h *AllocationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.workflow == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sectionID := strings.TrimSpace(r.PathValue("id"))
	if sectionID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Evaluate", "section_id", sectionID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode evaluate request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Evaluate", "section_id", sectionID, "cells", len(req.Selection))

	session, err := h.workflow.Open(r.Context(), sectionID)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to load section", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	eval, err := session.Select(req.selection())
	if err != nil {
		logger.InfoContext(r.Context(), "selection rejected", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEvaluationDTO(session, eval))
}

func (h *AllocationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.workflow == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sectionID := strings.TrimSpace(r.PathValue("id"))
	if sectionID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Accept", "section_id", sectionID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode accept request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Accept", "section_id", sectionID, "reservation_unit_id", req.ReservationUnitID)

	session, err := h.workflow.Open(r.Context(), sectionID)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to load section", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	eval, err := session.Select(req.selection())
	if err != nil {
		logger.InfoContext(r.Context(), "selection rejected", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	slot, err := h.workflow.Accept(r.Context(), session, strings.TrimSpace(req.ReservationUnitID), strings.TrimSpace(req.SuitableTimeRangeID))
	if err != nil {
		logger.InfoContext(r.Context(), "accept failed", "error", err, "code", allocation.CodeOf(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	outside := eval.OutsideRequested
	if requested, ok := session.Section().Range(slot.SuitableTimeRangeID); ok {
		outside = matching.IsOutsideOfRequestedTimes(requested, eval.Window)
	}

	logger.With("allocation_id", slot.ID, "outside_requested", outside).InfoContext(r.Context(), "allocation accepted")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, acceptResponse{
		Allocation:       toAllocationDTO(slot),
		OutsideRequested: outside,
	})
}

func (h *AllocationHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.workflow == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	allocationID := strings.TrimSpace(r.PathValue("id"))
	if allocationID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	logger := h.log(r.Context(), "Reset", "allocation_id", allocationID)
	if err := h.workflow.ResetAllocation(r.Context(), allocationID); err != nil {
		logger.InfoContext(r.Context(), "reset failed", "error", err, "code", allocation.CodeOf(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "allocation reset")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type evaluateRequest struct {
	Selection []string `json:"selection"`
}

func (r evaluateRequest) selection() matching.Selection {
	return toSelection(r.Selection)
}

type acceptRequest struct {
	Selection           []string `json:"selection"`
	ReservationUnitID   string   `json:"reservation_unit_id"`
	SuitableTimeRangeID string   `json:"suitable_time_range_id,omitempty"`
}

func (r acceptRequest) selection() matching.Selection {
	return toSelection(r.Selection)
}

func toSelection(keys []string) matching.Selection {
	selection := make(matching.Selection, 0, len(keys))
	for _, k := range keys {
		selection = append(selection, timeslot.Key(strings.TrimSpace(k)))
	}
	return selection
}

type windowDTO struct {
	Day   string `json:"day"`
	Begin string `json:"begin"`
	End   string `json:"end"`
	Label string `json:"label"`
}

type rangeDTO struct {
	ID        string `json:"id"`
	Day       string `json:"day"`
	BeginTime string `json:"begin_time"`
	EndTime   string `json:"end_time"`
	Priority  string `json:"priority"`
	State     string `json:"state,omitempty"`
}

type allocationDTO struct {
	ID                  string `json:"id"`
	SuitableTimeRangeID string `json:"suitable_time_range_id"`
	ReservationUnitID   string `json:"reservation_unit_id"`
	Day                 string `json:"day"`
	BeginTime           string `json:"begin_time"`
	EndTime             string `json:"end_time"`
}

type sectionDTO struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	MinDurationSeconds int             `json:"min_duration_seconds"`
	MaxDurationSeconds int             `json:"max_duration_seconds"`
	ReservationUnitIDs []string        `json:"reservation_unit_ids"`
	Ranges             []rangeDTO      `json:"suitable_time_ranges"`
	Allocations        []allocationDTO `json:"allocations"`
}

type evaluationDTO struct {
	Window           windowDTO       `json:"window"`
	Matches          []rangeDTO      `json:"matches"`
	Allocated        []allocationDTO `json:"allocated"`
	Ambiguous        bool            `json:"ambiguous"`
	Contiguous       bool            `json:"contiguous"`
	DurationValid    bool            `json:"duration_valid"`
	OutsideRequested bool            `json:"outside_requested"`
}

type acceptResponse struct {
	Allocation       allocationDTO `json:"allocation"`
	OutsideRequested bool          `json:"outside_requested"`
}

func toWindowDTO(w scheduler.DayWindow) windowDTO {
	return windowDTO{
		Day:   w.Day.String(),
		Begin: timeslot.FormatAPITime(w.Start),
		End:   timeslot.FormatAPITime(w.End),
		Label: timeslot.Label(w.Start) + "-" + timeslot.Label(w.End),
	}
}

func toRangeDTO(r matching.SuitableTimeRange) rangeDTO {
	return rangeDTO{
		ID:        r.ID,
		Day:       r.Day.String(),
		BeginTime: r.BeginTime,
		EndTime:   r.EndTime,
		Priority:  string(r.Priority),
	}
}

func toAllocationDTO(a matching.AllocatedTimeSlot) allocationDTO {
	return allocationDTO{
		ID:                  a.ID,
		SuitableTimeRangeID: a.SuitableTimeRangeID,
		ReservationUnitID:   a.ReservationUnitID,
		Day:                 a.Day.String(),
		BeginTime:           a.BeginTime,
		EndTime:             a.EndTime,
	}
}

func toSectionDTO(session *allocation.Session) sectionDTO {
	section := session.Section()
	dto := sectionDTO{
		ID:                 section.ID,
		Name:               section.Name,
		MinDurationSeconds: section.MinDurationSeconds,
		MaxDurationSeconds: section.MaxDurationSeconds,
		ReservationUnitIDs: append([]string{}, section.ReservationUnitIDs...),
		Ranges:             make([]rangeDTO, 0, len(section.Ranges)),
		Allocations:        make([]allocationDTO, 0, len(section.Allocations)),
	}
	for _, r := range section.Ranges {
		item := toRangeDTO(r)
		item.State = session.State(r.ID).String()
		dto.Ranges = append(dto.Ranges, item)
	}
	for _, a := range section.Allocations {
		dto.Allocations = append(dto.Allocations, toAllocationDTO(a))
	}
	return dto
}

func toEvaluationDTO(session *allocation.Session, eval matching.Evaluation) evaluationDTO {
	dto := evaluationDTO{
		Window:           toWindowDTO(eval.Window),
		Matches:          make([]rangeDTO, 0, len(eval.Matches)),
		Allocated:        make([]allocationDTO, 0, len(eval.Allocated)),
		Ambiguous:        eval.Ambiguous(),
		Contiguous:       eval.Contiguous,
		DurationValid:    eval.DurationValid,
		OutsideRequested: eval.OutsideRequested,
	}
	for _, m := range eval.Matches {
		item := toRangeDTO(m)
		item.State = session.State(m.ID).String()
		dto.Matches = append(dto.Matches, item)
	}
	for _, a := range eval.Allocated {
		dto.Allocated = append(dto.Allocated, toAllocationDTO(a))
	}
	return dto
}
