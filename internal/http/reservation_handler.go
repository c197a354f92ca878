package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/seasonal-allocation/internal/application"
	"github.com/example/seasonal-allocation/internal/batch"
	"github.com/example/seasonal-allocation/internal/scheduler"
	"github.com/example/seasonal-allocation/internal/timeslot"
)

const dateLayout = "2006-01-02"

type reservationService interface {
	CreateSeries(ctx context.Context, params application.CreateSeriesParams) (application.Series, error)
	ListOccurrences(ctx context.Context, seriesID string) ([]application.Reservation, error)
	CheckCollisions(ctx context.Context, query application.CollisionQuery) ([]scheduler.Collision, error)
}

type seriesEditor interface {
	Apply(ctx context.Context, seriesID string, payload batch.EditPayload) (batch.Result, error)
}

// ReservationHandler serves recurring series, batch edits and collision
// checks. Dates in requests are calendar days in location.
type ReservationHandler struct {
	service   reservationService
	editor    seriesEditor
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, editor seriesEditor, location *time.Location, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.UTC
	}
	return &ReservationHandler{service: service, editor: editor, location: location, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req seriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateSeries", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode series request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateSeries", "reservation_unit_id", req.ReservationUnitID)

	params, err := req.toParams(h.location)
	if err != nil {
		logger.InfoContext(r.Context(), "invalid series request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	series, err := h.service.CreateSeries(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "series creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("series_id", series.ID, "occurrences", len(series.Occurrences)).InfoContext(r.Context(), "series created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toSeriesDTO(series))
}

func (h *ReservationHandler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	seriesID := strings.TrimSpace(r.PathValue("id"))
	if seriesID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	occurrences, err := h.service.ListOccurrences(r.Context(), seriesID)
	if err != nil {
		h.log(r.Context(), "ListOccurrences", "series_id", seriesID).ErrorContext(r.Context(), "failed to list occurrences", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, occurrencesResponse{Occurrences: toReservationDTOs(occurrences)})
}

func (h *ReservationHandler) EditSeries(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.editor == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	seriesID := strings.TrimSpace(r.PathValue("id"))
	if seriesID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "EditSeries", "series_id", seriesID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode edit request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "EditSeries", "series_id", seriesID)

	payload, err := req.toPayload()
	if err != nil {
		logger.InfoContext(r.Context(), "invalid edit request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	// Issued edits run to completion even if the client disconnects.
	result, err := h.editor.Apply(context.WithoutCancel(r.Context()), seriesID, payload)
	if err != nil {
		logger.ErrorContext(r.Context(), "batch edit failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("job_id", result.JobID, "status", result.Status).InfoContext(r.Context(), "batch edit finished")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBatchResultDTO(result))
}

func (h *ReservationHandler) CheckCollisions(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	unitID := strings.TrimSpace(r.PathValue("id"))
	if unitID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req collisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CheckCollisions", "reservation_unit_id", unitID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode collision request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if req.BufferBefore < 0 || req.BufferAfter < 0 {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errNegativeSeconds)
		return
	}

	collisions, err := h.service.CheckCollisions(r.Context(), application.CollisionQuery{
		ReservationUnitID: unitID,
		Begin:             req.Begin,
		End:               req.End,
		BufferBefore:      seconds(req.BufferBefore),
		BufferAfter:       seconds(req.BufferAfter),
		ExcludeID:         strings.TrimSpace(req.ExcludeID),
	})
	if err != nil {
		h.log(r.Context(), "CheckCollisions", "reservation_unit_id", unitID).ErrorContext(r.Context(), "collision check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, collisionResponse{
		Collides: len(collisions) > 0,
		With:     toCollisionDTOs(collisions),
	})
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

type seriesRequest struct {
	ReservationUnitID string   `json:"reservation_unit_id"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Weekdays          []string `json:"weekdays"`
	BeginTime         string   `json:"begin_time"`
	EndTime           string   `json:"end_time"`
	StartsOn          string   `json:"starts_on"`
	EndsOn            string   `json:"ends_on"`
	IntervalWeeks     int      `json:"interval_weeks"`
	SkipDates         []string `json:"skip_dates"`
	BufferBefore      int      `json:"buffer_before"`
	BufferAfter       int      `json:"buffer_after"`
	Type              string   `json:"type"`
}

func (r seriesRequest) toParams(loc *time.Location) (application.CreateSeriesParams, error) {
	params := application.CreateSeriesParams{
		ReservationUnitID: strings.TrimSpace(r.ReservationUnitID),
		Name:              r.Name,
		Description:       r.Description,
		BeginTime:         strings.TrimSpace(r.BeginTime),
		EndTime:           strings.TrimSpace(r.EndTime),
		IntervalWeeks:     r.IntervalWeeks,
		BufferBefore:      seconds(r.BufferBefore),
		BufferAfter:       seconds(r.BufferAfter),
		Type:              scheduler.ReservationType(strings.ToUpper(strings.TrimSpace(r.Type))),
	}
	if r.BufferBefore < 0 || r.BufferAfter < 0 {
		return params, errNegativeSeconds
	}

	for _, name := range r.Weekdays {
		day, ok := timeslot.ParseWeekday(name)
		if !ok {
			return params, fmt.Errorf("%w: %q", errInvalidWeekday, name)
		}
		params.Weekdays = append(params.Weekdays, day)
	}

	var err error
	if params.StartsOn, err = parseDate(r.StartsOn, loc); err != nil {
		return params, err
	}
	if params.EndsOn, err = parseDate(r.EndsOn, loc); err != nil {
		return params, err
	}
	for _, raw := range r.SkipDates {
		d, err := parseDate(raw, loc)
		if err != nil {
			return params, err
		}
		params.SkipDates = append(params.SkipDates, d)
	}
	return params, nil
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", errInvalidDate, value)
	}
	return d, nil
}

type editRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	Memo         *string `json:"memo"`
	BufferBefore *int    `json:"buffer_before"`
	BufferAfter  *int    `json:"buffer_after"`
}

func (r editRequest) toPayload() (batch.EditPayload, error) {
	payload := batch.EditPayload{
		Name:        r.Name,
		Description: r.Description,
		Memo:        r.Memo,
	}
	if r.BufferBefore != nil {
		if *r.BufferBefore < 0 {
			return payload, errNegativeSeconds
		}
		d := seconds(*r.BufferBefore)
		payload.BufferBefore = &d
	}
	if r.BufferAfter != nil {
		if *r.BufferAfter < 0 {
			return payload, errNegativeSeconds
		}
		d := seconds(*r.BufferAfter)
		payload.BufferAfter = &d
	}
	return payload, nil
}

type collisionRequest struct {
	Begin        time.Time `json:"begin"`
	End          time.Time `json:"end"`
	BufferBefore int       `json:"buffer_before"`
	BufferAfter  int       `json:"buffer_after"`
	ExcludeID    string    `json:"exclude_id"`
}

type reservationDTO struct {
	ID                string    `json:"id"`
	SeriesID          string    `json:"series_id,omitempty"`
	ReservationUnitID string    `json:"reservation_unit_id"`
	Index             int       `json:"index"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	Memo              string    `json:"memo,omitempty"`
	Begin             time.Time `json:"begin"`
	End               time.Time `json:"end"`
	BufferBefore      int       `json:"buffer_before"`
	BufferAfter       int       `json:"buffer_after"`
	State             string    `json:"state"`
	Type              string    `json:"type"`
}

type seriesDTO struct {
	ID                string           `json:"id"`
	ReservationUnitID string           `json:"reservation_unit_id"`
	Name              string           `json:"name"`
	Description       string           `json:"description,omitempty"`
	Weekdays          []string         `json:"weekdays"`
	BeginTime         string           `json:"begin_time"`
	EndTime           string           `json:"end_time"`
	StartsOn          string           `json:"starts_on"`
	EndsOn            string           `json:"ends_on"`
	IntervalWeeks     int              `json:"interval_weeks"`
	Occurrences       []reservationDTO `json:"occurrences"`
}

type occurrencesResponse struct {
	Occurrences []reservationDTO `json:"occurrences"`
}

type collisionDTO struct {
	ReservationID string    `json:"reservation_id"`
	Begin         time.Time `json:"begin"`
	End           time.Time `json:"end"`
	Buffer        bool      `json:"buffer"`
}

type collisionResponse struct {
	Collides bool           `json:"collides"`
	With     []collisionDTO `json:"with"`
}

type occurrenceCollisionDTO struct {
	Index int            `json:"index"`
	Begin time.Time      `json:"begin"`
	End   time.Time      `json:"end"`
	With  []collisionDTO `json:"with"`
}

type failureDTO struct {
	OccurrenceID string `json:"occurrence_id"`
	Message      string `json:"message"`
}

type batchResultDTO struct {
	JobID     string       `json:"job_id"`
	SeriesID  string       `json:"series_id"`
	Status    string       `json:"status"`
	Targeted  int          `json:"targeted"`
	Attempted int          `json:"attempted"`
	Skipped   int          `json:"skipped"`
	Failures  []failureDTO `json:"failures"`
}

func toReservationDTO(r application.Reservation) reservationDTO {
	return reservationDTO{
		ID:                r.ID,
		SeriesID:          r.SeriesID,
		ReservationUnitID: r.ReservationUnitID,
		Index:             r.Index,
		Name:              r.Name,
		Description:       r.Description,
		Memo:              r.Memo,
		Begin:             r.Begin,
		End:               r.End,
		BufferBefore:      int(r.BufferBefore / time.Second),
		BufferAfter:       int(r.BufferAfter / time.Second),
		State:             string(r.State),
		Type:              string(r.Type),
	}
}

func toReservationDTOs(reservations []application.Reservation) []reservationDTO {
	out := make([]reservationDTO, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, toReservationDTO(r))
	}
	return out
}

func toSeriesDTO(s application.Series) seriesDTO {
	dto := seriesDTO{
		ID:                s.ID,
		ReservationUnitID: s.ReservationUnitID,
		Name:              s.Name,
		Description:       s.Description,
		Weekdays:          make([]string, 0, len(s.Weekdays)),
		BeginTime:         s.BeginTime,
		EndTime:           s.EndTime,
		StartsOn:          s.StartsOn.Format(dateLayout),
		EndsOn:            s.EndsOn.Format(dateLayout),
		IntervalWeeks:     s.IntervalWeeks,
		Occurrences:       toReservationDTOs(s.Occurrences),
	}
	for _, d := range s.Weekdays {
		dto.Weekdays = append(dto.Weekdays, d.String())
	}
	return dto
}

func toCollisionDTOs(collisions []scheduler.Collision) []collisionDTO {
	out := make([]collisionDTO, 0, len(collisions))
	for _, c := range collisions {
		out = append(out, collisionDTO{ReservationID: c.ReservationID, Begin: c.Begin, End: c.End, Buffer: c.Buffer})
	}
	return out
}

func toOccurrenceCollisionDTOs(collisions []application.OccurrenceCollision) []occurrenceCollisionDTO {
	out := make([]occurrenceCollisionDTO, 0, len(collisions))
	for _, c := range collisions {
		out = append(out, occurrenceCollisionDTO{Index: c.Index, Begin: c.Begin, End: c.End, With: toCollisionDTOs(c.With)})
	}
	return out
}

func toBatchResultDTO(r batch.Result) batchResultDTO {
	dto := batchResultDTO{
		JobID:     r.JobID,
		SeriesID:  r.SeriesID,
		Status:    string(r.Status),
		Targeted:  r.Targeted,
		Attempted: r.Attempted,
		Skipped:   r.Skipped,
		Failures:  make([]failureDTO, 0, len(r.Failures)),
	}
	for _, f := range r.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		dto.Failures = append(dto.Failures, failureDTO{OccurrenceID: f.OccurrenceID, Message: msg})
	}
	return dto
}
