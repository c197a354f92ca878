package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/seasonal-allocation/internal/allocation"
	"github.com/example/seasonal-allocation/internal/application"
	"github.com/example/seasonal-allocation/internal/batch"
	"github.com/example/seasonal-allocation/internal/logging"
	"github.com/example/seasonal-allocation/internal/matching"
	"github.com/example/seasonal-allocation/internal/timeslot"
)

var (
	errBadRequestBody  = errors.New("invalid request body")
	errMissingID       = errors.New("missing resource id")
	errInvalidWeekday  = errors.New("invalid weekday")
	errInvalidDate     = errors.New("dates must use YYYY-MM-DD")
	errNegativeSeconds = errors.New("buffers must not be negative")
)

// unprocessable lists the domain errors caused by the request content.
var unprocessable = []error{
	matching.ErrEmptySelection,
	matching.ErrMixedDays,
	matching.ErrNoMatch,
	matching.ErrAmbiguousMatch,
	timeslot.ErrInvalidKey,
	timeslot.ErrInvalidSlot,
	allocation.ErrNoSelection,
	allocation.ErrUnknownRange,
	allocation.ErrUnknownReservationUnit,
	allocation.ErrInvalidDuration,
	allocation.ErrNotAllocated,
	batch.ErrEmptyPayload,
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError picks the status from the innermost known cause. A
// classified allocation failure adds its code and message key whatever the
// status.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var resp errorResponse
	var classified *allocation.Error
	if errors.As(err, &classified) {
		resp.Code = string(classified.Code)
		resp.MessageKey = classified.MessageKey()
	}

	var (
		vErr   *application.ValidationError
		rejErr *application.RejectionError
		colErr *application.CollisionError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, application.ErrNotFound):
		status = http.StatusNotFound
		resp.Message = statusMessage(status)
	case errors.As(err, &vErr):
		status = http.StatusUnprocessableEntity
		resp.Message = statusMessage(status)
		resp.Errors = vErr.FieldErrors
	case errors.As(err, &rejErr):
		status = http.StatusConflict
		resp.Message = strings.Join(rejErr.Messages(), "; ")
	case errors.As(err, &colErr):
		status = http.StatusConflict
		resp.Message = "occurrences collide with existing reservations"
		resp.Collisions = toOccurrenceCollisionDTOs(colErr.Collisions)
	case errors.Is(err, batch.ErrJobInFlight):
		status = http.StatusConflict
		resp.Message = "an identical edit of this series is already running"
	case isUnprocessable(err):
		status = http.StatusUnprocessableEntity
		resp.Message = err.Error()
	case classified != nil && classified.Code != allocation.CodeGeneric:
		status = http.StatusConflict
		resp.Message = classified.Detail
	default:
		resp.Message = statusMessage(status)
	}

	logger := r.loggerFor(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "status", status, "error", err)
	} else {
		logger.InfoContext(ctx, "request refused", "status", status, "error", err)
	}
	r.writeJSON(ctx, w, status, resp)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func isUnprocessable(err error) bool {
	for _, target := range unprocessable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "The request is malformed."
	case http.StatusNotFound:
		return "The requested resource was not found."
	case http.StatusConflict:
		return "The request conflicts with the current state of the resource."
	case http.StatusUnprocessableEntity:
		return "The request contains invalid values."
	default:
		return "An internal server error occurred."
	}
}

type errorResponse struct {
	Code       string                   `json:"code,omitempty"`
	MessageKey string                   `json:"message_key,omitempty"`
	Message    string                   `json:"message"`
	Errors     map[string]string        `json:"errors,omitempty"`
	Collisions []occurrenceCollisionDTO `json:"collisions,omitempty"`
}
