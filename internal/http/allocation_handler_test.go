package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/example/seasonal-allocation/internal/allocation"
	"github.com/example/seasonal-allocation/internal/application"
	"github.com/example/seasonal-allocation/internal/matching"
	"github.com/example/seasonal-allocation/internal/timeslot"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSections struct {
	section matching.Section
	err     error
}

func (s stubSections) LoadSection(_ context.Context, id string) (matching.Section, error) {
	if s.err != nil {
		return matching.Section{}, s.err
	}
	if id != s.section.ID {
		return matching.Section{}, fmt.Errorf("section %s: %w", id, application.ErrNotFound)
	}
	return s.section, nil
}

type stubMutator struct {
	mu        sync.Mutex
	createErr error
	deleteErr error
	requests  []allocation.AcceptRequest
	deleted   []string
}

func (m *stubMutator) CreateAllocation(_ context.Context, req allocation.AcceptRequest) (matching.AllocatedTimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.createErr != nil {
		return matching.AllocatedTimeSlot{}, m.createErr
	}
	return matching.AllocatedTimeSlot{
		ID:                  "alloc-1",
		SuitableTimeRangeID: req.SuitableTimeRangeID,
		ReservationUnitID:   req.ReservationUnitID,
		Day:                 req.Day,
		BeginTime:           req.Begin + ":00",
		EndTime:             req.End + ":00",
	}, nil
}

func (m *stubMutator) DeleteAllocation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return m.deleteErr
}

func mondaySection() matching.Section {
	return matching.Section{
		ID:                 "section-1",
		Name:               "Youth football",
		MinDurationSeconds: 3600,
		MaxDurationSeconds: 3 * 3600,
		ReservationUnitIDs: []string{"unit-a", "unit-b"},
		Ranges: []matching.SuitableTimeRange{
			{ID: "range-a", SectionID: "section-1", Day: timeslot.Monday, BeginTime: "07:00:00", EndTime: "10:00:00", Priority: matching.PriorityPrimary},
			{ID: "range-b", SectionID: "section-1", Day: timeslot.Monday, BeginTime: "09:00:00", EndTime: "11:00:00", Priority: matching.PrioritySecondary},
		},
	}
}

func newAllocationRouter(t *testing.T, sections stubSections, mutator *stubMutator) http.Handler {
	t.Helper()
	service := allocation.NewService(sections, mutator, discardLogger())
	return NewRouter(RouterConfig{
		Allocations:    NewAllocationHandler(service, discardLogger()),
		DisableTracing: true,
	})
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAllocationHandler_Evaluate(t *testing.T) {
	t.Parallel()

	router := newAllocationRouter(t, stubSections{section: mondaySection()}, &stubMutator{})

	t.Run("single match inside the request", func(t *testing.T) {
		t.Parallel()

		rec := doJSON(t, router, http.MethodPost, "/sections/section-1/evaluate", evaluateRequest{
			Selection: []string{"Mon-07-0", "Mon-07-1", "Mon-08-0"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		got := decodeBody[evaluationDTO](t, rec)
		if got.Window.Day != "MONDAY" || got.Window.Begin != "07:00" || got.Window.End != "08:30" {
			t.Fatalf("unexpected window: %+v", got.Window)
		}
		if len(got.Matches) != 1 || got.Matches[0].ID != "range-a" || got.Matches[0].State != "unallocated" {
			t.Fatalf("unexpected matches: %+v", got.Matches)
		}
		if got.Ambiguous || got.OutsideRequested || !got.DurationValid || !got.Contiguous {
			t.Fatalf("unexpected flags: %+v", got)
		}
	})

	t.Run("overlapping ranges are ambiguous", func(t *testing.T) {
		t.Parallel()

		rec := doJSON(t, router, http.MethodPost, "/sections/section-1/evaluate", evaluateRequest{
			Selection: []string{"Mon-08-0", "Mon-08-1", "Mon-09-0", "Mon-09-1"},
		})
		got := decodeBody[evaluationDTO](t, rec)
		if !got.Ambiguous || len(got.Matches) != 2 {
			t.Fatalf("expected ambiguous evaluation, got %+v", got)
		}
	})

	t.Run("malformed keys are unprocessable", func(t *testing.T) {
		t.Parallel()

		rec := doJSON(t, router, http.MethodPost, "/sections/section-1/evaluate", evaluateRequest{
			Selection: []string{"Monday-7"},
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("unknown section", func(t *testing.T) {
		t.Parallel()

		rec := doJSON(t, router, http.MethodPost, "/sections/missing/evaluate", evaluateRequest{Selection: []string{"Mon-07-0"}})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/sections/section-1/evaluate", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAllocationHandler_GetSection(t *testing.T) {
	t.Parallel()

	section := mondaySection()
	section.Allocations = []matching.AllocatedTimeSlot{{
		ID: "alloc-9", SuitableTimeRangeID: "range-b", ReservationUnitID: "unit-b",
		Day: timeslot.Monday, BeginTime: "09:00:00", EndTime: "10:00:00",
	}}
	router := newAllocationRouter(t, stubSections{section: section}, &stubMutator{})

	rec := doJSON(t, router, http.MethodGet, "/sections/section-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decodeBody[sectionDTO](t, rec)
	states := map[string]string{}
	for _, r := range got.Ranges {
		states[r.ID] = r.State
	}
	if states["range-a"] != "unallocated" || states["range-b"] != "allocated" {
		t.Fatalf("unexpected range states: %v", states)
	}
	if len(got.Allocations) != 1 || got.Allocations[0].ID != "alloc-9" {
		t.Fatalf("unexpected allocations: %+v", got.Allocations)
	}
}

func TestAllocationHandler_Accept(t *testing.T) {
	t.Parallel()

	t.Run("allocates the single match", func(t *testing.T) {
		t.Parallel()

		mutator := &stubMutator{}
		router := newAllocationRouter(t, stubSections{section: mondaySection()}, mutator)

		rec := doJSON(t, router, http.MethodPost, "/sections/section-1/allocations", acceptRequest{
			Selection:         []string{"Mon-07-0", "Mon-07-1", "Mon-08-0"},
			ReservationUnitID: "unit-a",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		got := decodeBody[acceptResponse](t, rec)
		if got.Allocation.SuitableTimeRangeID != "range-a" || got.OutsideRequested {
			t.Fatalf("unexpected response: %+v", got)
		}
		if len(mutator.requests) != 1 {
			t.Fatalf("expected one mutation, got %d", len(mutator.requests))
		}
		req := mutator.requests[0]
		if req.Begin != "07:00" || req.End != "08:30" || !req.Force || req.Day != timeslot.Monday {
			t.Fatalf("unexpected mutation payload: %+v", req)
		}
	})

	t.Run("explicit range outside the request warns", func(t *testing.T) {
		t.Parallel()

		router := newAllocationRouter(t, stubSections{section: mondaySection()}, &stubMutator{})
		rec := doJSON(t, router, http.MethodPost, "/sections/section-1/allocations", acceptRequest{
			Selection:           []string{"Mon-07-0", "Mon-07-1", "Mon-08-0"},
			ReservationUnitID:   "unit-a",
			SuitableTimeRangeID: "range-b",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := decodeBody[acceptResponse](t, rec); !got.OutsideRequested {
			t.Fatalf("expected outside requested warning, got %+v", got)
		}
	})

	t.Run("ambiguous selection needs a range", func(t *testing.T) {
		t.Parallel()

		mutator := &stubMutator{}
		router := newAllocationRouter(t, stubSections{section: mondaySection()}, mutator)
		rec := doJSON(t, router, http.MethodPost, "/sections/section-1/allocations", acceptRequest{
			Selection:         []string{"Mon-08-0", "Mon-08-1", "Mon-09-0", "Mon-09-1"},
			ReservationUnitID: "unit-a",
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if len(mutator.requests) != 0 {
			t.Fatalf("no mutation should be issued")
		}
	})

	tests := []struct {
		name       string
		rejection  string
		wantCode   allocation.Code
		wantKey    string
		wantStatus int
	}{
		{
			name:       "declined event",
			rejection:  application.MsgEventDeclined,
			wantCode:   allocation.CodeAlreadyDeclined,
			wantKey:    "allocation.errors.accept.alreadyDeclined",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "received application",
			rejection:  application.MsgApplicationReceived,
			wantCode:   allocation.CodeApplicationReceived,
			wantKey:    "allocation.errors.accept.applicationReceived",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unknown rejection",
			rejection:  "Something else went wrong",
			wantCode:   allocation.CodeGeneric,
			wantKey:    "allocation.errors.accept.generic",
			wantStatus: http.StatusConflict,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mutator := &stubMutator{createErr: &application.RejectionError{Reasons: []string{tc.rejection}}}
			router := newAllocationRouter(t, stubSections{section: mondaySection()}, mutator)
			rec := doJSON(t, router, http.MethodPost, "/sections/section-1/allocations", acceptRequest{
				Selection:         []string{"Mon-07-0", "Mon-07-1", "Mon-08-0"},
				ReservationUnitID: "unit-a",
			})
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
			got := decodeBody[errorResponse](t, rec)
			if got.Code != string(tc.wantCode) || got.MessageKey != tc.wantKey {
				t.Fatalf("unexpected error body: %+v", got)
			}
			if got.Message != tc.rejection {
				t.Fatalf("expected backend message %q, got %q", tc.rejection, got.Message)
			}
		})
	}

	t.Run("unexpected failure is internal", func(t *testing.T) {
		t.Parallel()

		mutator := &stubMutator{createErr: fmt.Errorf("connection reset")}
		router := newAllocationRouter(t, stubSections{section: mondaySection()}, mutator)
		rec := doJSON(t, router, http.MethodPost, "/sections/section-1/allocations", acceptRequest{
			Selection:         []string{"Mon-07-0", "Mon-07-1", "Mon-08-0"},
			ReservationUnitID: "unit-a",
		})
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if got := decodeBody[errorResponse](t, rec); got.Code != string(allocation.CodeGeneric) {
			t.Fatalf("expected generic code, got %+v", got)
		}
	})
}

func TestAllocationHandler_Reset(t *testing.T) {
	t.Parallel()

	t.Run("removes the allocation", func(t *testing.T) {
		t.Parallel()

		mutator := &stubMutator{}
		router := newAllocationRouter(t, stubSections{section: mondaySection()}, mutator)
		rec := doJSON(t, router, http.MethodDelete, "/allocations/alloc-1", nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if len(mutator.deleted) != 1 || mutator.deleted[0] != "alloc-1" {
			t.Fatalf("unexpected deletions: %v", mutator.deleted)
		}
	})

	t.Run("handled application", func(t *testing.T) {
		t.Parallel()

		mutator := &stubMutator{deleteErr: &application.RejectionError{Reasons: []string{application.MsgResetHandled}}}
		router := newAllocationRouter(t, stubSections{section: mondaySection()}, mutator)
		rec := doJSON(t, router, http.MethodDelete, "/allocations/alloc-1", nil)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		got := decodeBody[errorResponse](t, rec)
		if got.MessageKey != "allocation.errors.reset.generic" || got.Message != application.MsgResetHandled {
			t.Fatalf("unexpected error body: %+v", got)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		t.Parallel()

		router := newAllocationRouter(t, stubSections{section: mondaySection()}, &stubMutator{})
		rec := doJSON(t, router, http.MethodGet, "/allocations/alloc-1", nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}

func TestAllocationHandler_NilWorkflow(t *testing.T) {
	t.Parallel()

	var h *AllocationHandler
	rec := httptest.NewRecorder()
	h.Evaluate(rec, httptest.NewRequest(http.MethodPost, "/sections/x/evaluate", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
