package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/seasonal-allocation/internal/logging"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("generates and echoes a request id", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		base := slog.New(slog.NewJSONHandler(&buf, nil))

		var sawLogger bool
		handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sawLogger = logging.FromContext(r.Context()) != nil
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sections/s-1", nil))

		id := rec.Header().Get(RequestIDHeader)
		if id == "" {
			t.Fatalf("expected a generated request id")
		}
		if !sawLogger {
			t.Fatalf("expected a request logger in the handler context")
		}
		out := buf.String()
		if !strings.Contains(out, id) || !strings.Contains(out, `"status":418`) {
			t.Fatalf("expected request id and status in logs, got %s", out)
		}
	})

	t.Run("reuses the caller's request id", func(t *testing.T) {
		t.Parallel()

		handler := RequestLogger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "req-42" {
			t.Fatalf("expected caller id to be echoed, got %q", got)
		}
	})
}

func TestNewRouter_AppliesMiddlewareInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router := NewRouter(RouterConfig{Middleware: []func(http.Handler) http.Handler{mark("outer"), nil, mark("inner")}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unrouted path, got %d", rec.Code)
	}
	if strings.Join(order, ",") != "outer,inner" {
		t.Fatalf("unexpected middleware order: %v", order)
	}
}
