package http

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ServiceName names the server in traces.
const ServiceName = "seasonal-allocation"

type RouterConfig struct {
	Allocations  *AllocationHandler
	Reservations *ReservationHandler
	Middleware   []func(http.Handler) http.Handler
	// DisableTracing skips the otelhttp wrapper.
	DisableTracing bool
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Allocations != nil {
		mux.HandleFunc("GET /sections/{id}", cfg.Allocations.GetSection)
		mux.HandleFunc("POST /sections/{id}/evaluate", cfg.Allocations.Evaluate)
		mux.HandleFunc("POST /sections/{id}/allocations", cfg.Allocations.Accept)
		mux.HandleFunc("DELETE /allocations/{id}", cfg.Allocations.Reset)
	}

	if cfg.Reservations != nil {
		mux.HandleFunc("POST /series", cfg.Reservations.CreateSeries)
		mux.HandleFunc("GET /series/{id}/occurrences", cfg.Reservations.ListOccurrences)
		mux.HandleFunc("POST /series/{id}/edits", cfg.Reservations.EditSeries)
		mux.HandleFunc("POST /reservation-units/{id}/collisions", cfg.Reservations.CheckCollisions)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	if cfg.DisableTracing {
		return handler
	}
	return otelhttp.NewHandler(handler, ServiceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
