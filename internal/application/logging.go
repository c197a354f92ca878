package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/seasonal-allocation/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, base, serviceName, operation, attrs...)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var rErr *RejectionError
	if errors.As(err, &rErr) {
		return "rejected"
	}
	var cErr *CollisionError
	if errors.As(err, &cErr) {
		return "collision"
	}

	return "unexpected"
}
