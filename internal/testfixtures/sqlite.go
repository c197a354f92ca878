package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/seasonal-allocation/internal/persistence/sqlite"
)

// SQLiteHarness is a migrated SQLite store in a temporary file.
type SQLiteHarness struct {
	Storage *sqlite.Storage

	cleanup func()
}

// Close releases the database.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a store. It is closed automatically
// when the test ends.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "allocator.db")
	storage, err := sqlite.Open("file:"+path, sqlite.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage: storage,
		cleanup: func() { _ = storage.Close() },
	}
	tb.Cleanup(harness.Close)
	return harness
}

// SeedSection stores a section fixture with its ranges.
func (h *SQLiteHarness) SeedSection(tb testing.TB, section SectionFixture) {
	tb.Helper()
	ctx := context.Background()
	if err := h.Storage.CreateSection(ctx, section.Record()); err != nil {
		tb.Fatalf("seed section %s: %v", section.ID, err)
	}
	for _, r := range section.Ranges {
		if err := h.Storage.CreateSuitableTimeRange(ctx, r.Record()); err != nil {
			tb.Fatalf("seed range %s: %v", r.ID, err)
		}
	}
}

// SeedReservations stores standalone reservations.
func (h *SQLiteHarness) SeedReservations(tb testing.TB, reservations ...ReservationFixture) {
	tb.Helper()
	for _, r := range reservations {
		if err := h.Storage.CreateReservation(context.Background(), r.Record()); err != nil {
			tb.Fatalf("seed reservation %s: %v", r.ID, err)
		}
	}
}
