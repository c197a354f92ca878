package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/seasonal-allocation/internal/persistence"
	"github.com/example/seasonal-allocation/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var (
	_ persistence.SectionRepository     = (*Storage)(nil)
	_ persistence.AllocationRepository  = (*Storage)(nil)
	_ persistence.ReservationRepository = (*Storage)(nil)
)

// Storage implements the persistence repositories on a SQLite database.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures Open.
type Option func(*Storage)

// WithLogger sets the logger used for migrations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		s.logger = logger
	}
}

// Open connects to the database named by dsn, for example
// "file:allocator.db?_pragma=foreign_keys(1)". SQLite serialises writers, so
// the pool holds a single connection; this also keeps ":memory:" databases
// alive for the life of the Storage.
func Open(dsn string, opts ...Option) (*Storage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)

	s := &Storage{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	return s, nil
}

// DB exposes the underlying handle.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// Ping checks the connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewExecutor(s.db),
		s.logger,
	)
	return manager.Run(ctx)
}
