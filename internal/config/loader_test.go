package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allocatorKeys = []string{
	"ALLOCATOR_HTTP_PORT",
	"ALLOCATOR_SQLITE_DSN",
	"ALLOCATOR_LOG_LEVEL",
	"ALLOCATOR_LOG_FORMAT",
	"ALLOCATOR_TIMEZONE",
	"ALLOCATOR_BATCH_PROBE_SIZE",
	"ALLOCATOR_BATCH_CONCURRENCY",
	"ALLOCATOR_SHUTDOWN_TIMEOUT",
	"ALLOCATOR_DOTENV",
	"OTEL_ENABLED",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_SAMPLING_RATIO",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allocatorKeys {
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:allocator.db?_pragma=foreign_keys(1)" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "json" {
			t.Fatalf("unexpected logging defaults: %v %q", cfg.LogLevel, cfg.LogFormat)
		}
		if cfg.Location != time.UTC || cfg.BatchProbeSize != 10 || cfg.BatchConcurrency != 0 {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
		if cfg.Telemetry.Enabled || cfg.Telemetry.SampleRatio != 1 {
			t.Fatalf("unexpected telemetry defaults: %+v", cfg.Telemetry)
		}
	})

	t.Run("parses numeric, duration and telemetry fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ALLOCATOR_HTTP_PORT", "9090")
		t.Setenv("ALLOCATOR_SQLITE_DSN", "file:/tmp/allocator.db")
		t.Setenv("ALLOCATOR_LOG_LEVEL", "debug")
		t.Setenv("ALLOCATOR_LOG_FORMAT", "TEXT")
		t.Setenv("ALLOCATOR_BATCH_PROBE_SIZE", "5")
		t.Setenv("ALLOCATOR_BATCH_CONCURRENCY", "3")
		t.Setenv("ALLOCATOR_SHUTDOWN_TIMEOUT", "30s")
		t.Setenv("OTEL_ENABLED", "true")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
		t.Setenv("OTEL_SAMPLING_RATIO", "0.25")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 || cfg.SQLiteDSN != "file:/tmp/allocator.db" {
			t.Fatalf("unexpected server config: %+v", cfg)
		}
		if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "text" {
			t.Fatalf("unexpected logging config: %v %q", cfg.LogLevel, cfg.LogFormat)
		}
		if cfg.BatchProbeSize != 5 || cfg.BatchConcurrency != 3 || cfg.ShutdownTimeout != 30*time.Second {
			t.Fatalf("unexpected batch config: %+v", cfg)
		}
		if !cfg.Telemetry.Enabled || cfg.Telemetry.OTLPEndpoint != "collector:4317" || cfg.Telemetry.SampleRatio != 0.25 {
			t.Fatalf("unexpected telemetry config: %+v", cfg.Telemetry)
		}
	})

	t.Run("loads the time zone", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ALLOCATOR_TIMEZONE", "Europe/Helsinki")

		cfg, err := Load()
		if err != nil {
			t.Skipf("time zone data unavailable: %v", err)
		}
		if cfg.Location.String() != "Europe/Helsinki" {
			t.Fatalf("unexpected location %s", cfg.Location)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ALLOCATOR_HTTP_PORT", "abc")
		t.Setenv("ALLOCATOR_LOG_LEVEL", "loud")
		t.Setenv("ALLOCATOR_BATCH_PROBE_SIZE", "0")
		t.Setenv("OTEL_SAMPLING_RATIO", "2")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "invalid environment variables: ALLOCATOR_HTTP_PORT, ALLOCATOR_LOG_LEVEL, ALLOCATOR_BATCH_PROBE_SIZE, OTEL_SAMPLING_RATIO"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reads a dotenv file without overriding the environment", func(t *testing.T) {
		clearEnv(t)
		t.Cleanup(func() { clearEnv(t) })

		path := filepath.Join(t.TempDir(), "allocator.env")
		content := strings.Join([]string{
			"ALLOCATOR_HTTP_PORT=9191",
			"ALLOCATOR_BATCH_CONCURRENCY=4",
		}, "\n")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write dotenv: %v", err)
		}
		t.Setenv("ALLOCATOR_DOTENV", path)
		t.Setenv("ALLOCATOR_HTTP_PORT", "7070")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 7070 {
			t.Fatalf("environment should win over dotenv, got port %d", cfg.HTTPPort)
		}
		if cfg.BatchConcurrency != 4 {
			t.Fatalf("expected concurrency from dotenv, got %d", cfg.BatchConcurrency)
		}
	})

	t.Run("fails on a missing explicit dotenv file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ALLOCATOR_DOTENV", filepath.Join(t.TempDir(), "missing.env"))

		if _, err := Load(); err == nil {
			t.Fatalf("expected error for missing dotenv file")
		}
	})
}
