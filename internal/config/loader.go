package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/seasonal-allocation/internal/logging"
)

// Config captures environment driven configuration values for the allocator service.
type Config struct {
	HTTPPort         int
	SQLiteDSN        string
	LogLevel         slog.Level
	LogFormat        string
	Location         *time.Location
	BatchProbeSize   int
	BatchConcurrency int
	ShutdownTimeout  time.Duration
	Telemetry        Telemetry
}

// Telemetry configures trace export.
type Telemetry struct {
	Enabled      bool
	OTLPEndpoint string // host:port
	SampleRatio  float64
}

// Load parses configuration values from the current process environment.
//
// A .env file (or the file named by ALLOCATOR_DOTENV) is read first; values
// already present in the environment win. Invalid values are reported
// together.
func Load() (Config, error) {
	if err := loadDotenv(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPPort:        8080,
		SQLiteDSN:       "file:allocator.db?_pragma=foreign_keys(1)",
		LogLevel:        slog.LevelInfo,
		LogFormat:       "json",
		Location:        time.UTC,
		BatchProbeSize:  10,
		ShutdownTimeout: 10 * time.Second,
		Telemetry: Telemetry{
			OTLPEndpoint: "localhost:4317",
			SampleRatio:  1,
		},
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("ALLOCATOR_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "ALLOCATOR_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("ALLOCATOR_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if levelValue := os.Getenv("ALLOCATOR_LOG_LEVEL"); strings.TrimSpace(levelValue) != "" {
		level, err := logging.ParseLevel(levelValue)
		if err != nil {
			invalid = append(invalid, "ALLOCATOR_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	if format := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOCATOR_LOG_FORMAT"))); format != "" {
		if format != "json" && format != "text" {
			invalid = append(invalid, "ALLOCATOR_LOG_FORMAT")
		} else {
			cfg.LogFormat = format
		}
	}

	if zone := strings.TrimSpace(os.Getenv("ALLOCATOR_TIMEZONE")); zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			invalid = append(invalid, "ALLOCATOR_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if probeValue := strings.TrimSpace(os.Getenv("ALLOCATOR_BATCH_PROBE_SIZE")); probeValue != "" {
		probe, err := strconv.Atoi(probeValue)
		if err != nil || probe <= 0 {
			invalid = append(invalid, "ALLOCATOR_BATCH_PROBE_SIZE")
		} else {
			cfg.BatchProbeSize = probe
		}
	}

	if concurrencyValue := strings.TrimSpace(os.Getenv("ALLOCATOR_BATCH_CONCURRENCY")); concurrencyValue != "" {
		concurrency, err := strconv.Atoi(concurrencyValue)
		if err != nil || concurrency < 0 {
			invalid = append(invalid, "ALLOCATOR_BATCH_CONCURRENCY")
		} else {
			cfg.BatchConcurrency = concurrency
		}
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("ALLOCATOR_SHUTDOWN_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "ALLOCATOR_SHUTDOWN_TIMEOUT")
		} else {
			cfg.ShutdownTimeout = timeout
		}
	}

	if enabledValue := strings.TrimSpace(os.Getenv("OTEL_ENABLED")); enabledValue != "" {
		enabled, err := strconv.ParseBool(enabledValue)
		if err != nil {
			invalid = append(invalid, "OTEL_ENABLED")
		} else {
			cfg.Telemetry.Enabled = enabled
		}
	}

	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); endpoint != "" {
		cfg.Telemetry.OTLPEndpoint = endpoint
	}

	if ratioValue := strings.TrimSpace(os.Getenv("OTEL_SAMPLING_RATIO")); ratioValue != "" {
		ratio, err := strconv.ParseFloat(ratioValue, 64)
		if err != nil || ratio < 0 || ratio > 1 {
			invalid = append(invalid, "OTEL_SAMPLING_RATIO")
		} else {
			cfg.Telemetry.SampleRatio = ratio
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// loadDotenv reads ALLOCATOR_DOTENV if set, else an optional ./.env. A
// missing default file is not an error.
func loadDotenv() error {
	if path := strings.TrimSpace(os.Getenv("ALLOCATOR_DOTENV")); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load ALLOCATOR_DOTENV %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
