package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/example/seasonal-allocation/internal/logging"
	"github.com/example/seasonal-allocation/internal/scheduler"
)

// DefaultProbeSize is how many occurrences are edited before the rest.
const DefaultProbeSize = 10

// ErrJobInFlight indicates an identical edit of the same series is running.
var ErrJobInFlight = errors.New("batch: identical edit already in progress")

// Source lists the occurrences of a series.
type Source interface {
	ListOccurrences(ctx context.Context, seriesID string) ([]Occurrence, error)
}

// Mutator applies an edit to a single occurrence.
type Mutator interface {
	ApplyEdit(ctx context.Context, occurrence Occurrence, payload EditPayload) error
}

// Status summarises a finished job.
type Status string

const (
	StatusSucceeded       Status = "SUCCEEDED"
	StatusNothingToDo     Status = "NOTHING_TO_DO"
	StatusProbeFailed     Status = "PROBE_FAILED"
	StatusPartiallyFailed Status = "PARTIALLY_FAILED"
	StatusCancelled       Status = "CANCELLED"
)

// Failure is one occurrence whose edit was rejected.
type Failure struct {
	OccurrenceID string
	Err          error
}

// Result reports a batch edit. Edits that succeeded before a failure are not
// rolled back.
type Result struct {
	JobID     string
	SeriesID  string
	Status    Status
	Targeted  int
	Attempted int
	Skipped   int
	Failures  []Failure
}

// Succeeded reports whether every targeted occurrence was edited.
func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded || r.Status == StatusNothingToDo
}

// Err joins the per-occurrence failures, or returns nil.
func (r Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("occurrence %s: %w", f.OccurrenceID, f.Err))
	}
	return errors.Join(errs...)
}

// Options tunes an Orchestrator. Zero values pick defaults.
type Options struct {
	ProbeSize int
	// Concurrency caps in-flight edits per phase; zero means unlimited.
	Concurrency int
	Now         func() time.Time
	NewJobID    func() string
	Logger      *slog.Logger
}

// Orchestrator applies one edit across the future confirmed occurrences of a
// series: a probe batch first, then the remainder only if every probe edit
// succeeded.
type Orchestrator struct {
	source  Source
	mutator Mutator
	opts    Options
	tracer  trace.Tracer

	mu       sync.Mutex
	inFlight map[string]string
}

// New wires an Orchestrator.
func New(source Source, mutator Mutator, opts Options) *Orchestrator {
	if opts.ProbeSize <= 0 {
		opts.ProbeSize = DefaultProbeSize
	}
	if opts.Concurrency < 0 {
		opts.Concurrency = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewJobID == nil {
		opts.NewJobID = func() string { return uuid.NewString() }
	}
	return &Orchestrator{
		source:   source,
		mutator:  mutator,
		opts:     opts,
		tracer:   otel.Tracer("github.com/example/seasonal-allocation/internal/batch"),
		inFlight: make(map[string]string),
	}
}

// Targets filters occurrences to those starting at or after now in the
// confirmed state, ordered by series position.
func Targets(occurrences []Occurrence, now time.Time) []Occurrence {
	targets := make([]Occurrence, 0, len(occurrences))
	for _, occ := range occurrences {
		if occ.State != scheduler.StateConfirmed || occ.Begin.Before(now) {
			continue
		}
		targets = append(targets, occ)
	}
	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].Index != targets[j].Index {
			return targets[i].Index < targets[j].Index
		}
		return targets[i].Begin.Before(targets[j].Begin)
	})
	return targets
}

// Apply runs the edit. The error return covers failures before any edit was
// issued; per-occurrence failures are in the Result.
func (o *Orchestrator) Apply(ctx context.Context, seriesID string, payload EditPayload) (Result, error) {
	if err := payload.Validate(); err != nil {
		return Result{}, err
	}
	key, err := fingerprint(seriesID, payload)
	if err != nil {
		return Result{}, fmt.Errorf("batch: fingerprint payload: %w", err)
	}

	jobID := o.opts.NewJobID()
	if running, ok := o.claim(key, jobID); !ok {
		return Result{}, fmt.Errorf("%w: job %s", ErrJobInFlight, running)
	}
	defer o.release(key)

	ctx, span := o.tracer.Start(ctx, "batch.apply", trace.WithAttributes(
		attribute.String("batch.job_id", jobID),
		attribute.String("batch.series_id", seriesID),
	))
	defer span.End()

	logger := logging.Scoped(ctx, o.opts.Logger, "BatchOrchestrator", "Apply", "job_id", jobID, "series_id", seriesID)

	occurrences, err := o.source.ListOccurrences(ctx, seriesID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list occurrences")
		logger.ErrorContext(ctx, "failed to list occurrences", "error", err)
		return Result{}, fmt.Errorf("batch: list occurrences of %s: %w", seriesID, err)
	}

	targets := Targets(occurrences, o.opts.Now())
	result := Result{JobID: jobID, SeriesID: seriesID, Targeted: len(targets)}
	if len(targets) == 0 {
		result.Status = StatusNothingToDo
		logger.InfoContext(ctx, "no future confirmed occurrences to edit", "occurrences", len(occurrences))
		return result, nil
	}

	split := min(o.opts.ProbeSize, len(targets))
	probe, remainder := targets[:split], targets[split:]

	result.Failures = o.run(ctx, probe, payload)
	result.Attempted = len(probe)
	switch {
	case interrupted(ctx, result.Failures):
		result.Status = StatusCancelled
		result.Skipped = len(remainder)
	case len(result.Failures) > 0:
		result.Status = StatusProbeFailed
		result.Skipped = len(remainder)
	case len(remainder) == 0:
		result.Status = StatusSucceeded
	case ctx.Err() != nil:
		result.Status = StatusCancelled
		result.Skipped = len(remainder)
	default:
		result.Failures = o.run(ctx, remainder, payload)
		result.Attempted += len(remainder)
		switch {
		case interrupted(ctx, result.Failures):
			result.Status = StatusCancelled
		case len(result.Failures) > 0:
			result.Status = StatusPartiallyFailed
		default:
			result.Status = StatusSucceeded
		}
	}

	span.SetAttributes(
		attribute.String("batch.status", string(result.Status)),
		attribute.Int("batch.attempted", result.Attempted),
		attribute.Int("batch.failures", len(result.Failures)),
	)
	logger = logger.With("status", result.Status, "targeted", result.Targeted, "attempted", result.Attempted, "skipped", result.Skipped, "failures", len(result.Failures))
	if !result.Succeeded() {
		span.SetStatus(codes.Error, string(result.Status))
		logger.WarnContext(ctx, "batch edit incomplete", "error", result.Err())
		return result, nil
	}
	logger.InfoContext(ctx, "batch edit applied")
	return result, nil
}

// run edits every occurrence concurrently and waits for all of them to
// settle. Failures are returned in series order.
func (o *Orchestrator) run(ctx context.Context, occurrences []Occurrence, payload EditPayload) []Failure {
	var g errgroup.Group
	if o.opts.Concurrency > 0 {
		g.SetLimit(o.opts.Concurrency)
	}

	errs := make([]error, len(occurrences))
	for i, occ := range occurrences {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = o.mutator.ApplyEdit(ctx, occ, payload)
			return nil
		})
	}
	_ = g.Wait()

	var failures []Failure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, Failure{OccurrenceID: occurrences[i].ID, Err: err})
		}
	}
	return failures
}

// interrupted reports whether the context ended the phase: it is done and
// every failure is the context's own error.
func interrupted(ctx context.Context, failures []Failure) bool {
	if ctx.Err() == nil || len(failures) == 0 {
		return false
	}
	for _, f := range failures {
		if !errors.Is(f.Err, context.Canceled) && !errors.Is(f.Err, context.DeadlineExceeded) {
			return false
		}
	}
	return true
}

func (o *Orchestrator) claim(key, jobID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if running, ok := o.inFlight[key]; ok {
		return running, false
	}
	o.inFlight[key] = jobID
	return "", true
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, key)
}
