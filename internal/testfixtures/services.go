package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/seasonal-allocation/internal/application"
	"github.com/example/seasonal-allocation/internal/recurrence"
)

// ServiceFactory builds application services with deterministic ids and a
// controllable clock.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// AllocationServiceDeps captures dependencies for an allocation service.
type AllocationServiceDeps struct {
	Sections    application.SectionStore
	Allocations application.AllocationStore
	Logger      *slog.Logger
}

// NewAllocationService builds an allocation service on the factory's ids
// and clock.
func (f *ServiceFactory) NewAllocationService(deps AllocationServiceDeps) *application.AllocationService {
	return application.NewAllocationService(
		deps.Sections,
		deps.Allocations,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		deps.Logger,
	)
}

// ReservationServiceDeps captures dependencies for a reservation service.
type ReservationServiceDeps struct {
	Reservations application.ReservationStore
	// Location defaults to UTC.
	Location *time.Location
	Logger   *slog.Logger
}

// NewReservationService builds a reservation service on the factory's ids
// and clock.
func (f *ServiceFactory) NewReservationService(deps ReservationServiceDeps) *application.ReservationService {
	return application.NewReservationService(
		deps.Reservations,
		recurrence.NewEngine(deps.Location, 0),
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		deps.Logger,
	)
}
