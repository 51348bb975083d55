// Package grpc reports bus health through the standard gRPC health service.
package grpc

import (
	"context"
	"time"

	"github.com/rbaliyan/eventbus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultInterval is the default interval between status checks in Run.
const DefaultInterval = 10 * time.Second

// Reporter mirrors Bus.Status onto a gRPC health server.
type Reporter struct {
	bus                *eventbus.Bus
	server             *health.Server
	service            string
	degradedNotServing bool
}

// Option configures a Reporter
type Option func(*Reporter)

// WithService sets the health service name. Default is the bus name.
func WithService(name string) Option {
	return func(r *Reporter) {
		if name != "" {
			r.service = name
		}
	}
}

// WithHealthServer reports into an existing health server, e.g. one shared
// with other services of the process.
func WithHealthServer(s *health.Server) Option {
	return func(r *Reporter) {
		if s != nil {
			r.server = s
		}
	}
}

// WithDegradedNotServing reports a degraded bus as NOT_SERVING.
// By default only a closed bus stops serving.
func WithDegradedNotServing() Option {
	return func(r *Reporter) {
		r.degradedNotServing = true
	}
}

// New creates a reporter for bus and registers its current status, so the
// service is known to the health server before the first Run tick.
func New(bus *eventbus.Bus, opts ...Option) *Reporter {
	r := &Reporter{
		bus:     bus,
		service: bus.Name(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.server == nil {
		r.server = health.NewServer()
	}
	r.Sync(context.Background())
	return r
}

// Server returns the underlying health server.
func (r *Reporter) Server() *health.Server {
	return r.server
}

// Service returns the health service name the bus is reported under.
func (r *Reporter) Service() string {
	return r.service
}

// Register registers the health service with a gRPC server.
func (r *Reporter) Register(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, r.server)
}

// Sync checks the bus once and updates the serving status.
func (r *Reporter) Sync(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := r.bus.Status(ctx)

	serving := healthpb.HealthCheckResponse_SERVING
	switch status.Code {
	case eventbus.StatusUnhealthy:
		serving = healthpb.HealthCheckResponse_NOT_SERVING
	case eventbus.StatusDegraded:
		if r.degradedNotServing {
			serving = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	r.server.SetServingStatus(r.service, serving)
	return serving
}

// Run syncs every interval until ctx is done. A closed bus is reported as
// NOT_SERVING before Run returns.
func (r *Reporter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	last := r.Sync(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if !r.bus.Running() {
				r.server.SetServingStatus(r.service, healthpb.HealthCheckResponse_NOT_SERVING)
			}
			return
		case <-ticker.C:
			current := r.Sync(ctx)
			if current != last {
				r.bus.Logger().Info("bus serving status changed",
					"service", r.service,
					"from", last.String(),
					"to", current.String())
				last = current
			}
		}
	}
}
