// Package health reports poll loop health through the standard gRPC health
// service. The "pipewatch" service is SERVING once every configured project
// has completed a cycle and its most recent cycle succeeded.
package health

import (
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/pipewatch/pipewatch/server/internal/poller"
)

// Service is the health service name reported for the poll loops.
const Service = "pipewatch"

// Reporter tracks the latest cycle outcome per project.
type Reporter struct {
	srv *health.Server

	mu      sync.Mutex
	healthy map[string]bool // project -> last cycle succeeded; absent until first cycle
	want    []string
	current healthpb.HealthCheckResponse_ServingStatus
}

// New returns a Reporter expecting cycles from projects. The service starts
// NOT_SERVING.
func New(projects []string) *Reporter {
	r := &Reporter{
		srv:     health.NewServer(),
		healthy: make(map[string]bool),
		want:    projects,
		current: healthpb.HealthCheckResponse_NOT_SERVING,
	}
	r.srv.SetServingStatus(Service, r.current)
	return r
}

// Register attaches the health service to s.
func (r *Reporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.srv)
}

// Publish records c. It satisfies poller.Publisher.
func (r *Reporter) Publish(c poller.Cycle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.healthy[c.Project] = c.Err == nil

	next := healthpb.HealthCheckResponse_SERVING
	for _, p := range r.want {
		if !r.healthy[p] {
			next = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}
	if next != r.current {
		slog.Info("health: serving status changed", "from", r.current, "to", next)
		r.current = next
		r.srv.SetServingStatus(Service, next)
	}
}

// Status returns the current serving status of Service.
func (r *Reporter) Status() healthpb.HealthCheckResponse_ServingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Shutdown marks every service NOT_SERVING and ends open Watch streams.
func (r *Reporter) Shutdown() {
	r.srv.Shutdown()
}
