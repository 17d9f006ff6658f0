package grpc

import (
	"context"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/archivia/internal/logging"
)

// ServicePrefix prefixes the per-store health service names, e.g.
// "archivia.platform". The empty service name reports overall health.
const ServicePrefix = "archivia."

// Pinger is implemented by every store adapter.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker pings the stores and publishes the results on a health server.
type HealthChecker struct {
	health   *health.Server
	checks   map[string]Pinger
	names    []string
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger

	mu   sync.Mutex
	last map[string]healthpb.HealthCheckResponse_ServingStatus
}

// NewHealthChecker builds a checker for the named stores. A non-positive
// interval disables periodic checking; Run then checks once.
func NewHealthChecker(checks map[string]Pinger, interval time.Duration, l logging.Logger) *HealthChecker {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	timeout := interval / 2
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}

	p := &HealthChecker{
		health:   health.NewServer(),
		checks:   checks,
		names:    names,
		interval: interval,
		timeout:  timeout,
		logger:   l.With("module", "health"),
		last:     make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
	// unknown until the first check completes
	p.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for _, name := range names {
		p.health.SetServingStatus(ServicePrefix+name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return p
}

// Health returns the server the results are published on.
func (p *HealthChecker) Health() *health.Server {
	return p.health
}

// Run checks immediately and then on every tick until ctx is done.
func (p *HealthChecker) Run(ctx context.Context) {
	p.CheckOnce(ctx)
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CheckOnce(ctx)
		}
	}
}

// CheckOnce pings every store concurrently and updates the statuses. It
// reports whether all stores answered.
func (p *HealthChecker) CheckOnce(ctx context.Context) bool {
	results := make([]error, len(p.names))

	var wg sync.WaitGroup
	for i, name := range p.names {
		wg.Add(1)
		go func(i int, check Pinger) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			results[i] = check.Ping(pctx)
		}(i, p.checks[name])
	}
	wg.Wait()

	healthy := true
	for i, name := range p.names {
		st := healthpb.HealthCheckResponse_SERVING
		if results[i] != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			healthy = false
		}
		p.set(ctx, ServicePrefix+name, st, results[i])
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	p.set(ctx, "", overall, nil)
	return healthy
}

// set publishes a status and logs transitions only.
func (p *HealthChecker) set(ctx context.Context, service string, st healthpb.HealthCheckResponse_ServingStatus, cause error) {
	p.mu.Lock()
	prev, seen := p.last[service]
	p.last[service] = st
	p.mu.Unlock()

	p.health.SetServingStatus(service, st)

	if seen && prev == st {
		return
	}
	if st == healthpb.HealthCheckResponse_SERVING {
		p.logger.Info(ctx, "store healthy", "service", service)
	} else if cause != nil {
		p.logger.Warn(ctx, "store unhealthy", "service", service, "error", cause)
	}
}
