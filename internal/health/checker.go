// Package health tracks database reachability and reports it over grpc.health.v1 and HTTP.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the grpc.health.v1 service name reported alongside the overall status.
const ServiceName = "vault"

const pingTimeout = 2 * time.Second

// Pinger is implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker pings the database and flips the health server between SERVING and NOT_SERVING.
// A nil Pinger is always healthy.
type Checker struct {
	pinger   Pinger
	srv      *grpchealth.Server
	interval time.Duration
	healthy  atomic.Bool
	log      zerolog.Logger
}

// NewChecker returns a Checker that pings every interval. It starts NOT_SERVING until the
// first Check.
func NewChecker(p Pinger, interval time.Duration, log zerolog.Logger) *Checker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	c := &Checker{pinger: p, srv: grpchealth.NewServer(), interval: interval, log: log}
	c.set(false)
	return c
}

// Server returns the grpc.health.v1 implementation to register on a gRPC server.
func (c *Checker) Server() *grpchealth.Server { return c.srv }

// Healthy reports the result of the last Check.
func (c *Checker) Healthy() bool { return c.healthy.Load() }

// Check pings once and updates the status. It returns the ping error.
func (c *Checker) Check(ctx context.Context) error {
	var err error
	if c.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = c.pinger.PingContext(pingCtx)
		cancel()
	}
	ok := err == nil
	if ok != c.healthy.Load() {
		if ok {
			c.log.Info().Msg("health: database reachable")
		} else {
			c.log.Warn().Err(err).Msg("health: database unreachable")
		}
	}
	c.set(ok)
	return err
}

// Run checks until ctx is canceled, then marks the service NOT_SERVING.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	_ = c.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			c.srv.Shutdown()
			c.healthy.Store(false)
			return
		case <-ticker.C:
			_ = c.Check(ctx)
		}
	}
}

func (c *Checker) set(ok bool) {
	c.healthy.Store(ok)
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	c.srv.SetServingStatus("", status)
	c.srv.SetServingStatus(ServiceName, status)
}
