package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/kosync/internal/common"
	"github.com/dmitrijs2005/kosync/internal/server/kv"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// watch refreshes the health status every interval until ctx is done.
func (s *GRPCServer) watch(ctx context.Context) {
	s.check(ctx)

	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// check pings the store once and records the result. Stores without a Ping
// are assumed healthy.
func (s *GRPCServer) check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING

	if p, ok := s.store.(kv.Pinger); ok {
		timeout := s.interval
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Ping(pingCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return status
			}
			s.logger.Warn(ctx, "storage ping failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(common.HealthServiceName, status)
	return status
}
