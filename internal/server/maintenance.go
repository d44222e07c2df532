package server

import (
	"context"
	"log/slog"
	"time"
)

// RunMaintenance sweeps idle rate limiter clients and expired crop artifacts
// every cleanup interval until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep performs a single maintenance pass.
func (s *Server) sweep() {
	if s.rateLimiter != nil {
		if n := s.rateLimiter.Prune(s.clientIdle); n > 0 {
			slog.Debug("Pruned idle rate limit clients", "removed", n)
		}
		rateLimitClients.Set(float64(s.rateLimiter.Clients()))
	}

	if s.artifactTTL <= 0 {
		return
	}
	n, err := s.scanner.PruneArtifacts(s.artifactTTL)
	if n > 0 {
		artifactsPrunedTotal.Add(float64(n))
		slog.Info("Removed expired crop artifacts", "removed", n, "ttl", s.artifactTTL.String())
	}
	if err != nil {
		slog.Warn("Artifact cleanup incomplete", "error", err)
	}
}
