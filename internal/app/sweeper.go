package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/liftoff/provisioner/internal/domain"
)

// Canceler is the slice of TenantService the sweeper needs.
type Canceler interface {
	Cancel(ctx context.Context, id, reason string) (domain.Tenant, error)
}

// Sweeper is the system's failure-recovery loop. It finds pipelines stuck in
// PROVISIONING past a staleness threshold and cancels them through the same
// operation operators use, turning an indefinitely stalled saga into a
// terminal, auditable state. No worker has to detect its own failure.
type Sweeper struct {
	tenants   domain.TenantRepository
	canceler  Canceler
	threshold time.Duration
	logger    *slog.Logger
}

// NewSweeper creates a sweeper that cancels tenants stuck longer than threshold.
func NewSweeper(tenants domain.TenantRepository, canceler Canceler, threshold time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		tenants:   tenants,
		canceler:  canceler,
		threshold: threshold,
		logger:    logger,
	}
}

// Sweep cancels every stale pipeline it finds and returns how many were
// cancelled. Cancellations are independent: one failure is logged and the
// sweep moves on to the rest.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.threshold)

	stale, err := s.tenants.ListStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing stale tenants: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	s.logger.WarnContext(ctx, "found stale provisioning pipelines",
		"count", len(stale), "threshold", s.threshold)

	reason := fmt.Sprintf("provisioning timeout - no progress for %s", s.threshold)

	cancelled := 0
	for _, tenant := range stale {
		if _, err := s.canceler.Cancel(ctx, tenant.ID, reason); err != nil {
			s.logger.ErrorContext(ctx, "failed to auto-cancel stale tenant",
				"tenant_id", tenant.ID, "subdomain", tenant.Subdomain, "error", err)
			continue
		}
		cancelled++
		s.logger.InfoContext(ctx, "auto-cancelled stale tenant",
			"tenant_id", tenant.ID, "subdomain", tenant.Subdomain)
	}

	return cancelled, nil
}
