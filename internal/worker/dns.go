package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/liftoff/provisioner/internal/domain"
)

// DNSProvisioner registers the tenant's subdomain with the DNS provider.
// DNS registration is naturally idempotent on the provider side: registering
// the same name twice converges to the same record, so redelivery needs no
// special handling here.
type DNSProvisioner struct {
	registrar domain.DNSRegistrar
	log       domain.EventLogRepository
	logger    *slog.Logger
}

// NewDNSProvisioner creates the dns step worker.
func NewDNSProvisioner(registrar domain.DNSRegistrar, log domain.EventLogRepository, logger *slog.Logger) *DNSProvisioner {
	return &DNSProvisioner{registrar: registrar, log: log, logger: logger}
}

// Provision registers the subdomain and returns tenant.dns.ready.
func (w *DNSProvisioner) Provision(ctx context.Context, payload domain.TenantDBReady) (domain.TenantDNSReady, error) {
	if err := w.registrar.Register(ctx, payload.Subdomain); err != nil {
		return domain.TenantDNSReady{}, fmt.Errorf("registering dns for %q: %w", payload.Subdomain, err)
	}

	w.logger.InfoContext(ctx, "registered dns record",
		"tenant_id", payload.TenantID, "subdomain", payload.Subdomain)
	appendLog(ctx, w.log, w.logger, payload.TenantID, "dns.registered",
		domain.OutcomeSuccess, map[string]string{"subdomain": payload.Subdomain})

	return domain.TenantDNSReady{
		TenantID:  payload.TenantID,
		Subdomain: payload.Subdomain,
		PlanID:    payload.PlanID,
	}, nil
}
