// Package worker implements the five pipeline step workers. Each worker is a
// stateless, idempotent transformer: it consumes exactly one upstream event,
// performs one side-effecting action, and returns exactly one downstream
// event or an error. Errors are permanent from the worker's point of view;
// retry policy belongs to the transport.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/liftoff/provisioner/internal/domain"
)

// SchemaProvisioner creates the per-tenant database schema.
type SchemaProvisioner struct {
	schemas domain.SchemaStore
	log     domain.EventLogRepository
	logger  *slog.Logger
}

// NewSchemaProvisioner creates the schema step worker.
func NewSchemaProvisioner(schemas domain.SchemaStore, log domain.EventLogRepository, logger *slog.Logger) *SchemaProvisioner {
	return &SchemaProvisioner{schemas: schemas, log: log, logger: logger}
}

// Provision creates the tenant's schema and returns tenant.db.ready. A schema
// that already exists means the message is a redelivery: the downstream event
// is republished without repeating the side effect.
func (w *SchemaProvisioner) Provision(ctx context.Context, payload domain.TenantRequested) (domain.TenantDBReady, error) {
	next := domain.TenantDBReady{
		TenantID:  payload.TenantID,
		Subdomain: payload.Subdomain,
		PlanID:    payload.PlanID,
	}

	schema := domain.TenantSchema{
		TenantID:   payload.TenantID,
		SchemaName: SchemaName(payload.Subdomain),
	}

	err := w.schemas.Create(ctx, schema)
	if errors.Is(err, domain.ErrSchemaExists) {
		w.logger.WarnContext(ctx, "schema already provisioned, republishing",
			"tenant_id", payload.TenantID, "schema", schema.SchemaName)
		appendLog(ctx, w.log, w.logger, payload.TenantID, "schema.provisioned",
			domain.OutcomeWarning, map[string]string{"schema": schema.SchemaName, "duplicate": "true"})
		return next, nil
	}
	if err != nil {
		return domain.TenantDBReady{}, fmt.Errorf("creating schema %q: %w", schema.SchemaName, err)
	}

	w.logger.InfoContext(ctx, "created tenant schema",
		"tenant_id", payload.TenantID, "schema", schema.SchemaName)
	appendLog(ctx, w.log, w.logger, payload.TenantID, "schema.provisioned",
		domain.OutcomeSuccess, map[string]string{"schema": schema.SchemaName})

	return next, nil
}

// SchemaName derives the schema identifier from a subdomain, replacing
// anything outside [a-zA-Z0-9] with underscores.
func SchemaName(subdomain string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, subdomain)
	return "tenant_" + sanitized
}

// appendLog writes a worker-side audit entry; failures never fail the step.
func appendLog(ctx context.Context, log domain.EventLogRepository, logger *slog.Logger, tenantID, eventType string, outcome domain.Outcome, payload any) {
	entry := domain.NewLogEntry(tenantID, eventType, outcome, payload)
	if err := log.Append(ctx, entry); err != nil {
		logger.WarnContext(ctx, "failed to append event log entry",
			"tenant_id", tenantID, "event_type", eventType, "error", err)
	}
}
