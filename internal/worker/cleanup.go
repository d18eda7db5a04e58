package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/liftoff/provisioner/internal/domain"
)

// Cleaner releases side-effect resources for cancelled or deleted tenants.
// Reclamation is best effort and idempotent: deleting rows that were never
// created (the pipeline was cancelled before those steps ran) is a no-op.
type Cleaner struct {
	schemas     domain.SchemaStore
	credentials domain.CredentialStore
	logger      *slog.Logger
}

// NewCleaner creates the resource reclamation worker.
func NewCleaner(schemas domain.SchemaStore, credentials domain.CredentialStore, logger *slog.Logger) *Cleaner {
	return &Cleaner{schemas: schemas, credentials: credentials, logger: logger}
}

// Release drops everything the pipeline created for the tenant so far.
func (w *Cleaner) Release(ctx context.Context, tenantID, subdomain string) error {
	if err := w.schemas.DeleteByTenant(ctx, tenantID); err != nil {
		return fmt.Errorf("releasing schema: %w", err)
	}
	if err := w.credentials.DeleteByTenant(ctx, tenantID); err != nil {
		return fmt.Errorf("releasing credentials: %w", err)
	}

	w.logger.InfoContext(ctx, "released tenant resources",
		"tenant_id", tenantID, "subdomain", subdomain)
	return nil
}
