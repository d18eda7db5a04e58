package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/liftoff/provisioner/internal/domain"
)

// Compile-time checks for the step workers' side-effect stores.
var (
	_ domain.SchemaStore     = (*SchemaStore)(nil)
	_ domain.CredentialStore = (*CredentialStore)(nil)
)

// SchemaStore records per-tenant database schemas. The tenant id primary key
// is the schema step's idempotency key: a second insert for the same tenant
// fails with ErrSchemaExists instead of creating a duplicate.
type SchemaStore struct {
	db *sql.DB
}

// NewSchemaStore wraps an opened, migrated database.
func NewSchemaStore(db *sql.DB) *SchemaStore {
	return &SchemaStore{db: db}
}

func (s *SchemaStore) Create(ctx context.Context, schema domain.TenantSchema) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant_schemas (tenant_id, schema_name, created_at)
		 VALUES (?, ?, ?)`,
		schema.TenantID, schema.SchemaName, time.Now().UTC().Format(timeFormat),
	)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err, "tenant_schemas") {
		return fmt.Errorf("inserting tenant schema: %w", err)
	}

	// On a redelivered insert the violation can name either the tenant_id
	// primary key or the schema_name UNIQUE constraint (both columns repeat).
	// A row held by the same tenant means the message was already processed;
	// a schema_name held by a different tenant stays a real conflict, since
	// sanitized names can collide across subdomains.
	var existing string
	scanErr := s.db.QueryRowContext(ctx,
		`SELECT schema_name FROM tenant_schemas WHERE tenant_id = ?`, schema.TenantID,
	).Scan(&existing)
	if scanErr == nil {
		return domain.ErrSchemaExists
	}
	return fmt.Errorf("inserting tenant schema: %w", err)
}

func (s *SchemaStore) DeleteByTenant(ctx context.Context, tenantID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM tenant_schemas WHERE tenant_id = ?`, tenantID,
	); err != nil {
		return fmt.Errorf("deleting tenant schema: %w", err)
	}
	return nil
}

// CredentialStore persists minted API keys. Like SchemaStore, the tenant id
// primary key backs the redelivery check: a constraint violation on tenant_id
// means "already processed", anything else is a real failure.
type CredentialStore struct {
	db *sql.DB
}

// NewCredentialStore wraps an opened, migrated database.
func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

func (s *CredentialStore) Create(ctx context.Context, credential domain.Credential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (tenant_id, api_key, created_at)
		 VALUES (?, ?, ?)`,
		credential.TenantID, credential.APIKey, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err, "credentials.tenant_id") {
			return domain.ErrCredentialExists
		}
		return fmt.Errorf("inserting credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) DeleteByTenant(ctx context.Context, tenantID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE tenant_id = ?`, tenantID,
	); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}
