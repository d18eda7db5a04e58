package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/liftoff/provisioner/internal/domain"
)

// Compile-time check: TenantRepository implements domain.TenantRepository.
var _ domain.TenantRepository = (*TenantRepository)(nil)

// TenantRepository implements domain.TenantRepository using SQLite.
type TenantRepository struct {
	db *sql.DB
}

// NewTenantRepository wraps an opened, migrated database.
func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, name, subdomain, plan_id, status,
	db_status, dns_status, credentials_status, billing_status, notification_status,
	created_at, updated_at, cancelled_at, cancel_reason`

func (r *TenantRepository) Create(ctx context.Context, t domain.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Subdomain, t.PlanID, string(t.Status),
		string(t.DBStatus), string(t.DNSStatus), string(t.CredentialsStatus),
		string(t.BillingStatus), string(t.NotificationStatus),
		t.CreatedAt.Format(timeFormat),
		t.UpdatedAt.Format(timeFormat),
		formatNullableTime(t.CancelledAt),
		t.CancelReason,
	)
	if err != nil {
		if isUniqueViolation(err, "tenants.subdomain") {
			return &domain.SubdomainConflictError{Subdomain: t.Subdomain}
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id,
	))
}

func (r *TenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (domain.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE subdomain = ?`, subdomain,
	))
}

func (r *TenantRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants`
	var args []any

	if filter.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*filter.Status))
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	return collectTenants(rows)
}

// Mutate runs fn against the stored aggregate inside one transaction: the
// select and the update commit together or not at all, so concurrent event
// handlers cannot interleave partial step-status writes.
func (r *TenantRepository) Mutate(ctx context.Context, id string, fn func(*domain.Tenant) error) (domain.Tenant, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("beginning mutate tx: %w", err)
	}
	defer tx.Rollback()

	t, err := scanTenant(tx.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id,
	))
	if err != nil {
		return domain.Tenant{}, err
	}

	if err := fn(&t); err != nil {
		return domain.Tenant{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tenants SET
			name = ?, subdomain = ?, plan_id = ?, status = ?,
			db_status = ?, dns_status = ?, credentials_status = ?,
			billing_status = ?, notification_status = ?,
			updated_at = ?, cancelled_at = ?, cancel_reason = ?
		 WHERE id = ?`,
		t.Name, t.Subdomain, t.PlanID, string(t.Status),
		string(t.DBStatus), string(t.DNSStatus), string(t.CredentialsStatus),
		string(t.BillingStatus), string(t.NotificationStatus),
		t.UpdatedAt.Format(timeFormat),
		formatNullableTime(t.CancelledAt),
		t.CancelReason,
		t.ID,
	)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("updating tenant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Tenant{}, fmt.Errorf("committing mutate tx: %w", err)
	}
	return t, nil
}

func (r *TenantRepository) ListStale(ctx context.Context, olderThan time.Time) ([]domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants
		 WHERE status = ? AND updated_at < ?
		 ORDER BY updated_at ASC`,
		string(domain.StatusProvisioning), olderThan.UTC().Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("listing stale tenants: %w", err)
	}
	defer rows.Close()

	return collectTenants(rows)
}

func (r *TenantRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

// scannable is satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanTenant(row scannable) (domain.Tenant, error) {
	var t domain.Tenant
	var status, dbS, dnsS, credS, billS, notifS string
	var createdAt, updatedAt string
	var cancelledAt sql.NullString

	err := row.Scan(&t.ID, &t.Name, &t.Subdomain, &t.PlanID, &status,
		&dbS, &dnsS, &credS, &billS, &notifS,
		&createdAt, &updatedAt, &cancelledAt, &t.CancelReason)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Tenant{}, domain.ErrTenantNotFound
		}
		return domain.Tenant{}, fmt.Errorf("scanning tenant: %w", err)
	}

	t.Status = domain.Status(status)
	t.DBStatus = domain.StepStatus(dbS)
	t.DNSStatus = domain.StepStatus(dnsS)
	t.CredentialsStatus = domain.StepStatus(credS)
	t.BillingStatus = domain.StepStatus(billS)
	t.NotificationStatus = domain.StepStatus(notifS)
	t.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	t.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	if cancelledAt.Valid {
		parsed, err := time.Parse(timeFormat, cancelledAt.String)
		if err == nil {
			t.CancelledAt = &parsed
		}
	}

	return t, nil
}

func collectTenants(rows *sql.Rows) ([]domain.Tenant, error) {
	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeFormat)
}
