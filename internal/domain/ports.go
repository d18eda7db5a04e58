package domain

import (
	"context"
	"time"
)

// TenantRepository defines the persistence contract for the tenant aggregate.
type TenantRepository interface {
	Create(ctx context.Context, tenant Tenant) error
	GetByID(ctx context.Context, id string) (Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (Tenant, error)
	List(ctx context.Context, filter ListFilter) ([]Tenant, error)

	// Mutate applies fn to the stored aggregate as a single atomic
	// read-modify-write, so two concurrently delivered events (a ready event
	// racing a sweeper cancellation, say) cannot corrupt step statuses.
	// If fn returns an error nothing is written and the error is returned.
	Mutate(ctx context.Context, id string, fn func(*Tenant) error) (Tenant, error)

	// ListStale returns PROVISIONING tenants whose last update is older than
	// the given instant.
	ListStale(ctx context.Context, olderThan time.Time) ([]Tenant, error)

	// Delete removes the aggregate and cascades its event log.
	Delete(ctx context.Context, id string) error
}

// ListFilter holds optional criteria for listing tenants.
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}

// PlanRepository persists subscription plans.
type PlanRepository interface {
	// Upsert creates the plan if it does not exist and leaves it untouched
	// otherwise.
	Upsert(ctx context.Context, plan Plan) error
	GetByID(ctx context.Context, id string) (Plan, error)
}

// EventLogRepository is the append-only audit trail.
type EventLogRepository interface {
	Append(ctx context.Context, entry EventLogEntry) error
	ListByTenant(ctx context.Context, tenantID string) ([]EventLogEntry, error)
	ListAll(ctx context.Context) ([]EventLogEntry, error)
}

// SchemaStore persists per-tenant database schemas for the schema step.
// Create returns ErrSchemaExists when the tenant already has one.
type SchemaStore interface {
	Create(ctx context.Context, schema TenantSchema) error
	DeleteByTenant(ctx context.Context, tenantID string) error
}

// CredentialStore persists minted API credentials for the credentials step.
// Create returns ErrCredentialExists when the tenant already has one.
type CredentialStore interface {
	Create(ctx context.Context, credential Credential) error
	DeleteByTenant(ctx context.Context, tenantID string) error
}

// DNSRegistrar registers tenant subdomains with the DNS provider.
type DNSRegistrar interface {
	Register(ctx context.Context, subdomain string) error
}

// BillingGateway activates billing subscriptions with the payment provider.
type BillingGateway interface {
	Activate(ctx context.Context, tenantID, planID string) (subscriptionID string, err error)
}

// Mailer sends the welcome notification for a freshly provisioned tenant.
type Mailer interface {
	SendWelcome(ctx context.Context, subdomain string) error
}

// EventPublisher defines the contract for emitting pipeline events.
type EventPublisher interface {
	Publish(ctx context.Context, event EventPayload) error
}

// TransitionValidator checks overall-status transitions against the
// Transitions table.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}
