package domain

// Plan is a subscription plan referenced by tenants. Plans are resolved or
// created on first use with default quotas.
type Plan struct {
	ID         string
	Name       string
	MaxUsers   int
	MaxAPIKeys int
}

// Default plan quotas applied when a plan is created implicitly during
// tenant creation.
const (
	DefaultMaxUsers   = 5
	DefaultMaxAPIKeys = 3
)

// NewPlan creates a plan with default quotas, named after its id.
func NewPlan(id string) Plan {
	return Plan{
		ID:         id,
		Name:       id,
		MaxUsers:   DefaultMaxUsers,
		MaxAPIKeys: DefaultMaxAPIKeys,
	}
}

// Credential is the API credential minted for a tenant by the credentials
// step. The tenant id carries a uniqueness constraint: it is the step's
// natural idempotency key.
type Credential struct {
	TenantID string
	APIKey   string
}

// TenantSchema records the per-tenant database schema created by the schema
// step. Like credentials, the tenant id is unique and doubles as the step's
// idempotency key.
type TenantSchema struct {
	TenantID   string
	SchemaName string
}
