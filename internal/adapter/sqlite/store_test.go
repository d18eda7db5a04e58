package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/liftoff/provisioner/internal/adapter/sqlite"
	"github.com/liftoff/provisioner/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(t.TempDir() + "/provisioner_test.db")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedTenant inserts the free plan and a tenant on it.
func seedTenant(t *testing.T, db *sql.DB, id, subdomain string) domain.Tenant {
	t.Helper()
	ctx := context.Background()

	if err := sqlite.NewPlanRepository(db).Upsert(ctx, domain.NewPlan("free")); err != nil {
		t.Fatalf("upserting plan: %v", err)
	}

	tenant := domain.NewTenant(id, "Tenant "+id, subdomain, "free")
	if err := sqlite.NewTenantRepository(db).Create(ctx, tenant); err != nil {
		t.Fatalf("creating tenant: %v", err)
	}
	return tenant
}

// --- Tenants ---

func TestTenantRepository_CreateAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewTenantRepository(db)
	ctx := context.Background()

	seeded := seedTenant(t, db, "t-1", "acme")

	got, err := repo.GetByID(ctx, "t-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Subdomain != "acme" || got.Status != domain.StatusProvisioning {
		t.Errorf("got %+v", got)
	}
	if got.DBStatus != domain.StepInProgress || got.DNSStatus != domain.StepPending {
		t.Errorf("step statuses not round-tripped: %+v", got)
	}
	if !got.CreatedAt.Equal(seeded.CreatedAt.Truncate(time.Second)) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, seeded.CreatedAt.Truncate(time.Second))
	}

	bySub, err := repo.GetBySubdomain(ctx, "acme")
	if err != nil {
		t.Fatalf("GetBySubdomain: %v", err)
	}
	if bySub.ID != "t-1" {
		t.Errorf("GetBySubdomain ID = %q, want %q", bySub.ID, "t-1")
	}
}

func TestTenantRepository_GetByID_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewTenantRepository(db)

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("err = %v, want ErrTenantNotFound", err)
	}
}

func TestTenantRepository_SubdomainConflict(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewTenantRepository(db)
	ctx := context.Background()

	seedTenant(t, db, "t-1", "acme")

	err := repo.Create(ctx, domain.NewTenant("t-2", "Other", "acme", "free"))
	var conflict *domain.SubdomainConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want SubdomainConflictError", err)
	}
	if conflict.Subdomain != "acme" {
		t.Errorf("Subdomain = %q, want %q", conflict.Subdomain, "acme")
	}
}

func TestTenantRepository_Mutate(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewTenantRepository(db)
	ctx := context.Background()

	seedTenant(t, db, "t-1", "acme")

	mutated, err := repo.Mutate(ctx, "t-1", func(tn *domain.Tenant) error {
		return tn.AdvanceStep(domain.StepDB)
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if mutated.DBStatus != domain.StepSuccess || mutated.DNSStatus != domain.StepInProgress {
		t.Errorf("mutated = %+v", mutated)
	}

	stored, err := repo.GetByID(ctx, "t-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.DBStatus != domain.StepSuccess || stored.DNSStatus != domain.StepInProgress {
		t.Errorf("mutation not persisted: %+v", stored)
	}
}

func TestTenantRepository_Mutate_ErrorDiscardsWrite(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewTenantRepository(db)
	ctx := context.Background()

	seedTenant(t, db, "t-1", "acme")

	sentinel := errors.New("rejected")
	_, err := repo.Mutate(ctx, "t-1", func(tn *domain.Tenant) error {
		tn.Status = domain.StatusFailed
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}

	stored, _ := repo.GetByID(ctx, "t-1")
	if stored.Status != domain.StatusProvisioning {
		t.Errorf("Status = %q, rejected mutation must not persist", stored.Status)
	}
}

func TestTenantRepository_List_FilterByStatus(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewTenantRepository(db)
	ctx := context.Background()

	seedTenant(t, db, "t-1", "acme")
	seedTenant(t, db, "t-2", "globex")

	if _, err := repo.Mutate(ctx, "t-2", func(tn *domain.Tenant) error {
		return tn.CancelProvisioning("test")
	}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	status := domain.StatusProvisioning
	got, err := repo.List(ctx, domain.ListFilter{Status: &status})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t-1" {
		t.Errorf("List = %+v, want only t-1", got)
	}
}

func TestTenantRepository_ListStale(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewTenantRepository(db)
	ctx := context.Background()

	seedTenant(t, db, "t-1", "acme")

	stale, err := repo.ListStale(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListStale: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("fresh tenant reported stale: %+v", stale)
	}

	stale, err = repo.ListStale(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("ListStale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "t-1" {
		t.Errorf("ListStale = %+v, want t-1", stale)
	}
}

func TestTenantRepository_Delete_CascadesEventLog(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewTenantRepository(db)
	logRepo := sqlite.NewEventLogRepository(db)
	ctx := context.Background()

	seedTenant(t, db, "t-1", "acme")
	entry := domain.NewLogEntry("t-1", "tenant.created", domain.OutcomeSuccess, nil)
	if err := logRepo.Append(ctx, entry); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := repo.Delete(ctx, "t-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := repo.GetByID(ctx, "t-1"); !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("GetByID after delete = %v, want ErrTenantNotFound", err)
	}
	entries, err := logRepo.ListByTenant(ctx, "t-1")
	if err != nil {
		t.Fatalf("ListByTenant: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("event log should cascade away, got %d entries", len(entries))
	}
}

func TestTenantRepository_Delete_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewTenantRepository(db)

	err := repo.Delete(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("err = %v, want ErrTenantNotFound", err)
	}
}

// --- Plans ---

func TestPlanRepository_UpsertIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewPlanRepository(db)
	ctx := context.Background()

	if err := repo.Upsert(ctx, domain.NewPlan("free")); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := repo.Upsert(ctx, domain.NewPlan("free")); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	plan, err := repo.GetByID(ctx, "free")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if plan.MaxUsers != domain.DefaultMaxUsers {
		t.Errorf("MaxUsers = %d, want %d", plan.MaxUsers, domain.DefaultMaxUsers)
	}
}

func TestPlanRepository_GetByID_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewPlanRepository(db)

	_, err := repo.GetByID(context.Background(), "platinum")
	if !errors.Is(err, domain.ErrPlanNotFound) {
		t.Errorf("err = %v, want ErrPlanNotFound", err)
	}
}

// --- Event log ---

func TestEventLogRepository_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	logRepo := sqlite.NewEventLogRepository(db)
	ctx := context.Background()

	seedTenant(t, db, "t-1", "acme")

	first := domain.NewLogEntry("t-1", "tenant.created", domain.OutcomeSuccess, nil)
	second := domain.NewLogEntry("t-1", "tenant.db.ready", domain.OutcomeSuccess, nil)
	second.Timestamp = first.Timestamp.Add(time.Second)

	if err := logRepo.Append(ctx, first); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := logRepo.Append(ctx, second); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := logRepo.ListByTenant(ctx, "t-1")
	if err != nil {
		t.Fatalf("ListByTenant: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].EventType != "tenant.db.ready" {
		t.Errorf("entries[0] = %q, want newest first", entries[0].EventType)
	}
}

// --- Side-effect stores ---

func TestSchemaStore_DuplicateReturnsSentinel(t *testing.T) {
	db := openTestDB(t)
	store := sqlite.NewSchemaStore(db)
	ctx := context.Background()

	schema := domain.TenantSchema{TenantID: "t-1", SchemaName: "tenant_acme"}
	if err := store.Create(ctx, schema); err != nil {
		t.Fatalf("first create: %v", err)
	}

	err := store.Create(ctx, schema)
	if !errors.Is(err, domain.ErrSchemaExists) {
		t.Errorf("err = %v, want ErrSchemaExists", err)
	}

	if err := store.DeleteByTenant(ctx, "t-1"); err != nil {
		t.Fatalf("DeleteByTenant: %v", err)
	}
	// Gone, so it can be created again.
	if err := store.Create(ctx, schema); err != nil {
		t.Errorf("create after delete: %v", err)
	}
}

func TestSchemaStore_NameCollisionAcrossTenants(t *testing.T) {
	db := openTestDB(t)
	store := sqlite.NewSchemaStore(db)
	ctx := context.Background()

	if err := store.Create(ctx, domain.TenantSchema{TenantID: "t-1", SchemaName: "tenant_acme"}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	// Sanitized names can collide across subdomains. Another tenant claiming
	// the same schema name is a real conflict, not a redelivery.
	err := store.Create(ctx, domain.TenantSchema{TenantID: "t-2", SchemaName: "tenant_acme"})
	if err == nil {
		t.Fatal("cross-tenant name collision should fail")
	}
	if errors.Is(err, domain.ErrSchemaExists) {
		t.Errorf("err = %v, must not be the redelivery sentinel", err)
	}
}

func TestCredentialStore_DuplicateReturnsSentinel(t *testing.T) {
	db := openTestDB(t)
	store := sqlite.NewCredentialStore(db)
	ctx := context.Background()

	cred := domain.Credential{TenantID: "t-1", APIKey: "sk_live_abc"}
	if err := store.Create(ctx, cred); err != nil {
		t.Fatalf("first create: %v", err)
	}

	err := store.Create(ctx, domain.Credential{TenantID: "t-1", APIKey: "sk_live_other"})
	if !errors.Is(err, domain.ErrCredentialExists) {
		t.Errorf("err = %v, want ErrCredentialExists", err)
	}

	if err := store.DeleteByTenant(ctx, "t-1"); err != nil {
		t.Fatalf("DeleteByTenant: %v", err)
	}
	if err := store.DeleteByTenant(ctx, "t-1"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}
