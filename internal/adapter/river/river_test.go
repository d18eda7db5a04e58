package river_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	goriver "github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	fsmadapter "github.com/liftoff/provisioner/internal/adapter/fsm"
	riveradapter "github.com/liftoff/provisioner/internal/adapter/river"
	"github.com/liftoff/provisioner/internal/adapter/sqlite"
	"github.com/liftoff/provisioner/internal/app"
	"github.com/liftoff/provisioner/internal/domain"
	"github.com/liftoff/provisioner/internal/provider"
	"github.com/liftoff/provisioner/internal/worker"
)

type stack struct {
	db      *sql.DB
	client  *riveradapter.Client
	svc     *app.TenantService
	tenants domain.TenantRepository
}

// newStack wires the full pipeline against a temp-file SQLite database,
// exactly as the binary does, with the external providers mocked.
func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(t.TempDir() + "/pipeline_test.db")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handlers := &riveradapter.Handlers{Logger: logger}
	client, err := riveradapter.Setup(ctx, db, handlers, riveradapter.Config{Prefetch: 2})
	if err != nil {
		t.Fatalf("river setup: %v", err)
	}

	tenants := sqlite.NewTenantRepository(db)
	eventLog := sqlite.NewEventLogRepository(db)
	schemas := sqlite.NewSchemaStore(db)
	credentials := sqlite.NewCredentialStore(db)

	svc := app.NewTenantService(tenants, sqlite.NewPlanRepository(db), eventLog,
		handlers.Publisher(), fsmadapter.New(), logger)

	handlers.Service = svc
	handlers.Sweeper = app.NewSweeper(tenants, svc, 30*time.Minute, logger)
	handlers.Schema = worker.NewSchemaProvisioner(schemas, eventLog, logger)
	handlers.DNS = worker.NewDNSProvisioner(&provider.MockDNS{Zone: "test.dev", Logger: logger}, eventLog, logger)
	handlers.Credentials = worker.NewCredentialsIssuer(credentials, eventLog, logger)
	handlers.Billing = worker.NewBillingActivator(&provider.MockBilling{Logger: logger}, eventLog, logger)
	handlers.Notifier = worker.NewNotifier(&provider.MockMailer{Logger: logger}, eventLog, logger)
	handlers.Cleaner = worker.NewCleaner(schemas, credentials, logger)

	return &stack{db: db, client: client, svc: svc, tenants: tenants}
}

func startClient(t *testing.T, client *riveradapter.Client) {
	t.Helper()

	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("river start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Stop(stopCtx); err != nil {
			t.Errorf("river stop: %v", err)
		}
	})
}

// waitForStatus polls until the tenant reaches the wanted overall status.
func waitForStatus(t *testing.T, repo domain.TenantRepository, id string, want domain.Status, timeout time.Duration) domain.Tenant {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		tenant, err := repo.GetByID(context.Background(), id)
		if err == nil && tenant.Status == want {
			return tenant
		}
		time.Sleep(50 * time.Millisecond)
	}
	tenant, _ := repo.GetByID(context.Background(), id)
	t.Fatalf("tenant %s never reached %s, last state %+v", id, want, tenant)
	return domain.Tenant{}
}

func TestTopology_FanOutBindings(t *testing.T) {
	tests := []struct {
		key  domain.RoutingKey
		want int
	}{
		{domain.KeyTenantRequested, 1},
		{domain.KeyTenantDBReady, 2},
		{domain.KeyTenantDNSReady, 2},
		{domain.KeyTenantCredentialsReady, 2},
		{domain.KeyTenantBillingActive, 2},
		{domain.KeyProvisioningComplete, 1},
		{domain.KeyTenantCancelled, 1},
		{domain.KeyTenantDeleted, 1},
	}
	for _, tt := range tests {
		if got := len(riveradapter.BindingsFor(tt.key)); got != tt.want {
			t.Errorf("BindingsFor(%s) = %d bindings, want %d", tt.key, got, tt.want)
		}
	}
}

func TestTopology_QueuesAreUnambiguous(t *testing.T) {
	kinds := make(map[string]bool)
	for _, b := range riveradapter.Topology {
		if kinds[b.Kind] {
			t.Errorf("kind %q appears twice", b.Kind)
		}
		kinds[b.Kind] = true
		if b.DeadLetterKey == "" {
			t.Errorf("binding %s/%s has no dead-letter key", b.Key, b.Queue)
		}
	}
}

func TestPublisher_FansOutOneJobPerBinding(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	// Without starting the client, published jobs stay queued for inspection.
	event := domain.TenantDBReady{TenantID: "t-1", Subdomain: "acme", PlanID: "free"}
	pub := riveradapter.NewPublisher(s.client)
	if err := pub.Publish(ctx, event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	res, err := s.client.JobList(ctx, goriver.NewJobListParams().First(100))
	if err != nil {
		t.Fatalf("JobList: %v", err)
	}

	got := make(map[string]int)
	for _, job := range res.Jobs {
		got[job.Kind]++
	}
	if got["provision-dns"] != 1 {
		t.Errorf("provision-dns jobs = %d, want 1", got["provision-dns"])
	}
	if got["advance-db-ready"] != 1 {
		t.Errorf("advance-db-ready jobs = %d, want 1", got["advance-db-ready"])
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	s := newStack(t)
	startClient(t, s.client)

	tenant, err := s.svc.Create(context.Background(), "Acme", "acme", "free")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	final := waitForStatus(t, s.tenants, tenant.ID, domain.StatusActive, 30*time.Second)

	if !final.AllStepsSucceeded() {
		t.Errorf("every step should be SUCCESS, got %+v", final)
	}
}

func TestPipeline_CancelReleasesResources(t *testing.T) {
	s := newStack(t)
	startClient(t, s.client)
	ctx := context.Background()

	tenant, err := s.svc.Create(ctx, "Acme", "acme", "free")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitForStatus(t, s.tenants, tenant.ID, domain.StatusActive, 30*time.Second)

	// Deleting publishes tenant.deleted; the cleanup consumer releases the
	// schema and credential rows.
	if _, err := s.svc.Delete(ctx, tenant.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var schemaCount, credCount int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenant_schemas`).Scan(&schemaCount); err != nil {
			t.Fatalf("counting schemas: %v", err)
		}
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&credCount); err != nil {
			t.Fatalf("counting credentials: %v", err)
		}
		if schemaCount == 0 && credCount == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("side-effect rows were never released")
}

func TestDeadLetter_MalformedPayload(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	subscribeChan, subscribeCancel := s.client.Subscribe(goriver.EventKindJobCancelled)
	defer subscribeCancel()

	startClient(t, s.client)

	// A payload with an unknown field must be refused, not processed.
	_, err := s.client.Insert(ctx, riveradapter.SchemaProvisionArgs{
		Payload: []byte(`{"tenantId":"t-1","subdomain":"acme","planId":"free","bogus":true}`),
	}, nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	select {
	case event := <-subscribeChan:
		if event.Job.Kind != "provision-schema" {
			t.Errorf("cancelled job kind = %q, want %q", event.Job.Kind, "provision-schema")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the job to be refused")
	}

	// The refused message is parked on the dead-letter queue.
	res, err := s.client.JobList(ctx,
		goriver.NewJobListParams().Queues(riveradapter.QueueDeadLetter).First(10))
	if err != nil {
		t.Fatalf("JobList: %v", err)
	}
	if len(res.Jobs) != 1 {
		t.Fatalf("dead-letter jobs = %d, want 1", len(res.Jobs))
	}
	dead := res.Jobs[0]
	if dead.Kind != "dead-letter" {
		t.Errorf("kind = %q, want %q", dead.Kind, "dead-letter")
	}
	if dead.State != rivertype.JobStateAvailable {
		t.Errorf("state = %q, dead letters must stay available, not run", dead.State)
	}
}
