package river

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/liftoff/provisioner/internal/app"
	"github.com/liftoff/provisioner/internal/domain"
	"github.com/liftoff/provisioner/internal/worker"
)

// Handlers holds everything the queue workers call into. Setup registers
// workers that read these fields at work time, so the caller fills them in
// after constructing the client (the publisher needs the client, and the
// service needs the publisher) but before Start.
type Handlers struct {
	Service *app.TenantService
	Sweeper *app.Sweeper

	Schema      *worker.SchemaProvisioner
	DNS         *worker.DNSProvisioner
	Credentials *worker.CredentialsIssuer
	Billing     *worker.BillingActivator
	Notifier    *worker.Notifier
	Cleaner     *worker.Cleaner

	Logger *slog.Logger

	publisher *Publisher
	dead      *deadLetterOffice
}

// Publisher returns the fan-out publisher wired to the client created by
// Setup. It is nil before Setup runs.
func (h *Handlers) Publisher() *Publisher { return h.publisher }

// workStep decodes an inbound event, runs the step handler, and publishes its
// downstream event. Decode failures and handler failures are both refused to
// the dead-letter queue: with MaxAttempts pinned to 1 there is no broker
// retry, so anything a consumer cannot finish must be captured, not dropped.
func workStep[In domain.EventPayload, Out domain.EventPayload](
	ctx context.Context,
	h *Handlers,
	kind string,
	raw json.RawMessage,
	step func(context.Context, In) (Out, error),
) error {
	binding := bindingFor(kind)
	payload, err := domain.DecodeEvent[In](raw)
	if err != nil {
		return h.dead.refuse(ctx, binding, raw, err)
	}
	next, err := step(ctx, payload)
	if err != nil {
		return h.dead.refuse(ctx, binding, raw, err)
	}
	return h.publisher.Publish(ctx, next)
}

// workAdvance decodes an inbound event and feeds it to the orchestrator's
// step-ready handler. The service acks late and duplicate events with a
// warning; an event that arrived before its predecessor comes back as an
// error, leaving the job to be retried.
func workAdvance[In domain.EventPayload](
	ctx context.Context,
	h *Handlers,
	kind string,
	key domain.RoutingKey,
	raw json.RawMessage,
	tenantID func(In) string,
) error {
	payload, err := domain.DecodeEvent[In](raw)
	if err != nil {
		return h.dead.refuse(ctx, bindingFor(kind), raw, err)
	}
	return h.Service.HandleStepReady(ctx, key, tenantID(payload), payload)
}

type schemaWorker struct {
	river.WorkerDefaults[SchemaProvisionArgs]
	h *Handlers
}

func (w *schemaWorker) Work(ctx context.Context, job *river.Job[SchemaProvisionArgs]) error {
	return workStep(ctx, w.h, job.Args.Kind(), job.Args.Payload, w.h.Schema.Provision)
}

type dnsWorker struct {
	river.WorkerDefaults[DNSProvisionArgs]
	h *Handlers
}

func (w *dnsWorker) Work(ctx context.Context, job *river.Job[DNSProvisionArgs]) error {
	return workStep(ctx, w.h, job.Args.Kind(), job.Args.Payload, w.h.DNS.Provision)
}

type credentialsWorker struct {
	river.WorkerDefaults[IssueCredentialsArgs]
	h *Handlers
}

func (w *credentialsWorker) Work(ctx context.Context, job *river.Job[IssueCredentialsArgs]) error {
	return workStep(ctx, w.h, job.Args.Kind(), job.Args.Payload, w.h.Credentials.Issue)
}

type billingWorker struct {
	river.WorkerDefaults[ActivateBillingArgs]
	h *Handlers
}

func (w *billingWorker) Work(ctx context.Context, job *river.Job[ActivateBillingArgs]) error {
	return workStep(ctx, w.h, job.Args.Kind(), job.Args.Payload, w.h.Billing.Activate)
}

type notificationWorker struct {
	river.WorkerDefaults[SendNotificationArgs]
	h *Handlers
}

func (w *notificationWorker) Work(ctx context.Context, job *river.Job[SendNotificationArgs]) error {
	return workStep(ctx, w.h, job.Args.Kind(), job.Args.Payload, w.h.Notifier.Notify)
}

type advanceDBReadyWorker struct {
	river.WorkerDefaults[AdvanceDBReadyArgs]
	h *Handlers
}

func (w *advanceDBReadyWorker) Work(ctx context.Context, job *river.Job[AdvanceDBReadyArgs]) error {
	return workAdvance(ctx, w.h, job.Args.Kind(), domain.KeyTenantDBReady, job.Args.Payload,
		func(p domain.TenantDBReady) string { return p.TenantID })
}

type advanceDNSReadyWorker struct {
	river.WorkerDefaults[AdvanceDNSReadyArgs]
	h *Handlers
}

func (w *advanceDNSReadyWorker) Work(ctx context.Context, job *river.Job[AdvanceDNSReadyArgs]) error {
	return workAdvance(ctx, w.h, job.Args.Kind(), domain.KeyTenantDNSReady, job.Args.Payload,
		func(p domain.TenantDNSReady) string { return p.TenantID })
}

type advanceCredentialsReadyWorker struct {
	river.WorkerDefaults[AdvanceCredentialsReadyArgs]
	h *Handlers
}

func (w *advanceCredentialsReadyWorker) Work(ctx context.Context, job *river.Job[AdvanceCredentialsReadyArgs]) error {
	return workAdvance(ctx, w.h, job.Args.Kind(), domain.KeyTenantCredentialsReady, job.Args.Payload,
		func(p domain.TenantCredentialsReady) string { return p.TenantID })
}

type advanceBillingActiveWorker struct {
	river.WorkerDefaults[AdvanceBillingActiveArgs]
	h *Handlers
}

func (w *advanceBillingActiveWorker) Work(ctx context.Context, job *river.Job[AdvanceBillingActiveArgs]) error {
	return workAdvance(ctx, w.h, job.Args.Kind(), domain.KeyTenantBillingActive, job.Args.Payload,
		func(p domain.TenantBillingActive) string { return p.TenantID })
}

type completionWorker struct {
	river.WorkerDefaults[CompleteProvisioningArgs]
	h *Handlers
}

func (w *completionWorker) Work(ctx context.Context, job *river.Job[CompleteProvisioningArgs]) error {
	payload, err := domain.DecodeEvent[domain.ProvisioningComplete](job.Args.Payload)
	if err != nil {
		return w.h.dead.refuse(ctx, bindingFor(job.Args.Kind()), job.Args.Payload, err)
	}
	return w.h.Service.HandleProvisioningComplete(ctx, payload)
}

type cleanupCancelledWorker struct {
	river.WorkerDefaults[CleanupCancelledArgs]
	h *Handlers
}

func (w *cleanupCancelledWorker) Work(ctx context.Context, job *river.Job[CleanupCancelledArgs]) error {
	payload, err := domain.DecodeEvent[domain.TenantCancelled](job.Args.Payload)
	if err != nil {
		return w.h.dead.refuse(ctx, bindingFor(job.Args.Kind()), job.Args.Payload, err)
	}
	return w.h.Cleaner.Release(ctx, payload.TenantID, payload.Subdomain)
}

type cleanupDeletedWorker struct {
	river.WorkerDefaults[CleanupDeletedArgs]
	h *Handlers
}

func (w *cleanupDeletedWorker) Work(ctx context.Context, job *river.Job[CleanupDeletedArgs]) error {
	payload, err := domain.DecodeEvent[domain.TenantDeleted](job.Args.Payload)
	if err != nil {
		return w.h.dead.refuse(ctx, bindingFor(job.Args.Kind()), job.Args.Payload, err)
	}
	return w.h.Cleaner.Release(ctx, payload.TenantID, payload.Subdomain)
}

// SweepWorker runs one sweeper pass over stalled provisioning runs.
type SweepWorker struct {
	river.WorkerDefaults[SweepArgs]
	h *Handlers
}

func (w *SweepWorker) Work(ctx context.Context, job *river.Job[SweepArgs]) error {
	cancelled, err := w.h.Sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	if cancelled > 0 {
		w.h.Logger.InfoContext(ctx, "sweep cancelled stalled tenants", "count", cancelled)
	}
	return nil
}
