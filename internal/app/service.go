package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/liftoff/provisioner/internal/domain"
)

// stepForKey maps each "ready" routing key to the pipeline step it completes.
// The handlers contain no branching beyond this lookup: which step pair to
// touch is determined entirely by the routing key of the received event.
var stepForKey = map[domain.RoutingKey]domain.Step{
	domain.KeyTenantDBReady:          domain.StepDB,
	domain.KeyTenantDNSReady:         domain.StepDNS,
	domain.KeyTenantCredentialsReady: domain.StepCredentials,
	domain.KeyTenantBillingActive:    domain.StepBilling,
}

// TenantService owns the tenant aggregate. It is the sole writer of step
// statuses: step workers act only through the events it consumes.
type TenantService struct {
	tenants   domain.TenantRepository
	plans     domain.PlanRepository
	log       domain.EventLogRepository
	publisher domain.EventPublisher
	validator domain.TransitionValidator
	logger    *slog.Logger
}

// NewTenantService creates a service with the given adapters.
func NewTenantService(
	tenants domain.TenantRepository,
	plans domain.PlanRepository,
	log domain.EventLogRepository,
	publisher domain.EventPublisher,
	validator domain.TransitionValidator,
	logger *slog.Logger,
) *TenantService {
	return &TenantService{
		tenants:   tenants,
		plans:     plans,
		log:       log,
		publisher: publisher,
		validator: validator,
		logger:    logger,
	}
}

// Create persists a new tenant with its first step already in flight and
// publishes tenant.requested to start the pipeline. A duplicate subdomain is
// rejected synchronously and publishes nothing.
func (s *TenantService) Create(ctx context.Context, name, subdomain, planID string) (domain.Tenant, error) {
	if err := s.plans.Upsert(ctx, domain.NewPlan(planID)); err != nil {
		return domain.Tenant{}, fmt.Errorf("resolving plan: %w", err)
	}

	tenant := domain.NewTenant(uuid.NewString(), name, subdomain, planID)

	if err := s.tenants.Create(ctx, tenant); err != nil {
		return domain.Tenant{}, err
	}

	s.logEvent(ctx, tenant.ID, "tenant.created", domain.OutcomeSuccess,
		map[string]string{"name": tenant.Name, "plan": tenant.PlanID})

	event := domain.TenantRequested{
		TenantID:  tenant.ID,
		Subdomain: tenant.Subdomain,
		PlanID:    tenant.PlanID,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		return domain.Tenant{}, fmt.Errorf("publishing tenant.requested: %w", err)
	}

	return tenant, nil
}

// HandleStepReady advances the aggregate for one of the four intermediate
// "ready" events. The completed step flips to SUCCESS and its successor to
// IN_PROGRESS in a single atomic update. The orchestrator's queues carry no
// mutual ordering, so an event can land before its predecessor has been
// applied: that case returns an error and relies on redelivery. Events for
// tenants that are no longer PROVISIONING (cancelled by the sweeper or an
// operator, say) and duplicate deliveries of an already-applied event are
// ignored and logged rather than applied, so cancellation can never be
// partially undone by a late delivery.
func (s *TenantService) HandleStepReady(ctx context.Context, key domain.RoutingKey, tenantID string, payload any) error {
	step, ok := stepForKey[key]
	if !ok {
		return fmt.Errorf("unrecognized routing key %q", key)
	}

	_, err := s.tenants.Mutate(ctx, tenantID, func(t *domain.Tenant) error {
		return t.AdvanceStep(step)
	})

	var stepErr *domain.StepStateError
	switch {
	case err == nil:
		s.logEvent(ctx, tenantID, string(key), domain.OutcomeSuccess, payload)
		return nil
	case errors.As(err, &stepErr) &&
		stepErr.Overall == domain.StatusProvisioning && stepErr.Status == domain.StepPending:
		// Early arrival: the predecessor's advance has not landed yet. Leave
		// the message for redelivery instead of acking it away.
		s.logger.WarnContext(ctx, "step event arrived before its predecessor",
			"routing_key", key, "tenant_id", tenantID, "reason", err.Error())
		return fmt.Errorf("advancing step %q: %w", step, err)
	case errors.As(err, &stepErr):
		s.logger.WarnContext(ctx, "ignoring late or duplicate step event",
			"routing_key", key, "tenant_id", tenantID, "reason", err.Error())
		s.logEvent(ctx, tenantID, string(key), domain.OutcomeWarning,
			map[string]string{"ignored": err.Error()})
		return nil
	case errors.Is(err, domain.ErrTenantNotFound):
		// Deleted mid-pipeline; nothing left to update or log against.
		s.logger.WarnContext(ctx, "ignoring event for unknown tenant",
			"routing_key", key, "tenant_id", tenantID)
		return nil
	default:
		return fmt.Errorf("advancing step %q: %w", step, err)
	}
}

// HandleProvisioningComplete applies the terminal event: notification step
// SUCCESS, overall status ACTIVE. The completion event races the final
// billing advance (they travel through different queues), so an activation
// that is merely early returns an error and relies on redelivery; only a
// tenant that already left PROVISIONING is treated as final.
func (s *TenantService) HandleProvisioningComplete(ctx context.Context, payload domain.ProvisioningComplete) error {
	_, err := s.tenants.Mutate(ctx, payload.TenantID, func(t *domain.Tenant) error {
		return t.Activate()
	})

	var stepErr *domain.StepStateError
	switch {
	case err == nil:
	case errors.As(err, &stepErr) && stepErr.Overall != domain.StatusProvisioning:
		s.logger.WarnContext(ctx, "ignoring completion for tenant outside provisioning",
			"tenant_id", payload.TenantID, "reason", err.Error())
		s.logEvent(ctx, payload.TenantID, string(domain.KeyProvisioningComplete),
			domain.OutcomeWarning, map[string]string{"ignored": err.Error()})
		return nil
	case errors.Is(err, domain.ErrTenantNotFound):
		s.logger.WarnContext(ctx, "ignoring completion for unknown tenant",
			"tenant_id", payload.TenantID)
		return nil
	default:
		s.logger.ErrorContext(ctx, "failed to activate tenant",
			"tenant_id", payload.TenantID, "error", err)
		s.logEvent(ctx, payload.TenantID, string(domain.KeyProvisioningComplete),
			domain.OutcomeError, map[string]string{"error": err.Error()})
		return fmt.Errorf("activating tenant %s: %w", payload.TenantID, err)
	}

	s.logEvent(ctx, payload.TenantID, string(domain.KeyProvisioningComplete),
		domain.OutcomeSuccess, payload)
	s.logger.InfoContext(ctx, "tenant active", "tenant_id", payload.TenantID)
	return nil
}

// Cancel compensates a pipeline in flight: overall status CANCELLED, every
// unfinished step frozen, and tenant.cancelled published so downstream
// services release partially created resources. Cancelling a tenant that is
// not PROVISIONING fails with a TransitionError.
func (s *TenantService) Cancel(ctx context.Context, id, reason string) (domain.Tenant, error) {
	tenant, err := s.tenants.Mutate(ctx, id, func(t *domain.Tenant) error {
		if _, err := s.validator.Apply(ctx, t.Status, domain.EventCancel); err != nil {
			return err
		}
		return t.CancelProvisioning(reason)
	})
	if err != nil {
		return domain.Tenant{}, err
	}

	s.logEvent(ctx, id, string(domain.KeyTenantCancelled), domain.OutcomeSuccess,
		map[string]string{"reason": reason})

	event := domain.TenantCancelled{
		TenantID:  tenant.ID,
		Subdomain: tenant.Subdomain,
		Reason:    reason,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// The aggregate is already terminal; failing the call now would
		// suggest the cancel did not happen.
		s.logger.ErrorContext(ctx, "failed to publish tenant.cancelled",
			"tenant_id", tenant.ID, "error", err)
	}

	return tenant, nil
}

// Delete publishes a best-effort cleanup signal, then removes the aggregate.
// The event log cascades away with it.
func (s *TenantService) Delete(ctx context.Context, id string) (domain.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}

	event := domain.TenantDeleted{TenantID: tenant.ID, Subdomain: tenant.Subdomain}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish tenant.deleted",
			"tenant_id", tenant.ID, "error", err)
	}

	s.logEvent(ctx, id, string(domain.KeyTenantDeleted), domain.OutcomeSuccess, nil)

	if err := s.tenants.Delete(ctx, id); err != nil {
		return domain.Tenant{}, err
	}
	return tenant, nil
}

// Transition applies an administrative lifecycle event (suspend, reactivate,
// fail). The pipeline's own events never pass through here.
func (s *TenantService) Transition(ctx context.Context, id string, event domain.Event) (domain.Tenant, error) {
	tenant, err := s.tenants.Mutate(ctx, id, func(t *domain.Tenant) error {
		next, err := s.validator.Apply(ctx, t.Status, event)
		if err != nil {
			return err
		}
		t.Status = next
		return nil
	})
	if err != nil {
		return domain.Tenant{}, err
	}

	s.logEvent(ctx, id, "tenant."+string(event), domain.OutcomeSuccess, nil)
	return tenant, nil
}

// GetByID returns a tenant by its unique identifier.
func (s *TenantService) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

// List returns tenants matching the given filter.
func (s *TenantService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Tenant, error) {
	return s.tenants.List(ctx, filter)
}

// Events returns the audit trail for one tenant, newest first.
func (s *TenantService) Events(ctx context.Context, tenantID string) ([]domain.EventLogEntry, error) {
	if _, err := s.tenants.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.log.ListByTenant(ctx, tenantID)
}

// AllEvents returns the audit trail across all tenants, newest first.
func (s *TenantService) AllEvents(ctx context.Context) ([]domain.EventLogEntry, error) {
	return s.log.ListAll(ctx)
}

// logEvent appends to the audit trail. Logging failures are reported but
// never fail the operation that produced them.
func (s *TenantService) logEvent(ctx context.Context, tenantID, eventType string, outcome domain.Outcome, payload any) {
	entry := domain.NewLogEntry(tenantID, eventType, outcome, payload)
	if err := s.log.Append(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "failed to append event log entry",
			"tenant_id", tenantID, "event_type", eventType, "error", err)
	}
}
