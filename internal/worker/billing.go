package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/liftoff/provisioner/internal/domain"
)

// BillingActivator creates the tenant's billing subscription through the
// payment provider. The gateway keys the subscription by tenant, so a
// redelivered activation converges to the same subscription.
type BillingActivator struct {
	billing domain.BillingGateway
	log     domain.EventLogRepository
	logger  *slog.Logger
}

// NewBillingActivator creates the billing step worker.
func NewBillingActivator(billing domain.BillingGateway, log domain.EventLogRepository, logger *slog.Logger) *BillingActivator {
	return &BillingActivator{billing: billing, log: log, logger: logger}
}

// Activate creates the subscription and returns tenant.billing.active.
func (w *BillingActivator) Activate(ctx context.Context, payload domain.TenantCredentialsReady) (domain.TenantBillingActive, error) {
	subscriptionID, err := w.billing.Activate(ctx, payload.TenantID, payload.PlanID)
	if err != nil {
		return domain.TenantBillingActive{}, fmt.Errorf("activating billing for plan %q: %w", payload.PlanID, err)
	}

	w.logger.InfoContext(ctx, "activated billing subscription",
		"tenant_id", payload.TenantID, "plan_id", payload.PlanID, "subscription_id", subscriptionID)
	appendLog(ctx, w.log, w.logger, payload.TenantID, "billing.activated",
		domain.OutcomeSuccess, map[string]string{"subscriptionId": subscriptionID, "planId": payload.PlanID})

	return domain.TenantBillingActive{
		TenantID:  payload.TenantID,
		Subdomain: payload.Subdomain,
		PlanID:    payload.PlanID,
	}, nil
}
