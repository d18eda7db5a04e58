package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/liftoff/provisioner/internal/domain"
)

// Notifier sends the welcome notification and emits the pipeline's terminal
// event. A duplicate welcome email on redelivery is accepted as harmless;
// the aggregate's monotonic step statuses absorb the duplicate terminal event.
type Notifier struct {
	mailer domain.Mailer
	log    domain.EventLogRepository
	logger *slog.Logger
}

// NewNotifier creates the notification step worker.
func NewNotifier(mailer domain.Mailer, log domain.EventLogRepository, logger *slog.Logger) *Notifier {
	return &Notifier{mailer: mailer, log: log, logger: logger}
}

// Notify sends the welcome email and returns tenant.provisioning.complete,
// which drops the plan reference: the terminal event only identifies the
// tenant.
func (w *Notifier) Notify(ctx context.Context, payload domain.TenantBillingActive) (domain.ProvisioningComplete, error) {
	if err := w.mailer.SendWelcome(ctx, payload.Subdomain); err != nil {
		return domain.ProvisioningComplete{}, fmt.Errorf("sending welcome email for %q: %w", payload.Subdomain, err)
	}

	w.logger.InfoContext(ctx, "sent welcome notification",
		"tenant_id", payload.TenantID, "subdomain", payload.Subdomain)
	appendLog(ctx, w.log, w.logger, payload.TenantID, "notification.sent",
		domain.OutcomeSuccess, map[string]string{"subdomain": payload.Subdomain})

	return domain.ProvisioningComplete{
		TenantID:  payload.TenantID,
		Subdomain: payload.Subdomain,
	}, nil
}
