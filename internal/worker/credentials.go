package worker

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/liftoff/provisioner/internal/domain"
)

// CredentialsIssuer mints one API credential per tenant. The per-tenant
// uniqueness constraint on the credential store is what makes redelivery
// safe: the second insert fails with ErrCredentialExists and the worker
// republishes downstream instead of minting a second key.
type CredentialsIssuer struct {
	credentials domain.CredentialStore
	log         domain.EventLogRepository
	logger      *slog.Logger
}

// NewCredentialsIssuer creates the credentials step worker.
func NewCredentialsIssuer(credentials domain.CredentialStore, log domain.EventLogRepository, logger *slog.Logger) *CredentialsIssuer {
	return &CredentialsIssuer{credentials: credentials, log: log, logger: logger}
}

// Issue mints and stores the tenant's API key and returns
// tenant.credentials.ready. The key itself never enters the returned event;
// only the trigger data flows forward.
func (w *CredentialsIssuer) Issue(ctx context.Context, payload domain.TenantDNSReady) (domain.TenantCredentialsReady, error) {
	next := domain.TenantCredentialsReady{
		TenantID:  payload.TenantID,
		Subdomain: payload.Subdomain,
		PlanID:    payload.PlanID,
	}

	apiKey, err := newAPIKey()
	if err != nil {
		return domain.TenantCredentialsReady{}, fmt.Errorf("generating api key: %w", err)
	}

	err = w.credentials.Create(ctx, domain.Credential{
		TenantID: payload.TenantID,
		APIKey:   apiKey,
	})
	if errors.Is(err, domain.ErrCredentialExists) {
		w.logger.WarnContext(ctx, "credentials already exist, republishing",
			"tenant_id", payload.TenantID)
		appendLog(ctx, w.log, w.logger, payload.TenantID, "credentials.issued",
			domain.OutcomeWarning, map[string]string{"duplicate": "true"})
		return next, nil
	}
	if err != nil {
		return domain.TenantCredentialsReady{}, fmt.Errorf("storing credential: %w", err)
	}

	w.logger.InfoContext(ctx, "issued credentials", "tenant_id", payload.TenantID)
	appendLog(ctx, w.log, w.logger, payload.TenantID, "credentials.issued",
		domain.OutcomeSuccess, nil)

	return next, nil
}

func newAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "sk_live_" + hex.EncodeToString(b), nil
}
