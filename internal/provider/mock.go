// Package provider holds the external collaborator implementations. The real
// system talks to a DNS provider, a payment provider and an email provider;
// here they are mocks that log the call and fabricate identifiers, invoked
// only as opaque side-effecting calls.
package provider

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// MockDNS pretends to register subdomain records.
type MockDNS struct {
	Zone   string
	Logger *slog.Logger
}

// Register records the subdomain against the configured zone.
func (m *MockDNS) Register(ctx context.Context, subdomain string) error {
	m.Logger.InfoContext(ctx, "mock dns record created",
		"fqdn", subdomain+"."+m.Zone)
	return nil
}

// MockBilling pretends to be the payment provider.
type MockBilling struct {
	Logger *slog.Logger
}

// Activate fabricates a subscription identifier for the tenant's plan.
func (m *MockBilling) Activate(ctx context.Context, tenantID, planID string) (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating subscription id: %w", err)
	}
	subscriptionID := "sub_" + hex.EncodeToString(b)

	m.Logger.InfoContext(ctx, "mock subscription created",
		"tenant_id", tenantID, "plan_id", planID, "subscription_id", subscriptionID)
	return subscriptionID, nil
}

// MockMailer pretends to send welcome email.
type MockMailer struct {
	Logger *slog.Logger
}

// SendWelcome logs the welcome email instead of sending one.
func (m *MockMailer) SendWelcome(ctx context.Context, subdomain string) error {
	m.Logger.InfoContext(ctx, "mock welcome email sent", "subdomain", subdomain)
	return nil
}
