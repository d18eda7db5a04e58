package domain_test

import (
	"errors"
	"testing"

	"github.com/liftoff/provisioner/internal/domain"
)

func TestDecodeEvent_Valid(t *testing.T) {
	data := []byte(`{"tenantId":"t-1","subdomain":"acme","planId":"plan_basic"}`)

	payload, err := domain.DecodeEvent[domain.TenantRequested](data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.TenantID != "t-1" {
		t.Errorf("TenantID = %q, want %q", payload.TenantID, "t-1")
	}
	if payload.Subdomain != "acme" {
		t.Errorf("Subdomain = %q, want %q", payload.Subdomain, "acme")
	}
	if payload.PlanID != "plan_basic" {
		t.Errorf("PlanID = %q, want %q", payload.PlanID, "plan_basic")
	}
}

func TestDecodeEvent_UnknownField(t *testing.T) {
	data := []byte(`{"tenantId":"t-1","subdomain":"acme","planId":"p","extra":true}`)

	_, err := domain.DecodeEvent[domain.TenantRequested](data)
	if !errors.Is(err, domain.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestDecodeEvent_MissingRequiredField(t *testing.T) {
	cases := map[string]string{
		"missing tenantId":  `{"subdomain":"acme","planId":"p"}`,
		"missing subdomain": `{"tenantId":"t-1","planId":"p"}`,
		"missing planId":    `{"tenantId":"t-1","subdomain":"acme"}`,
		"not json":          `tenant please`,
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := domain.DecodeEvent[domain.TenantDBReady]([]byte(data))
			if !errors.Is(err, domain.ErrMalformedPayload) {
				t.Fatalf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}

func TestDecodeEvent_TerminalEventDropsPlan(t *testing.T) {
	data := []byte(`{"tenantId":"t-1","subdomain":"acme"}`)

	payload, err := domain.DecodeEvent[domain.ProvisioningComplete](data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.RoutingKey() != domain.KeyProvisioningComplete {
		t.Errorf("RoutingKey = %q, want %q", payload.RoutingKey(), domain.KeyProvisioningComplete)
	}
}

func TestRoutingKeys_Closed(t *testing.T) {
	keys := map[domain.RoutingKey]bool{
		domain.TenantRequested{}.RoutingKey():        true,
		domain.TenantDBReady{}.RoutingKey():          true,
		domain.TenantDNSReady{}.RoutingKey():         true,
		domain.TenantCredentialsReady{}.RoutingKey(): true,
		domain.TenantBillingActive{}.RoutingKey():    true,
		domain.ProvisioningComplete{}.RoutingKey():   true,
		domain.TenantCancelled{}.RoutingKey():        true,
		domain.TenantDeleted{}.RoutingKey():          true,
	}

	if len(keys) != 8 {
		t.Errorf("expected 8 distinct routing keys, got %d", len(keys))
	}
}
