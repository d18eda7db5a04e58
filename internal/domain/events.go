package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RoutingKey identifies one edge of the pipeline graph on the wire. The set
// of keys is closed: workers never fabricate a key outside this graph and the
// orchestrator never advances an aggregate for a key it does not recognize.
type RoutingKey string

const (
	KeyTenantRequested        RoutingKey = "tenant.requested"
	KeyTenantDBReady          RoutingKey = "tenant.db.ready"
	KeyTenantDNSReady         RoutingKey = "tenant.dns.ready"
	KeyTenantCredentialsReady RoutingKey = "tenant.credentials.ready"
	KeyTenantBillingActive    RoutingKey = "tenant.billing.active"
	KeyProvisioningComplete   RoutingKey = "tenant.provisioning.complete"
	KeyTenantCancelled        RoutingKey = "tenant.cancelled"
	KeyTenantDeleted          RoutingKey = "tenant.deleted"
)

// EventPayload is the contract every pipeline message satisfies: it knows its
// routing key and can validate its own shape.
type EventPayload interface {
	RoutingKey() RoutingKey
	Validate() error
}

// TenantRequested starts the pipeline; published by the orchestrator on create.
type TenantRequested struct {
	TenantID  string `json:"tenantId"`
	Subdomain string `json:"subdomain"`
	PlanID    string `json:"planId"`
}

func (TenantRequested) RoutingKey() RoutingKey { return KeyTenantRequested }

func (p TenantRequested) Validate() error { return validateTrigger(p.TenantID, p.Subdomain, p.PlanID) }

// TenantDBReady signals the tenant's database schema exists.
type TenantDBReady struct {
	TenantID  string `json:"tenantId"`
	Subdomain string `json:"subdomain"`
	PlanID    string `json:"planId"`
}

func (TenantDBReady) RoutingKey() RoutingKey { return KeyTenantDBReady }

func (p TenantDBReady) Validate() error { return validateTrigger(p.TenantID, p.Subdomain, p.PlanID) }

// TenantDNSReady signals the tenant's subdomain record exists.
type TenantDNSReady struct {
	TenantID  string `json:"tenantId"`
	Subdomain string `json:"subdomain"`
	PlanID    string `json:"planId"`
}

func (TenantDNSReady) RoutingKey() RoutingKey { return KeyTenantDNSReady }

func (p TenantDNSReady) Validate() error { return validateTrigger(p.TenantID, p.Subdomain, p.PlanID) }

// TenantCredentialsReady signals API credentials were minted. The credential
// itself never flows through the pipeline, only the trigger data does.
type TenantCredentialsReady struct {
	TenantID  string `json:"tenantId"`
	Subdomain string `json:"subdomain"`
	PlanID    string `json:"planId"`
}

func (TenantCredentialsReady) RoutingKey() RoutingKey { return KeyTenantCredentialsReady }

func (p TenantCredentialsReady) Validate() error {
	return validateTrigger(p.TenantID, p.Subdomain, p.PlanID)
}

// TenantBillingActive signals the billing subscription is live.
type TenantBillingActive struct {
	TenantID  string `json:"tenantId"`
	Subdomain string `json:"subdomain"`
	PlanID    string `json:"planId"`
}

func (TenantBillingActive) RoutingKey() RoutingKey { return KeyTenantBillingActive }

func (p TenantBillingActive) Validate() error { return validateTrigger(p.TenantID, p.Subdomain, p.PlanID) }

// ProvisioningComplete is the terminal event; it drops the plan reference.
type ProvisioningComplete struct {
	TenantID  string `json:"tenantId"`
	Subdomain string `json:"subdomain"`
}

func (ProvisioningComplete) RoutingKey() RoutingKey { return KeyProvisioningComplete }

func (p ProvisioningComplete) Validate() error { return validateTrigger(p.TenantID, p.Subdomain, "-") }

// TenantCancelled tells downstream services to release partially created
// resources for a cancelled pipeline.
type TenantCancelled struct {
	TenantID  string `json:"tenantId"`
	Subdomain string `json:"subdomain"`
	Reason    string `json:"reason,omitempty"`
}

func (TenantCancelled) RoutingKey() RoutingKey { return KeyTenantCancelled }

func (p TenantCancelled) Validate() error { return validateTrigger(p.TenantID, p.Subdomain, "-") }

// TenantDeleted is a best-effort cleanup signal published before the
// aggregate is removed.
type TenantDeleted struct {
	TenantID  string `json:"tenantId"`
	Subdomain string `json:"subdomain"`
}

func (TenantDeleted) RoutingKey() RoutingKey { return KeyTenantDeleted }

func (p TenantDeleted) Validate() error { return validateTrigger(p.TenantID, p.Subdomain, "-") }

func validateTrigger(tenantID, subdomain, planID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: missing tenantId", ErrMalformedPayload)
	}
	if subdomain == "" {
		return fmt.Errorf("%w: missing subdomain", ErrMalformedPayload)
	}
	if planID == "" {
		return fmt.Errorf("%w: missing planId", ErrMalformedPayload)
	}
	return nil
}

// DecodeEvent strictly decodes an event payload from the wire. Unknown fields
// and shape mismatches are rejected at the boundary rather than passed
// through; a failure here is a permanent one for the message.
func DecodeEvent[T EventPayload](data []byte) (T, error) {
	var payload T

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return payload, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := payload.Validate(); err != nil {
		return payload, err
	}
	return payload, nil
}
