package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrPlanNotFound   = errors.New("plan not found")

	// ErrCredentialExists signals the per-tenant uniqueness constraint on
	// credentials was violated. Under at-least-once delivery this means the
	// message is a redelivery of an already processed event, not a failure.
	ErrCredentialExists = errors.New("credential already exists for tenant")

	// ErrSchemaExists is the schema step's equivalent of ErrCredentialExists.
	ErrSchemaExists = errors.New("schema already provisioned for tenant")

	// ErrMalformedPayload marks an event payload that failed strict decoding.
	// It is permanent: the message is dead-lettered, never retried.
	ErrMalformedPayload = errors.New("malformed event payload")
)

// SubdomainConflictError is returned when a tenant subdomain is already in use.
type SubdomainConflictError struct {
	Subdomain string
}

func (e *SubdomainConflictError) Error() string {
	return fmt.Sprintf("subdomain %q is already in use", e.Subdomain)
}

// TransitionError is returned when an overall-status transition is not allowed.
type TransitionError struct {
	Event   Event
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// StepStateError is returned when a step-status change would violate the
// pipeline's ordering or monotonicity rules.
type StepStateError struct {
	Step    Step
	Status  StepStatus
	Overall Status
}

func (e *StepStateError) Error() string {
	return fmt.Sprintf("step %q cannot advance from %q while tenant is %q", e.Step, e.Status, e.Overall)
}
