package domain_test

import (
	"testing"

	"github.com/liftoff/provisioner/internal/domain"
)

func TestSubdomainConflictError_Error(t *testing.T) {
	err := &domain.SubdomainConflictError{Subdomain: "acme"}
	want := `subdomain "acme" is already in use`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestTransitionError_Error(t *testing.T) {
	err := &domain.TransitionError{
		Event:   domain.EventCancel,
		Current: domain.StatusActive,
	}
	want := `event "cancel" is not valid from state "ACTIVE"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestStepStateError_Error(t *testing.T) {
	err := &domain.StepStateError{
		Step:    domain.StepDNS,
		Status:  domain.StepSuccess,
		Overall: domain.StatusProvisioning,
	}
	want := `step "dns" cannot advance from "SUCCESS" while tenant is "PROVISIONING"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
