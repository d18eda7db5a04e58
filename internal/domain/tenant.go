package domain

import "time"

// Status represents the overall lifecycle state of a tenant.
type Status string

const (
	StatusProvisioning Status = "PROVISIONING"
	StatusActive       Status = "ACTIVE"
	StatusFailed       Status = "FAILED"
	StatusSuspended    Status = "SUSPENDED"
	StatusCancelled    Status = "CANCELLED"
)

// StepStatus represents the state of a single provisioning step.
type StepStatus string

const (
	StepPending    StepStatus = "PENDING"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepSuccess    StepStatus = "SUCCESS"
	StepFailed     StepStatus = "FAILED"
	StepCancelled  StepStatus = "CANCELLED"
)

// Step identifies one stage of the fixed provisioning pipeline.
type Step string

const (
	StepDB           Step = "db"
	StepDNS          Step = "dns"
	StepCredentials  Step = "credentials"
	StepBilling      Step = "billing"
	StepNotification Step = "notification"
)

// StepOrder is the fixed execution order of the pipeline. Steps are strictly
// sequential: the next step only enters IN_PROGRESS once the previous one
// reaches SUCCESS.
var StepOrder = []Step{StepDB, StepDNS, StepCredentials, StepBilling, StepNotification}

// Event represents an action that triggers an overall-status transition.
type Event string

const (
	EventProvisioningComplete Event = "provisioning_complete"
	EventCancel               Event = "cancel"
	EventFail                 Event = "fail"
	EventSuspend              Event = "suspend"
	EventReactivate           Event = "reactivate"
)

// Transition defines a valid state change: an event moves a tenant from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid overall-status changes. PROVISIONING is the
// initial state; ACTIVE and CANCELLED are its terminal outcomes. FAILED,
// suspend and reactivate are administrative transitions only: the pipeline
// never flips a tenant to FAILED on its own, a stalled pipeline stays in
// PROVISIONING until the sweeper cancels it.
var Transitions = []Transition{
	{Event: EventProvisioningComplete, Src: StatusProvisioning, Dst: StatusActive},
	{Event: EventCancel, Src: StatusProvisioning, Dst: StatusCancelled},
	{Event: EventFail, Src: StatusProvisioning, Dst: StatusFailed},
	{Event: EventSuspend, Src: StatusActive, Dst: StatusSuspended},
	{Event: EventReactivate, Src: StatusSuspended, Dst: StatusActive},
}

// Tenant is the aggregate representing one provisioned account and the
// current state of its provisioning pipeline. It is mutated exclusively by
// the orchestrator; all coordination between workers happens through the
// persisted copy of this record and the queue, never shared memory.
type Tenant struct {
	ID        string
	Name      string
	Subdomain string
	PlanID    string
	Status    Status

	DBStatus           StepStatus
	DNSStatus          StepStatus
	CredentialsStatus  StepStatus
	BillingStatus      StepStatus
	NotificationStatus StepStatus

	CreatedAt    time.Time
	UpdatedAt    time.Time
	CancelledAt  *time.Time
	CancelReason string
}

// NewTenant creates a tenant at the start of its pipeline: overall status
// PROVISIONING, the db step already IN_PROGRESS and every later step PENDING.
func NewTenant(id, name, subdomain, planID string) Tenant {
	now := time.Now().UTC()
	return Tenant{
		ID:                 id,
		Name:               name,
		Subdomain:          subdomain,
		PlanID:             planID,
		Status:             StatusProvisioning,
		DBStatus:           StepInProgress,
		DNSStatus:          StepPending,
		CredentialsStatus:  StepPending,
		BillingStatus:      StepPending,
		NotificationStatus: StepPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// StepStatus returns the status of the given pipeline step.
func (t *Tenant) StepStatus(step Step) StepStatus {
	switch step {
	case StepDB:
		return t.DBStatus
	case StepDNS:
		return t.DNSStatus
	case StepCredentials:
		return t.CredentialsStatus
	case StepBilling:
		return t.BillingStatus
	case StepNotification:
		return t.NotificationStatus
	}
	return ""
}

func (t *Tenant) setStepStatus(step Step, status StepStatus) {
	switch step {
	case StepDB:
		t.DBStatus = status
	case StepDNS:
		t.DNSStatus = status
	case StepCredentials:
		t.CredentialsStatus = status
	case StepBilling:
		t.BillingStatus = status
	case StepNotification:
		t.NotificationStatus = status
	}
}

// NextStep returns the step following the given one in the pipeline order,
// or false for the last step.
func NextStep(step Step) (Step, bool) {
	for i, s := range StepOrder {
		if s == step && i+1 < len(StepOrder) {
			return StepOrder[i+1], true
		}
	}
	return "", false
}

// AdvanceStep promotes a completed step to SUCCESS and the following step to
// IN_PROGRESS. Step statuses are monotonic: a step can only advance while it
// is IN_PROGRESS and the tenant is still PROVISIONING, so a redelivered ready
// event or a late event after cancellation never moves a step backwards.
func (t *Tenant) AdvanceStep(completed Step) error {
	if t.Status != StatusProvisioning {
		return &StepStateError{Step: completed, Status: t.StepStatus(completed), Overall: t.Status}
	}
	if t.StepStatus(completed) != StepInProgress {
		return &StepStateError{Step: completed, Status: t.StepStatus(completed), Overall: t.Status}
	}

	t.setStepStatus(completed, StepSuccess)
	if next, ok := NextStep(completed); ok {
		t.setStepStatus(next, StepInProgress)
	}
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Activate finishes the pipeline: the notification step becomes SUCCESS and
// the overall status flips to ACTIVE. It refuses to activate unless every
// earlier step already succeeded, which keeps the "ACTIVE iff all steps
// SUCCESS" invariant intact.
func (t *Tenant) Activate() error {
	if t.Status != StatusProvisioning || t.NotificationStatus != StepInProgress {
		return &StepStateError{Step: StepNotification, Status: t.NotificationStatus, Overall: t.Status}
	}
	for _, step := range StepOrder[:len(StepOrder)-1] {
		if t.StepStatus(step) != StepSuccess {
			return &StepStateError{Step: step, Status: t.StepStatus(step), Overall: t.Status}
		}
	}

	t.NotificationStatus = StepSuccess
	t.Status = StatusActive
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// CancelProvisioning freezes the pipeline: every step still PENDING or
// IN_PROGRESS becomes CANCELLED, steps that already reached SUCCESS keep it.
// Only a PROVISIONING tenant can be cancelled.
func (t *Tenant) CancelProvisioning(reason string) error {
	if t.Status != StatusProvisioning {
		return &TransitionError{Event: EventCancel, Current: t.Status}
	}

	for _, step := range StepOrder {
		switch t.StepStatus(step) {
		case StepPending, StepInProgress:
			t.setStepStatus(step, StepCancelled)
		}
	}

	now := time.Now().UTC()
	t.Status = StatusCancelled
	t.CancelledAt = &now
	t.CancelReason = reason
	t.UpdatedAt = now
	return nil
}

// AllStepsSucceeded reports whether every pipeline step reached SUCCESS.
func (t *Tenant) AllStepsSucceeded() bool {
	for _, step := range StepOrder {
		if t.StepStatus(step) != StepSuccess {
			return false
		}
	}
	return true
}
