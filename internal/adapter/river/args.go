package river

import (
	"encoding/json"

	"github.com/riverqueue/river"
)

// Every pipeline job carries the raw event payload produced by the
// publisher. Decoding is deferred to the consumer so that a malformed
// message is refused by the consumer that received it, not at insert time.
//
// MaxAttempts is pinned to 1 on the step-worker and cleanup kinds:
// redelivery there is explicit (a consumer that already holds the side
// effect republishes the downstream event), never a broker retry. The
// orchestrator's advance-* and complete-provisioning kinds get a few
// attempts instead. Their queues carry no mutual ordering, so an event can
// be worked before its predecessor has been applied; the handler returns an
// error for that case and the backoff between attempts absorbs the race.

type SchemaProvisionArgs struct {
	Payload json.RawMessage `json:"payload"`
}

func (SchemaProvisionArgs) Kind() string { return "provision-schema" }
func (SchemaProvisionArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueSchemaProvisioner, MaxAttempts: 1}
}

type DNSProvisionArgs struct {
	Payload json.RawMessage `json:"payload"`
}

func (DNSProvisionArgs) Kind() string { return "provision-dns" }
func (DNSProvisionArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueDNSProvisioner, MaxAttempts: 1}
}

type IssueCredentialsArgs struct {
	Payload json.RawMessage `json:"payload"`
}

func (IssueCredentialsArgs) Kind() string { return "issue-credentials" }
func (IssueCredentialsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueCredentials, MaxAttempts: 1}
}

type ActivateBillingArgs struct {
	Payload json.RawMessage `json:"payload"`
}

func (ActivateBillingArgs) Kind() string { return "activate-billing" }
func (ActivateBillingArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueBilling, MaxAttempts: 1}
}

type SendNotificationArgs struct {
	Payload json.RawMessage `json:"payload"`
}

func (SendNotificationArgs) Kind() string { return "send-notification" }
func (SendNotificationArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueNotification, MaxAttempts: 1}
}

type AdvanceDBReadyArgs struct {
	Payload json.RawMessage `json:"payload"`
}

func (AdvanceDBReadyArgs) Kind() string { return "advance-db-ready" }
func (AdvanceDBReadyArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueOrchestratorDBReady, MaxAttempts: 4}
}

type AdvanceDNSReadyArgs struct {
	Payload json.RawMessage `json:"payload"`
}

func (AdvanceDNSReadyArgs) Kind() string { return "advance-dns-ready" }
func (AdvanceDNSReadyArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueOrchestratorDNSReady, MaxAttempts: 4}
}

type AdvanceCredentialsReadyArgs struct {
	Payload json.RawMessage `json:"payload"`
}

func (AdvanceCredentialsReadyArgs) Kind() string { return "advance-credentials-ready" }
func (AdvanceCredentialsReadyArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueOrchestratorCredentialsReady, MaxAttempts: 4}
}

type AdvanceBillingActiveArgs struct {
	Payload json.RawMessage `json:"payload"`
}

func (AdvanceBillingActiveArgs) Kind() string { return "advance-billing-active" }
func (AdvanceBillingActiveArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueOrchestratorBillingActive, MaxAttempts: 4}
}

type CompleteProvisioningArgs struct {
	Payload json.RawMessage `json:"payload"`
}

func (CompleteProvisioningArgs) Kind() string { return "complete-provisioning" }
func (CompleteProvisioningArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueOrchestratorCompletion, MaxAttempts: 4}
}

type CleanupCancelledArgs struct {
	Payload json.RawMessage `json:"payload"`
}

func (CleanupCancelledArgs) Kind() string { return "cleanup-cancelled" }
func (CleanupCancelledArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueCleanup, MaxAttempts: 1}
}

type CleanupDeletedArgs struct {
	Payload json.RawMessage `json:"payload"`
}

func (CleanupDeletedArgs) Kind() string { return "cleanup-deleted" }
func (CleanupDeletedArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueCleanup, MaxAttempts: 1}
}

// DeadLetterArgs records a refused message. The dead-letter queue is not
// configured on the client, so these jobs stay in the available state until
// an operator inspects or reprocesses them.
type DeadLetterArgs struct {
	Exchange   string          `json:"exchange"`
	RoutingKey string          `json:"routingKey"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	Reason     string          `json:"reason"`
}

func (DeadLetterArgs) Kind() string { return "dead-letter" }
func (DeadLetterArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueDeadLetter, MaxAttempts: 1}
}

// SweepArgs triggers one pass of the stuck-provisioning sweeper.
type SweepArgs struct{}

func (SweepArgs) Kind() string { return "provisioning-sweep" }
func (SweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueMaintenance, MaxAttempts: 1}
}

// argsFor maps a binding kind to its args value so the publisher can fan a
// single event out to every bound queue.
func argsFor(kind string, payload json.RawMessage) river.JobArgs {
	switch kind {
	case "provision-schema":
		return SchemaProvisionArgs{Payload: payload}
	case "provision-dns":
		return DNSProvisionArgs{Payload: payload}
	case "issue-credentials":
		return IssueCredentialsArgs{Payload: payload}
	case "activate-billing":
		return ActivateBillingArgs{Payload: payload}
	case "send-notification":
		return SendNotificationArgs{Payload: payload}
	case "advance-db-ready":
		return AdvanceDBReadyArgs{Payload: payload}
	case "advance-dns-ready":
		return AdvanceDNSReadyArgs{Payload: payload}
	case "advance-credentials-ready":
		return AdvanceCredentialsReadyArgs{Payload: payload}
	case "advance-billing-active":
		return AdvanceBillingActiveArgs{Payload: payload}
	case "complete-provisioning":
		return CompleteProvisioningArgs{Payload: payload}
	case "cleanup-cancelled":
		return CleanupCancelledArgs{Payload: payload}
	case "cleanup-deleted":
		return CleanupDeletedArgs{Payload: payload}
	}
	return nil
}
