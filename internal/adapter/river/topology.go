// Package river adapts the provisioning pipeline onto the River job queue.
// The mapping mirrors a direct-routed broker: every routing key is delivered
// to each queue bound to it (one inserted job per binding), a queue's
// MaxWorkers bounds its in-flight messages like a consumer prefetch, and a
// message refused by its consumer is captured on a dead-letter queue that no
// worker drains.
package river

import "github.com/liftoff/provisioner/internal/domain"

// Exchange names, kept for wire-compatibility with the broker topology the
// queue replaces. They appear in dead-letter records and logs.
const (
	ExchangeProvisioning = "provisioning.direct"
	ExchangeDeadLetter   = "dlx.provisioning"
)

// Queue names. Each queue belongs to exactly one consumer.
const (
	QueueSchemaProvisioner = "db-provisioner-queue"
	QueueDNSProvisioner    = "dns-provisioner-queue"
	QueueCredentials       = "credentials-queue"
	QueueBilling           = "billing-queue"
	QueueNotification      = "notification-queue"

	QueueOrchestratorDBReady          = "tenant-service-db-ready-queue"
	QueueOrchestratorDNSReady         = "tenant-service-dns-ready-queue"
	QueueOrchestratorCredentialsReady = "tenant-service-credentials-ready-queue"
	QueueOrchestratorBillingActive    = "tenant-service-billing-active-queue"
	QueueOrchestratorCompletion       = "tenant-service-completion-queue"

	QueueCleanup     = "cleanup-queue"
	QueueMaintenance = "maintenance-queue"
	QueueDeadLetter  = "dead-letter-queue"
)

// Binding routes one routing key into one queue, with the dead-letter
// routing key its refused messages are filed under.
type Binding struct {
	Key           domain.RoutingKey
	Queue         string
	Kind          string
	DeadLetterKey string
}

// Topology is the full routing table, declared once and treated as immutable
// configuration. Consumers never fabricate a routing key outside this graph.
var Topology = []Binding{
	{Key: domain.KeyTenantRequested, Queue: QueueSchemaProvisioner, Kind: "provision-schema", DeadLetterKey: "db-provisioner.failed"},
	{Key: domain.KeyTenantDBReady, Queue: QueueDNSProvisioner, Kind: "provision-dns", DeadLetterKey: "dns-provisioner.failed"},
	{Key: domain.KeyTenantDNSReady, Queue: QueueCredentials, Kind: "issue-credentials", DeadLetterKey: "credentials.failed"},
	{Key: domain.KeyTenantCredentialsReady, Queue: QueueBilling, Kind: "activate-billing", DeadLetterKey: "billing.failed"},
	{Key: domain.KeyTenantBillingActive, Queue: QueueNotification, Kind: "send-notification", DeadLetterKey: "notification.failed"},

	{Key: domain.KeyTenantDBReady, Queue: QueueOrchestratorDBReady, Kind: "advance-db-ready", DeadLetterKey: "tenant-service.failed"},
	{Key: domain.KeyTenantDNSReady, Queue: QueueOrchestratorDNSReady, Kind: "advance-dns-ready", DeadLetterKey: "tenant-service.failed"},
	{Key: domain.KeyTenantCredentialsReady, Queue: QueueOrchestratorCredentialsReady, Kind: "advance-credentials-ready", DeadLetterKey: "tenant-service.failed"},
	{Key: domain.KeyTenantBillingActive, Queue: QueueOrchestratorBillingActive, Kind: "advance-billing-active", DeadLetterKey: "tenant-service.failed"},
	{Key: domain.KeyProvisioningComplete, Queue: QueueOrchestratorCompletion, Kind: "complete-provisioning", DeadLetterKey: "tenant-service.failed"},

	{Key: domain.KeyTenantCancelled, Queue: QueueCleanup, Kind: "cleanup-cancelled", DeadLetterKey: "cleanup.failed"},
	{Key: domain.KeyTenantDeleted, Queue: QueueCleanup, Kind: "cleanup-deleted", DeadLetterKey: "cleanup.failed"},
}

// bindingFor returns the binding with the given kind. Kinds are unique in
// the topology.
func bindingFor(kind string) Binding {
	for _, b := range Topology {
		if b.Kind == kind {
			return b
		}
	}
	return Binding{Kind: kind}
}

// BindingsFor returns every binding for a routing key, in declaration order.
func BindingsFor(key domain.RoutingKey) []Binding {
	var out []Binding
	for _, b := range Topology {
		if b.Key == key {
			out = append(out, b)
		}
	}
	return out
}
