package river

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/liftoff/provisioner/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by inserting one River job per
// queue bound to the event's routing key. A tenant.db.ready event therefore
// lands on both the DNS provisioner queue and the orchestrator queue, exactly
// as a direct exchange would copy it to each bound queue.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish serializes the event once and fans it out to every bound queue.
// A routing key with no bindings is a topology bug, not a droppable message.
func (p *Publisher) Publish(ctx context.Context, event domain.EventPayload) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", event.RoutingKey(), err)
	}

	bindings := BindingsFor(event.RoutingKey())
	if len(bindings) == 0 {
		return fmt.Errorf("no queue bound to routing key %q", event.RoutingKey())
	}

	params := make([]river.InsertManyParams, 0, len(bindings))
	for _, b := range bindings {
		params = append(params, river.InsertManyParams{Args: argsFor(b.Kind, payload)})
	}
	if _, err := p.client.InsertMany(ctx, params); err != nil {
		return fmt.Errorf("enqueuing %s: %w", event.RoutingKey(), err)
	}
	return nil
}
