package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/liftoff/provisioner/internal/domain"
)

// Compile-time check: EventLogRepository implements domain.EventLogRepository.
var _ domain.EventLogRepository = (*EventLogRepository)(nil)

// EventLogRepository implements the append-only audit trail on SQLite.
// Rows are only ever inserted here; deletion happens solely through the
// cascading foreign key when a tenant is removed.
type EventLogRepository struct {
	db *sql.DB
}

// NewEventLogRepository wraps an opened, migrated database.
func NewEventLogRepository(db *sql.DB) *EventLogRepository {
	return &EventLogRepository{db: db}
}

func (r *EventLogRepository) Append(ctx context.Context, entry domain.EventLogEntry) error {
	payload := entry.Payload
	if payload == nil {
		payload = []byte("null")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (tenant_id, event_type, outcome, payload, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.TenantID, entry.EventType, string(entry.Outcome),
		string(payload), entry.Timestamp.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("appending event log entry: %w", err)
	}
	return nil
}

func (r *EventLogRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.EventLogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, event_type, outcome, payload, timestamp
		 FROM event_log WHERE tenant_id = ?
		 ORDER BY timestamp DESC, id DESC`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events for tenant: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func (r *EventLogRepository) ListAll(ctx context.Context) ([]domain.EventLogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, event_type, outcome, payload, timestamp
		 FROM event_log
		 ORDER BY timestamp DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]domain.EventLogEntry, error) {
	var entries []domain.EventLogEntry
	for rows.Next() {
		var e domain.EventLogEntry
		var outcome, payload, timestamp string

		if err := rows.Scan(&e.ID, &e.TenantID, &e.EventType, &outcome, &payload, &timestamp); err != nil {
			return nil, fmt.Errorf("scanning event log entry: %w", err)
		}

		e.Outcome = domain.Outcome(outcome)
		e.Payload = []byte(payload)
		e.Timestamp, _ = time.Parse(timeFormat, timestamp)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
