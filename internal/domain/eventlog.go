package domain

import (
	"encoding/json"
	"time"
)

// Outcome classifies an event log entry.
type Outcome string

const (
	OutcomeSuccess Outcome = "Success"
	OutcomeWarning Outcome = "Warning"
	OutcomeError   Outcome = "Error"
)

// EventLogEntry is one row of the append-only audit trail. The log is the
// system's source of truth for "what happened", independent of the
// aggregate's current snapshot; entries are never mutated and only removed
// by cascading tenant deletion.
type EventLogEntry struct {
	ID        int64
	TenantID  string
	EventType string
	Outcome   Outcome
	Payload   json.RawMessage
	Timestamp time.Time
}

// NewLogEntry builds an entry with the payload marshalled to JSON. A payload
// that cannot be marshalled is recorded as null rather than dropping the entry.
func NewLogEntry(tenantID, eventType string, outcome Outcome, payload any) EventLogEntry {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("null")
	}
	return EventLogEntry{
		TenantID:  tenantID,
		EventType: eventType,
		Outcome:   outcome,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}
}
