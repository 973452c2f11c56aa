package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT STORE
// Append-only trail of domain events (bulletin lifecycle, ranking rebuilds,
// generation runs). Rows are never updated or deleted.
// ══════════════════════════════════════════════════════════════════════════════

// AuditStore appends domain events to PostgreSQL. It is the fallible
// recorder behind the fire-and-forget audit.Sink.
type AuditStore struct {
	conn *Connection
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(conn *Connection) *AuditStore {
	return &AuditStore{conn: conn}
}

// Record appends one event to the audit trail.
func (s *AuditStore) Record(ctx context.Context, event shared.Event) error {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("postgres: failed to serialize audit payload: %w", err)
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO audit_events (event_type, aggregate_id, actor_user_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, string(event.EventType()), event.AggregateID(), event.ActorID(), payload, event.OccurredAt())
	if err != nil {
		return mapStorageError("RecordAuditEvent", err)
	}
	return nil
}
