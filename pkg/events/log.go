package events

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arkhamforge/docintel/pkg/models"
)

// Log persists every published event to events.events for operator
// replay and correlation-ID lookup. It is a debugging and
// coordination trail, not a system of record: Truncate wipes it on every
// core startup.
type Log struct {
	db *sql.DB
}

// NewLog constructs a Log over an existing connection pool.
func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Truncate empties the event log. Called once at core startup.
func (l *Log) Truncate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `TRUNCATE events.events`)
	if err != nil {
		return fmt.Errorf("failed to truncate event log: %w", err)
	}
	return nil
}

// Append persists evt. Call from a Bus subscriber that fans every
// published event into the log. evt.Payload arrives already redacted if
// the Bus has a Redactor installed (see Bus.SetRedactor) — the log
// itself never masks anything.
func (l *Log) Append(ctx context.Context, evt models.Event) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO events.events (id, type, source, payload, "timestamp", sequence, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, evt.ID, evt.Type, evt.Source, evt.Payload, evt.Timestamp, evt.Sequence, nullableString(evt.CorrelationID))
	if err != nil {
		return fmt.Errorf("failed to append event to log: %w", err)
	}
	return nil
}

// ByCorrelationID returns every logged event sharing correlationID, oldest
// first — used to reconstruct a job or document's full event trail.
func (l *Log) ByCorrelationID(ctx context.Context, correlationID string) ([]models.Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, type, source, payload, "timestamp", sequence, correlation_id
		FROM events.events
		WHERE correlation_id = $1
		ORDER BY "timestamp" ASC
	`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query event log: %w", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var (
			evt  models.Event
			corr sql.NullString
		)
		if err := rows.Scan(&evt.ID, &evt.Type, &evt.Source, &evt.Payload, &evt.Timestamp, &evt.Sequence, &corr); err != nil {
			return nil, fmt.Errorf("failed to scan event log row: %w", err)
		}
		evt.CorrelationID = corr.String
		out = append(out, evt)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Subscribe wires a Log to a Bus so every event published to the bus is
// also appended to the log. Logging failures are swallowed (best-effort):
// the log is a debugging aid, not load-bearing for delivery.
func (l *Log) Subscribe(ctx context.Context, bus *Bus, errf func(error)) {
	sub := bus.SubscribeAll()
	go func() {
		for evt := range sub.Events() {
			if err := l.Append(ctx, evt); err != nil && errf != nil {
				errf(err)
			}
		}
	}()
}
