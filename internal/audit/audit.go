package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Entry is one append-only audit record. Every mutating ledger operation
// writes exactly one entry inside the same transaction as the mutation it
// documents.
type Entry struct {
	ID         int64
	ActorID    *uuid.UUID
	Action     string
	Tables     string
	OldValue   map[string]any
	NewValue   map[string]any
	OccurredAt time.Time
}

// Execer is the subset of pgx needed to append an entry. Both pgx.Tx and
// *pgxpool.Pool satisfy it, so entries can be written inside a workflow
// transaction or standalone.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Record appends the entry. Timestamps default to NOW() when unset.
func Record(ctx context.Context, db Execer, e Entry) error {
	if e.Action == "" || e.Tables == "" {
		return errors.New("audit: entry requires action and tables")
	}
	oldJSON, err := marshalValue(e.OldValue)
	if err != nil {
		return err
	}
	newJSON, err := marshalValue(e.NewValue)
	if err != nil {
		return err
	}
	var at any
	if !e.OccurredAt.IsZero() {
		at = e.OccurredAt
	}
	_, err = db.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, action, tables, old_value, new_value, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, NOW()))`,
		e.ActorID, e.Action, e.Tables, oldJSON, newJSON, at)
	return err
}

func marshalValue(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
