package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reader lists audit entries for the read-only inspection endpoint.
type Reader struct {
	pool *pgxpool.Pool
}

// NewReader constructs a Reader.
func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// List returns the most recent entries, newest first.
func (r *Reader) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, actor_id, action, tables, old_value, new_value, occurred_at
FROM audit_logs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var actor uuid.NullUUID
		var oldJSON, newJSON []byte
		if err := rows.Scan(&e.ID, &actor, &e.Action, &e.Tables, &oldJSON, &newJSON, &e.OccurredAt); err != nil {
			return nil, err
		}
		if actor.Valid {
			id := actor.UUID
			e.ActorID = &id
		}
		if len(oldJSON) > 0 {
			_ = json.Unmarshal(oldJSON, &e.OldValue)
		}
		if len(newJSON) > 0 {
			_ = json.Unmarshal(newJSON, &e.NewValue)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
