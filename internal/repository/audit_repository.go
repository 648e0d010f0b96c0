package repository

import (
	"context"
	"database/sql"

	"github.com/waterlog/routeledger/internal/model"
)

// AuditRepo appends to and reads the audit log.  Entries are never updated
// or deleted.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// InsertTx appends an entry within the caller's transaction so the audit
// record commits or rolls back together with the change it describes.
func (r *AuditRepo) InsertTx(ctx context.Context, tx *sql.Tx, e *model.AuditLog) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO audit_logs (occurred_at, actor_id, action, entity_type, entity_id, old_value, new_value, ip_address, user_agent, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.OccurredAt, e.ActorID, e.Action, e.EntityType, e.EntityID,
		e.OldValue, e.NewValue, e.IPAddress, e.UserAgent, e.Notes)
	if err != nil {
		return err
	}
	e.ID, err = lastID(res)
	return err
}

// ListByEntity returns the trail of one entity in the order it happened.
func (r *AuditRepo) ListByEntity(ctx context.Context, entityType string, entityID uint64) ([]model.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, occurred_at, actor_id, action, entity_type, entity_id, old_value, new_value, ip_address, user_agent, notes
		 FROM audit_logs WHERE entity_type = ? AND entity_id = ? ORDER BY id`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AuditLog{}
	for rows.Next() {
		var e model.AuditLog
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID,
			&e.OldValue, &e.NewValue, &e.IPAddress, &e.UserAgent, &e.Notes); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
