package store

import (
	"context"

	"finassist/internal/db"
	"finassist/internal/models"
)

type AuditStore struct {
	db      DB
	dialect db.Dialect
}

const auditColumns = `id, object_type, object_id, action, actor_id, before_state, after_state, reason, created_at`

func NewAuditStore(conn DB, dialect db.Dialect) *AuditStore {
	return &AuditStore{db: conn, dialect: dialect}
}

func (s *AuditStore) Insert(ctx context.Context, tx Execer, entry models.AuditLog) error {
	_, err := tx.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO audit_logs (`+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), entry.ID, entry.ObjectType, entry.ObjectID, string(entry.Action), entry.ActorID,
		entry.Before, entry.After, entry.Reason, entry.CreatedAt)
	return err
}

func (s *AuditStore) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	rows := []models.AuditLog{}
	err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(`
		SELECT `+auditColumns+`
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByObject returns the history of one entity, oldest first.
func (s *AuditStore) ListByObject(ctx context.Context, objectType, objectID string) ([]models.AuditLog, error) {
	rows := []models.AuditLog{}
	err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(`
		SELECT `+auditColumns+`
		FROM audit_logs
		WHERE object_type = ? AND object_id = ?
		ORDER BY created_at, id
	`), objectType, objectID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
