package repository

import (
	"database/sql"
	"time"
)

// AuditRepo appends audit trail entries for reconciliation outcomes.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) InsertTx(tx *sql.Tx, id, entityID, action, detail string, at time.Time) error {
	_, err := tx.Exec(
		`INSERT INTO audit_log (id, entity_id, action, detail, created_at)
		VALUES (?,?,?,?,?)`,
		id, entityID, action, detail, at.UTC().Format(time.RFC3339),
	)
	return err
}

func (r *AuditRepo) CountByEntityID(entityID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM audit_log WHERE entity_id = ?", entityID,
	).Scan(&count)
	return count, err
}
