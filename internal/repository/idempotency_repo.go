package repository

import (
	"database/sql"
	"fmt"
	"time"
)

// IdempotencyRepo is the durable dedup guard. Keys are claimed with a
// conditional insert against the primary key, so the guard holds across
// restarts and across concurrent worker instances; there is deliberately
// no in-process cache in front of it.
type IdempotencyRepo struct {
	db *sql.DB
}

func NewIdempotencyRepo(db *sql.DB) *IdempotencyRepo {
	return &IdempotencyRepo{db: db}
}

// Claim attempts to mark the key processed. Returns true exactly once per
// key; every later claim returns false.
func (r *IdempotencyRepo) Claim(key string, at time.Time) (bool, error) {
	res, err := r.db.Exec(
		"INSERT OR IGNORE INTO processed_keys (key, processed_at) VALUES (?,?)",
		key, at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("claim key: %w", err)
	}
	ra, _ := res.RowsAffected()
	return ra > 0, nil
}

func (r *IdempotencyRepo) IsProcessed(key string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM processed_keys WHERE key = ?", key,
	).Scan(&count)
	return count > 0, err
}
