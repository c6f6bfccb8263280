package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/molam/treasury/internal/domain"
)

type LedgerRepo struct {
	db *sql.DB
}

func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// DB exposes the underlying handle so the ledger facade can run finalize
// as one transaction.
func (r *LedgerRepo) DB() *sql.DB {
	return r.db
}

// InsertHold creates a hold for a ref. Re-creating a hold for the same ref
// is ignored (unique ref), so re-entering processing never doubles a hold.
func (r *LedgerRepo) InsertHold(h *domain.LedgerHold) (bool, error) {
	res, err := r.db.Exec(
		`INSERT OR IGNORE INTO ledger_holds
		(id, origin, account, amount, currency, ref, created_at, finalized_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		h.ID, h.Origin, h.Account, h.Amount.String(), h.Currency, h.Ref,
		h.CreatedAt.UTC().Format(time.RFC3339), formatNullableTime(h.FinalizedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert hold: %w", err)
	}
	ra, _ := res.RowsAffected()
	return ra > 0, nil
}

func (r *LedgerRepo) GetHoldByRef(ref string) (*domain.LedgerHold, error) {
	var h domain.LedgerHold
	var createdStr string
	var finalizedStr sql.NullString

	err := r.db.QueryRow("SELECT * FROM ledger_holds WHERE ref = ?", ref).Scan(
		&h.ID, &h.Origin, &h.Account, &h.Amount, &h.Currency, &h.Ref,
		&createdStr, &finalizedStr,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	h.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	h.FinalizedAt = parseNullableTime(finalizedStr)
	return &h, nil
}

// FinalizeHoldTx stamps the hold finalized, conditional on it not being
// finalized already. Returns false when another finalize got there first;
// the caller treats that as a no-op.
func (r *LedgerRepo) FinalizeHoldTx(tx *sql.Tx, ref string, at time.Time) (bool, error) {
	res, err := tx.Exec(
		"UPDATE ledger_holds SET finalized_at = ? WHERE ref = ? AND finalized_at IS NULL",
		at.UTC().Format(time.RFC3339), ref,
	)
	if err != nil {
		return false, fmt.Errorf("finalize hold: %w", err)
	}
	ra, _ := res.RowsAffected()
	return ra > 0, nil
}

func (r *LedgerRepo) InsertEntryTx(tx *sql.Tx, e *domain.LedgerEntry) error {
	_, err := tx.Exec(
		`INSERT INTO ledger_entries (id, account, amount, currency, ref, created_at)
		VALUES (?,?,?,?,?,?)`,
		e.ID, e.Account, e.Amount.String(), e.Currency, e.Ref,
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepo) EntriesByRef(ref string) ([]domain.LedgerEntry, error) {
	rows, err := r.db.Query("SELECT * FROM ledger_entries WHERE ref = ?", ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var createdStr string
		if err := rows.Scan(&e.ID, &e.Account, &e.Amount, &e.Currency, &e.Ref, &createdStr); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *LedgerRepo) EntriesByAccount(account string) ([]domain.LedgerEntry, error) {
	rows, err := r.db.Query("SELECT * FROM ledger_entries WHERE account = ?", account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var createdStr string
		if err := rows.Scan(&e.ID, &e.Account, &e.Amount, &e.Currency, &e.Ref, &createdStr); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
