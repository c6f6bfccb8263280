package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/molam/treasury/internal/domain"
)

type PayoutRepo struct {
	db *sql.DB
}

func NewPayoutRepo(db *sql.DB) *PayoutRepo {
	return &PayoutRepo{db: db}
}

// Insert stores a new pending payout. The unique constraint on external_id
// is the sole dedup mechanism for retried creations: the returned bool is
// false when a payout with the same external_id already exists.
func (r *PayoutRepo) Insert(p *domain.Payout) (bool, error) {
	res, err := r.db.Exec(
		`INSERT OR IGNORE INTO payouts
		(id, external_id, origin_module, origin_entity_id, currency, amount,
		 method, destination_id, status, requested_at, processed_at, failure_reason, claimed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.ExternalID, p.OriginModule, p.OriginEntityID, p.Currency,
		p.Amount.String(), string(p.Method), p.DestinationID, string(p.Status),
		p.RequestedAt.UTC().Format(time.RFC3339), formatNullableTime(p.ProcessedAt),
		nullableString(p.FailureReason), formatNullableTime(p.ClaimedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert payout: %w", err)
	}
	ra, _ := res.RowsAffected()
	return ra > 0, nil
}

func (r *PayoutRepo) GetByID(id string) (*domain.Payout, error) {
	row := r.db.QueryRow("SELECT * FROM payouts WHERE id = ?", id)
	return scanPayout(row)
}

func (r *PayoutRepo) GetByExternalID(externalID string) (*domain.Payout, error) {
	row := r.db.QueryRow("SELECT * FROM payouts WHERE external_id = ?", externalID)
	return scanPayout(row)
}

// SelectPendingBatch returns up to limit pending payouts ordered by method
// priority (instant, priority, batch) and then FIFO within each tier.
func (r *PayoutRepo) SelectPendingBatch(limit int) ([]domain.Payout, error) {
	rows, err := r.db.Query(
		`SELECT * FROM payouts WHERE status = 'pending'
		 ORDER BY CASE method WHEN 'instant' THEN 1 WHEN 'priority' THEN 2 ELSE 3 END,
		          requested_at ASC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		p, err := scanPayoutRows(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

// ClaimProcessing atomically moves a payout from pending to processing.
// Returns false when another instance already claimed it (or it is no
// longer pending), so callers can skip the row without error. The claim
// is a lease: claimed_at lets ReclaimStale recover rows whose owner died.
func (r *PayoutRepo) ClaimProcessing(id string) (bool, error) {
	res, err := r.db.Exec(
		"UPDATE payouts SET status = 'processing', claimed_at = ? WHERE id = ? AND status = 'pending'",
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return false, fmt.Errorf("claim payout: %w", err)
	}
	ra, _ := res.RowsAffected()
	return ra > 0, nil
}

// ReclaimStale returns payouts stuck in processing since before the given
// cutoff to pending. A crash between claim and terminal outcome would
// otherwise strand the row forever; replaying a reclaimed payout is safe
// because the instruction unique constraint and the compensation guard
// both hold across the retry.
func (r *PayoutRepo) ReclaimStale(before time.Time) (int, error) {
	res, err := r.db.Exec(
		`UPDATE payouts SET status = 'pending', claimed_at = NULL
		 WHERE status = 'processing'
		   AND (claimed_at IS NULL OR claimed_at <= ?)`,
		before.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale: %w", err)
	}
	ra, _ := res.RowsAffected()
	return int(ra), nil
}

// MarkSentTx records a successful send within the worker's transaction.
// The status precondition keeps the transition monotonic.
func (r *PayoutRepo) MarkSentTx(tx *sql.Tx, id string, processedAt time.Time) error {
	res, err := tx.Exec(
		"UPDATE payouts SET status = 'sent', processed_at = ? WHERE id = ? AND status = 'processing'",
		processedAt.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return fmt.Errorf("mark sent: payout %s not in processing", id)
	}
	return nil
}

func (r *PayoutRepo) MarkFailed(id, reason string, processedAt time.Time) error {
	res, err := r.db.Exec(
		`UPDATE payouts SET status = 'failed', failure_reason = ?, processed_at = ?
		 WHERE id = ? AND status = 'processing'`,
		reason, processedAt.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return fmt.Errorf("mark failed: payout %s not in processing", id)
	}
	return nil
}

// MarkSettledTx is invoked by reconciliation once a statement line has been
// matched to the payout.
func (r *PayoutRepo) MarkSettledTx(tx *sql.Tx, id string) error {
	res, err := tx.Exec(
		"UPDATE payouts SET status = 'settled' WHERE id = ? AND status = 'sent'", id,
	)
	if err != nil {
		return fmt.Errorf("mark settled: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return fmt.Errorf("mark settled: payout %s not in sent", id)
	}
	return nil
}

// FuzzyCandidates returns payouts eligible for heuristic matching against a
// statement line: in-flight status, same currency, requested on the given
// calendar date. Amount tolerance is applied by the caller.
func (r *PayoutRepo) FuzzyCandidates(currency string, day time.Time) ([]domain.Payout, error) {
	rows, err := r.db.Query(
		`SELECT * FROM payouts
		 WHERE status IN ('sent','processing')
		   AND currency = ?
		   AND date(requested_at) = ?`,
		currency, day.UTC().Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("fuzzy candidates: %w", err)
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		p, err := scanPayoutRows(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

type PayoutFilter struct {
	Status   string
	Method   string
	Currency string
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

func (r *PayoutRepo) List(f PayoutFilter) ([]domain.Payout, int, error) {
	where, args := buildPayoutWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM payouts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT * FROM payouts" + where + " ORDER BY requested_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		p, err := scanPayoutRows(rows)
		if err != nil {
			return nil, 0, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, total, rows.Err()
}

// StatusCounts returns the number of payouts per status for dashboards.
func (r *PayoutRepo) StatusCounts() (map[domain.PayoutStatus]int, error) {
	rows, err := r.db.Query("SELECT status, COUNT(*) FROM payouts GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.PayoutStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.PayoutStatus(status)] = n
	}
	return counts, rows.Err()
}

func buildPayoutWhere(f PayoutFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Method != "" {
		clauses = append(clauses, "method = ?")
		args = append(args, f.Method)
	}
	if f.Currency != "" {
		clauses = append(clauses, "currency = ?")
		args = append(args, f.Currency)
	}
	if f.From != nil {
		clauses = append(clauses, "requested_at >= ?")
		args = append(args, f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		clauses = append(clauses, "requested_at <= ?")
		args = append(args, f.To.UTC().Format(time.RFC3339))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayout(row *sql.Row) (*domain.Payout, error) {
	p, err := scanPayoutFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func scanPayoutRows(rows *sql.Rows) (*domain.Payout, error) {
	return scanPayoutFrom(rows)
}

func scanPayoutFrom(s rowScanner) (*domain.Payout, error) {
	var p domain.Payout
	var method, status, requestedStr string
	var processedStr, reason, claimedStr sql.NullString

	err := s.Scan(
		&p.ID, &p.ExternalID, &p.OriginModule, &p.OriginEntityID, &p.Currency,
		&p.Amount, &method, &p.DestinationID, &status, &requestedStr,
		&processedStr, &reason, &claimedStr,
	)
	if err != nil {
		return nil, err
	}

	p.Method = domain.PayoutMethod(method)
	p.Status = domain.PayoutStatus(status)
	p.RequestedAt, _ = time.Parse(time.RFC3339, requestedStr)
	p.ProcessedAt = parseNullableTime(processedStr)
	p.ClaimedAt = parseNullableTime(claimedStr)
	if reason.Valid {
		p.FailureReason = reason.String
	}

	return &p, nil
}

// --- shared column helpers ---

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
