package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/molam/treasury/internal/domain"
)

type StatementRepo struct {
	db *sql.DB
}

func NewStatementRepo(db *sql.DB) *StatementRepo {
	return &StatementRepo{db: db}
}

// BatchExistsByHash checks whether a statement file with the given hash has
// already been ingested (idempotency check).
func (r *StatementRepo) BatchExistsByHash(hash string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM statement_batches WHERE file_hash = ?", hash,
	).Scan(&count)
	return count > 0, err
}

func (r *StatementRepo) InsertBatch(b *domain.StatementBatch) error {
	_, err := r.db.Exec(
		`INSERT INTO statement_batches (id, source, file_hash, line_count, ingested_at)
		VALUES (?,?,?,?,?)`,
		b.ID, b.Source, b.FileHash, b.LineCount,
		b.IngestedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// InsertLines stores statement lines, skipping references already present.
// The ingestion pipeline may redeliver; the unique reference keeps the line
// set idempotent.
func (r *StatementRepo) InsertLines(lines []domain.BankStatementLine) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO bank_statement_lines
		(id, reference, amount, currency, statement_date, reconciliation_status,
		 matched_payout_id, ingested_at)
		VALUES (?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range lines {
		ln := &lines[i]
		res, err := stmt.Exec(
			ln.ID, ln.Reference, ln.Amount.String(), ln.Currency,
			ln.StatementDate.UTC().Format(time.RFC3339), string(ln.Status),
			nullableString(ln.MatchedPayoutID),
			ln.IngestedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert line %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// GetUnmatchedPage returns the next page of lines awaiting reconciliation,
// keyset-paged on (ingested_at, id) so the cursor stays stable while lines
// matched earlier in the same run leave the unmatched set. Pass a zero time
// and empty id for the first page.
func (r *StatementRepo) GetUnmatchedPage(afterIngestedAt time.Time, afterID string, limit int) ([]domain.BankStatementLine, error) {
	cursor := afterIngestedAt.UTC().Format(time.RFC3339)
	rows, err := r.db.Query(
		`SELECT * FROM bank_statement_lines
		 WHERE reconciliation_status = 'unmatched'
		   AND (ingested_at > ? OR (ingested_at = ? AND id > ?))
		 ORDER BY ingested_at, id
		 LIMIT ?`,
		cursor, cursor, afterID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.BankStatementLine
	for rows.Next() {
		ln, err := scanStatementLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *ln)
	}
	return lines, rows.Err()
}

func (r *StatementRepo) GetByID(id string) (*domain.BankStatementLine, error) {
	rows, err := r.db.Query("SELECT * FROM bank_statement_lines WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanStatementLine(rows)
}

// MarkMatchedTx records the match inside the finalize transaction,
// conditional on the line still being unmatched so two engine instances
// never finalize the same line.
func (r *StatementRepo) MarkMatchedTx(tx *sql.Tx, lineID, payoutID string) error {
	res, err := tx.Exec(
		`UPDATE bank_statement_lines
		 SET reconciliation_status = 'matched', matched_payout_id = ?
		 WHERE id = ? AND reconciliation_status = 'unmatched'`,
		payoutID, lineID,
	)
	if err != nil {
		return fmt.Errorf("mark matched: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return fmt.Errorf("mark matched: line %s no longer unmatched", lineID)
	}
	return nil
}

// MarkSuspiciousTx flags a line for manual review inside the escalation
// transaction, so the line never leaves the unmatched set without its ops
// ticket committing alongside it.
func (r *StatementRepo) MarkSuspiciousTx(tx *sql.Tx, lineID string) (bool, error) {
	res, err := tx.Exec(
		`UPDATE bank_statement_lines SET reconciliation_status = 'suspicious'
		 WHERE id = ? AND reconciliation_status = 'unmatched'`,
		lineID,
	)
	if err != nil {
		return false, fmt.Errorf("mark suspicious: %w", err)
	}
	ra, _ := res.RowsAffected()
	return ra > 0, nil
}

type StatementFilter struct {
	Status string
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

func (r *StatementRepo) List(f StatementFilter) ([]domain.BankStatementLine, int, error) {
	where, args := buildStatementWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM bank_statement_lines"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT * FROM bank_statement_lines" + where + " ORDER BY statement_date DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var lines []domain.BankStatementLine
	for rows.Next() {
		ln, err := scanStatementLine(rows)
		if err != nil {
			return nil, 0, err
		}
		lines = append(lines, *ln)
	}
	return lines, total, rows.Err()
}

func (r *StatementRepo) StatusCounts() (map[domain.ReconciliationStatus]int, error) {
	rows, err := r.db.Query(
		"SELECT reconciliation_status, COUNT(*) FROM bank_statement_lines GROUP BY reconciliation_status",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ReconciliationStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.ReconciliationStatus(status)] = n
	}
	return counts, rows.Err()
}

func buildStatementWhere(f StatementFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "reconciliation_status = ?")
		args = append(args, f.Status)
	}
	if f.From != nil {
		clauses = append(clauses, "statement_date >= ?")
		args = append(args, f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		clauses = append(clauses, "statement_date <= ?")
		args = append(args, f.To.UTC().Format(time.RFC3339))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanStatementLine(rows *sql.Rows) (*domain.BankStatementLine, error) {
	var ln domain.BankStatementLine
	var status, dateStr, ingestedStr string
	var payoutIDNull sql.NullString

	err := rows.Scan(
		&ln.ID, &ln.Reference, &ln.Amount, &ln.Currency, &dateStr,
		&status, &payoutIDNull, &ingestedStr,
	)
	if err != nil {
		return nil, err
	}

	ln.Status = domain.ReconciliationStatus(status)
	ln.StatementDate, _ = time.Parse(time.RFC3339, dateStr)
	ln.IngestedAt, _ = time.Parse(time.RFC3339, ingestedStr)
	if payoutIDNull.Valid {
		ln.MatchedPayoutID = payoutIDNull.String
	}

	return &ln, nil
}
