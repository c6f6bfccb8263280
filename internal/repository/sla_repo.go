package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/molam/treasury/internal/domain"
)

// SLARepo persists observed settlement latencies. Rows are append-only and
// feed the bank-selection collaborator's routing decisions.
type SLARepo struct {
	db *sql.DB
}

func NewSLARepo(db *sql.DB) *SLARepo {
	return &SLARepo{db: db}
}

func (r *SLARepo) InsertTx(tx *sql.Tx, s *domain.SettlementSLA) error {
	_, err := tx.Exec(
		`INSERT INTO settlement_slas
		(id, bank_profile_id, rail, payout_id, expected_delay_ms, actual_delay_ms, recorded_at)
		VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.BankProfileID, string(s.Rail), s.PayoutID,
		s.ExpectedDelay.Milliseconds(), s.ActualDelay.Milliseconds(),
		s.RecordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert sla: %w", err)
	}
	return nil
}

func (r *SLARepo) CountByPayoutID(payoutID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM settlement_slas WHERE payout_id = ?", payoutID,
	).Scan(&count)
	return count, err
}

// RailStats is the per-bank/rail latency aggregate exposed to routing.
type RailStats struct {
	BankProfileID string        `json:"bank_profile_id"`
	Rail          domain.Rail   `json:"rail"`
	Samples       int           `json:"samples"`
	AvgDelay      time.Duration `json:"avg_delay_ms"`
	MaxDelay      time.Duration `json:"max_delay_ms"`
}

func (r *SLARepo) StatsByRail() ([]RailStats, error) {
	rows, err := r.db.Query(`
		SELECT bank_profile_id, rail, COUNT(*),
		       COALESCE(AVG(actual_delay_ms), 0), COALESCE(MAX(actual_delay_ms), 0)
		FROM settlement_slas
		GROUP BY bank_profile_id, rail
		ORDER BY bank_profile_id, rail
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []RailStats
	for rows.Next() {
		var s RailStats
		var rail string
		var avgMs float64
		var maxMs int64
		if err := rows.Scan(&s.BankProfileID, &rail, &s.Samples, &avgMs, &maxMs); err != nil {
			return nil, err
		}
		s.Rail = domain.Rail(rail)
		s.AvgDelay = time.Duration(avgMs) * time.Millisecond
		s.MaxDelay = time.Duration(maxMs) * time.Millisecond
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
