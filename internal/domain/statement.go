package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReconciliationStatus string

const (
	LineUnmatched  ReconciliationStatus = "unmatched"
	LineMatched    ReconciliationStatus = "matched"
	LineSuspicious ReconciliationStatus = "suspicious"
)

// BankStatementLine is one externally-reported movement from a bank
// statement. Lines are produced by the ingestion pipeline and owned by the
// reconciliation engine from then on.
type BankStatementLine struct {
	ID              string               `json:"id"`
	Reference       string               `json:"reference"`
	Amount          decimal.Decimal      `json:"amount"`
	Currency        string               `json:"currency"`
	StatementDate   time.Time            `json:"statement_date"`
	Status          ReconciliationStatus `json:"reconciliation_status"`
	MatchedPayoutID string               `json:"matched_payout_id,omitempty"`
	IngestedAt      time.Time            `json:"ingested_at"`
}

// StatementBatch tracks one ingested statement file for idempotent
// re-uploads.
type StatementBatch struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	FileHash   string    `json:"file_hash"`
	LineCount  int       `json:"line_count"`
	IngestedAt time.Time `json:"ingested_at"`
}
