package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InstructionStatus string

const (
	InstructionSent InstructionStatus = "sent"
)

// SettlementInstruction records one successful send of a payout through a
// bank connector. Failed attempts never produce an instruction, and a
// payout has at most one instruction ever.
type SettlementInstruction struct {
	ID            string            `json:"id"`
	PayoutID      string            `json:"payout_id"`
	BankProfileID string            `json:"bank_profile_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	Rail          Rail              `json:"rail"`
	Status        InstructionStatus `json:"status"`
	BankRef       string            `json:"bank_ref"`
	CreatedAt     time.Time         `json:"created_at"`
}

// SettlementSLA is one observed settlement latency sample for a bank/rail
// pair. Append-only; consumed by bank-selection analytics.
type SettlementSLA struct {
	ID            string        `json:"id"`
	BankProfileID string        `json:"bank_profile_id"`
	Rail          Rail          `json:"rail"`
	PayoutID      string        `json:"payout_id"`
	ExpectedDelay time.Duration `json:"expected_delay"`
	ActualDelay   time.Duration `json:"actual_delay"`
	RecordedAt    time.Time     `json:"recorded_at"`
}
