package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutSent       PayoutStatus = "sent"
	PayoutFailed     PayoutStatus = "failed"
	PayoutSettled    PayoutStatus = "settled"
	PayoutReversed   PayoutStatus = "reversed"
)

type PayoutMethod string

const (
	MethodInstant  PayoutMethod = "instant"
	MethodPriority PayoutMethod = "priority"
	MethodBatch    PayoutMethod = "batch"
)

// Priority returns the scheduling tier for a method. Lower is processed
// first; FIFO applies within a tier.
func (m PayoutMethod) Priority() int {
	switch m {
	case MethodInstant:
		return 1
	case MethodPriority:
		return 2
	default:
		return 3
	}
}

func (m PayoutMethod) Valid() bool {
	switch m {
	case MethodInstant, MethodPriority, MethodBatch:
		return true
	}
	return false
}

// HoldRef derives the ledger hold reference for a payout. The settlement
// worker creates the hold under this ref and reconciliation finalizes it.
func HoldRef(payoutID string) string {
	return "payout:" + payoutID
}

// Payout is a request to move funds to an external bank. Amount is fixed
// at creation; only status, processed_at and failure_reason ever change.
type Payout struct {
	ID             string          `json:"id"`
	ExternalID     string          `json:"external_id"`
	OriginModule   string          `json:"origin_module"`
	OriginEntityID string          `json:"origin_entity_id"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PayoutMethod    `json:"method"`
	DestinationID  string          `json:"destination_id"`
	Status         PayoutStatus    `json:"status"`
	RequestedAt    time.Time       `json:"requested_at"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	ClaimedAt      *time.Time      `json:"claimed_at,omitempty"`
}
