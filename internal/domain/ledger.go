package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerHold is a provisional double-entry commitment: funds committed to
// an external transfer pending confirmation from the banking network.
// A hold is finalized exactly once, by reconciliation.
type LedgerHold struct {
	ID          string          `json:"id"`
	Origin      string          `json:"origin"`
	Account     string          `json:"account"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Ref         string          `json:"ref"`
	CreatedAt   time.Time       `json:"created_at"`
	FinalizedAt *time.Time      `json:"finalized_at,omitempty"`
}

// Finalized reports whether the hold has already been converted into a
// settled entry pair.
func (h *LedgerHold) Finalized() bool {
	return h.FinalizedAt != nil
}

// LedgerEntry is one side of a double-entry pair. Debits carry a negative
// amount, credits a positive one; the pair for a ref always sums to zero.
type LedgerEntry struct {
	ID        string          `json:"id"`
	Account   string          `json:"account"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Ref       string          `json:"ref"`
	CreatedAt time.Time       `json:"created_at"`
}

type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketResolved TicketStatus = "resolved"
)

// OpsTicket is a manual-review item raised when a statement line cannot be
// reconciled automatically.
type OpsTicket struct {
	ID        string       `json:"id"`
	LineID    string       `json:"line_id"`
	Reason    string       `json:"reason"`
	Status    TicketStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}
