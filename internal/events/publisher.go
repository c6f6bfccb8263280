package events

import (
	"log"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventPayoutSent   = "payout.sent"
	EventPayoutFailed = "payout.failed"
)

// Publisher delivers platform events best-effort. Publish failures are
// logged by callers and never affect the transaction that produced them.
type Publisher interface {
	Publish(entityID, eventType string, payload any) error
}

// PayoutSent is the payload for payout.sent.
type PayoutSent struct {
	PayoutID   string          `json:"payout_id"`
	ExternalID string          `json:"external_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	BankRef    string          `json:"bank_ref"`
	SentAt     time.Time       `json:"sent_at"`
}

// PayoutFailed is the payload for payout.failed.
type PayoutFailed struct {
	PayoutID   string          `json:"payout_id"`
	ExternalID string          `json:"external_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Reason     string          `json:"reason"`
	FailedAt   time.Time       `json:"failed_at"`
}

// LogPublisher is the fallback used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(entityID, eventType string, payload any) error {
	log.Printf("[events] %s entity=%s payload=%+v", eventType, entityID, payload)
	return nil
}
