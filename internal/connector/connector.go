package connector

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/molam/treasury/internal/domain"
)

// PaymentRequest carries everything a connector needs to send one payout.
type PaymentRequest struct {
	PayoutID    string
	Amount      decimal.Decimal
	Currency    string
	Destination string
	Rail        domain.Rail
}

// BankConnector is the single capability the settlement worker depends on:
// send a payment through a bank and return its reference. Implementations
// are independent values, one per rail or provider; the worker treats every
// failure uniformly.
type BankConnector interface {
	SendPayment(ctx context.Context, profile *domain.BankProfile, req PaymentRequest) (string, error)
}

// Registry resolves the connector for a bank profile by rail, with an
// optional default for rails without a dedicated implementation.
type Registry struct {
	byRail   map[domain.Rail]BankConnector
	fallback BankConnector
}

func NewRegistry(fallback BankConnector) *Registry {
	return &Registry{
		byRail:   make(map[domain.Rail]BankConnector),
		fallback: fallback,
	}
}

func (r *Registry) Register(rail domain.Rail, c BankConnector) {
	r.byRail[rail] = c
}

func (r *Registry) Resolve(profile *domain.BankProfile) (BankConnector, domain.Rail, error) {
	rail := profile.PrimaryRail()
	if c, ok := r.byRail[rail]; ok {
		return c, rail, nil
	}
	if r.fallback != nil {
		return r.fallback, rail, nil
	}
	return nil, rail, fmt.Errorf("no connector for rail %s (bank %s)", rail, profile.ID)
}
