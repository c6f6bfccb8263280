package connector

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/molam/treasury/internal/domain"
)

// Sandbox is the connector used outside production: it accepts every
// payment after a short simulated latency and hands back a deterministic
// reference. Latency is capped by the caller's context like any real rail.
type Sandbox struct {
	Latency time.Duration
	seq     atomic.Int64
}

func NewSandbox(latency time.Duration) *Sandbox {
	return &Sandbox{Latency: latency}
}

func (s *Sandbox) SendPayment(ctx context.Context, profile *domain.BankProfile, req PaymentRequest) (string, error) {
	if !profile.SupportsCurrency(req.Currency) {
		return "", fmt.Errorf("bank %s does not support %s", profile.ID, req.Currency)
	}

	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return "", fmt.Errorf("send to %s: %w", profile.ID, ctx.Err())
		}
	}

	n := s.seq.Add(1)
	return fmt.Sprintf("SBX-%s-%06d", profile.Country, n), nil
}
