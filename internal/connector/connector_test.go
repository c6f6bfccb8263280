package connector

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/molam/treasury/internal/domain"
)

func usProfile() *domain.BankProfile {
	return &domain.BankProfile{
		ID:                  "bank-1",
		Name:                "Sandbox US",
		Country:             "US",
		SupportedCurrencies: []string{"USD"},
		Rails:               []domain.Rail{domain.RailSwift},
		SLATargetSeconds:    3600,
	}
}

func paymentReq(currency string) PaymentRequest {
	return PaymentRequest{
		PayoutID:    "p-1",
		Amount:      decimal.RequireFromString("100"),
		Currency:    currency,
		Destination: "dest-1",
		Rail:        domain.RailSwift,
	}
}

func TestSandboxSendPayment(t *testing.T) {
	sbx := NewSandbox(0)

	ref, err := sbx.SendPayment(context.Background(), usProfile(), paymentReq("USD"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.HasPrefix(ref, "SBX-US-") {
		t.Errorf("ref = %s, want SBX-US- prefix", ref)
	}

	ref2, err := sbx.SendPayment(context.Background(), usProfile(), paymentReq("USD"))
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if ref2 == ref {
		t.Errorf("references not unique: %s", ref2)
	}
}

func TestSandboxRejectsUnsupportedCurrency(t *testing.T) {
	sbx := NewSandbox(0)
	if _, err := sbx.SendPayment(context.Background(), usProfile(), paymentReq("GBP")); err == nil {
		t.Error("send in unsupported currency succeeded, want error")
	}
}

func TestSandboxHonoursContextDeadline(t *testing.T) {
	sbx := NewSandbox(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := sbx.SendPayment(ctx, usProfile(), paymentReq("USD")); err == nil {
		t.Error("send outlasted its context, want error")
	}
}

func TestRegistryResolution(t *testing.T) {
	swift := NewSandbox(0)
	fallback := NewSandbox(0)

	reg := NewRegistry(fallback)
	reg.Register(domain.RailSwift, swift)

	got, rail, err := reg.Resolve(usProfile())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != BankConnector(swift) || rail != domain.RailSwift {
		t.Errorf("resolved %v on %s, want registered swift connector", got, rail)
	}

	sepaProfile := usProfile()
	sepaProfile.Rails = []domain.Rail{domain.RailSepa}
	got, rail, err = reg.Resolve(sepaProfile)
	if err != nil {
		t.Fatalf("resolve fallback: %v", err)
	}
	if got != BankConnector(fallback) || rail != domain.RailSepa {
		t.Errorf("resolved %v on %s, want fallback", got, rail)
	}

	empty := NewRegistry(nil)
	if _, _, err := empty.Resolve(usProfile()); err == nil {
		t.Error("resolve with no connectors succeeded, want error")
	}
}
