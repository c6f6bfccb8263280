package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/molam/treasury/internal/domain"
)

func insertInstruction(t *testing.T, repo *InstructionRepo, in *domain.SettlementInstruction) error {
	t.Helper()
	tx, err := repo.db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.InsertTx(tx, in); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return nil
}

func testInstruction(payoutID, bankRef string) *domain.SettlementInstruction {
	return &domain.SettlementInstruction{
		ID:            uuid.NewString(),
		PayoutID:      payoutID,
		BankProfileID: "bank-1",
		Amount:        decimal.RequireFromString("100"),
		Currency:      "USD",
		Rail:          domain.RailSwift,
		Status:        domain.InstructionSent,
		BankRef:       bankRef,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestBankRefResolvesToExactlyOneInstruction(t *testing.T) {
	db := openTestDB(t)
	payouts := NewPayoutRepo(db)
	repo := NewInstructionRepo(db)

	p1 := newPayout("ext-i1", domain.MethodInstant, time.Now().UTC())
	p2 := newPayout("ext-i2", domain.MethodInstant, time.Now().UTC())
	for _, p := range []*domain.Payout{p1, p2} {
		if _, err := payouts.Insert(p); err != nil {
			t.Fatalf("insert payout: %v", err)
		}
	}

	if err := insertInstruction(t, repo, testInstruction(p1.ID, "BANK-500")); err != nil {
		t.Fatalf("insert instruction: %v", err)
	}

	// A bank reference identifies one instruction for all time; a reused
	// ref must be rejected, not silently shadow the first.
	if err := insertInstruction(t, repo, testInstruction(p2.ID, "BANK-500")); err == nil {
		t.Fatal("second instruction with the same bank_ref succeeded, want error")
	}

	got, err := repo.GetByBankRef("BANK-500")
	if err != nil {
		t.Fatalf("get by bank_ref: %v", err)
	}
	if got == nil || got.PayoutID != p1.ID {
		t.Errorf("bank_ref resolves to %+v, want payout %s", got, p1.ID)
	}
}

func TestOneInstructionPerPayout(t *testing.T) {
	db := openTestDB(t)
	payouts := NewPayoutRepo(db)
	repo := NewInstructionRepo(db)

	p := newPayout("ext-i3", domain.MethodInstant, time.Now().UTC())
	if _, err := payouts.Insert(p); err != nil {
		t.Fatalf("insert payout: %v", err)
	}

	if err := insertInstruction(t, repo, testInstruction(p.ID, "BANK-600")); err != nil {
		t.Fatalf("insert instruction: %v", err)
	}
	if err := insertInstruction(t, repo, testInstruction(p.ID, "BANK-601")); err == nil {
		t.Fatal("second instruction for the same payout succeeded, want error")
	}

	if n, _ := repo.CountByPayoutID(p.ID); n != 1 {
		t.Errorf("instructions = %d, want 1", n)
	}
}
