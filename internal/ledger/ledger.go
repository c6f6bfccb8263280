package ledger

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/molam/treasury/internal/domain"
	"github.com/molam/treasury/internal/repository"
)

// ClearingAccount is the counter-account for settled payouts: funds leave
// the treasury account and are booked against the external banking network.
const ClearingAccount = "external:clearing"

// Facade owns the double-entry invariant around holds. A hold is created
// when a payout enters processing and finalized exactly once, producing a
// balancing debit/credit pair. Everything else goes through repositories.
type Facade struct {
	repo *repository.LedgerRepo
}

func NewFacade(repo *repository.LedgerRepo) *Facade {
	return &Facade{repo: repo}
}

// CreateHold provisionally commits funds for an external transfer. Creating
// a hold for a ref that already has one returns the existing hold's ID.
func (f *Facade) CreateHold(origin, account string, amount decimal.Decimal, currency, ref string) (string, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return "", fmt.Errorf("hold amount must be positive, got %s", amount)
	}

	hold := &domain.LedgerHold{
		ID:        uuid.NewString(),
		Origin:    origin,
		Account:   account,
		Amount:    amount,
		Currency:  currency,
		Ref:       ref,
		CreatedAt: time.Now(),
	}

	created, err := f.repo.InsertHold(hold)
	if err != nil {
		return "", err
	}
	if !created {
		existing, err := f.repo.GetHoldByRef(ref)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return "", fmt.Errorf("hold for ref %s vanished after conflict", ref)
		}
		return existing.ID, nil
	}
	return hold.ID, nil
}

// FinalizeHold converts the hold for ref into a settled entry pair in its
// own transaction. Finalizing an already-finalized hold is a logged no-op.
func (f *Facade) FinalizeHold(ref string) error {
	tx, err := f.repo.DB().Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := f.FinalizeHoldTx(tx, ref); err != nil {
		return err
	}
	return tx.Commit()
}

// FinalizeHoldTx is the transaction-scoped variant used by reconciliation
// so the finalize commits or rolls back with the rest of the match.
func (f *Facade) FinalizeHoldTx(tx *sql.Tx, ref string) error {
	hold, err := f.repo.GetHoldByRef(ref)
	if err != nil {
		return fmt.Errorf("get hold: %w", err)
	}
	if hold == nil {
		return fmt.Errorf("no hold for ref %s", ref)
	}

	now := time.Now()
	finalized, err := f.repo.FinalizeHoldTx(tx, ref, now)
	if err != nil {
		return err
	}
	if !finalized {
		// Already finalized, e.g. a reconciliation re-run. Not an error.
		log.Printf("[ledger] hold %s (ref=%s) already finalized, skipping", hold.ID, ref)
		return nil
	}

	debit := &domain.LedgerEntry{
		ID:        hold.ID + "-debit",
		Account:   hold.Account,
		Amount:    hold.Amount.Neg(),
		Currency:  hold.Currency,
		Ref:       ref,
		CreatedAt: now,
	}
	credit := &domain.LedgerEntry{
		ID:        hold.ID + "-credit",
		Account:   ClearingAccount,
		Amount:    hold.Amount,
		Currency:  hold.Currency,
		Ref:       ref,
		CreatedAt: now,
	}

	if err := f.repo.InsertEntryTx(tx, debit); err != nil {
		return err
	}
	if err := f.repo.InsertEntryTx(tx, credit); err != nil {
		return err
	}

	log.Printf("[ledger] finalized hold %s (ref=%s, %s %s)",
		hold.ID, ref, hold.Amount, hold.Currency)
	return nil
}
