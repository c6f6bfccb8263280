package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/molam/treasury/internal/domain"
)

type InstructionRepo struct {
	db *sql.DB
}

func NewInstructionRepo(db *sql.DB) *InstructionRepo {
	return &InstructionRepo{db: db}
}

// InsertTx writes the instruction inside the worker's send transaction.
// The unique constraint on payout_id enforces at most one instruction per
// payout for all time.
func (r *InstructionRepo) InsertTx(tx *sql.Tx, in *domain.SettlementInstruction) error {
	_, err := tx.Exec(
		`INSERT INTO settlement_instructions
		(id, payout_id, bank_profile_id, amount, currency, rail, status, bank_ref, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		in.ID, in.PayoutID, in.BankProfileID, in.Amount.String(), in.Currency,
		string(in.Rail), string(in.Status), in.BankRef,
		in.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert instruction: %w", err)
	}
	return nil
}

func (r *InstructionRepo) GetByPayoutID(payoutID string) (*domain.SettlementInstruction, error) {
	row := r.db.QueryRow("SELECT * FROM settlement_instructions WHERE payout_id = ?", payoutID)
	return scanInstruction(row)
}

// GetByBankRef is the exact-match lookup used by reconciliation: the bank
// reference on a statement line points back at the instruction that sent
// the payout.
func (r *InstructionRepo) GetByBankRef(bankRef string) (*domain.SettlementInstruction, error) {
	row := r.db.QueryRow("SELECT * FROM settlement_instructions WHERE bank_ref = ?", bankRef)
	return scanInstruction(row)
}

func (r *InstructionRepo) CountByPayoutID(payoutID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM settlement_instructions WHERE payout_id = ?", payoutID,
	).Scan(&count)
	return count, err
}

func scanInstruction(row *sql.Row) (*domain.SettlementInstruction, error) {
	var in domain.SettlementInstruction
	var rail, status, createdStr string

	err := row.Scan(
		&in.ID, &in.PayoutID, &in.BankProfileID, &in.Amount, &in.Currency,
		&rail, &status, &in.BankRef, &createdStr,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	in.Rail = domain.Rail(rail)
	in.Status = domain.InstructionStatus(status)
	in.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)

	return &in, nil
}
