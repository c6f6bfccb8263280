package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceRepo covers the one balance operation this engine owns: crediting
// an originating merchant balance back when a payout fails. Everything else
// about merchant bookkeeping lives elsewhere.
type BalanceRepo struct {
	db *sql.DB
}

func NewBalanceRepo(db *sql.DB) *BalanceRepo {
	return &BalanceRepo{db: db}
}

func (r *BalanceRepo) Credit(accountID, currency string, amount decimal.Decimal, at time.Time) error {
	// sqlite decimal arithmetic would lose precision on TEXT amounts, so
	// read-modify-write inside a transaction instead.
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var current decimal.Decimal
	err = tx.QueryRow(
		"SELECT amount FROM merchant_balances WHERE account_id = ? AND currency = ?",
		accountID, currency,
	).Scan(&current)
	ts := at.UTC().Format(time.RFC3339)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec(
			`INSERT INTO merchant_balances (account_id, currency, amount, updated_at)
			VALUES (?,?,?,?)`,
			accountID, currency, amount.String(), ts,
		)
	case err == nil:
		_, err = tx.Exec(
			"UPDATE merchant_balances SET amount = ?, updated_at = ? WHERE account_id = ? AND currency = ?",
			current.Add(amount).String(), ts, accountID, currency,
		)
	}
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}

	return tx.Commit()
}

func (r *BalanceRepo) Get(accountID, currency string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := r.db.QueryRow(
		"SELECT amount FROM merchant_balances WHERE account_id = ? AND currency = ?",
		accountID, currency,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}
