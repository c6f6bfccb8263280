package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS payouts (
			id TEXT PRIMARY KEY,
			external_id TEXT UNIQUE NOT NULL,
			origin_module TEXT NOT NULL,
			origin_entity_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			amount TEXT NOT NULL,
			method TEXT NOT NULL,
			destination_id TEXT NOT NULL,
			status TEXT NOT NULL,
			requested_at DATETIME NOT NULL,
			processed_at DATETIME,
			failure_reason TEXT,
			claimed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payouts_status ON payouts(status)`,
		`CREATE INDEX IF NOT EXISTS idx_payouts_requested_at ON payouts(requested_at)`,

		`CREATE TABLE IF NOT EXISTS bank_profiles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			country TEXT NOT NULL,
			currencies TEXT NOT NULL,
			rails TEXT NOT NULL,
			compliance_level TEXT NOT NULL,
			sla_target_seconds INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS treasury_accounts (
			id TEXT PRIMARY KEY,
			bank_profile_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			account_number TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (bank_profile_id) REFERENCES bank_profiles(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_treasury_accounts_profile ON treasury_accounts(bank_profile_id)`,

		`CREATE TABLE IF NOT EXISTS settlement_instructions (
			id TEXT PRIMARY KEY,
			payout_id TEXT UNIQUE NOT NULL,
			bank_profile_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			rail TEXT NOT NULL,
			status TEXT NOT NULL,
			bank_ref TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (payout_id) REFERENCES payouts(id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_instructions_bank_ref ON settlement_instructions(bank_ref)`,

		`CREATE TABLE IF NOT EXISTS settlement_slas (
			id TEXT PRIMARY KEY,
			bank_profile_id TEXT NOT NULL,
			rail TEXT NOT NULL,
			payout_id TEXT NOT NULL,
			expected_delay_ms INTEGER NOT NULL,
			actual_delay_ms INTEGER NOT NULL,
			recorded_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_slas_profile_rail ON settlement_slas(bank_profile_id, rail)`,

		`CREATE TABLE IF NOT EXISTS ledger_holds (
			id TEXT PRIMARY KEY,
			origin TEXT NOT NULL,
			account TEXT NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			ref TEXT UNIQUE NOT NULL,
			created_at DATETIME NOT NULL,
			finalized_at DATETIME
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id TEXT PRIMARY KEY,
			account TEXT NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			ref TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_ref ON ledger_entries(ref)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries(account)`,

		`CREATE TABLE IF NOT EXISTS bank_statement_lines (
			id TEXT PRIMARY KEY,
			reference TEXT UNIQUE NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			statement_date DATETIME NOT NULL,
			reconciliation_status TEXT NOT NULL,
			matched_payout_id TEXT,
			ingested_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_statement_lines_status ON bank_statement_lines(reconciliation_status)`,

		`CREATE TABLE IF NOT EXISTS statement_batches (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			file_hash TEXT UNIQUE NOT NULL,
			line_count INTEGER NOT NULL,
			ingested_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS merchant_balances (
			account_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			amount TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (account_id, currency)
		)`,

		`CREATE TABLE IF NOT EXISTS processed_keys (
			key TEXT PRIMARY KEY,
			processed_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ops_tickets (
			id TEXT PRIMARY KEY,
			line_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ops_tickets_status ON ops_tickets(status)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			entity_id TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}
