package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/molam/treasury/internal/domain"
)

// BankRepo reads bank profiles and treasury accounts. Both are managed by
// an external CRUD surface; the engine only resolves destinations and, for
// bootstrap, seeds a sandbox set.
type BankRepo struct {
	db *sql.DB
}

func NewBankRepo(db *sql.DB) *BankRepo {
	return &BankRepo{db: db}
}

func (r *BankRepo) InsertProfile(p *domain.BankProfile) error {
	rails := make([]string, len(p.Rails))
	for i, rl := range p.Rails {
		rails[i] = string(rl)
	}
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO bank_profiles
		(id, name, country, currencies, rails, compliance_level, sla_target_seconds, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Country, strings.Join(p.SupportedCurrencies, ","),
		strings.Join(rails, ","), string(p.ComplianceLevel), p.SLATargetSeconds,
		p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert bank profile: %w", err)
	}
	return nil
}

func (r *BankRepo) InsertAccount(a *domain.TreasuryAccount) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO treasury_accounts
		(id, bank_profile_id, currency, account_number, created_at)
		VALUES (?,?,?,?,?)`,
		a.ID, a.BankProfileID, a.Currency, a.AccountNumber,
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert treasury account: %w", err)
	}
	return nil
}

func (r *BankRepo) GetProfile(id string) (*domain.BankProfile, error) {
	row := r.db.QueryRow("SELECT * FROM bank_profiles WHERE id = ?", id)
	p, err := scanBankProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *BankRepo) GetAccount(id string) (*domain.TreasuryAccount, error) {
	var a domain.TreasuryAccount
	var createdStr string
	err := r.db.QueryRow("SELECT * FROM treasury_accounts WHERE id = ?", id).Scan(
		&a.ID, &a.BankProfileID, &a.Currency, &a.AccountNumber, &createdStr,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	return &a, nil
}

// ResolveDestination loads the treasury account for a payout destination
// together with its bank profile. Either being absent is a configuration
// error surfaced to the failure path.
func (r *BankRepo) ResolveDestination(destinationID string) (*domain.TreasuryAccount, *domain.BankProfile, error) {
	account, err := r.GetAccount(destinationID)
	if err != nil {
		return nil, nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, nil, fmt.Errorf("no treasury account for destination %s", destinationID)
	}

	profile, err := r.GetProfile(account.BankProfileID)
	if err != nil {
		return nil, nil, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil {
		return nil, nil, fmt.Errorf("no bank profile %s for account %s", account.BankProfileID, account.ID)
	}

	return account, profile, nil
}

func (r *BankRepo) CountProfiles() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM bank_profiles").Scan(&count)
	return count, err
}

func scanBankProfile(row *sql.Row) (*domain.BankProfile, error) {
	var p domain.BankProfile
	var currencies, rails, compliance, createdStr string

	err := row.Scan(
		&p.ID, &p.Name, &p.Country, &currencies, &rails, &compliance,
		&p.SLATargetSeconds, &createdStr,
	)
	if err != nil {
		return nil, err
	}

	if currencies != "" {
		p.SupportedCurrencies = strings.Split(currencies, ",")
	}
	for _, rl := range strings.Split(rails, ",") {
		if rl != "" {
			p.Rails = append(p.Rails, domain.Rail(rl))
		}
	}
	p.ComplianceLevel = domain.ComplianceLevel(compliance)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)

	return &p, nil
}
