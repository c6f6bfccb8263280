package domain

import "time"

type Rail string

const (
	RailSwift Rail = "swift"
	RailSepa  Rail = "sepa"
	RailLocal Rail = "local"
)

type ComplianceLevel string

const (
	ComplianceStandard ComplianceLevel = "standard"
	ComplianceEnhanced ComplianceLevel = "enhanced"
)

// BankProfile describes a counterparty bank or PSP. Profiles are read-only
// to the engine; they are managed elsewhere.
type BankProfile struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Country             string          `json:"country"`
	SupportedCurrencies []string        `json:"supported_currencies"`
	Rails               []Rail          `json:"rails"`
	ComplianceLevel     ComplianceLevel `json:"compliance_level"`
	SLATargetSeconds    int64           `json:"sla_target_seconds"`
	CreatedAt           time.Time       `json:"created_at"`
}

// SupportsCurrency reports whether the profile can settle the given currency.
func (p *BankProfile) SupportsCurrency(currency string) bool {
	for _, c := range p.SupportedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

// PrimaryRail returns the first configured rail, defaulting to swift when
// the profile carries none.
func (p *BankProfile) PrimaryRail() Rail {
	if len(p.Rails) > 0 {
		return p.Rails[0]
	}
	return RailSwift
}

// TreasuryAccount is a ledger-side destination account bound to a bank
// profile. Read-only to the engine.
type TreasuryAccount struct {
	ID            string    `json:"id"`
	BankProfileID string    `json:"bank_profile_id"`
	Currency      string    `json:"currency"`
	AccountNumber string    `json:"account_number"`
	CreatedAt     time.Time `json:"created_at"`
}
