package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the four balance compartments for one user account.
// Balances are mutated only through the ledger primitives; the invariant
// total = available + locked + reserve holds after every committed operation.
type Account struct {
	ID               string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           string          `gorm:"type:uuid;index:idx_accounts_user_id;not null" json:"user_id"`
	Name             string          `gorm:"size:255;not null" json:"name"`
	AccountType      string          `gorm:"size:32;not null;default:checking" json:"account_type"`
	Currency         string          `gorm:"size:3;not null;default:BRL" json:"currency"`
	TotalBalance     decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total_balance"`
	AvailableBalance decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"available_balance"`
	LockedBalance    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"locked_balance"`
	EmergencyReserve decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"emergency_reserve"`
	IsDefault        bool            `gorm:"not null;default:false" json:"is_default"`
	Version          uint            `gorm:"not null;default:0" json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// Balances is the point-in-time view of the four compartments, embedded in
// history rows, events and API responses.
type Balances struct {
	Total     decimal.Decimal `json:"total_balance"`
	Available decimal.Decimal `json:"available_balance"`
	Locked    decimal.Decimal `json:"locked_balance"`
	Reserve   decimal.Decimal `json:"emergency_reserve"`
}

// Snapshot returns a copy of the account's current balances.
func (a *Account) Snapshot() Balances {
	return Balances{
		Total:     a.TotalBalance,
		Available: a.AvailableBalance,
		Locked:    a.LockedBalance,
		Reserve:   a.EmergencyReserve,
	}
}

const RuleTypeEmergencyReserve = "emergency_reserve"

// FinancialRule is a per-account rule read by the rule resolver. Only
// emergency_reserve rules are interpreted by this service; rows are
// created alongside the account and never written by the resolver.
type FinancialRule struct {
	ID         string          `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID  string          `gorm:"type:uuid;index:idx_rules_account_id;not null" json:"account_id"`
	RuleType   string          `gorm:"size:32;not null" json:"rule_type"`
	RuleName   string          `gorm:"size:255;not null" json:"rule_name"`
	Percentage decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"percentage"`
	Priority   int             `gorm:"not null;default:1" json:"priority"`
	IsActive   bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (FinancialRule) TableName() string {
	return "financial_rules"
}
