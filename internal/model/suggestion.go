package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpendingSuggestion is one computed daily-limit suggestion. A new row is
// persisted on every recomputation and old rows are kept to serve the
// history query; the current value is additionally mirrored in the cache.
type SpendingSuggestion struct {
	ID                       string          `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID                string          `gorm:"type:uuid;index:idx_suggestions_account_id;not null" json:"account_id"`
	SuggestionDate           time.Time       `gorm:"not null" json:"suggestion_date"`
	ValidUntil               time.Time       `gorm:"not null" json:"valid_until"`
	DailyLimit               decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"daily_limit"`
	MonthlyProjection        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"monthly_projection"`
	AvailableBalanceSnapshot decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"available_balance_snapshot"`
	LockedBalanceSnapshot    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"locked_balance_snapshot"`
	DaysConsidered           int             `gorm:"not null" json:"days_considered"`
	DaysUntilNextIncome      *int            `json:"days_until_next_income,omitempty"`
	CreatedAt                time.Time       `gorm:"index" json:"created_at"`
}

func (SpendingSuggestion) TableName() string {
	return "spending_suggestions"
}
