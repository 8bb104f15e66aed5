package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ChangeReasonIncomeReceived  = "income_received"
	ChangeReasonExpenseLocked   = "expense_locked"
	ChangeReasonExpensePaid     = "expense_paid"
	ChangeReasonExpenseUnlocked = "expense_unlocked"
)

// BalanceHistory is an immutable snapshot of the four balances taken right
// after a mutation, written in the same database transaction. Rows are
// append-only and exist for audit only; live state is never rebuilt from them.
type BalanceHistory struct {
	ID               string          `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID        string          `gorm:"type:uuid;index:idx_history_account_id;not null" json:"account_id"`
	TransactionID    string          `gorm:"type:uuid;index" json:"transaction_id"`
	TotalBalance     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_balance"`
	AvailableBalance decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"available_balance"`
	LockedBalance    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"locked_balance"`
	EmergencyReserve decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"emergency_reserve"`
	ChangeReason     string          `gorm:"size:32;not null" json:"change_reason"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`
}

func (BalanceHistory) TableName() string {
	return "balance_history"
}
