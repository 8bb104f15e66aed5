package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeIncome          = "income"
	TransactionTypeFixedExpense    = "fixed_expense"
	TransactionTypeVariableExpense = "variable_expense"
)

const (
	TransactionStatusPending  = "pending"
	TransactionStatusLocked   = "locked"
	TransactionStatusExecuted = "executed"
)

// Transaction is one monetary movement on an account. Its status is the
// only mutable part after creation; deletion is physical and allowed only
// while the transaction has not been executed.
type Transaction struct {
	ID                string          `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID         string          `gorm:"type:uuid;index:idx_transactions_account_id;not null" json:"account_id"`
	CategoryID        string          `gorm:"type:uuid;index" json:"category_id"`
	Type              string          `gorm:"size:32;index;not null" json:"type"`
	Status            string          `gorm:"size:32;index;not null" json:"status"`
	Amount            decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Description       string          `gorm:"size:255" json:"description"`
	DueDate           time.Time       `gorm:"index;not null" json:"due_date"`
	ExecutedDate      *time.Time      `gorm:"index" json:"executed_date,omitempty"`
	IsRecurring       bool            `gorm:"not null;default:false" json:"is_recurring"`
	RecurrencePattern string          `gorm:"size:64" json:"recurrence_pattern,omitempty"`
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
