package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ledger-service/internal/apperr"
	"ledger-service/internal/model"
)

type TransactionRepository struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewTransactionRepository(db *gorm.DB, log *logrus.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log,
	}
}

func (r *TransactionRepository) WithTx(tx *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: tx, log: r.log}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *TransactionRepository) Get(ctx context.Context, id string) (*model.Transaction, error) {
	var txn model.Transaction
	err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("transaction not found")
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// MarkExecuted transitions a transaction to executed with the given
// execution timestamp.
func (r *TransactionRepository) MarkExecuted(ctx context.Context, id string, executedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.TransactionStatusExecuted,
			"executed_date": executedAt,
			"updated_at":    time.Now(),
		}).Error
}

func (r *TransactionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Transaction{}, "id = ?", id).Error
}

func (r *TransactionRepository) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count, err
}

// SumExecutedVariableExpenses returns the total amount of executed
// variable expenses whose execution timestamp falls in [from, to).
func (r *TransactionRepository) SumExecutedVariableExpenses(ctx context.Context, accountID string, from, to time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("account_id = ?", accountID).
		Where("type = ?", model.TransactionTypeVariableExpense).
		Where("status = ?", model.TransactionStatusExecuted).
		Where("executed_date >= ? AND executed_date < ?", from, to).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// NextIncomeDueDate returns the earliest due date of an income
// transaction strictly after the given time, or nil when none is
// scheduled.
func (r *TransactionRepository) NextIncomeDueDate(ctx context.Context, accountID string, after time.Time) (*time.Time, error) {
	var txn model.Transaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Where("type = ?", model.TransactionTypeIncome).
		Where("due_date > ?", after).
		Order("due_date ASC").
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn.DueDate, nil
}

// ListFilter narrows the List query; zero values mean "no constraint".
type ListFilter struct {
	AccountIDs []string
	Type       string
	Status     string
	CategoryID string
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	Limit      int
}

// List returns transactions matching the filter, most recent due date
// first, along with the total match count for pagination.
func (r *TransactionRepository) List(ctx context.Context, filter ListFilter) ([]model.Transaction, int64, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Transaction{})
	if len(filter.AccountIDs) > 0 {
		q = q.Where("account_id IN ?", filter.AccountIDs)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CategoryID != "" {
		q = q.Where("category_id = ?", filter.CategoryID)
	}
	if filter.StartDate != nil {
		q = q.Where("due_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		q = q.Where("due_date <= ?", *filter.EndDate)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []model.Transaction
	err := q.
		Order("due_date DESC").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}
