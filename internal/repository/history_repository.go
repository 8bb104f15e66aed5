package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ledger-service/internal/model"
)

// HistoryRepository appends immutable balance snapshots. There are no
// update or delete operations on purpose; the table is the audit trail.
type HistoryRepository struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewHistoryRepository(db *gorm.DB, log *logrus.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log,
	}
}

func (r *HistoryRepository) WithTx(tx *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: tx, log: r.log}
}

// Record appends one snapshot of the account's balances after a mutation.
// Must run inside the same transaction as the mutation it documents.
func (r *HistoryRepository) Record(ctx context.Context, accountID, transactionID string, balances model.Balances, reason string) error {
	row := model.BalanceHistory{
		ID:               uuid.NewString(),
		AccountID:        accountID,
		TransactionID:    transactionID,
		TotalBalance:     balances.Total,
		AvailableBalance: balances.Available,
		LockedBalance:    balances.Locked,
		EmergencyReserve: balances.Reserve,
		ChangeReason:     reason,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// ListByAccount returns the most recent snapshots, newest first.
func (r *HistoryRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]model.BalanceHistory, error) {
	if limit < 1 {
		limit = 50
	}
	var rows []model.BalanceHistory
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
