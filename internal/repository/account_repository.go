package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ledger-service/internal/apperr"
	"ledger-service/internal/model"
)

// ErrVersionConflict is returned when a version-guarded balance update
// matches no row, meaning another writer committed first. The caller
// aborts its transaction and retries the whole unit.
var ErrVersionConflict = errors.New("account version conflict")

type AccountRepository struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewAccountRepository(db *gorm.DB, log *logrus.Logger) *AccountRepository {
	return &AccountRepository{
		db:  db,
		log: log,
	}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AccountRepository) WithTx(tx *gorm.DB) *AccountRepository {
	return &AccountRepository{db: tx, log: r.log}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) Get(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("account not found")
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) ListByUser(ctx context.Context, userID string) ([]model.Account, error) {
	var accounts []model.Account
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at ASC").
		Find(&accounts).Error
	return accounts, err
}

// FirstByUser returns the user's default account, falling back to the
// oldest one when no default is set.
func (r *AccountRepository) FirstByUser(ctx context.Context, userID string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at ASC").
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("no accounts found for this user")
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ClearDefault unsets the default flag on all of the user's accounts
// except the given one.
func (r *AccountRepository) ClearDefault(ctx context.Context, userID, exceptID string) error {
	return r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ? AND is_default = ? AND id <> ?", userID, true, exceptID).
		Update("is_default", false).Error
}

// SaveBalances persists the account's balance compartments with an
// optimistic version guard: the update applies only if no other writer
// bumped the version since the account was read. On success the in-memory
// version is advanced to match the stored row.
func (r *AccountRepository) SaveBalances(ctx context.Context, account *model.Account) error {
	res := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"total_balance":     account.TotalBalance,
			"available_balance": account.AvailableBalance,
			"locked_balance":    account.LockedBalance,
			"emergency_reserve": account.EmergencyReserve,
			"version":           account.Version + 1,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	account.Version++
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Account{}, "id = ?", id).Error
}
