package repository

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ledger-service/internal/model"
)

type RuleRepository struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewRuleRepository(db *gorm.DB, log *logrus.Logger) *RuleRepository {
	return &RuleRepository{
		db:  db,
		log: log,
	}
}

func (r *RuleRepository) WithTx(tx *gorm.DB) *RuleRepository {
	return &RuleRepository{db: tx, log: r.log}
}

func (r *RuleRepository) Create(ctx context.Context, rule *model.FinancialRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// ActiveByAccount returns the account's active rules ordered by priority,
// lowest (highest precedence) first.
func (r *RuleRepository) ActiveByAccount(ctx context.Context, accountID string) ([]model.FinancialRule, error) {
	var rules []model.FinancialRule
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND is_active = ?", accountID, true).
		Order("priority ASC").
		Find(&rules).Error
	return rules, err
}
