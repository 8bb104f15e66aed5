package repository

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ledger-service/internal/model"
)

type SuggestionRepository struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewSuggestionRepository(db *gorm.DB, log *logrus.Logger) *SuggestionRepository {
	return &SuggestionRepository{
		db:  db,
		log: log,
	}
}

func (r *SuggestionRepository) Create(ctx context.Context, suggestion *model.SpendingSuggestion) error {
	return r.db.WithContext(ctx).Create(suggestion).Error
}

// ListRecent returns the newest persisted suggestions for the account,
// descending by creation time, capped at limit.
func (r *SuggestionRepository) ListRecent(ctx context.Context, accountID string, limit int) ([]model.SpendingSuggestion, error) {
	if limit < 1 || limit > 100 {
		limit = 30
	}
	var rows []model.SpendingSuggestion
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
