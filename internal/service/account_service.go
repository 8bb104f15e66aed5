package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ledger-service/internal/apperr"
	"ledger-service/internal/model"
	"ledger-service/internal/repository"
	"ledger-service/internal/rules"
)

// AccountService owns account lifecycle outside the ledger mutations:
// creation (with the default reserve rule), lookup, and guarded deletion.
type AccountService struct {
	db           *gorm.DB
	accounts     *repository.AccountRepository
	ruleRepo     *repository.RuleRepository
	transactions *repository.TransactionRepository
	log          *logrus.Logger
}

func NewAccountService(
	db *gorm.DB,
	accounts *repository.AccountRepository,
	ruleRepo *repository.RuleRepository,
	transactions *repository.TransactionRepository,
	log *logrus.Logger,
) *AccountService {
	return &AccountService{
		db:           db,
		accounts:     accounts,
		ruleRepo:     ruleRepo,
		transactions: transactions,
		log:          log,
	}
}

type CreateAccountInput struct {
	Name        string
	AccountType string
	Currency    string
	IsDefault   bool
}

// Create opens an account with all-zero balances and seeds the default
// emergency reserve rule (30%, priority 1, active).
func (s *AccountService) Create(ctx context.Context, userID string, input CreateAccountInput) (*model.Account, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperr.Validation("account name is required")
	}

	accountType := input.AccountType
	if accountType == "" {
		accountType = "checking"
	}
	currency := input.Currency
	if currency == "" {
		currency = "BRL"
	}

	account := &model.Account{
		ID:               uuid.NewString(),
		UserID:           userID,
		Name:             strings.TrimSpace(input.Name),
		AccountType:      accountType,
		Currency:         currency,
		TotalBalance:     decimal.Zero,
		AvailableBalance: decimal.Zero,
		LockedBalance:    decimal.Zero,
		EmergencyReserve: decimal.Zero,
		IsDefault:        input.IsDefault,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.IsDefault {
			if err := s.accounts.WithTx(tx).ClearDefault(ctx, userID, account.ID); err != nil {
				return err
			}
		}
		if err := s.accounts.WithTx(tx).Create(ctx, account); err != nil {
			return err
		}
		rule := &model.FinancialRule{
			ID:         uuid.NewString(),
			AccountID:  account.ID,
			RuleType:   model.RuleTypeEmergencyReserve,
			RuleName:   "Automatic emergency reserve",
			Percentage: rules.DefaultReservePercentage,
			Priority:   1,
			IsActive:   true,
		}
		return s.ruleRepo.WithTx(tx).Create(ctx, rule)
	})
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("failed to create account")
		return nil, apperr.Internal(err, "failed to create account")
	}

	return account, nil
}

// AccountDetail is an account together with its active rules.
type AccountDetail struct {
	Account model.Account         `json:"account"`
	Rules   []model.FinancialRule `json:"financial_rules"`
}

// Get returns an account the caller owns, with its active rules.
func (s *AccountService) Get(ctx context.Context, userID, accountID string) (*AccountDetail, error) {
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.UserID != userID {
		return nil, apperr.Forbidden("access denied to this account")
	}

	active, err := s.ruleRepo.ActiveByAccount(ctx, accountID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load account rules")
	}

	return &AccountDetail{Account: *acc, Rules: active}, nil
}

func (s *AccountService) ListByUser(ctx context.Context, userID string) ([]model.Account, error) {
	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list accounts")
	}
	return accounts, nil
}

// GetDefault returns the user's default account, or the oldest one when
// no default is set.
func (s *AccountService) GetDefault(ctx context.Context, userID string) (*model.Account, error) {
	return s.accounts.FirstByUser(ctx, userID)
}

// Delete removes an account that has no transactions and a zero total
// balance. Rules go with it; the audit trail is never touched.
func (s *AccountService) Delete(ctx context.Context, userID, accountID string) error {
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if acc.UserID != userID {
		return apperr.Forbidden("access denied to this account")
	}

	count, err := s.transactions.CountByAccount(ctx, accountID)
	if err != nil {
		return apperr.Internal(err, "failed to count transactions")
	}
	if count > 0 {
		return apperr.Validation("cannot delete account with transactions")
	}
	if !acc.TotalBalance.IsZero() {
		return apperr.Validation("cannot delete account with non-zero balance")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.FinancialRule{}, "account_id = ?", accountID).Error; err != nil {
			return err
		}
		return s.accounts.WithTx(tx).Delete(ctx, accountID)
	})
	if err != nil {
		s.log.WithError(err).WithField("account_id", accountID).Error("failed to delete account")
		return apperr.Internal(err, "failed to delete account")
	}
	return nil
}
