package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ledger-service/internal/apperr"
	"ledger-service/internal/events"
	"ledger-service/internal/ledger"
	"ledger-service/internal/model"
	"ledger-service/internal/repository"
	"ledger-service/internal/rules"
)

// maxAttempts bounds the optimistic-concurrency retry loop. Each attempt
// re-reads the account and re-runs the balance check, so a conflict can
// legitimately turn into InsufficientBalance on retry.
const maxAttempts = 5

var hundred = decimal.NewFromInt(100)

// CacheInvalidator is the hook called after every committed balance
// mutation. Invalidation is best-effort and must never fail the request.
type CacheInvalidator interface {
	InvalidateCache(accountID string)
}

// EventPublisher emits balance events after commit, best-effort.
type EventPublisher interface {
	PublishBalanceChanged(ctx context.Context, event *events.BalanceChangedEvent) error
}

// TransactionService drives the transaction lifecycle: it resolves the
// applicable rule, mutates balances through the ledger primitives, writes
// the transaction row and the history snapshot in one database
// transaction, and only then invalidates the suggestion cache and
// publishes the balance event.
type TransactionService struct {
	db           *gorm.DB
	accounts     *repository.AccountRepository
	ruleRepo     *repository.RuleRepository
	transactions *repository.TransactionRepository
	history      *repository.HistoryRepository
	invalidator  CacheInvalidator
	publisher    EventPublisher
	log          *logrus.Logger
}

func NewTransactionService(
	db *gorm.DB,
	accounts *repository.AccountRepository,
	ruleRepo *repository.RuleRepository,
	transactions *repository.TransactionRepository,
	history *repository.HistoryRepository,
	invalidator CacheInvalidator,
	publisher EventPublisher,
	log *logrus.Logger,
) *TransactionService {
	return &TransactionService{
		db:           db,
		accounts:     accounts,
		ruleRepo:     ruleRepo,
		transactions: transactions,
		history:      history,
		invalidator:  invalidator,
		publisher:    publisher,
		log:          log,
	}
}

type CreateIncomeInput struct {
	AccountID         string
	Amount            decimal.Decimal
	Description       string
	CategoryID        string
	DueDate           *time.Time
	IsRecurring       bool
	RecurrencePattern string
}

type CreateFixedExpenseInput struct {
	AccountID         string
	Amount            decimal.Decimal
	Description       string
	CategoryID        string
	DueDate           time.Time
	IsRecurring       bool
	RecurrencePattern string
}

type CreateVariableExpenseInput struct {
	AccountID   string
	Amount      decimal.Decimal
	Description string
	CategoryID  string
}

// Result carries the created or removed transaction together with the
// post-mutation balances.
type Result struct {
	Transaction model.Transaction `json:"transaction"`
	Balances    model.Balances    `json:"account_balances"`
}

// IncomeBreakdown shows how an income credit was split.
type IncomeBreakdown struct {
	TotalReceived    decimal.Decimal `json:"total_received"`
	EmergencyReserve decimal.Decimal `json:"emergency_reserve"`
	Available        decimal.Decimal `json:"available"`
}

type IncomeResult struct {
	Result
	Breakdown IncomeBreakdown `json:"breakdown"`
}

// committedChange is captured inside the atomic unit and consumed by the
// post-commit notification once the transaction has actually committed.
type committedChange struct {
	accountID     string
	transactionID string
	reason        string
	balances      model.Balances
	version       uint
	mutated       bool
}

// ProcessIncome credits an account, splitting the amount between the
// emergency reserve and available balance per the account's active rule.
// The transaction is executed immediately.
func (s *TransactionService) ProcessIncome(ctx context.Context, userID string, input CreateIncomeInput) (*IncomeResult, error) {
	if !input.Amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}

	var (
		result    *IncomeResult
		committed committedChange
	)
	err := s.withRetry(ctx, "process_income", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			acc, err := s.ownedAccount(ctx, tx, input.AccountID, userID)
			if err != nil {
				return err
			}

			resolver := rules.NewResolver(s.ruleRepo.WithTx(tx))
			reservePct, err := resolver.ReservePercentage(ctx, acc.ID)
			if err != nil {
				return err
			}

			balances, err := ledger.ApplyIncome(acc, input.Amount, reservePct)
			if err != nil {
				return err
			}
			if err := s.accounts.WithTx(tx).SaveBalances(ctx, acc); err != nil {
				return err
			}

			now := time.Now()
			dueDate := now
			if input.DueDate != nil {
				dueDate = *input.DueDate
			}
			txn := model.Transaction{
				ID:                uuid.NewString(),
				AccountID:         acc.ID,
				CategoryID:        input.CategoryID,
				Type:              model.TransactionTypeIncome,
				Status:            model.TransactionStatusExecuted,
				Amount:            input.Amount,
				Description:       input.Description,
				DueDate:           dueDate,
				ExecutedDate:      &now,
				IsRecurring:       input.IsRecurring,
				RecurrencePattern: input.RecurrencePattern,
			}
			if err := s.transactions.WithTx(tx).Create(ctx, &txn); err != nil {
				return err
			}

			if err := s.history.WithTx(tx).Record(ctx, acc.ID, txn.ID, balances, model.ChangeReasonIncomeReceived); err != nil {
				return err
			}

			reserveAmount := input.Amount.Mul(reservePct).DivRound(hundred, 2)
			result = &IncomeResult{
				Result: Result{Transaction: txn, Balances: balances},
				Breakdown: IncomeBreakdown{
					TotalReceived:    input.Amount,
					EmergencyReserve: reserveAmount,
					Available:        input.Amount.Sub(reserveAmount),
				},
			}
			committed = committedChange{
				accountID:     acc.ID,
				transactionID: txn.ID,
				reason:        model.ChangeReasonIncomeReceived,
				balances:      balances,
				version:       acc.Version,
				mutated:       true,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyCommitted(ctx, committed)
	return result, nil
}

// CreateFixedExpense sets money aside for a future fixed expense by
// moving it from available to locked. The transaction stays locked until
// it is executed or deleted.
func (s *TransactionService) CreateFixedExpense(ctx context.Context, userID string, input CreateFixedExpenseInput) (*Result, error) {
	if !input.Amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}
	if input.DueDate.Before(startOfToday()) {
		return nil, apperr.Validation("due date cannot be in the past")
	}

	var (
		result    *Result
		committed committedChange
	)
	err := s.withRetry(ctx, "create_fixed_expense", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			acc, err := s.ownedAccount(ctx, tx, input.AccountID, userID)
			if err != nil {
				return err
			}

			balances, err := ledger.ApplyLock(acc, input.Amount)
			if err != nil {
				return err
			}
			if err := s.accounts.WithTx(tx).SaveBalances(ctx, acc); err != nil {
				return err
			}

			txn := model.Transaction{
				ID:                uuid.NewString(),
				AccountID:         acc.ID,
				CategoryID:        input.CategoryID,
				Type:              model.TransactionTypeFixedExpense,
				Status:            model.TransactionStatusLocked,
				Amount:            input.Amount,
				Description:       input.Description,
				DueDate:           input.DueDate,
				IsRecurring:       input.IsRecurring,
				RecurrencePattern: input.RecurrencePattern,
			}
			if err := s.transactions.WithTx(tx).Create(ctx, &txn); err != nil {
				return err
			}

			if err := s.history.WithTx(tx).Record(ctx, acc.ID, txn.ID, balances, model.ChangeReasonExpenseLocked); err != nil {
				return err
			}

			result = &Result{Transaction: txn, Balances: balances}
			committed = committedChange{
				accountID:     acc.ID,
				transactionID: txn.ID,
				reason:        model.ChangeReasonExpenseLocked,
				balances:      balances,
				version:       acc.Version,
				mutated:       true,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyCommitted(ctx, committed)
	return result, nil
}

// CreateVariableExpense debits the account immediately; the transaction
// is created already executed.
func (s *TransactionService) CreateVariableExpense(ctx context.Context, userID string, input CreateVariableExpenseInput) (*Result, error) {
	if !input.Amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}

	var (
		result    *Result
		committed committedChange
	)
	err := s.withRetry(ctx, "create_variable_expense", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			acc, err := s.ownedAccount(ctx, tx, input.AccountID, userID)
			if err != nil {
				return err
			}

			balances, err := ledger.ApplyDebit(acc, input.Amount)
			if err != nil {
				return err
			}
			if err := s.accounts.WithTx(tx).SaveBalances(ctx, acc); err != nil {
				return err
			}

			now := time.Now()
			txn := model.Transaction{
				ID:           uuid.NewString(),
				AccountID:    acc.ID,
				CategoryID:   input.CategoryID,
				Type:         model.TransactionTypeVariableExpense,
				Status:       model.TransactionStatusExecuted,
				Amount:       input.Amount,
				Description:  input.Description,
				DueDate:      now,
				ExecutedDate: &now,
			}
			if err := s.transactions.WithTx(tx).Create(ctx, &txn); err != nil {
				return err
			}

			if err := s.history.WithTx(tx).Record(ctx, acc.ID, txn.ID, balances, model.ChangeReasonExpensePaid); err != nil {
				return err
			}

			result = &Result{Transaction: txn, Balances: balances}
			committed = committedChange{
				accountID:     acc.ID,
				transactionID: txn.ID,
				reason:        model.ChangeReasonExpensePaid,
				balances:      balances,
				version:       acc.Version,
				mutated:       true,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyCommitted(ctx, committed)
	return result, nil
}

// ExecuteFixedExpense settles a locked fixed expense: the locked amount
// finally leaves the account and the transaction becomes executed.
func (s *TransactionService) ExecuteFixedExpense(ctx context.Context, userID, transactionID string) (*Result, error) {
	var (
		result    *Result
		committed committedChange
	)
	err := s.withRetry(ctx, "execute_fixed_expense", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txn, acc, err := s.ownedTransaction(ctx, tx, transactionID, userID)
			if err != nil {
				return err
			}
			if txn.Type != model.TransactionTypeFixedExpense {
				return apperr.Validation("only fixed expenses can be executed")
			}
			if txn.Status != model.TransactionStatusLocked {
				return apperr.Validation("only locked transactions can be executed")
			}

			balances, err := ledger.ApplyExecuteLock(acc, txn.Amount)
			if err != nil {
				return err
			}
			if err := s.accounts.WithTx(tx).SaveBalances(ctx, acc); err != nil {
				return err
			}

			now := time.Now()
			if err := s.transactions.WithTx(tx).MarkExecuted(ctx, txn.ID, now); err != nil {
				return err
			}
			txn.Status = model.TransactionStatusExecuted
			txn.ExecutedDate = &now

			if err := s.history.WithTx(tx).Record(ctx, acc.ID, txn.ID, balances, model.ChangeReasonExpensePaid); err != nil {
				return err
			}

			result = &Result{Transaction: *txn, Balances: balances}
			committed = committedChange{
				accountID:     acc.ID,
				transactionID: txn.ID,
				reason:        model.ChangeReasonExpensePaid,
				balances:      balances,
				version:       acc.Version,
				mutated:       true,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyCommitted(ctx, committed)
	return result, nil
}

// Delete removes a transaction that has not been executed. A locked
// transaction releases its locked amount back to available first; the
// compensating balance change is recorded in the history.
func (s *TransactionService) Delete(ctx context.Context, userID, transactionID string) (*Result, error) {
	var (
		result    *Result
		committed committedChange
	)
	err := s.withRetry(ctx, "delete_transaction", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txn, acc, err := s.ownedTransaction(ctx, tx, transactionID, userID)
			if err != nil {
				return err
			}
			if txn.Status == model.TransactionStatusExecuted {
				return apperr.Validation("cannot delete executed transaction")
			}

			balances := acc.Snapshot()
			mutated := false
			if txn.Status == model.TransactionStatusLocked {
				balances, err = ledger.ApplyUnlock(acc, txn.Amount)
				if err != nil {
					return err
				}
				if err := s.accounts.WithTx(tx).SaveBalances(ctx, acc); err != nil {
					return err
				}
				if err := s.history.WithTx(tx).Record(ctx, acc.ID, txn.ID, balances, model.ChangeReasonExpenseUnlocked); err != nil {
					return err
				}
				mutated = true
			}

			if err := s.transactions.WithTx(tx).Delete(ctx, txn.ID); err != nil {
				return err
			}

			result = &Result{Transaction: *txn, Balances: balances}
			committed = committedChange{
				accountID:     acc.ID,
				transactionID: txn.ID,
				reason:        model.ChangeReasonExpenseUnlocked,
				balances:      balances,
				version:       acc.Version,
				mutated:       mutated,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyCommitted(ctx, committed)
	return result, nil
}

// GetByID returns a transaction the caller owns.
func (s *TransactionService) GetByID(ctx context.Context, userID, transactionID string) (*model.Transaction, error) {
	txn, err := s.transactions.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	acc, err := s.accounts.Get(ctx, txn.AccountID)
	if err != nil {
		return nil, err
	}
	if acc.UserID != userID {
		return nil, apperr.Forbidden("access denied to this transaction")
	}
	return txn, nil
}

// ListPage is one page of transactions.
type ListPage struct {
	Transactions []model.Transaction `json:"transactions"`
	Page         int                 `json:"current_page"`
	TotalPages   int                 `json:"total_pages"`
	TotalItems   int64               `json:"total_items"`
	PerPage      int                 `json:"items_per_page"`
}

// List returns the caller's transactions, constrained to one account when
// the filter names it, otherwise across all of the caller's accounts.
func (s *TransactionService) List(ctx context.Context, userID string, filter repository.ListFilter) (*ListPage, error) {
	if len(filter.AccountIDs) > 0 {
		for _, id := range filter.AccountIDs {
			acc, err := s.accounts.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if acc.UserID != userID {
				return nil, apperr.Forbidden("access denied to this account")
			}
		}
	} else {
		accounts, err := s.accounts.ListByUser(ctx, userID)
		if err != nil {
			return nil, apperr.Internal(err, "failed to list accounts")
		}
		ids := make([]string, 0, len(accounts))
		for _, acc := range accounts {
			ids = append(ids, acc.ID)
		}
		if len(ids) == 0 {
			return &ListPage{Transactions: []model.Transaction{}, Page: 1, PerPage: 50}, nil
		}
		filter.AccountIDs = ids
	}

	txns, total, err := s.transactions.List(ctx, filter)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list transactions")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 50
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return &ListPage{
		Transactions: txns,
		Page:         page,
		TotalPages:   totalPages,
		TotalItems:   total,
		PerPage:      limit,
	}, nil
}

func (s *TransactionService) ownedAccount(ctx context.Context, tx *gorm.DB, accountID, userID string) (*model.Account, error) {
	acc, err := s.accounts.WithTx(tx).Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.UserID != userID {
		return nil, apperr.Forbidden("access denied to this account")
	}
	return acc, nil
}

func (s *TransactionService) ownedTransaction(ctx context.Context, tx *gorm.DB, transactionID, userID string) (*model.Transaction, *model.Account, error) {
	txn, err := s.transactions.WithTx(tx).Get(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	acc, err := s.accounts.WithTx(tx).Get(ctx, txn.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if acc.UserID != userID {
		return nil, nil, apperr.Forbidden("access denied to this transaction")
	}
	return txn, acc, nil
}

// notifyCommitted runs strictly after a successful commit: it drops the
// suggestion cache entry and publishes the balance event. Both are
// best-effort; failures here never fail the request.
func (s *TransactionService) notifyCommitted(ctx context.Context, change committedChange) {
	if !change.mutated {
		return
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateCache(change.accountID)
	}

	if s.publisher != nil {
		event := events.NewBalanceChangedEvent(
			change.accountID,
			change.transactionID,
			change.reason,
			change.balances,
			change.version,
		)
		if err := s.publisher.PublishBalanceChanged(ctx, event); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"account_id":     change.accountID,
				"transaction_id": change.transactionID,
				"reason":         change.reason,
			}).Warn("failed to publish balance event")
		}
	}
}

// withRetry re-runs the atomic unit when it lost an optimistic-concurrency
// race. Business errors and unexpected store errors are not retried; the
// latter are logged and wrapped as internal.
func (s *TransactionService) withRetry(ctx context.Context, op string, unit func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = unit()
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			s.log.WithFields(logrus.Fields{
				"operation": op,
				"attempt":   attempt,
			}).Debug("version conflict, retrying")
			continue
		}
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return err
		}
		s.log.WithError(err).WithField("operation", op).Error("ledger operation failed")
		return apperr.Internal(err, "operation failed")
	}
	s.log.WithError(err).WithField("operation", op).Error("ledger operation exhausted retries")
	return apperr.Internal(err, "too many concurrent updates, try again")
}

// startOfToday returns midnight of the current day in local time.
func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
