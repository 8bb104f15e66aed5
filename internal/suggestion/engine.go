// Package suggestion computes the cached daily spending-limit suggestion
// derived from an account's available balance.
package suggestion

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"ledger-service/internal/apperr"
	"ledger-service/internal/cache"
	"ledger-service/internal/model"
	"ledger-service/internal/repository"
)

// CacheKeyPrefix keys cache entries by account.
const CacheKeyPrefix = "daily-limit:"

// AccountReader is the engine's view of account storage.
type AccountReader interface {
	Get(ctx context.Context, id string) (*model.Account, error)
}

// Engine computes, persists, caches and invalidates the daily-limit
// suggestion. Reads go through the cache; every recomputation persists a
// new suggestion row and refreshes the cache entry.
type Engine struct {
	accounts     AccountReader
	suggestions  *repository.SuggestionRepository
	transactions *repository.TransactionRepository
	store        cache.Store
	windowDays   int
	cacheTTL     time.Duration
	group        singleflight.Group
	log          *logrus.Logger

	// epochs fences stale reads around invalidation: the epoch is part
	// of the singleflight key, so a caller arriving after an invalidation
	// never joins a computation started before it, and a computation that
	// outlived an invalidation must not re-populate the cache with
	// pre-invalidation balances.
	mu     sync.Mutex
	epochs map[string]uint64
}

func NewEngine(
	accounts AccountReader,
	suggestions *repository.SuggestionRepository,
	transactions *repository.TransactionRepository,
	store cache.Store,
	windowDays int,
	cacheTTL time.Duration,
	log *logrus.Logger,
) *Engine {
	if windowDays <= 0 {
		windowDays = 30
	}
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Engine{
		accounts:     accounts,
		suggestions:  suggestions,
		transactions: transactions,
		store:        store,
		windowDays:   windowDays,
		cacheTTL:     cacheTTL,
		log:          log,
		epochs:       make(map[string]uint64),
	}
}

// DailyLimit is the current suggestion for one account.
type DailyLimit struct {
	AccountID           string          `json:"account_id"`
	DailyLimit          decimal.Decimal `json:"daily_limit"`
	AvailableBalance    decimal.Decimal `json:"available_balance"`
	DaysConsidered      int             `json:"days_considered"`
	DaysUntilNextIncome *int            `json:"days_until_next_income,omitempty"`
	CalculatedAt        time.Time       `json:"calculated_at"`
}

// Calculate returns the cached suggestion when present, otherwise reads
// the live balances, persists a new suggestion row, caches it and returns
// it. Concurrent misses for the same account share one computation.
func (e *Engine) Calculate(ctx context.Context, accountID string) (*DailyLimit, error) {
	key := CacheKeyPrefix + accountID

	if cached, ok := e.store.Get(key); ok {
		var limit DailyLimit
		if err := json.Unmarshal(cached, &limit); err == nil {
			return &limit, nil
		}
		// Undecodable entry: drop it and recompute.
		e.store.Delete(key)
	}

	epoch := e.currentEpoch(accountID)
	v, err, _ := e.group.Do(fmt.Sprintf("%s#%d", key, epoch), func() (interface{}, error) {
		return e.compute(ctx, accountID, key, epoch)
	})
	if err != nil {
		return nil, err
	}
	return v.(*DailyLimit), nil
}

// GetDailyLimit is an alias for Calculate.
func (e *Engine) GetDailyLimit(ctx context.Context, accountID string) (*DailyLimit, error) {
	return e.Calculate(ctx, accountID)
}

// Recalculate drops the cache entry unconditionally and computes a fresh
// suggestion, persisting a new row.
func (e *Engine) Recalculate(ctx context.Context, accountID string) (*DailyLimit, error) {
	e.InvalidateCache(accountID)
	return e.Calculate(ctx, accountID)
}

// InvalidateCache drops only the cache entry, leaving persisted history
// untouched. Called by the transaction service after every committed
// balance mutation. The epoch bump happens before the delete: an
// in-flight computation holding pre-commit balances cannot write them
// back afterwards, and callers arriving later compute under a fresh
// singleflight key instead of joining it.
func (e *Engine) InvalidateCache(accountID string) {
	e.mu.Lock()
	e.epochs[accountID]++
	e.mu.Unlock()
	e.store.Delete(CacheKeyPrefix + accountID)
}

func (e *Engine) currentEpoch(accountID string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epochs[accountID]
}

func (e *Engine) compute(ctx context.Context, accountID, key string, epoch uint64) (*DailyLimit, error) {
	acc, err := e.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	days := decimal.NewFromInt(int64(e.windowDays))
	dailyLimit := acc.AvailableBalance.DivRound(days, 2)
	if dailyLimit.IsNegative() {
		dailyLimit = decimal.Zero
	}

	now := time.Now()

	// Known future-dated income shortens the horizon the caller has to
	// stretch the available balance over; surfaced as informational only.
	var daysUntilNextIncome *int
	if next, err := e.transactions.NextIncomeDueDate(ctx, acc.ID, now); err != nil {
		e.log.WithError(err).WithField("account_id", accountID).Warn("failed to look up next income")
	} else if next != nil {
		d := int(next.Sub(startOfDay(now)).Hours() / 24)
		daysUntilNextIncome = &d
	}

	limit := &DailyLimit{
		AccountID:           acc.ID,
		DailyLimit:          dailyLimit,
		AvailableBalance:    acc.AvailableBalance,
		DaysConsidered:      e.windowDays,
		DaysUntilNextIncome: daysUntilNextIncome,
		CalculatedAt:        now,
	}

	row := &model.SpendingSuggestion{
		ID:                       uuid.NewString(),
		AccountID:                acc.ID,
		SuggestionDate:           now,
		ValidUntil:               endOfDay(now),
		DailyLimit:               dailyLimit,
		MonthlyProjection:        dailyLimit.Mul(days),
		AvailableBalanceSnapshot: acc.AvailableBalance,
		LockedBalanceSnapshot:    acc.LockedBalance,
		DaysConsidered:           e.windowDays,
		DaysUntilNextIncome:      daysUntilNextIncome,
	}
	if err := e.suggestions.Create(ctx, row); err != nil {
		return nil, apperr.Internal(err, "failed to persist suggestion")
	}

	if payload, err := json.Marshal(limit); err == nil {
		if e.currentEpoch(accountID) == epoch {
			e.store.Set(key, payload, e.cacheTTL)
		}
	} else {
		e.log.WithError(err).WithField("account_id", accountID).Warn("failed to cache suggestion")
	}

	return limit, nil
}

// SpentToday sums the executed variable expenses whose execution falls
// within the current day.
func (e *Engine) SpentToday(ctx context.Context, accountID string) (decimal.Decimal, error) {
	from := startOfDay(time.Now())
	to := from.AddDate(0, 0, 1)
	sum, err := e.transactions.SumExecutedVariableExpenses(ctx, accountID, from, to)
	if err != nil {
		return decimal.Zero, apperr.Internal(err, "failed to sum today's expenses")
	}
	return sum, nil
}

// LimitStatus reports today's spending against the daily limit.
type LimitStatus struct {
	AccountID      string          `json:"account_id"`
	Exceeded       bool            `json:"exceeded"`
	DailyLimit     decimal.Decimal `json:"daily_limit"`
	SpentToday     decimal.Decimal `json:"spent_today"`
	Remaining      decimal.Decimal `json:"remaining"`
	PercentageUsed decimal.Decimal `json:"percentage_used"`
}

// IsLimitExceeded compares today's executed variable expenses against the
// current daily limit. When the limit is zero, percentageUsed stays zero
// but any spending still counts as exceeded.
func (e *Engine) IsLimitExceeded(ctx context.Context, accountID string) (*LimitStatus, error) {
	limit, err := e.GetDailyLimit(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return e.StatusFor(ctx, limit)
}

// StatusFor reports today's spending against an already-fetched limit,
// sparing callers that hold one a second lookup.
func (e *Engine) StatusFor(ctx context.Context, limit *DailyLimit) (*LimitStatus, error) {
	spent, err := e.SpentToday(ctx, limit.AccountID)
	if err != nil {
		return nil, err
	}

	remaining := limit.DailyLimit.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	percentageUsed := decimal.Zero
	if limit.DailyLimit.IsPositive() {
		percentageUsed = spent.Div(limit.DailyLimit).Mul(hundred).Round(2)
		if percentageUsed.GreaterThan(hundred) {
			percentageUsed = hundred
		}
	}

	return &LimitStatus{
		AccountID:      limit.AccountID,
		Exceeded:       spent.GreaterThan(limit.DailyLimit),
		DailyLimit:     limit.DailyLimit,
		SpentToday:     spent,
		Remaining:      remaining,
		PercentageUsed: percentageUsed,
	}, nil
}

// History returns the most recent persisted suggestions, newest first,
// capped at limit (default 30).
func (e *Engine) History(ctx context.Context, accountID string, limit int) ([]model.SpendingSuggestion, error) {
	rows, err := e.suggestions.ListRecent(ctx, accountID, limit)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load suggestion history")
	}
	return rows, nil
}

var hundred = decimal.NewFromInt(100)

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}
