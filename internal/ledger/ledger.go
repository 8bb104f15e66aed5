// Package ledger implements the balance mutation primitives for an account.
// Every primitive mutates the account in memory only; the caller persists
// the result inside the same database transaction as the triggering
// transaction row and history snapshot.
package ledger

import (
	"github.com/shopspring/decimal"

	"ledger-service/internal/apperr"
	"ledger-service/internal/model"
)

var hundred = decimal.NewFromInt(100)

// ApplyIncome credits amount to the account, ring-fencing reservePct
// percent into the emergency reserve. The reserve share is rounded to
// cents; the available share absorbs the remainder so the compartments
// always add up to the credited amount exactly.
func ApplyIncome(acc *model.Account, amount, reservePct decimal.Decimal) (model.Balances, error) {
	if !amount.IsPositive() {
		return model.Balances{}, apperr.Validation("amount must be positive")
	}

	reserveAmount := amount.Mul(reservePct).DivRound(hundred, 2)
	availableAmount := amount.Sub(reserveAmount)

	acc.TotalBalance = acc.TotalBalance.Add(amount)
	acc.EmergencyReserve = acc.EmergencyReserve.Add(reserveAmount)
	acc.AvailableBalance = acc.AvailableBalance.Add(availableAmount)

	return acc.Snapshot(), nil
}

// ApplyLock moves amount from available to locked, failing when available
// funds do not cover it. Total is unchanged.
func ApplyLock(acc *model.Account, amount decimal.Decimal) (model.Balances, error) {
	if !amount.IsPositive() {
		return model.Balances{}, apperr.Validation("amount must be positive")
	}
	if acc.AvailableBalance.LessThan(amount) {
		return model.Balances{}, apperr.InsufficientBalance(acc.AvailableBalance, amount)
	}

	acc.AvailableBalance = acc.AvailableBalance.Sub(amount)
	acc.LockedBalance = acc.LockedBalance.Add(amount)

	return acc.Snapshot(), nil
}

// ApplyDebit removes amount from the account immediately, failing when
// available funds do not cover it.
func ApplyDebit(acc *model.Account, amount decimal.Decimal) (model.Balances, error) {
	if !amount.IsPositive() {
		return model.Balances{}, apperr.Validation("amount must be positive")
	}
	if acc.AvailableBalance.LessThan(amount) {
		return model.Balances{}, apperr.InsufficientBalance(acc.AvailableBalance, amount)
	}

	acc.TotalBalance = acc.TotalBalance.Sub(amount)
	acc.AvailableBalance = acc.AvailableBalance.Sub(amount)

	return acc.Snapshot(), nil
}

// ApplyUnlock releases a previous lock, moving amount from locked back to
// available. Used when a locked transaction is cancelled or deleted.
func ApplyUnlock(acc *model.Account, amount decimal.Decimal) (model.Balances, error) {
	if !amount.IsPositive() {
		return model.Balances{}, apperr.Validation("amount must be positive")
	}
	if acc.LockedBalance.LessThan(amount) {
		return model.Balances{}, apperr.Validation("unlock amount exceeds locked balance")
	}

	acc.AvailableBalance = acc.AvailableBalance.Add(amount)
	acc.LockedBalance = acc.LockedBalance.Sub(amount)

	return acc.Snapshot(), nil
}

// ApplyExecuteLock settles a previously locked amount: the money finally
// leaves the account, so both locked and total decrease. Available and
// reserve are untouched since available was already reduced at lock time.
func ApplyExecuteLock(acc *model.Account, amount decimal.Decimal) (model.Balances, error) {
	if !amount.IsPositive() {
		return model.Balances{}, apperr.Validation("amount must be positive")
	}
	if acc.LockedBalance.LessThan(amount) {
		return model.Balances{}, apperr.Validation("execute amount exceeds locked balance")
	}

	acc.TotalBalance = acc.TotalBalance.Sub(amount)
	acc.LockedBalance = acc.LockedBalance.Sub(amount)

	return acc.Snapshot(), nil
}

// Consistent reports whether the account satisfies
// total == available + locked + reserve with all compartments non-negative.
func Consistent(acc *model.Account) bool {
	sum := acc.AvailableBalance.Add(acc.LockedBalance).Add(acc.EmergencyReserve)
	if !acc.TotalBalance.Equal(sum) {
		return false
	}
	return !acc.TotalBalance.IsNegative() &&
		!acc.AvailableBalance.IsNegative() &&
		!acc.LockedBalance.IsNegative() &&
		!acc.EmergencyReserve.IsNegative()
}
