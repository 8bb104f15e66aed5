package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-service/internal/apperr"
	"ledger-service/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func zeroAccount() *model.Account {
	return &model.Account{
		ID:               "acc-1",
		TotalBalance:     decimal.Zero,
		AvailableBalance: decimal.Zero,
		LockedBalance:    decimal.Zero,
		EmergencyReserve: decimal.Zero,
	}
}

func TestApplyIncomeSplitsReserve(t *testing.T) {
	acc := zeroAccount()

	balances, err := ApplyIncome(acc, dec("100"), dec("30"))
	require.NoError(t, err)

	assert.True(t, balances.Reserve.Equal(dec("30")), "reserve = %s", balances.Reserve)
	assert.True(t, balances.Available.Equal(dec("70")), "available = %s", balances.Available)
	assert.True(t, balances.Total.Equal(dec("100")), "total = %s", balances.Total)
	assert.True(t, Consistent(acc))
}

func TestApplyIncomeRoundsReserveToCents(t *testing.T) {
	acc := zeroAccount()

	// 30% of 0.01 rounds to 0.00; the available share absorbs the rest.
	_, err := ApplyIncome(acc, dec("0.01"), dec("30"))
	require.NoError(t, err)

	assert.True(t, acc.EmergencyReserve.Equal(dec("0")), "reserve = %s", acc.EmergencyReserve)
	assert.True(t, acc.AvailableBalance.Equal(dec("0.01")))
	assert.True(t, Consistent(acc))
}

func TestApplyIncomeRejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []string{"0", "-10"} {
		acc := zeroAccount()
		_, err := ApplyIncome(acc, dec(amount), dec("30"))
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), "amount %s", amount)
		assert.True(t, acc.TotalBalance.IsZero())
	}
}

func TestApplyLockMovesAvailableToLocked(t *testing.T) {
	acc := zeroAccount()
	_, err := ApplyIncome(acc, dec("1000"), dec("30"))
	require.NoError(t, err)

	balances, err := ApplyLock(acc, dec("200"))
	require.NoError(t, err)

	assert.True(t, balances.Available.Equal(dec("500")))
	assert.True(t, balances.Locked.Equal(dec("200")))
	assert.True(t, balances.Total.Equal(dec("1000")), "total unchanged by lock")
	assert.True(t, Consistent(acc))
}

func TestApplyLockInsufficientBalance(t *testing.T) {
	acc := zeroAccount()
	_, err := ApplyIncome(acc, dec("100"), dec("30"))
	require.NoError(t, err)

	_, err = ApplyLock(acc, dec("71"))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInsufficientBalance))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.Available.Equal(dec("70")))
	assert.True(t, appErr.Required.Equal(dec("71")))

	// Failed lock must not move anything.
	assert.True(t, acc.AvailableBalance.Equal(dec("70")))
	assert.True(t, acc.LockedBalance.IsZero())
}

func TestApplyDebitReducesTotalAndAvailable(t *testing.T) {
	acc := zeroAccount()
	_, err := ApplyIncome(acc, dec("1000"), dec("30"))
	require.NoError(t, err)

	balances, err := ApplyDebit(acc, dec("100"))
	require.NoError(t, err)

	assert.True(t, balances.Total.Equal(dec("900")))
	assert.True(t, balances.Available.Equal(dec("600")))
	assert.True(t, balances.Reserve.Equal(dec("300")), "reserve untouched by debit")
	assert.True(t, Consistent(acc))
}

func TestApplyDebitCannotTouchReserveOrLocked(t *testing.T) {
	acc := zeroAccount()
	_, err := ApplyIncome(acc, dec("100"), dec("30"))
	require.NoError(t, err)

	// 70 available; reserve holds 30 more, but debits only see available.
	_, err = ApplyDebit(acc, dec("80"))
	assert.True(t, apperr.IsKind(err, apperr.KindInsufficientBalance))
}

func TestApplyUnlockRoundTrip(t *testing.T) {
	acc := zeroAccount()
	_, err := ApplyIncome(acc, dec("1000"), dec("30"))
	require.NoError(t, err)

	before := acc.Snapshot()
	_, err = ApplyLock(acc, dec("250"))
	require.NoError(t, err)
	after, err := ApplyUnlock(acc, dec("250"))
	require.NoError(t, err)

	assert.True(t, after.Available.Equal(before.Available))
	assert.True(t, after.Locked.Equal(before.Locked))
	assert.True(t, after.Total.Equal(before.Total))
	assert.True(t, Consistent(acc))
}

func TestApplyUnlockRejectsMoreThanLocked(t *testing.T) {
	acc := zeroAccount()
	_, err := ApplyIncome(acc, dec("1000"), dec("30"))
	require.NoError(t, err)
	_, err = ApplyLock(acc, dec("100"))
	require.NoError(t, err)

	_, err = ApplyUnlock(acc, dec("150"))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.True(t, acc.LockedBalance.Equal(dec("100")))
}

func TestApplyExecuteLockSettlesLockedAmount(t *testing.T) {
	acc := zeroAccount()
	_, err := ApplyIncome(acc, dec("1000"), dec("30"))
	require.NoError(t, err)
	_, err = ApplyLock(acc, dec("200"))
	require.NoError(t, err)

	balances, err := ApplyExecuteLock(acc, dec("200"))
	require.NoError(t, err)

	assert.True(t, balances.Total.Equal(dec("800")))
	assert.True(t, balances.Locked.IsZero())
	assert.True(t, balances.Available.Equal(dec("500")), "available untouched by execution")
	assert.True(t, Consistent(acc))
}

func TestInvariantHoldsAcrossOperationChain(t *testing.T) {
	acc := zeroAccount()

	steps := []func() error{
		func() error { _, err := ApplyIncome(acc, dec("1000"), dec("30")); return err },
		func() error { _, err := ApplyLock(acc, dec("200")); return err },
		func() error { _, err := ApplyDebit(acc, dec("100")); return err },
		func() error { _, err := ApplyUnlock(acc, dec("200")); return err },
		func() error { _, err := ApplyIncome(acc, dec("33.33"), dec("25")); return err },
		func() error { _, err := ApplyDebit(acc, dec("0.01")); return err },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		require.True(t, Consistent(acc), "invariant broken after step %d", i)
	}
}

func TestConsistentDetectsDrift(t *testing.T) {
	acc := zeroAccount()
	acc.TotalBalance = dec("100")
	acc.AvailableBalance = dec("50")
	assert.False(t, Consistent(acc))

	acc.LockedBalance = dec("50")
	assert.True(t, Consistent(acc))

	acc.AvailableBalance = dec("-10")
	acc.LockedBalance = dec("110")
	assert.False(t, Consistent(acc), "negative compartment must fail")
}
