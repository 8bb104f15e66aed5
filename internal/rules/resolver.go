// Package rules resolves the financial rules applied when money enters
// an account. The resolver only reads rule rows; rule lifecycle is owned
// by the account service.
package rules

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"ledger-service/internal/model"
	"ledger-service/internal/repository"
)

// DefaultReservePercentage applies when an account has no active
// emergency_reserve rule.
var DefaultReservePercentage = decimal.NewFromInt(30)

type Resolver struct {
	rules *repository.RuleRepository
}

func NewResolver(rules *repository.RuleRepository) *Resolver {
	return &Resolver{rules: rules}
}

// ReservePercentage returns the percentage of the highest-precedence
// active emergency_reserve rule for the account, or the default when no
// such rule exists.
func (r *Resolver) ReservePercentage(ctx context.Context, accountID string) (decimal.Decimal, error) {
	active, err := r.rules.ActiveByAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch active rules: %w", err)
	}

	for _, rule := range active {
		if rule.RuleType == model.RuleTypeEmergencyReserve {
			return rule.Percentage, nil
		}
	}
	return DefaultReservePercentage, nil
}
