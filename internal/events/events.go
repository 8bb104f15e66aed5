package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger-service/internal/model"
)

// BalanceChangedEvent is published after every committed balance
// mutation. Consumers get the post-mutation compartments plus the account
// version so they can discard stale deliveries.
type BalanceChangedEvent struct {
	EventID          string          `json:"event_id"`
	AccountID        string          `json:"account_id"`
	TransactionID    string          `json:"transaction_id"`
	Reason           string          `json:"reason"`
	TotalBalance     decimal.Decimal `json:"total_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	LockedBalance    decimal.Decimal `json:"locked_balance"`
	EmergencyReserve decimal.Decimal `json:"emergency_reserve"`
	Version          uint            `json:"version"`
	Timestamp        time.Time       `json:"timestamp"`
}

// NewBalanceChangedEvent builds an event from a committed mutation.
func NewBalanceChangedEvent(accountID, transactionID, reason string, balances model.Balances, version uint) *BalanceChangedEvent {
	return &BalanceChangedEvent{
		EventID:          uuid.NewString(),
		AccountID:        accountID,
		TransactionID:    transactionID,
		Reason:           reason,
		TotalBalance:     balances.Total,
		AvailableBalance: balances.Available,
		LockedBalance:    balances.Locked,
		EmergencyReserve: balances.Reserve,
		Version:          version,
		Timestamp:        time.Now(),
	}
}

func (e *BalanceChangedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func BalanceChangedEventFromJSON(data []byte) (*BalanceChangedEvent, error) {
	var event BalanceChangedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
