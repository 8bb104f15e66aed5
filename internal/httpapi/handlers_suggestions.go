package httpapi

import (
	"net/http"
	"strconv"
)

// ownedAccountID extracts account_id from the query and verifies the
// caller owns it before any suggestion work happens.
func (s *Server) ownedAccountID(w http.ResponseWriter, r *http.Request, userID string) (string, bool) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeBadRequest(w, "account_id is required")
		return "", false
	}
	if _, err := s.accounts.Get(r.Context(), userID, accountID); err != nil {
		writeError(w, err)
		return "", false
	}
	return accountID, true
}

func (s *Server) handleDailyLimit(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	accountID, ok := s.ownedAccountID(w, r, userID)
	if !ok {
		return
	}

	limit, err := s.suggestions.GetDailyLimit(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	status, err := s.suggestions.StatusFor(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id":             limit.AccountID,
		"daily_limit":            limit.DailyLimit,
		"available_balance":      limit.AvailableBalance,
		"days_considered":        limit.DaysConsidered,
		"days_until_next_income": limit.DaysUntilNextIncome,
		"spent_today":            status.SpentToday,
		"remaining":              status.Remaining,
		"percentage_used":        status.PercentageUsed,
		"exceeded":               status.Exceeded,
		"calculated_at":          limit.CalculatedAt,
	})
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	accountID, ok := s.ownedAccountID(w, r, userID)
	if !ok {
		return
	}

	limit, err := s.suggestions.Recalculate(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":           "daily limit recalculated successfully",
		"account_id":        limit.AccountID,
		"daily_limit":       limit.DailyLimit,
		"available_balance": limit.AvailableBalance,
		"calculated_at":     limit.CalculatedAt,
	})
}

func (s *Server) handleSuggestionHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	accountID, ok := s.ownedAccountID(w, r, userID)
	if !ok {
		return
	}

	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	rows, err := s.suggestions.History(r.Context(), accountID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"history":    rows,
		"total":      len(rows),
	})
}

func (s *Server) handleLimitStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	accountID, ok := s.ownedAccountID(w, r, userID)
	if !ok {
		return
	}

	status, err := s.suggestions.IsLimitExceeded(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
