package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger-service/internal/repository"
	"ledger-service/internal/service"
)

type transactionBody struct {
	AccountID         string          `json:"account_id"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description"`
	CategoryID        string          `json:"category_id"`
	DueDate           string          `json:"due_date"`
	IsRecurring       bool            `json:"is_recurring"`
	RecurrencePattern string          `json:"recurrence_pattern"`
}

func parseDueDate(value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	// Date-only values mean "that calendar day here", not UTC midnight;
	// the service compares due dates against local start-of-day.
	if t, err := time.ParseInLocation("2006-01-02", value, time.Local); err == nil {
		return &t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, true
	}
	return nil, false
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var body transactionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	dueDate, ok := parseDueDate(body.DueDate)
	if !ok {
		writeBadRequest(w, "invalid due_date")
		return
	}

	result, err := s.transactions.ProcessIncome(r.Context(), userID, service.CreateIncomeInput{
		AccountID:         body.AccountID,
		Amount:            body.Amount,
		Description:       body.Description,
		CategoryID:        body.CategoryID,
		DueDate:           dueDate,
		IsRecurring:       body.IsRecurring,
		RecurrencePattern: body.RecurrencePattern,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleCreateFixedExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var body transactionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	dueDate, ok := parseDueDate(body.DueDate)
	if !ok || dueDate == nil {
		writeBadRequest(w, "due_date is required")
		return
	}

	result, err := s.transactions.CreateFixedExpense(r.Context(), userID, service.CreateFixedExpenseInput{
		AccountID:         body.AccountID,
		Amount:            body.Amount,
		Description:       body.Description,
		CategoryID:        body.CategoryID,
		DueDate:           *dueDate,
		IsRecurring:       body.IsRecurring,
		RecurrencePattern: body.RecurrencePattern,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleCreateVariableExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var body transactionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	result, err := s.transactions.CreateVariableExpense(r.Context(), userID, service.CreateVariableExpenseInput{
		AccountID:   body.AccountID,
		Amount:      body.Amount,
		Description: body.Description,
		CategoryID:  body.CategoryID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	q := r.URL.Query()
	filter := repository.ListFilter{
		Type:       q.Get("type"),
		Status:     q.Get("status"),
		CategoryID: q.Get("category_id"),
	}
	if accountID := q.Get("account_id"); accountID != "" {
		filter.AccountIDs = []string{accountID}
	}
	if v := q.Get("start_date"); v != "" {
		if t, ok := parseDueDate(v); ok && t != nil {
			filter.StartDate = t
		}
	}
	if v := q.Get("end_date"); v != "" {
		if t, ok := parseDueDate(v); ok && t != nil {
			filter.EndDate = t
		}
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	page, err := s.transactions.List(r.Context(), userID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/transactions/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	if id, found := strings.CutSuffix(rest, "/execute"); found {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, "POST")
			return
		}
		result, err := s.transactions.ExecuteFixedExpense(r.Context(), userID, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	if strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		txn, err := s.transactions.GetByID(r.Context(), userID, rest)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, txn)
	case http.MethodDelete:
		result, err := s.transactions.Delete(r.Context(), userID, rest)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":          "transaction deleted successfully",
			"transaction":      result.Transaction,
			"account_balances": result.Balances,
		})
	default:
		methodNotAllowed(w, "GET, DELETE")
	}
}
