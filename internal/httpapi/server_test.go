package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-service/internal/cache"
	"ledger-service/internal/logger"
	"ledger-service/internal/model"
	"ledger-service/internal/repository"
	"ledger-service/internal/service"
	"ledger-service/internal/suggestion"
	"ledger-service/internal/testdb"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := testdb.New(t)
	log := logger.New()

	accountRepo := repository.NewAccountRepository(db, log)
	ruleRepo := repository.NewRuleRepository(db, log)
	transactionRepo := repository.NewTransactionRepository(db, log)
	historyRepo := repository.NewHistoryRepository(db, log)
	suggestionRepo := repository.NewSuggestionRepository(db, log)

	store := cache.NewMemoryStore()
	engine := suggestion.NewEngine(accountRepo, suggestionRepo, transactionRepo, store, 30, time.Hour, log)

	accounts := service.NewAccountService(db, accountRepo, ruleRepo, transactionRepo, log)
	transactions := service.NewTransactionService(db, accountRepo, ruleRepo, transactionRepo, historyRepo, engine, nil, log)

	srv := NewServer(":0", accounts, transactions, engine, log)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, userID string, body interface{}) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func createAccountHTTP(t *testing.T, ts *httptest.Server, userID string) string {
	t.Helper()
	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/accounts", userID, map[string]interface{}{
		"account_name": "main",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var id string
	require.NoError(t, json.Unmarshal(body["id"], &id))
	require.NotEmpty(t, id)
	return id
}

func decField(t *testing.T, raw json.RawMessage) decimal.Decimal {
	t.Helper()
	var d decimal.Decimal
	require.NoError(t, json.Unmarshal(raw, &d))
	return d
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodGet, "/api/v1/accounts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body["error"]), "unauthorized")
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `"ok"`, string(body["status"]))
}

func TestCreateAccountSeedsReserveRule(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.NewString()
	accountID := createAccountHTTP(t, ts, userID)

	resp, body := doJSON(t, ts, http.MethodGet, "/api/v1/accounts/"+accountID, userID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rules []model.FinancialRule
	require.NoError(t, json.Unmarshal(body["financial_rules"], &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, model.RuleTypeEmergencyReserve, rules[0].RuleType)
	assert.True(t, rules[0].Percentage.Equal(decimal.NewFromInt(30)))
}

func TestCreateAccountValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/accounts", uuid.NewString(), map[string]interface{}{
		"account_name": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIncomeFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.NewString()
	accountID := createAccountHTTP(t, ts, userID)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/transactions/income", userID, map[string]interface{}{
		"account_id":  accountID,
		"amount":      "1000",
		"description": "salary",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var breakdown struct {
		EmergencyReserve decimal.Decimal `json:"emergency_reserve"`
		Available        decimal.Decimal `json:"available"`
	}
	require.NoError(t, json.Unmarshal(body["breakdown"], &breakdown))
	assert.True(t, breakdown.EmergencyReserve.Equal(decimal.NewFromInt(300)))
	assert.True(t, breakdown.Available.Equal(decimal.NewFromInt(700)))
}

func TestInsufficientBalanceMapsTo422(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.NewString()
	accountID := createAccountHTTP(t, ts, userID)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/transactions/variable-expense", userID, map[string]interface{}{
		"account_id": accountID,
		"amount":     "50",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body["error"]), "insufficient_balance")
}

func TestForeignAccountMapsTo403(t *testing.T) {
	ts := newTestServer(t)
	owner := uuid.NewString()
	accountID := createAccountHTTP(t, ts, owner)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/transactions/income", uuid.NewString(), map[string]interface{}{
		"account_id": accountID,
		"amount":     "100",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUnknownTransactionMapsTo404(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.NewString()
	createAccountHTTP(t, ts, userID)

	resp, _ := doJSON(t, ts, http.MethodGet, "/api/v1/transactions/"+uuid.NewString(), userID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFixedExpenseLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.NewString()
	accountID := createAccountHTTP(t, ts, userID)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/transactions/income", userID, map[string]interface{}{
		"account_id": accountID,
		"amount":     "1000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/transactions/fixed-expense", userID, map[string]interface{}{
		"account_id": accountID,
		"amount":     "200",
		"due_date":   time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var txn model.Transaction
	require.NoError(t, json.Unmarshal(body["transaction"], &txn))
	assert.Equal(t, model.TransactionStatusLocked, txn.Status)

	resp, body = doJSON(t, ts, http.MethodPost, "/api/v1/transactions/"+txn.ID+"/execute", userID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body["transaction"], &txn))
	assert.Equal(t, model.TransactionStatusExecuted, txn.Status)

	// Executed transactions cannot be deleted.
	resp, _ = doJSON(t, ts, http.MethodDelete, "/api/v1/transactions/"+txn.ID, userID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteLockedExpenseOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.NewString()
	accountID := createAccountHTTP(t, ts, userID)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/transactions/income", userID, map[string]interface{}{
		"account_id": accountID,
		"amount":     "1000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/transactions/fixed-expense", userID, map[string]interface{}{
		"account_id": accountID,
		"amount":     "250",
		"due_date":   time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var txn model.Transaction
	require.NoError(t, json.Unmarshal(body["transaction"], &txn))

	resp, body = doJSON(t, ts, http.MethodDelete, "/api/v1/transactions/"+txn.ID, userID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var balances model.Balances
	require.NoError(t, json.Unmarshal(body["account_balances"], &balances))
	assert.True(t, balances.Available.Equal(decimal.NewFromInt(700)))
	assert.True(t, balances.Locked.IsZero())
}

func TestDailyLimitOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.NewString()
	accountID := createAccountHTTP(t, ts, userID)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/transactions/income", userID, map[string]interface{}{
		"account_id": accountID,
		"amount":     "1000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodGet, "/api/v1/suggestions/daily-limit?account_id="+accountID, userID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decField(t, body["daily_limit"]).Equal(decimal.RequireFromString("23.33")), "700 / 30")
	assert.True(t, decField(t, body["available_balance"]).Equal(decimal.NewFromInt(700)))

	// Another mutation invalidates the cache; the next read is fresh.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/v1/transactions/variable-expense", userID, map[string]interface{}{
		"account_id": accountID,
		"amount":     "100",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = doJSON(t, ts, http.MethodGet, "/api/v1/suggestions/daily-limit?account_id="+accountID, userID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decField(t, body["daily_limit"]).Equal(decimal.NewFromInt(20)), "600 / 30")
	assert.True(t, decField(t, body["spent_today"]).Equal(decimal.NewFromInt(100)))
	assert.JSONEq(t, "true", string(body["exceeded"]))
}

func TestSuggestionEndpointsRejectForeignAccount(t *testing.T) {
	ts := newTestServer(t)
	owner := uuid.NewString()
	accountID := createAccountHTTP(t, ts, owner)

	intruder := uuid.NewString()
	for _, path := range []string{
		"/api/v1/suggestions/daily-limit?account_id=" + accountID,
		"/api/v1/suggestions/history?account_id=" + accountID,
		"/api/v1/suggestions/limit-status?account_id=" + accountID,
	} {
		resp, _ := doJSON(t, ts, http.MethodGet, path, intruder, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/suggestions/recalculate?account_id="+accountID, intruder, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestParseDueDateDateOnlyIsLocal(t *testing.T) {
	got, ok := parseDueDate("2026-03-01")
	require.True(t, ok)
	require.NotNil(t, got)
	assert.True(t, got.Equal(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.Local)))

	rfc, ok := parseDueDate("2026-03-01T10:30:00Z")
	require.True(t, ok)
	require.NotNil(t, rfc)
	assert.True(t, rfc.Equal(time.Date(2026, time.March, 1, 10, 30, 0, 0, time.UTC)))

	_, ok = parseDueDate("03/01/2026")
	assert.False(t, ok)
}

func TestFixedExpenseDueTodayDateOnly(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.NewString()
	accountID := createAccountHTTP(t, ts, userID)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/transactions/income", userID, map[string]interface{}{
		"account_id": accountID,
		"amount":     "1000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// A date-only due date naming the current local day is not "in the
	// past", regardless of how the server clock relates to UTC.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/v1/transactions/fixed-expense", userID, map[string]interface{}{
		"account_id": accountID,
		"amount":     "200",
		"due_date":   time.Now().Format("2006-01-02"),
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	userID := uuid.NewString()

	resp, _ := doJSON(t, ts, http.MethodPut, "/api/v1/transactions/income", userID, map[string]interface{}{})
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "POST", resp.Header.Get("Allow"))
}
