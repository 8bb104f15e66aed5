package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"ledger-service/internal/service"
)

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		accounts, err := s.accounts.ListByUser(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"accounts": accounts,
			"total":    len(accounts),
		})
	case http.MethodPost:
		var body struct {
			Name        string `json:"account_name"`
			AccountType string `json:"account_type"`
			Currency    string `json:"currency"`
			IsDefault   bool   `json:"is_default"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
		account, err := s.accounts.Create(r.Context(), userID, service.CreateAccountInput{
			Name:        body.Name,
			AccountType: body.AccountType,
			Currency:    body.Currency,
			IsDefault:   body.IsDefault,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, account)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleAccountByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/accounts/")
	if rest == "" || strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}

	if rest == "default" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, "GET")
			return
		}
		account, err := s.accounts.GetDefault(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, account)
		return
	}

	switch r.Method {
	case http.MethodGet:
		detail, err := s.accounts.Get(r.Context(), userID, rest)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	case http.MethodDelete:
		if err := s.accounts.Delete(r.Context(), userID, rest); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "account deleted successfully"})
	default:
		methodNotAllowed(w, "GET, DELETE")
	}
}
