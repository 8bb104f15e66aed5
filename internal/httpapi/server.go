package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ledger-service/internal/service"
	"ledger-service/internal/suggestion"
)

// Server is the thin JSON request layer over the ledger services. It
// parses requests, resolves the caller identity and translates errors;
// all business rules live in the services.
type Server struct {
	accounts     *service.AccountService
	transactions *service.TransactionService
	suggestions  *suggestion.Engine
	log          *logrus.Logger

	httpServer *http.Server
}

func NewServer(
	addr string,
	accounts *service.AccountService,
	transactions *service.TransactionService,
	suggestions *suggestion.Engine,
	log *logrus.Logger,
) *Server {
	s := &Server{
		accounts:     accounts,
		transactions: transactions,
		suggestions:  suggestions,
		log:          log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/accounts", s.handleAccounts)
	mux.HandleFunc("/api/v1/accounts/", s.handleAccountByID)
	mux.HandleFunc("/api/v1/transactions", s.handleListTransactions)
	mux.HandleFunc("/api/v1/transactions/income", s.handleCreateIncome)
	mux.HandleFunc("/api/v1/transactions/fixed-expense", s.handleCreateFixedExpense)
	mux.HandleFunc("/api/v1/transactions/variable-expense", s.handleCreateVariableExpense)
	mux.HandleFunc("/api/v1/transactions/", s.handleTransactionByID)
	mux.HandleFunc("/api/v1/suggestions/daily-limit", s.handleDailyLimit)
	mux.HandleFunc("/api/v1/suggestions/recalculate", s.handleRecalculate)
	mux.HandleFunc("/api/v1/suggestions/history", s.handleSuggestionHistory)
	mux.HandleFunc("/api/v1/suggestions/limit-status", s.handleLimitStatus)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.withRequestLog(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("http server listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// callerID resolves the authenticated user from the request. The identity
// is established upstream; this layer trusts the forwarded header.
func (s *Server) callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "missing caller identity"})
		return "", false
	}
	return userID, true
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("request handled")
	})
}
