package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ledger-service/internal/cache"
	"ledger-service/internal/config"
	"ledger-service/internal/database"
	"ledger-service/internal/events"
	"ledger-service/internal/httpapi"
	"ledger-service/internal/logger"
	"ledger-service/internal/repository"
	"ledger-service/internal/service"
	"ledger-service/internal/suggestion"
)

func main() {
	log := logger.New()
	cfg := config.Load()

	// Initialize database
	db, err := database.New(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	sqlDB, _ := db.DB.DB()
	defer sqlDB.Close()

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db.DB, log)
	ruleRepo := repository.NewRuleRepository(db.DB, log)
	transactionRepo := repository.NewTransactionRepository(db.DB, log)
	historyRepo := repository.NewHistoryRepository(db.DB, log)
	suggestionRepo := repository.NewSuggestionRepository(db.DB, log)

	// Suggestion cache with periodic expiry sweep
	store := cache.NewMemoryStore()
	store.StartSweep(time.Minute)
	defer store.StopSweep()

	engine := suggestion.NewEngine(
		accountRepo,
		suggestionRepo,
		transactionRepo,
		store,
		cfg.Suggestion.WindowDays,
		cfg.Suggestion.CacheTTL,
		log,
	)

	// Optional balance-event publisher
	var publisher service.EventPublisher
	if cfg.Rabbit.Enabled {
		p, err := events.NewPublisher(cfg.Rabbit, log)
		if err != nil {
			log.WithError(err).Fatal("failed to initialize RabbitMQ publisher")
		}
		defer p.Close()
		publisher = p
	}

	accountService := service.NewAccountService(db.DB, accountRepo, ruleRepo, transactionRepo, log)
	transactionService := service.NewTransactionService(
		db.DB,
		accountRepo,
		ruleRepo,
		transactionRepo,
		historyRepo,
		engine,
		publisher,
		log,
	)

	server := httpapi.NewServer(cfg.HTTP.Addr, accountService, transactionService, engine, log)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("http server shutdown failed")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server stopped unexpectedly")
		}
	}

	log.Info("graceful shutdown complete")
}
