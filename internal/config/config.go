package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	Rabbit     RabbitConfig
	HTTP       HTTPConfig
	Suggestion SuggestionConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RabbitConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
	Exchange string
	Queue    string
	Enabled  bool
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type SuggestionConfig struct {
	WindowDays int
	CacheTTL   time.Duration
}

func Load() *Config {
	// Optional .env for local development; real deployments set the environment.
	_ = godotenv.Load()

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	rmqPort, _ := strconv.Atoi(getEnv("RABBITMQ_PORT", "5672"))
	windowDays, _ := strconv.Atoi(getEnv("SUGGESTION_WINDOW_DAYS", "30"))
	cacheTTL, _ := strconv.Atoi(getEnv("SUGGESTION_CACHE_TTL_SECONDS", "86400"))
	shutdown, _ := strconv.Atoi(getEnv("HTTP_SHUTDOWN_TIMEOUT_SECONDS", "10"))

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ledger_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Rabbit: RabbitConfig{
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     rmqPort,
			User:     getEnv("RABBITMQ_USER", "guest"),
			Password: getEnv("RABBITMQ_PASSWORD", "guest"),
			VHost:    getEnv("RABBITMQ_VHOST", "/"),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "ledger_exchange"),
			Queue:    getEnv("RABBITMQ_QUEUE", "balance_events"),
			Enabled:  getEnv("RABBITMQ_ENABLED", "false") == "true",
		},
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: time.Duration(shutdown) * time.Second,
		},
		Suggestion: SuggestionConfig{
			WindowDays: windowDays,
			CacheTTL:   time.Duration(cacheTTL) * time.Second,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
