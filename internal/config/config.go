// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting. DB_DSN and REDIS_ADDR are optional:
// without DB_DSN the engine keeps its state in memory, and REDIS_ADDR moves
// the reaction ledger to Redis.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8083"`
	DatabaseDSN     string        `env:"DB_DSN"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	AMQPURL         string        `env:"AMQP_URL"`
	AMQPExchange    string        `env:"AMQP_EXCHANGE" envDefault:"chat.events"`
	AuditRoutingKey string        `env:"AUDIT_ROUTING_KEY" envDefault:"audit.chat"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"realtime-chat"`
	Environment     string        `env:"APP_ENV" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT" envDefault:"2s"`
	HistoryLimit    int           `env:"HISTORY_LIMIT" envDefault:"100"`
	MaxMessageLen   int           `env:"MAX_MESSAGE_LENGTH" envDefault:"2000"`
	EventRate       float64       `env:"WS_EVENT_RATE" envDefault:"20"`
	EventBurst      int           `env:"WS_EVENT_BURST" envDefault:"40"`
	SendBuffer      int           `env:"WS_SEND_BUFFER" envDefault:"256"`
	TypingTTL       time.Duration `env:"TYPING_TTL" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	DebugRoutes     bool          `env:"DEBUG_ROUTES" envDefault:"false"`
}

// Load reads an optional .env file and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.StoreTimeout <= 0 {
		return errors.New("STORE_TIMEOUT must be positive")
	}
	if c.HistoryLimit <= 0 {
		return errors.New("HISTORY_LIMIT must be positive")
	}
	if c.MaxMessageLen <= 0 {
		return errors.New("MAX_MESSAGE_LENGTH must be positive")
	}
	if c.EventRate <= 0 || c.EventBurst <= 0 {
		return errors.New("WS_EVENT_RATE and WS_EVENT_BURST must be positive")
	}
	if c.SendBuffer <= 0 {
		return errors.New("WS_SEND_BUFFER must be positive")
	}
	if c.TypingTTL <= 0 || c.ShutdownTimeout <= 0 {
		return errors.New("TYPING_TTL and SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// Backend names the storage the engine will use.
func (c Config) Backend() string {
	if c.DatabaseDSN == "" {
		return "memory"
	}
	return "postgres"
}
