package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name      string `envconfig:"APP_NAME" default:"consignado"`
		Port      int    `envconfig:"PORT" default:"8080"`
		LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
		LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"consignado"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	RabbitMQ struct {
		// Empty URL selects the in-process queue.
		URL      string `envconfig:"RABBITMQ_URL"`
		Exchange string `envconfig:"RABBITMQ_EXCHANGE" default:"consignado"`
		Prefetch int    `envconfig:"RABBITMQ_PREFETCH" default:"4"`
	}

	Redis struct {
		// Empty URL disables the statistics cache.
		URL      string        `envconfig:"REDIS_URL"`
		StatsTTL time.Duration `envconfig:"REDIS_STATS_TTL" default:"15s"`
		Prefix   string        `envconfig:"REDIS_KEY_PREFIX" default:"consignado:stats"`
	}

	Scheduler struct {
		// Empty disables scheduled dispatch.
		DispatchCron    string        `envconfig:"SCHEDULER_DISPATCH_CRON"`
		DispatchTimeout time.Duration `envconfig:"SCHEDULER_DISPATCH_TIMEOUT" default:"2m"`
	}

	Reconciliation struct {
		Attempts    int           `envconfig:"RECONCILIATION_ATTEMPTS" default:"3"`
		Backoff     time.Duration `envconfig:"RECONCILIATION_BACKOFF" default:"5s"`
		Concurrency int           `envconfig:"RECONCILIATION_CONCURRENCY" default:"4"`
		// QueueBuffer bounds the in-process queue; Enqueue blocks once it is full.
		QueueBuffer int           `envconfig:"RECONCILIATION_QUEUE_BUFFER" default:"1024"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.Reconciliation.Attempts < 1 {
		return nil, fmt.Errorf("RECONCILIATION_ATTEMPTS must be at least 1, got %d", cfg.Reconciliation.Attempts)
	}

	return &cfg, nil
}

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.App.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)).With("app", c.App.Name)
	}

	return slog.New(slog.NewTextHandler(w, opts)).With("app", c.App.Name)
}
