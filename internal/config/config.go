// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration shared by the server and the historian.
type Config struct {
	Port     string `env:"PORT"      envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// DatabaseURL wins over the individual Postgres fields when set.
	DatabaseURL      string `env:"DATABASE_URL"`
	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PGHost           string `env:"PG_HOST"     envDefault:"localhost"`
	PGPort           string `env:"PG_PORT"     envDefault:"5432"`
	PGDatabase       string `env:"PG_DATABASE"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `env:"REDIS_DB"   envDefault:"0"`

	HistorianQueue      string        `env:"HISTORIAN_QUEUE_NAME"        envDefault:"zionscheck_actions"`
	HistorianBatchSize  int           `env:"HISTORIAN_BATCH_SIZE"        envDefault:"20"`
	HistorianFlushMs    int           `env:"HISTORIAN_FLUSH_MS"          envDefault:"500"`
	InactivityTimeout   time.Duration `env:"GAME_INACTIVITY_TIMEOUT"     envDefault:"10m"`
	SessionIdleTimeout  time.Duration `env:"SESSION_IDLE_TIMEOUT"        envDefault:"30m"`
	JanitorInterval     time.Duration `env:"SESSION_JANITOR_INTERVAL"    envDefault:"1m"`
	TurnTimerSec        int           `env:"TURN_TIMER_SEC"              envDefault:"0"`
	MaxPlayers          int           `env:"MAX_PLAYERS"                 envDefault:"6"`
	TokenExpireTime     string        `env:"TOKEN_EXPIRE_TIME"           envDefault:"never"`
	PrivateKeyPath      string        `env:"ED25519_PRIVATE_KEY_PATH"`
	PublicKeyPath       string        `env:"ED25519_PUBLIC_KEY_PATH"`
	DisablePersistence  bool          `env:"DISABLE_PERSISTENCE"         envDefault:"false"`
	DisableActionLogger bool          `env:"DISABLE_ACTION_LOG"          envDefault:"false"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges the environment parser cannot express.
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.MaxPlayers < 2 || c.MaxPlayers > 6 {
		return fmt.Errorf("MAX_PLAYERS must be between 2 and 6, got %d", c.MaxPlayers)
	}
	if c.TurnTimerSec < 0 {
		return fmt.Errorf("TURN_TIMER_SEC must not be negative")
	}
	if c.HistorianBatchSize <= 0 || c.HistorianFlushMs <= 0 {
		return fmt.Errorf("HISTORIAN_BATCH_SIZE and HISTORIAN_FLUSH_MS must be positive")
	}
	return nil
}

// PostgresURL returns DatabaseURL, or a URL assembled from the individual PG settings.
func (c Config) PostgresURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   c.PGHost + ":" + c.PGPort,
		Path:   "/" + c.PGDatabase,
	}
	return u.String()
}

// HistorianFlushInterval is HistorianFlushMs as a duration.
func (c Config) HistorianFlushInterval() time.Duration {
	return time.Duration(c.HistorianFlushMs) * time.Millisecond
}

// NewLogger builds the process logger at the configured level.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
