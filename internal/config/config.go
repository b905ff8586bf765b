// Package config reads runtime settings from the environment. A .env file in the working
// directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	BotToken string
	AdminID  int64

	DBPath      string
	CatalogPath string

	QuestionDelay      time.Duration
	StoreTimeout       time.Duration
	SendTimeout        time.Duration
	MaxConflictRetries int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	UpdatesChannelURL string
}

const (
	DefaultDBPath             = "quest.db"
	DefaultCatalogPath        = "catalog.yaml"
	DefaultQuestionDelay      = time.Second
	DefaultStoreTimeout       = 5 * time.Second
	DefaultSendTimeout        = 15 * time.Second
	DefaultMaxConflictRetries = 3
	DefaultLockTTL            = 30 * time.Second
)

// FromEnv reads every setting, applying defaults. It does not require the bot credentials,
// so operator tools can share it.
func FromEnv() (*Config, error) {
	cfg := &Config{
		BotToken:          os.Getenv("BOT_TOKEN"),
		DBPath:            getEnv("DB_PATH", DefaultDBPath),
		CatalogPath:       getEnv("CATALOG_PATH", DefaultCatalogPath),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		UpdatesChannelURL: os.Getenv("UPDATES_CHANNEL_URL"),
	}

	var errs []error
	var err error

	if v := os.Getenv("ADMIN_ID"); v != "" {
		if cfg.AdminID, err = strconv.ParseInt(v, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("invalid ADMIN_ID: %w", err))
		}
	}
	if cfg.QuestionDelay, err = getDuration("QUESTION_DELAY", DefaultQuestionDelay); err != nil {
		errs = append(errs, err)
	}
	if cfg.StoreTimeout, err = getDuration("STORE_TIMEOUT", DefaultStoreTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.SendTimeout, err = getDuration("SEND_TIMEOUT", DefaultSendTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.LockTTL, err = getDuration("LOCK_TTL", DefaultLockTTL); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxConflictRetries, err = getInt("MAX_CONFLICT_RETRIES", DefaultMaxConflictRetries); err != nil {
		errs = append(errs, err)
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		errs = append(errs, err)
	}

	if cfg.MaxConflictRetries < 1 {
		errs = append(errs, errors.New("MAX_CONFLICT_RETRIES must be at least 1"))
	}
	if cfg.QuestionDelay < 0 {
		errs = append(errs, errors.New("QUESTION_DELAY must not be negative"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Load is FromEnv plus the settings the bot cannot start without.
func Load() (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN environment variable is required")
	}
	if cfg.AdminID == 0 {
		return nil, errors.New("ADMIN_ID environment variable is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration accepts Go duration strings ("1500ms") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
