package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"divan_bot/internal/logger"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	AppPort          string
	DatabaseURL      string
	StorageAdapter   string
	BotToken         string
	BotUsername      string
	BotEnabled       bool
	ChannelID        int64
	AdminTelegramIDs []int64
	JWTSecret        string
	AllowedOrigin    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogJSON  bool
	Location *time.Location

	// Point caps
	DailyCap      int64
	WeeklyCap     int64
	CappedActions []string
	CapPolicy     string

	OpTimeout      time.Duration
	EventSweep     time.Duration
	InitDataMaxAge time.Duration

	// HTTP rate limits
	APIRateLimit     int
	APIRateWindow    time.Duration
	ActionRateLimit  int
	ActionRateWindow time.Duration
}

// IsAdmin reports whether a telegram id is in the admin allow list.
func (c *Config) IsAdmin(tgID int64) bool {
	for _, id := range c.AdminTelegramIDs {
		if id == tgID {
			return true
		}
	}
	return false
}

// FromEnv reads the configuration from the environment and a .env file if present.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		AppPort:        envStr("APP_PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StorageAdapter: envStr("STORAGE_ADAPTER", StoragePostgres),
		BotToken:       os.Getenv("BOT_TOKEN"),
		BotUsername:    envStr("BOT_USERNAME", "ElDivanDeDianaBot"),
		BotEnabled:     os.Getenv("BOT_ENABLED") == "true",
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigin:  os.Getenv("ALLOWED_ORIGIN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        envInt("REDIS_DB", 0),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		LogJSON:        os.Getenv("LOG_JSON") == "true",
		DailyCap:       int64(envInt("POINTS_DAILY_CAP", 20)),
		WeeklyCap:      int64(envInt("POINTS_WEEKLY_CAP", 120)),
		CappedActions:  envList("POINTS_CAPPED_ACTIONS", []string{"interaction", "reaction"}),
		CapPolicy:      envStr("POINTS_CAP_POLICY", "clamp"),

		OpTimeout:      time.Duration(envInt("OP_TIMEOUT_SECONDS", 5)) * time.Second,
		EventSweep:     time.Duration(envInt("EVENT_SWEEP_MINUTES", 60)) * time.Minute,
		InitDataMaxAge: time.Duration(envInt("INIT_DATA_MAX_AGE_SECONDS", 3600)) * time.Second,

		APIRateLimit:     envInt("API_RATE_LIMIT", 120),
		APIRateWindow:    time.Duration(envInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,
		ActionRateLimit:  envInt("ACTION_RATE_LIMIT", 30),
		ActionRateWindow: time.Duration(envInt("ACTION_RATE_WINDOW_SECONDS", 60)) * time.Second,
	}

	var errs []error

	switch c.StorageAdapter {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is not set"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_ADAPTER must be %q or %q", StoragePostgres, StorageMemory))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is not set"))
	}

	// comma separated
	if v := os.Getenv("ADMIN_TELEGRAM_IDS"); v != "" {
		for _, idStr := range strings.Split(v, ",") {
			idStr = strings.TrimSpace(idStr)
			if idStr == "" {
				continue
			}
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("ADMIN_TELEGRAM_IDS: bad id %q", idStr))
				continue
			}
			c.AdminTelegramIDs = append(c.AdminTelegramIDs, id)
		}
	}

	if v := os.Getenv("CHANNEL_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHANNEL_ID: %w", err))
		}
		c.ChannelID = id
	}

	loc, err := time.LoadLocation(envStr("TIMEZONE", "Europe/Madrid"))
	if err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
		loc = time.UTC
	}
	c.Location = loc

	if c.CapPolicy != "clamp" && c.CapPolicy != "reject" {
		errs = append(errs, fmt.Errorf("POINTS_CAP_POLICY must be clamp or reject, got %q", c.CapPolicy))
	}

	return c, errors.Join(errs...)
}

// Load is FromEnv that exits the process on invalid configuration.
func Load() *Config {
	c, err := FromEnv()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return c
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt falls back to def for unset, malformed or negative values.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var res []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			res = append(res, s)
		}
	}
	return res
}
