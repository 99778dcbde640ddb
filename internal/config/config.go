package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	BotToken        string `env:"BOT_TOKEN,required=true"`
	DatabaseDSN     string `env:"DATABASE_DSN,required=true"`
	RedisURL        string `env:"REDIS_URL,required=true"`
	RabbitMQURL     string `env:"RABBITMQ_URL,required=true"`
	WebhookURL      string `env:"WEBHOOK_URL"`
	WebhookSecret   string `env:"WEBHOOK_SECRET"`
	TelegramAPIURL  string `env:"TELEGRAM_API_URL,default=https://api.telegram.org"`
	AdminIDs        string `env:"ADMIN_IDS"`
	AdminAPIToken   string `env:"ADMIN_API_TOKEN"`
	DefaultLanguage string `env:"DEFAULT_LANGUAGE,default=ru"`

	LocaleCacheTTLDays  int `env:"LOCALE_CACHE_TTL_DAYS,default=7"`
	AntifloodIntervalMS int `env:"ANTIFLOOD_INTERVAL_MS,default=300"`

	BroadcastPageSize      int `env:"BROADCAST_PAGE_SIZE,default=100"`
	BroadcastMaxConcurrent int `env:"BROADCAST_MAX_CONCURRENT,default=30"`
	BroadcastRatePerSec    int `env:"BROADCAST_RATE_PER_SEC,default=20"`
	BroadcastWorkers       int `env:"BROADCAST_WORKERS,default=1"`

	LoggingChatID  int64 `env:"LOGGING_CHAT_ID"`
	ErrorsThreadID int   `env:"ERRORS_THREAD_ID,default=1"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// LoadDotEnv loads the given .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.AdminIDList(); err != nil {
		return err
	}

	positive := map[string]int{
		"BROADCAST_PAGE_SIZE":      c.BroadcastPageSize,
		"BROADCAST_MAX_CONCURRENT": c.BroadcastMaxConcurrent,
		"BROADCAST_RATE_PER_SEC":   c.BroadcastRatePerSec,
		"BROADCAST_WORKERS":        c.BroadcastWorkers,
		"LOCALE_CACHE_TTL_DAYS":    c.LocaleCacheTTLDays,
		"ANTIFLOOD_INTERVAL_MS":    c.AntifloodIntervalMS,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}

	if c.WebhookURL != "" && !strings.HasPrefix(c.WebhookURL, "https://") {
		return fmt.Errorf("WEBHOOK_URL must use https")
	}
	if c.WebhookURL != "" && strings.TrimSpace(c.WebhookSecret) == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required when WEBHOOK_URL is set")
	}
	if c.ErrorsThreadID < 0 {
		return fmt.Errorf("ERRORS_THREAD_ID must not be negative, got %d", c.ErrorsThreadID)
	}
	return nil
}

// AdminIDList parses ADMIN_IDS, a comma-separated list of Telegram user ids.
func (c *Config) AdminIDList() ([]int64, error) {
	raw := strings.TrimSpace(c.AdminIDs)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_IDS: invalid user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Config) LocaleCacheTTL() time.Duration {
	return time.Duration(c.LocaleCacheTTLDays) * 24 * time.Hour
}

func (c *Config) AntifloodInterval() time.Duration {
	return time.Duration(c.AntifloodIntervalMS) * time.Millisecond
}
