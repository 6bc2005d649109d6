package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// ErrConfiguration marks a missing or invalid setting. It is fatal at startup.
var ErrConfiguration = errors.New("configuration error")

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Config struct {
	Port        string
	Env         string
	StoreDriver string
	MongoURI    string
	MongoDB     string

	DefaultLocale string
	Collation     language.Tag
	Timezone      string
	Location      *time.Location

	LogLevel  string
	LogFormat string

	MattermostURL      string
	AttendanceBotToken string
	AnnounceChannelID  string
}

// Load reads the configuration from the environment. Call godotenv first
// when a .env file should be honoured.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "3000"),
		Env:                getEnv("ENV", "development"),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
		MongoURI:           getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:            getEnv("MONGODB_DATABASE", "attendance"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		Timezone:           getEnv("TIMEZONE", "Local"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		MattermostURL:      strings.TrimRight(getEnv("MATTERMOST_URL", ""), "/"),
		AttendanceBotToken: getEnv("ATTENDANCE_BOT_TOKEN", ""),
		AnnounceChannelID:  getEnv("ANNOUNCE_CHANNEL_ID", ""),
	}

	switch cfg.StoreDriver {
	case DriverMongo:
		if cfg.MongoURI == "" || cfg.MongoDB == "" {
			return nil, fmt.Errorf("%w: MONGODB_URI and MONGODB_DATABASE are required", ErrConfiguration)
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrConfiguration, cfg.StoreDriver)
	}

	if _, err := language.Parse(cfg.DefaultLocale); err != nil {
		return nil, fmt.Errorf("%w: DEFAULT_LOCALE %q: %w", ErrConfiguration, cfg.DefaultLocale, err)
	}
	collation := getEnv("COLLATION_LOCALE", cfg.DefaultLocale)
	tag, err := language.Parse(collation)
	if err != nil {
		return nil, fmt.Errorf("%w: COLLATION_LOCALE %q: %w", ErrConfiguration, collation, err)
	}
	cfg.Collation = tag

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: TIMEZONE %q: %w", ErrConfiguration, cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.AnnounceChannelID != "" && (cfg.MattermostURL == "" || cfg.AttendanceBotToken == "") {
		return nil, fmt.Errorf("%w: ANNOUNCE_CHANNEL_ID needs MATTERMOST_URL and ATTENDANCE_BOT_TOKEN", ErrConfiguration)
	}
	return cfg, nil
}

// Announce reports whether clock events should be posted to Mattermost.
func (c *Config) Announce() bool {
	return c.AnnounceChannelID != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
