// Package config loads service configuration from an optional YAML file with
// environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	// RemoteAPIURL is the base URL of the spreadsheet-backed CRUD API. It is
	// the only required setting.
	RemoteAPIURL string `yaml:"remote_api_url"`

	// CalendarAPIURL left empty disables calendar sync entirely.
	CalendarAPIURL   string `yaml:"calendar_api_url"`
	CalendarAPIToken string `yaml:"calendar_api_token"`

	// EventTitlePrefix is prepended to mirror event titles. Empty means bare
	// task titles.
	EventTitlePrefix string `yaml:"event_title_prefix"`
	// DiscoveryCleanup is on by default so deletes also sweep events whose
	// reference was never persisted. Turn it off if misfires are observed.
	DiscoveryCleanup bool `yaml:"discovery_cleanup"`

	RedisConnectionString string        `yaml:"redis_connection_string"`
	CacheTTL              time.Duration `yaml:"cache_ttl"`
	DeduperTTL            time.Duration `yaml:"deduper_ttl"`

	Auth0Domain   string `yaml:"auth0_domain"`
	Auth0Audience string `yaml:"auth0_audience"`

	// Outbox retries failed calendar updates and deletes in the background.
	OutboxEnabled     bool          `yaml:"outbox_enabled"`
	OutboxWorkers     int           `yaml:"outbox_workers"`
	OutboxBuffer      int           `yaml:"outbox_buffer"`
	OutboxMaxAttempts int           `yaml:"outbox_max_attempts"`
	OutboxCallTimeout time.Duration `yaml:"outbox_call_timeout"`

	// DeadLetterConnectionString enables the Azure queue sink for calendar
	// operations that exhaust their retries.
	DeadLetterConnectionString string `yaml:"dead_letter_connection_string"`
	DeadLetterQueue            string `yaml:"dead_letter_queue"`

	Debug bool `yaml:"debug"`
}

func defaults() Config {
	return Config{
		DiscoveryCleanup:  true,
		CacheTTL:          5 * time.Minute,
		DeduperTTL:        24 * time.Hour,
		OutboxWorkers:     2,
		OutboxBuffer:      64,
		OutboxMaxAttempts: 5,
		OutboxCallTimeout: 10 * time.Second,
		DeadLetterQueue:   "calendar-dead-letter",
	}
}

// Load builds the configuration. The file at path is optional; environment
// variables override whatever the file set. An empty path skips the file
// entirely.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.RemoteAPIURL == "" {
		return Config{}, fmt.Errorf("remote API URL is required (REMOTE_API_URL)")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.RemoteAPIURL, "REMOTE_API_URL")
	setString(&cfg.CalendarAPIURL, "CALENDAR_API_URL")
	setString(&cfg.CalendarAPIToken, "CALENDAR_API_TOKEN")
	setString(&cfg.EventTitlePrefix, "EVENT_TITLE_PREFIX")
	setBool(&cfg.DiscoveryCleanup, "DISCOVERY_CLEANUP")
	setString(&cfg.RedisConnectionString, "REDIS_CONNECTION_STRING")
	setDuration(&cfg.CacheTTL, "CACHE_TTL")
	setDuration(&cfg.DeduperTTL, "DEDUPER_TTL")
	setString(&cfg.Auth0Domain, "AUTH0_DOMAIN")
	setString(&cfg.Auth0Audience, "AUTH0_AUDIENCE")
	setBool(&cfg.OutboxEnabled, "OUTBOX_ENABLED")
	setInt(&cfg.OutboxWorkers, "OUTBOX_WORKERS")
	setInt(&cfg.OutboxBuffer, "OUTBOX_BUFFER")
	setInt(&cfg.OutboxMaxAttempts, "OUTBOX_MAX_ATTEMPTS")
	setDuration(&cfg.OutboxCallTimeout, "OUTBOX_CALL_TIMEOUT")
	setString(&cfg.DeadLetterConnectionString, "DEAD_LETTER_CONNECTION_STRING")
	setString(&cfg.DeadLetterQueue, "DEAD_LETTER_QUEUE")
	setBool(&cfg.Debug, "DEBUG")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}
