package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "Asia/Kolkata"

	configPathEnv    = "ADVISORY_DISPATCH_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	openAIAPIKeyEnv  = "OPENAI_API_KEY"
	openAIModelEnv   = "OPENAI_MODEL"
	whatsappTokenEnv = "WHATSAPP_TOKEN"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Compliance ComplianceConfig `yaml:"compliance"`
	Semantic   SemanticConfig   `yaml:"semantic"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Channels   ChannelsConfig   `yaml:"channels"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines when the daily batch runs.
type SchedulerConfig struct {
	DailyRunTime string         `yaml:"dailyRunTime"` // "HH:MM" local to Timezone
	Timezone     string         `yaml:"timezone"`
	location     *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// ComplianceConfig tunes the validation pipeline.
type ComplianceConfig struct {
	MaxContentLength       int     `yaml:"maxContentLength"`       // channel hard limit, runes
	FingerprintPrefixLen   int     `yaml:"fingerprintPrefixLen"`   // content prefix used in the verdict cache key
	SemanticTimeoutSeconds int     `yaml:"semanticTimeoutSeconds"` // stage-two call deadline
	SemanticPassScore      float64 `yaml:"semanticPassScore"`      // strict threshold, exclusive
	DegradedPassScore      float64 `yaml:"degradedPassScore"`      // fail-open default score
	LedgerFlushSeconds     int     `yaml:"ledgerFlushSeconds"`
}

// SemanticConfig defines how to contact the evaluation model.
type SemanticConfig struct {
	Model  string `yaml:"model"`
	APIKey string `yaml:"apiKey"`
}

// DeliveryConfig tunes the queue and drain loop.
type DeliveryConfig struct {
	Concurrency        int    `yaml:"concurrency"`        // in-flight send ceiling
	MinDispatchDelayMS int    `yaml:"minDispatchDelayMs"` // floor between successive dispatches
	PollIntervalMS     int    `yaml:"pollIntervalMs"`     // drain loop re-check interval
	BaseRetryDelaySec  int    `yaml:"baseRetryDelaySec"`  // backoff base
	MaxRetries         int    `yaml:"maxRetries"`
	JitterWindowSec    int    `yaml:"jitterWindowSec"` // batch enqueue spread
	SendTimeoutSec     int    `yaml:"sendTimeoutSec"`  // per channel call
	DefaultChannel     string `yaml:"defaultChannel"`
}

// ChannelsConfig groups settings for outbound messaging providers.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// WhatsAppConfig wires the Cloud API client.
type WhatsAppConfig struct {
	BaseURL           string `yaml:"baseUrl"`
	PhoneNumberID     string `yaml:"phoneNumberId"`
	BusinessAccountID string `yaml:"businessAccountId"`
	Token             string `yaml:"token"`
}

// TelegramConfig wires the bot channel and the operator alert chat.
type TelegramConfig struct {
	BotToken       string `yaml:"botToken"`
	ChatID         string `yaml:"chatId"`
	OperatorChatID string `yaml:"operatorChatId"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.Semantic.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.Semantic.Model = v
	}

	if v := os.Getenv(whatsappTokenEnv); v != "" {
		c.Channels.WhatsApp.Token = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Channels.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Channels.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.DailyRunTime != "" {
		base.Scheduler.DailyRunTime = override.Scheduler.DailyRunTime
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Compliance.MaxContentLength > 0 {
		base.Compliance.MaxContentLength = override.Compliance.MaxContentLength
	}
	if override.Compliance.FingerprintPrefixLen > 0 {
		base.Compliance.FingerprintPrefixLen = override.Compliance.FingerprintPrefixLen
	}
	if override.Compliance.SemanticTimeoutSeconds > 0 {
		base.Compliance.SemanticTimeoutSeconds = override.Compliance.SemanticTimeoutSeconds
	}
	if override.Compliance.SemanticPassScore > 0 {
		base.Compliance.SemanticPassScore = override.Compliance.SemanticPassScore
	}
	if override.Compliance.DegradedPassScore > 0 {
		base.Compliance.DegradedPassScore = override.Compliance.DegradedPassScore
	}
	if override.Compliance.LedgerFlushSeconds > 0 {
		base.Compliance.LedgerFlushSeconds = override.Compliance.LedgerFlushSeconds
	}

	if override.Semantic.Model != "" {
		base.Semantic.Model = override.Semantic.Model
	}
	if override.Semantic.APIKey != "" {
		base.Semantic.APIKey = override.Semantic.APIKey
	}

	if override.Delivery.Concurrency > 0 {
		base.Delivery.Concurrency = override.Delivery.Concurrency
	}
	if override.Delivery.MinDispatchDelayMS > 0 {
		base.Delivery.MinDispatchDelayMS = override.Delivery.MinDispatchDelayMS
	}
	if override.Delivery.PollIntervalMS > 0 {
		base.Delivery.PollIntervalMS = override.Delivery.PollIntervalMS
	}
	if override.Delivery.BaseRetryDelaySec > 0 {
		base.Delivery.BaseRetryDelaySec = override.Delivery.BaseRetryDelaySec
	}
	if override.Delivery.MaxRetries > 0 {
		base.Delivery.MaxRetries = override.Delivery.MaxRetries
	}
	if override.Delivery.JitterWindowSec > 0 {
		base.Delivery.JitterWindowSec = override.Delivery.JitterWindowSec
	}
	if override.Delivery.SendTimeoutSec > 0 {
		base.Delivery.SendTimeoutSec = override.Delivery.SendTimeoutSec
	}
	if override.Delivery.DefaultChannel != "" {
		base.Delivery.DefaultChannel = override.Delivery.DefaultChannel
	}

	if override.Channels.WhatsApp.BaseURL != "" {
		base.Channels.WhatsApp.BaseURL = override.Channels.WhatsApp.BaseURL
	}
	if override.Channels.WhatsApp.PhoneNumberID != "" {
		base.Channels.WhatsApp.PhoneNumberID = override.Channels.WhatsApp.PhoneNumberID
	}
	if override.Channels.WhatsApp.BusinessAccountID != "" {
		base.Channels.WhatsApp.BusinessAccountID = override.Channels.WhatsApp.BusinessAccountID
	}
	if override.Channels.WhatsApp.Token != "" {
		base.Channels.WhatsApp.Token = override.Channels.WhatsApp.Token
	}
	if override.Channels.Telegram.BotToken != "" {
		base.Channels.Telegram.BotToken = override.Channels.Telegram.BotToken
	}
	if override.Channels.Telegram.ChatID != "" {
		base.Channels.Telegram.ChatID = override.Channels.Telegram.ChatID
	}
	if override.Channels.Telegram.OperatorChatID != "" {
		base.Channels.Telegram.OperatorChatID = override.Channels.Telegram.OperatorChatID
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{
			DailyRunTime: "09:00",
			Timezone:     defaultTimezone,
			location:     tz,
		},
		Compliance: ComplianceConfig{
			MaxContentLength:       4096,
			FingerprintPrefixLen:   120,
			SemanticTimeoutSeconds: 10,
			SemanticPassScore:      0.8,
			DegradedPassScore:      0.85,
			LedgerFlushSeconds:     300,
		},
		Semantic: SemanticConfig{Model: "gpt-4o-mini"},
		Delivery: DeliveryConfig{
			Concurrency:        8,
			MinDispatchDelayMS: 250,
			PollIntervalMS:     500,
			BaseRetryDelaySec:  30,
			MaxRetries:         3,
			JitterWindowSec:    300,
			SendTimeoutSec:     15,
			DefaultChannel:     "whatsapp",
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				BaseURL: "https://graph.facebook.com/v19.0",
			},
		},
	}
}
