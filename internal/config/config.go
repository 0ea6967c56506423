package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "CONTENTFORGE_CONFIG"
	llmAPIKeyEnv      = "LLM_API_KEY"
	llmModelEnv       = "LLM_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	paidChatIDEnv     = "PAID_TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Paths    PathsConfig    `yaml:"paths"`
	Clock    ClockConfig    `yaml:"clock"`
	LLM      LLMConfig      `yaml:"llm"`
	Telegram TelegramConfig `yaml:"telegram"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Feeds    []FeedConfig   `yaml:"feeds"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// PathsConfig anchors all durable files under one directory.
type PathsConfig struct {
	DataDir string `yaml:"dataDir"`
}

// StateFile returns the state document path.
func (p PathsConfig) StateFile() string {
	return p.DataDir + "/state.json"
}

// TrendDB returns the analytics database path.
func (p PathsConfig) TrendDB() string {
	return p.DataDir + "/trend.db"
}

// ClockConfig defines the wall-clock frame stage scheduling runs in.
type ClockConfig struct {
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the configured timezone string to a time.Location.
func (c ClockConfig) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// LLMConfig defines how to contact the chat-completions API.
type LLMConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// TelegramConfig wires all data required to deliver drafts and reports.
type TelegramConfig struct {
	BotToken   string `yaml:"botToken"`
	ChatID     string `yaml:"chatId"`
	PaidChatID string `yaml:"paidChatId"`
}

// PipelineConfig tunes the bookkeeping windows and stage thresholds.
type PipelineConfig struct {
	CooldownDays    int     `yaml:"cooldownDays"`
	RetentionDays   int     `yaml:"retentionDays"`
	MaxURLs         int     `yaml:"maxUrls"`
	FlagCapacity    int     `yaml:"flagCapacity"`
	MaxFreePerDay   int     `yaml:"maxFreePerDay"`
	ScoreThreshold  float64 `yaml:"scoreThreshold"`
	MaxScoutItems   int     `yaml:"maxScoutItems"`
	SearchWorkers   int     `yaml:"searchWorkers"`
	SearchTimeoutMS int     `yaml:"searchTimeoutMs"`
}

// FeedConfig describes one subscribed RSS/Atom source.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Tag  string `yaml:"tag"`
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
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Telegram.ChatID = v
	}

	if v := os.Getenv(paidChatIDEnv); v != "" {
		c.Telegram.PaidChatID = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Clock.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Clock.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Paths.DataDir != "" {
		base.Paths = override.Paths
	}

	if override.Clock.Timezone != "" {
		base.Clock.Timezone = override.Clock.Timezone
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.SystemPrompt != "" {
		base.LLM.SystemPrompt = override.LLM.SystemPrompt
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.ChatID != "" {
		base.Telegram.ChatID = override.Telegram.ChatID
	}
	if override.Telegram.PaidChatID != "" {
		base.Telegram.PaidChatID = override.Telegram.PaidChatID
	}

	if override.Pipeline.CooldownDays > 0 {
		base.Pipeline.CooldownDays = override.Pipeline.CooldownDays
	}
	if override.Pipeline.RetentionDays > 0 {
		base.Pipeline.RetentionDays = override.Pipeline.RetentionDays
	}
	if override.Pipeline.MaxURLs > 0 {
		base.Pipeline.MaxURLs = override.Pipeline.MaxURLs
	}
	if override.Pipeline.FlagCapacity > 0 {
		base.Pipeline.FlagCapacity = override.Pipeline.FlagCapacity
	}
	if override.Pipeline.MaxFreePerDay > 0 {
		base.Pipeline.MaxFreePerDay = override.Pipeline.MaxFreePerDay
	}
	if override.Pipeline.ScoreThreshold > 0 {
		base.Pipeline.ScoreThreshold = override.Pipeline.ScoreThreshold
	}
	if override.Pipeline.MaxScoutItems > 0 {
		base.Pipeline.MaxScoutItems = override.Pipeline.MaxScoutItems
	}
	if override.Pipeline.SearchWorkers > 0 {
		base.Pipeline.SearchWorkers = override.Pipeline.SearchWorkers
	}
	if override.Pipeline.SearchTimeoutMS > 0 {
		base.Pipeline.SearchTimeoutMS = override.Pipeline.SearchTimeoutMS
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Paths:   PathsConfig{DataDir: "pipeline"},
		Clock:   ClockConfig{Timezone: defaultTimezone, location: tz},
		LLM: LLMConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
		},
		Pipeline: PipelineConfig{
			CooldownDays:    7,
			RetentionDays:   30,
			MaxURLs:         5000,
			FlagCapacity:    100,
			MaxFreePerDay:   24,
			ScoreThreshold:  6.5,
			MaxScoutItems:   8,
			SearchWorkers:   6,
			SearchTimeoutMS: 15000,
		},
	}
}
