// Package config provides configuration loading, validation, and management
// for the concisely summarizer bot. It handles reading from YAML files,
// environment variable overrides, default values, and validation.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LoggerConfig controls structured logging output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds Telegram bot API settings.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
}

// DatabaseConfig holds SQLite database settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// OpenRouterConfig holds settings for the summarization model gateway.
// Models is the weighted candidate list for summarization: listing a model
// more than once increases its selection weight.
type OpenRouterConfig struct {
	APIKey  string        `mapstructure:"api_key" validate:"required"`
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Models  []string      `mapstructure:"models" validate:"required,min=1,dive,required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=1s,max=10m"`
}

// GeminiConfig holds settings for the media description client.
// Description models are fixed per modality and are not randomized.
type GeminiConfig struct {
	APIKey     string `mapstructure:"api_key" validate:"required"`
	ImageModel string `mapstructure:"image_model" validate:"required"`
	VideoModel string `mapstructure:"video_model" validate:"required"`
	VoiceModel string `mapstructure:"voice_model" validate:"required"`
}

// SummaryConfig controls the summarization trigger engine and outbound
// formatting. Chats maps chat IDs (as strings, since Telegram group IDs are
// negative) to the per-chat message-count interval; chats absent from the
// map are not monitored. A zero interval falls back to DefaultInterval.
type SummaryConfig struct {
	Chats           map[string]int64 `mapstructure:"chats" validate:"required,min=1"`
	DefaultInterval int64            `mapstructure:"default_interval" validate:"min=1"`
	MaxLength       int              `mapstructure:"max_length" validate:"min=1"`
	Tag             string           `mapstructure:"tag"`
}

// TaskConfig configures one scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig holds the scheduled task table, keyed by task name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// WideLogConfig controls the per-request JSONL audit log.
type WideLogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Config is the root application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Summary    SummaryConfig    `mapstructure:"summary"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	WideLog    WideLogConfig    `mapstructure:"widelog"`

	// intervals is Summary.Chats with parsed int64 keys, built during Load.
	intervals map[int64]int64
}

// IntervalFor returns the summarization interval for a chat and whether the
// chat is monitored at all.
func (c *Config) IntervalFor(chatID int64) (int64, bool) {
	interval, ok := c.intervals[chatID]
	if !ok {
		return 0, false
	}
	if interval <= 0 {
		interval = c.Summary.DefaultInterval
	}
	return interval, true
}

// MonitoredChats returns the IDs of all monitored chats.
func (c *Config) MonitoredChats() []int64 {
	ids := make([]int64, 0, len(c.intervals))
	for id := range c.intervals {
		ids = append(ids, id)
	}
	return ids
}

// LoadConfig reads configuration from the given YAML file (missing file is
// allowed), applies CONCISELY_* environment overrides and defaults, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CONCISELY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg.intervals = make(map[int64]int64, len(cfg.Summary.Chats))
	for key, interval := range cfg.Summary.Chats {
		chatID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q in summary.chats: %w", key, err)
		}
		cfg.intervals[chatID] = interval
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("database.path", "storage.db")

	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.timeout", 2*time.Minute)

	v.SetDefault("gemini.image_model", "gemini-2.5-flash")
	v.SetDefault("gemini.video_model", "gemini-2.5-flash")
	v.SetDefault("gemini.voice_model", "gemini-2.5-flash")

	v.SetDefault("summary.default_interval", 500)
	v.SetDefault("summary.max_length", 3000)
	v.SetDefault("summary.tag", "#concisely")

	v.SetDefault("widelog.enabled", true)
	v.SetDefault("widelog.dir", "logs")
}
