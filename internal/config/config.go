package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens      = 1024
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 18620
	DefaultTimezone       = "Local"
	DefaultPairingTimeout = 90
	DefaultSendTimeout    = 30
)

type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Provider  ProviderConfig  `json:"provider"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp"`
	Telegram  TelegramConfig  `json:"telegram"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Store     StoreConfig     `json:"store"`
}

type HTTPConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ProviderConfig selects the intelligence backend used for intent
// classification and reply generation.
type ProviderConfig struct {
	Type      string `json:"type,omitempty"` // "openai" (default) or "anthropic"
	APIKey    string `json:"apiKey"`
	BaseURL   string `json:"baseUrl,omitempty"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
}

type WhatsAppConfig struct {
	// StoreDir holds one whatsmeow session database per tenant.
	StoreDir           string `json:"storeDir,omitempty"`
	PairingTimeoutSecs int    `json:"pairingTimeoutSecs,omitempty"`
	SendTimeoutSecs    int    `json:"sendTimeoutSecs,omitempty"`
	PrintQR            bool   `json:"printQr"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
}

// SchedulerConfig controls notification-window evaluation. Timezone is the
// basis for the weekday/time check: an IANA zone name, or "Local" for the
// server zone.
type SchedulerConfig struct {
	Timezone string `json:"timezone"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Provider: ProviderConfig{
			MaxTokens: DefaultMaxTokens,
		},
		WhatsApp: WhatsAppConfig{
			StoreDir:           filepath.Join(ConfigDir(), "whatsapp"),
			PairingTimeoutSecs: DefaultPairingTimeout,
			SendTimeoutSecs:    DefaultSendTimeout,
			PrintQR:            true,
		},
		Scheduler: SchedulerConfig{
			Timezone: DefaultTimezone,
		},
		Store: StoreConfig{
			DBPath: filepath.Join(ConfigDir(), "data", "storebot.db"),
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".storebot")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("STOREBOT_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "anthropic"
		}
	}
	if url := os.Getenv("STOREBOT_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if token := os.Getenv("STOREBOT_TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
		cfg.Telegram.Enabled = true
	}
	if tz := os.Getenv("STOREBOT_TIMEZONE"); tz != "" {
		cfg.Scheduler.Timezone = tz
	}
	if dbPath := os.Getenv("STOREBOT_DB_PATH"); dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	if port := os.Getenv("STOREBOT_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.HTTP.Port = parsed
		}
	}

	if cfg.WhatsApp.StoreDir == "" {
		cfg.WhatsApp.StoreDir = DefaultConfig().WhatsApp.StoreDir
	}
	if cfg.WhatsApp.PairingTimeoutSecs <= 0 {
		cfg.WhatsApp.PairingTimeoutSecs = DefaultPairingTimeout
	}
	if cfg.WhatsApp.SendTimeoutSecs <= 0 {
		cfg.WhatsApp.SendTimeoutSecs = DefaultSendTimeout
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = DefaultTimezone
	}
	if cfg.Store.DBPath == "" {
		cfg.Store.DBPath = DefaultConfig().Store.DBPath
	}
	if cfg.Provider.MaxTokens <= 0 {
		cfg.Provider.MaxTokens = DefaultMaxTokens
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
