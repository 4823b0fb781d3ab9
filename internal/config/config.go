// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev        bool
	ConfigPath string
}

type BotConfig struct {
	Token                string        `yaml:"token"` // registration bot token
	Username             string        `yaml:"username"`
	AdminUserID          int64         `yaml:"admin_user_id"`
	APIEndpoint          string        `yaml:"api_endpoint"` // optional Bot API endpoint override
	Workers              int           `yaml:"workers"`      // polling workers per process
	RateLimitPerMinute   int           `yaml:"rate_limit_per_minute"`
	ConversationStateTTL time.Duration `yaml:"conversation_state_ttl"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	Path         string        `yaml:"path"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty disables redis; state and rate limits stay in-process
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"` // key namespace shared by every process
}

type PushInPayConfig struct {
	BaseURL        string `yaml:"base_url"`
	SplitAccountID string `yaml:"split_account_id"`
}

type MercadoPagoConfig struct {
	APIBase         string `yaml:"api_base"`
	AuthBase        string `yaml:"auth_base"`
	ClientID        string `yaml:"client_id"`
	ClientSecret    string `yaml:"client_secret"`
	RedirectURI     string `yaml:"redirect_uri"`
	NotificationURL string `yaml:"notification_url"`
}

type PaymentConfig struct {
	PushInPay   PushInPayConfig   `yaml:"pushinpay"`
	MercadoPago MercadoPagoConfig `yaml:"mercadopago"`
	Timeout     time.Duration     `yaml:"timeout"`
}

type ReaperConfig struct {
	Interval          time.Duration `yaml:"interval"`
	InactivityMinutes int           `yaml:"inactivity_minutes"`
}

type ProcessConfig struct {
	Executable  string        `yaml:"executable"` // defaults to the running binary
	SettleDelay time.Duration `yaml:"settle_delay"`
	KillGrace   time.Duration `yaml:"kill_grace"`
}

type HTTPConfig struct {
	Addr         string `yaml:"addr"`
	CallbackPath string `yaml:"callback_path"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // optional listener for the registration service
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"` // empty stores gateway credentials in clear
	StateSecret   string `yaml:"state_secret"`   // empty sends the raw bot token as oauth state
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Payment  PaymentConfig  `yaml:"payment"`
	Reaper   ReaperConfig   `yaml:"reaper"`
	Process  ProcessConfig  `yaml:"process"`
	HTTP     HTTPConfig     `yaml:"http"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// defaults, then validates the few settings every process needs.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	cfg.Runtime.ConfigPath = path
	return cfg, nil
}

// Parse decodes raw YAML and runs the same defaulting and validation as LoadConfig.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Bot.AdminUserID == 0 {
		return nil, errors.New("bot.admin_user_id is required")
	}
	if cfg.Reaper.InactivityMinutes <= 0 {
		return nil, errors.New("reaper.inactivity_minutes must be positive")
	}
	if k := len(cfg.Security.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return nil, fmt.Errorf("security.encryption_key must be 16, 24, or 32 bytes; got %d", k)
	}
	if !strings.HasPrefix(cfg.HTTP.CallbackPath, "/") {
		return nil, errors.New("http.callback_path must start with /")
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PIX_ADMIN_BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("PIX_ADMIN_USER_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Bot.AdminUserID = id
		}
	}
	if v := os.Getenv("MP_CLIENT_ID"); v != "" {
		cfg.Payment.MercadoPago.ClientID = v
	}
	if v := os.Getenv("MP_CLIENT_SECRET"); v != "" {
		cfg.Payment.MercadoPago.ClientSecret = v
	}
	if v := os.Getenv("PIX_ENCRYPTION_KEY"); v != "" {
		cfg.Security.EncryptionKey = v
	}
	if v := os.Getenv("PIX_STATE_SECRET"); v != "" {
		cfg.Security.StateSecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 4
	}
	if cfg.Bot.RateLimitPerMinute <= 0 {
		cfg.Bot.RateLimitPerMinute = 30
	}
	if cfg.Bot.ConversationStateTTL <= 0 {
		cfg.Bot.ConversationStateTTL = 15 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "bots.db"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 1
	}
	if cfg.Database.BusyTimeout <= 0 {
		cfg.Database.BusyTimeout = 5 * time.Second
	}
	if cfg.Database.RetryBackoff <= 0 {
		cfg.Database.RetryBackoff = time.Second
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "pixmgr"
	}

	if cfg.Payment.Timeout <= 0 {
		cfg.Payment.Timeout = 15 * time.Second
	}
	if cfg.Payment.PushInPay.BaseURL == "" {
		cfg.Payment.PushInPay.BaseURL = "https://api.pushinpay.com.br"
	}
	if cfg.Payment.PushInPay.SplitAccountID == "" {
		cfg.Payment.PushInPay.SplitAccountID = "9D60FF2D-4298-4AEF-89AB-F27AE6A9D68D"
	}
	if cfg.Payment.MercadoPago.APIBase == "" {
		cfg.Payment.MercadoPago.APIBase = "https://api.mercadopago.com"
	}
	if cfg.Payment.MercadoPago.AuthBase == "" {
		cfg.Payment.MercadoPago.AuthBase = "https://auth.mercadopago.com.br"
	}

	if cfg.Reaper.Interval <= 0 {
		cfg.Reaper.Interval = 24 * time.Hour
	}
	if cfg.Reaper.InactivityMinutes == 0 {
		cfg.Reaper.InactivityMinutes = 60 * 24 * 7
	}

	if cfg.Process.SettleDelay <= 0 {
		cfg.Process.SettleDelay = 3 * time.Second
	}
	if cfg.Process.KillGrace <= 0 {
		cfg.Process.KillGrace = time.Second
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.CallbackPath == "" {
		cfg.HTTP.CallbackPath = "/mp/callback"
	}
}
