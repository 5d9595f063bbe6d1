// Package config loads the watcher configuration from YAML and the environment.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"solana-portfolio-watch/internal/solana"
)

// Store kinds.
const (
	StoreXLSX     = "xlsx"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Defaults applied when a setting is absent.
const (
	DefaultRPCURL       = "https://api.mainnet-beta.solana.com"
	DefaultInterval     = 120 * time.Second
	DefaultConcurrency  = 8
	DefaultXLSXPath     = "tokens.xlsx"
	DefaultSheet        = "Token Details"
	DefaultMetricsAddr  = ":9090"
	DefaultRPCTimeout   = 30 * time.Second
	DefaultPriceTimeout = 15 * time.Second
	usdcMint            = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// Environment variables that override file settings.
const (
	EnvAccount        = "WATCH_ACCOUNT"
	EnvRPCURL         = "SOLANA_RPC_URL"
	EnvPriceURL       = "PRICE_API_URL"
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
	EnvPostgresDSN    = "POSTGRES_DSN"
	EnvClickhouseDSN  = "CLICKHOUSE_DSN"
)

// Config is the validated watcher configuration.
type Config struct {
	Account      string
	RPCURL       string
	RPCTimeout   time.Duration
	PriceURL     string
	QuoteAddress string
	PriceTimeout time.Duration
	Programs     []string

	Interval    time.Duration
	Concurrency int

	RelativeMultiplier decimal.Decimal
	AbsoluteThreshold  decimal.Decimal
	RequireIncrease    bool

	IgnoreMints     []string
	ResolveMetadata bool

	Store         StoreConfig
	ClickhouseDSN string // empty disables valuation history in ClickHouse
	Telegram      TelegramConfig
	MetricsAddr   string
}

// StoreConfig selects and configures the snapshot store.
type StoreConfig struct {
	Kind        string
	Path        string
	Sheet       string
	PostgresDSN string
}

// TelegramConfig holds bot credentials. An empty token means log-only delivery.
type TelegramConfig struct {
	Token   string
	ChatID  string
	BaseURL string
}

// Enabled reports whether Telegram delivery is configured.
func (t TelegramConfig) Enabled() bool {
	return t.Token != ""
}

type configTmp struct {
	Account         string        `yaml:"account"`
	RPCURL          string        `yaml:"rpc_url"`
	RPCTimeout      time.Duration `yaml:"rpc_timeout"`
	PriceURL        string        `yaml:"price_url"`
	QuoteAddress    string        `yaml:"quote_address"`
	PriceTimeout    time.Duration `yaml:"price_timeout"`
	Programs        []string      `yaml:"token_programs"`
	Interval        time.Duration `yaml:"interval"`
	Concurrency     int           `yaml:"concurrency"`
	RelativeStr     string        `yaml:"relative_multiplier,omitempty"`
	AbsoluteStr     string        `yaml:"absolute_threshold,omitempty"`
	RequireIncrease *bool         `yaml:"require_increase,omitempty"`
	IgnoreMints     []string      `yaml:"ignore_mints"`
	ResolveMetadata bool          `yaml:"resolve_metadata"`
	Store           struct {
		Kind        string `yaml:"kind"`
		Path        string `yaml:"path"`
		Sheet       string `yaml:"sheet"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"store"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	Telegram      struct {
		Token   string `yaml:"bot_token"`
		ChatID  string `yaml:"chat_id"`
		BaseURL string `yaml:"api_url"`
	} `yaml:"telegram"`
	MetricsAddr *string `yaml:"metrics_addr"`
}

// Load reads the YAML file at path (optional when empty), applies environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	var tmp configTmp

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &tmp); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	applyEnv(&tmp, getenv)

	cfg, err := build(tmp)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(tmp *configTmp, getenv func(string) string) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	override(&tmp.Account, EnvAccount)
	override(&tmp.RPCURL, EnvRPCURL)
	override(&tmp.PriceURL, EnvPriceURL)
	override(&tmp.Telegram.Token, EnvTelegramToken)
	override(&tmp.Telegram.ChatID, EnvTelegramChatID)
	override(&tmp.Store.PostgresDSN, EnvPostgresDSN)
	override(&tmp.ClickhouseDSN, EnvClickhouseDSN)
}

func build(tmp configTmp) (*Config, error) {
	cfg := &Config{
		Account:         tmp.Account,
		RPCURL:          orDefault(tmp.RPCURL, DefaultRPCURL),
		RPCTimeout:      tmp.RPCTimeout,
		PriceURL:        tmp.PriceURL,
		QuoteAddress:    tmp.QuoteAddress,
		PriceTimeout:    tmp.PriceTimeout,
		Programs:        tmp.Programs,
		Interval:        tmp.Interval,
		Concurrency:     tmp.Concurrency,
		RequireIncrease: true,
		IgnoreMints:     tmp.IgnoreMints,
		ResolveMetadata: tmp.ResolveMetadata,
		Store: StoreConfig{
			Kind:        orDefault(strings.ToLower(tmp.Store.Kind), StoreXLSX),
			Path:        orDefault(tmp.Store.Path, DefaultXLSXPath),
			Sheet:       orDefault(tmp.Store.Sheet, DefaultSheet),
			PostgresDSN: tmp.Store.PostgresDSN,
		},
		ClickhouseDSN: tmp.ClickhouseDSN,
		Telegram: TelegramConfig{
			Token:   tmp.Telegram.Token,
			ChatID:  tmp.Telegram.ChatID,
			BaseURL: tmp.Telegram.BaseURL,
		},
		MetricsAddr: DefaultMetricsAddr,
	}

	if cfg.RPCTimeout == 0 {
		cfg.RPCTimeout = DefaultRPCTimeout
	}
	if cfg.PriceTimeout == 0 {
		cfg.PriceTimeout = DefaultPriceTimeout
	}
	if len(cfg.Programs) == 0 {
		cfg.Programs = []string{solana.TokenProgramID}
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.IgnoreMints == nil {
		cfg.IgnoreMints = []string{usdcMint}
	}
	if tmp.RequireIncrease != nil {
		cfg.RequireIncrease = *tmp.RequireIncrease
	}
	if tmp.MetricsAddr != nil {
		cfg.MetricsAddr = *tmp.MetricsAddr
	}

	var err error
	if cfg.RelativeMultiplier, err = decimalOr(tmp.RelativeStr, "1.5"); err != nil {
		return nil, errors.Wrap(err, "incorrect 'relative_multiplier' param in yaml config (must be a decimal)")
	}
	if cfg.AbsoluteThreshold, err = decimalOr(tmp.AbsoluteStr, "10"); err != nil {
		return nil, errors.Wrap(err, "incorrect 'absolute_threshold' param in yaml config (must be a decimal)")
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := solana.ValidateAddress(c.Account); err != nil {
		return errors.Wrapf(err, "invalid account %q", c.Account)
	}
	for _, mint := range c.IgnoreMints {
		if err := solana.ValidateAddress(mint); err != nil {
			return errors.Wrapf(err, "invalid ignore-list mint %q", mint)
		}
	}
	if c.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if c.PriceURL == "" {
		return errors.New("price_url is required")
	}
	if c.RelativeMultiplier.LessThan(decimal.NewFromInt(1)) {
		return errors.Errorf("relative_multiplier must be >= 1, got %s", c.RelativeMultiplier)
	}
	if c.AbsoluteThreshold.IsNegative() {
		return errors.Errorf("absolute_threshold must be >= 0, got %s", c.AbsoluteThreshold)
	}
	if c.Interval <= 0 {
		return errors.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.Concurrency < 1 {
		return errors.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}

	switch c.Store.Kind {
	case StoreXLSX, StoreMemory:
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required for the postgres store")
		}
	default:
		return errors.Errorf("unknown store kind %q", c.Store.Kind)
	}

	if c.Telegram.Enabled() && c.Telegram.ChatID == "" {
		return errors.New("telegram.chat_id is required when a bot token is set")
	}

	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func decimalOr(s, def string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		s = def
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}
