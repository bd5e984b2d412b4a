package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/fxpilot/logger"
	"github.com/rustyeddy/fxpilot/market"
	"github.com/rustyeddy/fxpilot/risk"
)

// ErrConfiguration wraps every load and validation failure.
var ErrConfiguration = errors.New("configuration error")

const (
	EnvConfigPath   = "BOT_CONFIG_PATH"
	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvGeminiModel  = "GEMINI_MODEL"
	EnvOandaToken   = "OANDA_TOKEN"
	EnvOandaAccount = "OANDA_ACCOUNT_ID"

	DefaultPath        = "config.yaml"
	DefaultGeminiModel = "gemini-1.5-pro"

	GatewayOanda = "oanda"
	GatewayPaper = "paper"
)

// Config is the complete bot configuration.
type Config struct {
	General GeneralConfig `json:"general" yaml:"general"`
	Risk    RiskConfig    `json:"risk" yaml:"risk"`
	Gateway GatewayConfig `json:"gateway" yaml:"gateway"`
	Advisor AdvisorConfig `json:"advisor" yaml:"advisor"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

type GeneralConfig struct {
	AccountCurrency          string   `json:"account_currency" yaml:"account_currency"`
	Symbols                  []string `json:"symbols" yaml:"symbols"`
	Timeframes               []string `json:"timeframes" yaml:"timeframes"`
	PollIntervalSeconds      int      `json:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	HeartbeatIntervalSeconds int      `json:"heartbeat_interval_seconds" yaml:"heartbeat_interval_seconds"`
	// Timezone is the IANA zone that decides when a trading day starts.
	Timezone string `json:"timezone" yaml:"timezone"`
}

type RiskConfig struct {
	RiskPerTrade          float64 `json:"risk_per_trade" yaml:"risk_per_trade"`
	MaxConcurrentTrades   int     `json:"max_concurrent_trades" yaml:"max_concurrent_trades"`
	MaxDailyDrawdown      float64 `json:"max_daily_drawdown" yaml:"max_daily_drawdown"`
	StopLossATRMultiplier float64 `json:"stop_loss_atr_multiplier" yaml:"stop_loss_atr_multiplier"`
	TakeProfitMultiple    float64 `json:"take_profit_multiple" yaml:"take_profit_multiple"`
}

// GatewayConfig selects the live OANDA gateway or the in-process paper one.
type GatewayConfig struct {
	Kind         string  `json:"kind" yaml:"kind"`
	Environment  string  `json:"environment" yaml:"environment"` // practice or live
	AccountID    string  `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	Token        string  `json:"token,omitempty" yaml:"token,omitempty"`
	PaperBalance float64 `json:"paper_balance" yaml:"paper_balance"`

	// PaperDataDir holds <SYMBOL>.csv candle files used as the paper feed
	// when no OANDA credentials are configured.
	PaperDataDir      string  `json:"paper_data_dir,omitempty" yaml:"paper_data_dir,omitempty"`
	PaperSpreadPoints float64 `json:"paper_spread_points" yaml:"paper_spread_points"`
}

type AdvisorConfig struct {
	Model          string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey         string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	PromptTemplate string `json:"prompt_template,omitempty" yaml:"prompt_template,omitempty"`
	BaseURL        string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `json:"max_retries" yaml:"max_retries"`
}

type ServerConfig struct {
	Listen             string `json:"listen" yaml:"listen"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
}

type JournalConfig struct {
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	JSON       bool   `json:"json" yaml:"json"`
}

// ResolvePath picks the config file: an explicit path, then
// BOT_CONFIG_PATH, then config.yaml in the working directory.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}

// LoadDotEnv reads .env into the environment when present. Variables
// already set win.
func LoadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// Load reads, fills from the environment and validates the configuration
// at path (see ResolvePath). Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	path = ResolvePath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, falling back to JSON, on top of Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("%w: parse (tried YAML and JSON): %v", ErrConfiguration, err)
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv fills secrets and the model name from the environment where the
// file left them empty.
func (c *Config) ApplyEnv() {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&c.Advisor.APIKey, EnvGeminiKey)
	fill(&c.Advisor.Model, EnvGeminiModel)
	fill(&c.Gateway.Token, EnvOandaToken)
	fill(&c.Gateway.AccountID, EnvOandaAccount)
	if c.Advisor.Model == "" {
		c.Advisor.Model = DefaultGeminiModel
	}
}

// SaveToFile writes YAML for .yaml/.yml paths and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate reports every problem at once. The returned error wraps
// ErrConfiguration.
func (c *Config) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	g := c.General
	if len(strings.TrimSpace(g.AccountCurrency)) != 3 {
		add("general.account_currency must be a 3 letter code, got %q", g.AccountCurrency)
	}
	if len(g.Symbols) == 0 {
		add("general.symbols must not be empty")
	}
	for _, s := range g.Symbols {
		if strings.TrimSpace(s) == "" {
			add("general.symbols contains an empty entry")
		}
	}
	if len(g.Timeframes) == 0 {
		add("general.timeframes must not be empty")
	}
	for _, tf := range g.Timeframes {
		if _, err := market.ParseTimeframe(tf); err != nil {
			add("general.timeframes: %v", err)
		}
	}
	if g.PollIntervalSeconds <= 0 {
		add("general.poll_interval_seconds must be positive")
	}
	if g.HeartbeatIntervalSeconds < 0 {
		add("general.heartbeat_interval_seconds must not be negative")
	}
	if _, err := time.LoadLocation(g.Timezone); err != nil {
		add("general.timezone: %v", err)
	}

	if err := c.RiskParams().Validate(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if r := c.Risk; r.StopLossATRMultiplier < 0.5 || r.StopLossATRMultiplier > 5 {
		add("risk.stop_loss_atr_multiplier %.2f outside [0.5, 5]", r.StopLossATRMultiplier)
	}
	if r := c.Risk; r.TakeProfitMultiple < 1 || r.TakeProfitMultiple > 6 {
		add("risk.take_profit_multiple %.2f outside [1, 6]", r.TakeProfitMultiple)
	}

	switch gw := c.Gateway; gw.Kind {
	case GatewayOanda:
		if gw.Environment != "practice" && gw.Environment != "live" {
			add("gateway.environment must be 'practice' or 'live', got %q", gw.Environment)
		}
		if gw.AccountID == "" {
			add("gateway.account_id is required (or set %s)", EnvOandaAccount)
		}
		if gw.Token == "" {
			add("gateway.token is required (or set %s)", EnvOandaToken)
		}
	case GatewayPaper:
		if gw.PaperBalance <= 0 {
			add("gateway.paper_balance must be positive")
		}
		if gw.PaperSpreadPoints < 0 {
			add("gateway.paper_spread_points must not be negative")
		}
	default:
		add("gateway.kind must be 'oanda' or 'paper', got %q", gw.Kind)
	}

	if c.Advisor.APIKey == "" {
		add("advisor api key missing, set %s", EnvGeminiKey)
	}
	if c.Advisor.TimeoutSeconds < 0 {
		add("advisor.timeout_seconds must not be negative")
	}
	if c.Advisor.MaxRetries < 0 {
		add("advisor.max_retries must not be negative")
	}

	if c.Server.Listen == "" {
		add("server.listen is required")
	}
	if c.Server.RateLimitPerMinute < 0 {
		add("server.rate_limit_per_minute must not be negative")
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}

	if errs != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, errs)
	}
	return nil
}

func (c *Config) RiskParams() risk.Params {
	return risk.Params{
		RiskPerTrade:        c.Risk.RiskPerTrade,
		MaxConcurrentTrades: c.Risk.MaxConcurrentTrades,
		MaxDailyDrawdown:    c.Risk.MaxDailyDrawdown,
	}
}

// Timeframes returns the parsed timeframes. Call after Validate.
func (c *Config) Timeframes() []market.Timeframe {
	out := make([]market.Timeframe, 0, len(c.General.Timeframes))
	for _, s := range c.General.Timeframes {
		if tf, err := market.ParseTimeframe(s); err == nil {
			out = append(out, tf)
		}
	}
	return out
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.General.PollIntervalSeconds) * time.Second
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.General.HeartbeatIntervalSeconds) * time.Second
}

// Location returns the trading-day timezone, UTC when unset or invalid.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.General.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		JSON:       c.Log.JSON,
	}
}

// Default returns a paper-trading configuration. The advisor key still has
// to come from the environment.
func Default() *Config {
	p := risk.DefaultParams()
	return &Config{
		General: GeneralConfig{
			AccountCurrency:          "USD",
			Symbols:                  []string{"EURUSD", "GBPUSD"},
			Timeframes:               []string{"M15", "H1"},
			PollIntervalSeconds:      60,
			HeartbeatIntervalSeconds: 15,
			Timezone:                 "UTC",
		},
		Risk: RiskConfig{
			RiskPerTrade:          p.RiskPerTrade,
			MaxConcurrentTrades:   p.MaxConcurrentTrades,
			MaxDailyDrawdown:      p.MaxDailyDrawdown,
			StopLossATRMultiplier: 1.8,
			TakeProfitMultiple:    2.0,
		},
		Gateway: GatewayConfig{
			Kind:              GatewayPaper,
			Environment:       "practice",
			PaperBalance:      10_000,
			PaperSpreadPoints: 10,
		},
		Advisor: AdvisorConfig{
			TimeoutSeconds: 60,
			MaxRetries:     4,
		},
		Server: ServerConfig{
			Listen:             "0.0.0.0:8000",
			RateLimitPerMinute: 120,
		},
		Journal: JournalConfig{
			DBPath: "fxpilot.db",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}
