package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/genesis/bridge"
	"github.com/rustyeddy/genesis/genesis"
	"github.com/rustyeddy/genesis/market"
	"github.com/rustyeddy/genesis/reconcile"
	"github.com/rustyeddy/genesis/risk"
)

// Environment variables that override the file. Tokens are normally only
// set this way.
const (
	EnvToken         = "GENESIS_TOKEN"
	EnvBackendURL    = "GENESIS_BACKEND_URL"
	EnvAccountID     = "GENESIS_ACCOUNT_ID"
	EnvTerminalToken = "GENESIS_TERMINAL_TOKEN"
	EnvTerminalURL   = "GENESIS_TERMINAL_URL"
)

// Config represents the complete bridge configuration
type Config struct {
	Account   AccountConfig   `json:"account" yaml:"account"`
	Backend   BackendConfig   `json:"backend" yaml:"backend"`
	Terminal  TerminalConfig  `json:"terminal" yaml:"terminal"`
	Intervals IntervalConfig  `json:"intervals" yaml:"intervals"`
	Risk      risk.Policy     `json:"risk" yaml:"risk"`
	Sessions  market.Sessions `json:"sessions" yaml:"sessions"`
	Reconcile ReconcileConfig `json:"reconcile" yaml:"reconcile"`
	State     StateConfig     `json:"state" yaml:"state"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
}

// AccountConfig identifies the trading account the bridge serves
type AccountConfig struct {
	ID      string   `json:"id" yaml:"id" validate:"required"`
	Symbols []string `json:"symbols" yaml:"symbols" validate:"min=1,dive,required"`
	Magic   int64    `json:"magic" yaml:"magic" validate:"gte=0"`
}

// BackendConfig points at the GENESIS backend
type BackendConfig struct {
	URL       string        `json:"url" yaml:"url" validate:"required,url"`
	Token     string        `json:"token,omitempty" yaml:"token,omitempty"`
	QueryAuth string        `json:"query_auth,omitempty" yaml:"query_auth,omitempty"`
	Timeout   string        `json:"timeout" yaml:"timeout"`
	Retries   int           `json:"retries" yaml:"retries" validate:"gte=0,lte=10"`
	Paths     genesis.Paths `json:"paths,omitempty" yaml:"paths,omitempty"`
}

// TerminalConfig selects the broker gateway. Kind "paper" runs the built-in
// simulator instead of a terminal.
type TerminalConfig struct {
	Kind    string      `json:"kind" yaml:"kind" validate:"oneof=terminal paper"`
	URL     string      `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`
	Token   string      `json:"token,omitempty" yaml:"token,omitempty"`
	Timeout string      `json:"timeout" yaml:"timeout"`
	Prefix  string      `json:"prefix" yaml:"prefix"`
	Paper   PaperConfig `json:"paper" yaml:"paper"`
}

type PaperConfig struct {
	Balance  float64 `json:"balance" yaml:"balance" validate:"gt=0"`
	Currency string  `json:"currency" yaml:"currency" validate:"required,len=3"`
	Leverage int     `json:"leverage" yaml:"leverage" validate:"gte=0"`
}

// IntervalConfig holds task periods as duration strings ("5s", "1m").
// "0" disables a task.
type IntervalConfig struct {
	Signals     string `json:"signals" yaml:"signals"`
	Trades      string `json:"trades" yaml:"trades"`
	Commands    string `json:"commands" yaml:"commands"`
	Heartbeat   string `json:"heartbeat" yaml:"heartbeat"`
	Account     string `json:"account" yaml:"account"`
	TaskTimeout string `json:"task_timeout" yaml:"task_timeout"`
}

type ReconcileConfig struct {
	Lookback       string `json:"lookback" yaml:"lookback"`
	LedgerCapacity int    `json:"ledger_capacity" yaml:"ledger_capacity" validate:"gte=0"`
	OpenPolicy     string `json:"open_policy" yaml:"open_policy" validate:"omitempty,oneof=once always"`
}

// StateConfig selects where the signal cursor and trade ledger live.
type StateConfig struct {
	Kind     string `json:"kind" yaml:"kind" validate:"omitempty,oneof=memory sqlite redis"`
	DSN      string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty" validate:"gte=0"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	TTL      string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type        string `json:"type" yaml:"type" validate:"omitempty,oneof=none csv sqlite"`
	DBPath      string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile  string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	ReportsFile string `json:"reports_file,omitempty" yaml:"reports_file,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"omitempty,oneof=json console"`
}

type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadFromFile loads configuration from a file (YAML, or JSON). Fields the
// file leaves out keep their Default values, and the environment (including
// a .env file in the working directory) overrides both.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	_ = godotenv.Load() // best-effort
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and endpoints from the process environment.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Backend.Token, EnvToken)
	set(&c.Backend.URL, EnvBackendURL)
	set(&c.Account.ID, EnvAccountID)
	set(&c.Terminal.Token, EnvTerminalToken)
	set(&c.Terminal.URL, EnvTerminalURL)
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension).
// Tokens are never written.
func (c *Config) SaveToFile(path string) error {
	out := *c
	out.Backend.Token = ""
	out.Terminal.Token = ""

	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(&out)
	} else {
		data, err = json.MarshalIndent(&out, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}

	durations := map[string]string{
		"backend.timeout":        c.Backend.Timeout,
		"terminal.timeout":       c.Terminal.Timeout,
		"intervals.signals":      c.Intervals.Signals,
		"intervals.trades":       c.Intervals.Trades,
		"intervals.commands":     c.Intervals.Commands,
		"intervals.heartbeat":    c.Intervals.Heartbeat,
		"intervals.account":      c.Intervals.Account,
		"intervals.task_timeout": c.Intervals.TaskTimeout,
		"reconcile.lookback":     c.Reconcile.Lookback,
		"state.ttl":              c.State.TTL,
	}
	for name, v := range durations {
		if _, err := parseDuration(name, v); err != nil {
			return err
		}
	}

	if c.Terminal.Kind == "terminal" && c.Terminal.URL == "" {
		return fmt.Errorf("terminal.url required for terminal kind")
	}
	if c.State.Kind == "sqlite" && c.State.DSN == "" {
		return fmt.Errorf("state.dsn required for sqlite state")
	}
	if c.Journal.Type == "csv" && (c.Journal.TradesFile == "" || c.Journal.ReportsFile == "") {
		return fmt.Errorf("journal trades_file and reports_file required for CSV type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for SQLite type")
	}

	s := c.Sessions
	if s.CloseHour < 0 || s.CloseHour > 23 || s.OpenHour < 0 || s.OpenHour > 23 {
		return fmt.Errorf("sessions open_hour and close_hour must be 0-23")
	}
	for _, h := range s.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return fmt.Errorf("sessions.holidays: %q is not a date", h)
		}
	}
	if c.Risk.MaxRiskPct > 0 && c.Risk.DefaultRiskPct > c.Risk.MaxRiskPct {
		return fmt.Errorf("risk.default_risk_pct exceeds risk.max_risk_pct")
	}
	return nil
}

// describe turns validator output into "section.field ..." messages.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func parseDuration(name, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return d, nil
}

// duration parses a value Validate has already accepted.
func duration(s string) time.Duration {
	d, _ := parseDuration("", s)
	return d
}

// ClientOptions builds the backend client settings.
func (c *Config) ClientOptions() genesis.Options {
	retry := genesis.DefaultRetryPolicy()
	retry.MaxRetries = c.Backend.Retries
	return genesis.Options{
		BaseURL:   c.Backend.URL,
		Token:     c.Backend.Token,
		QueryAuth: c.Backend.QueryAuth,
		Timeout:   duration(c.Backend.Timeout),
		Paths:     c.Backend.Paths,
		Retry:     retry,
	}
}

// BridgeConfig maps the file onto the bridge's runtime settings.
func (c *Config) BridgeConfig() bridge.Config {
	policy, _ := reconcile.ParseOpenPolicy(c.Reconcile.OpenPolicy)
	return bridge.Config{
		AccountID:      c.Account.ID,
		TerminalPrefix: c.Terminal.Prefix,
		Symbols:        c.Account.Symbols,
		Intervals: bridge.Intervals{
			Signals:   duration(c.Intervals.Signals),
			Trades:    duration(c.Intervals.Trades),
			Commands:  duration(c.Intervals.Commands),
			Heartbeat: duration(c.Intervals.Heartbeat),
			Account:   duration(c.Intervals.Account),
		},
		TaskTimeout:    duration(c.Intervals.TaskTimeout),
		Sessions:       c.Sessions,
		Risk:           c.Risk,
		Magic:          c.Account.Magic,
		Lookback:       duration(c.Reconcile.Lookback),
		LedgerCapacity: c.Reconcile.LedgerCapacity,
		OpenPolicy:     policy,
	}
}

// TerminalTimeout is the per-request timeout for the terminal gateway.
func (c *Config) TerminalTimeout() time.Duration {
	return duration(c.Terminal.Timeout)
}

// StateTTL bounds idle redis state; zero keeps it forever.
func (c *Config) StateTTL() time.Duration {
	return duration(c.State.TTL)
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:      "demo-account",
			Symbols: []string{"EURUSD", "GBPUSD", "USDJPY", "XAUUSD"},
			Magic:   20240501,
		},
		Backend: BackendConfig{
			URL:     "http://localhost:8000",
			Timeout: "10s",
			Retries: 2,
		},
		Terminal: TerminalConfig{
			Kind:    "paper",
			Timeout: "10s",
			Prefix:  "genesis",
			Paper: PaperConfig{
				Balance:  10000,
				Currency: "USD",
				Leverage: 100,
			},
		},
		Intervals: IntervalConfig{
			Signals:     "5s",
			Trades:      "30s",
			Commands:    "5s",
			Heartbeat:   "60s",
			Account:     "60s",
			TaskTimeout: "30s",
		},
		// No max-risk gate unless configured: a hinted lot is clamped and
		// executed, not refused.
		Risk: risk.Policy{
			DefaultRiskPct: 0.01,
		},
		Sessions: market.DefaultSessions(),
		Reconcile: ReconcileConfig{
			Lookback:       "720h",
			LedgerCapacity: reconcile.DefaultLedgerCapacity,
			OpenPolicy:     string(reconcile.OpenOnce),
		},
		State: StateConfig{
			Kind: "memory",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./genesis.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
