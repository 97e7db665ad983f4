package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/genesis/broker"
	"github.com/rustyeddy/genesis/broker/paper"
	"github.com/rustyeddy/genesis/dispatch"
	"github.com/rustyeddy/genesis/genesis"
	"github.com/rustyeddy/genesis/market"
	"github.com/rustyeddy/genesis/reconcile"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "paper", cfg.Terminal.Kind)
	assert.Equal(t, 0.01, cfg.Risk.DefaultRiskPct)
	assert.Zero(t, cfg.Risk.MaxRiskPct, "max-risk gate is opt-in")
	assert.NoError(t, cfg.Validate())
}

type reportSink struct{ list []genesis.TradeReport }

func (r *reportSink) TradeReport(_ context.Context, rep genesis.TradeReport) error {
	r.list = append(r.list, rep)
	return nil
}

func TestDefaultRiskExecutesHintedSignal(t *testing.T) {
	midweek := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	eng := paper.NewEngine(broker.Account{Balance: 10000}, nil)
	eng.SetClock(func() time.Time { return midweek })
	require.NoError(t, eng.UpdatePrice(market.Tick{Symbol: "EURUSD", Bid: 1.0948, Ask: 1.0950, Time: midweek}))

	bc := Default().BridgeConfig()
	sink := &reportSink{}
	d := dispatch.New(dispatch.Config{AccountID: "acct-1", Sessions: bc.Sessions, Risk: bc.Risk}, eng, sink,
		dispatch.WithClock(func() time.Time { return midweek }))

	// 0.5 lots with a 50 pip stop risks 2.5% of the balance.
	rep := d.Dispatch(context.Background(), genesis.Signal{
		ID: 1, Symbol: "EURUSD", Action: genesis.BuyNow, LotSize: 0.5, StopLoss: 1.0900,
	})
	assert.Equal(t, genesis.StatusSuccess, rep.Status, rep.Message)
	require.Len(t, sink.list, 1)

	positions, err := eng.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 0.5, positions[0].Volume, 1e-9)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:   "missing account id",
			mutate: func(c *Config) { c.Account.ID = "" },
			errMsg: "account.id is required",
		},
		{
			name:   "no symbols",
			mutate: func(c *Config) { c.Account.Symbols = nil },
			errMsg: "account.symbols",
		},
		{
			name:   "bad backend url",
			mutate: func(c *Config) { c.Backend.URL = "not a url" },
			errMsg: "backend.url",
		},
		{
			name:   "unknown terminal kind",
			mutate: func(c *Config) { c.Terminal.Kind = "fix" },
			errMsg: "terminal.kind must be one of [terminal paper]",
		},
		{
			name:   "terminal without url",
			mutate: func(c *Config) { c.Terminal.Kind = "terminal" },
			errMsg: "terminal.url required",
		},
		{
			name:   "risk above one",
			mutate: func(c *Config) { c.Risk.MaxRiskPct = 1.5 },
			errMsg: "risk.max_risk_pct",
		},
		{
			name:   "default risk above max",
			mutate: func(c *Config) { c.Risk.DefaultRiskPct, c.Risk.MaxRiskPct = 0.05, 0.02 },
			errMsg: "exceeds risk.max_risk_pct",
		},
		{
			name:   "bad interval",
			mutate: func(c *Config) { c.Intervals.Signals = "often" },
			errMsg: "intervals.signals",
		},
		{
			name:   "negative lookback",
			mutate: func(c *Config) { c.Reconcile.Lookback = "-1h" },
			errMsg: "reconcile.lookback must not be negative",
		},
		{
			name:   "unknown open policy",
			mutate: func(c *Config) { c.Reconcile.OpenPolicy = "never" },
			errMsg: "reconcile.open_policy",
		},
		{
			name:   "sqlite state without dsn",
			mutate: func(c *Config) { c.State.Kind = "sqlite" },
			errMsg: "state.dsn required",
		},
		{
			name:   "csv journal without files",
			mutate: func(c *Config) { c.Journal = JournalConfig{Type: "csv", TradesFile: "t.csv"} },
			errMsg: "journal trades_file and reports_file required",
		},
		{
			name:   "sqlite journal without path",
			mutate: func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} },
			errMsg: "journal db_path required",
		},
		{
			name:   "session hour",
			mutate: func(c *Config) { c.Sessions.OpenHour = 24 },
			errMsg: "open_hour and close_hour",
		},
		{
			name:   "holiday format",
			mutate: func(c *Config) { c.Sessions.Holidays = []string{"25/12/2024"} },
			errMsg: "sessions.holidays",
		},
		{
			name:   "metrics addr",
			mutate: func(c *Config) { c.Metrics.Addr = "nope" },
			errMsg: "metrics.addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
account:
  id: live-42
  symbols: [EURUSD]
backend:
  url: https://genesis.example.com/api
intervals:
  account: "0"
reconcile:
  open_policy: always
`), 0o600))

	t.Setenv(EnvToken, "from-env")
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "live-42", cfg.Account.ID)
	assert.Equal(t, []string{"EURUSD"}, cfg.Account.Symbols)
	assert.Equal(t, "from-env", cfg.Backend.Token)
	assert.Equal(t, "10s", cfg.Backend.Timeout, "unset fields keep defaults")

	bc := cfg.BridgeConfig()
	assert.Equal(t, 5*time.Second, bc.Intervals.Signals)
	assert.Zero(t, bc.Intervals.Account)
	assert.Equal(t, 720*time.Hour, bc.Lookback)
	assert.Equal(t, reconcile.OpenAlways, bc.OpenPolicy)

	opts := cfg.ClientOptions()
	assert.Equal(t, "https://genesis.example.com/api", opts.BaseURL)
	assert.Equal(t, 10*time.Second, opts.Timeout)
	assert.Equal(t, 2, opts.Retry.MaxRetries)
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"account":{"id":"json-1","symbols":["XAUUSD"]},"terminal":{"kind":"terminal","url":"http://127.0.0.1:9000"}}`), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "json-1", cfg.Account.ID)
	assert.Equal(t, "terminal", cfg.Terminal.Kind)
}

func TestLoadInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  id: \"\"\n"), 0o600))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")

	_, err = LoadFromFile(filepath.Join(tmpDir, "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{"cfg.yaml", "cfg.json"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Account.ID = "roundtrip"
			cfg.Backend.Token = "secret"

			path := filepath.Join(tmpDir, name)
			require.NoError(t, cfg.SaveToFile(path))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NotContains(t, string(data), "secret", "tokens stay out of config files")

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, "roundtrip", loaded.Account.ID)
			assert.Equal(t, cfg.Sessions, loaded.Sessions)
		})
	}
}
