package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "local", cfg.Lock.Driver)
	assert.EqualValues(t, 1000, cfg.Ledger.StartingBalance)
	assert.EqualValues(t, 1, cfg.Ledger.PerDraw)
	assert.False(t, cfg.Ledger.StrictFunds)
	assert.Equal(t, 0.006, cfg.Curve.BaseRate)
	assert.Equal(t, 70, cfg.Curve.SoftStart)
	assert.Equal(t, 90, cfg.Curve.HardPity)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":9000"
  grpc_addr: ":9001"
store:
  driver: bolt
  bolt:
    path: /tmp/wish.bolt
ledger:
  starting_balance: 50
  strict_funds: true
lock:
  redis:
    ttl: 3s
pricing:
  currency: CAD
  packs:
    - id: "60"
      tickets: 1
      price_cents: 99
`)
	t.Setenv("GACHA_SERVER_HTTP_ADDR", ":7000")
	t.Setenv("GACHA_LEDGER_ATTEMPT_WARN", "42")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.HTTPAddr)
	assert.Equal(t, ":9001", cfg.Server.GRPCAddr)
	assert.Equal(t, "bolt", cfg.Store.Driver)
	assert.Equal(t, "/tmp/wish.bolt", cfg.Store.Bolt.Path)
	assert.EqualValues(t, 50, cfg.Ledger.StartingBalance)
	assert.True(t, cfg.Ledger.StrictFunds)
	assert.Equal(t, 42, cfg.Ledger.AttemptWarn)
	assert.Equal(t, 3*time.Second, cfg.Lock.Redis.TTL)
	require.Len(t, cfg.Pricing.Packs, 1)
	assert.Equal(t, 99, cfg.Pricing.Packs[0].PriceCents)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("GACHA_STORE_DRIVER", "bolt")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--store-driver=memory", "--log-level=debug"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.EqualValues(t, "debug", cfg.Log.Level)
	// unset flags leave defaults alone
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
}

func TestValidation(t *testing.T) {
	cases := map[string]string{
		"bad driver":  "store:\n  driver: mongo\n",
		"bad curve":   "curve:\n  soft_start: 95\n",
		"bad rate":    "curve:\n  base_rate: 1.5\n",
		"no dsn":      "store:\n  driver: postgres\n",
		"bad lock":    "lock:\n  driver: zookeeper\n",
		"zero price":  "ledger:\n  per_draw: 0\n",
		"bad pack":    "pricing:\n  packs:\n    - id: x\n      tickets: 0\n      price_cents: 1\n",
		"no redis":    "lock:\n  driver: redis\n  redis:\n    addr: \"\"\n",
		"no log sink": "log:\n  enable_console: false\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, body))
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}
}

func TestMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPricingShop(t *testing.T) {
	p := PricingConfig{
		Currency: "CAD",
		TaxRate:  0.13,
		Packs:    []PackConfig{{ID: "60", Name: "60 Tickets", Tickets: 60, FirstTimeX2: true, PriceCents: 99}},
	}
	shop := p.Shop()
	assert.Equal(t, "CAD", shop.Currency)
	assert.Equal(t, 0.13, shop.TaxRate)
	require.Len(t, shop.Packs, 1)
	assert.Equal(t, 60, shop.Packs[0].Tickets)
	assert.True(t, shop.Packs[0].FirstTimeX2)
}
