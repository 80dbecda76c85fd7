// Package config loads service settings from a YAML file, GACHA_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"time"

	"github.com/xtding233/wish-ledger/internal/gacha"
	"github.com/xtding233/wish-ledger/internal/logger"
	"github.com/xtding233/wish-ledger/internal/pricing"
)

// Config is the whole service configuration.
type Config struct {
	Server  ServerConfig      `mapstructure:"server"`
	Log     logger.Config     `mapstructure:"log"`
	Store   StoreConfig       `mapstructure:"store"`
	Lock    LockConfig        `mapstructure:"lock"`
	Ledger  LedgerConfig      `mapstructure:"ledger"`
	Curve   gacha.CurveConfig `mapstructure:"curve"`
	Catalog CatalogConfig     `mapstructure:"catalog"`
	Metrics MetricsConfig     `mapstructure:"metrics"`
	Pricing PricingConfig     `mapstructure:"pricing"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr" validate:"required"`
	GRPCAddr        string        `mapstructure:"grpc_addr"` // empty disables gRPC
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// StoreConfig selects the user store backend.
type StoreConfig struct {
	Driver   string         `mapstructure:"driver" validate:"oneof=memory sqlite postgres bolt"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Bolt     BoltConfig     `mapstructure:"bolt"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns" validate:"gte=0"`
}

type BoltConfig struct {
	Path string `mapstructure:"path"`
}

// LockConfig selects how same-user draws are serialized.
// "local" is enough for a single process; "redis" spans replicas.
type LockConfig struct {
	Driver string      `mapstructure:"driver" validate:"oneof=local redis"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db" validate:"gte=0"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	TTL           time.Duration `mapstructure:"ttl" validate:"gt=0"`
	RetryInterval time.Duration `mapstructure:"retry_interval" validate:"gt=0"`
}

type LedgerConfig struct {
	StartingBalance int64 `mapstructure:"starting_balance" validate:"gte=0"`
	PerDraw         int64 `mapstructure:"per_draw" validate:"gt=0"`
	StrictFunds     bool  `mapstructure:"strict_funds"`
	AttemptWarn     int   `mapstructure:"attempt_warn" validate:"gte=0"`
}

type CatalogConfig struct {
	Path  string `mapstructure:"path" validate:"required"`
	Watch bool   `mapstructure:"watch"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// PricingConfig describes the ticket packs offered for purchase.
type PricingConfig struct {
	Currency string       `mapstructure:"currency"`
	TaxRate  float64      `mapstructure:"tax_rate" validate:"gte=0,lt=1"`
	Packs    []PackConfig `mapstructure:"packs" validate:"dive"`
}

type PackConfig struct {
	ID          string `mapstructure:"id" validate:"required"`
	Name        string `mapstructure:"name"`
	Tickets     int    `mapstructure:"tickets" validate:"gt=0"`
	Bonus       int    `mapstructure:"bonus" validate:"gte=0"`
	FirstTimeX2 bool   `mapstructure:"first_time_x2"`
	PriceCents  int    `mapstructure:"price_cents" validate:"gt=0"`
}

// Shop converts the pack list for the pricing planner.
func (p PricingConfig) Shop() pricing.Shop {
	shop := pricing.Shop{Currency: p.Currency, TaxRate: p.TaxRate}
	for _, pk := range p.Packs {
		shop.Packs = append(shop.Packs, pricing.Pack{
			ID:          pk.ID,
			Name:        pk.Name,
			Tickets:     pk.Tickets,
			Bonus:       pk.Bonus,
			FirstTimeX2: pk.FirstTimeX2,
			PriceCents:  pk.PriceCents,
		})
	}
	return shop
}
