package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix maps store.driver to GACHA_STORE_DRIVER.
const EnvPrefix = "GACHA"

var ErrValidationFailed = errors.New("config validation failed")

// flag name → config key
var flagKeys = map[string]string{
	"http-addr":    "server.http_addr",
	"grpc-addr":    "server.grpc_addr",
	"store-driver": "store.driver",
	"catalog":      "catalog.path",
	"log-level":    "log.level",
}

// RegisterFlags adds the config file flag and the overridable settings to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "path to the YAML config file")
	fs.String("http-addr", "", "HTTP listen address")
	fs.String("grpc-addr", "", "gRPC listen address, empty disables gRPC")
	fs.String("store-driver", "", "user store: memory, sqlite, postgres or bolt")
	fs.String("catalog", "", "path to the catalog YAML file")
	fs.String("log-level", "", "debug, info, warn or error")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", "")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.enable_console", true)
	v.SetDefault("log.enable_file", false)
	v.SetDefault("log.output_path", "")
	v.SetDefault("log.time_format", "2006-01-02 15:04:05")
	v.SetDefault("log.development", false)
	v.SetDefault("log.rotation.max_size", 100)
	v.SetDefault("log.rotation.max_backups", 5)
	v.SetDefault("log.rotation.max_age", 7)
	v.SetDefault("log.rotation.compress", true)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite.path", "wish.db")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.max_conns", 10)
	v.SetDefault("store.bolt.path", "wish.bolt")

	v.SetDefault("lock.driver", "local")
	v.SetDefault("lock.redis.addr", "localhost:6379")
	v.SetDefault("lock.redis.password", "")
	v.SetDefault("lock.redis.db", 0)
	v.SetDefault("lock.redis.key_prefix", "wish:lock:user:")
	v.SetDefault("lock.redis.ttl", "10s")
	v.SetDefault("lock.redis.retry_interval", "20ms")

	v.SetDefault("ledger.starting_balance", 1000)
	v.SetDefault("ledger.per_draw", 1)
	v.SetDefault("ledger.strict_funds", false)
	v.SetDefault("ledger.attempt_warn", 1000)

	v.SetDefault("curve.base_rate", 0.006)
	v.SetDefault("curve.soft_start", 70)
	v.SetDefault("curve.hard_pity", 90)

	v.SetDefault("catalog.path", "catalog.yaml")
	v.SetDefault("catalog.watch", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("pricing.currency", "USD")
	v.SetDefault("pricing.tax_rate", 0)
}

// Load reads the file named by the --config flag (if any), then applies
// environment and flag overrides. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	path := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}
	return load(path, fs)
}

// LoadFile is Load without flags.
func LoadFile(path string) (*Config, error) {
	return load(path, nil)
}

func load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			// only explicitly set flags override file and env
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %s", ErrValidationFailed, formatValidationErrors(err))
	}
	if err := cfg.Log.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	var errs []string
	switch cfg.Store.Driver {
	case "sqlite":
		if cfg.Store.SQLite.Path == "" {
			errs = append(errs, "store.sqlite.path is required for driver=sqlite")
		}
	case "postgres":
		if cfg.Store.Postgres.DSN == "" {
			errs = append(errs, "store.postgres.dsn is required for driver=postgres")
		}
	case "bolt":
		if cfg.Store.Bolt.Path == "" {
			errs = append(errs, "store.bolt.path is required for driver=bolt")
		}
	}
	if cfg.Lock.Driver == "redis" && cfg.Lock.Redis.Addr == "" {
		errs = append(errs, "lock.redis.addr is required for driver=redis")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(errs, "; "))
	}
	return nil
}

func formatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("field '%s' is required", fe.Namespace()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("field '%s' must be one of [%s]", fe.Namespace(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("field '%s' failed '%s%s'", fe.Namespace(), fe.Tag(), paramSuffix(fe.Param())))
		}
	}
	return strings.Join(parts, "; ")
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}
