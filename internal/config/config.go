package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	StoreID       string `envconfig:"DEFAULT_STORE_ID" default:"main-store"`

	AuthSecret            string `envconfig:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `envconfig:"ACCESS_TOKEN_TTL_MINUTES" default:"480"`
	ManagerPIN            string `envconfig:"MANAGER_PIN"`

	InvoicePrefix         string `envconfig:"INVOICE_PREFIX" default:"INV"`
	InvoiceRetryDelayMS   int    `envconfig:"INVOICE_RETRY_DELAY_MS" default:"25"`
	DrawerCacheTTLSeconds int    `envconfig:"DRAWER_CACHE_TTL_SECONDS" default:"5"`
	SimulatorDeclinePAN   string `envconfig:"PAYMENT_SIMULATOR_DECLINE_PAN"`
}

// Load reads the process environment. Empty and out-of-range values fall back
// to their defaults; values that do not parse at all are an error.
func Load() (Config, error) {
	var cfg Config
	if err := clearEmptyEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.ManagerPIN = strings.TrimSpace(cfg.ManagerPIN)
	cfg.InvoicePrefix = strings.ToUpper(strings.TrimSpace(cfg.InvoicePrefix))
	if cfg.InvoicePrefix == "" {
		cfg.InvoicePrefix = "INV"
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.InvoiceRetryDelayMS < 0 {
		cfg.InvoiceRetryDelayMS = 25
	}
	if cfg.DrawerCacheTTLSeconds < 1 {
		cfg.DrawerCacheTTLSeconds = 5
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) InvoiceRetryDelay() time.Duration {
	return time.Duration(c.InvoiceRetryDelayMS) * time.Millisecond
}

func (c Config) DrawerCacheTTL() time.Duration {
	return time.Duration(c.DrawerCacheTTLSeconds) * time.Second
}

// clearEmptyEnv unsets blank variables so envconfig applies the field default
// instead of parsing "".
func clearEmptyEnv(spec any) error {
	t := reflect.TypeOf(spec).Elem()
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("envconfig")
		if key == "" {
			continue
		}
		if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) == "" {
			if err := os.Unsetenv(key); err != nil {
				return err
			}
		}
	}
	return nil
}
