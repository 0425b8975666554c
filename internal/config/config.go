package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

var defaults = map[string]interface{}{
	"web.port":            "8080",
	"log.level":           "info",
	"backend.url":         "http://localhost:3000/api",
	"backend.token":       "",
	"backend.timeout":     "3s",
	"nats.url":            "",
	"db.mongo.url":        "",
	"db.mongo.name":       "kitchen_pos",
	"tax.rate":            "0.10",
	"settlement.unpriced": false,
	"ticker.interval":     "1s",
	"menu.retry":          "30s",
}

// Config holds the service settings resolved from defaults and environment
type Config struct {
	WebPort        string
	LogLevel       string
	BackendURL     string
	BackendToken   string
	BackendTimeout time.Duration
	NATSURL        string
	MongoURL       string
	MongoName      string
	TaxRate        decimal.Decimal
	AllowUnpriced  bool
	TickInterval   time.Duration
	MenuRetry      time.Duration
}

// Load reads defaults and then NAMESPACE_-prefixed environment variables.
// KITCHEN_DB_MONGO_URL maps to db.mongo.url.
func Load(namespace string) (*Config, error) {
	return LoadWith(namespace, nil)
}

// LoadWith is Load with per-binary defaults layered over the shared ones
func LoadWith(namespace string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("cannot load defaults: %w", err)
	}
	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("cannot load overrides: %w", err)
		}
	}

	prefix := strings.ToUpper(namespace) + "_"
	err := k.Load(env.Provider(prefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, prefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("cannot load environment: %w", err)
	}

	taxRate, err := decimal.NewFromString(k.String("tax.rate"))
	if err != nil {
		return nil, fmt.Errorf("invalid tax.rate %q: %w", k.String("tax.rate"), err)
	}
	if taxRate.IsNegative() {
		return nil, fmt.Errorf("invalid tax.rate %q: must not be negative", k.String("tax.rate"))
	}

	cfg := &Config{
		WebPort:        k.String("web.port"),
		LogLevel:       k.String("log.level"),
		BackendURL:     k.String("backend.url"),
		BackendToken:   k.String("backend.token"),
		BackendTimeout: k.Duration("backend.timeout"),
		NATSURL:        k.String("nats.url"),
		MongoURL:       k.String("db.mongo.url"),
		MongoName:      k.String("db.mongo.name"),
		TaxRate:        taxRate,
		AllowUnpriced:  k.Bool("settlement.unpriced"),
		TickInterval:   k.Duration("ticker.interval"),
		MenuRetry:      k.Duration("menu.retry"),
	}

	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("invalid ticker.interval %q", k.String("ticker.interval"))
	}
	if cfg.MenuRetry <= 0 {
		return nil, fmt.Errorf("invalid menu.retry %q", k.String("menu.retry"))
	}
	if cfg.BackendTimeout <= 0 {
		return nil, fmt.Errorf("invalid backend.timeout %q", k.String("backend.timeout"))
	}

	return cfg, nil
}
