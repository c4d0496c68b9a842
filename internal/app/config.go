// Package app composes the storefront: it loads the combined
// configuration, bootstraps infrastructure, wires the domain packages
// into the core bot runtime and owns the lifecycle hooks.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	corecache "github.com/riky-24/bot-medsos-sub000/core/cache"
	coreconfig "github.com/riky-24/bot-medsos-sub000/core/config"
	coredatabase "github.com/riky-24/bot-medsos-sub000/core/database"
	"github.com/riky-24/bot-medsos-sub000/internal/catalog"
	"github.com/riky-24/bot-medsos-sub000/internal/shop"
	"github.com/riky-24/bot-medsos-sub000/internal/tripay"
	"github.com/riky-24/bot-medsos-sub000/internal/webhook"
)

// SessionConfig tunes the in-memory session store and its sweep.
type SessionConfig struct {
	// TTL is the hard expiry stamped when a session is created; 0 uses
	// the store default.
	TTL time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
	// MaxIdle drops sessions without activity for this long.
	MaxIdle    time.Duration `yaml:"max_idle" envconfig:"SESSION_MAX_IDLE"`
	SweepEvery time.Duration `yaml:"sweep_every" envconfig:"SESSION_SWEEP_EVERY"`
}

// LimitsConfig tunes the per-user throttles.
type LimitsConfig struct {
	// RefreshCooldown spaces on-demand status syncs per chat.
	RefreshCooldown time.Duration `yaml:"refresh_cooldown" envconfig:"LIMIT_REFRESH_COOLDOWN"`
	// ValidateMax caps remote player validations per user within
	// ValidateWindow.
	ValidateMax    int           `yaml:"validate_max" envconfig:"LIMIT_VALIDATE_MAX"`
	ValidateWindow time.Duration `yaml:"validate_window" envconfig:"LIMIT_VALIDATE_WINDOW"`
	SweepEvery     time.Duration `yaml:"sweep_every" envconfig:"LIMIT_SWEEP_EVERY"`
}

// MetricsConfig names the Prometheus namespace.
type MetricsConfig struct {
	Namespace string `yaml:"namespace" envconfig:"METRICS_NAMESPACE"`
}

// Config aggregates the core runtime configuration with the storefront
// sections. The core sections keep their top-level YAML keys.
type Config struct {
	Core coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Cache    corecache.Config    `yaml:"cache"`

	VIP      catalog.Config       `yaml:"vip"`
	Tripay   tripay.Config        `yaml:"tripay"`
	Callback webhook.ServerConfig `yaml:"callback"`

	Shop    shop.Config   `yaml:"shop"`
	Session SessionConfig `yaml:"session"`
	Limits  LimitsConfig  `yaml:"limits"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// Load reads the composed configuration from a YAML file, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Session.MaxIdle <= 0 {
		c.Session.MaxIdle = 24 * time.Hour
	}
	if c.Session.SweepEvery <= 0 {
		c.Session.SweepEvery = 10 * time.Minute
	}
	if c.Limits.RefreshCooldown <= 0 {
		c.Limits.RefreshCooldown = 3 * time.Second
	}
	if c.Limits.ValidateMax <= 0 {
		c.Limits.ValidateMax = 5
	}
	if c.Limits.ValidateWindow <= 0 {
		c.Limits.ValidateWindow = 10 * time.Minute
	}
	if c.Limits.SweepEvery <= 0 {
		c.Limits.SweepEvery = time.Minute
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "medsos"
	}
}

func (c *Config) validate() error {
	if c.VIP.APIID == "" {
		return fmt.Errorf("vip.api_id is required")
	}
	if c.VIP.APIKey == "" {
		return fmt.Errorf("vip.api_key is required")
	}
	if c.Shop.SimulatePayment {
		return nil
	}
	if c.Tripay.APIKey == "" {
		return fmt.Errorf("tripay.api_key is required unless shop.simulate_payment is set")
	}
	if c.Tripay.PrivateKey == "" {
		return fmt.Errorf("tripay.private_key is required unless shop.simulate_payment is set")
	}
	if c.Tripay.MerchantCode == "" {
		return fmt.Errorf("tripay.merchant_code is required unless shop.simulate_payment is set")
	}
	return nil
}
