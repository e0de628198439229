package pubhost

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eringen/pubhost/billing"
)

// Config holds all configuration for a pubhost instance.
type Config struct {
	Name string `yaml:"name"` // Platform name (default "pubhost")
	URL  string `yaml:"url"`  // Canonical URL (default "http://localhost:3000")

	Addr         string `yaml:"addr"`          // Listen address (default ":3000")
	DatabasePath string `yaml:"database_path"` // SQLite path (default "data/pubhost.db")
	StaticDir    string `yaml:"static_dir"`    // Static assets and uploads (default "public")

	AnalyticsEnabled      bool   `yaml:"analytics"`               // Count public page views
	AnalyticsDatabasePath string `yaml:"analytics_database_path"` // default "data/analytics.db"

	SessionSecret string `yaml:"session_secret"` // Required, at least 32 bytes
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS

	CacheTTL      time.Duration `yaml:"cache_ttl"`       // Public site cache TTL (default 5m)
	FreeSiteLimit int           `yaml:"free_site_limit"` // Sites allowed without subscription (default 1)

	LogLevel    string `yaml:"log_level"`   // debug, info, warn, error
	Development bool   `yaml:"development"` // human-readable logs

	Stripe StripeConfig `yaml:"stripe"`
}

// StripeConfig holds payment provider credentials. Billing is disabled when
// SecretKey is empty.
type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	PriceID       string `yaml:"price_id"`
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "pubhost"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/pubhost.db"
	}
	if c.AnalyticsDatabasePath == "" {
		c.AnalyticsDatabasePath = "data/analytics.db"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.FreeSiteLimit == 0 {
		c.FreeSiteLimit = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports configuration that would prevent the server from running.
func (c Config) Validate() error {
	if len(c.SessionSecret) < 32 {
		return errors.New("pubhost: session secret must be at least 32 bytes")
	}
	if c.BillingEnabled() {
		if c.Stripe.PriceID == "" {
			return errors.New("pubhost: stripe price id is required when billing is enabled")
		}
		if c.Stripe.WebhookSecret == "" {
			return errors.New("pubhost: stripe webhook secret is required when billing is enabled")
		}
	}
	if c.FreeSiteLimit < 0 {
		return fmt.Errorf("pubhost: free site limit must not be negative, got %d", c.FreeSiteLimit)
	}
	return nil
}

// BillingEnabled reports whether a payment provider is configured.
func (c Config) BillingEnabled() bool {
	return c.Stripe.SecretKey != ""
}

// LoadConfig reads defaults, then the YAML file at path (if path is non-empty
// and the file exists), then environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{AnalyticsEnabled: true}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	setString("PUBHOST_NAME", &c.Name)
	setString("PUBHOST_URL", &c.URL)
	setString("PUBHOST_ADDR", &c.Addr)
	setString("PUBHOST_DATABASE_PATH", &c.DatabasePath)
	setString("PUBHOST_ANALYTICS_DATABASE_PATH", &c.AnalyticsDatabasePath)
	setString("PUBHOST_SESSION_SECRET", &c.SessionSecret)
	setString("PUBHOST_STATIC_DIR", &c.StaticDir)
	setString("PUBHOST_LOG_LEVEL", &c.LogLevel)
	setString("STRIPE_SECRET_KEY", &c.Stripe.SecretKey)
	setString("STRIPE_WEBHOOK_SECRET", &c.Stripe.WebhookSecret)
	setString("STRIPE_PRICE_ID", &c.Stripe.PriceID)
	if err := setBool("PUBHOST_ANALYTICS", &c.AnalyticsEnabled); err != nil {
		return err
	}
	if err := setBool("PUBHOST_COOKIE_SECURE", &c.CookieSecure); err != nil {
		return err
	}
	if err := setBool("PUBHOST_DEVELOPMENT", &c.Development); err != nil {
		return err
	}
	if v := os.Getenv("PUBHOST_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PUBHOST_CACHE_TTL: %w", err)
		}
		c.CacheTTL = d
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithBilling sets the payment provider used for subscriptions.
func WithBilling(p billing.Provider) Option {
	return func(a *App) {
		a.Billing = p
	}
}

// WithLogger replaces the default production logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}
