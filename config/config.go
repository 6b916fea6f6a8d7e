package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Store    StoreConfig    `mapstructure:"store"`
	PayPal   PayPalConfig   `mapstructure:"paypal"`
	Bitcoin  CryptoConfig   `mapstructure:"bitcoin"`
	Monero   CryptoConfig   `mapstructure:"monero"`
	Rates    RatesConfig    `mapstructure:"rates"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AdminConfig covers verification of admin bearer tokens. Token issuance
// lives in the upstream auth service; this service only validates.
type AdminConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

// StoreConfig holds storefront-wide commerce settings.
type StoreConfig struct {
	Currency string `mapstructure:"currency"` // ISO 4217, e.g. GBP
}

// PayPalConfig configures the synchronous card/wallet gateway.
type PayPalConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	ClientID      string        `mapstructure:"client_id"`
	ClientSecret  string        `mapstructure:"client_secret"`
	WebhookID     string        `mapstructure:"webhook_id"`
	MaxAmount     string        `mapstructure:"max_amount"` // store currency units
	SessionExpiry time.Duration `mapstructure:"session_expiry"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// MaxAmountDecimal parses the configured per-gateway cap.
func (p PayPalConfig) MaxAmountDecimal() decimal.Decimal {
	return mustAmount(p.MaxAmount)
}

// CryptoConfig configures an asynchronous blockchain-settled gateway
// (Bitcoin, Monero) backed by a hosted payment processor.
type CryptoConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	MaxAmount     string        `mapstructure:"max_amount"` // store currency units
	SessionExpiry time.Duration `mapstructure:"session_expiry"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// MaxAmountDecimal parses the configured per-gateway cap.
func (c CryptoConfig) MaxAmountDecimal() decimal.Decimal {
	return mustAmount(c.MaxAmount)
}

// RatesConfig configures the fiat->crypto exchange-rate source and cache.
type RatesConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	TTL     time.Duration `mapstructure:"ttl"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SMTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	From string `mapstructure:"from"`
}

// Addr returns the SMTP address string.
func (s SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SweepConfig drives the stale-payment expiry daemon.
type SweepConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// mustAmount parses a config amount, falling back to zero (no cap) on a
// malformed value. Validation happens at load time via Validate.
func mustAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Validate rejects configurations that would fail at first use.
func (c *Config) Validate() error {
	if c.Store.Currency == "" {
		return fmt.Errorf("store.currency must be set")
	}
	for name, amount := range map[string]string{
		"paypal.max_amount":  c.PayPal.MaxAmount,
		"bitcoin.max_amount": c.Bitcoin.MaxAmount,
		"monero.max_amount":  c.Monero.MaxAmount,
	} {
		if _, err := decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("%s: invalid amount %q", name, amount)
		}
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SPE_ (Storefront
// Payments Engine). Nested keys use underscore: SPE_DATABASE_HOST,
// SPE_PAYPAL_CLIENT_ID, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "storefront_payments")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.jwt_issuer", "storefront")
	v.SetDefault("store.currency", "GBP")
	v.SetDefault("paypal.base_url", "https://api-m.sandbox.paypal.com")
	v.SetDefault("paypal.client_id", "")
	v.SetDefault("paypal.client_secret", "")
	v.SetDefault("paypal.webhook_id", "")
	v.SetDefault("paypal.max_amount", "10000")
	v.SetDefault("paypal.session_expiry", "3h")
	v.SetDefault("paypal.timeout", "10s")
	v.SetDefault("bitcoin.base_url", "")
	v.SetDefault("bitcoin.api_key", "")
	v.SetDefault("bitcoin.webhook_secret", "")
	v.SetDefault("bitcoin.max_amount", "25000")
	v.SetDefault("bitcoin.session_expiry", "30m")
	v.SetDefault("bitcoin.timeout", "10s")
	v.SetDefault("monero.base_url", "")
	v.SetDefault("monero.api_key", "")
	v.SetDefault("monero.webhook_secret", "")
	v.SetDefault("monero.max_amount", "25000")
	v.SetDefault("monero.session_expiry", "30m")
	v.SetDefault("monero.timeout", "10s")
	v.SetDefault("rates.base_url", "")
	v.SetDefault("rates.ttl", "5m")
	v.SetDefault("rates.timeout", "5s")
	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "orders@example.shop")
	v.SetDefault("sweep.interval", "1m")
	v.SetDefault("sweep.batch_size", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: SPE_DATABASE_HOST -> database.host
	v.SetEnvPrefix("SPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
