package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App     AppConfig
	API     APIConfig
	Retry   RetryConfig
	Cart    CartConfig
	Session SessionConfig
	Redis   RedisConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.API.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"development"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type APIConfig struct {
	BaseURL        string        `envconfig:"STOREFRONT_API_BASE_URL" required:"true"`
	RequestTimeout time.Duration `envconfig:"STOREFRONT_API_REQUEST_TIMEOUT" default:"10s"`
}

func (a APIConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(a.BaseURL))
	if err != nil {
		return fmt.Errorf("parsing api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api base url must be http(s), got %q", a.BaseURL)
	}
	if a.RequestTimeout <= 0 {
		return fmt.Errorf("api request timeout must be positive")
	}
	return nil
}

type RetryConfig struct {
	MaxAttempts int           `envconfig:"STOREFRONT_RETRY_MAX_ATTEMPTS" default:"3"`
	BaseDelay   time.Duration `envconfig:"STOREFRONT_RETRY_BASE_DELAY" default:"200ms"`
	MaxDelay    time.Duration `envconfig:"STOREFRONT_RETRY_MAX_DELAY" default:"2s"`
}

type CartConfig struct {
	// ShippingFee is the flat fee applied to any non-empty cart, in the
	// storefront's display currency.
	ShippingFee string `envconfig:"STOREFRONT_CART_SHIPPING_FEE" default:"50"`
}

type SessionConfig struct {
	JWTSecret string `envconfig:"STOREFRONT_JWT_SECRET"`
	JWTIssuer string `envconfig:"STOREFRONT_JWT_ISSUER"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured at all; the
// client falls back to in-memory stores when it was not.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}
