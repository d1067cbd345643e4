package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}

	if cfg.API.BaseURL != "https://shop.example.com" {
		t.Fatalf("unexpected API base URL: %q", cfg.API.BaseURL)
	}

	if got := cfg.API.RequestTimeout; got != 10*time.Second {
		t.Fatalf("expected default request timeout 10s, got %v", got)
	}

	if cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("expected default max attempts 3, got %d", cfg.Retry.MaxAttempts)
	}

	if cfg.Cart.ShippingFee != "50" {
		t.Fatalf("unexpected shipping fee default %q", cfg.Cart.ShippingFee)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAPIBaseURL); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAPIBaseURL, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_RejectsNonHTTPBaseURL(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvAPIBaseURL, "ftp://shop.example.com")

	if _, err := Load(); err == nil {
		t.Fatal("expected non-http base url to be rejected")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvAPIBaseURL, "https://shop.example.com")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvJWTSecret, "secret")
	t.Setenv(EnvJWTIssuer, "storefront")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEVELOPMENT"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "production"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
	if prodConfig.IsDev() {
		t.Fatalf("expected IsDev false for %q", prodConfig.Env)
	}
}

func TestRedisConfigEnabled(t *testing.T) {
	if (RedisConfig{}).Enabled() {
		t.Fatalf("empty redis config should be disabled")
	}
	if !(RedisConfig{Address: "localhost:6379"}).Enabled() {
		t.Fatalf("redis config with address should be enabled")
	}
}
