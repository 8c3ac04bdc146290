package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "storefront"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv     = "STOREFRONT_APP_ENV"
	EnvAPIBaseURL = "STOREFRONT_API_BASE_URL"
)

type Config struct {
	App      AppConfig
	API      APIConfig
	Identity IdentityConfig
	Media    MediaConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.API.ensureBaseURL(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
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
	RequestTimeout time.Duration `envconfig:"STOREFRONT_API_REQUEST_TIMEOUT" default:"30s"`
	UserAgent      string        `envconfig:"STOREFRONT_API_USER_AGENT" default:"storefront-client/1.0"`
	Platform       string        `envconfig:"STOREFRONT_API_PLATFORM" default:"web"`
}

func (a *APIConfig) ensureBaseURL() error {
	trimmed := strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	if trimmed == "" {
		return fmt.Errorf("%s is required", EnvAPIBaseURL)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvAPIBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", EnvAPIBaseURL)
	}
	a.BaseURL = trimmed
	return nil
}

type IdentityConfig struct {
	// Fingerprint pins the per-install device id; when empty a random
	// one is generated once per process.
	Fingerprint string `envconfig:"STOREFRONT_DEVICE_FINGERPRINT"`
}

type MediaConfig struct {
	UploadTimeout  time.Duration `envconfig:"STOREFRONT_MEDIA_UPLOAD_TIMEOUT" default:"2m"`
	MaxUploadBytes int64         `envconfig:"STOREFRONT_MEDIA_MAX_UPLOAD_BYTES" default:"20971520"`
}
