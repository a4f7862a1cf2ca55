// Package config loads and validates the service configuration from the
// environment and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :2222).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment; "production" switches the logger to JSON.
	Env string `mapstructure:"APP_ENV"`

	ZitadelDomain       string `mapstructure:"ZITADEL_DOMAIN"`
	ZitadelInsecurePort string `mapstructure:"ZITADEL_INSECURE_PORT"`
	ZitadelPAT          string `mapstructure:"ZITADEL_PAT"`
	ZitadelKeyPath      string `mapstructure:"ZITADEL_KEY_PATH"`
	ZitadelOrgID        string `mapstructure:"ZITADEL_ORG_ID"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleIssuer       string `mapstructure:"GOOGLE_ISSUER"`

	// PublicBaseURL is where the provider redirects back to; the OAuth
	// callback path is appended to it.
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`
	// AppScheme and AppRedirectPath build the deep link the app is sent to
	// after sign-in (scheme:///path).
	AppScheme       string `mapstructure:"APP_SCHEME"`
	AppRedirectPath string `mapstructure:"APP_REDIRECT_PATH"`

	RegistrationAPIURL  string        `mapstructure:"REGISTRATION_API_URL"`
	RegistrationTimeout time.Duration `mapstructure:"REGISTRATION_TIMEOUT"`

	FlowTTL    time.Duration `mapstructure:"FLOW_TTL"`
	SSOTimeout time.Duration `mapstructure:"SSO_TIMEOUT"`
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`

	CORSAllowOrigins string  `mapstructure:"CORS_ALLOW_ORIGINS"`
	RateLimitRPS     float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int     `mapstructure:"RATE_LIMIT_BURST"`

	// OTLPEndpoint enables tracing when set (host:port of an OTLP gRPC collector).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// ZitadelConfig - connection settings for the Zitadel API.
type ZitadelConfig struct {
	Domain       string
	InsecurePort string
	PAT          string
	KeyPath      string
	OrgID        string
}

// GoogleConfig - the Google OIDC client.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	Issuer       string
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore missing .env

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":2222")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("ZITADEL_DOMAIN", "")
	v.SetDefault("ZITADEL_INSECURE_PORT", "8080")
	v.SetDefault("ZITADEL_PAT", "")
	v.SetDefault("ZITADEL_KEY_PATH", "")
	v.SetDefault("ZITADEL_ORG_ID", "")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_ISSUER", "https://accounts.google.com")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:2222")
	v.SetDefault("APP_SCHEME", "uberclone")
	v.SetDefault("APP_REDIRECT_PATH", "/(root)/(tabs)/home")
	v.SetDefault("REGISTRATION_API_URL", "")
	v.SetDefault("REGISTRATION_TIMEOUT", "10s")
	v.SetDefault("FLOW_TTL", "30m")
	v.SetDefault("SSO_TIMEOUT", "10m")
	v.SetDefault("SESSION_TTL", "1h")
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:3000, http://localhost:8080")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.ZitadelDomain == "" {
		return errors.New("config: ZITADEL_DOMAIN must be set")
	}
	if c.ZitadelPAT == "" && c.ZitadelKeyPath == "" {
		return errors.New("config: either ZITADEL_PAT or ZITADEL_KEY_PATH must be set")
	}
	if c.ZitadelOrgID == "" {
		return errors.New("config: ZITADEL_ORG_ID must be set")
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return errors.New("config: GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}
	if c.RegistrationAPIURL == "" {
		return errors.New("config: REGISTRATION_API_URL must be set")
	}
	if _, err := url.ParseRequestURI(c.RegistrationAPIURL); err != nil {
		return fmt.Errorf("config: REGISTRATION_API_URL: %w", err)
	}
	if _, err := url.ParseRequestURI(c.PublicBaseURL); err != nil {
		return fmt.Errorf("config: PUBLIC_BASE_URL: %w", err)
	}
	if c.AppScheme == "" {
		return errors.New("config: APP_SCHEME must be set")
	}

	for name, d := range map[string]time.Duration{
		"REGISTRATION_TIMEOUT": c.RegistrationTimeout,
		"FLOW_TTL":             c.FlowTTL,
		"SSO_TIMEOUT":          c.SSOTimeout,
		"SESSION_TTL":          c.SessionTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be a positive duration", name)
		}
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// Zitadel returns the Zitadel connection settings.
func (c *Config) Zitadel() ZitadelConfig {
	return ZitadelConfig{
		Domain:       c.ZitadelDomain,
		InsecurePort: c.ZitadelInsecurePort,
		PAT:          c.ZitadelPAT,
		KeyPath:      c.ZitadelKeyPath,
		OrgID:        c.ZitadelOrgID,
	}
}

// Google returns the Google OIDC client settings.
func (c *Config) Google() GoogleConfig {
	return GoogleConfig{
		ClientID:     c.GoogleClientID,
		ClientSecret: c.GoogleClientSecret,
		Issuer:       c.GoogleIssuer,
	}
}

// CallbackURL is the absolute URL of the OAuth callback route.
func (c *Config) CallbackURL(path string) string {
	return strings.TrimRight(c.PublicBaseURL, "/") + path
}

// AppRedirectURL is the deep link into the app's home screen.
func (c *Config) AppRedirectURL() string {
	return c.AppScheme + "://" + c.AppRedirectPath
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
