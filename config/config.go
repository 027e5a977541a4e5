package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

var (
	ErrMissingSecret = errors.New("missing secret")
	ErrInvalidOrigin = errors.New("invalid origin")
)

type JWTConfig struct {
	SecretKey        string        `env:"SECRET_KEY"`
	RefreshSecretKey string        `env:"REFRESH_SECRET_KEY"`
	AccessTTL        time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL       time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

type RedisConfig struct {
	HOST     string `env:"HOST" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type AWSConfig struct {
	Region string `env:"REGION" envDefault:"us-east-1"`
}

type DynamoDBConfig struct {
	// UsersTableName left empty keeps users in memory.
	UsersTableName string `env:"USERS_TABLE"`
}

type CorsConfig struct {
	Origins string `env:"ORIGINS" envDefault:"http://localhost:3000"`
}

type RateLimitConfig struct {
	Limit  int           `env:"LIMIT" envDefault:"100"`
	Window time.Duration `env:"WINDOW" envDefault:"1m"`
}

// ProviderConfig holds one identity provider's client registration. Empty
// endpoint URLs fall back to the provider's well-known endpoints.
type ProviderConfig struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	AuthURL      string   `env:"AUTH_URL"`
	TokenURL     string   `env:"TOKEN_URL"`
	UserInfoURL  string   `env:"USERINFO_URL"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

func (p ProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

type OAuthConfig struct {
	RedirectURI      string        `env:"REDIRECT_URI" envDefault:"http://localhost:8080/auth/oauth/callback"`
	FallbackProvider string        `env:"FALLBACK_PROVIDER"`
	StateTTL         time.Duration `env:"STATE_TTL" envDefault:"10m"`
	CodeTTL          time.Duration `env:"CODE_TTL" envDefault:"10m"`

	Google   ProviderConfig `envPrefix:"GOOGLE_"`
	Github   ProviderConfig `envPrefix:"GITHUB_"`
	Facebook ProviderConfig `envPrefix:"FACEBOOK_"`
	Linkedin ProviderConfig `envPrefix:"LINKEDIN_"`
}

type Config struct {
	Env         string `env:"ENV" envDefault:"DEV"`
	GatewayAddr string `env:"GATEWAY_ADDR" envDefault:":8080"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"handshake-gateway"`
	Tracing     bool   `env:"TRACING" envDefault:"false"`
	LogFile     string `env:"LOG_FILE"`

	// AppOrigin is the origin shared by the host page and the popup.
	AppOrigin   string `env:"APP_ORIGIN" envDefault:"http://localhost:8080"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000/dashboard"`
	LoginURL    string `env:"LOGIN_URL" envDefault:"http://localhost:3000/login"`

	JWTConfig       JWTConfig       `envPrefix:"JWT_"`
	RedisConfig     RedisConfig     `envPrefix:"REDIS_"`
	AWSConfig       AWSConfig       `envPrefix:"AWS_"`
	DynamoDBConfig  DynamoDBConfig  `envPrefix:"DYNAMODB_"`
	CorsConfig      CorsConfig      `envPrefix:"CORS_"`
	RateLimitConfig RateLimitConfig `envPrefix:"RATE_"`
	OAuthConfig     OAuthConfig     `envPrefix:"OAUTH_"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.AppOrigin = strings.TrimRight(cfg.AppOrigin, "/")
	return cfg, nil
}

func (c Config) IsProd() bool {
	return c.Env == "PROD"
}

func (c Config) ValidateAllSecrets() error {
	if c.JWTConfig.SecretKey == "" {
		return fmt.Errorf("%w: JWT_SECRET_KEY", ErrMissingSecret)
	}
	if c.JWTConfig.RefreshSecretKey == "" {
		return fmt.Errorf("%w: JWT_REFRESH_SECRET_KEY", ErrMissingSecret)
	}

	u, err := url.Parse(c.AppOrigin)
	if err != nil || u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") {
		return fmt.Errorf("%w: %q", ErrInvalidOrigin, c.AppOrigin)
	}
	return nil
}
