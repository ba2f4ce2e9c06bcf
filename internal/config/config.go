// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"secret-vault/backend/internal/security"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// HTTPAddr is the address the JSON API listens on.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the grpc.health.v1 server listens on.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// CORSOrigins is a comma-separated list of browser origins allowed to call the API.
	// Defaults to WEBAUTHN_RP_ORIGINS.
	CORSOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// TrustProxy makes the client IP come from X-Forwarded-For / X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxy bool `mapstructure:"TRUST_PROXY"`
	// DatabaseURL is the Postgres DSN. When empty the server runs on in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// CipherKey is the hex-encoded 256-bit key that seals vault secrets.
	CipherKey string `mapstructure:"CIPHER_KEY"`

	// JWTSecret signs sessions with HS256. Ignored when both PEM keys are set.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// SessionTTLRaw is the session token lifetime (e.g. "720h").
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// ResetTokenTTLRaw is the password reset token lifetime (e.g. "15m").
	ResetTokenTTLRaw string `mapstructure:"RESET_TOKEN_TTL"`
	// OTPTTLRaw is the one-time code lifetime (e.g. "10m").
	OTPTTLRaw string `mapstructure:"OTP_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// ResendAPIKey authenticates against the Resend email API.
	ResendAPIKey  string `mapstructure:"RESEND_API_KEY"`
	ResendBaseURL string `mapstructure:"RESEND_BASE_URL"`
	// MailFrom is the From header of outgoing codes.
	MailFrom       string `mapstructure:"MAIL_FROM"`
	MailTimeoutRaw string `mapstructure:"MAIL_TIMEOUT"`

	WebAuthnRPID   string `mapstructure:"WEBAUTHN_RP_ID"`
	WebAuthnRPName string `mapstructure:"WEBAUTHN_RP_NAME"`
	// WebAuthnRPOrigins is a comma-separated list of allowed origins.
	WebAuthnRPOrigins string `mapstructure:"WEBAUTHN_RP_ORIGINS"`

	// AuthRateLimit is the number of /api/auth requests a client IP may make per AuthRateWindow.
	AuthRateLimit     int    `mapstructure:"AUTH_RATE_LIMIT"`
	AuthRateWindowRaw string `mapstructure:"AUTH_RATE_WINDOW"`
	ReaperIntervalRaw string `mapstructure:"REAPER_INTERVAL"`

	// OTelEndpoint is the OTLP gRPC collector address. Telemetry is a no-op when empty.
	OTelEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

var keys = []string{
	"APP_ENV", "LOG_LEVEL", "HTTP_ADDR", "GRPC_ADDR", "CORS_ALLOWED_ORIGINS", "TRUST_PROXY", "DATABASE_URL", "CIPHER_KEY",
	"JWT_SECRET", "JWT_PRIVATE_KEY", "JWT_PUBLIC_KEY", "JWT_ISSUER", "JWT_AUDIENCE",
	"SESSION_TTL", "RESET_TOKEN_TTL", "OTP_TTL", "BCRYPT_COST",
	"RESEND_API_KEY", "RESEND_BASE_URL", "MAIL_FROM", "MAIL_TIMEOUT",
	"WEBAUTHN_RP_ID", "WEBAUTHN_RP_NAME", "WEBAUTHN_RP_ORIGINS",
	"AUTH_RATE_LIMIT", "AUTH_RATE_WINDOW", "REAPER_INTERVAL",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE", "OTEL_SERVICE_NAME",
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about; bind the ones without a default.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("JWT_ISSUER", "secret-vault")
	v.SetDefault("JWT_AUDIENCE", "secret-vault-api")
	v.SetDefault("SESSION_TTL", "720h")
	v.SetDefault("RESET_TOKEN_TTL", "15m")
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("RESEND_BASE_URL", "https://api.resend.com")
	v.SetDefault("MAIL_FROM", "Vault <onboarding@resend.dev>")
	v.SetDefault("MAIL_TIMEOUT", "15s")
	v.SetDefault("WEBAUTHN_RP_ID", "localhost")
	v.SetDefault("WEBAUTHN_RP_NAME", "Vault")
	v.SetDefault("WEBAUTHN_RP_ORIGINS", "http://localhost:5173")
	v.SetDefault("AUTH_RATE_LIMIT", 100)
	v.SetDefault("AUTH_RATE_WINDOW", "15m")
	v.SetDefault("REAPER_INTERVAL", "1m")
	v.SetDefault("OTEL_SERVICE_NAME", "secret-vault")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.CipherKey == "" {
		return errors.New("config: CIPHER_KEY must be set")
	}
	if _, err := security.ParseKeyHex(c.CipherKey); err != nil {
		return errors.New("config: CIPHER_KEY must be 64 hex characters")
	}
	hasPEM := c.JWTPrivateKey != "" && c.JWTPublicKey != ""
	if !hasPEM && c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET or both JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set")
	}
	if (c.JWTPrivateKey == "") != (c.JWTPublicKey == "") {
		return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.AuthRateLimit < 0 {
		return errors.New("config: AUTH_RATE_LIMIT must not be negative")
	}
	if c.Env == "production" && c.ResendAPIKey == "" {
		return errors.New("config: RESEND_API_KEY must be set when APP_ENV=production")
	}
	return nil
}

// UsesKeyPair reports whether sessions are signed with the PEM key pair instead of JWT_SECRET.
func (c *Config) UsesKeyPair() bool {
	return c.JWTPrivateKey != "" && c.JWTPublicKey != ""
}

// SessionTTL returns the session lifetime. Returns 720h if unset or invalid.
func (c *Config) SessionTTL() time.Duration { return duration(c.SessionTTLRaw, 720*time.Hour) }

// ResetTokenTTL returns the reset token lifetime. Returns 15m if unset or invalid.
func (c *Config) ResetTokenTTL() time.Duration { return duration(c.ResetTokenTTLRaw, 15*time.Minute) }

// OTPTTL returns the code lifetime. Returns 10m if unset or invalid.
func (c *Config) OTPTTL() time.Duration { return duration(c.OTPTTLRaw, 10*time.Minute) }

// MailTimeout returns the per-send timeout. Returns 15s if unset or invalid.
func (c *Config) MailTimeout() time.Duration { return duration(c.MailTimeoutRaw, 15*time.Second) }

// AuthRateWindow returns the throttling window. Returns 15m if unset or invalid.
func (c *Config) AuthRateWindow() time.Duration { return duration(c.AuthRateWindowRaw, 15*time.Minute) }

// ReaperInterval returns the sweep cadence. Returns 1m if unset or invalid.
func (c *Config) ReaperInterval() time.Duration { return duration(c.ReaperIntervalRaw, time.Minute) }

// RPOrigins returns the WebAuthn origins from the comma-separated config.
func (c *Config) RPOrigins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.WebAuthnRPOrigins)
}

// AllowedOrigins returns the CORS origins, falling back to RPOrigins.
func (c *Config) AllowedOrigins() []string {
	if c == nil {
		return nil
	}
	if o := splitList(c.CORSOrigins); len(o) > 0 {
		return o
	}
	return c.RPOrigins()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func duration(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
