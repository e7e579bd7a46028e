// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment ("development", "production"). Production turns on Secure cookies.
	Env string `mapstructure:"APP_ENV"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// OTPPepper keys the HMAC over OTP codes. Login and verify fail closed when empty.
	OTPPepper string `mapstructure:"OTP_PEPPER"`
	// SessionSecret keys the HMAC over session tokens. Must differ from OTPPepper.
	SessionSecret string `mapstructure:"AUTH_SESSION_SECRET"`
	// SessionTTLDays is the admin session lifetime in days (default 14).
	SessionTTLDays int `mapstructure:"ADMIN_SESSION_TTL_DAYS"`

	// DisableRateLimits turns every limiter check into an allow. Intended for local/test environments.
	DisableRateLimits bool `mapstructure:"DISABLE_RATE_LIMITS"`
	// RateLimitStore selects the counter backend: "postgres" (default) or "redis".
	RateLimitStore string `mapstructure:"RATE_LIMIT_STORE"`
	// RedisURL is the redis:// URL used when RateLimitStore is "redis".
	RedisURL string `mapstructure:"REDIS_URL"`

	EmailHost string `mapstructure:"EMAIL_HOST"`
	EmailPort int    `mapstructure:"EMAIL_PORT"`
	EmailUser string `mapstructure:"EMAIL_USER"`
	EmailPass string `mapstructure:"EMAIL_PASS"`
	// EmailFrom is the sender address; falls back to EmailUser.
	EmailFrom string `mapstructure:"EMAIL_FROM"`
	// ContactTo receives contact form submissions; falls back to EmailUser.
	ContactTo string `mapstructure:"CONTACT_TO"`
	// MailSendsPerMinute paces outbound SMTP sends across the process.
	MailSendsPerMinute int `mapstructure:"MAIL_SENDS_PER_MINUTE"`

	// SuperAdminEmail and SuperAdminPassword bootstrap the super admin on first login. Both or neither.
	SuperAdminEmail    string `mapstructure:"SUPER_ADMIN_EMAIL"`
	SuperAdminPassword string `mapstructure:"SUPER_ADMIN_PASSWORD"`

	// Argon2id cost parameters for new password hashes.
	Argon2MemoryKiB   int `mapstructure:"ARGON2_MEMORY_KIB"`
	Argon2Iterations  int `mapstructure:"ARGON2_ITERATIONS"`
	Argon2Parallelism int `mapstructure:"ARGON2_PARALLELISM"`

	// MinIO / S3 compatible blob store for project images.
	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioRegion    string `mapstructure:"MINIO_REGION"`

	// CORSOrigins is a comma-separated list of origins allowed on the public API.
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
	// TrustedProxies is a comma-separated list of CIDRs or IPs of reverse proxies whose
	// X-Forwarded-For and X-Real-IP headers are believed. Empty means headers are ignored.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
	// ContactRatePerMinute caps contact form posts per client IP.
	ContactRatePerMinute int `mapstructure:"CONTACT_RATE_PER_MINUTE"`

	// AdminPolicyPath optionally points at a Rego module that replaces the built-in admin management policy.
	AdminPolicyPath string `mapstructure:"ADMIN_POLICY_PATH"`

	// DevOTPCapture when true stores issued codes for GET /dev/otp instead of mailing them.
	// Must not be true when Env is production (Load fails).
	DevOTPCapture bool `mapstructure:"DEV_OTP_CAPTURE"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogDev   bool   `mapstructure:"LOG_DEV"`

	// OTLPEndpoint enables OpenTelemetry export when set (e.g. http://localhost:4317).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`

	// Worker-only: how often the retention job runs and how long expired rows are kept.
	RetentionIntervalRaw string `mapstructure:"RETENTION_INTERVAL"`
	RetentionAgeRaw      string `mapstructure:"RETENTION_AGE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Secrets are not required here;
// handlers report missing secrets per request so the failure is visible to the operator.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("OTP_PEPPER", "")
	v.SetDefault("AUTH_SESSION_SECRET", "")
	v.SetDefault("ADMIN_SESSION_TTL_DAYS", 14)
	v.SetDefault("DISABLE_RATE_LIMITS", false)
	v.SetDefault("RATE_LIMIT_STORE", "postgres")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("EMAIL_HOST", "")
	v.SetDefault("EMAIL_PORT", 0)
	v.SetDefault("EMAIL_USER", "")
	v.SetDefault("EMAIL_PASS", "")
	v.SetDefault("EMAIL_FROM", "")
	v.SetDefault("CONTACT_TO", "")
	v.SetDefault("MAIL_SENDS_PER_MINUTE", 30)
	v.SetDefault("SUPER_ADMIN_EMAIL", "")
	v.SetDefault("SUPER_ADMIN_PASSWORD", "")
	v.SetDefault("ARGON2_MEMORY_KIB", 64*1024)
	v.SetDefault("ARGON2_ITERATIONS", 3)
	v.SetDefault("ARGON2_PARALLELISM", 2)
	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "")
	v.SetDefault("MINIO_REGION", "us-east-1")
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("CONTACT_RATE_PER_MINUTE", 5)
	v.SetDefault("ADMIN_POLICY_PATH", "")
	v.SetDefault("DEV_OTP_CAPTURE", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEV", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "adhoc-admin")
	v.SetDefault("RETENTION_INTERVAL", "1h")
	v.SetDefault("RETENTION_AGE", "720h")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.DevOTPCapture && cfg.IsProduction() {
		return nil, errors.New("config: DEV_OTP_CAPTURE must not be true when APP_ENV=production")
	}

	switch cfg.RateLimitStore {
	case "", "postgres":
		cfg.RateLimitStore = "postgres"
	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New("config: REDIS_URL must be set when RATE_LIMIT_STORE=redis")
		}
	default:
		return nil, errors.New("config: RATE_LIMIT_STORE must be postgres or redis")
	}

	if _, err := cfg.TrustedProxyPrefixes(); err != nil {
		return nil, err
	}

	if cfg.SessionTTLDays <= 0 {
		cfg.SessionTTLDays = 14
	}
	if cfg.Argon2MemoryKiB < 8*1024 {
		return nil, errors.New("config: ARGON2_MEMORY_KIB must be at least 8192")
	}
	if cfg.Argon2Iterations < 1 {
		return nil, errors.New("config: ARGON2_ITERATIONS must be at least 1")
	}
	if cfg.Argon2Parallelism < 1 || cfg.Argon2Parallelism > 255 {
		return nil, errors.New("config: ARGON2_PARALLELISM must be between 1 and 255")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// SessionTTL returns the admin session lifetime.
func (c *Config) SessionTTL() time.Duration {
	days := c.SessionTTLDays
	if days <= 0 {
		days = 14
	}
	return time.Duration(days) * 24 * time.Hour
}

// MailConfigured reports whether every EMAIL_* transport setting is present.
func (c *Config) MailConfigured() bool {
	return c.EmailHost != "" && c.EmailPort > 0 && c.EmailUser != "" && c.EmailPass != ""
}

// MailFrom returns EMAIL_FROM, or EMAIL_USER when unset.
func (c *Config) MailFrom() string {
	if c.EmailFrom != "" {
		return c.EmailFrom
	}
	return c.EmailUser
}

// ContactRecipient returns CONTACT_TO, or EMAIL_USER when unset.
func (c *Config) ContactRecipient() string {
	if c.ContactTo != "" {
		return c.ContactTo
	}
	return c.EmailUser
}

// BlobConfigured reports whether the MinIO endpoint, credentials and bucket are all set.
func (c *Config) BlobConfigured() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != "" && c.MinioBucket != ""
}

// CORSOriginList returns the allowed public API origins from the comma-separated config.
func (c *Config) CORSOriginList() []string {
	if c == nil || c.CORSOrigins == "" {
		return nil
	}
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TrustedProxyPrefixes parses TRUSTED_PROXIES. A bare IP is taken as a single-address prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	if c == nil || strings.TrimSpace(c.TrustedProxies) == "" {
		return nil, nil
	}
	var out []netip.Prefix
	for _, part := range strings.Split(c.TrustedProxies, ",") {
		s := strings.TrimSpace(part)
		if s == "" {
			continue
		}
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("config: TRUSTED_PROXIES entry %q: %w", s, err)
			}
			if p.Addr().Is4In6() && p.Bits() >= 96 {
				p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96)
			}
			out = append(out, p.Masked())
			continue
		}
		ip, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("config: TRUSTED_PROXIES entry %q: %w", s, err)
		}
		ip = ip.Unmap()
		out = append(out, netip.PrefixFrom(ip, ip.BitLen()))
	}
	return out, nil
}

// RetentionInterval parses RETENTION_INTERVAL. Returns 1h if unset or invalid.
func (c *Config) RetentionInterval() time.Duration {
	d, err := time.ParseDuration(c.RetentionIntervalRaw)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// RetentionAge parses RETENTION_AGE. Returns 720h (30d) if unset or invalid.
func (c *Config) RetentionAge() time.Duration {
	d, err := time.ParseDuration(c.RetentionAgeRaw)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}
