// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Mail providers understood by MailConfig.Provider.
const (
	ProviderSMTP      = "smtp"
	ProviderSparkPost = "sparkpost"
	ProviderSES       = "ses"
)

// SMTP authentication modes returned by SMTPConfig.AuthMode.
const (
	SMTPAuthNone    = "none"
	SMTPAuthPlain   = "plain"
	SMTPAuthXOAUTH2 = "xoauth2"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Upload    UploadConfig
	Send      SendConfig
	Rate      RateLimitConfig
	Session   SessionConfig
	Mail      MailConfig
	SMTP      SMTPConfig
	SparkPost SparkPostConfig
	SES       SESConfig
	Database  DatabaseConfig
	History   HistoryConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on. PORT is honoured for platform deploys.
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"3001"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is 0 so the SSE stream is not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for sends.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for ordinary requests.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// UploadConfig holds recipient table upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`
}

// SendConfig controls campaign dispatch.
type SendConfig struct {
	// MaxConcurrent is the number of campaigns sent at once across all sessions.
	MaxConcurrent int `env:"SEND_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a send waits for a free slot.
	MaxWaitTime time.Duration `env:"SEND_MAX_WAIT_TIME" default:"10s"`

	// Workers is the per-campaign fan-out for per-recipient messages.
	Workers int `env:"SEND_WORKERS" default:"8"`

	// Timeout bounds one whole campaign send.
	Timeout time.Duration `env:"SEND_TIMEOUT" default:"5m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// SendLimit is requests per minute for the send endpoints (default: 5)
	SendLimit int `env:"RATE_LIMIT_SEND" default:"5"`
}

// SessionConfig controls the browser session that owns a recipient list.
type SessionConfig struct {
	CookieName string `env:"SESSION_COOKIE_NAME" default:"bulkmail_session"`

	// IdleTTL drops a session's recipient list after this much inactivity.
	IdleTTL time.Duration `env:"SESSION_IDLE_TTL" default:"2h"`

	// Secure marks the cookie Secure; enable behind HTTPS.
	Secure bool `env:"SESSION_SECURE_COOKIE" default:"false"`
}

// MailConfig selects the provider and the sender identity.
type MailConfig struct {
	Provider string `env:"MAIL_PROVIDER" default:"smtp"`

	// FromAddress is the sending account, also the SMTP login by default.
	FromAddress string `env:"EMAIL_USER" envAlt:"MAIL_FROM_ADDRESS" required:"true"`

	// FromName is the display name in the From header.
	FromName string `env:"EMAIL_NAME" envAlt:"MAIL_FROM_NAME"`
}

// SMTPConfig holds SMTP relay settings. Gmail with an OAuth2 refresh token is
// the default setup.
type SMTPConfig struct {
	Host string `env:"SMTP_HOST" default:"smtp.gmail.com"`
	Port int    `env:"SMTP_PORT" default:"465"`

	// Username defaults to EMAIL_USER when empty.
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`

	ClientID     string `env:"OAUTH_CLIENT_ID" envAlt:"CLIENT_ID"`
	ClientSecret string `env:"OAUTH_CLIENT_SECRET" envAlt:"CLIENT_SECRET"`
	RedirectURI  string `env:"OAUTH_REDIRECT_URI" envAlt:"REDIRECT_URI"`
	RefreshToken string `env:"OAUTH_REFRESH_TOKEN" envAlt:"REFRESH_TOKEN"`

	Timeout time.Duration `env:"SMTP_TIMEOUT" default:"30s"`
}

// AuthMode reports how the SMTP client logs in: an OAuth2 refresh token
// wins over a password.
func (c *SMTPConfig) AuthMode() string {
	switch {
	case c.RefreshToken != "":
		return SMTPAuthXOAUTH2
	case c.Password != "":
		return SMTPAuthPlain
	default:
		return SMTPAuthNone
	}
}

// SparkPostConfig holds SparkPost API settings.
type SparkPostConfig struct {
	APIKey  string        `env:"SPARKPOST_API_KEY"`
	BaseURL string        `env:"SPARKPOST_BASE_URL" default:"https://api.sparkpost.com/api/v1"`
	Timeout time.Duration `env:"SPARKPOST_TIMEOUT" default:"30s"`
}

// SESConfig holds Amazon SES settings. Empty keys fall back to the default
// AWS credential chain.
type SESConfig struct {
	Region           string `env:"SES_REGION" envAlt:"AWS_REGION" default:"us-east-1"`
	AccessKeyID      string `env:"SES_ACCESS_KEY_ID" envAlt:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey  string `env:"SES_SECRET_ACCESS_KEY" envAlt:"AWS_SECRET_ACCESS_KEY"`
	ConfigurationSet string `env:"SES_CONFIGURATION_SET"`
}

// DatabaseConfig holds the optional campaign history database.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. History is disabled when empty.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// HistoryConfig holds campaign history retention settings.
type HistoryConfig struct {
	// RetentionDays is how long campaign records are kept (default: 90)
	RetentionDays int `env:"HISTORY_RETENTION_DAYS" default:"90"`

	// PruneInterval is how often old records are deleted (default: 24h)
	PruneInterval time.Duration `env:"HISTORY_PRUNE_INTERVAL" default:"24h"`

	// PageSize is the number of campaigns returned by the history endpoint.
	PageSize int `env:"HISTORY_PAGE_SIZE" default:"50"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// CORSOrigins lists origins allowed to call the API (default: *)
	CORSOrigins []string `env:"CORS_ORIGINS" default:"*"`

	// RequireAPIKey protects /api routes with an X-API-Key header.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Addr returns the relay address in host:port format.
func (c *SMTPConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
