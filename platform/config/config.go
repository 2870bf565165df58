// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq-backed job scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetTickInterval() time.Duration
	GetTickBatchSize() int
}

// MarketplaceConfig provides settings for the lead-sourcing marketplace gateway.
type MarketplaceConfig interface {
	GetMarketplaceBaseURL() string
	GetMarketplaceToken() string
	GetMarketplacePollTimeout() time.Duration
}

// CompletionConfig provides settings for the LLM completion gateway.
type CompletionConfig interface {
	GetCompletionAPIKey() string
	GetCompletionModel() string
	IsCompletionEnabled() bool
}

// MessagingConfig provides settings for the outbound messaging gateway.
type MessagingConfig interface {
	GetMessagingEnabled() bool
	GetMessagingAPIKey() string
	GetMessagingBaseURL() string
	GetMessagingFromName() string
	GetMessagingFromAddress() string
	GetMessagingReplyToAddress() string
}

// SMTPConfig provides settings for direct SMTP delivery.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	IsSMTPEnabled() bool
}

// ReplySyncConfig provides settings for IMAP inbound reply polling.
type ReplySyncConfig interface {
	GetIMAPHost() string
	GetIMAPPort() int
	GetIMAPUsername() string
	GetIMAPPassword() string
	GetIMAPFolder() string
	IsReplySyncEnabled() bool
}

// ArchiveConfig provides settings for the MinIO probe-trace archive.
type ArchiveConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketSourcingTraces() string
	IsArchiveEnabled() bool
}

// WebhookConfig provides settings for the inbound reply webhook.
type WebhookConfig interface {
	GetWebhookAPIKeys() []string
	GetWebhookRateLimit() float64
	GetWebhookRateBurst() int
}

// SourcingConfig provides budget defaults for the sourcing engine.
type SourcingConfig interface {
	GetProbeBudgetUSD() float64
	GetExecutionBudgetUSD() float64
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	CORSAllowAll       bool
	CORSOrigins        []string
	CORSAllowCreds     bool
	RedisURL           string
	RedisTLSInsecure   bool
	AsynqQueueName     string
	AsynqConcurrency   int
	TickInterval       time.Duration
	TickBatchSize      int
	MarketplaceBaseURL string
	MarketplaceToken   string
	MarketplacePoll    time.Duration
	CompletionAPIKey   string
	CompletionModel    string
	MessagingEnabled   bool
	MessagingAPIKey    string
	MessagingBaseURL   string
	MessagingFromName  string
	MessagingFromAddr  string
	MessagingReplyTo   string
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	IMAPHost           string
	IMAPPort           int
	IMAPUsername       string
	IMAPPassword       string
	IMAPFolder         string
	MinIOEndpoint      string
	MinIOAccessKey     string
	MinIOSecretKey     string
	MinIOUseSSL        bool
	MinioBucketTraces  string
	WebhookAPIKeys     []string
	WebhookRateLimit   float64
	WebhookRateBurst   int
	ProbeBudgetUSD     float64
	ExecutionBudgetUSD float64
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string            { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool      { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string      { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int       { return c.AsynqConcurrency }
func (c *Config) GetTickInterval() time.Duration { return c.TickInterval }
func (c *Config) GetTickBatchSize() int          { return c.TickBatchSize }

// MarketplaceConfig implementation
func (c *Config) GetMarketplaceBaseURL() string            { return c.MarketplaceBaseURL }
func (c *Config) GetMarketplaceToken() string              { return c.MarketplaceToken }
func (c *Config) GetMarketplacePollTimeout() time.Duration { return c.MarketplacePoll }

// CompletionConfig implementation
func (c *Config) GetCompletionAPIKey() string { return c.CompletionAPIKey }
func (c *Config) GetCompletionModel() string  { return c.CompletionModel }
func (c *Config) IsCompletionEnabled() bool   { return c.CompletionAPIKey != "" }

// MessagingConfig implementation
func (c *Config) GetMessagingEnabled() bool          { return c.MessagingEnabled }
func (c *Config) GetMessagingAPIKey() string         { return c.MessagingAPIKey }
func (c *Config) GetMessagingBaseURL() string        { return c.MessagingBaseURL }
func (c *Config) GetMessagingFromName() string       { return c.MessagingFromName }
func (c *Config) GetMessagingFromAddress() string    { return c.MessagingFromAddr }
func (c *Config) GetMessagingReplyToAddress() string { return c.MessagingReplyTo }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string     { return c.SMTPHost }
func (c *Config) GetSMTPPort() int        { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string { return c.SMTPPassword }
func (c *Config) IsSMTPEnabled() bool     { return c.SMTPHost != "" }

// ReplySyncConfig implementation
func (c *Config) GetIMAPHost() string     { return c.IMAPHost }
func (c *Config) GetIMAPPort() int        { return c.IMAPPort }
func (c *Config) GetIMAPUsername() string { return c.IMAPUsername }
func (c *Config) GetIMAPPassword() string { return c.IMAPPassword }
func (c *Config) GetIMAPFolder() string   { return c.IMAPFolder }
func (c *Config) IsReplySyncEnabled() bool {
	return c.IMAPHost != "" && c.IMAPUsername != ""
}

// ArchiveConfig implementation
func (c *Config) GetMinIOEndpoint() string             { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string            { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string            { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool                 { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketSourcingTraces() string { return c.MinioBucketTraces }
func (c *Config) IsArchiveEnabled() bool               { return c.MinIOEndpoint != "" }

// WebhookConfig implementation
func (c *Config) GetWebhookAPIKeys() []string  { return c.WebhookAPIKeys }
func (c *Config) GetWebhookRateLimit() float64 { return c.WebhookRateLimit }
func (c *Config) GetWebhookRateBurst() int     { return c.WebhookRateBurst }

// SourcingConfig implementation
func (c *Config) GetProbeBudgetUSD() float64     { return c.ProbeBudgetUSD }
func (c *Config) GetExecutionBudgetUSD() float64 { return c.ExecutionBudgetUSD }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	messagingAPIKey := getEnv("MESSAGING_API_KEY", "")
	messagingEnabled := strings.EqualFold(getEnv("MESSAGING_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		CORSAllowAll:       corsAllowAll,
		CORSOrigins:        corsOrigins,
		CORSAllowCreds:     strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisTLSInsecure:   strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:     getEnv("ASYNQ_QUEUE", "outreach"),
		AsynqConcurrency:   int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),
		TickInterval:       mustDuration(getEnv("JOB_TICK_INTERVAL", "15s")),
		TickBatchSize:      int(mustInt64(getEnv("JOB_TICK_BATCH_SIZE", "25"))),
		MarketplaceBaseURL: getEnv("MARKETPLACE_BASE_URL", "https://api.apify.com/v2"),
		MarketplaceToken:   getEnv("MARKETPLACE_TOKEN", ""),
		MarketplacePoll:    mustDuration(getEnv("MARKETPLACE_POLL_TIMEOUT", "10m")),
		CompletionAPIKey:   getEnv("COMPLETION_API_KEY", ""),
		CompletionModel:    getEnv("COMPLETION_MODEL", "gemini-2.0-flash"),
		MessagingEnabled:   messagingEnabled && messagingAPIKey != "",
		MessagingAPIKey:    messagingAPIKey,
		MessagingBaseURL:   getEnv("MESSAGING_BASE_URL", "https://track.customer.io/api/v1"),
		MessagingFromName:  getEnv("MESSAGING_FROM_NAME", "Outreach"),
		MessagingFromAddr:  getEnv("MESSAGING_FROM_ADDRESS", ""),
		MessagingReplyTo:   getEnv("MESSAGING_REPLY_TO", ""),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           int(mustInt64(getEnv("SMTP_PORT", "587"))),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		IMAPHost:           getEnv("IMAP_HOST", ""),
		IMAPPort:           int(mustInt64(getEnv("IMAP_PORT", "993"))),
		IMAPUsername:       getEnv("IMAP_USERNAME", ""),
		IMAPPassword:       getEnv("IMAP_PASSWORD", ""),
		IMAPFolder:         getEnv("IMAP_FOLDER", "INBOX"),
		MinIOEndpoint:      getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:     getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:        strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketTraces:  getEnv("MINIO_BUCKET_SOURCING_TRACES", "sourcing-traces"),
		WebhookAPIKeys:     splitCSV(getEnv("WEBHOOK_API_KEYS", "")),
		WebhookRateLimit:   mustFloat(getEnv("WEBHOOK_RATE_LIMIT", "5")),
		WebhookRateBurst:   int(mustInt64(getEnv("WEBHOOK_RATE_BURST", "10"))),
		ProbeBudgetUSD:     mustFloat(getEnv("SOURCING_PROBE_BUDGET_USD", "1.50")),
		ExecutionBudgetUSD: mustFloat(getEnv("SOURCING_EXECUTION_BUDGET_USD", "15")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if messagingEnabled && cfg.MessagingAPIKey == "" && cfg.SMTPHost == "" {
		return nil, fmt.Errorf("MESSAGING_API_KEY or SMTP_HOST is required when MESSAGING_ENABLED is true")
	}
	if cfg.MessagingEnabled && cfg.MessagingFromAddr == "" {
		return nil, fmt.Errorf("MESSAGING_FROM_ADDRESS is required when messaging is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
