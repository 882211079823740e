package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lionelbuh/touchconnectpro/internal/pkg/env"
)

const (
	EmailProviderResend   = "resend"
	EmailProviderSendGrid = "sendgrid"
	EmailProviderMailgun  = "mailgun"
	EmailProviderSMTP     = "smtp"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMySQL    = "mysql"
)

// Config is built once at startup and passed by reference into every adapter.
// Nothing below main reads the process environment.
type Config struct {
	AppHost      string
	AppPort      string
	AppPublicURL string
	LogLevel     string

	AdminEmail string

	EmailProvider    string
	EmailProviderKey string
	EmailFrom        string
	MailgunDomain    string
	SMTPHost         string
	SMTPPort         string
	SMTPUsername     string
	SMTPPassword     string

	BillingProviderKey   string
	StripeWebhookSecret  string
	StripePriceID        string
	MembershipPriceCents int64
	MembershipCurrency   string

	RecordStoreDriver string
	RecordStoreURL    string
	RecordStoreKey    string

	CacheHost     string
	CachePort     string
	CachePassword string

	// AckOnStoreFailure acknowledges webhook deliveries whose store update
	// failed instead of asking the provider to redeliver.
	AckOnStoreFailure bool

	InternalAPIKey  string
	MetricsUser     string
	MetricsPassword string
}

// Load reads the configuration from the environment loaded by env.SetupEnvFile.
// Only settings without which the process cannot serve at all are enforced;
// missing provider credentials degrade the matching feature at call time.
func Load() (*Config, error) {
	cfg := &Config{
		AppHost:      env.GetEnv("APP_HOST", "0.0.0.0"),
		AppPort:      env.GetEnv("APP_PORT", "4000"),
		AppPublicURL: strings.TrimRight(env.GetEnv("APP_PUBLIC_URL", "http://localhost:5173"), "/"),
		LogLevel:     strings.ToLower(env.GetEnv("LOG_LEVEL", "info")),

		AdminEmail: strings.TrimSpace(env.GetEnv("ADMIN_EMAIL", "")),

		EmailProvider:    strings.ToLower(strings.TrimSpace(env.GetEnv("EMAIL_PROVIDER", EmailProviderResend))),
		EmailProviderKey: strings.TrimSpace(env.GetEnv("EMAIL_PROVIDER_KEY", env.GetEnv("RESEND_API_KEY", ""))),
		EmailFrom:        env.GetEnv("EMAIL_FROM", "TouchConnectPro <noreply@touchconnectpro.com>"),
		MailgunDomain:    env.GetEnv("MAILGUN_DOMAIN", ""),
		SMTPHost:         env.GetEnv("SMTP_HOST", ""),
		SMTPPort:         env.GetEnv("SMTP_PORT", "587"),
		SMTPUsername:     env.GetEnv("SMTP_USERNAME", ""),
		SMTPPassword:     env.GetEnv("SMTP_PASSWORD", ""),

		BillingProviderKey:   strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		StripeWebhookSecret:  strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		StripePriceID:        strings.TrimSpace(env.GetEnv("STRIPE_PRICE_ID", "")),
		MembershipPriceCents: int64(env.GetInt("MEMBERSHIP_PRICE_CENTS", 4900)),
		MembershipCurrency:   strings.ToLower(env.GetEnv("MEMBERSHIP_CURRENCY", "usd")),

		RecordStoreDriver: strings.ToLower(env.GetEnv("RECORD_STORE_DRIVER", StoreDriverPostgres)),
		RecordStoreURL:    env.GetEnv("RECORD_STORE_URL", ""),
		RecordStoreKey:    env.GetEnv("RECORD_STORE_KEY", ""),

		CacheHost:     env.GetEnv("CACHE_HOST", ""),
		CachePort:     env.GetEnv("CACHE_PORT", "6379"),
		CachePassword: env.GetEnv("CACHE_PASSWORD", ""),

		AckOnStoreFailure: env.GetBool("WEBHOOK_ACK_ON_STORE_FAILURE", true),

		InternalAPIKey:  strings.TrimSpace(env.GetEnv("INTERNAL_API_KEY", "")),
		MetricsUser:     env.GetEnv("METRICS_USER", "admin"),
		MetricsPassword: env.GetEnv("METRICS_PASSWORD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that must be coherent before the server starts.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.AppPort) == "" {
		errs = append(errs, errors.New("APP_PORT is required"))
	}
	switch c.EmailProvider {
	case EmailProviderResend, EmailProviderSendGrid, EmailProviderMailgun, EmailProviderSMTP:
	default:
		errs = append(errs, fmt.Errorf("EMAIL_PROVIDER %q is not supported", c.EmailProvider))
	}
	switch c.RecordStoreDriver {
	case StoreDriverPostgres, StoreDriverMySQL:
	default:
		errs = append(errs, fmt.Errorf("RECORD_STORE_DRIVER %q is not supported", c.RecordStoreDriver))
	}
	if c.MembershipPriceCents <= 0 && c.StripePriceID == "" {
		errs = append(errs, errors.New("MEMBERSHIP_PRICE_CENTS must be positive when STRIPE_PRICE_ID is unset"))
	}
	return errors.Join(errs...)
}

// CacheEnabled reports whether a redis endpoint was configured.
func (c *Config) CacheEnabled() bool {
	return strings.TrimSpace(c.CacheHost) != ""
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.AppHost, c.AppPort)
}
