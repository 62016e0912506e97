package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// It is built once at startup; every component takes it (or a slice of it)
// as an explicit dependency.
type Config struct {
	Port        int
	DatabaseURL string
	CORSOrigins []string

	// Token verification. Issuer A is the hosted auth provider, issuer B
	// the legacy self-issued one. At least one secret must be configured.
	AuthSecretA string
	AuthSecretB string

	// Payment provider credentials. All three are required to accept
	// payments; when unset the payment routes refuse with 503.
	PaymentKeyID         string
	PaymentKeySecret     string
	PaymentWebhookSecret string

	// Provider plan ids, passed through verbatim.
	PlanWeekly  string
	PlanMonthly string
	PlanYearly  string

	// One-time amounts per tier in paise.
	WeekAmountMinor  int64
	MonthAmountMinor int64
	YearAmountMinor  int64

	AdminEmails   []string
	TrialDuration time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, _ := strconv.Atoi(getEnv("PORT", "4001"))

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	secretA := getEnv("AUTH_SECRET_A", "")
	secretB := getEnv("AUTH_SECRET_B", "")
	if secretA == "" && secretB == "" {
		return nil, fmt.Errorf("at least one of AUTH_SECRET_A / AUTH_SECRET_B is required")
	}

	trialDays, err := strconv.Atoi(getEnv("TRIAL_DURATION_DAYS", "7"))
	if err != nil || trialDays < 0 {
		return nil, fmt.Errorf("TRIAL_DURATION_DAYS must be a non-negative integer")
	}

	origins := strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:        port,
		DatabaseURL: dbURL,
		CORSOrigins: origins,

		AuthSecretA: secretA,
		AuthSecretB: secretB,

		PaymentKeyID:         getEnv("PAYMENT_KEY_ID", ""),
		PaymentKeySecret:     getEnv("PAYMENT_KEY_SECRET", ""),
		PaymentWebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),

		PlanWeekly:  getEnv("PLAN_WEEKLY", ""),
		PlanMonthly: getEnv("PLAN_MONTHLY", ""),
		PlanYearly:  getEnv("PLAN_YEARLY", ""),

		WeekAmountMinor:  getEnvInt64("PAYMENT_WEEK_AMOUNT", 129900),
		MonthAmountMinor: getEnvInt64("PAYMENT_MONTH_AMOUNT", 349900),
		YearAmountMinor:  getEnvInt64("PAYMENT_YEAR_AMOUNT", 2999900),

		AdminEmails:   parseEmails(getEnv("ADMIN_EMAILS", "")),
		TrialDuration: time.Duration(trialDays) * 24 * time.Hour,
	}, nil
}

// PaymentsConfigured reports whether provider credentials are complete.
func (c *Config) PaymentsConfigured() bool {
	return c.PaymentKeyID != "" && c.PaymentKeySecret != "" && c.PaymentWebhookSecret != ""
}

// IsAdmin checks the configured allow-list. An empty list denies everyone.
func (c *Config) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.AdminEmails {
		if admin == email {
			return true
		}
	}
	return false
}

func parseEmails(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
