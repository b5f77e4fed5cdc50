package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DatabaseURL     string
	DBAutoMigrate   bool
	JWTSecret       string
	SessionTTL      time.Duration
	AllowOrigins    []string
	AdminEmails     []string
	LogLevel        string
	LogFormat       string
	LogstashTCPAddr string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SendGridSandbox   bool

	PasswordReset PasswordResetConfig
}

type PasswordResetConfig struct {
	OTPLength     int
	OTPTTL        time.Duration
	PurgeAfter    time.Duration
	MaxAttempts   int
	TokenTTL      time.Duration
	SweepSchedule string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	return Config{
		Port:            getenv("PORT", "8080"),
		DatabaseURL:     must("DATABASE_URL"),
		DBAutoMigrate:   getenv("DB_AUTO_MIGRATE", "true") == "true",
		JWTSecret:       must("JWT_SECRET"),
		SessionTTL:      duration("SESSION_TTL", 24*time.Hour),
		AllowOrigins:    splitAndTrim(getenv("ALLOW_ORIGINS", "*"), "*"),
		AdminEmails:     splitAndTrim(strings.ToLower(getenv("ADMIN_EMAILS", "")), ""),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
		LogstashTCPAddr: getenv("LOGSTASH_TCP_ADDR", ""),

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenv("SMTP_PORT", ""),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", ""),

		SendGridAPIKey:    getenv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getenv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getenv("SENDGRID_FROM_NAME", "KarmaKanban"),
		SendGridSandbox:   getenv("SENDGRID_SANDBOX", "false") == "true",

		PasswordReset: PasswordResetConfig{
			OTPLength:     positiveInt("PASSWORD_RESET_OTP_LENGTH", 6),
			OTPTTL:        duration("PASSWORD_RESET_OTP_TTL", 10*time.Minute),
			PurgeAfter:    duration("PASSWORD_RESET_OTP_PURGE_AFTER", 15*time.Minute),
			MaxAttempts:   positiveInt("PASSWORD_RESET_MAX_ATTEMPTS", 5),
			TokenTTL:      duration("PASSWORD_RESET_TOKEN_TTL", 30*time.Minute),
			SweepSchedule: getenv("PASSWORD_RESET_SWEEP_SCHEDULE", "@every 15m"),
		},
	}
}

func splitAndTrim(input, fallback string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 && fallback != "" {
		return []string{fallback}
	}
	return out
}

func duration(k string, d time.Duration) time.Duration {
	v, err := time.ParseDuration(getenv(k, ""))
	if err != nil || v <= 0 {
		return d
	}
	return v
}

func positiveInt(k string, d int) int {
	v, err := strconv.Atoi(getenv(k, ""))
	if err != nil || v <= 0 {
		return d
	}
	return v
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
