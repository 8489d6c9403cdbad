package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	RecordModeAll   = "all"
	RecordModeFirst = "first"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	LogLevel  string
	LogFormat string

	PhoneAPIURL     string
	PhoneAPIAction  string
	PhoneAPIReferer string
	PhoneRecordMode string
	VehicleAPIURL   string

	UpstreamTimeout      time.Duration
	UpstreamRateLimitRPS int
	UpstreamUserAgent    string
	UpstreamMaxBodyBytes int64
	LookupWorkers        int

	ServerAddr      string
	MetricsTextfile string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
	MailDetectThreshold      float64
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		LogLevel:  getEnvLower("LOG_LEVEL", "info"),
		LogFormat: getEnvLower("LOG_FORMAT", "text"),

		PhoneAPIURL:     getEnv("PHONE_API_URL", "https://simdataupdates.com/wp-admin/admin-ajax.php"),
		PhoneAPIAction:  getEnv("PHONE_API_ACTION", "fetch_sim_data"),
		PhoneAPIReferer: getEnv("PHONE_API_REFERER", "https://simdataupdates.com/"),
		PhoneRecordMode: getEnvLower("PHONE_RECORD_MODE", RecordModeAll),
		VehicleAPIURL:   getEnv("VEHICLE_API_URL", "https://api.mahisite.xyz/sindh/api.php"),

		UpstreamTimeout:      getEnvDuration("UPSTREAM_TIMEOUT_MS", 10*time.Second),
		UpstreamRateLimitRPS: getEnvInt("UPSTREAM_RATE_LIMIT_RPS", 2),
		UpstreamUserAgent:    getEnv("UPSTREAM_USER_AGENT", "Mozilla/5.0"),
		UpstreamMaxBodyBytes: int64(getEnvInt("UPSTREAM_MAX_BODY_BYTES", 4<<20)),
		LookupWorkers:        getEnvInt("LOOKUP_WORKERS", 1),

		ServerAddr:      getEnv("SERVER_ADDR", "127.0.0.1:8000"),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 10),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
		MailDetectThreshold:      getEnvFloat("MAIL_DETECT_THRESHOLD", 0.5),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func (c Config) Validate() error {
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT_MS must be positive")
	}
	if c.PhoneRecordMode != RecordModeAll && c.PhoneRecordMode != RecordModeFirst {
		return fmt.Errorf("PHONE_RECORD_MODE must be %q or %q, got %q", RecordModeAll, RecordModeFirst, c.PhoneRecordMode)
	}
	if c.LookupWorkers < 1 {
		return fmt.Errorf("LOOKUP_WORKERS must be at least 1")
	}
	if err := c.Require("PHONE_API_URL", c.PhoneAPIURL); err != nil {
		return err
	}
	return c.Require("VEHICLE_API_URL", c.VehicleAPIURL)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvLower(key, fallback string) string {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration reads a millisecond count.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	ms := getEnvInt(key, -1)
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
