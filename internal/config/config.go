package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	// memory (default) or dynamo
	StoreBackend string

	SessionTTL       time.Duration
	SweepInterval    time.Duration
	SimulatedDelay   time.Duration // 0 disables the delivery simulator
	WhatsAppLinkBase string
	QRLinkBase       string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTable    string
	SNSRegion      string

	AllowedOrigins []string // CORS allowed origins
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		StoreBackend: getEnv("STORE_BACKEND", "memory"),

		SessionTTL:       time.Duration(getEnvInt("SESSION_TTL_SECONDS", 300)) * time.Second,
		SweepInterval:    time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		SimulatedDelay:   time.Duration(getEnvInt("SIMULATED_DELIVERY_SECONDS", 0)) * time.Second,
		WhatsAppLinkBase: getEnv("WHATSAPP_LINK_BASE", "https://wa.me"),
		QRLinkBase:       getEnv("QR_LINK_BASE", "https://verify.moroccomadereal.com/v"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTable:    getEnv("DYNAMO_TABLE_VERIFICATION_SESSIONS", "verification_sessions"),
		SNSRegion:      getEnv("SNS_REGION", "us-east-1"),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
