package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the gateway, assembled from
// environment variables at startup.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string // circuit breaker state always lives in Redis, regardless of queue transport

	QueueTransport string // "pg" (default) or "redis"
	NumWorkers     int
	PollInterval   time.Duration

	CircuitBreakerFailureThreshold int
	CircuitBreakerCooldown         time.Duration

	OrphanSweepAge   time.Duration
	SweepInterval    time.Duration

	DownstreamURL         string
	DownstreamBearerToken string
	DownstreamTimeout     time.Duration
	ProductName           string

	ZipField      string
	ZipPattern    string
	ZipRejectCode string

	OwnerField         string
	NotOwnerRejectCode string

	RequiredFields         []string
	MissingFieldRejectCode string

	EmailKeys []string
	PhoneKeys []string
	PhoneField string

	AttributeDefsPath string // optional JSON file of mapper.AttributeDef entries

	MaxAttempts int
	BackoffBase time.Duration

	AuthEnabled      bool
	AuthHeaderName   string
	AuthSharedSecret string
}

// Load reads configuration from environment variables, applying the
// gateway's defaults for everything that isn't strictly required.
func Load() (*Config, error) {
	dbURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")
	downstreamURL := getEnv("DOWNSTREAM_URL", "")

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if downstreamURL == "" {
		return nil, fmt.Errorf("DOWNSTREAM_URL is required")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: dbURL,
		RedisURL:    redisURL,

		QueueTransport: getEnv("QUEUE_TRANSPORT", "pg"),
		NumWorkers:     getEnvInt("NUM_WORKERS", 20),
		PollInterval:   getEnvDuration("POLL_INTERVAL", 250*time.Millisecond),

		CircuitBreakerFailureThreshold: getEnvInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5),
		CircuitBreakerCooldown:         getEnvDuration("CIRCUIT_BREAKER_COOLDOWN", 30*time.Second),

		OrphanSweepAge: getEnvDuration("ORPHAN_SWEEP_AGE", 5*time.Minute),
		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", 1*time.Minute),

		DownstreamURL:         downstreamURL,
		DownstreamBearerToken: getEnv("DOWNSTREAM_BEARER_TOKEN", ""),
		DownstreamTimeout:     getEnvDuration("DOWNSTREAM_TIMEOUT", 10*time.Second),
		ProductName:           getEnv("PRODUCT_NAME", ""),

		ZipField:      getEnv("ZIP_FIELD", "zipcode"),
		ZipPattern:    getEnv("ZIP_PATTERN", `^\d{5}(-\d{4})?$`),
		ZipRejectCode: getEnv("ZIP_REJECT_CODE", "zip_out_of_area"),

		OwnerField:         getEnv("OWNER_FIELD", "house.is_owner"),
		NotOwnerRejectCode: getEnv("NOT_OWNER_REJECT_CODE", "not_homeowner"),

		RequiredFields:         getEnvList("REQUIRED_FIELDS", []string{"phone"}),
		MissingFieldRejectCode: getEnv("MISSING_FIELD_REJECT_CODE", "missing_required_field"),

		EmailKeys:  getEnvList("EMAIL_KEYS", []string{"email"}),
		PhoneKeys:  getEnvList("PHONE_KEYS", []string{"phone"}),
		PhoneField: getEnv("PHONE_FIELD", "phone"),

		AttributeDefsPath: getEnv("ATTRIBUTE_DEFS_PATH", ""),

		MaxAttempts: getEnvInt("MAX_ATTEMPTS", 5),
		BackoffBase: getEnvDuration("BACKOFF_BASE", 30*time.Second),

		AuthEnabled:      getEnvBool("AUTH_ENABLED", false),
		AuthHeaderName:   getEnv("AUTH_HEADER_NAME", "X-Shared-Secret"),
		AuthSharedSecret: getEnv("AUTH_SHARED_SECRET", ""),
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
