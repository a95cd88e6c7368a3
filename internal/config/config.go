package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	ViewConfigDir   string
	ViewConfigWatch bool

	BillingAPI  BillingAPIConfig
	Cache       CacheConfig
	Redis       RedisConfig
	MetricsPush MetricsPushConfig
	RateLimit   RateLimitConfig
	Telemetry   TelemetryConfig
}

// BillingAPIConfig points at the upstream billing API the views are built from.
type BillingAPIConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	PageSize   int
	MaxPages   int
}

type CacheConfig struct {
	Backend         string
	MeterTTL        time.Duration
	SubscriptionTTL time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type MetricsPushConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
	Interval  time.Duration
}

// RateLimitConfig caps view requests per organization. Every view fans out to
// several upstream calls, so the budget is spent here rather than upstream.
type RateLimitConfig struct {
	Enabled  bool
	OrgRate  float64
	OrgBurst int
}

// TelemetryConfig carries the raw LOG_* and OTEL_* settings. Traces and
// metrics may go to collectors speaking different OTLP protocols.
type TelemetryConfig struct {
	LogLevel        string
	LogFormat       string
	OtelEnabled     bool
	OtelEndpoint    string
	TracesProtocol  string
	MetricsProtocol string
	SamplingRatio   float64
}

const (
	CacheBackendNone   = "none"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "chargeview"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		NodeID:      getenvInt64("NODE_ID", 1),

		ViewConfigDir:   strings.TrimSpace(getenv("VIEW_CONFIG_DIR", "")),
		ViewConfigWatch: getenvBool("VIEW_CONFIG_WATCH", true),

		BillingAPI: BillingAPIConfig{
			BaseURL:    strings.TrimRight(strings.TrimSpace(getenv("BILLING_API_URL", "http://localhost:8081")), "/"),
			Token:      strings.TrimSpace(getenv("BILLING_API_TOKEN", "")),
			Timeout:    getenvDuration("BILLING_API_TIMEOUT", 10*time.Second),
			MaxRetries: int(getenvInt64("BILLING_API_MAX_RETRIES", 3)),
			PageSize:   int(getenvInt64("BILLING_API_PAGE_SIZE", 100)),
			MaxPages:   int(getenvInt64("BILLING_API_MAX_PAGES", 20)),
		},
		Cache: CacheConfig{
			Backend:         normalizeCacheBackend(getenv("CACHE_BACKEND", CacheBackendMemory)),
			MeterTTL:        getenvDuration("CACHE_METER_TTL", 5*time.Minute),
			SubscriptionTTL: getenvDuration("CACHE_SUBSCRIPTION_TTL", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:      getenv("REDIS_ADDR", "localhost:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        int(getenvInt64("REDIS_DB", 0)),
			KeyPrefix: getenv("REDIS_KEY_PREFIX", "chargeview"),
		},
		MetricsPush: MetricsPushConfig{
			Exporter:  strings.ToLower(strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", ""))),
			Endpoint:  strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_PUSH_AUTH_TOKEN", "")),
			Interval:  getenvDuration("METRICS_PUSH_INTERVAL", time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getenvBool("RATE_LIMIT_ENABLED", false),
			OrgRate:  getenvFloat("RATE_LIMIT_ORG_RATE", 5),
			OrgBurst: int(getenvInt64("RATE_LIMIT_ORG_BURST", 20)),
		},
	}

	protocol := getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	cfg.Telemetry = TelemetryConfig{
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
		OtelEnabled:     getenvBool("OTEL_ENABLED", true),
		OtelEndpoint:    strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
		TracesProtocol:  getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", protocol),
		MetricsProtocol: getenv("OTEL_EXPORTER_OTLP_METRICS_PROTOCOL", protocol),
		SamplingRatio:   getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func normalizeCacheBackend(raw string) string {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case CacheBackendRedis, CacheBackendNone:
		return value
	default:
		return CacheBackendMemory
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
