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
	AppName          string
	AppVersion       string
	Environment      string
	HTTPPort         string
	BaseURL          string
	AuthCookieSecure bool
	SessionTTL       time.Duration

	Logger LoggerConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis         RedisConfig
	RateLimit     RateLimitConfig
	Email         EmailConfig
	Notification  NotificationConfig
	Observability ObservabilityConfig
	Seed          SeedConfig

	PolicyConfigPath string
}

type LoggerConfig struct {
	Level string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	// PublicRate is tokens per second for unauthenticated auth endpoints.
	PublicRate  float64
	PublicBurst int
	// IssuanceLock serializes token issuance per scope through redis.
	IssuanceLock    bool
	IssuanceLockTTL time.Duration
}

type SeedConfig struct {
	Enabled       bool
	AdminPassword string
}

type EmailConfig struct {
	Provider string
	From     string
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
}

type NotificationConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	ClaimLease   time.Duration
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	TracingEnabled bool
	// Exporter is either "grpc" or "http".
	Exporter       string
	OTLPEndpoint   string
	SampleRatio    float64
	ExportInterval time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("APP_ENV", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:          getenv("APP_NAME", "carebridge"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		HTTPPort:         getenv("HTTP_PORT", "8080"),
		BaseURL:          strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:8080"), "/"),
		AuthCookieSecure: authCookieSecure,
		SessionTTL:       getenvDuration("AUTH_SESSION_TTL", 7*24*time.Hour),
		Logger: LoggerConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
		DBType:            getenv("DB_TYPE", "postgres"),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "carebridge"),
		DBUser:            getenv("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD", ""),
		DBSSLMode:         getenv("DB_SSL_MODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DB_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DB_CONN_MAX_IDLE_TIME", 300),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getenvBool("RATE_LIMIT_ENABLED", false),
			PublicRate:      getenvFloat("RATE_LIMIT_PUBLIC_RATE", 1),
			PublicBurst:     getenvInt("RATE_LIMIT_PUBLIC_BURST", 5),
			IssuanceLock:    getenvBool("RATE_LIMIT_ISSUANCE_LOCK", false),
			IssuanceLockTTL: getenvDuration("RATE_LIMIT_ISSUANCE_LOCK_TTL", 5*time.Second),
		},
		Email: EmailConfig{
			Provider: strings.ToLower(getenv("EMAIL_PROVIDER", "noop")),
			From:     getenv("EMAIL_FROM", "no-reply@carebridge.local"),
			SMTPHost: getenv("SMTP_HOST", ""),
			SMTPPort: getenvInt("SMTP_PORT", 587),
			SMTPUser: getenv("SMTP_USER", ""),
			SMTPPass: getenv("SMTP_PASS", ""),
		},
		Notification: NotificationConfig{
			PollInterval: getenvDuration("NOTIFICATION_POLL_INTERVAL", 5*time.Second),
			BatchSize:    getenvInt("NOTIFICATION_BATCH_SIZE", 20),
			MaxAttempts:  getenvInt("NOTIFICATION_MAX_ATTEMPTS", 5),
			ClaimLease:   getenvDuration("NOTIFICATION_CLAIM_LEASE", 5*time.Minute),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getenvBool("OTEL_METRICS_ENABLED", false),
			TracingEnabled: getenvBool("OTEL_TRACING_ENABLED", false),
			Exporter:       strings.ToLower(getenv("OTEL_EXPORTER", "grpc")),
			OTLPEndpoint:   getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio:    getenvFloat("OTEL_TRACES_SAMPLE_RATIO", 1),
			ExportInterval: getenvDuration("OTEL_METRIC_EXPORT_INTERVAL", 30*time.Second),
		},
		Seed: SeedConfig{
			Enabled:       getenvBool("SEED_DEMO", false),
			AdminPassword: getenv("SEED_ADMIN_PASSWORD", "carebridge-demo"),
		},
		PolicyConfigPath: strings.TrimSpace(getenv("POLICY_CONFIG_PATH", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
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

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
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
	if err != nil {
		return def
	}
	return parsed
}
