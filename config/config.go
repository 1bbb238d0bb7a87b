package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration loaded from environment variables.
// Provide sane defaults for local development.
type Config struct {
	AppName string
	Env     string // development, staging, production
	Port    string
	GinMode string

	// Identity
	MockAuth      bool   // permissive development identities when true
	ClerkJWKSURI  string // trusted mode key set
	ClerkAudience string // optional expected audience

	// Upstreams
	TransactionsServiceURL string
	AnalyticsServiceURL    string
	FunctionTriggerURL     string
	FunctionContextPath    string

	// Gateway
	HTTPTimeout time.Duration
	RetryCount  int
	RetryBase   time.Duration

	// Cache
	CacheBackend string // memory or redis
	CacheTTL     time.Duration

	// Writes
	WriteOwner string // service or function; owns update/delete forwarding

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string

	// Internal admin
	InternalSecret string

	// Report generation
	GeminiAPIKey string
	GeminiModel  string

	// RabbitMQ
	RabbitMQURL          string
	RabbitMQBillingQueue string

	// CORS
	CORSAllowedOrigins string // comma-separated

	// Rate limiting (requires redis)
	RateLimitMax    int
	RateLimitWindow time.Duration

	// HTTP access log toggle (Gin logger)
	HTTPLogEnabled bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid boolean for %s: %v, using default %v", key, err, def)
			return def
		}
		return b
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid int for %s: %v, using default %d", key, err, def)
			return def
		}
		return i
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using default %v", key, err, def)
			return def
		}
		return d
	}
	return def
}

// getURL strips a trailing slash so path joins stay predictable
func getURL(key, def string) string {
	return strings.TrimRight(getenv(key, def), "/")
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		AppName: getenv("APP_NAME", "financeai-bff"),
		Env:     getenv("APP_ENV", "development"),
		Port:    getenv("PORT", "4000"),
		GinMode: getenv("GIN_MODE", "release"),

		MockAuth:      getbool("MOCK_AUTH", true),
		ClerkJWKSURI:  getenv("CLERK_JWKS_URI", ""),
		ClerkAudience: getenv("CLERK_AUDIENCE", ""),

		TransactionsServiceURL: getURL("TRANSACTIONS_SERVICE_URL", "http://localhost:4100"),
		AnalyticsServiceURL:    getURL("ANALYTICS_SERVICE_URL", "http://localhost:4200"),
		FunctionTriggerURL:     getURL("FUNCTION_TRIGGER_URL", "http://localhost:4300"),
		FunctionContextPath:    getenv("FUNCTION_CONTEXT_PATH", "/functionContext"),

		HTTPTimeout: getdur("HTTP_TIMEOUT", 8*time.Second),
		RetryCount:  getint("RETRY_COUNT", 2),
		RetryBase:   getdur("RETRY_BASE_DELAY", 150*time.Millisecond),

		CacheBackend: getenv("CACHE_BACKEND", "memory"),
		CacheTTL:     getdur("CACHE_TTL", 25*time.Second),

		WriteOwner: getenv("WRITE_OWNER", "service"),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getint("REDIS_DB", 0),

		StripeSecretKey:     getenv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getenv("STRIPE_WEBHOOK_SECRET", ""),

		InternalSecret: getenv("INTERNAL_SECRET", "internal-secret-demo"),

		GeminiAPIKey: getenv("GEMINI_API_KEY", ""),
		GeminiModel:  getenv("GEMINI_MODEL", "gemini-2.0-flash"),

		RabbitMQURL:          getenv("RABBITMQ_URL", ""),
		RabbitMQBillingQueue: getenv("RABBITMQ_BILLING_QUEUE", "billing-events"),

		CORSAllowedOrigins: getenv("CORS_ALLOWED_ORIGINS", ""),

		RateLimitMax:    getint("RATE_LIMIT_MAX", 400),
		RateLimitWindow: getdur("RATE_LIMIT_WINDOW", time.Minute),

		HTTPLogEnabled: getbool("HTTP_LOG_ENABLED", false),
	}
}

// CORSOrigins returns the allowed origins as slice
func (c *Config) CORSOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
