package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Logs    LogConfig
	Server  ServerConfig
	Auth    AuthConfig
	Stripe  StripeConfig
	Store   StoreConfig
	YouTube YouTubeConfig
	Gemini  GeminiConfig
	Usage   UsageConfig
}

type LogConfig struct {
	Style string // "json" or "text"
	Level string
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
	FrontendURL    string
	BackendURL     string
}

type AuthConfig struct {
	SecretKey          string
	Algorithm          string
	TokenTTL           time.Duration
	GoogleClientID     string
	GoogleClientSecret string
	Disabled           bool
}

type StripeConfig struct {
	SecretKey     string
	PriceID       string
	WebhookSecret string
	CheckoutMode  string // "subscription" or "payment"
	TrialDays     int64
}

type StoreConfig struct {
	Driver string // firestore, mongo, postgres, memory

	FirestoreProject     string
	FirestoreCredentials string
	FirestoreCollection  string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	Postgres PostgresConfig
}

type PostgresConfig struct {
	Username string
	Password string
	URL      string
	Port     string
	Database string
	SSLMode  string
}

type YouTubeConfig struct {
	APIKey   string
	PageSize int64
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type UsageConfig struct {
	Workers  int
	Buffer   int
	QueueURL string
}

const (
	defaultPort         = "8000"
	defaultFrontendURL  = "http://localhost:3000"
	defaultBackendURL   = "http://localhost:8000"
	defaultAlgorithm    = "HS256"
	defaultTokenTTL     = 30 * 24 * time.Hour
	defaultCheckoutMode = "subscription"
	defaultTrialDays    = 30
	defaultCollection   = "users"
	defaultGeminiModel  = "gemini-2.5-flash"
	defaultPageSize     = 100
	defaultUsageBuffer  = 1024
)

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

func LoadConfig() (*Config, error) {
	trialDays, err := intFromEnv("STRIPE_TRIAL_DAYS", defaultTrialDays)
	if err != nil {
		return nil, err
	}
	pageSize, err := intFromEnv("YOUTUBE_PAGE_SIZE", defaultPageSize)
	if err != nil {
		return nil, err
	}
	workers, err := intFromEnv("WORKERS", 0)
	if err != nil {
		return nil, err
	}
	buffer, err := intFromEnv("USAGE_BUFFER", defaultUsageBuffer)
	if err != nil {
		return nil, err
	}

	ttl := defaultTokenTTL
	if v := strings.TrimSpace(os.Getenv("ACCESS_TOKEN_TTL")); v != "" {
		ttl, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse ACCESS_TOKEN_TTL: %w", err)
		}
	}

	authDisabled := false
	if v := strings.TrimSpace(os.Getenv("AUTH_DISABLED")); v != "" {
		authDisabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parse AUTH_DISABLED: %w", err)
		}
	}

	cfg := &Config{
		Logs: LogConfig{
			Style: os.Getenv("LOG_STYLE"),
			Level: os.Getenv("LOG_LEVEL"),
		},
		Server: ServerConfig{
			Port:           envOr("PORT", defaultPort),
			Env:            envOr("ENV", "local"),
			AllowedOrigins: listFromEnv("ALLOWED_ORIGINS", defaultOrigins),
			FrontendURL:    strings.TrimRight(envOr("FRONTEND_URL", defaultFrontendURL), "/"),
			BackendURL:     strings.TrimRight(envOr("BACKEND_BASE_URL", defaultBackendURL), "/"),
		},
		Auth: AuthConfig{
			SecretKey:          os.Getenv("SECRET_KEY"),
			Algorithm:          envOr("ALGORITHM", defaultAlgorithm),
			TokenTTL:           ttl,
			GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			Disabled:           authDisabled,
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			PriceID:       os.Getenv("STRIPE_PRICE_ID"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			CheckoutMode:  envOr("STRIPE_CHECKOUT_MODE", defaultCheckoutMode),
			TrialDays:     int64(trialDays),
		},
		Store: StoreConfig{
			Driver:               envOr("STORE_DRIVER", "firestore"),
			FirestoreProject:     os.Getenv("FIRESTORE_PROJECT_ID"),
			FirestoreCredentials: os.Getenv("FIREBASE_CREDENTIALS"),
			FirestoreCollection:  envOr("FIRESTORE_COLLECTION", defaultCollection),
			MongoURI:             os.Getenv("MONGO_URI"),
			MongoDatabase:        envOr("MONGO_DATABASE", "comment_search"),
			MongoCollection:      envOr("MONGO_COLLECTION", defaultCollection),
			Postgres: PostgresConfig{
				Username: os.Getenv("POSTGRES_USER"),
				Password: os.Getenv("POSTGRES_PWD"),
				URL:      os.Getenv("POSTGRES_URL"),
				Port:     envOr("POSTGRES_PORT", "5432"),
				Database: envOr("POSTGRES_DB", "postgres"),
				SSLMode:  envOr("POSTGRES_SSLMODE", "require"),
			},
		},
		YouTube: YouTubeConfig{
			APIKey:   os.Getenv("YOUTUBE_API_KEY"),
			PageSize: int64(pageSize),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  envOr("GEMINI_MODEL", defaultGeminiModel),
		},
		Usage: UsageConfig{
			Workers:  workers,
			Buffer:   buffer,
			QueueURL: os.Getenv("QUEUE_URL"),
		},
	}

	return cfg, nil
}

// IsLocal reports whether the service runs outside any deployed environment.
func (c *Config) IsLocal() bool {
	return strings.EqualFold(c.Server.Env, "local")
}

// DSN builds the lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.Username,
		p.Password,
		p.URL,
		p.Port,
		p.Database,
		p.SSLMode,
	)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("converting %s to int: %w", key, err)
	}
	return n, nil
}

func listFromEnv(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
