package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"subclipper/internal/caption"
	"subclipper/internal/storage"
	"subclipper/internal/transcode"
)

// Config holds every setting the server, worker and scheduler read from the environment.
type Config struct {
	Port            string
	DatabaseURL     string
	RedisAddr       string
	ProgressChannel string
	AMQPURL         string
	AMQPExchange    string
	TelegramToken   string
	AllowedOrigins  string
	PublicSiteURL   string
	BaseURL         string

	QRRenderURL string

	TranscodeCloudName    string
	TranscodeAPIKey       string
	TranscodeAPISecret    string
	TranscodeAPIBase      string
	TranscodeDeliveryBase string

	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string

	PollInterval    time.Duration
	PollAttempts    int
	RatePerMinute   int
	RateBurst       int
	ReconcileMinAge time.Duration

	LogLevel  string
	LogPretty bool
}

// Load reads the environment, loading .env first outside production.
func Load() (Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			log.Debug().Err(err).Msg("no .env file loaded")
		}
	}

	cfg := Config{
		Port:            envOrDefault("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       envOrDefault("REDIS_ADDR", "127.0.0.1:6379"),
		ProgressChannel: envOrDefault("PROGRESS_CHANNEL", "subclip:progress"),
		AMQPURL:         os.Getenv("AMQP_URL"),
		AMQPExchange:    envOrDefault("AMQP_EXCHANGE", "subclips"),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		AllowedOrigins:  envOrDefault("ALLOWED_ORIGINS", "http://localhost:5173"),
		PublicSiteURL:   strings.TrimRight(envOrDefault("PUBLIC_SITE_URL", "https://example.com"), "/"),
		BaseURL:         strings.TrimRight(os.Getenv("BASE_URL"), "/"),

		QRRenderURL: envOrDefault("QR_RENDER_URL", "https://api.qrserver.com/v1/create-qr-code/"),

		TranscodeCloudName:    os.Getenv("TRANSCODE_CLOUD_NAME"),
		TranscodeAPIKey:       os.Getenv("TRANSCODE_API_KEY"),
		TranscodeAPISecret:    os.Getenv("TRANSCODE_API_SECRET"),
		TranscodeAPIBase:      envOrDefault("TRANSCODE_API_BASE", "https://api.cloudinary.com/v1_1"),
		TranscodeDeliveryBase: envOrDefault("TRANSCODE_DELIVERY_BASE", "https://res.cloudinary.com"),

		LLMAPIKey:  os.Getenv("LLM_API_KEY"),
		LLMBaseURL: envOrDefault("LLM_BASE_URL", "https://openrouter.ai/api/v1/chat/completions"),
		LLMModel:   envOrDefault("LLM_MODEL", "openai/gpt-4o-mini"),

		S3Region:        envOrDefault("S3_REGION", "us-east-1"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3PublicBaseURL: strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/"),

		PollInterval:    envDurationOrDefault("POLL_INTERVAL", 2*time.Second),
		PollAttempts:    envIntOrDefault("POLL_ATTEMPTS", 30),
		RatePerMinute:   envIntOrDefault("RATE_LIMIT_PER_MINUTE", 6),
		RateBurst:       envIntOrDefault("RATE_LIMIT_BURST", 2),
		ReconcileMinAge: envDurationOrDefault("RECONCILE_MIN_AGE", 24*time.Hour),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogPretty: os.Getenv("LOG_PRETTY") == "true",
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is not set")
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		log.Warn().Str("key", key).Str("value", val).Msg("invalid integer, using default")
		return fallback
	}
	return parsed
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		log.Warn().Str("key", key).Str("value", val).Msg("invalid duration, using default")
		return fallback
	}
	return parsed
}

func (c Config) TranscodeConfig() transcode.Config {
	return transcode.Config{
		CloudName:    c.TranscodeCloudName,
		APIKey:       c.TranscodeAPIKey,
		APISecret:    c.TranscodeAPISecret,
		APIBase:      c.TranscodeAPIBase,
		DeliveryBase: c.TranscodeDeliveryBase,
	}
}

func (c Config) StorageConfig() storage.Config {
	return storage.Config{
		Region:        c.S3Region,
		Endpoint:      c.S3Endpoint,
		AccessKey:     c.S3AccessKey,
		SecretKey:     c.S3SecretKey,
		Bucket:        c.S3Bucket,
		PublicBaseURL: c.S3PublicBaseURL,
	}
}

func (c Config) LLMConfig() caption.LLMConfig {
	return caption.LLMConfig{
		APIKey:  c.LLMAPIKey,
		BaseURL: c.LLMBaseURL,
		Model:   c.LLMModel,
	}
}
