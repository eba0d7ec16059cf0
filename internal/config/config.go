package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr            string
	PostgresDSN         string
	MongoURI            string
	RedisAddr           string
	RabbitURL           string
	OracleBaseURL       string
	OracleAPIKey        string
	OracleWebhookSecret string
	HoldTTL             time.Duration
	SweepInterval       time.Duration
	BaseLanguages       []string
	OTLPEndpoint        string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		PostgresDSN:         os.Getenv("PG_DSN"),
		MongoURI:            os.Getenv("MONGO_URI"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RabbitURL:           os.Getenv("RABBIT_URL"),
		OracleBaseURL:       os.Getenv("ORACLE_BASE_URL"),
		OracleAPIKey:        os.Getenv("ORACLE_API_KEY"),
		OracleWebhookSecret: os.Getenv("ORACLE_WEBHOOK_SECRET"),
		HoldTTL:             getDuration("HOLD_TTL", 30*time.Minute),
		SweepInterval:       getDuration("SWEEP_INTERVAL", time.Minute),
		BaseLanguages:       getList("BASE_LANGUAGES", []string{"en", "es"}),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getList(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
