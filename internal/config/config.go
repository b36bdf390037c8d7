package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	ServiceName string
	Env         string
	Addr        string

	RateProviderURL    string
	RateProviderAPIKey string
	RateSyncInterval   time.Duration
	RateFetchTimeout   time.Duration

	WebhookSecret string

	SeedDemoData bool
}

func Load() Config {
	return Config{
		ServiceName:        getEnv("SERVICE_NAME", "storefront"),
		Env:                getEnv("ENV", "dev"),
		Addr:               getEnv("ADDR", ":8080"),
		RateProviderURL:    getEnv("RATE_PROVIDER_URL", ""),
		RateProviderAPIKey: getEnv("RATE_PROVIDER_API_KEY", ""),
		RateSyncInterval:   getEnvDuration("RATE_SYNC_INTERVAL", 50*time.Minute),
		RateFetchTimeout:   getEnvDuration("RATE_FETCH_TIMEOUT", 10*time.Second),
		WebhookSecret:      getEnv("WEBHOOK_SECRET", ""),
		SeedDemoData:       getEnvBool("SEED_DEMO_DATA", false),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
