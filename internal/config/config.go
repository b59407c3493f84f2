package config

import (
	"os"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel string

	// APIBaseURL is the root of the remote storefront API, including the
	// version prefix, e.g. https://corrison.corrisonapi.com/api/v1
	APIBaseURL string
	RedisAddr  string
	StatusPort string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func Load() *Config {
	return &Config{
		AppEnv:          getEnv("APP_ENV", "dev"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		APIBaseURL:      getEnv("API_BASE_URL", "https://corrison.corrisonapi.com/api/v1"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		StatusPort:      getEnv("STATUS_PORT", "8090"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
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
