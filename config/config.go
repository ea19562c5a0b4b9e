package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Env            string
	BackendBaseURL string
	HTTPTimeout    time.Duration
	PollInterval   time.Duration
	PollDeadline   time.Duration
	SuccessLinger  time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8089"),
		Env:            getEnv("ENV", "development"),
		BackendBaseURL: os.Getenv("BACKEND_BASE_URL"),
		HTTPTimeout:    getDuration("BACKEND_HTTP_TIMEOUT", 10*time.Second),
		PollInterval:   getDuration("POLL_INTERVAL", 3*time.Second),
		PollDeadline:   getDuration("POLL_DEADLINE", 10*time.Minute),
		SuccessLinger:  getDuration("SUCCESS_LINGER", 1500*time.Millisecond),
	}

	if cfg.BackendBaseURL == "" {
		return nil, fmt.Errorf("missing required environment variable BACKEND_BASE_URL")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("Invalid duration for %s: %q, using default %s", key, val, fallback)
		return fallback
	}
	return d
}
