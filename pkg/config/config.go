package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	FirebaseProject string
	RedisAddr       string
	Environment     string
	PresenceTTL     time.Duration
	PresenceSweep   time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		PresenceTTL:     getEnvAsDuration("PRESENCE_TTL", 35*time.Second),
		PresenceSweep:   getEnvAsDuration("PRESENCE_SWEEP", 10*time.Second),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
