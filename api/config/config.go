package config

import "os"

type Config struct {
	Port           string
	RedisURL       string
	PoseServiceURL string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("SERVICE_PORT", "8000"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		PoseServiceURL: getEnv("POSE_SERVICE_URL", "http://localhost:9100"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
