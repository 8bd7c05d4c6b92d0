package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        int
	DatabaseURL string
	NatsURL     string
	NatsToken   string
	LogLevel    string
	APIToken    string
	Timezone    string
	OwnerID     string
}

func Load() Config {
	return Config{
		Port:        envInt("DAYBEAT_PORT", 8650),
		DatabaseURL: envStr("DATABASE_URL", ""),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		APIToken:    envStr("DAYBEAT_API_TOKEN", ""),
		Timezone:    envStr("DAYBEAT_TZ", "UTC"),
		OwnerID:     envStr("DAYBEAT_OWNER", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
