package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Dir          string
	Store        string
	DatabaseURL  string
	Sync         string
	RedisURL     string
	RelayURL     string
	RelayAddr    string
	Debounce     time.Duration
	PollInterval time.Duration
	LogLevel     string
	LogFormat    string
}

func Load() Config {
	return Config{
		Dir:          getenv("MOODBOARD_DIR", defaultDir()),
		Store:        getenv("MOODBOARD_STORE", "sqlite"),
		DatabaseURL:  getenv("MOODBOARD_DATABASE_URL", ""),
		Sync:         getenv("MOODBOARD_SYNC", "memory"),
		RedisURL:     getenv("MOODBOARD_REDIS_URL", "redis://localhost:6379/0"),
		RelayURL:     getenv("MOODBOARD_RELAY_URL", "auto"),
		RelayAddr:    getenv("MOODBOARD_RELAY_ADDR", "127.0.0.1:7717"),
		Debounce:     time.Duration(getenvInt("MOODBOARD_DEBOUNCE_MS", 2000)) * time.Millisecond,
		PollInterval: time.Duration(getenvInt("MOODBOARD_POLL_MS", 1000)) * time.Millisecond,
		LogLevel:     getenv("MOODBOARD_LOG_LEVEL", "warn"),
		LogFormat:    getenv("MOODBOARD_LOG_FORMAT", "text"),
	}
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".moodboard"
	}
	return filepath.Join(home, ".moodboard")
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
