package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Local status API
	Port string

	// Game server
	ServerURL   string
	SocketURL   string
	AccessToken string

	// Negotiation
	RequestWindow time.Duration

	// Local archive
	ArchivePath string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "7350"),
		ServerURL:     getEnv("SERVER_URL", "http://localhost:4000"),
		SocketURL:     getEnv("SOCKET_URL", "ws://localhost:4000/games"),
		AccessToken:   getEnv("ACCESS_TOKEN", ""),
		RequestWindow: time.Duration(getEnvInt("REQUEST_WINDOW_SECONDS", 30)) * time.Second,
		ArchivePath:   getEnv("ARCHIVE_PATH", "lobby-archive.db"),
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("ACCESS_TOKEN environment variable is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}
