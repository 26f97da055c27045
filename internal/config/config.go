package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config aggregates every setting the chat server reads.
type Config struct {
	Server ServerConfig
	Chat   ChatConfig
	Log    LogConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// ChatConfig tunes the chat core.
type ChatConfig struct {
	// DeletePageSize bounds one page of the session deletion drain. Must
	// stay within BatchLimit.
	DeletePageSize int
	// BatchLimit is the store's atomic operation bound per batch commit.
	BatchLimit int
}

// LogConfig describes logging.
type LogConfig struct {
	Level string
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Chat:   chat,
		Log:    LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")},
	}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func loadChatConfig() (ChatConfig, error) {
	pageSize := 100
	if override, err := parseOptionalIntEnv("CHAT_DELETE_PAGE_SIZE"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ChatConfig{}, fmt.Errorf("CHAT_DELETE_PAGE_SIZE must be positive, got %d", *override)
		}
		pageSize = *override
	}

	batchLimit := 500
	if override, err := parseOptionalIntEnv("CHAT_BATCH_LIMIT"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ChatConfig{}, fmt.Errorf("CHAT_BATCH_LIMIT must be positive, got %d", *override)
		}
		batchLimit = *override
	}

	if pageSize > batchLimit {
		return ChatConfig{}, fmt.Errorf("CHAT_DELETE_PAGE_SIZE (%d) exceeds CHAT_BATCH_LIMIT (%d)", pageSize, batchLimit)
	}

	return ChatConfig{DeletePageSize: pageSize, BatchLimit: batchLimit}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
