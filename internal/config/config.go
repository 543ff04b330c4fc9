// Package config provides configuration helpers for go-sommelier commands.
// Values come from the environment, with an optional .env file loaded first.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Default service configuration.
const (
	DefaultPort     = "8090"
	DefaultLogLevel = "info"
	DefaultChatURL  = "https://api.openai.com/v1"
	DefaultModel    = "gpt-4o-mini"
)

// Load reads an optional .env file into the environment.
// Missing files are not an error; explicit env vars always win.
func Load() {
	_ = godotenv.Load()
}

// Env returns the value of an environment variable or a default.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt returns an integer environment variable or a default.
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// EnvBool returns a boolean environment variable or a default.
func EnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Port returns the HTTP listen port.
func Port() string {
	return Env("SOMMELIER_PORT", DefaultPort)
}

// LogLevel returns the configured log level.
func LogLevel() string {
	return Env("SOMMELIER_LOG_LEVEL", DefaultLogLevel)
}

// OpenAIKey returns the OpenAI API key, which may be empty.
// Handlers that need it report a service error when it is missing.
func OpenAIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// ChatBaseURL returns the OpenAI-compatible chat completions base URL.
func ChatBaseURL() string {
	return Env("SOMMELIER_CHAT_URL", DefaultChatURL)
}

// ChatModel returns the chat model identifier.
func ChatModel() string {
	return Env("SOMMELIER_CHAT_MODEL", DefaultModel)
}

// DataDir returns the directory for durable client state.
func DataDir() string {
	if dir := os.Getenv("SOMMELIER_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sommelier"
	}
	return filepath.Join(home, ".sommelier")
}
