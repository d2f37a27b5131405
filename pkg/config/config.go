// Package config loads engine configuration from environment variables.
// Every knob has a default so a bare process starts against a local MongoDB
// with the mock model provider.
package config

import (
	"os"
	"strconv"
)

// Defaults for routing policy and context bounds.
const (
	DefaultMaxDepth             = 2
	DefaultMaxChildren          = 3
	DefaultRouterIndexLimit     = 50
	DefaultSpecialistIndexLimit = 50
)

// Config is the fully-resolved engine configuration.
type Config struct {
	Port string

	MongoURI string
	MongoDB  string

	ModelName      string
	OpenAIKey      string
	FireworksKey   string
	FireworksModel string

	// Routing policy applied to every run tree.
	MaxDepth             int
	MaxChildren          int
	RouterIndexLimit     int
	SpecialistIndexLimit int

	// Identity of the directory agent (the main router). Lazily created on
	// first use when absent.
	MainRouterSlug string
	MainRouterName string
}

// Load reads configuration from the process environment.
func Load() *Config {
	return &Config{
		Port:                 getEnvOrDefault("PORT", "4000"),
		MongoURI:             getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:              getEnvOrDefault("MONGODB_DB", "maestro"),
		ModelName:            getEnvOrDefault("MODEL_NAME", "gpt-4o"),
		OpenAIKey:            os.Getenv("OPENAI_API_KEY"),
		FireworksKey:         os.Getenv("FIREWORKS_API_KEY"),
		FireworksModel:       getEnvOrDefault("FIREWORKS_MODEL", "accounts/fireworks/models/llama-v3p1-70b-instruct"),
		MaxDepth:             getEnvPositiveInt("A2A_MAX_DEPTH", DefaultMaxDepth),
		MaxChildren:          getEnvPositiveInt("A2A_MAX_CHILDREN", DefaultMaxChildren),
		RouterIndexLimit:     getEnvPositiveInt("A2A_ROUTER_INDEX_LIMIT", DefaultRouterIndexLimit),
		SpecialistIndexLimit: getEnvPositiveInt("A2A_SPECIALIST_INDEX_LIMIT", DefaultSpecialistIndexLimit),
		MainRouterSlug:       getEnvOrDefault("MAIN_ROUTER_SLUG", "bootstrap"),
		MainRouterName:       getEnvOrDefault("MAIN_ROUTER_NAME", "Bootstrap Router"),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvPositiveInt parses a positive-integer variable. Any value that
// fails to parse, or is not positive, falls back to the default.
func getEnvPositiveInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
