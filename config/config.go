// Package config loads process configuration from the environment.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the relay.
type Config struct {
	Port               string
	CORSAllowedOrigins string
	HistoryLimit       int
	JoinHistoryLimit   int
	OutboxSize         int
	RatePerSecond      float64
	RateBurst          int
	ShutdownTimeout    time.Duration
	MaxFrameSize       int64
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		Port:               "3000",
		CORSAllowedOrigins: "*",
		HistoryLimit:       1000,
		JoinHistoryLimit:   50,
		OutboxSize:         256,
		RatePerSecond:      10,
		RateBurst:          0,
		ShutdownTimeout:    30 * time.Second,
		MaxFrameSize:       16 * 1024,
	}
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using process environment")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	def := Default()
	return Config{
		Port:               getEnv("PORT", def.Port),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", def.CORSAllowedOrigins),
		HistoryLimit:       getEnvInt("HISTORY_LIMIT", def.HistoryLimit, 1),
		JoinHistoryLimit:   getEnvInt("JOIN_HISTORY_LIMIT", def.JoinHistoryLimit, 0),
		OutboxSize:         getEnvInt("OUTBOX_SIZE", def.OutboxSize, 1),
		RatePerSecond:      getEnvFloat("RATE_LIMIT_PER_SECOND", def.RatePerSecond),
		RateBurst:          getEnvInt("RATE_LIMIT_BURST", def.RateBurst, 0),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", def.ShutdownTimeout),
		MaxFrameSize:       int64(getEnvInt("MAX_FRAME_SIZE", int(def.MaxFrameSize), 1)),
	}
}

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue, minValue int) int {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < minValue {
		log.Printf("[config] Invalid %s=%q, using default: %d", key, raw, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		log.Printf("[config] Invalid %s=%q, using default: %g", key, raw, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		log.Printf("[config] Invalid %s=%q, using default: %s", key, raw, defaultValue)
		return defaultValue
	}
	return value
}
