// Package devserver is an in-memory notification hub used for local
// development and by the CLI: it issues session tokens, serves baseline
// pages and unread counts, accepts publishes, and streams per-topic
// Server-Sent Events.
package devserver

import (
	"os"
	"strconv"
	"time"
)

// Config holds devserver configuration loaded from environment variables.
type Config struct {
	Addr          string
	JWTSecret     string
	TokenTTL      time.Duration
	KeepAlive     time.Duration
	SubscriberBuf int
}

// LoadConfig reads configuration from the environment.
func LoadConfig() Config {
	return Config{
		Addr:          getEnv("NOTIFYD_ADDR", ":8082"),
		JWTSecret:     getEnv("NOTIFYD_JWT_SECRET", "dev-secret"),
		TokenTTL:      time.Duration(getEnvInt("NOTIFYD_TOKEN_TTL_HOURS", 24)) * time.Hour,
		KeepAlive:     time.Duration(getEnvInt("NOTIFYD_KEEPALIVE_SECONDS", 15)) * time.Second,
		SubscriberBuf: getEnvInt("NOTIFYD_SUBSCRIBER_BUFFER", 64),
	}
}

// SetDefaults fills zero values, for configs built in code.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8082"
	}
	if c.JWTSecret == "" {
		c.JWTSecret = "dev-secret"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 24 * time.Hour
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = 15 * time.Second
	}
	if c.SubscriberBuf == 0 {
		c.SubscriberBuf = 64
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
