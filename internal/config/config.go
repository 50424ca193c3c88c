// Package config loads and validates application configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Session storage: "valkey" or "sqlite".
	StorageDriver string
	ValkeyAddr    string
	SQLitePath    string
	SessionTTL    time.Duration

	// Spotify settings. The refresh token belongs to the account whose
	// playback the engine drives.
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRefreshToken string
	SpotifyAPIURL       string
	SpotifyTokenURL     string

	// Ollama settings.
	OllamaURL   string
	OllamaModel string

	// Last.fm settings.
	LastFMAPIKey string
	LastFMSecret string

	// Tempo lookup settings.
	TempoAPIURL string
	TempoAPIKey string

	// Outbound pacing: shared requests-per-second ceiling across all
	// external calls. Zero disables it.
	GlobalRPS int

	// Streaming settings.
	PollInterval      time.Duration
	StreamMaxLifetime time.Duration

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("LIVEMIX_PORT", 8080),
		ReadTimeout:         envDuration("LIVEMIX_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("LIVEMIX_WRITE_TIMEOUT", 30*time.Second),
		StorageDriver:       envStr("LIVEMIX_STORAGE_DRIVER", "valkey"),
		ValkeyAddr:          envStr("VALKEY_ADDR", "localhost:6379"),
		SQLitePath:          envStr("LIVEMIX_SQLITE_PATH", "livemix.db"),
		SessionTTL:          envDuration("LIVEMIX_SESSION_TTL", 8*time.Hour),
		SpotifyClientID:     envStr("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: envStr("SPOTIFY_CLIENT_SECRET", ""),
		SpotifyRefreshToken: envStr("SPOTIFY_REFRESH_TOKEN", ""),
		SpotifyAPIURL:       envStr("SPOTIFY_API_URL", "https://api.spotify.com/v1"),
		SpotifyTokenURL:     envStr("SPOTIFY_TOKEN_URL", "https://accounts.spotify.com/api/token"),
		OllamaURL:           envStr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:         envStr("OLLAMA_MODEL", "llama3.1"),
		LastFMAPIKey:        envStr("LASTFM_API_KEY", ""),
		LastFMSecret:        envStr("LASTFM_SHARED_SECRET", ""),
		TempoAPIURL:         envStr("TEMPO_API_URL", "https://api.getsong.co"),
		TempoAPIKey:         envStr("TEMPO_API_KEY", ""),
		GlobalRPS:           envInt("LIVEMIX_GLOBAL_RPS", 10),
		PollInterval:        envDuration("LIVEMIX_POLL_INTERVAL", 3*time.Second),
		StreamMaxLifetime:   envDuration("LIVEMIX_STREAM_MAX_LIFETIME", 30*time.Minute),
		LogLevel:            envStr("LIVEMIX_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		return fmt.Errorf("config: SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required")
	}
	switch c.StorageDriver {
	case "valkey", "sqlite":
	default:
		return fmt.Errorf("config: LIVEMIX_STORAGE_DRIVER must be valkey or sqlite, got %q", c.StorageDriver)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("config: LIVEMIX_POLL_INTERVAL must be at least 1s")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
