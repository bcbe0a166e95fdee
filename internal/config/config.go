// Package config reads server settings from the environment.
//
// A .env file in the working directory is loaded first when present.
// Variables already set in the process environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultPort        = 8080
	DefaultDBPath      = "data/civic.db"
	DefaultCORSOrigins = "http://localhost:5173"

	minJWTSecretLength = 16
)

// Config holds everything cmd/server needs to build the server.
type Config struct {
	Port     int
	DBPath   string
	LogLevel slog.Level

	// CORSOrigins are the browser origins allowed to call the API.
	CORSOrigins []string

	// JWTSecret enables signed bearer tokens when non-empty.
	JWTSecret string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	GeminiAPIKey string
	GeminiModels []string

	// StaticDir optionally serves a built SPA from the same origin.
	StaticDir string
}

// GoogleEnabled reports whether server-side Google OAuth is configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load reads .env (if any) and the environment.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an
// error.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Config{
		Port:               DefaultPort,
		DBPath:             getenv("DB_PATH", DefaultDBPath),
		LogLevel:           slog.LevelInfo,
		CORSOrigins:        splitList(getenv("CORS_ORIGINS", DefaultCORSOrigins)),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:  os.Getenv("GOOGLE_CALLBACK_URL"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModels:       splitList(os.Getenv("GEMINI_MODELS")),
		StaticDir:          os.Getenv("STATIC_DIR"),
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return Config{}, fmt.Errorf("config: invalid PORT %q", v)
		}
		cfg.Port = port
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("config: invalid LOG_LEVEL %q", v)
		}
	}

	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < minJWTSecretLength {
		return Config{}, fmt.Errorf("config: JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}

	if cfg.GoogleEnabled() && cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList parses a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
