// Package config provides application configuration loading from environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the server.
type Config struct {
	Port        int
	DBPath      string
	LogLevel    string
	LogJSON     bool
	CORSOrigins []string
}

// Load reads configuration from environment variables, with a best-effort
// .env file load first. Missing values fall back to dev defaults.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        8080,
		DBPath:      "timesheet.db",
		LogLevel:    "info",
		CORSOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil && p > 0 && p < 65536 {
			cfg.Port = p
		}
	}
	if db := os.Getenv("DB_PATH"); db != "" {
		cfg.DBPath = db
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}
	cfg.LogJSON = os.Getenv("LOG_JSON") == "true"

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg
}
