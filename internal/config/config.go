// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Security SecurityConfig
	CORS     CORSConfig
	Logging  LoggingConfig
	Events   EventsConfig

	// ReaperInterval is the archive purge period; zero disables the reaper.
	ReaperInterval time.Duration
	// SeedDemo loads the demo catalog on startup.
	SeedDemo bool
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver   string
	URL      string // Full PostgreSQL URL
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int
	Host string
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds authentication settings
type SecurityConfig struct {
	JWTSecret string
	// TrustUserHeader accepts X-User-Id from an upstream gateway.
	TrustUserHeader bool
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// EventsConfig holds Redis publishing settings. An empty URL disables events.
type EventsConfig struct {
	RedisURL string
	Channel  string
}

// Load reads configuration from environment variables, after loading .env
// when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := cfg.loadDatabase(); err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}
	if err := cfg.loadServer(); err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	if err := cfg.loadSecurity(); err != nil {
		return nil, fmt.Errorf("load security config: %w", err)
	}
	cfg.loadCORS()
	cfg.loadLogging()
	cfg.loadEvents()
	if err := cfg.loadBackground(); err != nil {
		return nil, fmt.Errorf("load background config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// LoadDatabase reads only the database settings, for tools that do not
// serve HTTP.
func LoadDatabase() (DatabaseConfig, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cfg.loadDatabase(); err != nil {
		return DatabaseConfig{}, fmt.Errorf("load database config: %w", err)
	}
	if cfg.Database.URL == "" {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL is required (or DB_USER, DB_NAME)")
	}
	return cfg.Database, nil
}

func (c *Config) loadDatabase() error {
	c.Database.Driver = strings.ToLower(getEnvOrDefault("STORE_DRIVER", DriverPostgres))
	c.Database.URL = os.Getenv("DATABASE_URL")

	if c.Database.URL == "" {
		c.Database.Host = getEnvOrDefault("DB_HOST", "localhost")
		c.Database.User = os.Getenv("DB_USER")
		c.Database.Password = os.Getenv("DB_PASSWORD")
		c.Database.Name = os.Getenv("DB_NAME")
		c.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

		port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
		if err != nil {
			return fmt.Errorf("invalid DB_PORT: %w", err)
		}
		c.Database.Port = port

		if c.Database.User != "" && c.Database.Name != "" {
			c.Database.URL = fmt.Sprintf(
				"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
				c.Database.User,
				c.Database.Password,
				c.Database.Host,
				c.Database.Port,
				c.Database.Name,
				c.Database.SSLMode,
			)
		}
	}

	return nil
}

func (c *Config) loadServer() error {
	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}
	c.Server.Port = port
	c.Server.Host = getEnvOrDefault("HOST", "0.0.0.0")
	return nil
}

func (c *Config) loadSecurity() error {
	c.Security.JWTSecret = os.Getenv("JWT_SECRET")

	trust, err := parseBool("AUTH_TRUST_USER_HEADER")
	if err != nil {
		return err
	}
	c.Security.TrustUserHeader = trust
	return nil
}

func (c *Config) loadCORS() {
	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsEnv == "" {
		c.CORS.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
		return
	}
	for _, origin := range strings.Split(originsEnv, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			c.CORS.AllowedOrigins = append(c.CORS.AllowedOrigins, trimmed)
		}
	}
}

func (c *Config) loadLogging() {
	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", "info")
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", "json")
}

func (c *Config) loadEvents() {
	c.Events.RedisURL = os.Getenv("REDIS_URL")
	c.Events.Channel = os.Getenv("REDIS_CHANNEL")
}

func (c *Config) loadBackground() error {
	if raw := os.Getenv("ARCHIVE_REAPER_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid ARCHIVE_REAPER_INTERVAL: %w", err)
		}
		c.ReaperInterval = interval
	}

	seed, err := parseBool("SEED_DEMO")
	if err != nil {
		return err
	}
	c.SeedDemo = seed
	return nil
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	var errors []string

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errors = append(errors, "DATABASE_URL is required (or DB_USER, DB_NAME)")
		}
	case DriverMemory:
	default:
		errors = append(errors, "STORE_DRIVER must be one of: postgres, memory")
	}

	if c.Security.JWTSecret == "" && !c.Security.TrustUserHeader {
		errors = append(errors, "JWT_SECRET is required unless AUTH_TRUST_USER_HEADER is set")
	}
	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 16 {
		errors = append(errors, "JWT_SECRET must be at least 16 characters")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "PORT must be between 1 and 65535")
	}

	if c.ReaperInterval < 0 {
		errors = append(errors, "ARCHIVE_REAPER_INTERVAL must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		errors = append(errors, "LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		errors = append(errors, "LOG_FORMAT must be one of: json, text")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func parseBool(key string) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
