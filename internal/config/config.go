// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	Database struct {
		// Path is the SQLite file used when Host is empty.
		Path     string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	SessionKey      string
	StoreTimeout    time.Duration
	LogLevel        string
	LogstashAddr    string
	PasswordHashing string
}

// UsePostgres reports whether a remote PostgreSQL server is configured.
func (c *Config) UsePostgres() bool {
	return c.Database.Host != ""
}

// PostgresDSN builds the keyword/value DSN understood by the postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Load reads an optional .env file and then the process environment.
// Values already present in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	// a missing .env is the normal case outside development
	_ = godotenv.Load(envFiles...)

	cfg := &Config{}
	cfg.Port = getEnv("PORT", ":9090")
	if cfg.Port[0] != ':' {
		cfg.Port = ":" + cfg.Port
	}

	cfg.Database.Path = getEnv("DATABASE", "socialfeed.db")
	cfg.Database.Host = getEnv("DB_HOST", "")
	cfg.Database.Port = getEnv("DB_PORT", "5432")
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "")
	cfg.Database.Name = getEnv("DB_NAME", "social_hub")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "require")

	cfg.SessionKey = getEnv("SESSION_KEY", "SESSION_KEY")
	cfg.LogLevel = getEnv("LOG_LEVEL", "warn")
	cfg.LogstashAddr = getEnv("LOGSTASH_ADDR", "")
	cfg.PasswordHashing = getEnv("PASSWORD_HASHING", "plain")

	timeout, err := parseDuration(getEnv("STORE_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
	}
	cfg.StoreTimeout = timeout

	return cfg, nil
}

// parseDuration accepts Go durations ("750ms") or a bare number of seconds.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
