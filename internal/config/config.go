// Package config builds the process configuration from environment
// variables once at startup. The resulting struct is passed by reference
// into the server and store; nothing reads the environment at request time.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
)

// Default values applied when the corresponding variable is unset.
const (
	DefaultListen      = ":8080"
	DefaultDBPort      = "5432"
	DefaultLogLevel    = "INFO"
	DefaultMaxBodySize = 1048576 // 1 MB
)

// Config holds everything the service needs at runtime.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string

	// ClientSecret is the shared HMAC secret for webhook signatures.
	// A missing secret is a fatal startup condition.
	ClientSecret string

	// Database connection parameters.
	DBHost string
	DBName string
	DBUser string
	DBPass string
	DBPort string

	// MaxBodySize is the maximum accepted request body in bytes.
	MaxBodySize int64

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Listen:       envOr("LISTEN", DefaultListen),
		ClientSecret: os.Getenv("CLIENT_SECRET"),
		DBHost:       os.Getenv("DB_HOST"),
		DBName:       os.Getenv("DB_NAME"),
		DBUser:       os.Getenv("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"),
		DBPort:       envOr("DB_PORT", DefaultDBPort),
		MaxBodySize:  DefaultMaxBodySize,
		LogLevel:     envOr("LOG_LEVEL", DefaultLogLevel),
	}

	if raw := os.Getenv("MAX_BODY_SIZE"); raw != "" {
		size, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("invalid MAX_BODY_SIZE %q", raw)
		}
		cfg.MaxBodySize = size
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every required value is present.
func (c *Config) Validate() error {
	if c.ClientSecret == "" {
		return fmt.Errorf("CLIENT_SECRET is not set")
	}
	for name, value := range map[string]string{
		"DB_HOST": c.DBHost,
		"DB_NAME": c.DBName,
		"DB_USER": c.DBUser,
		"DB_PASS": c.DBPass,
	} {
		if value == "" {
			return fmt.Errorf("%s is not set", name)
		}
	}
	return nil
}

// DSN returns the Postgres connection string for lib/pq. url.URL handles
// userinfo escaping, so credentials with spaces or URL metacharacters
// survive the round trip.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPass),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
