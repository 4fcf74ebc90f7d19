// Package dbconfig loads Postgres connection and pool settings from the
// environment.
package dbconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds Postgres connection and pool settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewConfigFromEnv reads DB_* environment variables, falling back to local
// development defaults. Unparseable numeric values fall back the same way.
func NewConfigFromEnv() Config {
	return Config{
		Host:            envString("DB_HOST", "localhost"),
		Port:            envInt("DB_PORT", 5432),
		User:            envString("DB_USER", "postgres"),
		Password:        envString("DB_PASSWORD", "postgres"),
		Database:        envString("DB_NAME", "draftroom"),
		SSLMode:         envString("DB_SSLMODE", "disable"),
		MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(envInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)) * time.Minute,
	}
}

// DSN returns the Postgres connection URL. Credentials are escaped so
// passwords with reserved characters survive the round trip.
func (c Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
