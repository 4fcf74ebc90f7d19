package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the file-based configuration, overridable per field through
// environment variables in loadConfig.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"database"`

	Feed struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		Stream        string `yaml:"stream"`
		Consumer      string `yaml:"consumer"`
		SubjectFilter string `yaml:"subject_filter"`
	} `yaml:"feed"`

	Relay struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"relay"`

	Recommend struct {
		URL string `yaml:"url"`
	} `yaml:"recommend"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// loadConfig reads the YAML config file when present, then applies environment
// overrides. A missing file is not an error; everything has a default.
func loadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	config.Server.Port = getEnv("PORT", config.Server.Port)

	config.Database.Enabled = getEnvAsBool("DB_ENABLED", config.Database.Enabled)

	config.Feed.Enabled = getEnvAsBool("FEED_ENABLED", config.Feed.Enabled)
	config.Feed.URL = getEnv("FEED_NATS_URL", config.Feed.URL)
	config.Feed.Stream = getEnv("FEED_STREAM", config.Feed.Stream)
	config.Feed.Consumer = getEnv("FEED_CONSUMER", config.Feed.Consumer)
	config.Feed.SubjectFilter = getEnv("FEED_SUBJECT_FILTER", config.Feed.SubjectFilter)

	config.Relay.Enabled = getEnvAsBool("RELAY_ENABLED", config.Relay.Enabled)
	config.Relay.URL = getEnv("RELAY_NATS_URL", config.Relay.URL)
	config.Relay.SubjectPrefix = getEnv("RELAY_SUBJECT_PREFIX", config.Relay.SubjectPrefix)

	config.Recommend.URL = getEnv("RECOMMEND_URL", config.Recommend.URL)

	return &config, nil
}
