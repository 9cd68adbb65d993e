// Package config reads the relay's settings from the environment, with an
// optional YAML file layered on top.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Storage
	StateTable       string `yaml:"state_table"`
	DirectoryKey     string `yaml:"directory_key"`
	SessionKeyPrefix string `yaml:"session_key_prefix"`

	// Secrets live under this SSM path.
	ParamPrefix string `yaml:"param_prefix"`

	// Order service
	OrderAPIBaseURL     string `yaml:"order_api_base_url"`
	CheckAmountEndpoint string `yaml:"check_amount_endpoint"`
	OrderTimezone       string `yaml:"order_timezone"`

	SessionSaveAttempts int `yaml:"session_save_attempts"`
	FanoutWorkers       int `yaml:"fanout_workers"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		StateTable:       getEnv("STATE_TABLE", ""),
		DirectoryKey:     getEnv("DIRECTORY_KEY", "teamsTalkerData.json"),
		SessionKeyPrefix: getEnv("SESSION_KEY_PREFIX", "session/"),

		ParamPrefix: getEnv("PARAM_PREFIX", ""),

		OrderAPIBaseURL:     getEnv("ORDER_API_BASE_URL", ""),
		CheckAmountEndpoint: getEnv("CHECK_AMOUNT_ENDPOINT", ""),
		OrderTimezone:       getEnv("ORDER_TIMEZONE", "Asia/Shanghai"),

		SessionSaveAttempts: getEnvInt("SESSION_SAVE_ATTEMPTS", 3),
		FanoutWorkers:       getEnvInt("FANOUT_WORKERS", 1),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

// LoadFile reads the environment and then applies the keys present in the
// YAML file at path.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.StateTable) == "" {
		missing = append(missing, "STATE_TABLE")
	}
	if strings.TrimSpace(c.ParamPrefix) == "" {
		missing = append(missing, "PARAM_PREFIX")
	}
	if strings.TrimSpace(c.OrderAPIBaseURL) == "" {
		missing = append(missing, "ORDER_API_BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.SessionSaveAttempts < 1 {
		return errors.New("config: SESSION_SAVE_ATTEMPTS must be at least 1")
	}
	if c.FanoutWorkers < 1 {
		return errors.New("config: FANOUT_WORKERS must be at least 1")
	}
	return nil
}

// Location resolves OrderTimezone.
func (c Config) Location() (*time.Location, error) {
	if c.OrderTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.OrderTimezone)
	if err != nil {
		return nil, fmt.Errorf("config: ORDER_TIMEZONE: %w", err)
	}
	return loc, nil
}

func (c Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
