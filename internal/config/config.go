// internal/config/config.go
//
// Runtime configuration.
// Values come from, lowest precedence first:
//   1. Built-in defaults.
//   2. An optional YAML file named by CODEBREAK_CONFIG.
//   3. Environment variables (a .env file is loaded by main via godotenv).
//
// Environment variables:
//   LOG_LEVEL      zerolog level name (default "info")
//   LISTEN_ADDR    host listen address (default ":5175")
//   TURN_SECONDS   turn length chosen by the host, 5–120 (default 30)
//   JOIN_SECRET    HS256 secret for join tokens; empty disables the check
//   RESULTS_DB     SQLite path for the results ledger; empty keeps it in memory
//   PING_SECONDS   websocket keepalive interval (default 30); a link silent
//                  for twice this long is dropped

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Turn length bounds offered to the host.
const (
	MinTurnSeconds = 5
	MaxTurnSeconds = 120
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel    string `yaml:"log_level"`
	ListenAddr  string `yaml:"listen_addr"`
	TurnSeconds int    `yaml:"turn_seconds"`
	JoinSecret  string `yaml:"join_secret"`
	ResultsDB   string `yaml:"results_db"`
	PingSeconds int    `yaml:"ping_seconds"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		LogLevel:    "info",
		ListenAddr:  ":5175",
		TurnSeconds: 30,
		PingSeconds: 30,
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, then validates it.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("CODEBREAK_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.JoinSecret = getEnv("JOIN_SECRET", c.JoinSecret)
	c.ResultsDB = getEnv("RESULTS_DB", c.ResultsDB)

	var err error
	if c.TurnSeconds, err = getEnvAsInt("TURN_SECONDS", c.TurnSeconds); err != nil {
		return err
	}
	if c.PingSeconds, err = getEnvAsInt("PING_SECONDS", c.PingSeconds); err != nil {
		return err
	}
	return nil
}

// PingInterval is the websocket keepalive period.
func (c Config) PingInterval() time.Duration {
	return time.Duration(c.PingSeconds) * time.Second
}

// ReadTimeout is how long a link may stay silent before it is dropped.
// It is always two ping intervals.
func (c Config) ReadTimeout() time.Duration {
	return 2 * c.PingInterval()
}

// Validate checks ranges.
func (c Config) Validate() error {
	var errs []error
	if err := ValidateTurnSeconds(c.TurnSeconds); err != nil {
		errs = append(errs, err)
	}
	if c.PingSeconds <= 0 {
		errs = append(errs, fmt.Errorf("ping_seconds must be positive, got %d", c.PingSeconds))
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("listen_addr must not be empty"))
	}
	return errors.Join(errs...)
}

// ValidateTurnSeconds checks n against the turn length bounds.
func ValidateTurnSeconds(n int) error {
	if n < MinTurnSeconds || n > MaxTurnSeconds {
		return fmt.Errorf("turn_seconds must be %d–%d, got %d", MinTurnSeconds, MaxTurnSeconds, n)
	}
	return nil
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}
