// Package config loads the connector configuration. Precedence, lowest to
// highest: built-in defaults, an optional YAML file, environment variables.
// A .env file in the working directory is loaded into the environment first
// when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config is the full connector configuration.
type Config struct {
	ListenAddr string

	StoreDriver string
	StorePath   string

	CaptureWorkers    int
	RefundWorkers     int
	QueueSize         int
	PollInterval      time.Duration
	CaptureMaxRetries int
	RetryBackoff      time.Duration

	ExpiryWindow time.Duration
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:        ":8080",
		StoreDriver:       DriverMemory,
		StorePath:         "payconnect.db",
		CaptureWorkers:    4,
		RefundWorkers:     2,
		QueueSize:         64,
		PollInterval:      2 * time.Second,
		CaptureMaxRetries: 10,
		RetryBackoff:      30 * time.Second,
		ExpiryWindow:      90 * time.Minute,
	}
}

// fileConfig is the YAML schema. Durations are strings ("30s", "90m").
type fileConfig struct {
	ListenAddr        string `yaml:"listen_addr"`
	StoreDriver       string `yaml:"store_driver"`
	StorePath         string `yaml:"store_path"`
	CaptureWorkers    *int   `yaml:"capture_workers"`
	RefundWorkers     *int   `yaml:"refund_workers"`
	QueueSize         *int   `yaml:"queue_size"`
	PollInterval      string `yaml:"poll_interval"`
	CaptureMaxRetries *int   `yaml:"capture_max_retries"`
	RetryBackoff      string `yaml:"retry_backoff"`
	ExpiryWindow      string `yaml:"expiry_window"`
}

// Load builds the configuration from defaults, the optional file named by
// PAYCONNECT_CONFIG_FILE, and the environment.
func Load() (Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("PAYCONNECT_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.ListenAddr != "" {
		c.ListenAddr = fc.ListenAddr
	}
	if fc.StoreDriver != "" {
		c.StoreDriver = fc.StoreDriver
	}
	if fc.StorePath != "" {
		c.StorePath = fc.StorePath
	}
	if fc.CaptureWorkers != nil {
		c.CaptureWorkers = *fc.CaptureWorkers
	}
	if fc.RefundWorkers != nil {
		c.RefundWorkers = *fc.RefundWorkers
	}
	if fc.QueueSize != nil {
		c.QueueSize = *fc.QueueSize
	}
	if fc.CaptureMaxRetries != nil {
		c.CaptureMaxRetries = *fc.CaptureMaxRetries
	}
	if err := setDuration(&c.PollInterval, fc.PollInterval, "poll_interval"); err != nil {
		return err
	}
	if err := setDuration(&c.RetryBackoff, fc.RetryBackoff, "retry_backoff"); err != nil {
		return err
	}
	if err := setDuration(&c.ExpiryWindow, fc.ExpiryWindow, "expiry_window"); err != nil {
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.ListenAddr = getEnv("PAYCONNECT_LISTEN_ADDR", c.ListenAddr)
	c.StoreDriver = getEnv("PAYCONNECT_STORE_DRIVER", c.StoreDriver)
	c.StorePath = getEnv("PAYCONNECT_STORE_PATH", c.StorePath)

	var err error
	if c.CaptureWorkers, err = envInt("PAYCONNECT_CAPTURE_WORKERS", c.CaptureWorkers); err != nil {
		return err
	}
	if c.RefundWorkers, err = envInt("PAYCONNECT_REFUND_WORKERS", c.RefundWorkers); err != nil {
		return err
	}
	if c.QueueSize, err = envInt("PAYCONNECT_QUEUE_SIZE", c.QueueSize); err != nil {
		return err
	}
	if c.CaptureMaxRetries, err = envInt("PAYCONNECT_CAPTURE_MAX_RETRIES", c.CaptureMaxRetries); err != nil {
		return err
	}
	if c.PollInterval, err = envDuration("PAYCONNECT_POLL_INTERVAL", c.PollInterval); err != nil {
		return err
	}
	if c.RetryBackoff, err = envDuration("PAYCONNECT_RETRY_BACKOFF", c.RetryBackoff); err != nil {
		return err
	}
	if c.ExpiryWindow, err = envDuration("PAYCONNECT_EXPIRY_WINDOW", c.ExpiryWindow); err != nil {
		return err
	}
	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.StoreDriver != DriverMemory && c.StoreDriver != DriverSQLite {
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.CaptureWorkers < 1 || c.RefundWorkers < 1 {
		return fmt.Errorf("worker counts must be at least 1")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.CaptureMaxRetries < 1 {
		return fmt.Errorf("capture max retries must be at least 1")
	}
	if c.ExpiryWindow <= 0 {
		return fmt.Errorf("expiry window must be positive")
	}
	return nil
}

func setDuration(into *time.Duration, raw, name string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	*into = d
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return d, nil
}
