package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Shopify   ShopifyConfig   `yaml:"shopify"`
	Labels    LabelsConfig    `yaml:"labels"`
	Printer   PrinterConfig   `yaml:"printer"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Database  DatabaseConfig  `yaml:"database"`
	Webhooks  WebhooksConfig  `yaml:"webhooks"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" env:"WISHPRINT_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type ShopifyConfig struct {
	Store          string        `yaml:"store" env:"SHOPIFY_STORE"`
	AccessToken    string        `yaml:"access_token" env:"SHOPIFY_ACCESS_TOKEN"`
	APIVersion     string        `yaml:"api_version" env:"SHOPIFY_API_VERSION"`
	ProductIDs     []string      `yaml:"product_ids" env:"SHOPIFY_PRODUCT_IDS" envSeparator:","`
	PageSize       int           `yaml:"page_size"`
	MaxPages       int           `yaml:"max_pages"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LabelsConfig struct {
	Dir        string `yaml:"dir" env:"WISHPRINT_LABELS_DIR"`
	ScratchDir string `yaml:"scratch_dir"`
	KeyPrefix  string `yaml:"key_prefix"`
}

type PrinterConfig struct {
	Command       string        `yaml:"command"`
	StatusCommand string        `yaml:"status_command"`
	Destination   string        `yaml:"destination" env:"WISHPRINT_PRINTER"`
	PaperSize     string        `yaml:"paper_size"`
	Orientation   string        `yaml:"orientation"`
	Scale         string        `yaml:"scale"`
	Silent        bool          `yaml:"silent"`
	Timeout       time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval" env:"WISHPRINT_POLL_INTERVAL"`
	DrainInterval time.Duration `yaml:"drain_interval" env:"WISHPRINT_DRAIN_INTERVAL"`
	PollTimeout   time.Duration `yaml:"poll_timeout"`
	DrainTimeout  time.Duration `yaml:"drain_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"WISHPRINT_DB_PATH"`
}

// WebhooksConfig.RetryCount caps delivery attempts per URL; 0 delivers once
// without retrying.
type WebhooksConfig struct {
	URLs        []string      `yaml:"urls" env:"WISHPRINT_WEBHOOK_URLS" envSeparator:","`
	Secret      string        `yaml:"secret" env:"WISHPRINT_WEBHOOK_SECRET"`
	RetryCount  int           `yaml:"retry_count"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Timeout     time.Duration `yaml:"timeout"`
	WorkerCount int           `yaml:"worker_count"`
	QueueSize   int           `yaml:"queue_size"`
}

type AuthConfig struct {
	PasswordHash string `yaml:"password_hash" env:"WISHPRINT_PASSWORD_HASH"`
	JWTSecret    string `yaml:"jwt_secret" env:"WISHPRINT_JWT_SECRET"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"WISHPRINT_LOG_LEVEL"`
	Format string `yaml:"format"`
	File   string `yaml:"file" env:"WISHPRINT_LOG_FILE"`
}

// Enabled reports whether the status API requires a login.
func (a AuthConfig) Enabled() bool {
	return a.PasswordHash != ""
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         5000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Shopify: ShopifyConfig{
			APIVersion:     "2024-07",
			PageSize:       250,
			RequestTimeout: 30 * time.Second,
		},
		Labels: LabelsConfig{
			Dir:       "./labels",
			KeyPrefix: "Sorte",
		},
		Printer: PrinterConfig{
			Command:       "lp",
			StatusCommand: "lpstat",
			PaperSize:     "custom",
			Orientation:   "landscape",
			Scale:         "noscale",
			Silent:        true,
			Timeout:       30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			PollInterval:  60 * time.Second,
			DrainInterval: 5 * time.Second,
			PollTimeout:   2 * time.Minute,
			DrainTimeout:  time.Minute,
		},
		Database: DatabaseConfig{
			Path: "./data/wishprint.db",
		},
		Webhooks: WebhooksConfig{
			RetryCount:  3,
			RetryDelay:  5 * time.Second,
			Timeout:     10 * time.Second,
			WorkerCount: 2,
			QueueSize:   100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at configPath (a missing file means defaults),
// then applies .env and process environment overrides.
func Load(configPath, dotenvPath string) (*Config, error) {
	cfg := defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := applyEnv(cfg, dotenvPath); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config, dotenvPath string) error {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", dotenvPath, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must be non-negative")
	}

	if c.Shopify.Store == "" {
		return fmt.Errorf("shopify store is required")
	}

	if c.Shopify.AccessToken == "" {
		return fmt.Errorf("shopify access token is required")
	}

	if len(c.Shopify.ProductIDs) == 0 {
		return fmt.Errorf("at least one shopify product id is required")
	}

	if c.Shopify.PageSize < 1 || c.Shopify.PageSize > 250 {
		return fmt.Errorf("shopify page size must be between 1 and 250, got %d", c.Shopify.PageSize)
	}

	if c.Shopify.MaxPages < 0 {
		return fmt.Errorf("shopify max pages must be non-negative")
	}

	if c.Labels.Dir == "" {
		return fmt.Errorf("labels directory is required")
	}

	if c.Printer.Command == "" {
		return fmt.Errorf("printer command is required")
	}

	if c.Printer.Timeout <= 0 {
		return fmt.Errorf("printer timeout must be positive")
	}

	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if c.Scheduler.DrainInterval <= 0 {
		return fmt.Errorf("drain interval must be positive")
	}

	if c.Scheduler.PollTimeout <= 0 || c.Scheduler.DrainTimeout <= 0 {
		return fmt.Errorf("scheduler timeouts must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Webhooks.RetryCount < 0 {
		return fmt.Errorf("webhook retry count must be non-negative")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}

	return nil
}
