package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := defaults()
	cfg.Shopify.Store = "example.myshopify.com"
	cfg.Shopify.AccessToken = "shpat_test"
	cfg.Shopify.ProductIDs = []string{"gid://shopify/Product/1"}
	return cfg
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.DrainInterval)
	assert.Equal(t, 250, cfg.Shopify.PageSize)
	assert.Equal(t, "Sorte", cfg.Labels.KeyPrefix)
	assert.Equal(t, "landscape", cfg.Printer.Orientation)
	assert.True(t, cfg.Printer.Silent)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wishprint.yaml")
	yamlContent := `
server:
  port: 8081
shopify:
  store: yaml-store.myshopify.com
  access_token: from-yaml
  product_ids:
    - gid://shopify/Product/10
scheduler:
  poll_interval: 30s
labels:
  dir: /var/labels
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	t.Setenv("SHOPIFY_ACCESS_TOKEN", "from-env")
	t.Setenv("SHOPIFY_PRODUCT_IDS", "gid://shopify/Product/1,gid://shopify/Product/2")

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "yaml-store.myshopify.com", cfg.Shopify.Store)
	assert.Equal(t, "from-env", cfg.Shopify.AccessToken)
	assert.Equal(t, []string{"gid://shopify/Product/1", "gid://shopify/Product/2"}, cfg.Shopify.ProductIDs)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, "/var/labels", cfg.Labels.Dir)
	// untouched sections keep their defaults
	assert.Equal(t, 5*time.Second, cfg.Scheduler.DrainInterval)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("SHOPIFY_STORE=dotenv-store.myshopify.com\n"), 0644))

	// godotenv never overrides variables that are already set
	t.Setenv("SHOPIFY_STORE", "")
	os.Unsetenv("SHOPIFY_STORE")

	cfg, err := Load("", dotenv)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-store.myshopify.com", cfg.Shopify.Store)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := Load(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server port"},
		{name: "missing store", mutate: func(c *Config) { c.Shopify.Store = "" }, wantErr: "store is required"},
		{name: "missing token", mutate: func(c *Config) { c.Shopify.AccessToken = "" }, wantErr: "access token"},
		{name: "no products", mutate: func(c *Config) { c.Shopify.ProductIDs = nil }, wantErr: "product id"},
		{name: "page size", mutate: func(c *Config) { c.Shopify.PageSize = 251 }, wantErr: "page size"},
		{name: "poll interval", mutate: func(c *Config) { c.Scheduler.PollInterval = 0 }, wantErr: "poll interval"},
		{name: "drain interval", mutate: func(c *Config) { c.Scheduler.DrainInterval = -time.Second }, wantErr: "drain interval"},
		{name: "printer command", mutate: func(c *Config) { c.Printer.Command = "" }, wantErr: "printer command"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: "invalid log level"},
		{name: "log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "invalid log format"},
		{name: "zero webhook retries", mutate: func(c *Config) { c.Webhooks.RetryCount = 0 }},
		{name: "negative webhook retries", mutate: func(c *Config) { c.Webhooks.RetryCount = -1 }, wantErr: "retry count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAuthEnabled(t *testing.T) {
	assert.False(t, AuthConfig{}.Enabled())
	assert.True(t, AuthConfig{PasswordHash: "$2a$10$abc"}.Enabled())
}
