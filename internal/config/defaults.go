package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// defaultConfig is the built-in configuration. File and environment overrides
// are layered on top of it, so the service runs with no config file at all.
const defaultConfig = `
server:
  addr: ":8080"
  read_timeout: 10s
  write_timeout: 30s
  idle_timeout: 120s
  shutdown_timeout: 20s

session:
  orders_limit: 1000
  collector_ready_wait: 10s
  fallback_filter_years: 3

storage:
  backend: file
  snapshot_path: data/session.json
  settings_path: data/settings.json
  postgres_dsn: ""

downloads:
  root: data/invoices

default_host: shop

hosts:
  - key: shop
    base_url: https://shop.example.com
    order_history_paths:
      - /your-orders
      - /gp/css/order-history
`

// Default returns the built-in configuration.
func Default() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(defaultConfig)); err != nil {
		return nil, fmt.Errorf("failed to read default config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse default config: %w", err)
	}
	return &cfg, nil
}
