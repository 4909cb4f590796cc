// Package config loads the application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/quantwise/chartsync/core"
	"github.com/quantwise/chartsync/strategy"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Condition mirrors one strategy rule in the config file.
type Condition struct {
	Indicator  string  `yaml:"indicator"`
	Period     int     `yaml:"period"`
	Comparison string  `yaml:"comparison"`
	Reference  string  `yaml:"reference"`
	Value      float64 `yaml:"value"`
}

// Config holds all application configuration.
type Config struct {
	Service struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"service"`
	Chart struct {
		Port  int    `yaml:"port"`
		Theme string `yaml:"theme"`
		Debug bool   `yaml:"debug"`
	} `yaml:"chart"`
	Storage struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"storage"`
	Telegram struct {
		Enabled bool   `yaml:"enabled"`
		Token   string `yaml:"token"`
		Users   []int  `yaml:"users"`
	} `yaml:"telegram"`
	Simulator struct {
		Enabled bool  `yaml:"enabled"`
		Seed    int64 `yaml:"seed"`
	} `yaml:"simulator"`
	Strategy struct {
		Ticker            string      `yaml:"ticker"`
		StartDate         string      `yaml:"start_date"`
		EndDate           string      `yaml:"end_date"`
		Entries           []Condition `yaml:"entries"`
		Exits             []Condition `yaml:"exits"`
		InitialCash       float64     `yaml:"initial_cash"`
		Commission        float64     `yaml:"commission"`
		FixedCashPerTrade float64     `yaml:"fixed_cash_per_trade"`
	} `yaml:"strategy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("CHARTSYNC_SERVICE_URL"); v != "" {
		cfg.Service.URL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}

	// Defaults
	if cfg.Service.URL == "" {
		cfg.Service.URL = "http://127.0.0.1:5000"
	}
	if cfg.Service.Timeout == "" {
		cfg.Service.Timeout = "30s"
	}
	if cfg.Chart.Port == 0 {
		cfg.Chart.Port = 8080
	}
	if cfg.Chart.Theme == "" {
		cfg.Chart.Theme = "dark"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "buntdb"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "chartsync.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and recognized.
func (c *Config) Validate() error {
	if c.Chart.Theme != "light" && c.Chart.Theme != "dark" {
		return fmt.Errorf("chart.theme must be \"light\" or \"dark\"")
	}

	switch c.Storage.Backend {
	case "buntdb", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required when telegram is enabled")
	}

	if _, err := c.ServiceTimeout(); err != nil {
		return fmt.Errorf("invalid service.timeout: %w", err)
	}

	return nil
}

// ServiceTimeout parses the configured HTTP client timeout.
func (c *Config) ServiceTimeout() (time.Duration, error) {
	return str2duration.ParseDuration(c.Service.Timeout)
}

// BuildStrategy converts the config's strategy section into the domain type.
func (c *Config) BuildStrategy() strategy.Strategy {
	return strategy.Strategy{
		Ticker:            c.Strategy.Ticker,
		StartDate:         c.Strategy.StartDate,
		EndDate:           c.Strategy.EndDate,
		Entries:           buildConditions(c.Strategy.Entries),
		Exits:             buildConditions(c.Strategy.Exits),
		InitialCash:       c.Strategy.InitialCash,
		Commission:        c.Strategy.Commission,
		FixedCashPerTrade: c.Strategy.FixedCashPerTrade,
	}
}

func buildConditions(conditions []Condition) []core.Condition {
	out := make([]core.Condition, 0, len(conditions))
	for _, cond := range conditions {
		out = append(out, core.Condition{
			Indicator:  cond.Indicator,
			Period:     cond.Period,
			Comparison: core.Comparison(cond.Comparison),
			Reference:  cond.Reference,
			Value:      cond.Value,
		})
	}
	return out
}
