// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package config provides YAML-based configuration loading for the anchor toolkit.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/BoostyLabs/anchor/bitcoin/anchor/carriers"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/resolver"
	"github.com/BoostyLabs/anchor/internal/db"
)

// EnvPrefix defines prefix of environment variables overriding config values.
const EnvPrefix = "ANCHOR_"

// Config is the top-level configuration, loaded from anchor.yaml.
type Config struct {
	Network  string         `yaml:"network"`
	Database DatabaseConfig `yaml:"database"`
	Carrier  CarrierConfig  `yaml:"carrier"`
	Thread   ThreadConfig   `yaml:"thread"`
	API      APIConfig      `yaml:"api"`
	Log      LogConfig      `yaml:"log"`
	Fee      FeeConfig      `yaml:"fee"`
}

// DatabaseConfig holds message store connection settings.
type DatabaseConfig struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	CacheSize int    `yaml:"cache_size"`
}

// CarrierConfig holds carrier selection policy.
type CarrierConfig struct {
	OpReturnPolicy string `yaml:"opreturn_policy"`
}

// ThreadConfig holds default thread traversal budget.
type ThreadConfig struct {
	MaxDepth int `yaml:"max_depth"`
	MaxNodes int `yaml:"max_nodes"`
}

// APIConfig holds query API settings.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FeeConfig holds default fee settings.
type FeeConfig struct {
	SatPerVByte int64 `yaml:"sat_per_vbyte"`
}

// Default returns config with all defaults applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads optional .env file and YAML config from path, applies ANCHOR_*
// environment overrides and returns a validated Config. Empty path means defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	return parse(data, os.LookupEnv)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	return parse(data, func(string) (string, bool) { return "", false })
}

func parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides values from ANCHOR_* environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"NETWORK":         &c.Network,
		"DB_DRIVER":       &c.Database.Driver,
		"DB_DSN":          &c.Database.DSN,
		"OPRETURN_POLICY": &c.Carrier.OpReturnPolicy,
		"API_LISTEN":      &c.API.Listen,
		"LOG_LEVEL":       &c.Log.Level,
		"LOG_FORMAT":      &c.Log.Format,
	}
	for name, field := range strs {
		if value, ok := lookup(EnvPrefix + name); ok {
			*field = value
		}
	}

	ints := map[string]*int{
		"DB_CACHE_SIZE":    &c.Database.CacheSize,
		"THREAD_MAX_DEPTH": &c.Thread.MaxDepth,
		"THREAD_MAX_NODES": &c.Thread.MaxNodes,
	}
	for name, field := range ints {
		value, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}

		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: env %s%s: %w", EnvPrefix, name, err)
		}
		*field = n
	}

	if value, ok := lookup(EnvPrefix + "FEE_RATE"); ok {
		rate, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("config: env %sFEE_RATE: %w", EnvPrefix, err)
		}
		c.Fee.SatPerVByte = rate
	}

	return nil
}

// applyDefaults fills in default values.
func (c *Config) applyDefaults() {
	if c.Network == "" {
		c.Network = "mainnet"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = db.DriverSQLite
	}
	if c.Database.DSN == "" && c.Database.Driver == db.DriverSQLite {
		c.Database.DSN = "anchor.db"
	}
	if c.Database.CacheSize == 0 {
		c.Database.CacheSize = db.DefaultCacheSize
	}
	if c.Carrier.OpReturnPolicy == "" {
		c.Carrier.OpReturnPolicy = "legacy"
	}
	if c.Thread.MaxDepth == 0 {
		c.Thread.MaxDepth = resolver.DefaultBudget.MaxDepth
	}
	if c.Thread.MaxNodes == 0 {
		c.Thread.MaxNodes = resolver.DefaultBudget.MaxNodes
	}
	if c.API.Listen == "" {
		c.API.Listen = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Fee.SatPerVByte == 0 {
		c.Fee.SatPerVByte = 1
	}
}

// validate checks that all fields are consistent.
func (c *Config) validate() error {
	var errs []string
	if _, err := c.Params(); err != nil {
		errs = append(errs, err.Error())
	}
	switch c.Database.Driver {
	case db.DriverSQLite, db.DriverMySQL:
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be %s or %s", db.DriverSQLite, db.DriverMySQL))
	}
	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}
	if c.Database.CacheSize < 0 {
		errs = append(errs, "database.cache_size must not be negative")
	}
	if _, err := carriers.WithPolicy(c.Carrier.OpReturnPolicy); err != nil {
		errs = append(errs, "carrier."+err.Error())
	}
	if c.Thread.MaxDepth < 0 || c.Thread.MaxNodes < 0 {
		errs = append(errs, "thread budget must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, "log.format must be text or json")
	}
	if c.Fee.SatPerVByte < 0 {
		errs = append(errs, "fee.sat_per_vbyte must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Params returns bitcoin network parameters.
func (c *Config) Params() (*chaincfg.Params, error) {
	switch strings.ToLower(c.Network) {
	case "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet3", "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	}

	return nil, fmt.Errorf("unknown network: %s", c.Network)
}

// Strategy returns carrier strategy with configured OP_RETURN policy.
func (c *Config) Strategy() (*carriers.Strategy, error) {
	opt, err := carriers.WithPolicy(c.Carrier.OpReturnPolicy)
	if err != nil {
		return nil, err
	}

	return carriers.NewStrategy(opt), nil
}

// Budget returns default thread traversal budget.
func (c *Config) Budget() resolver.Budget {
	return resolver.Budget{MaxDepth: c.Thread.MaxDepth, MaxNodes: c.Thread.MaxNodes}
}

// SlogLevel returns configured log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}

	return level, nil
}
