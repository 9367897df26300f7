package config

import (
	"fmt"
	"os"

	"market-stream/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Defaults applied when a section omits a value
const (
	DefaultAuthTimeoutSeconds    = 10
	DefaultUpdateIntervalSeconds = 2
	DefaultAlertIntervalSeconds  = 30
	DefaultAlertProbability      = 0.1
	DefaultMaxSubscriptions      = 50
	DefaultHistoryDepth          = 1000
	DefaultRetentionDays         = 7
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Auth.AuthTimeoutSeconds <= 0 {
		c.Auth.AuthTimeoutSeconds = DefaultAuthTimeoutSeconds
	}
	if c.Simulator.UpdateIntervalSeconds <= 0 {
		c.Simulator.UpdateIntervalSeconds = DefaultUpdateIntervalSeconds
	}
	if c.Simulator.AlertIntervalSeconds <= 0 {
		c.Simulator.AlertIntervalSeconds = DefaultAlertIntervalSeconds
	}
	if c.Simulator.AlertProbability <= 0 {
		c.Simulator.AlertProbability = DefaultAlertProbability
	}
	if c.Simulator.MaxSubscriptions <= 0 {
		c.Simulator.MaxSubscriptions = DefaultMaxSubscriptions
	}
	if c.Simulator.HistoryDepth <= 0 {
		c.Simulator.HistoryDepth = DefaultHistoryDepth
	}
	if c.Storage.RetentionDays <= 0 {
		c.Storage.RetentionDays = DefaultRetentionDays
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Auth configuration
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret cannot be empty")
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	// Validate Redis configuration
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr cannot be empty when redis is enabled")
	}

	// Validate Instrument universe
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument must be configured")
	}
	seen := make(map[string]struct{}, len(c.Instruments))
	for i, inst := range c.Instruments {
		if inst.Symbol == "" {
			return fmt.Errorf("instrument %d must have a symbol", i)
		}
		if _, dup := seen[inst.Symbol]; dup {
			return fmt.Errorf("duplicate instrument symbol '%s'", inst.Symbol)
		}
		seen[inst.Symbol] = struct{}{}
		switch inst.Class {
		case models.ClassStock, models.ClassETF, models.ClassCrypto:
		default:
			return fmt.Errorf("instrument '%s' has unknown class '%s'", inst.Symbol, inst.Class)
		}
		if inst.BasePrice <= 0 {
			return fmt.Errorf("instrument '%s' must have a positive base price", inst.Symbol)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
