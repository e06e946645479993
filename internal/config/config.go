// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or
// environment variables.
type Config struct {
	BindAddr       string        `mapstructure:"BIND_ADDR"`
	Port           string        `mapstructure:"PORT"`
	AllowedOrigins string        `mapstructure:"ALLOWED_ORIGINS"`
	Env            string        `mapstructure:"APP_ENV"`
	MaxConnections int           `mapstructure:"MAX_CONNECTIONS"`
	IdleAfter      time.Duration `mapstructure:"IDLE_AFTER"`
	IdleSweep      time.Duration `mapstructure:"IDLE_SWEEP_INTERVAL"`
	DisconnectTTL  time.Duration `mapstructure:"DISCONNECT_GRACE"`
	ReapInterval   time.Duration `mapstructure:"REAP_INTERVAL"`
}

// LoadConfig loads application configuration from file and environment
// variables. A missing config file is fine; defaults cover development.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			log.Printf("No profile-specific configuration for %q, using base config", env)
		}
	}

	viper.SetDefault("BIND_ADDR", "0.0.0.0")
	viper.SetDefault("PORT", "18080")
	viper.SetDefault("ALLOWED_ORIGINS", "*")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("MAX_CONNECTIONS", 10000)
	viper.SetDefault("IDLE_AFTER", time.Minute)
	viper.SetDefault("IDLE_SWEEP_INTERVAL", 5*time.Second)
	viper.SetDefault("DISCONNECT_GRACE", 5*time.Minute)
	viper.SetDefault("REAP_INTERVAL", time.Minute)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures required values are present and internally consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.MaxConnections <= 0 {
		return errors.New("MAX_CONNECTIONS must be positive")
	}
	if c.IdleAfter <= 0 || c.DisconnectTTL <= 0 {
		return errors.New("IDLE_AFTER and DISCONNECT_GRACE must be positive")
	}
	if c.IdleSweep <= 0 || c.ReapInterval <= 0 {
		return errors.New("IDLE_SWEEP_INTERVAL and REAP_INTERVAL must be positive")
	}
	if c.IdleSweep > c.IdleAfter {
		log.Println("WARNING: IDLE_SWEEP_INTERVAL exceeds IDLE_AFTER; inactivity detection will lag.")
	}
	return nil
}
