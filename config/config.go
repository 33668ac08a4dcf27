// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config is the flowpayd process configuration. All values come from
// FLOWPAY_-prefixed environment variables.
type Config struct {
	ListenAddress   string        `envconfig:"LISTEN_ADDRESS" default:":8080"`
	Endpoints       []string      `envconfig:"FLOW_ENDPOINTS" default:"https://rest-testnet.onflow.org,https://access-testnet.onflow.org" validate:"min=1,dive,url"`
	MerchantAddress string        `envconfig:"MERCHANT_ADDRESS" required:"true" validate:"required"`
	DatabasePath    string        `envconfig:"DATABASE_PATH" default:"flowpay.db"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Environment     string        `envconfig:"ENVIRONMENT" default:"production" validate:"oneof=development production"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	PollAttempts    int           `envconfig:"POLL_ATTEMPTS" default:"30" validate:"gt=0"`
	StabilityAPIKey string        `envconfig:"STABILITY_API_KEY"`
	EnableMetrics   bool          `envconfig:"ENABLE_METRICS" default:"true"`
}

// Development reports whether diagnostic detail should be included in error
// responses.
func (c *Config) Development() bool {
	return c.Environment == "development"
}

// Load reads and validates the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("flowpay", &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
