// Package config loads the application settings from the environment.
package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for the application, loaded from
// environment variables (populated from .env by main).
type Config struct {
	SQLConnString       string `env:"SQL_CONNECTION_STRING" validate:"required"`
	MongoConnString     string `env:"MONGO_CONNECTION_STRING" validate:"required"`
	MongoDatabase       string `env:"MONGO_DATABASE" envDefault:"salesimport" validate:"required"`
	MongoRowsCollection string `env:"MONGO_ROWS_COLLECTION" envDefault:"import_rows" validate:"required"`

	BatchSize   int `env:"IMPORT_BATCH_SIZE" envDefault:"500" validate:"gt=0,lte=5000"`
	MaxRows     int `env:"IMPORT_MAX_ROWS" envDefault:"100000" validate:"gt=0"`
	PreviewRows int `env:"IMPORT_PREVIEW_ROWS" envDefault:"10" validate:"gte=0"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn warning error"`
	LogFile  string `env:"LOG_FILE"`

	// Metrics are exported when a command finishes, to a textfile, a
	// Pushgateway, or both.
	MetricsTextfile    string `env:"METRICS_TEXTFILE"`
	MetricsPushgateway string `env:"METRICS_PUSHGATEWAY" validate:"omitempty,url"`
	MetricsJob         string `env:"METRICS_JOB" envDefault:"salesimport" validate:"required"`
}

// LoadConfig parses and validates the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}
