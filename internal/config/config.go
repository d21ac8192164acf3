package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"gsdesign/domain/design"
	"gsdesign/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Engine   EngineConfig   `validate:"required"`
	Server   ServerConfig   `validate:"required"`
	Database DatabaseConfig
	Sweep    SweepConfig `validate:"required"`
	LogLevel string      `validate:"omitempty,oneof=ERROR WARN INFO DEBUG TRACE"`
}

// EngineConfig holds the numerical controls of the boundary engine
type EngineConfig struct {
	GridR     int     `validate:"gte=1,lte=200"`
	Tolerance float64 `validate:"gt=0,lte=0.001"`
	MaxIter   int     `validate:"gte=10,lte=10000"`
}

// Options converts the engine settings to design options.
func (e EngineConfig) Options() design.Options {
	return design.Options{R: e.GridR, Tol: e.Tolerance, MaxIter: e.MaxIter}
}

// ServerConfig holds API server settings
type ServerConfig struct {
	Port         string        `validate:"required,numeric"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
}

// DatabaseConfig holds database connection settings. An empty URL selects
// in-memory storage.
type DatabaseConfig struct {
	URL          string `validate:"omitempty,url"`
	MaxOpenConns int    `validate:"gte=1"`
}

// SweepConfig bounds concurrent scenario evaluation
type SweepConfig struct {
	Workers int           `validate:"gte=1,lte=256"`
	Timeout time.Duration `validate:"gt=0"`
}

var validate = validator.New()

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	defaults := design.DefaultOptions()
	config := &Config{
		Engine: EngineConfig{
			GridR:     getEnvIntOrDefault("GS_GRID_R", defaults.R),
			Tolerance: getEnvFloatOrDefault("GS_TOLERANCE", defaults.Tol),
			MaxIter:   getEnvIntOrDefault("GS_MAX_ITER", defaults.MaxIter),
		},
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", "8080"),
			ReadTimeout:  getEnvDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDurationOrDefault("SERVER_WRITE_TIMEOUT", 2*time.Minute),
		},
		Database: DatabaseConfig{
			URL:          getEnvOrDefault("DATABASE_URL", ""),
			MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		},
		Sweep: SweepConfig{
			Workers: getEnvIntOrDefault("GS_WORKERS", 4),
			Timeout: getEnvDurationOrDefault("GS_SWEEP_TIMEOUT", 5*time.Minute),
		},
		LogLevel: strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return errors.ConfigInvalid(fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
