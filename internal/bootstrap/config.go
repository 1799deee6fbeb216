package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/linkhound/ingest/config"
)

// InitLogger installs a JSON slog logger as the process default.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig reads .env when present, parses the environment into AppConfig
// and applies the sanitize clamps.
func LoadConfig() (config.AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		// A missing .env is the normal case outside development.
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig rejects a SERVICES value that parses to nothing.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}
	return nil
}

// GetEnabledServices lists the enabled service names in declaration order,
// for startup logging.
func GetEnabledServices(cfg *config.AppConfig) []string {
	names := []string{}
	if cfg == nil {
		return names
	}
	enabled, err := cfg.GetEnabledServices()
	if err != nil {
		return names
	}

	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			names = append(names, string(mode))
		}
	}
	return names
}
