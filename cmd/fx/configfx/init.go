package configfx

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"donation-platform/internal/config"
	"donation-platform/internal/logger"
)

// ConfigPath is where config.env is looked up.
const ConfigPath = "."

var Module = fx.Provide(
	provideConfig,
	provideLogger,
)

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Level, cfg.Format)
}
