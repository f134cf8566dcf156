package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tessera/internal/config"
	"github.com/conneroisu/tessera/internal/engine"
	"github.com/conneroisu/tessera/internal/logging"
)

// session is the configuration, logger and engine shared by a command run.
type session struct {
	config *config.Config
	logger logging.Logger
	engine *engine.Engine
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := cfg.LoggerConfig()
	logCfg.Output = cmd.ErrOrStderr()
	logger := logging.NewLogger(logCfg)

	eng, err := engine.New(cfg.EngineOptions(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if err := eng.ReloadFeatures(commandContext(cmd)); err != nil {
		return nil, fmt.Errorf("failed to load features: %w", err)
	}

	return &session{config: cfg, logger: logger, engine: eng}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
