package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/toplevelctl/internal/config"
	"github.com/bryanchriswhite/toplevelctl/internal/logger"
	"github.com/bryanchriswhite/toplevelctl/internal/window"
)

// loadConfig opens the config file and applies command line overrides to
// the returned copy. Overrides are not saved.
func loadConfig() (*config.Manager, *config.Config, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get()
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.LogLevel, false)
	logger.WithComponent("main").Debug().
		Str("path", configMgr.GetConfigPath()).
		Str("target", cfg.TargetAppID).
		Str("backend", cfg.Backend).
		Msg("Configuration loaded")
	return configMgr, cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			cfg.ServerPort = port
		}
	}
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			cfg.LogLevel = level
		}
	}
	if viper.IsSet("backend") {
		if kind := viper.GetString("backend"); kind != "" {
			cfg.Backend = kind
		}
	}
	if viper.IsSet("target_app_id") {
		if appID := viper.GetString("target_app_id"); appID != "" {
			cfg.TargetAppID = appID
		}
	}
}

// startManager resolves the backend, connects and runs discovery.
func startManager(cfg *config.Config) (*window.Manager, error) {
	kind, err := window.ResolveKind(cfg.Backend, os.Getenv)
	if err != nil {
		return nil, err
	}
	open, err := window.Opener(kind, window.Options{
		MaxManagerVersion: cfg.MaxManagerVersion,
		Anchor:            cfg.Anchor.Rect(),
		RectWidth:         cfg.RectWidth,
	})
	if err != nil {
		return nil, err
	}

	windowMgr := window.NewManager(cfg.TargetAppID, open)
	if err := windowMgr.Start(); err != nil {
		return nil, fmt.Errorf("failed to start window manager: %w", err)
	}
	return windowMgr, nil
}

// applyLive pushes a reloaded configuration into a running manager.
func applyLive(ctx context.Context, windowMgr *window.Manager, prev, next *config.Config) {
	log := logger.WithComponent("main")

	if next.LogLevel != prev.LogLevel {
		zerolog.SetGlobalLevel(logger.ParseLevel(next.LogLevel))
	}
	if next.TargetAppID != prev.TargetAppID {
		if err := windowMgr.SetTargetAppID(ctx, next.TargetAppID); err != nil {
			log.Warn().Err(err).Msg("Failed to apply target_app_id")
		}
	}
	if next.Anchor != prev.Anchor || next.RectWidth != prev.RectWidth {
		if err := windowMgr.SetGeometry(ctx, next.Anchor.Rect(), next.RectWidth); err != nil {
			log.Warn().Err(err).Msg("Failed to apply geometry")
		}
	}
	if next.Backend != prev.Backend || next.MaxManagerVersion != prev.MaxManagerVersion || next.ServerPort != prev.ServerPort {
		log.Info().Msg("backend, max_manager_version and server_port changes apply on restart")
	}
}
