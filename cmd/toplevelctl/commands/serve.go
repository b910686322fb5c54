package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	evdev "github.com/holoplot/go-evdev"
	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/toplevelctl/internal/api"
	"github.com/bryanchriswhite/toplevelctl/internal/config"
	"github.com/bryanchriswhite/toplevelctl/internal/dbus"
	"github.com/bryanchriswhite/toplevelctl/internal/hotkey"
	"github.com/bryanchriswhite/toplevelctl/internal/logger"
	"github.com/bryanchriswhite/toplevelctl/internal/window"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Track the target window and serve the control surfaces",
	Long: `Connect to the display server, track the target window and accept
commands over HTTP, D-Bus and the configured hotkey until interrupted.

Edits to the config file's target_app_id, anchor and rect_width are applied
without a restart.`,
	Example: `  # Start with the configured target
  toplevelctl serve

  # Control a different application on a custom port
  toplevelctl serve --target foot --port 9090

  # Force the X11 backend with debug logging
  toplevelctl serve --backend x11 --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return runController(ctx, configMgr, cfg)
}

// runController starts the window manager and every configured front end,
// and blocks until ctx is done or the display connection is lost.
func runController(ctx context.Context, configMgr *config.Manager, cfg *config.Config) error {
	log := logger.WithComponent("main")

	windowMgr, err := startManager(cfg)
	if err != nil {
		return err
	}
	defer windowMgr.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// HTTP API
	server := api.NewServer(windowMgr, configMgr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(ctx, cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// D-Bus service
	if cfg.DBus.Enabled {
		svc, closeBus, err := dbus.Connect(cfg.DBus.Name, windowMgr)
		if err != nil {
			log.Warn().Err(err).Msg("D-Bus service disabled")
		} else {
			defer closeBus()
			go svc.Run(ctx)
		}
	}

	// Hotkey
	if cfg.Hotkey.KeyCode > 0 {
		code := evdev.EvCode(cfg.Hotkey.KeyCode)
		dev, err := hotkey.Find(hotkey.EvdevOpener{}, cfg.Hotkey.Device, code)
		if err != nil {
			log.Warn().Err(err).Msg("Hotkey disabled")
		} else {
			listener := hotkey.NewListener(dev, code, windowMgr.Trigger)
			go func() {
				if err := listener.Run(ctx); err != nil {
					log.Warn().Err(err).Msg("Hotkey listener stopped")
				}
			}()
		}
	}

	// Live config
	go func() {
		current := cfg
		err := configMgr.Watch(ctx, func(next *config.Config) {
			applyOverrides(next)
			applyLive(ctx, windowMgr, current, next)
			current = next
		})
		if err != nil {
			log.Warn().Err(err).Msg("Config watch disabled")
		}
	}()

	log.Info().
		Str("target", cfg.TargetAppID).
		Str("api", fmt.Sprintf("http://localhost:%d/api", cfg.ServerPort)).
		Msg("toplevelctl is running")

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully...")
		return nil
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-windowMgr.Done():
		if err := windowMgr.Err(); err != nil && !errors.Is(err, window.ErrNotRunning) {
			return fmt.Errorf("display connection lost: %w", err)
		}
		return nil
	}
}
