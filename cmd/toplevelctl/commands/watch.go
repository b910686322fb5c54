package commands

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/toplevelctl/internal/window"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream target status changes as JSON lines",
	Long: `Print the target's status, then one JSON line each time it changes
(appears, commits new states or title, closes) until interrupted.`,
	Example: `  # Follow the target's minimized state
  toplevelctl watch | jq .minimized`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	windowMgr, err := startManager(cfg)
	if err != nil {
		return err
	}
	defer windowMgr.Stop()

	updates := windowMgr.Subscribe()
	defer windowMgr.Unsubscribe(updates)

	encoder := json.NewEncoder(os.Stdout)
	if err := encoder.Encode(windowMgr.Status()); err != nil {
		return err
	}

	for {
		select {
		case st := <-updates:
			if err := encoder.Encode(st); err != nil {
				return err
			}
		case <-windowMgr.Done():
			if err := windowMgr.Err(); err != nil && !errors.Is(err, window.ErrNotRunning) {
				return err
			}
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
