package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Minimize or restore the target window once",
	Long: `Connect, wait until the target window's attributes have been committed,
send the minimize rectangle and then minimize the target if it is visible
or activate it if it is minimized. Exits when done.`,
	Example: `  # Toggle the configured target
  toplevelctl toggle

  # Toggle foot, giving it up to 5s to appear
  toplevelctl toggle --target foot --timeout 5s`,
	RunE: runToggle,
}

var (
	toggleTimeout time.Duration
	toggleNoRect  bool
)

func init() {
	rootCmd.AddCommand(toggleCmd)

	toggleCmd.Flags().DurationVarP(&toggleTimeout, "timeout", "t", 2*time.Second, "how long to wait for the target to appear")
	toggleCmd.Flags().BoolVar(&toggleNoRect, "no-rectangle", false, "skip sending the minimize rectangle")
}

func runToggle(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	windowMgr, err := startManager(cfg)
	if err != nil {
		return err
	}
	defer windowMgr.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), toggleTimeout)
	defer cancel()

	if _, err := windowMgr.WaitCommitted(ctx); err != nil {
		return fmt.Errorf("target %q not found: %w", cfg.TargetAppID, err)
	}

	run := windowMgr.Trigger
	if toggleNoRect {
		run = windowMgr.Toggle
	}
	action, err := run(ctx)
	if err != nil {
		return err
	}
	fmt.Println(action)
	return nil
}
