package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/toplevelctl/internal/launcher"
	"github.com/bryanchriswhite/toplevelctl/internal/logger"
)

var demoCmd = &cobra.Command{
	Use:   "demo [-- COMMAND [ARGS...]]",
	Short: "Launch the target application and control it",
	Long: `Start the configured child command (child.command, or the arguments after
--) in its own session, then run the controller against it as serve does.
The child's whole process group is stopped when toplevelctl exits, and
toplevelctl exits when the child does.

The child must set its app id to target_app_id for it to be tracked.`,
	Example: `  # Launch foot with the default target app id
  toplevelctl demo -- foot --app-id mt-child

  # Use child.command from the config file
  toplevelctl config set child.command "foot --app-id mt-child"
  toplevelctl demo`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	argv := cfg.Child.Command
	if len(args) > 0 {
		argv = args
	}
	child, err := launcher.Start(argv)
	if err != nil {
		return err
	}
	defer func() {
		if err := child.Stop(launcher.DefaultGrace); err != nil {
			log.Warn().Err(err).Msg("Failed to stop child")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-child.Done():
			log.Info().Err(child.Err()).Msg("Child exited")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runController(ctx, configMgr, cfg)
}
