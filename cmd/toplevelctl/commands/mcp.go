package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/toplevelctl/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve target control tools over MCP stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing the target
window's status and commands as tools. Logs go to stderr.`,
	Example: `  # Register with an MCP client
  {"command": "toplevelctl", "args": ["mcp", "--target", "foot"]}`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
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

	return mcp.NewServer(windowMgr).Run(ctx)
}
