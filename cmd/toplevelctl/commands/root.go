package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "toplevelctl",
		Short: "toplevelctl - minimize and restore one application window from the panel",
		Long: `toplevelctl tracks a single application window, identified by its app id,
through the compositor's foreign toplevel management protocol and toggles it
between minimized and active on demand.

Features:
  • Wayland (zwlr_foreign_toplevel_manager_v1) and X11 (EWMH) backends
  • Minimize animation aimed at a configurable panel rectangle
  • REST + WebSocket API for integration
  • D-Bus service for desktop shortcuts
  • MCP server for assistants
  • evdev hotkey trigger
  • Persistent, live-reloaded configuration`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/toplevelctl/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8090)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "", "display backend (auto, wayland, x11)")
	rootCmd.PersistentFlags().String("target", "", "app id of the window to control")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("target_app_id", rootCmd.PersistentFlags().Lookup("target"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
