package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/toplevelctl/internal/window"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List toplevel windows",
	Long: `List every toplevel window the compositor announces, with its app id,
title and states. The window matching the target app id is marked.`,
	Example: `  # List windows in table format (default)
  toplevelctl list

  # List windows in JSON format
  toplevelctl list --format json

  # Show only the target
  toplevelctl list --target foot --current`,
	RunE: runList,
}

var (
	listFormat  string
	listCurrent bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
	listCmd.Flags().BoolVarP(&listCurrent, "current", "c", false, "show the target window's status")
}

func runList(cmd *cobra.Command, args []string) error {
	if listFormat != "table" && listFormat != "json" {
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	windowMgr, err := startManager(cfg)
	if err != nil {
		return err
	}
	defer windowMgr.Stop()

	if listCurrent {
		return showStatus(windowMgr.Status())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	toplevels, err := windowMgr.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list toplevels: %w", err)
	}

	if listFormat == "json" {
		if toplevels == nil {
			toplevels = []window.ToplevelInfo{}
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(toplevels)
	}
	return printToplevelsTable(toplevels)
}

func printToplevelsTable(toplevels []window.ToplevelInfo) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tAPP ID\tTITLE\tSTATES\tTARGET")
	fmt.Fprintln(w, "--\t------\t-----\t------\t------")

	for _, t := range toplevels {
		target := "No"
		if t.Target {
			target = "Yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.AppID, t.Title, strings.Join(t.States, ","), target)
	}

	return nil
}

func showStatus(st window.Status) error {
	if listFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(st)
	}

	if !st.Tracked {
		fmt.Printf("No window with app id %q\n", st.TargetAppID)
		return nil
	}

	fmt.Printf("App ID:    %s\n", st.TargetAppID)
	fmt.Printf("Title:     %s\n", st.Title)
	fmt.Printf("Backend:   %s\n", st.Backend)
	fmt.Printf("States:    %s\n", strings.Join(st.States, ", "))
	fmt.Printf("Minimized: %t\n", st.Minimized)

	return nil
}
