// Package mcp serves the window controller to MCP clients over stdio.
package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bryanchriswhite/toplevelctl/internal/logger"
	"github.com/bryanchriswhite/toplevelctl/internal/toplevel"
	"github.com/bryanchriswhite/toplevelctl/internal/window"
)

const (
	ServerName    = "toplevelctl"
	ServerVersion = "0.1.0"
)

// EmptyInput is the input for tools that take no arguments.
type EmptyInput struct{}

// CommandOutput reports which request a command issued.
type CommandOutput struct {
	Action string `json:"action" jsonschema:"Request sent to the compositor: none, minimize, activate, close or set_rectangle"`
}

// ListOutput is the output of list_toplevels.
type ListOutput struct {
	Toplevels []window.ToplevelInfo `json:"toplevels"`
}

// Server is the MCP server for target control.
type Server struct {
	mcpServer *mcpsdk.Server
	ctrl      window.Controller
}

// NewServer creates a server backed by ctrl.
func NewServer(ctrl window.Controller) *Server {
	s := &Server{ctrl: ctrl}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "target_status",
		Description: "Report whether the target window is tracked, its title and its current states (minimized, maximized, activated, fullscreen).",
	}, s.handleStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_toplevels",
		Description: "List every toplevel window announced by the compositor with its app id, title and states.",
	}, s.handleList)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "trigger_target",
		Description: "Send the minimize animation rectangle, then minimize the target if it is visible or activate it if it is minimized.",
	}, s.command("trigger", window.Controller.Trigger))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "toggle_target",
		Description: "Minimize the target if it is visible, or activate it if it is minimized.",
	}, s.command("toggle", window.Controller.Toggle))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "minimize_target",
		Description: "Minimize the target window.",
	}, s.command("minimize", window.Controller.Minimize))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "activate_target",
		Description: "Raise and focus the target window.",
	}, s.command("activate", window.Controller.Activate))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "close_target",
		Description: "Ask the target window to close. The application may refuse.",
	}, s.command("close", window.Controller.Close))
}

func (s *Server) handleStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, window.Status, error) {
	return nil, s.ctrl.Status(), nil
}

func (s *Server) handleList(ctx context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ListOutput, error) {
	list, err := s.ctrl.List(ctx)
	if err != nil {
		return nil, ListOutput{}, fmt.Errorf("failed to list toplevels: %w", err)
	}
	if list == nil {
		list = []window.ToplevelInfo{}
	}
	return nil, ListOutput{Toplevels: list}, nil
}

func (s *Server) command(name string, fn func(window.Controller, context.Context) (toplevel.Action, error)) mcpsdk.ToolHandlerFor[EmptyInput, CommandOutput] {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, CommandOutput, error) {
		action, err := fn(s.ctrl, ctx)
		if err != nil {
			logger.WithComponent("mcp").Warn().Err(err).Str("tool", name).Msg("Tool failed")
			return nil, CommandOutput{}, fmt.Errorf("%s failed: %w", name, err)
		}

		msg := fmt.Sprintf("%s: sent %s", name, action)
		if action == toplevel.ActionNone {
			msg = fmt.Sprintf("%s: no target window tracked", name)
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{
				&mcpsdk.TextContent{Text: msg},
			},
		}, CommandOutput{Action: action.String()}, nil
	}
}
