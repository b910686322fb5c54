package window

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/toplevelctl/internal/toplevel"
	"github.com/bryanchriswhite/toplevelctl/internal/wayland"
	"github.com/bryanchriswhite/toplevelctl/internal/x11"
)

// Backend kinds
const (
	BackendAuto    = "auto"
	BackendWayland = "wayland"
	BackendX11     = "x11"
)

// Backend is a display-server connection that feeds a toplevel.Client and
// lends it the seat and anchor surface for commands.
type Backend interface {
	toplevel.Environment

	// Name returns the backend name (e.g., "wayland", "x11")
	Name() string

	// Events delivers incoming work. Each function must be called on the
	// manager loop; an error from it ends the session.
	Events() <-chan func() error

	// SetGeometry updates the anchor rectangle and width override
	SetGeometry(anchor toplevel.Rect, rectWidth int)

	// Close closes the connection to the display server
	Close() error
}

// OpenFunc connects a backend and runs discovery, reporting every existing
// toplevel to client before returning.
type OpenFunc func(client *toplevel.Client) (Backend, error)

// Options are the backend settings taken from configuration.
type Options struct {
	MaxManagerVersion uint32
	Anchor            toplevel.Rect
	RectWidth         int
}

// ResolveKind turns "auto" into a concrete backend based on the session
// environment.
func ResolveKind(kind string, getenv func(string) string) (string, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	switch kind {
	case BackendWayland, BackendX11:
		return kind, nil
	case "", BackendAuto:
		if getenv("WAYLAND_DISPLAY") != "" || getenv("WAYLAND_SOCKET") != "" {
			return BackendWayland, nil
		}
		if getenv("DISPLAY") != "" {
			return BackendX11, nil
		}
		return "", fmt.Errorf("no display server found: neither WAYLAND_DISPLAY nor DISPLAY is set")
	}
	return "", fmt.Errorf("unknown backend %q (want auto, wayland or x11)", kind)
}

// Opener returns the OpenFunc for a concrete backend kind.
func Opener(kind string, opts Options) (OpenFunc, error) {
	switch kind {
	case BackendWayland:
		return func(c *toplevel.Client) (Backend, error) {
			s, err := wayland.Open(c, wayland.Options{
				MaxManagerVersion: opts.MaxManagerVersion,
				Anchor:            opts.Anchor,
				RectWidth:         opts.RectWidth,
			})
			if err != nil {
				return nil, err
			}
			return s, nil
		}, nil
	case BackendX11:
		return func(c *toplevel.Client) (Backend, error) {
			b, err := x11.Open(c, x11.Options{
				Anchor:    opts.Anchor,
				RectWidth: opts.RectWidth,
			})
			if err != nil {
				return nil, err
			}
			return b, nil
		}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", kind)
}
