package toplevel

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/toplevelctl/internal/logger"
)

// ErrNoSeat is returned when activation is needed but no seat is available.
var ErrNoSeat = errors.New("no input seat available for activation")

// Action names the request a command issued.
type Action int

const (
	ActionNone Action = iota
	ActionMinimize
	ActionActivate
	ActionClose
	ActionSetRectangle
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionMinimize:
		return "minimize"
	case ActionActivate:
		return "activate"
	case ActionClose:
		return "close"
	case ActionSetRectangle:
		return "set_rectangle"
	}
	return "unknown"
}

// Environment is what the caller's own UI layer lends to the issuer.
type Environment interface {
	// Anchor returns the caller's surface and on-screen rectangle that
	// minimize animations should aim at. ok is false when there is none.
	Anchor() (surface ObjectID, rect Rect, ok bool)
	// DefaultSeat returns the seat used for activation.
	DefaultSeat() (ObjectID, bool)
	// RectWidth returns the configured width override; 0 means none.
	RectWidth() int
}

// Commander issues commands against the client's tracked target. Every
// command is a no-op while no target is tracked.
type Commander struct {
	client *Client
	env    Environment
}

// NewCommander creates a commander bound to c.
func NewCommander(c *Client, env Environment) *Commander {
	return &Commander{client: c, env: env}
}

func (c *Commander) target() Handle {
	t := c.client.Target()
	if t == nil || t.Closed() {
		return nil
	}
	return t.Handle()
}

// VisualRectangle computes the hint rectangle: the anchor position, the
// override width when set, and a height of 1.
func VisualRectangle(anchor Rect, widthOverride int) Rect {
	w := anchor.Width
	if widthOverride > 0 {
		w = widthOverride
	}
	return Rect{X: anchor.X, Y: anchor.Y, Width: w, Height: 1}
}

// SetVisualRectangle tells the compositor where the target minimizes to.
func (c *Commander) SetVisualRectangle() (Action, error) {
	h := c.target()
	if h == nil {
		return ActionNone, nil
	}
	surface, anchor, ok := c.env.Anchor()
	if !ok {
		logger.WithComponent("commander").Debug().Msg("No anchor surface, skipping set_rectangle")
		return ActionNone, nil
	}

	r := VisualRectangle(anchor, c.env.RectWidth())
	if err := h.SetRectangle(surface, r); err != nil {
		return ActionNone, fmt.Errorf("set rectangle: %w", err)
	}
	return ActionSetRectangle, nil
}

// Toggle activates the target when its last committed state is minimized
// and minimizes it otherwise. State that changed on the server after the
// last done is not seen here.
func (c *Commander) Toggle() (Action, error) {
	t := c.client.Target()
	if t == nil || t.Closed() {
		return ActionNone, nil
	}
	if t.Committed().Minimized() {
		return c.Activate()
	}
	return c.Minimize()
}

// Trigger is the user action: set the visual rectangle, then toggle.
func (c *Commander) Trigger() (Action, error) {
	if c.target() == nil {
		return ActionNone, nil
	}
	if _, err := c.SetVisualRectangle(); err != nil {
		logger.WithComponent("commander").Warn().Err(err).Msg("Failed to set visual rectangle")
	}
	return c.Toggle()
}

// Minimize asks the compositor to minimize the target.
func (c *Commander) Minimize() (Action, error) {
	h := c.target()
	if h == nil {
		return ActionNone, nil
	}
	if err := h.SetMinimized(); err != nil {
		return ActionNone, fmt.Errorf("set minimized: %w", err)
	}
	return ActionMinimize, nil
}

// Activate asks the compositor to activate the target on the default seat.
func (c *Commander) Activate() (Action, error) {
	h := c.target()
	if h == nil {
		return ActionNone, nil
	}
	seat, ok := c.env.DefaultSeat()
	if !ok {
		return ActionNone, ErrNoSeat
	}
	if err := h.Activate(seat); err != nil {
		return ActionNone, fmt.Errorf("activate: %w", err)
	}
	return ActionActivate, nil
}

// Close asks the target to close.
func (c *Commander) Close() (Action, error) {
	h := c.target()
	if h == nil {
		return ActionNone, nil
	}
	if err := h.Close(); err != nil {
		return ActionNone, fmt.Errorf("close: %w", err)
	}
	return ActionClose, nil
}
