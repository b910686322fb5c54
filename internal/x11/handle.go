package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/bryanchriswhite/toplevelctl/internal/toplevel"
)

// Handle drives one client window through EWMH and ICCCM client messages.
type Handle struct {
	xu  *xgbutil.XUtil
	win xproto.Window
}

// ID implements toplevel.Handle.
func (h *Handle) ID() uint32 {
	return uint32(h.win)
}

// SetMinimized iconifies the window with WM_CHANGE_STATE.
func (h *Handle) SetMinimized() error {
	if err := ewmh.ClientEvent(h.xu, h.win, "WM_CHANGE_STATE", icccm.StateIconic); err != nil {
		return fmt.Errorf("iconify window %d: %w", h.win, err)
	}
	return nil
}

// Activate requests _NET_ACTIVE_WINDOW. X11 has a single seat so the seat
// argument is ignored.
func (h *Handle) Activate(toplevel.ObjectID) error {
	if err := ewmh.ActiveWindowReq(h.xu, h.win); err != nil {
		return fmt.Errorf("activate window %d: %w", h.win, err)
	}
	return nil
}

// SetRectangle publishes the rectangle as _NET_WM_ICON_GEOMETRY, which
// window managers use as the iconify animation target.
func (h *Handle) SetRectangle(_ toplevel.ObjectID, r toplevel.Rect) error {
	err := xprop.ChangeProp32(h.xu, h.win, "_NET_WM_ICON_GEOMETRY", "CARDINAL",
		uint(r.X), uint(r.Y), uint(r.Width), uint(r.Height))
	if err != nil {
		return fmt.Errorf("set icon geometry on window %d: %w", h.win, err)
	}
	return nil
}

// Close sends _NET_CLOSE_WINDOW.
func (h *Handle) Close() error {
	if err := ewmh.CloseWindow(h.xu, h.win); err != nil {
		return fmt.Errorf("close window %d: %w", h.win, err)
	}
	return nil
}

// Destroy implements toplevel.Handle; there is nothing to free client side.
func (h *Handle) Destroy() error {
	return nil
}
