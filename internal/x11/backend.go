// Package x11 feeds the toplevel client from an EWMH window manager, so the
// same tracker and command logic runs on X11 sessions.
package x11

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/bryanchriswhite/toplevelctl/internal/logger"
	"github.com/bryanchriswhite/toplevelctl/internal/toplevel"
)

const eventBuffer = 256

// Options configures the backend.
type Options struct {
	Anchor    toplevel.Rect
	RectWidth int
}

// Backend tracks client windows listed in _NET_CLIENT_LIST and reports them
// to a toplevel.Client as toplevel events.
type Backend struct {
	xu     *xgbutil.XUtil
	root   xproto.Window
	client *toplevel.Client

	windows  map[xproto.Window]windowInfo
	active   xproto.Window
	released bool

	anchor    toplevel.Rect
	rectWidth int

	events    chan func() error
	closing   chan struct{}
	closeOnce sync.Once
}

// Open connects to the X server and reports the current client windows to
// client before returning.
func Open(client *toplevel.Client, opts Options) (*Backend, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	b := &Backend{
		xu:        xu,
		root:      xu.RootWin(),
		client:    client,
		windows:   make(map[xproto.Window]windowInfo),
		anchor:    opts.Anchor,
		rectWidth: opts.RectWidth,
		events:    make(chan func() error, eventBuffer),
		closing:   make(chan struct{}),
	}

	if err := b.selectProperties(b.root); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("failed to set event mask: %w", err)
	}
	if _, err := ewmh.ClientListGet(xu); err != nil {
		xu.Conn().Close()
		logger.WithComponent("x11").Debug().Err(err).Msg("No _NET_CLIENT_LIST on root")
		return nil, fmt.Errorf("window manager is not EWMH compliant: %w", toplevel.ErrCapabilityMissing)
	}

	client.BindManager(b)
	if active, err := ewmh.ActiveWindowGet(xu); err == nil {
		b.active = active
	}
	b.syncClients()

	go b.readLoop()

	logger.WithComponent("x11").Info().
		Int("toplevels", len(b.windows)).
		Msg("Tracking X11 client windows")
	return b, nil
}

func (b *Backend) selectProperties(win xproto.Window) error {
	return xproto.ChangeWindowAttributesChecked(
		b.xu.Conn(),
		win,
		xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange},
	).Check()
}

func (b *Backend) readLoop() {
	defer close(b.events)
	log := logger.WithComponent("x11")
	for {
		ev, xerr := b.xu.Conn().WaitForEvent()
		if ev == nil && xerr == nil {
			select {
			case <-b.closing:
			case b.events <- func() error { return fmt.Errorf("X server connection closed") }:
			}
			return
		}
		if xerr != nil {
			// Usually BadWindow for a window that vanished mid-request.
			log.Debug().Str("error", xerr.Error()).Msg("X11 error")
			continue
		}
		pn, ok := ev.(xproto.PropertyNotifyEvent)
		if !ok {
			continue
		}
		select {
		case b.events <- func() error { b.handleProperty(pn); return nil }:
		case <-b.closing:
			return
		}
	}
}

func (b *Backend) handleProperty(ev xproto.PropertyNotifyEvent) {
	if b.released {
		return
	}
	name, err := xprop.AtomName(b.xu, ev.Atom)
	if err != nil {
		return
	}

	if ev.Window == b.root {
		switch name {
		case "_NET_CLIENT_LIST":
			b.syncClients()
		case "_NET_ACTIVE_WINDOW":
			b.refreshActive()
		}
		return
	}

	switch name {
	case "_NET_WM_NAME", "WM_NAME", "WM_CLASS", "_NET_WM_STATE":
		b.refresh(ev.Window)
	}
}

func (b *Backend) readWindow(win xproto.Window) windowInfo {
	var info windowInfo
	if title, err := ewmh.WmNameGet(b.xu, win); err == nil && title != "" {
		info.title = title
	} else if title, err := icccm.WmNameGet(b.xu, win); err == nil {
		info.title = title
	}
	if class, err := icccm.WmClassGet(b.xu, win); err == nil {
		info.appID, info.hasClass = appIDFromClass(class)
	}
	wmState, _ := ewmh.WmStateGet(b.xu, win)
	info.states = statesFromEWMH(wmState, win == b.active)
	return info
}

func (b *Backend) dispatch(win xproto.Window, evs []toplevel.Event) {
	for _, ev := range evs {
		b.client.Dispatch(uint32(win), ev)
	}
}

func (b *Backend) syncClients() {
	log := logger.WithComponent("x11")
	current, err := ewmh.ClientListGet(b.xu)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read client list")
		return
	}

	added, removed := diffClients(b.windows, current)
	for _, win := range removed {
		delete(b.windows, win)
		b.client.Dispatch(uint32(win), toplevel.ClosedEvent{})
	}
	for _, win := range added {
		if err := b.selectProperties(win); err != nil {
			log.Debug().Err(err).Uint32("window", uint32(win)).Msg("Failed to watch window")
		}
		b.client.HandleNewToplevel(&Handle{xu: b.xu, win: win})
		info := b.readWindow(win)
		b.windows[win] = info
		b.dispatch(win, changeEvents(windowInfo{}, info, true))
	}
}

func (b *Backend) refresh(win xproto.Window) {
	prev, ok := b.windows[win]
	if !ok {
		return
	}
	info := b.readWindow(win)
	b.windows[win] = info
	b.dispatch(win, changeEvents(prev, info, false))
}

func (b *Backend) refreshActive() {
	active, err := ewmh.ActiveWindowGet(b.xu)
	if err != nil || active == b.active {
		return
	}
	prev := b.active
	b.active = active
	b.refresh(prev)
	b.refresh(active)
}

// Release implements toplevel.ManagerHandle. Events stop flowing to the
// client; the connection stays open until Close.
func (b *Backend) Release() {
	b.released = true
}

// Name identifies the backend.
func (b *Backend) Name() string {
	return "x11"
}

// Events delivers property changes for dispatch.
func (b *Backend) Events() <-chan func() error {
	return b.events
}

// Anchor implements toplevel.Environment. The root window stands in for
// the surface, which X11 requests do not need.
func (b *Backend) Anchor() (toplevel.ObjectID, toplevel.Rect, bool) {
	return toplevel.ObjectID(b.root), b.anchor, true
}

// DefaultSeat implements toplevel.Environment.
func (b *Backend) DefaultSeat() (toplevel.ObjectID, bool) {
	return 0, true
}

// RectWidth implements toplevel.Environment.
func (b *Backend) RectWidth() int {
	return b.rectWidth
}

// SetGeometry updates the anchor rectangle and width override.
func (b *Backend) SetGeometry(anchor toplevel.Rect, rectWidth int) {
	b.anchor = anchor
	b.rectWidth = rectWidth
}

// Close disconnects from the X server.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.closing)
		b.xu.Conn().Close()
	})
	return nil
}
