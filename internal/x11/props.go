package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/icccm"

	"github.com/bryanchriswhite/toplevelctl/internal/toplevel"
)

// windowInfo is what we read off a client window.
type windowInfo struct {
	title    string
	appID    string
	hasClass bool
	states   toplevel.StateSet
}

// appIDFromClass picks the app id out of WM_CLASS. The instance is the
// lowercase program name that Wayland compositors report as app_id ("foot"
// rather than "Foot"); the class is used when the instance is empty.
func appIDFromClass(c *icccm.WmClass) (string, bool) {
	if c == nil {
		return "", false
	}
	if c.Instance != "" {
		return c.Instance, true
	}
	if c.Class != "" {
		return c.Class, true
	}
	return "", false
}

// statesFromEWMH maps _NET_WM_STATE atoms plus active-window status onto
// toplevel states. Maximized needs both axes.
func statesFromEWMH(wmState []string, active bool) toplevel.StateSet {
	var s toplevel.StateSet
	var horz, vert bool
	for _, name := range wmState {
		switch name {
		case "_NET_WM_STATE_HIDDEN":
			s = s.With(toplevel.StateMinimized)
		case "_NET_WM_STATE_FULLSCREEN":
			s = s.With(toplevel.StateFullscreen)
		case "_NET_WM_STATE_MAXIMIZED_HORZ":
			horz = true
		case "_NET_WM_STATE_MAXIMIZED_VERT":
			vert = true
		}
	}
	if horz && vert {
		s = s.With(toplevel.StateMaximized)
	}
	if active {
		s = s.With(toplevel.StateActivated)
	}
	return s
}

// changeEvents returns the events that move a tracker from prev to cur,
// followed by done. With first set every attribute is sent.
func changeEvents(prev, cur windowInfo, first bool) []toplevel.Event {
	var evs []toplevel.Event
	if first || prev.title != cur.title {
		evs = append(evs, toplevel.TitleEvent{Title: cur.title})
	}
	if cur.hasClass && (first || !prev.hasClass || prev.appID != cur.appID) {
		evs = append(evs, toplevel.AppIDEvent{AppID: cur.appID})
	}
	if first || prev.states != cur.states {
		evs = append(evs, toplevel.StateEvent{States: cur.states})
	}
	if len(evs) == 0 {
		return nil
	}
	return append(evs, toplevel.DoneEvent{})
}

// diffClients compares the tracked set against a fresh client list.
func diffClients(known map[xproto.Window]windowInfo, current []xproto.Window) (added, removed []xproto.Window) {
	seen := make(map[xproto.Window]bool, len(current))
	for _, w := range current {
		seen[w] = true
		if _, ok := known[w]; !ok {
			added = append(added, w)
		}
	}
	for w := range known {
		if !seen[w] {
			removed = append(removed, w)
		}
	}
	return added, removed
}
