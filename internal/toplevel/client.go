package toplevel

import (
	"sort"

	"github.com/bryanchriswhite/toplevelctl/internal/logger"
)

// Affordance is the user-facing control that is only usable while a target
// is tracked.
type Affordance interface {
	SetEnabled(enabled bool)
}

// Observer is notified of target changes and snapshot commits. Callbacks run
// on the dispatch goroutine and must not block.
type Observer interface {
	// TargetChanged is called with the new target, or nil when it is cleared.
	TargetChanged(t *Tracker)
	// Committed is called after any tracker processes done.
	Committed(t *Tracker)
}

// Option configures a Client.
type Option func(*Client)

// WithAffordance sets the control toggled on target match and loss.
func WithAffordance(a Affordance) Option {
	return func(c *Client) {
		c.affordance = a
	}
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observers = append(c.observers, o)
	}
}

// Client is the toplevel manager client. It owns the manager handle, one
// tracker per live toplevel, and the tracked target reference.
//
// Client is not safe for concurrent use; all calls must come from the
// goroutine that dispatches protocol events.
type Client struct {
	targetAppID string
	manager     ManagerHandle
	finished    bool
	trackers    map[uint32]*Tracker
	target      *Tracker
	affordance  Affordance
	observers   []Observer
}

// NewClient creates a client that tracks the toplevel whose app id equals
// targetAppID.
func NewClient(targetAppID string, opts ...Option) *Client {
	c := &Client{
		targetAppID: targetAppID,
		trackers:    make(map[uint32]*Tracker),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.affordance != nil {
		c.affordance.SetEnabled(false)
	}
	return c
}

// BindManager records the bound manager handle.
func (c *Client) BindManager(m ManagerHandle) {
	c.manager = m
	c.finished = false
}

// HasManager reports whether a manager is bound and not finished.
func (c *Client) HasManager() bool {
	return c.manager != nil && !c.finished
}

// Finished reports whether the server withdrew the manager.
func (c *Client) Finished() bool {
	return c.finished
}

// TargetAppID returns the identifier used to select the target.
func (c *Client) TargetAppID() string {
	return c.targetAppID
}

// SetTargetAppID changes the identifier. The current target is dropped and
// live trackers are checked once against the new identifier.
func (c *Client) SetTargetAppID(id string) {
	if id == c.targetAppID {
		return
	}
	c.targetAppID = id
	if c.target != nil {
		c.setTarget(nil)
	}
	for _, t := range c.Trackers() {
		if t.pending.HasAppID && t.pending.AppID == id {
			c.setTarget(t)
			return
		}
	}
}

// HandleNewToplevel registers a tracker for h. It must run in the same
// dispatch step that decoded the new-toplevel event so that no event for h
// is delivered before the tracker exists.
func (c *Client) HandleNewToplevel(h Handle) *Tracker {
	log := logger.WithComponent("toplevel")
	if h == nil {
		log.Debug().Msg("Ignoring new toplevel with nil handle")
		return nil
	}
	if old, ok := c.trackers[h.ID()]; ok && !old.Closed() {
		log.Warn().Uint32("id", h.ID()).Msg("New toplevel reuses a live id, replacing tracker")
		old.phase = PhaseClosed
		if c.target == old {
			c.setTarget(nil)
		}
		if err := old.handle.Destroy(); err != nil {
			log.Warn().Err(err).Uint32("id", h.ID()).Msg("Failed to destroy replaced toplevel handle")
		}
	}

	t := newTracker(c, h)
	c.trackers[h.ID()] = t
	log.Debug().Uint32("id", h.ID()).Msg("Tracking new toplevel")
	return t
}

// HandleFinished releases the manager after the server withdrew it.
func (c *Client) HandleFinished() {
	if c.finished {
		return
	}
	c.finished = true
	if c.manager != nil {
		c.manager.Release()
	}
	logger.WithComponent("toplevel").Info().Msg("Toplevel manager finished")
}

// Dispatch routes ev to the tracker for id. It returns false when no live
// tracker has that id.
func (c *Client) Dispatch(id uint32, ev Event) bool {
	t, ok := c.trackers[id]
	if !ok || t.Closed() {
		logger.WithComponent("toplevel").Debug().
			Uint32("id", id).
			Msg("Dropping event for unknown toplevel")
		return false
	}
	t.HandleEvent(ev)
	return true
}

// Tracker returns the live tracker for id.
func (c *Client) Tracker(id uint32) (*Tracker, bool) {
	t, ok := c.trackers[id]
	return t, ok
}

// Trackers returns the live trackers ordered by id.
func (c *Client) Trackers() []*Tracker {
	out := make([]*Tracker, 0, len(c.trackers))
	for _, t := range c.trackers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Target returns the tracked target, or nil.
func (c *Client) Target() *Tracker {
	return c.target
}

func (c *Client) appIDChanged(t *Tracker, appID string) {
	// Match on the event that carries the target id; a later change away
	// from it does not unbind.
	if c.target != nil || appID != c.targetAppID {
		return
	}
	c.setTarget(t)
}

func (c *Client) trackerCommitted(t *Tracker) {
	for _, o := range c.observers {
		o.Committed(t)
	}
}

func (c *Client) trackerClosed(t *Tracker) {
	if c.target == t {
		c.setTarget(nil)
	}
	if c.trackers[t.ID()] == t {
		delete(c.trackers, t.ID())
	}
	if err := t.handle.Destroy(); err != nil {
		logger.WithComponent("toplevel").Warn().
			Err(err).
			Uint32("id", t.ID()).
			Msg("Failed to destroy toplevel handle")
	}
}

func (c *Client) setTarget(t *Tracker) {
	c.target = t
	log := logger.WithComponent("toplevel")
	if t != nil {
		log.Info().Uint32("id", t.ID()).Str("app_id", c.targetAppID).Msg("Target toplevel matched")
	} else {
		log.Info().Str("app_id", c.targetAppID).Msg("Target toplevel cleared")
	}
	if c.affordance != nil {
		c.affordance.SetEnabled(t != nil)
	}
	for _, o := range c.observers {
		o.TargetChanged(t)
	}
}
