package toplevel

// Phase is the lifecycle position of a tracker.
type Phase int

const (
	PhaseAccumulating Phase = iota
	PhaseCommitted
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseAccumulating:
		return "accumulating"
	case PhaseCommitted:
		return "committed"
	case PhaseClosed:
		return "closed"
	}
	return "unknown"
}

// Snapshot is one coherent view of a toplevel's attributes.
type Snapshot struct {
	Title    string
	AppID    string
	HasAppID bool
	States   StateSet
}

// Minimized reports whether the minimized state is set.
func (s Snapshot) Minimized() bool {
	return s.States.Has(StateMinimized)
}

// Tracker follows one remote toplevel. Attribute events land in the pending
// snapshot and are published to Committed on done.
type Tracker struct {
	handle    Handle
	client    *Client
	phase     Phase
	pending   Snapshot
	committed Snapshot
	done      int
}

func newTracker(c *Client, h Handle) *Tracker {
	return &Tracker{
		handle: h,
		client: c,
		phase:  PhaseAccumulating,
	}
}

// ID returns the remote object id.
func (t *Tracker) ID() uint32 {
	return t.handle.ID()
}

// Handle returns the underlying protocol handle.
func (t *Tracker) Handle() Handle {
	return t.handle
}

// Phase returns the lifecycle phase.
func (t *Tracker) Phase() Phase {
	return t.phase
}

// Closed reports whether the tracker reached its terminal phase.
func (t *Tracker) Closed() bool {
	return t.phase == PhaseClosed
}

// Pending returns the attributes accumulated since the last done.
func (t *Tracker) Pending() Snapshot {
	return t.pending
}

// Committed returns the attributes as of the last done.
func (t *Tracker) Committed() Snapshot {
	return t.committed
}

// Commits returns how many done events the tracker has seen.
func (t *Tracker) Commits() int {
	return t.done
}

// HandleEvent applies ev to the tracker. Events after closed are dropped.
func (t *Tracker) HandleEvent(ev Event) {
	if t.phase == PhaseClosed || ev == nil {
		return
	}

	switch e := ev.(type) {
	case TitleEvent:
		t.pending.Title = e.Title
	case AppIDEvent:
		t.pending.AppID = e.AppID
		t.pending.HasAppID = true
		t.client.appIDChanged(t, e.AppID)
	case StateEvent:
		t.pending.States = e.States
	case DoneEvent:
		t.committed = t.pending
		t.phase = PhaseCommitted
		t.done++
		t.client.trackerCommitted(t)
	case ClosedEvent:
		t.phase = PhaseClosed
		t.client.trackerClosed(t)
	case OutputEnterEvent, OutputLeaveEvent, ParentEvent:
		// not tracked
	}
}
