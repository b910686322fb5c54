package toplevel

// Event is one notification addressed to a toplevel handle. The protocol
// adapter decodes wire messages into these values; trackers never see raw
// payloads.
type Event interface {
	isEvent()
}

// TitleEvent carries a new window title.
type TitleEvent struct {
	Title string
}

// AppIDEvent carries the application identifier.
type AppIDEvent struct {
	AppID string
}

// OutputEnterEvent reports the toplevel became visible on an output.
type OutputEnterEvent struct {
	Output uint32
}

// OutputLeaveEvent reports the toplevel stopped being visible on an output.
type OutputLeaveEvent struct {
	Output uint32
}

// StateEvent replaces the toplevel's state set.
type StateEvent struct {
	States StateSet
}

// DoneEvent marks the accumulated attributes as a consistent snapshot.
type DoneEvent struct{}

// ClosedEvent reports the remote toplevel is gone.
type ClosedEvent struct{}

// ParentEvent reports the parent toplevel; 0 means none.
type ParentEvent struct {
	Parent uint32
}

func (TitleEvent) isEvent()       {}
func (AppIDEvent) isEvent()       {}
func (OutputEnterEvent) isEvent() {}
func (OutputLeaveEvent) isEvent() {}
func (StateEvent) isEvent()       {}
func (DoneEvent) isEvent()        {}
func (ClosedEvent) isEvent()      {}
func (ParentEvent) isEvent()      {}
