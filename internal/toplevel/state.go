package toplevel

import "strings"

// State is a zwlr_foreign_toplevel_handle_v1 state enum value.
type State uint32

const (
	StateMaximized  State = 0
	StateMinimized  State = 1
	StateActivated  State = 2
	StateFullscreen State = 3
)

var stateNames = [...]string{
	StateMaximized:  "maximized",
	StateMinimized:  "minimized",
	StateActivated:  "activated",
	StateFullscreen: "fullscreen",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// StateSet is the decoded form of a state array event.
type StateSet uint8

// NewStateSet builds a set from individual states. Unknown values are dropped.
func NewStateSet(states ...State) StateSet {
	var set StateSet
	for _, s := range states {
		if int(s) < len(stateNames) {
			set |= 1 << s
		}
	}
	return set
}

// DecodeStates converts the raw uint32 array carried by a state event into a
// set. Values the protocol may add later are ignored.
func DecodeStates(raw []uint32) StateSet {
	var set StateSet
	for _, v := range raw {
		if int(v) < len(stateNames) {
			set |= 1 << v
		}
	}
	return set
}

// Has reports whether st is a member of the set.
func (s StateSet) Has(st State) bool {
	if int(st) >= len(stateNames) {
		return false
	}
	return s&(1<<st) != 0
}

// With returns the set with st added.
func (s StateSet) With(st State) StateSet {
	return s | NewStateSet(st)
}

// Without returns the set with st removed.
func (s StateSet) Without(st State) StateSet {
	return s &^ NewStateSet(st)
}

// States lists the members in enum order.
func (s StateSet) States() []State {
	out := make([]State, 0, len(stateNames))
	for i := range stateNames {
		if s.Has(State(i)) {
			out = append(out, State(i))
		}
	}
	return out
}

// Names lists the members by name in enum order.
func (s StateSet) Names() []string {
	states := s.States()
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = st.String()
	}
	return names
}

func (s StateSet) String() string {
	if s == 0 {
		return "none"
	}
	return strings.Join(s.Names(), "|")
}
