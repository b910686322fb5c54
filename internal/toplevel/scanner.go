package toplevel

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/toplevelctl/internal/logger"
)

const (
	// ManagerInterface is the wlr foreign toplevel management global.
	ManagerInterface = "zwlr_foreign_toplevel_manager_v1"
	// ManagerVersion is the highest manager version this client speaks.
	ManagerVersion uint32 = 3
)

// ErrCapabilityMissing means discovery finished without the required global.
var ErrCapabilityMissing = errors.New("compositor does not advertise " + ManagerInterface)

// Global is one registry announcement.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Binder binds a global chosen by the scanner at the negotiated version.
type Binder interface {
	Bind(g Global, version uint32) error
}

// Roundtripper blocks until the server has processed every request sent so
// far and all resulting events have been dispatched.
type Roundtripper interface {
	Roundtrip() error
}

// NegotiateVersion returns min(advertised, supported).
func NegotiateVersion(advertised, supported uint32) uint32 {
	if advertised < supported {
		return advertised
	}
	return supported
}

// Scanner picks globals out of registry announcements and binds them.
type Scanner struct {
	binder    Binder
	required  string
	wants     map[string]uint32
	bound     map[string]Global
	retired   bool
	announced bool
}

// NewScanner creates a scanner that requires the interface named required at
// up to version max.
func NewScanner(b Binder, required string, max uint32) *Scanner {
	s := &Scanner{
		binder:   b,
		required: required,
		wants:    map[string]uint32{required: max},
		bound:    make(map[string]Global),
	}
	return s
}

// Want asks the scanner to also bind the first global of iface. Optional
// interfaces do not affect ErrCapabilityMissing.
func (s *Scanner) Want(iface string, max uint32) {
	s.wants[iface] = max
}

// HandleGlobal processes one announcement, binding it before returning when
// it is wanted and not yet bound.
func (s *Scanner) HandleGlobal(g Global) error {
	s.announced = true

	max, ok := s.wants[g.Interface]
	if !ok {
		return nil
	}
	if _, done := s.bound[g.Interface]; done {
		return nil
	}
	if g.Interface == s.required && s.retired {
		return nil
	}

	version := NegotiateVersion(g.Version, max)
	if err := s.binder.Bind(g, version); err != nil {
		return fmt.Errorf("bind %s (name %d): %w", g.Interface, g.Name, err)
	}
	g.Version = version
	s.bound[g.Interface] = g

	logger.WithComponent("registry").Debug().
		Str("interface", g.Interface).
		Uint32("name", g.Name).
		Uint32("version", version).
		Msg("Bound global")
	return nil
}

// HandleGlobalRemove processes a removal. It returns the bound global when
// name was one of ours. Once the required global is removed it is never
// bound again: the client releases its manager and stays finished.
func (s *Scanner) HandleGlobalRemove(name uint32) (Global, bool) {
	for iface, g := range s.bound {
		if g.Name == name {
			delete(s.bound, iface)
			if iface == s.required {
				s.retired = true
			}
			return g, true
		}
	}
	return Global{}, false
}

// Bound returns the global bound for iface, with the negotiated version.
func (s *Scanner) Bound(iface string) (Global, bool) {
	g, ok := s.bound[iface]
	return g, ok
}

// Discover round-trips until a full pass delivers no new announcement, then
// checks that the required interface was bound.
func (s *Scanner) Discover(rt Roundtripper) error {
	for {
		s.announced = false
		if err := rt.Roundtrip(); err != nil {
			return fmt.Errorf("registry roundtrip: %w", err)
		}
		if !s.announced {
			break
		}
	}

	if _, ok := s.bound[s.required]; !ok {
		return ErrCapabilityMissing
	}
	return nil
}
