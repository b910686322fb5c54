package wayland

import (
	"errors"
	"fmt"
	"sync"

	"github.com/neurlang/wayland/wl"
	"github.com/neurlang/wayland/wlclient"

	"github.com/bryanchriswhite/toplevelctl/internal/logger"
	"github.com/bryanchriswhite/toplevelctl/internal/toplevel"
)

const (
	seatInterface       = "wl_seat"
	compositorInterface = "wl_compositor"

	eventBuffer = 64
)

var (
	// ErrDestroyed is returned for requests on a destroyed handle.
	ErrDestroyed = errors.New("toplevel handle already destroyed")
	// ErrUnknownObject is returned when a request names a seat or surface
	// this session does not hold.
	ErrUnknownObject = errors.New("object not bound by this session")
)

// ProtocolError is a wl_display.error event. It is fatal to the connection.
type ProtocolError struct {
	Object  uint32
	Code    uint32
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wayland protocol error on object %d (code %d): %s", e.Object, e.Code, e.Message)
}

// Options configures a Session.
type Options struct {
	// MaxManagerVersion caps the negotiated manager version. Zero means
	// toplevel.ManagerVersion.
	MaxManagerVersion uint32
	// Anchor is where the anchor surface sits on screen.
	Anchor toplevel.Rect
	// RectWidth overrides the anchor width in visual rectangles.
	RectWidth int
}

// Session is a connected Wayland client with the toplevel manager bound. It
// serves as the command environment: the first seat and an anchor surface
// created from wl_compositor.
//
// Until Open returns, library callbacks run on the caller's goroutine and
// are applied directly. Afterwards the dispatch goroutine only decodes; the
// work reaches the client through Events.
type Session struct {
	display  *wl.Display
	registry *wl.Registry
	scanner  *toplevel.Scanner
	client   *toplevel.Client

	manager *managerHandle
	handles map[uint32]*toplevelHandle
	seat    *wl.Seat
	surface *wl.Surface

	anchor    toplevel.Rect
	rectWidth int

	live      bool
	pending   error
	events    chan func() error
	closing   chan struct{}
	closeOnce sync.Once
}

func newSession(client *toplevel.Client, opts Options) *Session {
	return &Session{
		client:    client,
		handles:   make(map[uint32]*toplevelHandle),
		anchor:    opts.Anchor,
		rectWidth: opts.RectWidth,
		events:    make(chan func() error, eventBuffer),
		closing:   make(chan struct{}),
	}
}

// Open connects to the compositor named by the environment and runs
// discovery. Every toplevel that exists at connect time has been reported
// to client when Open returns.
func Open(client *toplevel.Client, opts Options) (*Session, error) {
	log := logger.WithComponent("wayland")

	maxVersion := opts.MaxManagerVersion
	if maxVersion == 0 || maxVersion > toplevel.ManagerVersion {
		maxVersion = toplevel.ManagerVersion
	}

	display, err := wl.Connect("")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to wayland display: %w", err)
	}

	s := newSession(client, opts)
	s.display = display
	display.AddErrorHandler(displayListener{s})

	s.registry, err = display.GetRegistry()
	if err != nil {
		display.Context().Close()
		return nil, fmt.Errorf("get registry: %w", err)
	}
	s.registry.AddGlobalHandler(registryListener{s})
	s.registry.AddGlobalRemoveHandler(registryListener{s})

	s.scanner = toplevel.NewScanner(s, toplevel.ManagerInterface, maxVersion)
	s.scanner.Want(seatInterface, 1)
	s.scanner.Want(compositorInterface, 1)

	if err := s.scanner.Discover(s); err != nil {
		display.Context().Close()
		return nil, err
	}

	log.Info().
		Uint32("manager_version", s.manager.version).
		Bool("seat", s.seat != nil).
		Bool("anchor_surface", s.surface != nil).
		Int("toplevels", len(client.Trackers())).
		Msg("Foreign toplevel manager bound")

	s.live = true
	go s.run()
	return s, nil
}

func (s *Session) run() {
	defer close(s.events)
	for {
		if err := s.display.Context().Run(); err != nil {
			select {
			case <-s.closing:
			case s.events <- func() error { return fmt.Errorf("wayland dispatch: %w", err) }:
			}
			return
		}
	}
}

// post applies fn now during discovery and queues it on Events afterwards.
// It is only called from library callbacks.
func (s *Session) post(fn func() error) {
	if !s.live {
		if err := fn(); err != nil && s.pending == nil {
			s.pending = err
		}
		return
	}
	select {
	case s.events <- fn:
	case <-s.closing:
	}
}

// Roundtrip implements toplevel.Roundtripper. An error raised by a callback
// during the roundtrip is returned here.
func (s *Session) Roundtrip() error {
	if err := wlclient.DisplayRoundtrip(s.display); err != nil {
		return err
	}
	err := s.pending
	s.pending = nil
	return err
}

// Bind implements toplevel.Binder. Listeners are attached before the bind
// request is sent.
func (s *Session) Bind(g toplevel.Global, version uint32) error {
	ctx := s.display.Context()

	switch g.Interface {
	case toplevel.ManagerInterface:
		m := NewZwlrForeignToplevelManagerV1(ctx)
		m.AddToplevelHandler(managerListener{s})
		m.AddFinishedHandler(managerListener{s})
		if err := s.registry.Bind(g.Name, g.Interface, version, m); err != nil {
			ctx.Unregister(m.Id())
			return err
		}
		s.manager = &managerHandle{proxy: m, version: version}
		s.client.BindManager(s.manager)

	case seatInterface:
		seat := wl.NewSeat(ctx)
		if err := s.registry.Bind(g.Name, g.Interface, version, seat); err != nil {
			ctx.Unregister(seat.Id())
			return err
		}
		s.seat = seat

	case compositorInterface:
		compositor := wl.NewCompositor(ctx)
		if err := s.registry.Bind(g.Name, g.Interface, version, compositor); err != nil {
			ctx.Unregister(compositor.Id())
			return err
		}
		surface, err := compositor.CreateSurface()
		if err != nil {
			logger.WithComponent("wayland").Warn().Err(err).Msg("Failed to create anchor surface")
			return nil
		}
		s.surface = surface

	default:
		return fmt.Errorf("no proxy for %s", g.Interface)
	}
	return nil
}

// adopt records a newly announced handle and reports it to the client.
// A stale handle with the same id no longer owns it, so destroying it must
// not send a request for the new object.
func (s *Session) adopt(h *toplevelHandle) {
	if old, ok := s.handles[h.id]; ok && old != h {
		old.destroyed = true
	}
	s.handles[h.id] = h
	s.client.HandleNewToplevel(h)
}

func (s *Session) globalRemoved(g toplevel.Global) {
	logger.WithComponent("registry").Warn().
		Str("interface", g.Interface).
		Uint32("name", g.Name).
		Msg("Bound global removed")

	switch g.Interface {
	case toplevel.ManagerInterface:
		// The scanner never rebinds the manager, so this client is done.
		s.client.HandleFinished()
	case seatInterface:
		s.seat = nil
	}
}

// Name identifies the backend.
func (s *Session) Name() string {
	return "wayland"
}

// Events delivers decoded protocol events for dispatch on the manager loop.
// The channel is closed when the connection ends.
func (s *Session) Events() <-chan func() error {
	return s.events
}

// Anchor implements toplevel.Environment.
func (s *Session) Anchor() (toplevel.ObjectID, toplevel.Rect, bool) {
	if s.surface == nil {
		return 0, toplevel.Rect{}, false
	}
	return toplevel.ObjectID(s.surface.Id()), s.anchor, true
}

// DefaultSeat implements toplevel.Environment.
func (s *Session) DefaultSeat() (toplevel.ObjectID, bool) {
	if s.seat == nil {
		return 0, false
	}
	return toplevel.ObjectID(s.seat.Id()), true
}

// RectWidth implements toplevel.Environment.
func (s *Session) RectWidth() int {
	return s.rectWidth
}

// SetGeometry updates the anchor rectangle and width override.
func (s *Session) SetGeometry(anchor toplevel.Rect, rectWidth int) {
	s.anchor = anchor
	s.rectWidth = rectWidth
}

// Close stops the manager and closes the connection.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		if s.manager != nil && !s.client.Finished() {
			if err := s.manager.proxy.Stop(); err != nil {
				logger.WithComponent("wayland").Debug().Err(err).Msg("Failed to stop manager")
			}
		}
		if s.surface != nil {
			_ = s.surface.Destroy()
		}
		if s.display != nil {
			err = s.display.Context().Close()
		}
	})
	return err
}

// managerHandle implements toplevel.ManagerHandle.
type managerHandle struct {
	proxy    releaser
	version  uint32
	released bool
}

type releaser interface {
	Stop() error
	Release()
}

// Release implements toplevel.ManagerHandle.
func (m *managerHandle) Release() {
	if m.released {
		return
	}
	m.released = true
	m.proxy.Release()
}

// handleProxy is the request side of zwlr_foreign_toplevel_handle_v1.
type handleProxy interface {
	Id() wl.ProxyId
	SetMinimized() error
	Activate(seat *wl.Seat) error
	SetRectangle(surface *wl.Surface, x, y, width, height int32) error
	Close() error
	Destroy() error
}

// toplevelHandle implements toplevel.Handle on top of the protocol proxy.
type toplevelHandle struct {
	s         *Session
	id        uint32
	proxy     handleProxy
	destroyed bool
}

// ID implements toplevel.Handle.
func (h *toplevelHandle) ID() uint32 {
	return h.id
}

// SetMinimized implements toplevel.Handle.
func (h *toplevelHandle) SetMinimized() error {
	if h.destroyed {
		return ErrDestroyed
	}
	return h.proxy.SetMinimized()
}

// Activate implements toplevel.Handle.
func (h *toplevelHandle) Activate(seat toplevel.ObjectID) error {
	if h.destroyed {
		return ErrDestroyed
	}
	if h.s.seat == nil || toplevel.ObjectID(h.s.seat.Id()) != seat {
		return fmt.Errorf("activate with seat %d: %w", seat, ErrUnknownObject)
	}
	return h.proxy.Activate(h.s.seat)
}

// SetRectangle implements toplevel.Handle.
func (h *toplevelHandle) SetRectangle(surface toplevel.ObjectID, r toplevel.Rect) error {
	if h.destroyed {
		return ErrDestroyed
	}
	if h.s.surface == nil || toplevel.ObjectID(h.s.surface.Id()) != surface {
		return fmt.Errorf("set_rectangle on surface %d: %w", surface, ErrUnknownObject)
	}
	return h.proxy.SetRectangle(h.s.surface, int32(r.X), int32(r.Y), int32(r.Width), int32(r.Height))
}

// Close implements toplevel.Handle.
func (h *toplevelHandle) Close() error {
	if h.destroyed {
		return ErrDestroyed
	}
	return h.proxy.Close()
}

// Destroy implements toplevel.Handle. The proxy leaves both the library's
// object table and the session's handle set.
func (h *toplevelHandle) Destroy() error {
	if h.destroyed {
		return nil
	}
	h.destroyed = true
	if h.s.handles[h.id] == h {
		delete(h.s.handles, h.id)
	}
	return h.proxy.Destroy()
}

func (h *toplevelHandle) dispatch(ev toplevel.Event) {
	h.s.post(func() error {
		h.s.client.Dispatch(h.id, ev)
		return nil
	})
}

func (h *toplevelHandle) HandleZwlrForeignToplevelHandleV1Title(e ZwlrForeignToplevelHandleV1TitleEvent) {
	h.dispatch(toplevel.TitleEvent{Title: e.Title})
}

func (h *toplevelHandle) HandleZwlrForeignToplevelHandleV1AppId(e ZwlrForeignToplevelHandleV1AppIdEvent) {
	h.dispatch(toplevel.AppIDEvent{AppID: e.AppId})
}

func (h *toplevelHandle) HandleZwlrForeignToplevelHandleV1OutputEnter(e ZwlrForeignToplevelHandleV1OutputEnterEvent) {
	h.dispatch(toplevel.OutputEnterEvent{Output: uint32(e.Output)})
}

func (h *toplevelHandle) HandleZwlrForeignToplevelHandleV1OutputLeave(e ZwlrForeignToplevelHandleV1OutputLeaveEvent) {
	h.dispatch(toplevel.OutputLeaveEvent{Output: uint32(e.Output)})
}

func (h *toplevelHandle) HandleZwlrForeignToplevelHandleV1State(e ZwlrForeignToplevelHandleV1StateEvent) {
	h.dispatch(toplevel.StateEvent{States: toplevel.DecodeStates(e.State)})
}

func (h *toplevelHandle) HandleZwlrForeignToplevelHandleV1Done(ZwlrForeignToplevelHandleV1DoneEvent) {
	h.dispatch(toplevel.DoneEvent{})
}

func (h *toplevelHandle) HandleZwlrForeignToplevelHandleV1Closed(ZwlrForeignToplevelHandleV1ClosedEvent) {
	h.dispatch(toplevel.ClosedEvent{})
}

func (h *toplevelHandle) HandleZwlrForeignToplevelHandleV1Parent(e ZwlrForeignToplevelHandleV1ParentEvent) {
	h.dispatch(toplevel.ParentEvent{Parent: uint32(e.Parent)})
}

type displayListener struct {
	s *Session
}

func (l displayListener) HandleDisplayError(e wl.DisplayErrorEvent) {
	perr := &ProtocolError{Code: e.Code, Message: e.Message}
	if e.ObjectId != nil {
		perr.Object = uint32(e.ObjectId.Id())
	}
	l.s.post(func() error { return perr })
}

type registryListener struct {
	s *Session
}

func (l registryListener) HandleRegistryGlobal(e wl.RegistryGlobalEvent) {
	g := toplevel.Global{Name: e.Name, Interface: e.Interface, Version: e.Version}
	l.s.post(func() error {
		return l.s.scanner.HandleGlobal(g)
	})
}

func (l registryListener) HandleRegistryGlobalRemove(e wl.RegistryGlobalRemoveEvent) {
	name := e.Name
	l.s.post(func() error {
		if g, ok := l.s.scanner.HandleGlobalRemove(name); ok {
			l.s.globalRemoved(g)
		}
		return nil
	})
}

type managerListener struct {
	s *Session
}

// HandleZwlrForeignToplevelManagerV1Toplevel attaches listeners right away,
// on the dispatch goroutine, so the handle's first events are not lost.
func (l managerListener) HandleZwlrForeignToplevelManagerV1Toplevel(e ZwlrForeignToplevelManagerV1ToplevelEvent) {
	p := e.Toplevel
	h := &toplevelHandle{s: l.s, id: uint32(p.Id()), proxy: p}
	p.AddTitleHandler(h)
	p.AddAppIdHandler(h)
	p.AddOutputEnterHandler(h)
	p.AddOutputLeaveHandler(h)
	p.AddStateHandler(h)
	p.AddDoneHandler(h)
	p.AddClosedHandler(h)
	p.AddParentHandler(h)
	l.s.post(func() error {
		l.s.adopt(h)
		return nil
	})
}

func (l managerListener) HandleZwlrForeignToplevelManagerV1Finished(ZwlrForeignToplevelManagerV1FinishedEvent) {
	l.s.post(func() error {
		l.s.client.HandleFinished()
		return nil
	})
}
