package wayland

import (
	"errors"
	"testing"

	"github.com/neurlang/wayland/wl"

	"github.com/bryanchriswhite/toplevelctl/internal/toplevel"
)

const (
	targetAppID    = "mt-child"
	stateMinimized = 1
)

type fakeProxy struct {
	id        wl.ProxyId
	ops       []string
	seat      *wl.Seat
	surface   *wl.Surface
	rect      [4]int32
	destroyed int
}

func (p *fakeProxy) Id() wl.ProxyId { return p.id }

func (p *fakeProxy) SetMinimized() error {
	p.ops = append(p.ops, "set_minimized")
	return nil
}

func (p *fakeProxy) Activate(seat *wl.Seat) error {
	p.ops = append(p.ops, "activate")
	p.seat = seat
	return nil
}

func (p *fakeProxy) SetRectangle(surface *wl.Surface, x, y, width, height int32) error {
	p.ops = append(p.ops, "set_rectangle")
	p.surface = surface
	p.rect = [4]int32{x, y, width, height}
	return nil
}

func (p *fakeProxy) Close() error {
	p.ops = append(p.ops, "close")
	return nil
}

func (p *fakeProxy) Destroy() error {
	p.destroyed++
	return nil
}

type fakeManagerProxy struct {
	stopped  int
	released int
}

func (m *fakeManagerProxy) Stop() error { m.stopped++; return nil }
func (m *fakeManagerProxy) Release()    { m.released++ }

type fakeBinder struct {
	binds []toplevel.Global
}

func (b *fakeBinder) Bind(g toplevel.Global, version uint32) error {
	g.Version = version
	b.binds = append(b.binds, g)
	return nil
}

func (b *fakeBinder) count(iface string) int {
	n := 0
	for _, g := range b.binds {
		if g.Interface == iface {
			n++
		}
	}
	return n
}

func newTestSession(t *testing.T, max uint32) (*Session, *toplevel.Client, *fakeBinder) {
	t.Helper()
	client := toplevel.NewClient(targetAppID)
	s := newSession(client, Options{Anchor: toplevel.Rect{X: 10, Y: 20, Width: 100, Height: 30}})
	b := &fakeBinder{}
	s.scanner = toplevel.NewScanner(b, toplevel.ManagerInterface, max)
	s.scanner.Want(seatInterface, 1)
	return s, client, b
}

func adoptFake(s *Session, id uint32) (*toplevelHandle, *fakeProxy) {
	p := &fakeProxy{id: wl.ProxyId(id)}
	h := &toplevelHandle{s: s, id: id, proxy: p}
	s.adopt(h)
	return h, p
}

func TestRegistryGlobalsReachScanner(t *testing.T) {
	s, _, b := newTestSession(t, 2)
	l := registryListener{s}

	l.HandleRegistryGlobal(wl.RegistryGlobalEvent{Name: 1, Interface: "unrelated_iface", Version: 1})
	l.HandleRegistryGlobal(wl.RegistryGlobalEvent{Name: 2, Interface: toplevel.ManagerInterface, Version: 3})
	l.HandleRegistryGlobal(wl.RegistryGlobalEvent{Name: 3, Interface: toplevel.ManagerInterface, Version: 3})

	if len(b.binds) != 1 {
		t.Fatalf("binds = %+v, want one", b.binds)
	}
	if b.binds[0].Name != 2 || b.binds[0].Version != 2 {
		t.Errorf("bind = %+v, want name 2 at version 2", b.binds[0])
	}
	if s.pending != nil {
		t.Errorf("pending error = %v", s.pending)
	}
}

func TestToplevelAnnouncementAttachesListeners(t *testing.T) {
	s, client, _ := newTestSession(t, toplevel.ManagerVersion)

	p := new(ZwlrForeignToplevelHandleV1)
	p.SetId(7)
	managerListener{s}.HandleZwlrForeignToplevelManagerV1Toplevel(ZwlrForeignToplevelManagerV1ToplevelEvent{Toplevel: p})

	if _, ok := s.handles[7]; !ok {
		t.Fatalf("handle 7 not recorded")
	}
	if _, ok := client.Tracker(7); !ok {
		t.Fatalf("tracker 7 not created")
	}
	if len(p.privateAppIdHandlers) != 1 || len(p.privateDoneHandlers) != 1 || len(p.privateClosedHandlers) != 1 {
		t.Errorf("listeners not attached to the new handle")
	}
}

func TestHandleEventsCommitOnDone(t *testing.T) {
	s, client, _ := newTestSession(t, toplevel.ManagerVersion)
	h, _ := adoptFake(s, 7)

	h.HandleZwlrForeignToplevelHandleV1Title(ZwlrForeignToplevelHandleV1TitleEvent{Title: "Child"})
	h.HandleZwlrForeignToplevelHandleV1AppId(ZwlrForeignToplevelHandleV1AppIdEvent{AppId: targetAppID})
	h.HandleZwlrForeignToplevelHandleV1State(ZwlrForeignToplevelHandleV1StateEvent{State: []uint32{stateMinimized}})

	target := client.Target()
	if target == nil {
		t.Fatalf("target not matched on app_id")
	}
	if target.Commits() != 0 {
		t.Errorf("committed before done")
	}

	h.HandleZwlrForeignToplevelHandleV1Done(ZwlrForeignToplevelHandleV1DoneEvent{})
	snap := target.Committed()
	if snap.Title != "Child" || !snap.Minimized() {
		t.Errorf("committed snapshot = %+v", snap)
	}
}

func TestClosedToplevelForgetsHandle(t *testing.T) {
	s, client, _ := newTestSession(t, toplevel.ManagerVersion)
	h, p := adoptFake(s, 7)
	h.HandleZwlrForeignToplevelHandleV1AppId(ZwlrForeignToplevelHandleV1AppIdEvent{AppId: targetAppID})

	h.HandleZwlrForeignToplevelHandleV1Closed(ZwlrForeignToplevelHandleV1ClosedEvent{})

	if p.destroyed != 1 {
		t.Errorf("proxy destroyed %d times, want 1", p.destroyed)
	}
	if _, ok := s.handles[7]; ok {
		t.Errorf("destroyed handle still recorded")
	}
	if _, ok := client.Tracker(7); ok || client.Target() != nil {
		t.Errorf("closed toplevel still tracked")
	}
	if err := h.Destroy(); err != nil || p.destroyed != 1 {
		t.Errorf("second Destroy() = %v, destroyed %d times", err, p.destroyed)
	}
	if err := h.SetMinimized(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("SetMinimized() after destroy = %v, want ErrDestroyed", err)
	}
}

func TestReusedIDKeepsNewHandle(t *testing.T) {
	s, client, _ := newTestSession(t, toplevel.ManagerVersion)
	_, oldProxy := adoptFake(s, 7)
	h, newProxy := adoptFake(s, 7)

	if s.handles[7] != h {
		t.Fatalf("handle 7 is not the replacement")
	}
	if oldProxy.destroyed != 0 || newProxy.destroyed != 0 {
		t.Errorf("destroy sent for a reused id: old %d new %d", oldProxy.destroyed, newProxy.destroyed)
	}
	if tr, ok := client.Tracker(7); !ok || tr.Handle() != h {
		t.Errorf("tracker 7 not bound to the replacement handle")
	}
}

func TestManagerGlobalRemoved(t *testing.T) {
	s, client, b := newTestSession(t, toplevel.ManagerVersion)
	l := registryListener{s}

	l.HandleRegistryGlobal(wl.RegistryGlobalEvent{Name: 9, Interface: toplevel.ManagerInterface, Version: 3})
	m := &fakeManagerProxy{}
	s.manager = &managerHandle{proxy: m, version: 3}
	client.BindManager(s.manager)

	l.HandleRegistryGlobalRemove(wl.RegistryGlobalRemoveEvent{Name: 9})
	if !client.Finished() || m.released != 1 {
		t.Errorf("finished = %v, released = %d; want manager released once", client.Finished(), m.released)
	}

	l.HandleRegistryGlobal(wl.RegistryGlobalEvent{Name: 10, Interface: toplevel.ManagerInterface, Version: 3})
	if n := b.count(toplevel.ManagerInterface); n != 1 {
		t.Errorf("manager bound %d times, want 1", n)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if m.stopped != 0 {
		t.Errorf("stop sent to a finished manager")
	}
}

func TestSeatGlobalRemoved(t *testing.T) {
	s, _, _ := newTestSession(t, toplevel.ManagerVersion)
	registryListener{s}.HandleRegistryGlobal(wl.RegistryGlobalEvent{Name: 4, Interface: seatInterface, Version: 7})
	s.seat = new(wl.Seat)
	s.seat.SetId(3)

	registryListener{s}.HandleRegistryGlobalRemove(wl.RegistryGlobalRemoveEvent{Name: 4})
	if _, ok := s.DefaultSeat(); ok {
		t.Errorf("DefaultSeat() still reports a removed seat")
	}
}

func TestRequestsUseSessionObjects(t *testing.T) {
	s, _, _ := newTestSession(t, toplevel.ManagerVersion)
	h, p := adoptFake(s, 7)

	if err := h.Activate(3); !errors.Is(err, ErrUnknownObject) {
		t.Errorf("Activate() without a seat = %v, want ErrUnknownObject", err)
	}

	s.seat = new(wl.Seat)
	s.seat.SetId(3)
	s.surface = new(wl.Surface)
	s.surface.SetId(12)

	seat, ok := s.DefaultSeat()
	if !ok || seat != 3 {
		t.Fatalf("DefaultSeat() = %d, %v", seat, ok)
	}
	if err := h.Activate(seat); err != nil || p.seat != s.seat {
		t.Errorf("Activate() = %v, seat %p; want bound seat", err, p.seat)
	}

	surface, anchor, ok := s.Anchor()
	if !ok || surface != 12 || anchor.X != 10 {
		t.Fatalf("Anchor() = %d, %+v, %v", surface, anchor, ok)
	}
	r := toplevel.VisualRectangle(anchor, 90)
	if err := h.SetRectangle(surface, r); err != nil {
		t.Fatalf("SetRectangle() error = %v", err)
	}
	if p.surface != s.surface || p.rect != [4]int32{10, 20, 90, 1} {
		t.Errorf("set_rectangle surface %p rect %v", p.surface, p.rect)
	}
	if err := h.SetRectangle(99, r); !errors.Is(err, ErrUnknownObject) {
		t.Errorf("SetRectangle() on foreign surface = %v, want ErrUnknownObject", err)
	}
}

func TestLiveEventsQueuedForManagerLoop(t *testing.T) {
	s, client, _ := newTestSession(t, toplevel.ManagerVersion)
	h, _ := adoptFake(s, 7)
	s.live = true

	h.HandleZwlrForeignToplevelHandleV1AppId(ZwlrForeignToplevelHandleV1AppIdEvent{AppId: targetAppID})
	if client.Target() != nil {
		t.Fatalf("event applied on the dispatch goroutine")
	}

	fn := <-s.Events()
	if err := fn(); err != nil {
		t.Fatalf("queued event error = %v", err)
	}
	if client.Target() == nil {
		t.Errorf("queued app_id did not match the target")
	}
}

func TestDisplayErrorFailsRoundtrip(t *testing.T) {
	s, _, _ := newTestSession(t, toplevel.ManagerVersion)

	displayListener{s}.HandleDisplayError(wl.DisplayErrorEvent{Code: 1, Message: "invalid object"})

	var perr *ProtocolError
	if !errors.As(s.pending, &perr) || perr.Code != 1 || perr.Message != "invalid object" {
		t.Fatalf("pending = %v, want protocol error", s.pending)
	}
}

func TestCloseStopsManager(t *testing.T) {
	s, client, _ := newTestSession(t, toplevel.ManagerVersion)
	m := &fakeManagerProxy{}
	s.manager = &managerHandle{proxy: m, version: 3}
	client.BindManager(s.manager)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if m.stopped != 1 {
		t.Errorf("manager stopped %d times, want 1", m.stopped)
	}

	// Posting after close must not block.
	s.live = true
	s.post(func() error { return nil })
}
