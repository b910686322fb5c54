package window

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/toplevelctl/internal/toplevel"
)

type fakeHandle struct {
	id uint32

	mu  sync.Mutex
	ops []string
}

func (h *fakeHandle) record(op string) error {
	h.mu.Lock()
	h.ops = append(h.ops, op)
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.ops...)
}

func (h *fakeHandle) ID() uint32                                          { return h.id }
func (h *fakeHandle) SetMinimized() error                                 { return h.record("set_minimized") }
func (h *fakeHandle) Activate(toplevel.ObjectID) error                    { return h.record("activate") }
func (h *fakeHandle) SetRectangle(toplevel.ObjectID, toplevel.Rect) error { return h.record("set_rectangle") }
func (h *fakeHandle) Close() error                                        { return h.record("close") }
func (h *fakeHandle) Destroy() error                                      { return nil }

type fakeBackend struct {
	client  *toplevel.Client
	events  chan func() error
	handles map[uint32]*fakeHandle

	mu     sync.Mutex
	closed bool
	anchor toplevel.Rect
	width  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		events:  make(chan func() error, 16),
		handles: make(map[uint32]*fakeHandle),
	}
}

// add announces a toplevel and commits its attributes. Call it on the loop
// goroutine or before the loop starts.
func (b *fakeBackend) add(id uint32, appID string, states ...toplevel.State) {
	h := &fakeHandle{id: id}
	b.handles[id] = h
	b.client.HandleNewToplevel(h)
	b.client.Dispatch(id, toplevel.AppIDEvent{AppID: appID})
	b.client.Dispatch(id, toplevel.StateEvent{States: toplevel.NewStateSet(states...)})
	b.client.Dispatch(id, toplevel.DoneEvent{})
}

func (b *fakeBackend) post(fn func()) {
	b.events <- func() error { fn(); return nil }
}

func (b *fakeBackend) Anchor() (toplevel.ObjectID, toplevel.Rect, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return 1, b.anchor, true
}
func (b *fakeBackend) DefaultSeat() (toplevel.ObjectID, bool) { return 2, true }
func (b *fakeBackend) RectWidth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width
}
func (b *fakeBackend) Name() string                { return "fake" }
func (b *fakeBackend) Events() <-chan func() error { return b.events }
func (b *fakeBackend) SetGeometry(r toplevel.Rect, w int) {
	b.mu.Lock()
	b.anchor, b.width = r, w
	b.mu.Unlock()
}
func (b *fakeBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func startManager(t *testing.T, setup func(b *fakeBackend)) (*Manager, *fakeBackend) {
	t.Helper()
	b := newFakeBackend()
	m := NewManager("mt-child", func(c *toplevel.Client) (Backend, error) {
		b.client = c
		if setup != nil {
			setup(b)
		}
		return b, nil
	})
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(m.Stop)
	return m, b
}

func waitStatus(t *testing.T, ch chan Status, cond func(Status) bool) Status {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch:
			if cond(s) {
				return s
			}
		case <-timeout:
			t.Fatalf("timed out waiting for status")
		}
	}
}

func TestStartTracksExistingTarget(t *testing.T) {
	m, b := startManager(t, func(b *fakeBackend) {
		b.add(10, "foot")
		b.add(11, "mt-child", toplevel.StateMinimized)
	})

	s := m.Status()
	if !s.Tracked || !s.Enabled || s.ID != 11 || !s.Minimized || s.Backend != "fake" {
		t.Fatalf("Status() = %+v", s)
	}

	action, err := m.Toggle(context.Background())
	if err != nil || action != toplevel.ActionActivate {
		t.Fatalf("Toggle() = %v, %v; want activate", action, err)
	}
	if got := b.handles[11].calls(); len(got) != 1 || got[0] != "activate" {
		t.Errorf("target calls = %v", got)
	}
	if got := b.handles[10].calls(); len(got) != 0 {
		t.Errorf("non-target calls = %v", got)
	}
}

func TestTargetAppearsLater(t *testing.T) {
	m, b := startManager(t, nil)
	if m.Status().Tracked || m.Status().Enabled {
		t.Fatalf("tracked before any toplevel exists")
	}

	ch := m.Subscribe()
	defer m.Unsubscribe(ch)
	b.post(func() { b.add(5, "mt-child") })

	s := waitStatus(t, ch, func(s Status) bool { return s.Tracked })
	if s.ID != 5 || !s.Enabled {
		t.Errorf("status = %+v", s)
	}

	action, err := m.Trigger(context.Background())
	if err != nil || action != toplevel.ActionMinimize {
		t.Fatalf("Trigger() = %v, %v; want minimize", action, err)
	}
	got := b.handles[5].calls()
	if len(got) != 2 || got[0] != "set_rectangle" || got[1] != "set_minimized" {
		t.Errorf("calls = %v", got)
	}
}

func TestWaitCommittedWaitsForDone(t *testing.T) {
	m, b := startManager(t, nil)

	ch := m.Subscribe()
	defer m.Unsubscribe(ch)
	b.post(func() {
		h := &fakeHandle{id: 6}
		b.handles[6] = h
		b.client.HandleNewToplevel(h)
		b.client.Dispatch(6, toplevel.AppIDEvent{AppID: "mt-child"})
		b.client.Dispatch(6, toplevel.StateEvent{States: toplevel.NewStateSet(toplevel.StateMinimized)})
	})
	s := waitStatus(t, ch, func(s Status) bool { return s.Tracked })
	if s.Committed || s.Minimized {
		t.Fatalf("status before done = %+v, want tracked but uncommitted", s)
	}

	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := m.WaitCommitted(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitCommitted() before done = %v, want deadline exceeded", err)
	}

	result := make(chan Status, 1)
	go func() {
		st, err := m.WaitCommitted(context.Background())
		if err != nil {
			t.Errorf("WaitCommitted() error = %v", err)
		}
		result <- st
	}()
	b.post(func() { b.client.Dispatch(6, toplevel.DoneEvent{}) })

	select {
	case st := <-result:
		if !st.Committed || !st.Minimized || st.ID != 6 {
			t.Errorf("committed status = %+v", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("WaitCommitted() did not return after done")
	}

	action, err := m.Toggle(context.Background())
	if err != nil || action != toplevel.ActionActivate {
		t.Errorf("Toggle() = %v, %v; want activate from the committed state", action, err)
	}
}

func TestWaitCommittedStopsWithManager(t *testing.T) {
	m, _ := startManager(t, nil)
	go m.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := m.WaitCommitted(ctx); !errors.Is(err, ErrNotRunning) {
		t.Errorf("WaitCommitted() after stop = %v, want ErrNotRunning", err)
	}
}

func TestTargetClosedDisables(t *testing.T) {
	m, b := startManager(t, func(b *fakeBackend) { b.add(3, "mt-child") })
	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	b.post(func() { b.client.Dispatch(3, toplevel.ClosedEvent{}) })
	s := waitStatus(t, ch, func(s Status) bool { return !s.Tracked })
	if s.Enabled {
		t.Errorf("still enabled after close: %+v", s)
	}

	action, err := m.Toggle(context.Background())
	if err != nil || action != toplevel.ActionNone {
		t.Errorf("Toggle() after close = %v, %v", action, err)
	}
}

func TestList(t *testing.T) {
	m, _ := startManager(t, func(b *fakeBackend) {
		b.add(8, "mt-child", toplevel.StateActivated)
		b.add(2, "foot")
	})

	list, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != 2 || list[1].ID != 8 {
		t.Fatalf("List() = %+v", list)
	}
	if list[0].Target || !list[1].Target {
		t.Errorf("target flags wrong: %+v", list)
	}
	if len(list[1].States) != 1 || list[1].States[0] != "activated" {
		t.Errorf("states = %v", list[1].States)
	}
	if list[0].Phase != "committed" {
		t.Errorf("phase = %q", list[0].Phase)
	}
}

func TestSetTargetAppID(t *testing.T) {
	m, _ := startManager(t, func(b *fakeBackend) {
		b.add(1, "mt-child")
		b.add(2, "editor")
	})

	if err := m.SetTargetAppID(context.Background(), "editor"); err != nil {
		t.Fatalf("SetTargetAppID() error = %v", err)
	}
	s := m.Status()
	if s.ID != 2 || s.TargetAppID != "editor" {
		t.Errorf("Status() = %+v", s)
	}
}

func TestSetGeometry(t *testing.T) {
	m, b := startManager(t, nil)
	r := toplevel.Rect{X: 1, Y: 2, Width: 3, Height: 4}
	if err := m.SetGeometry(context.Background(), r, 99); err != nil {
		t.Fatalf("SetGeometry() error = %v", err)
	}
	if _, got, _ := b.Anchor(); got != r || b.RectWidth() != 99 {
		t.Errorf("geometry not applied: %+v %d", got, b.RectWidth())
	}
}

func TestBackendErrorStopsLoop(t *testing.T) {
	m, b := startManager(t, nil)
	boom := errors.New("connection reset")
	b.events <- func() error { return boom }

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop")
	}
	if !errors.Is(m.Err(), boom) {
		t.Errorf("Err() = %v, want %v", m.Err(), boom)
	}
	if _, err := m.Toggle(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Toggle() after failure error = %v, want ErrNotRunning", err)
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if !closed {
		t.Errorf("backend not closed")
	}
}

func TestClosedEventStream(t *testing.T) {
	m, b := startManager(t, nil)
	close(b.events)
	<-m.Done()
	if !errors.Is(m.Err(), ErrBackendClosed) {
		t.Errorf("Err() = %v, want ErrBackendClosed", m.Err())
	}
}

func TestStartOpenFailure(t *testing.T) {
	boom := errors.New("no compositor")
	m := NewManager("mt-child", func(*toplevel.Client) (Backend, error) { return nil, boom })
	if err := m.Start(); !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want %v", err, boom)
	}
}

func TestDoHonorsContext(t *testing.T) {
	m, b := startManager(t, nil)
	block := make(chan struct{})
	started := make(chan struct{})
	b.post(func() { close(started); <-block })
	defer close(block)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Do(ctx, func() error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want deadline exceeded", err)
	}
}

func TestResolveKind(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	tests := []struct {
		name    string
		kind    string
		vars    map[string]string
		want    string
		wantErr bool
	}{
		{"explicit x11", BackendX11, nil, BackendX11, false},
		{"auto wayland", BackendAuto, map[string]string{"WAYLAND_DISPLAY": "wayland-1", "DISPLAY": ":0"}, BackendWayland, false},
		{"auto socket", "", map[string]string{"WAYLAND_SOCKET": "5"}, BackendWayland, false},
		{"auto x11", BackendAuto, map[string]string{"DISPLAY": ":0"}, BackendX11, false},
		{"auto nothing", BackendAuto, nil, "", true},
		{"unknown", "mir", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveKind(tt.kind, env(tt.vars))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveKind() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveKind() = %q, want %q", got, tt.want)
			}
		})
	}
}
