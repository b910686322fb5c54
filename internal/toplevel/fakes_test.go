package toplevel

import "errors"

type call struct {
	op      string
	seat    ObjectID
	surface ObjectID
	rect    Rect
}

type fakeHandle struct {
	id        uint32
	calls     []call
	destroyed int
	err       error
}

func newFakeHandle(id uint32) *fakeHandle {
	return &fakeHandle{id: id}
}

func (h *fakeHandle) ID() uint32 { return h.id }

func (h *fakeHandle) SetMinimized() error {
	h.calls = append(h.calls, call{op: "set_minimized"})
	return h.err
}

func (h *fakeHandle) Activate(seat ObjectID) error {
	h.calls = append(h.calls, call{op: "activate", seat: seat})
	return h.err
}

func (h *fakeHandle) SetRectangle(surface ObjectID, r Rect) error {
	h.calls = append(h.calls, call{op: "set_rectangle", surface: surface, rect: r})
	return h.err
}

func (h *fakeHandle) Close() error {
	h.calls = append(h.calls, call{op: "close"})
	return h.err
}

func (h *fakeHandle) Destroy() error {
	h.destroyed++
	return nil
}

func (h *fakeHandle) ops() []string {
	out := make([]string, len(h.calls))
	for i, c := range h.calls {
		out[i] = c.op
	}
	return out
}

type fakeManager struct {
	released int
}

func (m *fakeManager) Release() { m.released++ }

type fakeAffordance struct {
	enabled bool
	history []bool
}

func (a *fakeAffordance) SetEnabled(enabled bool) {
	a.enabled = enabled
	a.history = append(a.history, enabled)
}

type recordingObserver struct {
	targets []*Tracker
	commits []uint32
}

func (o *recordingObserver) TargetChanged(t *Tracker) { o.targets = append(o.targets, t) }
func (o *recordingObserver) Committed(t *Tracker)     { o.commits = append(o.commits, t.ID()) }

type fakeEnv struct {
	surface  ObjectID
	anchor   Rect
	noAnchor bool
	seat     ObjectID
	noSeat   bool
	width    int
}

func (e *fakeEnv) Anchor() (ObjectID, Rect, bool) {
	return e.surface, e.anchor, !e.noAnchor
}

func (e *fakeEnv) DefaultSeat() (ObjectID, bool) {
	return e.seat, !e.noSeat
}

func (e *fakeEnv) RectWidth() int { return e.width }

type bindCall struct {
	name    uint32
	iface   string
	version uint32
}

type fakeBinder struct {
	binds []bindCall
	err   error
}

func (b *fakeBinder) Bind(g Global, version uint32) error {
	if b.err != nil {
		return b.err
	}
	b.binds = append(b.binds, bindCall{name: g.Name, iface: g.Interface, version: version})
	return nil
}

// scriptedRegistry delivers one batch of globals per roundtrip.
type scriptedRegistry struct {
	scanner *Scanner
	batches [][]Global
	trips   int
	err     error
}

func (r *scriptedRegistry) Roundtrip() error {
	if r.err != nil {
		return r.err
	}
	if r.trips < len(r.batches) {
		for _, g := range r.batches[r.trips] {
			if err := r.scanner.HandleGlobal(g); err != nil {
				return err
			}
		}
	}
	r.trips++
	return nil
}

var errBoom = errors.New("boom")
