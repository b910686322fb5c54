package wayland

import (
	"sync"

	"github.com/neurlang/wayland/wl"
)

// ZwlrForeignToplevelManagerV1 lists and controls toplevels of other clients.
type ZwlrForeignToplevelManagerV1 struct {
	wl.BaseProxy
	mu                      sync.RWMutex
	privateToplevelHandlers []ZwlrForeignToplevelManagerV1ToplevelHandler
	privateFinishedHandlers []ZwlrForeignToplevelManagerV1FinishedHandler
}

// NewZwlrForeignToplevelManagerV1 registers a manager proxy on ctx.
func NewZwlrForeignToplevelManagerV1(ctx *wl.Context) *ZwlrForeignToplevelManagerV1 {
	p := new(ZwlrForeignToplevelManagerV1)
	ctx.Register(p)
	return p
}

// Stop asks the compositor to stop sending events. It answers with
// finished, after which the object is inert.
func (p *ZwlrForeignToplevelManagerV1) Stop() error {
	return p.Context().SendRequest(p, 0)
}

// Release drops the local object. The interface has no destructor.
func (p *ZwlrForeignToplevelManagerV1) Release() {
	p.Context().Unregister(p.Id())
}

type ZwlrForeignToplevelManagerV1ToplevelEvent struct {
	Toplevel *ZwlrForeignToplevelHandleV1
}

type ZwlrForeignToplevelManagerV1ToplevelHandler interface {
	HandleZwlrForeignToplevelManagerV1Toplevel(ZwlrForeignToplevelManagerV1ToplevelEvent)
}

func (p *ZwlrForeignToplevelManagerV1) AddToplevelHandler(h ZwlrForeignToplevelManagerV1ToplevelHandler) {
	if h != nil {
		p.mu.Lock()
		p.privateToplevelHandlers = append(p.privateToplevelHandlers, h)
		p.mu.Unlock()
	}
}

type ZwlrForeignToplevelManagerV1FinishedEvent struct{}

type ZwlrForeignToplevelManagerV1FinishedHandler interface {
	HandleZwlrForeignToplevelManagerV1Finished(ZwlrForeignToplevelManagerV1FinishedEvent)
}

func (p *ZwlrForeignToplevelManagerV1) AddFinishedHandler(h ZwlrForeignToplevelManagerV1FinishedHandler) {
	if h != nil {
		p.mu.Lock()
		p.privateFinishedHandlers = append(p.privateFinishedHandlers, h)
		p.mu.Unlock()
	}
}

// Dispatch decodes one manager event. The handle announced by toplevel is
// placed in the object table before any handler runs, so the compositor's
// follow-up events for it always find a proxy.
func (p *ZwlrForeignToplevelManagerV1) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0:
		h := new(ZwlrForeignToplevelHandleV1)
		h.SetContext(p.Context())
		h.SetId(wl.ProxyId(event.Uint32()))
		p.Context().RegisterMapped(h, uint32(h.Id()))

		p.mu.RLock()
		handlers := p.privateToplevelHandlers
		p.mu.RUnlock()
		ev := ZwlrForeignToplevelManagerV1ToplevelEvent{Toplevel: h}
		for _, l := range handlers {
			l.HandleZwlrForeignToplevelManagerV1Toplevel(ev)
		}
	case 1:
		p.mu.RLock()
		handlers := p.privateFinishedHandlers
		p.mu.RUnlock()
		for _, l := range handlers {
			l.HandleZwlrForeignToplevelManagerV1Finished(ZwlrForeignToplevelManagerV1FinishedEvent{})
		}
	}
}

// ZwlrForeignToplevelHandleV1 is one toplevel owned by another client.
type ZwlrForeignToplevelHandleV1 struct {
	wl.BaseProxy
	mu                         sync.RWMutex
	privateTitleHandlers       []ZwlrForeignToplevelHandleV1TitleHandler
	privateAppIdHandlers       []ZwlrForeignToplevelHandleV1AppIdHandler
	privateOutputEnterHandlers []ZwlrForeignToplevelHandleV1OutputEnterHandler
	privateOutputLeaveHandlers []ZwlrForeignToplevelHandleV1OutputLeaveHandler
	privateStateHandlers       []ZwlrForeignToplevelHandleV1StateHandler
	privateDoneHandlers        []ZwlrForeignToplevelHandleV1DoneHandler
	privateClosedHandlers      []ZwlrForeignToplevelHandleV1ClosedHandler
	privateParentHandlers      []ZwlrForeignToplevelHandleV1ParentHandler
}

func (p *ZwlrForeignToplevelHandleV1) SetMaximized() error {
	return p.Context().SendRequest(p, 0)
}

func (p *ZwlrForeignToplevelHandleV1) UnsetMaximized() error {
	return p.Context().SendRequest(p, 1)
}

func (p *ZwlrForeignToplevelHandleV1) SetMinimized() error {
	return p.Context().SendRequest(p, 2)
}

func (p *ZwlrForeignToplevelHandleV1) UnsetMinimized() error {
	return p.Context().SendRequest(p, 3)
}

func (p *ZwlrForeignToplevelHandleV1) Activate(seat *wl.Seat) error {
	return p.Context().SendRequest(p, 4, seat)
}

func (p *ZwlrForeignToplevelHandleV1) Close() error {
	return p.Context().SendRequest(p, 5)
}

func (p *ZwlrForeignToplevelHandleV1) SetRectangle(surface *wl.Surface, x, y, width, height int32) error {
	return p.Context().SendRequest(p, 6, surface, x, y, width, height)
}

// Destroy sends the destructor and removes the proxy from the object table.
func (p *ZwlrForeignToplevelHandleV1) Destroy() error {
	err := p.Context().SendRequest(p, 7)
	p.Context().Unregister(p.Id())
	return err
}

type ZwlrForeignToplevelHandleV1TitleEvent struct {
	Title string
}

type ZwlrForeignToplevelHandleV1TitleHandler interface {
	HandleZwlrForeignToplevelHandleV1Title(ZwlrForeignToplevelHandleV1TitleEvent)
}

func (p *ZwlrForeignToplevelHandleV1) AddTitleHandler(h ZwlrForeignToplevelHandleV1TitleHandler) {
	if h != nil {
		p.mu.Lock()
		p.privateTitleHandlers = append(p.privateTitleHandlers, h)
		p.mu.Unlock()
	}
}

type ZwlrForeignToplevelHandleV1AppIdEvent struct {
	AppId string
}

type ZwlrForeignToplevelHandleV1AppIdHandler interface {
	HandleZwlrForeignToplevelHandleV1AppId(ZwlrForeignToplevelHandleV1AppIdEvent)
}

func (p *ZwlrForeignToplevelHandleV1) AddAppIdHandler(h ZwlrForeignToplevelHandleV1AppIdHandler) {
	if h != nil {
		p.mu.Lock()
		p.privateAppIdHandlers = append(p.privateAppIdHandlers, h)
		p.mu.Unlock()
	}
}

// Outputs are never bound here, so enter and leave carry the raw id.
type ZwlrForeignToplevelHandleV1OutputEnterEvent struct {
	Output wl.ProxyId
}

type ZwlrForeignToplevelHandleV1OutputEnterHandler interface {
	HandleZwlrForeignToplevelHandleV1OutputEnter(ZwlrForeignToplevelHandleV1OutputEnterEvent)
}

func (p *ZwlrForeignToplevelHandleV1) AddOutputEnterHandler(h ZwlrForeignToplevelHandleV1OutputEnterHandler) {
	if h != nil {
		p.mu.Lock()
		p.privateOutputEnterHandlers = append(p.privateOutputEnterHandlers, h)
		p.mu.Unlock()
	}
}

type ZwlrForeignToplevelHandleV1OutputLeaveEvent struct {
	Output wl.ProxyId
}

type ZwlrForeignToplevelHandleV1OutputLeaveHandler interface {
	HandleZwlrForeignToplevelHandleV1OutputLeave(ZwlrForeignToplevelHandleV1OutputLeaveEvent)
}

func (p *ZwlrForeignToplevelHandleV1) AddOutputLeaveHandler(h ZwlrForeignToplevelHandleV1OutputLeaveHandler) {
	if h != nil {
		p.mu.Lock()
		p.privateOutputLeaveHandlers = append(p.privateOutputLeaveHandlers, h)
		p.mu.Unlock()
	}
}

type ZwlrForeignToplevelHandleV1StateEvent struct {
	State []uint32
}

type ZwlrForeignToplevelHandleV1StateHandler interface {
	HandleZwlrForeignToplevelHandleV1State(ZwlrForeignToplevelHandleV1StateEvent)
}

func (p *ZwlrForeignToplevelHandleV1) AddStateHandler(h ZwlrForeignToplevelHandleV1StateHandler) {
	if h != nil {
		p.mu.Lock()
		p.privateStateHandlers = append(p.privateStateHandlers, h)
		p.mu.Unlock()
	}
}

type ZwlrForeignToplevelHandleV1DoneEvent struct{}

type ZwlrForeignToplevelHandleV1DoneHandler interface {
	HandleZwlrForeignToplevelHandleV1Done(ZwlrForeignToplevelHandleV1DoneEvent)
}

func (p *ZwlrForeignToplevelHandleV1) AddDoneHandler(h ZwlrForeignToplevelHandleV1DoneHandler) {
	if h != nil {
		p.mu.Lock()
		p.privateDoneHandlers = append(p.privateDoneHandlers, h)
		p.mu.Unlock()
	}
}

type ZwlrForeignToplevelHandleV1ClosedEvent struct{}

type ZwlrForeignToplevelHandleV1ClosedHandler interface {
	HandleZwlrForeignToplevelHandleV1Closed(ZwlrForeignToplevelHandleV1ClosedEvent)
}

func (p *ZwlrForeignToplevelHandleV1) AddClosedHandler(h ZwlrForeignToplevelHandleV1ClosedHandler) {
	if h != nil {
		p.mu.Lock()
		p.privateClosedHandlers = append(p.privateClosedHandlers, h)
		p.mu.Unlock()
	}
}

type ZwlrForeignToplevelHandleV1ParentEvent struct {
	Parent wl.ProxyId
}

type ZwlrForeignToplevelHandleV1ParentHandler interface {
	HandleZwlrForeignToplevelHandleV1Parent(ZwlrForeignToplevelHandleV1ParentEvent)
}

func (p *ZwlrForeignToplevelHandleV1) AddParentHandler(h ZwlrForeignToplevelHandleV1ParentHandler) {
	if h != nil {
		p.mu.Lock()
		p.privateParentHandlers = append(p.privateParentHandlers, h)
		p.mu.Unlock()
	}
}

func (p *ZwlrForeignToplevelHandleV1) Dispatch(event *wl.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch event.Opcode {
	case 0:
		ev := ZwlrForeignToplevelHandleV1TitleEvent{Title: event.String()}
		for _, l := range p.privateTitleHandlers {
			l.HandleZwlrForeignToplevelHandleV1Title(ev)
		}
	case 1:
		ev := ZwlrForeignToplevelHandleV1AppIdEvent{AppId: event.String()}
		for _, l := range p.privateAppIdHandlers {
			l.HandleZwlrForeignToplevelHandleV1AppId(ev)
		}
	case 2:
		ev := ZwlrForeignToplevelHandleV1OutputEnterEvent{Output: wl.ProxyId(event.Uint32())}
		for _, l := range p.privateOutputEnterHandlers {
			l.HandleZwlrForeignToplevelHandleV1OutputEnter(ev)
		}
	case 3:
		ev := ZwlrForeignToplevelHandleV1OutputLeaveEvent{Output: wl.ProxyId(event.Uint32())}
		for _, l := range p.privateOutputLeaveHandlers {
			l.HandleZwlrForeignToplevelHandleV1OutputLeave(ev)
		}
	case 4:
		raw := event.Array()
		ev := ZwlrForeignToplevelHandleV1StateEvent{State: make([]uint32, len(raw))}
		for i, v := range raw {
			ev.State[i] = uint32(v)
		}
		for _, l := range p.privateStateHandlers {
			l.HandleZwlrForeignToplevelHandleV1State(ev)
		}
	case 5:
		for _, l := range p.privateDoneHandlers {
			l.HandleZwlrForeignToplevelHandleV1Done(ZwlrForeignToplevelHandleV1DoneEvent{})
		}
	case 6:
		for _, l := range p.privateClosedHandlers {
			l.HandleZwlrForeignToplevelHandleV1Closed(ZwlrForeignToplevelHandleV1ClosedEvent{})
		}
	case 7:
		ev := ZwlrForeignToplevelHandleV1ParentEvent{Parent: wl.ProxyId(event.Uint32())}
		for _, l := range p.privateParentHandlers {
			l.HandleZwlrForeignToplevelHandleV1Parent(ev)
		}
	}
}
