package window

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bryanchriswhite/toplevelctl/internal/logger"
	"github.com/bryanchriswhite/toplevelctl/internal/toplevel"
)

var (
	// ErrNotRunning is returned for work posted to a stopped manager.
	ErrNotRunning = errors.New("window manager is not running")
	// ErrBackendClosed means the display server connection went away.
	ErrBackendClosed = errors.New("display server connection closed")
)

// Status is a snapshot of the tracked target.
type Status struct {
	Backend         string   `json:"backend"`
	TargetAppID     string   `json:"target_app_id"`
	Tracked         bool     `json:"tracked"`
	Committed       bool     `json:"committed"`
	Enabled         bool     `json:"enabled"`
	ID              uint32   `json:"id,omitempty"`
	Title           string   `json:"title,omitempty"`
	States          []string `json:"states"`
	Minimized       bool     `json:"minimized"`
	ManagerFinished bool     `json:"manager_finished"`
}

// ToplevelInfo describes one tracked toplevel.
type ToplevelInfo struct {
	ID     uint32   `json:"id"`
	Title  string   `json:"title"`
	AppID  string   `json:"app_id"`
	States []string `json:"states"`
	Phase  string   `json:"phase"`
	Target bool     `json:"target"`
}

// Manager owns a backend session and the toplevel client fed by it. All
// protocol state lives on one loop goroutine; other goroutines post work
// with Do and read the cached Status.
type Manager struct {
	open        OpenFunc
	targetAppID string

	// loop goroutine only
	client    *toplevel.Client
	backend   Backend
	commander *toplevel.Commander

	cmds     chan func()
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu        sync.RWMutex
	status    Status
	err       error
	listeners []chan Status
}

// NewManager creates a manager that tracks targetAppID on the backend
// returned by open.
func NewManager(targetAppID string, open OpenFunc) *Manager {
	return &Manager{
		open:        open,
		targetAppID: targetAppID,
		cmds:        make(chan func()),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
		listeners:   make([]chan Status, 0),
		status:      Status{TargetAppID: targetAppID, States: []string{}},
	}
}

// Start connects the backend, runs discovery and starts the loop.
func (m *Manager) Start() error {
	log := logger.WithComponent("window")

	m.client = toplevel.NewClient(m.targetAppID,
		toplevel.WithAffordance(affordance{m}),
		toplevel.WithObserver(m),
	)

	b, err := m.open(m.client)
	if err != nil {
		return fmt.Errorf("failed to open backend: %w", err)
	}
	m.backend = b
	m.commander = toplevel.NewCommander(m.client, b)
	m.refreshStatus()

	log.Info().
		Str("backend", b.Name()).
		Str("app_id", m.targetAppID).
		Bool("tracked", m.client.Target() != nil).
		Msg("Window manager started")

	go m.loop()
	return nil
}

func (m *Manager) loop() {
	log := logger.WithComponent("window")
	defer close(m.done)
	defer m.backend.Close()

	events := m.backend.Events()
	for {
		select {
		case fn, ok := <-events:
			if !ok {
				m.fail(ErrBackendClosed)
				return
			}
			if err := fn(); err != nil {
				log.Error().Err(err).Msg("Backend failed")
				m.fail(err)
				return
			}
		case cmd := <-m.cmds:
			cmd()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Stop stops the loop and closes the backend.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	if m.backend != nil {
		<-m.done
	}
}

// Done is closed when the loop exits.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Err returns the error that ended the loop, if any.
func (m *Manager) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Do runs fn on the loop goroutine and waits for it.
func (m *Manager) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	cmd := func() { result <- fn() }

	select {
	case m.cmds <- cmd:
	case <-m.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) command(ctx context.Context, name string, fn func(*toplevel.Commander) (toplevel.Action, error)) (toplevel.Action, error) {
	var action toplevel.Action
	err := m.Do(ctx, func() error {
		var err error
		action, err = fn(m.commander)
		return err
	})
	log := logger.WithComponent("window")
	if err != nil {
		log.Warn().Err(err).Str("command", name).Msg("Command failed")
		return toplevel.ActionNone, err
	}
	log.Debug().Str("command", name).Str("action", action.String()).Msg("Command issued")
	return action, nil
}

// Trigger sets the visual rectangle and toggles the target.
func (m *Manager) Trigger(ctx context.Context) (toplevel.Action, error) {
	return m.command(ctx, "trigger", (*toplevel.Commander).Trigger)
}

// Toggle minimizes or activates the target.
func (m *Manager) Toggle(ctx context.Context) (toplevel.Action, error) {
	return m.command(ctx, "toggle", (*toplevel.Commander).Toggle)
}

// Minimize minimizes the target.
func (m *Manager) Minimize(ctx context.Context) (toplevel.Action, error) {
	return m.command(ctx, "minimize", (*toplevel.Commander).Minimize)
}

// Activate activates the target.
func (m *Manager) Activate(ctx context.Context) (toplevel.Action, error) {
	return m.command(ctx, "activate", (*toplevel.Commander).Activate)
}

// Close asks the target to close.
func (m *Manager) Close(ctx context.Context) (toplevel.Action, error) {
	return m.command(ctx, "close", (*toplevel.Commander).Close)
}

// SetVisualRectangle sends the minimize hint rectangle.
func (m *Manager) SetVisualRectangle(ctx context.Context) (toplevel.Action, error) {
	return m.command(ctx, "set_rectangle", (*toplevel.Commander).SetVisualRectangle)
}

// List returns every live toplevel.
func (m *Manager) List(ctx context.Context) ([]ToplevelInfo, error) {
	var out []ToplevelInfo
	err := m.Do(ctx, func() error {
		target := m.client.Target()
		for _, t := range m.client.Trackers() {
			snap := t.Committed()
			out = append(out, ToplevelInfo{
				ID:     t.ID(),
				Title:  snap.Title,
				AppID:  snap.AppID,
				States: stateNames(snap.States),
				Phase:  t.Phase().String(),
				Target: t == target,
			})
		}
		return nil
	})
	return out, err
}

// SetTargetAppID switches the tracked app id.
func (m *Manager) SetTargetAppID(ctx context.Context, appID string) error {
	return m.Do(ctx, func() error {
		m.client.SetTargetAppID(appID)
		m.targetAppID = appID
		m.refreshStatus()
		m.notifyListeners()
		return nil
	})
}

// SetGeometry updates the anchor rectangle and width override.
func (m *Manager) SetGeometry(ctx context.Context, anchor toplevel.Rect, rectWidth int) error {
	return m.Do(ctx, func() error {
		m.backend.SetGeometry(anchor, rectWidth)
		return nil
	})
}

// Status returns the last published target snapshot.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.status
	s.States = append([]string{}, m.status.States...)
	return s
}

// WaitCommitted blocks until the target is tracked and its attributes have
// been committed at least once, so commands act on a complete snapshot.
func (m *Manager) WaitCommitted(ctx context.Context) (Status, error) {
	updates := m.Subscribe()
	defer m.Unsubscribe(updates)

	if st := m.Status(); st.Committed {
		return st, nil
	}
	for {
		select {
		case st := <-updates:
			if st.Committed {
				return st, nil
			}
		case <-m.done:
			if err := m.Err(); err != nil {
				return Status{}, err
			}
			return Status{}, ErrNotRunning
		case <-ctx.Done():
			return Status{}, ctx.Err()
		}
	}
}

// Subscribe adds a listener for status changes
func (m *Manager) Subscribe() chan Status {
	ch := make(chan Status, 10)
	m.mu.Lock()
	m.listeners = append(m.listeners, ch)
	m.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener
func (m *Manager) Unsubscribe(ch chan Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, listener := range m.listeners {
		if listener == ch {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

func (m *Manager) notifyListeners() {
	status := m.Status()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, listener := range m.listeners {
		select {
		case listener <- status:
		default:
			// Skip if channel is full
		}
	}
}

// refreshStatus rebuilds the cached status. Loop goroutine only.
func (m *Manager) refreshStatus() {
	s := Status{
		TargetAppID:     m.client.TargetAppID(),
		ManagerFinished: m.client.Finished(),
		States:          []string{},
	}
	if m.backend != nil {
		s.Backend = m.backend.Name()
	}
	if t := m.client.Target(); t != nil {
		snap := t.Committed()
		s.Tracked = true
		s.Committed = t.Commits() > 0
		s.ID = t.ID()
		s.Title = snap.Title
		s.States = stateNames(snap.States)
		s.Minimized = snap.Minimized()
	}

	m.mu.Lock()
	s.Enabled = m.status.Enabled
	m.status = s
	m.mu.Unlock()
}

// TargetChanged implements toplevel.Observer.
func (m *Manager) TargetChanged(*toplevel.Tracker) {
	m.refreshStatus()
	m.notifyListeners()
}

// Committed implements toplevel.Observer.
func (m *Manager) Committed(t *toplevel.Tracker) {
	if t != m.client.Target() {
		return
	}
	m.refreshStatus()
	m.notifyListeners()
}

// affordance publishes the enabled flag in Status.
type affordance struct {
	m *Manager
}

func (a affordance) SetEnabled(enabled bool) {
	a.m.mu.Lock()
	a.m.status.Enabled = enabled
	a.m.mu.Unlock()
}

func stateNames(s toplevel.StateSet) []string {
	names := s.Names()
	if names == nil {
		return []string{}
	}
	return names
}

// Controller is the control surface shared by the HTTP, D-Bus and MCP
// front ends.
type Controller interface {
	Status() Status
	List(ctx context.Context) ([]ToplevelInfo, error)
	Trigger(ctx context.Context) (toplevel.Action, error)
	Toggle(ctx context.Context) (toplevel.Action, error)
	Minimize(ctx context.Context) (toplevel.Action, error)
	Activate(ctx context.Context) (toplevel.Action, error)
	Close(ctx context.Context) (toplevel.Action, error)
	SetVisualRectangle(ctx context.Context) (toplevel.Action, error)
	Subscribe() chan Status
	Unsubscribe(ch chan Status)
}

var _ Controller = (*Manager)(nil)
