// Package dbus exposes the window controller on the session bus so desktop
// shortcuts can toggle the target without an HTTP client.
package dbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/bryanchriswhite/toplevelctl/internal/logger"
	"github.com/bryanchriswhite/toplevelctl/internal/toplevel"
	"github.com/bryanchriswhite/toplevelctl/internal/window"
)

const (
	// ObjectPath is where the controller object lives.
	ObjectPath godbus.ObjectPath = "/io/github/bryanchriswhite/Toplevelctl"
	// Interface is the method and signal interface name.
	Interface = "io.github.bryanchriswhite.Toplevelctl"

	signalStateChanged = Interface + ".StateChanged"
	callTimeout        = 5 * time.Second
)

// Conn is the subset of *godbus.Conn the service uses.
type Conn interface {
	Export(v interface{}, path godbus.ObjectPath, iface string) error
	Emit(path godbus.ObjectPath, name string, values ...interface{}) error
	RequestName(name string, flags godbus.RequestNameFlags) (godbus.RequestNameReply, error)
}

// Service owns a bus name and forwards method calls to a controller.
type Service struct {
	conn Conn
	name string
	ctrl window.Controller
}

// New creates a service; call Register before Run.
func New(conn Conn, name string, ctrl window.Controller) *Service {
	return &Service{conn: conn, name: name, ctrl: ctrl}
}

// Connect opens the session bus and registers a service on it.
func Connect(name string, ctrl window.Controller) (*Service, func() error, error) {
	conn, err := godbus.ConnectSessionBus()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s := New(conn, name, ctrl)
	if err := s.Register(); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return s, conn.Close, nil
}

// Register exports the object with introspection data and claims the name.
func (s *Service) Register() error {
	h := &handler{ctrl: s.ctrl}
	if err := s.conn.Export(h, ObjectPath, Interface); err != nil {
		return fmt.Errorf("failed to export %s: %w", Interface, err)
	}

	node := &introspect.Node{
		Name: string(ObjectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: introspect.Methods(h),
				Signals: []introspect.Signal{
					{Name: "StateChanged", Args: []introspect.Arg{{Name: "status", Type: "s"}}},
				},
			},
		},
	}
	if err := s.conn.Export(introspect.NewIntrospectable(node), ObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection: %w", err)
	}

	reply, err := s.conn.RequestName(s.name, godbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name %s: %w", s.name, err)
	}
	if reply != godbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", s.name)
	}

	logger.WithComponent("dbus").Info().Str("name", s.name).Str("path", string(ObjectPath)).Msg("D-Bus service registered")
	return nil
}

// Run emits StateChanged for every status update until ctx is done.
func (s *Service) Run(ctx context.Context) {
	log := logger.WithComponent("dbus")

	updates := s.ctrl.Subscribe()
	defer s.ctrl.Unsubscribe(updates)

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(st)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to encode status")
				continue
			}
			if err := s.conn.Emit(ObjectPath, signalStateChanged, string(data)); err != nil {
				log.Warn().Err(err).Msg("Failed to emit StateChanged")
			}
		}
	}
}

// handler carries the exported methods. Every method returns a string so
// shell callers can use gdbus or busctl without type juggling.
type handler struct {
	ctrl window.Controller
}

func (h *handler) run(name string, fn func(context.Context) (toplevel.Action, error)) (string, *godbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	action, err := fn(ctx)
	if err != nil {
		logger.WithComponent("dbus").Warn().Err(err).Str("method", name).Msg("Method failed")
		return "", godbus.MakeFailedError(err)
	}
	return action.String(), nil
}

func (h *handler) Trigger() (string, *godbus.Error) {
	return h.run("Trigger", h.ctrl.Trigger)
}

func (h *handler) Toggle() (string, *godbus.Error) {
	return h.run("Toggle", h.ctrl.Toggle)
}

func (h *handler) Minimize() (string, *godbus.Error) {
	return h.run("Minimize", h.ctrl.Minimize)
}

func (h *handler) Activate() (string, *godbus.Error) {
	return h.run("Activate", h.ctrl.Activate)
}

func (h *handler) Close() (string, *godbus.Error) {
	return h.run("Close", h.ctrl.Close)
}

// Status returns the target status as JSON.
func (h *handler) Status() (string, *godbus.Error) {
	data, err := json.Marshal(h.ctrl.Status())
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	return string(data), nil
}

// List returns every tracked toplevel as JSON.
func (h *handler) List() (string, *godbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	list, err := h.ctrl.List(ctx)
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	if list == nil {
		list = []window.ToplevelInfo{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	return string(data), nil
}
