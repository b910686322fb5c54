// Package hotkey triggers the target from a key on an evdev input device.
// It works the same under Wayland and X11 since it reads the kernel device
// directly; the user needs read access to /dev/input.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	evdev "github.com/holoplot/go-evdev"

	"github.com/bryanchriswhite/toplevelctl/internal/logger"
	"github.com/bryanchriswhite/toplevelctl/internal/toplevel"
)

// ErrNoDevice is returned when no input device reports the key.
var ErrNoDevice = errors.New("no input device reports the hotkey")

const triggerTimeout = 5 * time.Second

// Device is the subset of *evdev.InputDevice the listener reads from.
type Device interface {
	ReadOne() (*evdev.InputEvent, error)
	Close() error
	Name() string
	Path() string
	HasKey(code evdev.EvCode) bool
}

// Opener finds input devices.
type Opener interface {
	Open(path string) (Device, error)
	List() ([]Device, error)
}

// TriggerFunc is called on every key press.
type TriggerFunc func(ctx context.Context) (toplevel.Action, error)

type evdevDevice struct {
	dev *evdev.InputDevice
}

func (d *evdevDevice) ReadOne() (*evdev.InputEvent, error) { return d.dev.ReadOne() }
func (d *evdevDevice) Close() error                        { return d.dev.Close() }
func (d *evdevDevice) Path() string                        { return d.dev.Path() }

func (d *evdevDevice) Name() string {
	name, _ := d.dev.Name()
	return name
}

func (d *evdevDevice) HasKey(code evdev.EvCode) bool {
	for _, c := range d.dev.CapableEvents(evdev.EV_KEY) {
		if c == code {
			return true
		}
	}
	return false
}

// EvdevOpener opens real kernel input devices.
type EvdevOpener struct{}

func (EvdevOpener) Open(path string) (Device, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, err
	}
	return &evdevDevice{dev: dev}, nil
}

func (EvdevOpener) List() ([]Device, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}
	var out []Device
	for _, p := range paths {
		dev, err := evdev.Open(p.Path)
		if err != nil {
			continue
		}
		out = append(out, &evdevDevice{dev: dev})
	}
	return out, nil
}

// Find opens path, or when path is empty the first device that reports
// code. Devices not returned are closed.
func Find(op Opener, path string, code evdev.EvCode) (Device, error) {
	if path != "" {
		dev, err := op.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		return dev, nil
	}

	devs, err := op.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list input devices: %w", err)
	}
	var found Device
	for _, d := range devs {
		if found == nil && d.HasKey(code) {
			found = d
			continue
		}
		d.Close()
	}
	if found == nil {
		return nil, fmt.Errorf("%w: key code %d", ErrNoDevice, code)
	}
	return found, nil
}

// Listener calls a trigger on each press of one key.
type Listener struct {
	dev     Device
	code    evdev.EvCode
	trigger TriggerFunc
}

// NewListener creates a listener for code on dev.
func NewListener(dev Device, code evdev.EvCode, trigger TriggerFunc) *Listener {
	return &Listener{dev: dev, code: code, trigger: trigger}
}

// Run reads the device until ctx is done or the device fails. The device
// is closed on return.
func (l *Listener) Run(ctx context.Context) error {
	log := logger.WithComponent("hotkey")
	log.Info().Str("device", l.dev.Name()).Str("path", l.dev.Path()).Int("code", int(l.code)).Msg("Listening for hotkey")

	// ReadOne blocks; closing the device unblocks it.
	stop := context.AfterFunc(ctx, func() { l.dev.Close() })
	defer func() {
		if stop() {
			l.dev.Close()
		}
	}()

	for {
		ev, err := l.dev.ReadOne()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read %s: %w", l.dev.Path(), err)
		}
		// Value 1 is a press; 0 is release and 2 autorepeat.
		if ev.Type != evdev.EV_KEY || ev.Code != l.code || ev.Value != 1 {
			continue
		}

		tctx, cancel := context.WithTimeout(ctx, triggerTimeout)
		action, err := l.trigger(tctx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Hotkey trigger failed")
			continue
		}
		log.Debug().Str("action", action.String()).Msg("Hotkey triggered")
	}
}
