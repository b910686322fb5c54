package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toplevelctl", "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestNewManagerCreatesDefaults(t *testing.T) {
	m := newTestManager(t)

	if _, err := os.Stat(m.GetConfigPath()); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	cfg := m.Get()
	if cfg.TargetAppID != DefaultTargetAppID || cfg.ServerPort != DefaultServerPort {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.MaxManagerVersion != 3 || cfg.Backend != "auto" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "target_app_id: editor\nrect_width: 200\nanchor:\n  x: 10\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	cfg := m.Get()
	if cfg.TargetAppID != "editor" || cfg.RectWidth != 200 || cfg.Anchor.X != 10 {
		t.Errorf("file values not loaded: %+v", cfg)
	}
	if cfg.LogLevel != "info" || cfg.ServerPort != DefaultServerPort {
		t.Errorf("missing keys did not fall back to defaults: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "target_app_id: [\n"},
		{"empty target", "target_app_id: \"\"\n"},
		{"bad backend", "backend: mir\n"},
		{"manager version too high", "max_manager_version: 4\n"},
		{"negative width", "rect_width: -1\n"},
		{"bad log level", "log_level: chatty\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewManager(path); err == nil {
				t.Errorf("NewManager() accepted %q", tt.data)
			}
		})
	}
}

func TestGetReturnsCopy(t *testing.T) {
	m := newTestManager(t)
	cfg := m.Get()
	cfg.TargetAppID = "changed"
	cfg.Child.Command = append(cfg.Child.Command, "x")

	if got := m.Get(); got.TargetAppID != DefaultTargetAppID || len(got.Child.Command) != 0 {
		t.Errorf("Get() result aliases manager state: %+v", got)
	}
}

func TestSet(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		key, value string
		check      func(*Config) bool
	}{
		{"target_app_id", "foot", func(c *Config) bool { return c.TargetAppID == "foot" }},
		{"rect_width", "120", func(c *Config) bool { return c.RectWidth == 120 }},
		{"anchor.y", "-4", func(c *Config) bool { return c.Anchor.Y == -4 }},
		{"max_manager_version", "2", func(c *Config) bool { return c.MaxManagerVersion == 2 }},
		{"dbus.enabled", "false", func(c *Config) bool { return !c.DBus.Enabled }},
		{"hotkey.key_code", "88", func(c *Config) bool { return c.Hotkey.KeyCode == 88 }},
		{"child.command", "foot --app-id mt-child", func(c *Config) bool { return len(c.Child.Command) == 3 }},
	}
	for _, tt := range tests {
		if err := m.Set(tt.key, tt.value); err != nil {
			t.Errorf("Set(%q, %q) error = %v", tt.key, tt.value, err)
			continue
		}
		if !tt.check(m.Get()) {
			t.Errorf("Set(%q, %q) not applied: %+v", tt.key, tt.value, m.Get())
		}
	}

	reloaded, err := NewManager(m.GetConfigPath())
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if reloaded.Get().TargetAppID != "foot" || reloaded.Get().RectWidth != 120 {
		t.Errorf("Set did not persist: %+v", reloaded.Get())
	}
}

func TestSetRejects(t *testing.T) {
	m := newTestManager(t)

	if err := m.Set("nope", "1"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Set(unknown) error = %v, want ErrUnknownKey", err)
	}
	if err := m.Set("server_port", "eighty"); err == nil {
		t.Errorf("Set(server_port, eighty) succeeded")
	}
	if err := m.Set("log_level", "loud"); err == nil {
		t.Errorf("Set(log_level, loud) succeeded")
	}
	if got := m.Get().LogLevel; got != "info" {
		t.Errorf("rejected value was applied: %q", got)
	}
}

func TestGetViper(t *testing.T) {
	m := newTestManager(t)
	if err := m.Set("anchor.width", "64"); err != nil {
		t.Fatal(err)
	}
	v, err := m.GetViper()
	if err != nil {
		t.Fatalf("GetViper() error = %v", err)
	}
	if got := v.GetInt("anchor.width"); got != 64 {
		t.Errorf("anchor.width = %d, want 64", got)
	}
	if got := v.GetString("target_app_id"); got != DefaultTargetAppID {
		t.Errorf("target_app_id = %q", got)
	}
}

func TestWatchReloads(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	watchErr := make(chan error, 1)
	go func() { watchErr <- m.Watch(ctx, func(c *Config) { changes <- c }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	data := "target_app_id: reloaded\n"
	if err := os.WriteFile(m.GetConfigPath(), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(3 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.TargetAppID == "reloaded" {
				cancel()
				if err := <-watchErr; err != nil {
					t.Errorf("Watch() error = %v", err)
				}
				return
			}
		case <-timeout:
			t.Fatalf("config change not observed")
		}
	}
}
