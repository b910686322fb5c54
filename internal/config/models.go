package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/toplevelctl/internal/logger"
	"github.com/bryanchriswhite/toplevelctl/internal/toplevel"
)

// Defaults
const (
	DefaultTargetAppID = "mt-child"
	DefaultServerPort  = 8090
	DefaultDBusName    = "io.github.bryanchriswhite.Toplevelctl"
)

// ErrUnknownKey is returned by Set for keys that do not exist.
var ErrUnknownKey = errors.New("unknown configuration key")

// AnchorConfig places the anchor surface that minimize animations aim at
type AnchorConfig struct {
	X     int `json:"x" yaml:"x"`
	Y     int `json:"y" yaml:"y"`
	Width int `json:"width" yaml:"width"`
}

// Rect converts the anchor to a toplevel rectangle.
func (a AnchorConfig) Rect() toplevel.Rect {
	return toplevel.Rect{X: a.X, Y: a.Y, Width: a.Width, Height: 1}
}

// DBusConfig represents the session bus service configuration
type DBusConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Name    string `json:"name" yaml:"name"`
}

// HotkeyConfig represents the evdev trigger key
type HotkeyConfig struct {
	Device  string `json:"device" yaml:"device"`
	KeyCode int    `json:"key_code" yaml:"key_code"`
}

// ChildConfig is the command the demo launches as the target
type ChildConfig struct {
	Command []string `json:"command" yaml:"command"`
}

// Config represents the application configuration
type Config struct {
	TargetAppID       string       `json:"target_app_id" yaml:"target_app_id"`
	RectWidth         int          `json:"rect_width" yaml:"rect_width"`
	Anchor            AnchorConfig `json:"anchor" yaml:"anchor"`
	Backend           string       `json:"backend" yaml:"backend"`
	MaxManagerVersion uint32       `json:"max_manager_version" yaml:"max_manager_version"`
	LogLevel          string       `json:"log_level" yaml:"log_level"`
	ServerPort        int          `json:"server_port" yaml:"server_port"`
	DBus              DBusConfig   `json:"dbus" yaml:"dbus"`
	Hotkey            HotkeyConfig `json:"hotkey" yaml:"hotkey"`
	Child             ChildConfig  `json:"child" yaml:"child"`
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.TargetAppID == "" {
		return errors.New("target_app_id must not be empty")
	}
	if c.RectWidth < 0 {
		return fmt.Errorf("rect_width must be >= 0, got %d", c.RectWidth)
	}
	if c.Anchor.Width < 0 {
		return fmt.Errorf("anchor.width must be >= 0, got %d", c.Anchor.Width)
	}
	switch c.Backend {
	case "auto", "wayland", "x11":
	default:
		return fmt.Errorf("invalid backend: %s (use: auto, wayland, x11)", c.Backend)
	}
	if c.MaxManagerVersion < 1 || c.MaxManagerVersion > toplevel.ManagerVersion {
		return fmt.Errorf("max_manager_version must be between 1 and %d, got %d", toplevel.ManagerVersion, c.MaxManagerVersion)
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", c.LogLevel)
	}
	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid port number: %d", c.ServerPort)
	}
	return nil
}

func (c *Config) clone() *Config {
	cp := *c
	cp.Child.Command = append([]string(nil), c.Child.Command...)
	return &cp
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		TargetAppID:       DefaultTargetAppID,
		Backend:           "auto",
		MaxManagerVersion: toplevel.ManagerVersion,
		LogLevel:          "info",
		ServerPort:        DefaultServerPort,
		Anchor:            AnchorConfig{Width: 48},
		DBus: DBusConfig{
			Enabled: true,
			Name:    DefaultDBusName,
		},
		Hotkey: HotkeyConfig{},
		Child:  ChildConfig{Command: []string{}},
	}
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/toplevelctl/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "toplevelctl", "config.yaml"), nil
}

// NewManager creates a new configuration manager. An empty configFile means
// the default path. A missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = p
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	cfg, err := m.load()
	switch {
	case err == nil:
		m.config = cfg
	case os.IsNotExist(err):
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Str("target_app_id", m.config.TargetAppID).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk over the defaults
func (m *Manager) load() (*Config, error) {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Child.Command == nil {
		cfg.Child.Command = []string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}
	return cfg, nil
}

// Reload re-reads the file. On error the current configuration is kept.
func (m *Manager) Reload() (*Config, error) {
	cfg, err := m.load()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return cfg.clone(), nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.clone()
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	log := logger.WithComponent("config")
	log.Debug().Str("path", m.configPath).Msg("Saving config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		log.Error().Err(err).Str("config_dir", configDir).Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		log.Error().Err(err).Str("path", m.configPath).Msg("Failed to write config")
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Update validates, replaces and saves the configuration
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg.clone()
	m.mu.Unlock()
	return m.Save()
}

func (m *Manager) modify(fn func(c *Config) error) error {
	cfg := m.Get()
	if err := fn(cfg); err != nil {
		return err
	}
	return m.Update(cfg)
}

// SetTargetAppID sets the tracked app id
func (m *Manager) SetTargetAppID(appID string) error {
	return m.modify(func(c *Config) error {
		c.TargetAppID = appID
		return nil
	})
}

// SetPort sets the server port
func (m *Manager) SetPort(port int) error {
	return m.modify(func(c *Config) error {
		c.ServerPort = port
		return nil
	})
}

// SetLogLevel sets the log level
func (m *Manager) SetLogLevel(level string) error {
	return m.modify(func(c *Config) error {
		c.LogLevel = level
		return nil
	})
}

// SetBackend sets the backend kind
func (m *Manager) SetBackend(kind string) error {
	return m.modify(func(c *Config) error {
		c.Backend = kind
		return nil
	})
}

// Set assigns a value by its dotted key, parsing it for the key's type.
func (m *Manager) Set(key, value string) error {
	return m.modify(func(c *Config) error {
		return setField(c, key, value)
	})
}

func setField(c *Config, key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %s", key, value)
		}
		return n, nil
	}

	var err error
	switch key {
	case "target_app_id":
		c.TargetAppID = value
	case "rect_width":
		c.RectWidth, err = atoi()
	case "anchor.x":
		c.Anchor.X, err = atoi()
	case "anchor.y":
		c.Anchor.Y, err = atoi()
	case "anchor.width":
		c.Anchor.Width, err = atoi()
	case "backend":
		c.Backend = value
	case "max_manager_version":
		var n int
		if n, err = atoi(); err == nil {
			if n < 0 {
				return fmt.Errorf("invalid number for %s: %s", key, value)
			}
			c.MaxManagerVersion = uint32(n)
		}
	case "log_level":
		c.LogLevel = value
	case "server_port":
		c.ServerPort, err = atoi()
	case "dbus.enabled":
		c.DBus.Enabled, err = strconv.ParseBool(value)
		if err != nil {
			err = fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
	case "dbus.name":
		c.DBus.Name = value
	case "hotkey.device":
		c.Hotkey.Device = value
	case "hotkey.key_code":
		c.Hotkey.KeyCode, err = atoi()
	case "child.command":
		c.Child.Command = strings.Fields(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return err
}

// GetViper returns a viper view of the configuration file for dotted-key
// lookups.
func (m *Manager) GetViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(m.configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config for lookup: %w", err)
	}
	return v, nil
}

// GetPort returns the server port
func (m *Manager) GetPort() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ServerPort
}

// GetLogLevel returns the log level
func (m *Manager) GetLogLevel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.LogLevel
}

// GetConfigPath returns the config file path
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the directory holding the config file
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}
