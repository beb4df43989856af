package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bryanchriswhite/xwin/internal/logger"
	"gopkg.in/yaml.v3"
)

// DefaultExtensionUUID identifies the GNOME Shell extension managed by xwin.
const DefaultExtensionUUID = "xwin@bryanchriswhite.github.io"

// MinPollInterval bounds how often a subscription may query the display.
const MinPollInterval = 10 * time.Millisecond

// Config represents the application configuration
type Config struct {
	ServerPort   int             `json:"server_port" yaml:"server_port"`
	LogLevel     string          `json:"log_level" yaml:"log_level"`
	PollInterval time.Duration   `json:"poll_interval" yaml:"poll_interval"`
	Display      string          `json:"display" yaml:"display"`
	Extension    ExtensionConfig `json:"extension" yaml:"extension"`
}

// ExtensionConfig configures the desktop extension installer.
type ExtensionConfig struct {
	UUID string `json:"uuid" yaml:"uuid"`
	// Dir overrides the extensions directory; empty means
	// $XDG_DATA_HOME/gnome-shell/extensions.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		ServerPort:   8080,
		LogLevel:     "info",
		PollInterval: 100 * time.Millisecond,
		Extension: ExtensionConfig{
			UUID: DefaultExtensionUUID,
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("server_port %d out of range 1-65535", c.ServerPort))
	}
	if c.PollInterval < MinPollInterval {
		errs = append(errs, fmt.Errorf("poll_interval %s is below %s", c.PollInterval, MinPollInterval))
	}
	if c.Extension.UUID == "" {
		errs = append(errs, errors.New("extension.uuid must not be empty"))
	}
	return errors.Join(errs...)
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/xwin/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "xwin", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when configFile is
// empty. A missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	m := &Manager{
		configPath: path,
	}

	if err := m.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Dur("poll_interval", m.config.PollInterval).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk. Keys missing from the file keep
// their default values.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Override applies fn to the in-memory configuration without saving it.
// Used for command line flags and environment variables.
func (m *Manager) Override(fn func(*Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := *m.config
	fn(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.config = &cfg
	return nil
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	cfg := m.Get()

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// Update validates and persists cfg.
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c := *cfg
	m.mu.Lock()
	m.config = &c
	m.mu.Unlock()
	return m.Save()
}

// SetPort sets the server port
func (m *Manager) SetPort(port int) error {
	cfg := m.Get()
	cfg.ServerPort = port
	return m.Update(cfg)
}

// SetLogLevel sets the log level
func (m *Manager) SetLogLevel(level string) error {
	cfg := m.Get()
	cfg.LogLevel = level
	return m.Update(cfg)
}

// SetPollInterval sets the subscription poll interval
func (m *Manager) SetPollInterval(d time.Duration) error {
	cfg := m.Get()
	cfg.PollInterval = d
	return m.Update(cfg)
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
