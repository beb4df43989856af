// Package extension installs and removes the GNOME Shell extension that
// exposes window state on compositors where X11 hints are not available.
package extension

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bryanchriswhite/xwin/internal/config"
	"github.com/bryanchriswhite/xwin/internal/logger"
	"github.com/godbus/dbus/v5"
)

// GNOME Shell D-Bus constants
const (
	shellService   = "org.gnome.Shell.Extensions"
	shellPath      = "/org/gnome/Shell/Extensions"
	shellInterface = "org.gnome.Shell.Extensions"
)

// Shell versions the bundled extension declares support for.
var shellVersions = []string{"45", "46", "47", "48"}

// ErrUnavailable is returned when GNOME Shell is not reachable on the
// session bus.
var ErrUnavailable = errors.New("gnome shell extensions service unavailable")

//go:embed assets/extension.js
var assets embed.FS

// extension states reported by GetExtensionInfo
const (
	stateEnabled     = 1
	stateDisabled    = 2
	stateError       = 3
	stateOutOfDate   = 4
	stateInitialized = 6
	stateUninstalled = 99
)

// Status describes the extension as seen on disk and by the shell.
type Status struct {
	UUID      string `json:"uuid"`
	Installed bool   `json:"installed"`
	Enabled   bool   `json:"enabled"`
	State     string `json:"state"`
	Path      string `json:"path"`
}

// caller is the subset of dbus.BusObject used to talk to the shell.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Manager installs, removes and inspects the extension.
type Manager struct {
	uuid    string
	dir     string
	connect func(ctx context.Context) (caller, func() error, error)
}

// NewManager creates a manager for cfg.
func NewManager(cfg config.ExtensionConfig) *Manager {
	dir := cfg.Dir
	if dir == "" {
		dir = defaultDir()
	}
	return &Manager{
		uuid:    cfg.UUID,
		dir:     dir,
		connect: connectShell,
	}
}

func defaultDir() string {
	data := os.Getenv("XDG_DATA_HOME")
	if data == "" {
		if home, err := os.UserHomeDir(); err == nil {
			data = filepath.Join(home, ".local", "share")
		}
	}
	return filepath.Join(data, "gnome-shell", "extensions")
}

// connectShell opens the session bus and checks that the extensions
// service is present.
func connectShell(ctx context.Context) (caller, func() error, error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to connect to session bus: %v", ErrUnavailable, err)
	}

	var owned bool
	if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, shellService).Store(&owned); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !owned {
		conn.Close()
		return nil, nil, ErrUnavailable
	}

	return conn.Object(shellService, dbus.ObjectPath(shellPath)), conn.Close, nil
}

// Path returns the directory the extension is installed to.
func (m *Manager) Path() string {
	return filepath.Join(m.dir, m.uuid)
}

// Install writes the extension files and asks the shell to enable it. The
// files stay in place when the shell cannot be reached; the shell picks them
// up on the next login.
func (m *Manager) Install(ctx context.Context) error {
	log := logger.WithComponent("extension")

	if err := m.writeFiles(); err != nil {
		return err
	}
	log.Info().Str("path", m.Path()).Msg("Extension files installed")

	obj, closeFn, err := m.connect(ctx)
	if err != nil {
		return fmt.Errorf("extension installed but not enabled: %w", err)
	}
	defer closeFn()

	var ok bool
	if err := obj.CallWithContext(ctx, shellInterface+".EnableExtension", 0, m.uuid).Store(&ok); err != nil {
		return fmt.Errorf("failed to enable extension %s: %w", m.uuid, err)
	}
	if !ok {
		log.Warn().Str("uuid", m.uuid).Msg("Shell has not loaded the extension yet; it will be enabled after the next login")
	}
	return nil
}

// Uninstall asks the shell to uninstall the extension and removes any files
// left behind. An unreachable shell is not an error.
func (m *Manager) Uninstall(ctx context.Context) error {
	log := logger.WithComponent("extension")

	obj, closeFn, err := m.connect(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Removing extension files without the shell")
	} else {
		defer closeFn()
		var ok bool
		if err := obj.CallWithContext(ctx, shellInterface+".UninstallExtension", 0, m.uuid).Store(&ok); err != nil {
			log.Warn().Err(err).Str("uuid", m.uuid).Msg("UninstallExtension failed")
		}
	}

	if err := os.RemoveAll(m.Path()); err != nil {
		return fmt.Errorf("failed to remove %s: %w", m.Path(), err)
	}
	log.Info().Str("uuid", m.uuid).Msg("Extension uninstalled")
	return nil
}

// Status reports whether the extension files exist and what state the
// shell reports. Without a reachable shell only the on-disk part is filled
// in and the error wraps ErrUnavailable.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	st := Status{
		UUID:  m.uuid,
		Path:  m.Path(),
		State: "unknown",
	}
	if _, err := os.Stat(filepath.Join(m.Path(), "metadata.json")); err == nil {
		st.Installed = true
	}

	obj, closeFn, err := m.connect(ctx)
	if err != nil {
		return st, err
	}
	defer closeFn()

	var info map[string]dbus.Variant
	if err := obj.CallWithContext(ctx, shellInterface+".GetExtensionInfo", 0, m.uuid).Store(&info); err != nil {
		return st, fmt.Errorf("failed to get extension info: %w", err)
	}

	state, ok := info["state"]
	if !ok {
		st.State = "not loaded"
		return st, nil
	}
	var code float64
	if err := state.Store(&code); err != nil {
		return st, fmt.Errorf("unexpected state value %v: %w", state, err)
	}
	st.State = stateName(int(code))
	st.Enabled = int(code) == stateEnabled
	return st, nil
}

func stateName(code int) string {
	switch code {
	case stateEnabled:
		return "enabled"
	case stateDisabled:
		return "disabled"
	case stateError:
		return "error"
	case stateOutOfDate:
		return "out of date"
	case stateInitialized:
		return "initialized"
	case stateUninstalled:
		return "uninstalled"
	default:
		return fmt.Sprintf("state %d", code)
	}
}

type metadata struct {
	UUID          string   `json:"uuid"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	ShellVersion  []string `json:"shell-version"`
	URL           string   `json:"url"`
	VersionString string   `json:"version-name"`
}

func (m *Manager) writeFiles() error {
	dir := m.Path()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create extension directory: %w", err)
	}

	meta, err := json.MarshalIndent(metadata{
		UUID:          m.uuid,
		Name:          "xwin",
		Description:   "Exposes the focused and open windows on the session bus for xwin.",
		ShellVersion:  shellVersions,
		URL:           "https://github.com/bryanchriswhite/xwin",
		VersionString: "1",
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), meta, 0644); err != nil {
		return fmt.Errorf("failed to write metadata.json: %w", err)
	}

	js, err := assets.ReadFile("assets/extension.js")
	if err != nil {
		return fmt.Errorf("failed to read bundled extension: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "extension.js"), js, 0644); err != nil {
		return fmt.Errorf("failed to write extension.js: %w", err)
	}
	return nil
}
