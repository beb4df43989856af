package window

// Backend is the capability every operating-system window backend provides.
// Exactly one implementation is compiled in per target; see NewPlatformBackend.
type Backend interface {
	// Name returns the backend name (e.g., "x11")
	Name() string

	// OS returns the tag written to WindowInfo.OS.
	OS() string

	// ActiveWindow returns the focused window, or nil when there is none or
	// the window system cannot be queried.
	ActiveWindow() *WindowInfo

	// OpenWindows returns the application windows currently mapped by the
	// window manager. It returns nil when the window system cannot be queried.
	OpenWindows() []WindowInfo
}

// Options configure the platform backend.
type Options struct {
	// Display is the X display name; empty means $DISPLAY.
	Display string
}
