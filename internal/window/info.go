package window

// WindowInfo is the normalized record every backend produces for one window.
// A record with ID 0 is the "no window" sentinel; all its other fields except
// OS are zero.
type WindowInfo struct {
	ID       uint32         `json:"id" mapstructure:"id"`
	OS       string         `json:"os" mapstructure:"os"`
	Title    string         `json:"title" mapstructure:"title"`
	Position WindowPosition `json:"position" mapstructure:"position"`
	Info     ProcessInfo    `json:"info" mapstructure:"info"`
	Usage    UsageInfo      `json:"usage" mapstructure:"usage"`
	URL      string         `json:"url,omitempty" mapstructure:"url"`
}

// WindowPosition is the window's top-left corner in root (screen)
// coordinates plus its size.
type WindowPosition struct {
	X            int  `json:"x" mapstructure:"x"`
	Y            int  `json:"y" mapstructure:"y"`
	Width        int  `json:"width" mapstructure:"width"`
	Height       int  `json:"height" mapstructure:"height"`
	IsFullScreen bool `json:"is_full_screen" mapstructure:"is_full_screen"`
}

// ProcessInfo describes the process owning a window.
type ProcessInfo struct {
	ProcessID uint32 `json:"process_id" mapstructure:"process_id"`
	Path      string `json:"path" mapstructure:"path"`
	Name      string `json:"name" mapstructure:"name"`
	ExecName  string `json:"exec_name" mapstructure:"exec_name"`
}

// UsageInfo holds resource usage of the owning process. Memory is in
// backend-native units: pages on the X11 backend.
type UsageInfo struct {
	Memory uint32 `json:"memory" mapstructure:"memory"`
}

// Sentinel returns the "no window" record for the given backend tag.
func Sentinel(os string) WindowInfo {
	return WindowInfo{OS: os}
}

// Valid reports whether the record refers to a real window.
func (w WindowInfo) Valid() bool {
	return w.ID != 0
}

// SameFocus reports whether two observations describe the same focus state.
// Only the window handle, title and owning process are compared; geometry and
// memory usage are allowed to drift.
func (w WindowInfo) SameFocus(other WindowInfo) bool {
	return w.ID == other.ID &&
		w.Title == other.Title &&
		w.Info.ProcessID == other.Info.ProcessID
}
