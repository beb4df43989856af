package window

// API is the query surface handed to callers. It turns the backend's
// nil/empty answers into the stable value contract: a sentinel record for
// "no active window" and a non-nil list that never holds a sentinel.
type API struct {
	backend Backend
}

// NewAPI wraps b.
func NewAPI(b Backend) *API {
	return &API{backend: b}
}

// NewPlatformAPI wraps the backend compiled in for this target.
func NewPlatformAPI(opts Options) *API {
	return NewAPI(NewPlatformBackend(opts))
}

// Backend returns the wrapped backend.
func (a *API) Backend() Backend {
	return a.backend
}

// GetActiveWindow returns the focused window, or Sentinel(os) when there is
// none. It never fails.
func (a *API) GetActiveWindow() WindowInfo {
	if w := a.backend.ActiveWindow(); w != nil && w.Valid() {
		return *w
	}
	return Sentinel(a.backend.OS())
}

// GetOpenWindows returns the open application windows in window manager
// order. The result is empty, not nil, when nothing can be listed.
func (a *API) GetOpenWindows() []WindowInfo {
	listed := a.backend.OpenWindows()
	windows := make([]WindowInfo, 0, len(listed))
	for _, w := range listed {
		if w.Valid() {
			windows = append(windows, w)
		}
	}
	return windows
}
