//go:build linux

package window

import "github.com/bryanchriswhite/xwin/internal/process"

// NewPlatformBackend returns the X11 backend.
func NewPlatformBackend(opts Options) Backend {
	return NewX11Backend(opts.Display, process.NewResolver())
}
