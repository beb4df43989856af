//go:build !linux

package window

import "runtime"

// NewPlatformBackend returns a backend that reports no windows. The Win32 and
// Cocoa backends are not part of this build.
func NewPlatformBackend(opts Options) Backend {
	return unsupportedBackend{os: runtime.GOOS}
}

type unsupportedBackend struct {
	os string
}

func (b unsupportedBackend) Name() string              { return "unsupported" }
func (b unsupportedBackend) OS() string                { return b.os }
func (b unsupportedBackend) ActiveWindow() *WindowInfo { return nil }
func (b unsupportedBackend) OpenWindows() []WindowInfo { return nil }
