package window

import (
	"bytes"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/xwin/internal/logger"
	"github.com/bryanchriswhite/xwin/internal/process"
	"golang.org/x/text/encoding/charmap"
)

// Extended window manager hint atoms read by the backend.
const (
	atomActiveWindow       = "_NET_ACTIVE_WINDOW"
	atomClientListStacking = "_NET_CLIENT_LIST_STACKING"
	atomWmPid              = "_NET_WM_PID"
	atomWmName             = "_NET_WM_NAME"
	atomWmWindowType       = "_NET_WM_WINDOW_TYPE"
	atomWmWindowTypeNormal = "_NET_WM_WINDOW_TYPE_NORMAL"
	atomWmState            = "_NET_WM_STATE"
	atomWmStateFullscreen  = "_NET_WM_STATE_FULLSCREEN"
)

// unbounded is the GetProperty length that reads the whole value.
const unbounded = math.MaxUint32

// ProcessLookup resolves the process owning a window.
type ProcessLookup interface {
	Lookup(pid uint32) (process.Details, error)
}

// X11Backend implements Backend using extended window manager hints.
// Every query opens its own connection, so an X11Backend is safe for
// concurrent use.
type X11Backend struct {
	display string
	dial    func(display string) (protocol, error)
	procs   ProcessLookup
}

var _ Backend = (*X11Backend)(nil)

// NewX11Backend creates a backend for display. An empty display uses $DISPLAY.
func NewX11Backend(display string, procs ProcessLookup) *X11Backend {
	return &X11Backend{
		display: display,
		dial:    dialX11,
		procs:   procs,
	}
}

// Name returns the backend name
func (b *X11Backend) Name() string {
	return "x11"
}

// OS returns the tag stored in WindowInfo.OS.
func (b *X11Backend) OS() string {
	return "linux"
}

// ActiveWindow returns the window named by _NET_ACTIVE_WINDOW on the root
// window, or nil when it cannot be resolved.
func (b *X11Backend) ActiveWindow() *WindowInfo {
	s, ok := b.open()
	if !ok {
		return nil
	}
	defer s.close()
	return s.activeWindow()
}

// OpenWindows returns the normal windows of _NET_CLIENT_LIST_STACKING in the
// order the window manager reports them.
func (b *X11Backend) OpenWindows() []WindowInfo {
	s, ok := b.open()
	if !ok {
		return nil
	}
	defer s.close()
	return s.openWindows()
}

func (b *X11Backend) open() (*session, bool) {
	x, err := b.dial(b.display)
	if err != nil {
		logger.WithComponent("x11-backend").Debug().Err(err).Str("display", b.display).Msg("Cannot open display")
		return nil, false
	}
	return newSession(x, b.procs, b.OS()), true
}

// session holds one connection and the atoms resolved on it.
type session struct {
	x     protocol
	procs ProcessLookup
	os    string
	atoms map[string]xproto.Atom
}

func newSession(x protocol, procs ProcessLookup, os string) *session {
	return &session{
		x:     x,
		procs: procs,
		os:    os,
		atoms: make(map[string]xproto.Atom),
	}
}

func (s *session) close() {
	s.x.Close()
}

func (s *session) activeWindow() *WindowInfo {
	log := logger.WithComponent("x11-backend")

	root, ok := s.x.Root()
	if !ok {
		log.Debug().Msg("activeWindow: no root window")
		return nil
	}

	active := s.atom(atomActiveWindow)
	if active == xproto.AtomNone {
		log.Debug().Msg("activeWindow: window manager does not advertise _NET_ACTIVE_WINDOW")
		return nil
	}

	reply, err := s.x.GetProperty(root, active, xproto.AtomWindow, 1)
	if err != nil {
		log.Debug().Err(err).Msg("activeWindow: failed to read _NET_ACTIVE_WINDOW")
		return nil
	}

	handles := windows32(reply)
	if len(handles) == 0 || handles[0] == 0 {
		return nil
	}

	return s.resolve(handles[0])
}

func (s *session) openWindows() []WindowInfo {
	log := logger.WithComponent("x11-backend")

	root, ok := s.x.Root()
	if !ok {
		log.Debug().Msg("openWindows: no root window")
		return nil
	}

	stacking := s.atom(atomClientListStacking)
	if stacking == xproto.AtomNone {
		log.Debug().Msg("openWindows: window manager does not advertise _NET_CLIENT_LIST_STACKING")
		return nil
	}

	reply, err := s.x.GetProperty(root, stacking, xproto.AtomWindow, unbounded)
	if err != nil {
		log.Debug().Err(err).Msg("openWindows: failed to read _NET_CLIENT_LIST_STACKING")
		return nil
	}

	handles := windows32(reply)
	log.Debug().Int("count", len(handles)).Msg("openWindows: got client list")

	windows := make([]WindowInfo, 0, len(handles))
	for _, win := range handles {
		info := s.resolve(win)
		if info == nil {
			log.Debug().Uint32("winID", uint32(win)).Msg("openWindows: skipping window without pid")
			continue
		}
		if !s.isNormal(win) {
			log.Debug().Uint32("winID", uint32(win)).Msg("openWindows: skipping non-normal window")
			continue
		}
		windows = append(windows, *info)
	}
	return windows
}

// resolve builds the record for one window. A window without _NET_WM_PID
// resolves to nil.
func (s *session) resolve(win xproto.Window) *WindowInfo {
	pid := s.pid(win)
	if pid == 0 {
		return nil
	}

	info := &WindowInfo{
		ID:       uint32(win),
		OS:       s.os,
		Title:    s.title(win),
		Position: s.position(win),
		Info: ProcessInfo{
			ProcessID: pid,
			Name:      s.className(win),
		},
	}

	if s.procs != nil {
		details, err := s.procs.Lookup(pid)
		if err != nil {
			logger.WithComponent("x11-backend").Debug().
				Err(err).
				Uint32("pid", pid).
				Msg("resolve: process lookup incomplete")
		}
		info.Info.Path = details.Path
		info.Info.ExecName = details.ExecName
		info.Usage.Memory = details.Memory
	}

	return info
}

func (s *session) pid(win xproto.Window) uint32 {
	atom := s.atom(atomWmPid)
	if atom == xproto.AtomNone {
		return 0
	}
	reply, err := s.x.GetProperty(win, atom, xproto.GetPropertyTypeAny, 1)
	if err != nil || reply == nil || reply.Format != 32 || len(reply.Value) < 4 {
		return 0
	}
	return xgb.Get32(reply.Value)
}

// title prefers the UTF-8 _NET_WM_NAME and falls back to the legacy WM_NAME.
func (s *session) title(win xproto.Window) string {
	if atom := s.atom(atomWmName); atom != xproto.AtomNone {
		if raw := s.bytesProperty(win, atom, xproto.GetPropertyTypeAny); len(raw) > 0 {
			return decodeText(raw)
		}
	}
	return decodeText(s.bytesProperty(win, xproto.AtomWmName, xproto.GetPropertyTypeAny))
}

// className returns the last non-empty segment of WM_CLASS.
func (s *session) className(win xproto.Window) string {
	raw := s.bytesProperty(win, xproto.AtomWmClass, xproto.AtomString)
	return lastClassSegment(raw)
}

// position returns the window's top-left corner in root coordinates.
// Any failed request leaves the zero position.
func (s *session) position(win xproto.Window) WindowPosition {
	var pos WindowPosition

	geom, err := s.x.GetGeometry(win)
	if err != nil || geom == nil {
		return pos
	}
	pos.Width = int(geom.Width)
	pos.Height = int(geom.Height)

	// TranslateCoordinates maps a point in the window's own space; mapping
	// the local offset and subtracting it again yields the origin.
	tr, err := s.x.TranslateCoordinates(win, geom.Root, geom.X, geom.Y)
	if err == nil && tr != nil {
		pos.X = int(tr.DstX) - int(geom.X)
		pos.Y = int(tr.DstY) - int(geom.Y)
	}

	pos.IsFullScreen = s.hasAtom(win, atomWmState, atomWmStateFullscreen)
	return pos
}

// isNormal reports whether the window's type list contains
// _NET_WM_WINDOW_TYPE_NORMAL. A window manager lacking either atom fails
// every window.
func (s *session) isNormal(win xproto.Window) bool {
	return s.hasAtom(win, atomWmWindowType, atomWmWindowTypeNormal)
}

// hasAtom reports whether the ATOM list property named list contains the
// atom named member. Both atoms must exist on the server.
func (s *session) hasAtom(win xproto.Window, list, member string) bool {
	listAtom := s.atom(list)
	memberAtom := s.atom(member)
	if listAtom == xproto.AtomNone || memberAtom == xproto.AtomNone {
		return false
	}

	reply, err := s.x.GetProperty(win, listAtom, xproto.AtomAtom, unbounded)
	if err != nil {
		return false
	}
	for _, a := range atoms32(reply) {
		if a == memberAtom {
			return true
		}
	}
	return false
}

// atom resolves name with only-if-exists semantics, so AtomNone means the
// window manager never registered it.
func (s *session) atom(name string) xproto.Atom {
	if a, ok := s.atoms[name]; ok {
		return a
	}
	a, err := s.x.InternAtom(name, true)
	if err != nil {
		logger.WithComponent("x11-backend").Debug().Err(err).Str("atom", name).Msg("InternAtom failed")
		a = xproto.AtomNone
	}
	s.atoms[name] = a
	return a
}

func (s *session) bytesProperty(win xproto.Window, property, typ xproto.Atom) []byte {
	reply, err := s.x.GetProperty(win, property, typ, unbounded)
	if err != nil || reply == nil {
		return nil
	}
	return reply.Value
}

// values32 decodes a format-32 property value.
func values32(reply *xproto.GetPropertyReply) []uint32 {
	if reply == nil || reply.Format != 32 {
		return nil
	}
	vals := make([]uint32, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		vals = append(vals, xgb.Get32(reply.Value[i:]))
	}
	return vals
}

func windows32(reply *xproto.GetPropertyReply) []xproto.Window {
	vals := values32(reply)
	wins := make([]xproto.Window, len(vals))
	for i, v := range vals {
		wins[i] = xproto.Window(v)
	}
	return wins
}

func atoms32(reply *xproto.GetPropertyReply) []xproto.Atom {
	vals := values32(reply)
	atoms := make([]xproto.Atom, len(vals))
	for i, v := range vals {
		atoms[i] = xproto.Atom(v)
	}
	return atoms
}

// decodeText converts a text property to a Go string. Valid UTF-8 is kept
// as is; anything else is read as ISO-8859-1, the encoding of the STRING
// type, which maps every byte and never fails.
func decodeText(raw []byte) string {
	raw = bytes.TrimRight(raw, "\x00")
	if utf8.Valid(raw) {
		return string(raw)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "\uFFFD")
	}
	return string(out)
}

func lastClassSegment(raw []byte) string {
	parts := strings.Split(string(raw), "\x00")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return decodeText([]byte(parts[i]))
		}
	}
	return ""
}
