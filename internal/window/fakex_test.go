package window

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/xwin/internal/process"
)

// fakeX is an in-memory X server answering the requests of protocol.
type fakeX struct {
	root     xproto.Window
	noRoot   bool
	atoms    map[string]xproto.Atom
	nextAtom xproto.Atom
	windows  map[xproto.Window]*fakeWindow
	failing  map[xproto.Atom]bool
	closed   bool
}

type fakeProp struct {
	typ    xproto.Atom
	format byte
	value  []byte
}

// fakeWindow is a top-level client. absX/absY is its origin in root
// coordinates; localX/localY is the offset GetGeometry reports, relative to
// the parent (a reparenting window manager's frame).
type fakeWindow struct {
	props          map[xproto.Atom]fakeProp
	absX, absY     int16
	localX, localY int16
	width, height  uint16
	noGeometry     bool
	noTranslate    bool
}

var ewmhAtoms = []string{
	atomActiveWindow,
	atomClientListStacking,
	atomWmPid,
	atomWmName,
	atomWmWindowType,
	atomWmWindowTypeNormal,
	atomWmState,
	atomWmStateFullscreen,
	"_NET_WM_WINDOW_TYPE_DOCK",
	"_NET_WM_WINDOW_TYPE_DIALOG",
	"UTF8_STRING",
}

func newFakeX() *fakeX {
	f := &fakeX{
		root:     0x1e6,
		atoms:    make(map[string]xproto.Atom),
		nextAtom: 300,
		windows:  make(map[xproto.Window]*fakeWindow),
		failing:  make(map[xproto.Atom]bool),
	}
	f.windows[f.root] = &fakeWindow{props: make(map[xproto.Atom]fakeProp), width: 3840, height: 2160}
	for _, name := range ewmhAtoms {
		f.intern(name)
	}
	return f
}

func (f *fakeX) intern(name string) xproto.Atom {
	if a, ok := f.atoms[name]; ok {
		return a
	}
	f.nextAtom++
	f.atoms[name] = f.nextAtom
	return f.nextAtom
}

func (f *fakeX) forget(name string) {
	delete(f.atoms, name)
}

func (f *fakeX) setProp(win xproto.Window, name string, typ xproto.Atom, format byte, value []byte) {
	f.windows[win].props[f.intern(name)] = fakeProp{typ: typ, format: format, value: value}
}

func (f *fakeX) setPropAtom(win xproto.Window, prop xproto.Atom, typ xproto.Atom, format byte, value []byte) {
	f.windows[win].props[prop] = fakeProp{typ: typ, format: format, value: value}
}

func (f *fakeX) addWindow(id xproto.Window, w *fakeWindow) {
	if w.props == nil {
		w.props = make(map[xproto.Atom]fakeProp)
	}
	f.windows[id] = w
}

// addClient adds a normal application window with a pid, class and title.
func (f *fakeX) addClient(id xproto.Window, pid uint32, class, title string, w *fakeWindow) {
	f.addWindow(id, w)
	f.setProp(id, atomWmPid, xproto.AtomCardinal, 32, u32(pid))
	f.setPropAtom(id, xproto.AtomWmClass, xproto.AtomString, 8, []byte(class))
	f.setProp(id, atomWmName, f.intern("UTF8_STRING"), 8, []byte(title))
	f.setProp(id, atomWmWindowType, xproto.AtomAtom, 32, u32(uint32(f.atoms[atomWmWindowTypeNormal])))
}

func (f *fakeX) setActive(win xproto.Window) {
	f.setProp(f.root, atomActiveWindow, xproto.AtomWindow, 32, u32(uint32(win)))
}

func (f *fakeX) setStacking(wins ...xproto.Window) {
	vals := make([]uint32, len(wins))
	for i, w := range wins {
		vals[i] = uint32(w)
	}
	f.setProp(f.root, atomClientListStacking, xproto.AtomWindow, 32, u32(vals...))
}

func (f *fakeX) Root() (xproto.Window, bool) {
	if f.noRoot {
		return 0, false
	}
	return f.root, true
}

func (f *fakeX) InternAtom(name string, onlyIfExists bool) (xproto.Atom, error) {
	if a, ok := f.atoms[name]; ok {
		return a, nil
	}
	if onlyIfExists {
		return xproto.AtomNone, nil
	}
	return f.intern(name), nil
}

func (f *fakeX) GetProperty(win xproto.Window, property, typ xproto.Atom, length uint32) (*xproto.GetPropertyReply, error) {
	w, ok := f.windows[win]
	if !ok {
		return nil, fmt.Errorf("BadWindow: 0x%x", uint32(win))
	}
	if f.failing[property] {
		return nil, errors.New("BadImplementation")
	}
	p, ok := w.props[property]
	if !ok {
		return &xproto.GetPropertyReply{Type: xproto.AtomNone}, nil
	}
	if typ != xproto.GetPropertyTypeAny && typ != p.typ {
		return &xproto.GetPropertyReply{
			Type:       p.typ,
			Format:     p.format,
			BytesAfter: uint32(len(p.value)),
		}, nil
	}

	value := p.value
	if limit := uint64(length) * 4; uint64(len(value)) > limit {
		value = value[:limit]
	}
	unit := uint32(1)
	if p.format > 8 {
		unit = uint32(p.format / 8)
	}
	return &xproto.GetPropertyReply{
		Format:     p.format,
		Type:       p.typ,
		BytesAfter: uint32(len(p.value) - len(value)),
		ValueLen:   uint32(len(value)) / unit,
		Value:      value,
	}, nil
}

func (f *fakeX) GetGeometry(win xproto.Window) (*xproto.GetGeometryReply, error) {
	w, ok := f.windows[win]
	if !ok || w.noGeometry {
		return nil, fmt.Errorf("BadDrawable: 0x%x", uint32(win))
	}
	return &xproto.GetGeometryReply{
		Root:   f.root,
		X:      w.localX,
		Y:      w.localY,
		Width:  w.width,
		Height: w.height,
	}, nil
}

func (f *fakeX) TranslateCoordinates(src, dst xproto.Window, x, y int16) (*xproto.TranslateCoordinatesReply, error) {
	w, ok := f.windows[src]
	if !ok || w.noTranslate {
		return nil, fmt.Errorf("BadWindow: 0x%x", uint32(src))
	}
	if dst != f.root {
		return nil, fmt.Errorf("unexpected destination 0x%x", uint32(dst))
	}
	return &xproto.TranslateCoordinatesReply{
		SameScreen: true,
		DstX:       w.absX + x,
		DstY:       w.absY + y,
	}, nil
}

func (f *fakeX) Close() {
	f.closed = true
}

func u32(vals ...uint32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		xgb.Put32(buf[i*4:], v)
	}
	return buf
}

// fakeProcs answers process lookups from a table.
type fakeProcs struct {
	details map[uint32]process.Details
	err     error
	calls   []uint32
}

func (p *fakeProcs) Lookup(pid uint32) (process.Details, error) {
	p.calls = append(p.calls, pid)
	return p.details[pid], p.err
}

func newTestBackend(x *fakeX, procs ProcessLookup) *X11Backend {
	return &X11Backend{
		dial: func(string) (protocol, error) {
			return x, nil
		},
		procs: procs,
	}
}
