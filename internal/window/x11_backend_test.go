package window

import (
	"errors"
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/xwin/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveWindowResolvesRecord(t *testing.T) {
	x := newFakeX()
	x.addClient(0x3a00007, 4242, "navigator\x00Firefox\x00", "Inbox · Mozilla Firefox", &fakeWindow{
		absX: 100, absY: 200,
		localX: 3, localY: 25,
		width: 800, height: 600,
	})
	x.setActive(0x3a00007)

	procs := &fakeProcs{details: map[uint32]process.Details{
		4242: {Path: "/usr/lib/firefox/firefox", ExecName: "firefox", Memory: 51234},
	}}

	got := newTestBackend(x, procs).ActiveWindow()
	require.NotNil(t, got)

	assert.Equal(t, WindowInfo{
		ID:    0x3a00007,
		OS:    "linux",
		Title: "Inbox · Mozilla Firefox",
		Position: WindowPosition{
			X: 100, Y: 200, Width: 800, Height: 600,
		},
		Info: ProcessInfo{
			ProcessID: 4242,
			Path:      "/usr/lib/firefox/firefox",
			Name:      "Firefox",
			ExecName:  "firefox",
		},
		Usage: UsageInfo{Memory: 51234},
	}, *got)
	assert.Equal(t, []uint32{4242}, procs.calls)
	assert.True(t, x.closed, "connection should be closed after the query")
}

func TestActiveWindowGeometryRoundTrip(t *testing.T) {
	tests := []struct {
		name           string
		absX, absY     int16
		localX, localY int16
		w, h           uint16
	}{
		{name: "undecorated at origin", w: 1920, h: 1080},
		{name: "reparented frame offset", absX: 640, absY: 480, localX: 2, localY: 30, w: 400, h: 300},
		{name: "second monitor", absX: 2560, absY: 0, localX: 0, localY: 0, w: 1280, h: 1024},
		{name: "partially off screen", absX: -50, absY: -20, localX: 1, localY: 1, w: 300, h: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := newFakeX()
			x.addClient(0x400001, 77, "term\x00Term\x00", "shell", &fakeWindow{
				absX: tt.absX, absY: tt.absY,
				localX: tt.localX, localY: tt.localY,
				width: tt.w, height: tt.h,
			})
			x.setActive(0x400001)

			got := newTestBackend(x, nil).ActiveWindow()
			require.NotNil(t, got)
			assert.Equal(t, WindowPosition{
				X:      int(tt.absX),
				Y:      int(tt.absY),
				Width:  int(tt.w),
				Height: int(tt.h),
			}, got.Position)
		})
	}
}

func TestActiveWindowDegradesToNil(t *testing.T) {
	tests := []struct {
		name  string
		setup func(x *fakeX)
	}{
		{
			name: "no active window atom",
			setup: func(x *fakeX) {
				x.forget(atomActiveWindow)
			},
		},
		{
			name: "no root window",
			setup: func(x *fakeX) {
				x.noRoot = true
			},
		},
		{
			name:  "property not set",
			setup: func(x *fakeX) {},
		},
		{
			name: "active window is None",
			setup: func(x *fakeX) {
				x.setActive(0)
			},
		},
		{
			name: "property read fails",
			setup: func(x *fakeX) {
				x.setActive(0x500001)
				x.failing[x.atoms[atomActiveWindow]] = true
			},
		},
		{
			name: "window has no pid",
			setup: func(x *fakeX) {
				x.addWindow(0x500001, &fakeWindow{width: 10, height: 10})
				x.setActive(0x500001)
			},
		},
		{
			name: "window manager does not know _NET_WM_PID",
			setup: func(x *fakeX) {
				x.addClient(0x500001, 99, "a\x00A\x00", "a", &fakeWindow{width: 10, height: 10})
				x.setActive(0x500001)
				x.forget(atomWmPid)
			},
		},
		{
			name: "active window vanished",
			setup: func(x *fakeX) {
				x.setActive(0x7777777)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := newFakeX()
			tt.setup(x)

			b := newTestBackend(x, &fakeProcs{})
			assert.Nil(t, b.ActiveWindow())

			sentinel := NewAPI(b).GetActiveWindow()
			assert.Equal(t, Sentinel("linux"), sentinel)
			assert.False(t, sentinel.Valid())
		})
	}
}

func TestDialFailureDegrades(t *testing.T) {
	b := &X11Backend{
		dial: func(string) (protocol, error) {
			return nil, errors.New("connection refused")
		},
	}

	assert.Nil(t, b.ActiveWindow())
	assert.Nil(t, b.OpenWindows())

	api := NewAPI(b)
	assert.Equal(t, Sentinel("linux"), api.GetActiveWindow())
	windows := api.GetOpenWindows()
	assert.NotNil(t, windows)
	assert.Empty(t, windows)
}

func TestTitleFallback(t *testing.T) {
	tests := []struct {
		name  string
		setup func(x *fakeX, win xproto.Window)
		want  string
	}{
		{
			name: "prefers _NET_WM_NAME",
			setup: func(x *fakeX, win xproto.Window) {
				x.setPropAtom(win, xproto.AtomWmName, xproto.AtomString, 8, []byte("legacy"))
			},
			want: "modern ✓",
		},
		{
			name: "falls back to WM_NAME",
			setup: func(x *fakeX, win xproto.Window) {
				delete(x.windows[win].props, x.atoms[atomWmName])
				x.setPropAtom(win, xproto.AtomWmName, xproto.AtomString, 8, []byte("legacy"))
			},
			want: "legacy",
		},
		{
			name: "latin-1 WM_NAME",
			setup: func(x *fakeX, win xproto.Window) {
				delete(x.windows[win].props, x.atoms[atomWmName])
				x.setPropAtom(win, xproto.AtomWmName, xproto.AtomString, 8, []byte("caf\xe9"))
			},
			want: "café",
		},
		{
			name: "no title at all",
			setup: func(x *fakeX, win xproto.Window) {
				delete(x.windows[win].props, x.atoms[atomWmName])
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := newFakeX()
			x.addClient(0x600001, 5, "x\x00X\x00", "modern ✓", &fakeWindow{width: 1, height: 1})
			tt.setup(x, 0x600001)
			x.setActive(0x600001)

			got := newTestBackend(x, nil).ActiveWindow()
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Title)
		})
	}
}

func TestPositionFailuresLeaveZero(t *testing.T) {
	x := newFakeX()
	x.addClient(0x700001, 8, "a\x00A\x00", "no geometry", &fakeWindow{noGeometry: true})
	x.addClient(0x700002, 8, "a\x00A\x00", "no translate", &fakeWindow{
		absX: 10, absY: 10, width: 50, height: 40, noTranslate: true,
	})

	x.setActive(0x700001)
	got := newTestBackend(x, nil).ActiveWindow()
	require.NotNil(t, got)
	assert.Equal(t, WindowPosition{}, got.Position)
	assert.Equal(t, "no geometry", got.Title)

	x.setActive(0x700002)
	got = newTestBackend(x, nil).ActiveWindow()
	require.NotNil(t, got)
	assert.Equal(t, WindowPosition{Width: 50, Height: 40}, got.Position)
}

func TestFullScreenState(t *testing.T) {
	x := newFakeX()
	x.addClient(0x800001, 9, "mpv\x00mpv\x00", "movie.mkv", &fakeWindow{width: 1920, height: 1080})
	x.setProp(0x800001, atomWmState, xproto.AtomAtom, 32, u32(uint32(x.atoms[atomWmStateFullscreen])))
	x.setActive(0x800001)

	got := newTestBackend(x, nil).ActiveWindow()
	require.NotNil(t, got)
	assert.True(t, got.Position.IsFullScreen)

	x.forget(atomWmStateFullscreen)
	got = newTestBackend(x, nil).ActiveWindow()
	require.NotNil(t, got)
	assert.False(t, got.Position.IsFullScreen)
}

func TestProcessLookupFailureKeepsWindow(t *testing.T) {
	x := newFakeX()
	x.addClient(0x900001, 31337, "code\x00Code\x00", "main.go", &fakeWindow{width: 10, height: 10})
	x.setActive(0x900001)

	procs := &fakeProcs{err: errors.New("permission denied")}
	got := newTestBackend(x, procs).ActiveWindow()
	require.NotNil(t, got)

	assert.Equal(t, uint32(0x900001), got.ID)
	assert.Equal(t, uint32(31337), got.Info.ProcessID)
	assert.Equal(t, "Code", got.Info.Name)
	assert.Empty(t, got.Info.Path)
	assert.Empty(t, got.Info.ExecName)
	assert.Zero(t, got.Usage.Memory)
}

func TestOpenWindowsFiltersNonNormal(t *testing.T) {
	x := newFakeX()
	x.addClient(0xa1, 10, "panel\x00Panel\x00", "panel", &fakeWindow{width: 1920, height: 30})
	x.setProp(0xa1, atomWmWindowType, xproto.AtomAtom, 32, u32(uint32(x.atoms["_NET_WM_WINDOW_TYPE_DOCK"])))

	x.addClient(0xa2, 11, "term\x00Term\x00", "first", &fakeWindow{width: 100, height: 100})

	x.addWindow(0xa3, &fakeWindow{width: 5, height: 5})
	x.setProp(0xa3, atomWmWindowType, xproto.AtomAtom, 32, u32(uint32(x.atoms[atomWmWindowTypeNormal])))

	x.addClient(0xa4, 12, "edit\x00Edit\x00", "second", &fakeWindow{width: 200, height: 100})
	x.setProp(0xa4, atomWmWindowType, xproto.AtomAtom, 32,
		u32(uint32(x.atoms["_NET_WM_WINDOW_TYPE_DIALOG"]), uint32(x.atoms[atomWmWindowTypeNormal])))

	x.addClient(0xa5, 13, "dlg\x00Dlg\x00", "dialog", &fakeWindow{width: 50, height: 50})
	x.setProp(0xa5, atomWmWindowType, xproto.AtomAtom, 32, u32(uint32(x.atoms["_NET_WM_WINDOW_TYPE_DIALOG"])))

	x.addClient(0xa6, 14, "old\x00Old\x00", "untyped", &fakeWindow{width: 50, height: 50})
	delete(x.windows[0xa6].props, x.atoms[atomWmWindowType])

	x.setStacking(0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6)

	windows := NewAPI(newTestBackend(x, nil)).GetOpenWindows()
	require.Len(t, windows, 2)
	assert.Equal(t, uint32(0xa2), windows[0].ID)
	assert.Equal(t, "first", windows[0].Title)
	assert.Equal(t, uint32(0xa4), windows[1].ID)
	assert.Equal(t, "second", windows[1].Title)
	for _, w := range windows {
		assert.True(t, w.Valid())
		assert.Equal(t, "linux", w.OS)
	}
}

func TestOpenWindowsKeepsStackingOrder(t *testing.T) {
	x := newFakeX()
	order := []xproto.Window{0xb3, 0xb1, 0xb2}
	for i, w := range order {
		x.addClient(w, uint32(100+i), "c\x00C\x00", "w", &fakeWindow{width: 1, height: 1})
	}
	x.setStacking(order...)

	windows := newTestBackend(x, nil).OpenWindows()
	require.Len(t, windows, 3)
	for i, w := range order {
		assert.Equal(t, uint32(w), windows[i].ID)
	}
}

func TestOpenWindowsWithoutTypeAtomsIsEmpty(t *testing.T) {
	for _, missing := range []string{atomWmWindowType, atomWmWindowTypeNormal} {
		t.Run(missing, func(t *testing.T) {
			x := newFakeX()
			x.addClient(0xc1, 20, "a\x00A\x00", "a", &fakeWindow{width: 1, height: 1})
			x.addClient(0xc2, 21, "b\x00B\x00", "b", &fakeWindow{width: 1, height: 1})
			x.setStacking(0xc1, 0xc2)
			x.forget(missing)

			windows := NewAPI(newTestBackend(x, nil)).GetOpenWindows()
			assert.Empty(t, windows)
		})
	}
}

func TestOpenWindowsWithoutStackingList(t *testing.T) {
	x := newFakeX()
	x.addClient(0xd1, 30, "a\x00A\x00", "a", &fakeWindow{width: 1, height: 1})
	x.forget(atomClientListStacking)

	assert.Nil(t, newTestBackend(x, nil).OpenWindows())
	assert.Empty(t, NewAPI(newTestBackend(x, nil)).GetOpenWindows())
}

func TestActiveWindowIsIdempotent(t *testing.T) {
	x := newFakeX()
	x.addClient(0xe1, 40, "a\x00A\x00", "same", &fakeWindow{absX: 5, absY: 6, width: 7, height: 8})
	x.setActive(0xe1)

	api := NewAPI(newTestBackend(x, &fakeProcs{details: map[uint32]process.Details{
		40: {Path: "/bin/a", ExecName: "a", Memory: 3},
	}}))

	first := api.GetActiveWindow()
	second := api.GetActiveWindow()
	assert.Equal(t, first, second)
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{name: "empty", in: nil, want: ""},
		{name: "ascii", in: []byte("xterm"), want: "xterm"},
		{name: "utf-8", in: []byte("日本語"), want: "日本語"},
		{name: "latin-1", in: []byte{'n', 0xe4, 'c', 'h', 's', 't', 'e'}, want: "nächste"},
		{name: "trailing nul", in: []byte("title\x00"), want: "title"},
		{name: "truncated utf-8 read as latin-1", in: []byte{'a', 0xe6, 0x97}, want: "aæ\u0097"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeText(tt.in))
		})
	}
}

func TestLastClassSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "navigator\x00Firefox\x00", want: "Firefox"},
		{in: "instance\x00", want: "instance"},
		{in: "\x00\x00", want: ""},
		{in: "a\x00\x00", want: "a"},
		{in: "only", want: "only"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, lastClassSegment([]byte(tt.in)), "WM_CLASS %q", tt.in)
	}
}
