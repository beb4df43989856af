package window

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// protocol is the read-only subset of X11 requests the backend issues.
type protocol interface {
	// Root returns the root window of the first screen.
	Root() (xproto.Window, bool)
	InternAtom(name string, onlyIfExists bool) (xproto.Atom, error)
	GetProperty(win xproto.Window, property, typ xproto.Atom, length uint32) (*xproto.GetPropertyReply, error)
	GetGeometry(win xproto.Window) (*xproto.GetGeometryReply, error)
	TranslateCoordinates(src, dst xproto.Window, x, y int16) (*xproto.TranslateCoordinatesReply, error)
	Close()
}

// xgbConn issues requests over a real X server connection.
type xgbConn struct {
	conn *xgb.Conn
}

// dialX11 opens a connection to display. An empty display uses $DISPLAY.
func dialX11(display string) (protocol, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	return &xgbConn{conn: conn}, nil
}

func (c *xgbConn) Root() (xproto.Window, bool) {
	setup := xproto.Setup(c.conn)
	if setup == nil || len(setup.Roots) == 0 {
		return 0, false
	}
	return setup.Roots[0].Root, true
}

func (c *xgbConn) InternAtom(name string, onlyIfExists bool) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(c.conn, onlyIfExists, uint16(len(name)), name).Reply()
	if err != nil {
		return xproto.AtomNone, err
	}
	return reply.Atom, nil
}

func (c *xgbConn) GetProperty(win xproto.Window, property, typ xproto.Atom, length uint32) (*xproto.GetPropertyReply, error) {
	return xproto.GetProperty(c.conn, false, win, property, typ, 0, length).Reply()
}

func (c *xgbConn) GetGeometry(win xproto.Window) (*xproto.GetGeometryReply, error) {
	return xproto.GetGeometry(c.conn, xproto.Drawable(win)).Reply()
}

func (c *xgbConn) TranslateCoordinates(src, dst xproto.Window, x, y int16) (*xproto.TranslateCoordinatesReply, error) {
	return xproto.TranslateCoordinates(c.conn, src, dst, x, y).Reply()
}

func (c *xgbConn) Close() {
	c.conn.Close()
}
