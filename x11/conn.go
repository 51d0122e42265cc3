// Package x11 implements the window-system collaborator over the X
// protocol: window and counter creation, sync-counter negotiation with
// the compositor, event delivery, and framebuffer presentation.
package x11

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jezek/xgb"
	xsync "github.com/jezek/xgb/sync"
	"github.com/jezek/xgb/xproto"

	"github.com/michaeljclark/glxsync/config"
	"github.com/michaeljclark/glxsync/domain/framesync"
	"github.com/michaeljclark/glxsync/domain/protocol"
	"github.com/michaeljclark/glxsync/logging"
)

// atomSet holds the interned protocol atoms. The protocol cannot
// operate without them, so interning failure is setup-fatal.
type atomSet struct {
	WMProtocols             xproto.Atom
	WMDeleteWindow          xproto.Atom
	NetSupported            xproto.Atom
	NetWMMoveresize         xproto.Atom
	NetWMSyncRequest        xproto.Atom
	NetWMSyncRequestCounter xproto.Atom
	NetWMFrameDrawn         xproto.Atom
	NetWMFrameTimings       xproto.Atom
	NetWMPing               xproto.Atom
}

// Conn is an X server connection owning one top-level window and the
// two synchronization counters published to the compositor.
type Conn struct {
	x      *xgb.Conn
	screen *xproto.ScreenInfo
	window xproto.Window
	root   xproto.Window
	gc     xproto.Gcontext
	atoms  atomSet

	syncEnabled     bool
	haveSync        bool
	basicCounter    xsync.Counter
	extendedCounter xsync.Counter

	haveNetSupported bool
	supported        []xproto.Atom

	mu     sync.Mutex
	queue  []protocol.Event
	notify chan struct{}

	log *slog.Logger
}

const eventMask = xproto.EventMaskStructureNotify |
	xproto.EventMaskKeyPress | xproto.EventMaskKeyRelease |
	xproto.EventMaskPointerMotion |
	xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease |
	xproto.EventMaskExposure | xproto.EventMaskFocusChange |
	xproto.EventMaskVisibilityChange |
	xproto.EventMaskEnterWindow | xproto.EventMaskLeaveWindow |
	xproto.EventMaskPropertyChange

// Open connects to the display, creates the window, and negotiates the
// frame-synchronization protocol. Errors here are setup-fatal.
func Open(cfg *config.Config, log *slog.Logger) (*Conn, error) {
	if log == nil {
		log = logging.Discard()
	}

	x, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("x11: connect: %w", err)
	}

	c := &Conn{
		x:           x,
		screen:      xproto.Setup(x).DefaultScreen(x),
		syncEnabled: !cfg.NoSync,
		notify:      make(chan struct{}, 1),
		log:         log,
	}
	c.root = c.screen.Root

	if err := c.internAtoms(); err != nil {
		x.Close()
		return nil, err
	}
	if err := c.createWindow(cfg.Width, cfg.Height); err != nil {
		x.Close()
		return nil, err
	}
	if c.syncEnabled {
		c.initSync()
		c.scanSupported()
		c.setProtocols()
		c.setHints()
	} else {
		// still honor delete requests from the window manager
		c.setProtocols()
	}

	xproto.MapWindow(x, c.window)
	go c.readEvents()
	return c, nil
}

func (c *Conn) internAtoms() error {
	names := []struct {
		name string
		dst  *xproto.Atom
	}{
		{"WM_PROTOCOLS", &c.atoms.WMProtocols},
		{"WM_DELETE_WINDOW", &c.atoms.WMDeleteWindow},
		{"_NET_SUPPORTED", &c.atoms.NetSupported},
		{"_NET_WM_MOVERESIZE", &c.atoms.NetWMMoveresize},
		{"_NET_WM_SYNC_REQUEST", &c.atoms.NetWMSyncRequest},
		{"_NET_WM_SYNC_REQUEST_COUNTER", &c.atoms.NetWMSyncRequestCounter},
		{"_NET_WM_FRAME_DRAWN", &c.atoms.NetWMFrameDrawn},
		{"_NET_WM_FRAME_TIMINGS", &c.atoms.NetWMFrameTimings},
		{"_NET_WM_PING", &c.atoms.NetWMPing},
	}
	for _, n := range names {
		reply, err := xproto.InternAtom(c.x, false, uint16(len(n.name)), n.name).Reply()
		if err != nil {
			return fmt.Errorf("x11: intern %s: %w", n.name, err)
		}
		if reply.Atom == xproto.AtomNone {
			return fmt.Errorf("x11: atom %s unresolved", n.name)
		}
		*n.dst = reply.Atom
	}
	return nil
}

func (c *Conn) createWindow(width, height int) error {
	wid, err := xproto.NewWindowId(c.x)
	if err != nil {
		return fmt.Errorf("x11: window id: %w", err)
	}
	err = xproto.CreateWindowChecked(c.x, c.screen.RootDepth, wid, c.root,
		0, 0, uint16(width), uint16(height), 0,
		xproto.WindowClassInputOutput, c.screen.RootVisual,
		xproto.CwBackPixel|xproto.CwEventMask,
		[]uint32{c.screen.BlackPixel, eventMask}).Check()
	if err != nil {
		return fmt.Errorf("x11: create window: %w", err)
	}
	c.window = wid

	gid, err := xproto.NewGcontextId(c.x)
	if err != nil {
		return fmt.Errorf("x11: gcontext id: %w", err)
	}
	err = xproto.CreateGCChecked(c.x, gid, xproto.Drawable(wid),
		xproto.GcForeground, []uint32{c.screen.BlackPixel}).Check()
	if err != nil {
		return fmt.Errorf("x11: create gc: %w", err)
	}
	c.gc = gid
	return nil
}

// initSync negotiates the XSYNC extension and publishes the two
// counters the compositor drives the protocol with. Like the original
// protocol, an absent extension downgrades to unsynchronized operation
// rather than failing.
func (c *Conn) initSync() {
	if err := xsync.Init(c.x); err != nil {
		c.log.Debug("xsync extension unavailable", "error", err)
		return
	}
	if _, err := xsync.Initialize(c.x, 3, 1).Reply(); err != nil {
		c.log.Debug("xsync initialize failed", "error", err)
		return
	}

	basic, err := xsync.NewCounterId(c.x)
	if err != nil {
		c.log.Debug("xsync counter id", "error", err)
		return
	}
	extended, err := xsync.NewCounterId(c.x)
	if err != nil {
		c.log.Debug("xsync counter id", "error", err)
		return
	}
	xsync.CreateCounter(c.x, basic, xsync.Int64{})
	xsync.CreateCounter(c.x, extended, xsync.Int64{})
	c.basicCounter, c.extendedCounter = basic, extended
	c.haveSync = true

	buf := make([]byte, 8)
	xgb.Put32(buf[0:], uint32(basic))
	xgb.Put32(buf[4:], uint32(extended))
	xproto.ChangeProperty(c.x, xproto.PropModeReplace, c.window,
		c.atoms.NetWMSyncRequestCounter, xproto.AtomCardinal, 32, 2, buf)
}

// scanSupported reads the root window's _NET_SUPPORTED atom list.
func (c *Conn) scanSupported() {
	reply, err := xproto.GetProperty(c.x, false, c.root, c.atoms.NetSupported,
		xproto.AtomAtom, 0, 64).Reply()
	if err != nil || reply.Type != xproto.AtomAtom || reply.ValueLen == 0 {
		c.haveNetSupported = false
		return
	}
	c.supported = c.supported[:0]
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		c.supported = append(c.supported, xproto.Atom(xgb.Get32(reply.Value[i:])))
	}
	c.haveNetSupported = len(c.supported) > 0
}

// Supported reports whether the window manager advertises the atom in
// _NET_SUPPORTED. Absent from the list means false, including when the
// list itself is missing.
func (c *Conn) Supported(atom xproto.Atom) bool {
	if !c.haveNetSupported {
		return false
	}
	for _, a := range c.supported {
		if a == atom {
			return true
		}
	}
	return false
}

func (c *Conn) setProtocols() {
	protocols := []xproto.Atom{c.atoms.WMDeleteWindow}
	if c.syncEnabled {
		protocols = append(protocols, c.atoms.NetWMPing, c.atoms.NetWMSyncRequest)
	}
	buf := make([]byte, 4*len(protocols))
	for i, a := range protocols {
		xgb.Put32(buf[4*i:], uint32(a))
	}
	xproto.ChangeProperty(c.x, xproto.PropModeReplace, c.window,
		c.atoms.WMProtocols, xproto.AtomAtom, 32, uint32(len(protocols)), buf)
}

func (c *Conn) setHints() {
	const (
		inputHint   = 1 << 0
		stateHint   = 1 << 1
		normalState = 1
	)
	hints := [9]uint32{inputHint | stateHint, 1, normalState}
	buf := make([]byte, 4*len(hints))
	for i, v := range hints {
		xgb.Put32(buf[4*i:], v)
	}
	xproto.ChangeProperty(c.x, xproto.PropModeReplace, c.window,
		xproto.AtomWmHints, xproto.AtomWmHints, 32, uint32(len(hints)), buf)
}

// SetTitle publishes the window name.
func (c *Conn) SetTitle(title string) {
	xproto.ChangeProperty(c.x, xproto.PropModeReplace, c.window,
		xproto.AtomWmName, xproto.AtomString, 8, uint32(len(title)), []byte(title))
}

// Publish writes a 64-bit value to one of the sync counters. It is a
// no-op when synchronization is disabled or the extension is absent.
func (c *Conn) Publish(k framesync.Counter, value uint64) {
	if !c.haveSync {
		return
	}
	id := c.extendedCounter
	if k == framesync.CounterBasic {
		id = c.basicCounter
	}
	xsync.SetCounter(c.x, id, xsync.Int64{Hi: int32(value >> 32), Lo: uint32(value)})
}

// EchoPing answers a liveness probe: the payload is resent to the root
// window unchanged, with only the routing fields rewritten.
func (c *Conn) EchoPing(data [5]uint32) error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: c.root,
		Type:   c.atoms.WMProtocols,
		Data:   xproto.ClientMessageDataUnionData32New(data[:]),
	}
	mask := uint32(xproto.EventMaskSubstructureRedirect | xproto.EventMaskSubstructureNotify)
	return xproto.SendEventChecked(c.x, false, c.root, mask, string(ev.Bytes())).Check()
}

// Sync completes a round trip with the server, draining any requests
// the server has not yet acted on.
func (c *Conn) Sync() error {
	_, err := xproto.GetInputFocus(c.x).Reply()
	return err
}

// HaveSync reports whether counter synchronization is active.
func (c *Conn) HaveSync() bool { return c.haveSync }

// HaveNetSupported reports whether the root advertises _NET_SUPPORTED.
func (c *Conn) HaveNetSupported() bool { return c.haveNetSupported }

// HaveMoveresize reports whether the window manager supports
// _NET_WM_MOVERESIZE.
func (c *Conn) HaveMoveresize() bool { return c.Supported(c.atoms.NetWMMoveresize) }

// Close releases the counters and window and closes the connection.
func (c *Conn) Close() {
	if c.haveSync {
		xsync.DestroyCounter(c.x, c.basicCounter)
		xsync.DestroyCounter(c.x, c.extendedCounter)
	}
	xproto.FreeGC(c.x, c.gc)
	xproto.DestroyWindow(c.x, c.window)
	c.x.Close()
}
