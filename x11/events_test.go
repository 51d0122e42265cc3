package x11

import (
	"testing"
	"time"

	"github.com/jezek/xgb/xproto"

	"github.com/michaeljclark/glxsync/domain/pacing"
	"github.com/michaeljclark/glxsync/domain/protocol"
)

// testAtoms uses distinct fake atom values; translation only compares.
func newTestConn() *Conn {
	return &Conn{
		atoms: atomSet{
			WMProtocols:       100,
			WMDeleteWindow:    101,
			NetWMSyncRequest:  102,
			NetWMFrameDrawn:   103,
			NetWMFrameTimings: 104,
			NetWMPing:         105,
			NetWMMoveresize:   106,
		},
		notify: make(chan struct{}, 1),
	}
}

func clientMessage(typ xproto.Atom, data [5]uint32) xproto.ClientMessageEvent {
	return xproto.ClientMessageEvent{
		Format: 32,
		Type:   typ,
		Data:   xproto.ClientMessageDataUnionData32New(data[:]),
	}
}

func TestTranslateExpose(t *testing.T) {
	c := newTestConn()
	ev := c.translate(xproto.ExposeEvent{Count: 2})
	if got, ok := ev.(protocol.Exposed); !ok || got.Count != 2 {
		t.Fatalf("translated %#v", ev)
	}
}

func TestTranslateConfigureNotify(t *testing.T) {
	c := newTestConn()
	ev := c.translate(xproto.ConfigureNotifyEvent{Width: 640, Height: 480})
	if got, ok := ev.(protocol.GeometryChanged); !ok || got.Width != 640 || got.Height != 480 {
		t.Fatalf("translated %#v", ev)
	}
}

func TestTranslateSyncRequest(t *testing.T) {
	c := newTestConn()
	data := [5]uint32{uint32(c.atoms.NetWMSyncRequest), 1234, 0x10, 0x2, 1}
	ev := c.translate(clientMessage(c.atoms.WMProtocols, data))
	got, ok := ev.(protocol.SyncRequest)
	if !ok || got.SerialLo != 0x10 || got.SerialHi != 0x2 || !got.Extended {
		t.Fatalf("translated %#v", ev)
	}
}

func TestTranslatePingCarriesPayload(t *testing.T) {
	c := newTestConn()
	data := [5]uint32{uint32(c.atoms.NetWMPing), 77, 88, 0, 0}
	ev := c.translate(clientMessage(c.atoms.WMProtocols, data))
	got, ok := ev.(protocol.Ping)
	if !ok || got.Data != data {
		t.Fatalf("translated %#v", ev)
	}
}

func TestTranslateFrameDrawnAndTimings(t *testing.T) {
	c := newTestConn()

	ev := c.translate(clientMessage(c.atoms.NetWMFrameDrawn, [5]uint32{4, 0, 500, 0, 0}))
	drawn, ok := ev.(protocol.FrameDrawn)
	if !ok || drawn.SerialLo != 4 || drawn.TimeLo != 500 {
		t.Fatalf("translated %#v", ev)
	}

	ev = c.translate(clientMessage(c.atoms.NetWMFrameTimings, [5]uint32{8, 0, 100, 16667, 3}))
	timings, ok := ev.(protocol.FrameTimings)
	if !ok || timings.SerialLo != 8 || timings.RefreshInterval != 16667 || timings.FrameDelay != 3 {
		t.Fatalf("translated %#v", ev)
	}
}

func TestTranslateDeleteWindow(t *testing.T) {
	c := newTestConn()
	data := [5]uint32{uint32(c.atoms.WMDeleteWindow), 0, 0, 0, 0}
	if _, ok := c.translate(clientMessage(c.atoms.WMProtocols, data)).(protocol.CloseRequested); !ok {
		t.Fatal("delete request not recognized")
	}
}

func TestTranslateMalformedClientMessage(t *testing.T) {
	c := newTestConn()
	ev := c.translate(xproto.ClientMessageEvent{Format: 8, Type: c.atoms.WMProtocols})
	if _, ok := ev.(protocol.Other); !ok {
		t.Fatalf("malformed message translated to %#v", ev)
	}
}

func TestTranslateUnrelatedEvent(t *testing.T) {
	c := newTestConn()
	if _, ok := c.translate(xproto.MotionNotifyEvent{}).(protocol.Other); !ok {
		t.Fatal("unrelated event not mapped to Other")
	}
}

func TestWaitReportsQueuedEvent(t *testing.T) {
	c := newTestConn()
	c.queue = append(c.queue, protocol.Exposed{})
	if st := c.Wait(time.Millisecond); st != pacing.EventReady {
		t.Fatalf("status = %v, want event", st)
	}
}

func TestWaitZeroTimeoutOnlyChecksReadiness(t *testing.T) {
	c := newTestConn()
	if st := c.Wait(0); st != pacing.FrameReady {
		t.Fatalf("status = %v, want frame", st)
	}
}

func TestWaitTimesOut(t *testing.T) {
	c := newTestConn()
	start := time.Now()
	if st := c.Wait(5 * time.Millisecond); st != pacing.FrameReady {
		t.Fatalf("status = %v, want frame", st)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatal("wait returned before timeout")
	}
}

// A wakeup whose event was already drained must report a retry.
func TestWaitStaleNotifyReportsRetry(t *testing.T) {
	c := newTestConn()
	c.notify <- struct{}{}
	if st := c.Wait(50 * time.Millisecond); st != pacing.WaitRetry {
		t.Fatalf("status = %v, want retry", st)
	}
}

func TestNextDrainsInOrder(t *testing.T) {
	c := newTestConn()
	c.queue = append(c.queue, protocol.Exposed{Count: 1}, protocol.Exposed{Count: 2})

	ev, ok := c.Next()
	if !ok || ev.(protocol.Exposed).Count != 1 {
		t.Fatalf("first = %#v", ev)
	}
	ev, ok = c.Next()
	if !ok || ev.(protocol.Exposed).Count != 2 {
		t.Fatalf("second = %#v", ev)
	}
	if _, ok := c.Next(); ok {
		t.Fatal("drain past end returned an event")
	}
}

// An atom absent from _NET_SUPPORTED is unsupported, including when the
// list itself is missing.
func TestSupportedExplicitFalse(t *testing.T) {
	c := newTestConn()
	if c.Supported(c.atoms.NetWMMoveresize) {
		t.Fatal("supported with no _NET_SUPPORTED list")
	}
	c.haveNetSupported = true
	c.supported = []xproto.Atom{1, 2, 3}
	if c.Supported(c.atoms.NetWMMoveresize) {
		t.Fatal("supported though absent from list")
	}
	if !c.Supported(2) {
		t.Fatal("listed atom reported unsupported")
	}
}
