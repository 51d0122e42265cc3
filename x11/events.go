package x11

import (
	"fmt"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/michaeljclark/glxsync/domain/pacing"
	"github.com/michaeljclark/glxsync/domain/protocol"
	"github.com/michaeljclark/glxsync/logging"
)

// readEvents pumps raw events from the server into the translated
// queue. It is the only goroutine besides the scheduler loop; the
// queue mutex and notify channel are the handoff between them, which
// keeps dispatch ordering identical to wire order.
func (c *Conn) readEvents() {
	for {
		ev, xerr := c.x.WaitForEvent()
		if ev == nil && xerr == nil {
			// connection closed
			return
		}
		if xerr != nil {
			logging.Trace(c.log, "x error", "error", xerr.Error())
			continue
		}

		c.mu.Lock()
		c.queue = append(c.queue, c.translate(ev))
		c.mu.Unlock()

		select {
		case c.notify <- struct{}{}:
		default:
		}
	}
}

// translate maps a raw X event onto the protocol event union.
// Malformed payloads translate to Other so they are ignored downstream.
func (c *Conn) translate(ev xgb.Event) protocol.Event {
	switch e := ev.(type) {
	case xproto.ExposeEvent:
		return protocol.Exposed{Count: int(e.Count)}

	case xproto.ConfigureNotifyEvent:
		return protocol.GeometryChanged{Width: int(e.Width), Height: int(e.Height)}

	case xproto.ClientMessageEvent:
		if e.Format != 32 || len(e.Data.Data32) < 5 {
			return protocol.Other{Name: "ClientMessage"}
		}
		d := e.Data.Data32
		switch e.Type {
		case c.atoms.WMProtocols:
			switch xproto.Atom(d[0]) {
			case c.atoms.NetWMPing:
				var data [5]uint32
				copy(data[:], d)
				return protocol.Ping{Data: data}
			case c.atoms.NetWMSyncRequest:
				return protocol.SyncRequest{SerialLo: d[2], SerialHi: d[3], Extended: d[4] != 0}
			case c.atoms.WMDeleteWindow:
				return protocol.CloseRequested{}
			}
		case c.atoms.NetWMFrameDrawn:
			return protocol.FrameDrawn{SerialLo: d[0], SerialHi: d[1], TimeLo: d[2], TimeHi: d[3]}
		case c.atoms.NetWMFrameTimings:
			return protocol.FrameTimings{
				SerialLo:           d[0],
				SerialHi:           d[1],
				PresentationOffset: int32(d[2]),
				RefreshInterval:    int32(d[3]),
				FrameDelay:         int32(d[4]),
			}
		}
		return protocol.Other{Name: "ClientMessage"}

	case xproto.PropertyNotifyEvent:
		return protocol.Other{Name: fmt.Sprintf("PropertyNotify(%d)", e.Atom)}

	default:
		return protocol.Other{Name: fmt.Sprintf("%T", ev)}
	}
}

func (c *Conn) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Wait blocks until an event is queued or the timeout elapses. A zero
// timeout only checks readiness; a wakeup that finds the queue empty
// (signal already consumed by an earlier drain) reports a retry.
func (c *Conn) Wait(timeout time.Duration) pacing.WaitStatus {
	if c.pending() > 0 {
		return pacing.EventReady
	}
	if timeout <= 0 {
		return pacing.FrameReady
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.notify:
		if c.pending() > 0 {
			return pacing.EventReady
		}
		return pacing.WaitRetry
	case <-timer.C:
		return pacing.FrameReady
	}
}

// Next pops the next queued event without blocking.
func (c *Conn) Next() (protocol.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	ev := c.queue[0]
	c.queue = c.queue[1:]
	return ev, true
}
