package protocol

import (
	"log/slog"

	"github.com/michaeljclark/glxsync/domain/framesync"
	"github.com/michaeljclark/glxsync/logging"
)

// FrameSink narrows the scheduler contract needed by the dispatcher.
type FrameSink interface {
	// SubmitUrgent submits an out-of-cycle frame, rate-capped to the
	// measured frame rate.
	SubmitUrgent()

	// Resize records new window dimensions for the next draw.
	Resize(width, height int)

	// Shutdown stops the frame loop after the current drain.
	Shutdown()
}

// Pinger echoes liveness probes back to the window system.
type Pinger interface {
	EchoPing(data [5]uint32) error
}

// Dispatcher interprets inbound notification messages, updating the
// serial state machine and the frame sink. It runs on the scheduler
// goroutine; Dispatch is never called concurrently.
type Dispatcher struct {
	Serials *framesync.SerialState
	Frames  FrameSink
	Pinger  Pinger
	Log     *slog.Logger
}

// NewDispatcher wires a dispatcher. Any collaborator may be left nil by
// tests; the corresponding messages are then ignored.
func NewDispatcher(serials *framesync.SerialState, frames FrameSink, pinger Pinger, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = logging.Discard()
	}
	return &Dispatcher{Serials: serials, Frames: frames, Pinger: pinger, Log: log}
}

// Dispatch applies one event. Malformed or unrecognized messages have
// no protocol effect.
func (d *Dispatcher) Dispatch(ev Event) {
	switch e := ev.(type) {
	case Ping:
		if d.Pinger != nil {
			if err := d.Pinger.EchoPing(e.Data); err != nil {
				d.Log.Warn("ping echo failed", "error", err)
				return
			}
		}
		logging.Trace(d.Log, "event ping", "timestamp", e.Data[1], "window", e.Data[2])

	case SyncRequest:
		serial := Serial64(e.SerialLo, e.SerialHi)
		if d.Serials != nil {
			d.Serials.OnSyncRequest(serial, e.Extended)
		}
		logging.Trace(d.Log, "event sync request", "sync_serial", serial, "extended", e.Extended)

	case GeometryChanged:
		if d.Frames != nil {
			d.Frames.Resize(e.Width, e.Height)
		}
		if d.Serials != nil {
			d.Serials.OnConfigure()
		}
		logging.Trace(d.Log, "event configure",
			"width", e.Width, "height", e.Height,
			"current_sync_serial", d.currentSerial())

	case FrameDrawn:
		serial := Serial64(e.SerialLo, e.SerialHi)
		if d.Serials != nil {
			d.Serials.OnFrameDrawn(serial)
		}
		logging.Trace(d.Log, "event frame drawn",
			"sync_serial", serial,
			"drawn_time", int64(Serial64(e.TimeLo, e.TimeHi)))

	case FrameTimings:
		serial := Serial64(e.SerialLo, e.SerialHi)
		if d.Serials != nil {
			d.Serials.OnFrameTimings(serial)
		}
		logging.Trace(d.Log, "event frame timings",
			"sync_serial", serial,
			"presentation_offset", e.PresentationOffset,
			"refresh_interval", e.RefreshInterval,
			"frame_delay", e.FrameDelay)

	case Exposed:
		logging.Trace(d.Log, "event expose", "count", e.Count)
		if d.Frames != nil {
			d.Frames.SubmitUrgent()
		}

	case CloseRequested:
		d.Log.Debug("close requested")
		if d.Frames != nil {
			d.Frames.Shutdown()
		}

	case Other:
		logging.Trace(d.Log, "event ignored", "name", e.Name)
	}
}

func (d *Dispatcher) currentSerial() uint64 {
	if d.Serials == nil {
		return 0
	}
	return d.Serials.Current()
}
