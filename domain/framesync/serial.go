// Package framesync implements the client side of the extended frame
// synchronization protocol: a pair of 64-bit counters published to the
// compositor, with the low two bits of the extended counter encoding
// frame phase (even = idle, ..01 = normal frame in flight, ..11 =
// urgent frame in flight).
package framesync

import (
	"log/slog"

	"github.com/michaeljclark/glxsync/logging"
)

// Counter identifies one of the two published sync counters.
type Counter int

const (
	// CounterBasic is the first counter listed in the sync-request
	// counter property, updated once per configure cycle.
	CounterBasic Counter = iota

	// CounterExtended carries the phase-encoded serial.
	CounterExtended
)

func (c Counter) String() string {
	switch c {
	case CounterBasic:
		return "basic"
	case CounterExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// CounterWriter publishes a counter value to the compositor.
// Implementations must tolerate being called when synchronization is
// disabled (writes become no-ops).
type CounterWriter interface {
	Publish(c Counter, value uint64)
}

// Disposition distinguishes normally paced frames from urgent ones
// submitted outside the pacing cadence.
type Disposition int

const (
	FrameNormal Disposition = iota
	FrameUrgent
)

func (d Disposition) String() string {
	if d == FrameUrgent {
		return "urgent"
	}
	return "normal"
}

// SerialState is the authoritative protocol counter set. It is mutated
// only by the scheduler's begin/end frame calls and by the event
// dispatcher; the single loop goroutine owns it exclusively.
type SerialState struct {
	current    uint64
	requested  uint64
	configured uint64
	inflight   uint64
	drawn      uint64
	timing     uint64

	requestedExtended  bool
	configuredExtended bool

	counters CounterWriter
	log      *slog.Logger
}

// New returns a SerialState publishing through w.
func New(w CounterWriter, log *slog.Logger) *SerialState {
	if log == nil {
		log = logging.Discard()
	}
	return &SerialState{counters: w, log: log}
}

// Current returns the serial most recently published to the extended counter.
func (s *SerialState) Current() uint64 { return s.current }

// Inflight returns the boundary serial of the next cycle, established
// by the most recent BeginFrame.
func (s *SerialState) Inflight() uint64 { return s.inflight }

// Drawn returns the highest serial confirmed drawn by the compositor.
func (s *SerialState) Drawn() uint64 { return s.drawn }

// Timing returns the highest serial with presentation timing feedback.
func (s *SerialState) Timing() uint64 { return s.timing }

// BeginFrame informs the compositor that drawing has started. A pending
// extended configure serial replaces the current serial first; the
// serial is then re-aligned to a multiple of 4 and advanced to the odd
// phase value for the disposition.
func (s *SerialState) BeginFrame(d Disposition) {
	if s.configured != 0 && s.configuredExtended {
		s.current = s.configured
		s.configured = 0
	}
	// advance frame to next multiple of 4
	if s.current&3 != 0 {
		s.current = (s.current + 3) &^ 3
	}
	s.inflight = s.current + 4
	if d == FrameUrgent {
		s.current += 3
	} else {
		s.current += 1
	}
	s.counters.Publish(CounterExtended, s.current)
}

// EndFrame informs the compositor that drawing has finished, restoring
// the extended counter to an even (idle) value. A configure serial that
// was not consumed by BeginFrame (basic synchronization) is published
// to the basic counter exactly once.
func (s *SerialState) EndFrame() {
	switch s.current & 3 {
	case 1:
		s.current += 3
		s.counters.Publish(CounterExtended, s.current)
	case 3:
		s.current += 1
		s.counters.Publish(CounterExtended, s.current)
	}

	if s.configured != 0 {
		s.counters.Publish(CounterBasic, s.configured)
		s.configured = 0
		s.configuredExtended = false
	}
}

// OnSyncRequest records a compositor sync request. It takes effect when
// the matching geometry change arrives and promotes it via OnConfigure.
func (s *SerialState) OnSyncRequest(serial uint64, extended bool) {
	s.requested = serial
	s.requestedExtended = extended
}

// OnConfigure promotes a pending request to configured state and
// republishes the current serial; the compositor expects an extended
// counter acknowledgement on resize.
func (s *SerialState) OnConfigure() {
	s.configured = s.requested
	s.configuredExtended = s.requestedExtended
	s.requested = 0
	s.requestedExtended = false
	s.counters.Publish(CounterExtended, s.current)
}

// OnFrameDrawn records a drawn confirmation. Serials are a high-water
// mark: delivery order across message classes is not guaranteed, so
// values not strictly greater than the recorded one are discarded.
// Reports whether the serial was accepted.
func (s *SerialState) OnFrameDrawn(serial uint64) bool {
	if serial <= s.drawn {
		logging.Trace(s.log, "stale frame drawn serial", "serial", serial, "drawn", s.drawn)
		return false
	}
	s.drawn = serial
	return true
}

// OnFrameTimings records presentation timing feedback for a serial,
// with the same high-water rule as OnFrameDrawn.
func (s *SerialState) OnFrameTimings(serial uint64) bool {
	if serial <= s.timing {
		logging.Trace(s.log, "stale frame timings serial", "serial", serial, "timing", s.timing)
		return false
	}
	s.timing = serial
	return true
}
