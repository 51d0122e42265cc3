package pacing

import (
	"log/slog"
	"time"

	"github.com/michaeljclark/glxsync/domain/framesync"
	"github.com/michaeljclark/glxsync/domain/protocol"
	"github.com/michaeljclark/glxsync/logging"
)

// WaitStatus is the outcome of one wait iteration.
type WaitStatus int

const (
	// WaitRetry means the wait was interrupted or woke without a queued
	// event; the caller re-issues it with no side effects.
	WaitRetry WaitStatus = iota

	// FrameReady means the frame deadline expired with nothing queued.
	FrameReady

	// EventReady means at least one event is queued and must be drained
	// before the next wait.
	EventReady
)

func (s WaitStatus) String() string {
	switch s {
	case WaitRetry:
		return "retry"
	case FrameReady:
		return "frame"
	case EventReady:
		return "event"
	default:
		return "unknown"
	}
}

// EventSource narrows the window-system contract needed by the
// scheduler: a bounded wait, a non-blocking drain, and a round trip to
// let the compositor catch up under backpressure.
type EventSource interface {
	// Wait blocks until an event is queued or the timeout elapses,
	// whichever comes first. A timeout of zero only checks readiness.
	Wait(timeout time.Duration) WaitStatus

	// Next pops the next queued event without blocking.
	Next() (protocol.Event, bool)

	// Sync completes a round trip with the window system.
	Sync() error
}

// Renderer is the drawing collaborator. The scheduler is agnostic to
// the graphics machinery beneath these three calls.
type Renderer interface {
	Reshape(width, height int)
	DrawFrame(seconds float64)
	Present() error
}

// EventHandler consumes drained events; in production this is the
// protocol dispatcher.
type EventHandler interface {
	Dispatch(protocol.Event)
}

const (
	// backpressureDelayMicros is how far submission is pushed back when
	// the compositor has not yet presented an in-flight frame.
	backpressureDelayMicros = 2000

	// animationWindowMicros folds frame deltas modulo one second so a
	// long pause does not produce a visible jump.
	animationWindowMicros = 1_000_000
)

// Scheduler drives the render loop: it multiplexes "time to draw"
// against "event arrived", paces submission to the target rate, and
// applies backpressure from presentation timing feedback. All state is
// owned by the single goroutine running Run.
type Scheduler struct {
	// Handler receives drained events. Bound after construction since
	// the dispatcher also needs the scheduler as its frame sink.
	Handler EventHandler

	clock    Clock
	source   EventSource
	renderer Renderer
	serials  *framesync.SerialState
	log      *slog.Logger

	frameTimes  RunningAverage
	renderTimes RunningAverage

	targetRate   float64
	frameNumber  uint64
	lastDrawTime int64
	nextDrawTime int64
	deltaTime    int64
	animation    float64

	width, height               int
	appliedWidth, appliedHeight int

	stopped bool
}

// NewScheduler returns a scheduler pacing frames at targetRate.
func NewScheduler(clock Clock, source EventSource, renderer Renderer,
	serials *framesync.SerialState, targetRate float64, width, height int,
	log *slog.Logger) *Scheduler {
	if log == nil {
		log = logging.Discard()
	}
	return &Scheduler{
		clock:      clock,
		source:     source,
		renderer:   renderer,
		serials:    serials,
		targetRate: targetRate,
		width:      width,
		height:     height,
		log:        log,
	}
}

// Run drives the loop until Shutdown. The first frame is drawn
// immediately; thereafter iterations wait for the earlier of the frame
// deadline and event arrival.
func (s *Scheduler) Run() error {
	s.nextDrawTime = s.clock.NowMicros()

	for !s.stopped {
		switch s.waitFrameOrEvent() {
		case WaitRetry:
		case FrameReady:
			s.submitFrame(framesync.FrameNormal, s.targetRate)
		case EventReady:
			s.drainEvents()
		}
	}
	return nil
}

// waitFrameOrEvent is the single suspension point in the system. It
// never blocks past the frame deadline, and once the deadline has
// passed it still confirms queue readiness with a zero wait so the
// caller's drain cannot block.
func (s *Scheduler) waitFrameOrEvent() WaitStatus {
	now := s.clock.NowMicros()
	if now < s.nextDrawTime {
		timeout := s.nextDrawTime - now
		logging.Trace(s.log, "poll", "frame", s.frameNumber, "now_us", now, "timeout_us", timeout)
		return s.source.Wait(time.Duration(timeout) * time.Microsecond)
	}
	if s.source.Wait(0) == EventReady {
		return EventReady
	}
	return FrameReady
}

// drainEvents dispatches every currently queued event before the next
// deadline check, so a burst of notifications cannot starve the
// dispatcher.
func (s *Scheduler) drainEvents() {
	for {
		ev, ok := s.source.Next()
		if !ok {
			return
		}
		if s.Handler != nil {
			s.Handler.Dispatch(ev)
		}
	}
}

// submitFrame draws and presents one frame, or defers if the
// compositor is behind on presentation.
func (s *Scheduler) submitFrame(d framesync.Disposition, targetRate float64) {
	now := s.clock.NowMicros()

	// tearing may result if frames are submitted before receiving
	// timings for inflight frames submitted in response to
	// synchronization requests
	if t := s.serials.Timing(); t > 0 && t < s.serials.Inflight() {
		if err := s.source.Sync(); err != nil {
			s.log.Warn("sync round trip failed", "error", err)
		}
		s.nextDrawTime = now + backpressureDelayMicros
		logging.Trace(s.log, "frame delayed",
			"frame", s.frameNumber, "now_us", now,
			"disposition", d.String(),
			"timing_sync_serial", t,
			"inflight_sync_serial", s.serials.Inflight())
		return
	}

	logging.Trace(s.log, "frame begin",
		"frame", s.frameNumber, "now_us", now,
		"delta_us", s.deltaTime,
		"sync_serial", s.serials.Current(),
		"frame_avg_us", s.frameTimes.Average(),
		"render_avg_us", s.renderTimes.Average())

	if s.lastDrawTime != 0 {
		s.deltaTime = now - s.lastDrawTime
		s.frameTimes.Add(s.deltaTime)
	}
	s.lastDrawTime = now
	s.nextDrawTime = now + int64(1e6/targetRate)
	s.frameNumber++

	if s.width != s.appliedWidth || s.height != s.appliedHeight {
		s.renderer.Reshape(s.width, s.height)
		s.appliedWidth, s.appliedHeight = s.width, s.height
	}

	s.animation += float64(s.deltaTime%animationWindowMicros) / 1e6

	s.renderer.DrawFrame(s.animation)
	s.serials.BeginFrame(d)
	if err := s.renderer.Present(); err != nil {
		s.log.Warn("present failed", "error", err)
	}
	s.serials.EndFrame()

	now = s.clock.NowMicros()
	s.renderTimes.Add(now - s.lastDrawTime)

	logging.Trace(s.log, "frame end",
		"frame", s.frameNumber, "now_us", now,
		"delta_us", s.deltaTime,
		"sync_serial", s.serials.Current(),
		"frame_avg_us", s.frameTimes.Average(),
		"render_avg_us", s.renderTimes.Average())
}

// SubmitUrgent submits an out-of-cycle frame, capped to the measured
// frame rate so redraw storms cannot compound backlog against the
// compositor.
func (s *Scheduler) SubmitUrgent() {
	rate := s.targetRate
	if avg := s.frameTimes.Average(); avg > 0 {
		if measured := 1e6 / float64(avg); rate > measured {
			rate = measured
		}
	}
	s.submitFrame(framesync.FrameUrgent, rate)
}

// Resize records new window dimensions; the projection is reconfigured
// before the next draw.
func (s *Scheduler) Resize(width, height int) {
	s.width, s.height = width, height
}

// Shutdown stops the loop after the current iteration.
func (s *Scheduler) Shutdown() {
	s.stopped = true
}
