package framesync

import "testing"

// publishRecorder records counter writes in order.
type publishRecorder struct {
	writes []publish
}

type publish struct {
	counter Counter
	value   uint64
}

func (r *publishRecorder) Publish(c Counter, v uint64) {
	r.writes = append(r.writes, publish{c, v})
}

func (r *publishRecorder) last() (publish, bool) {
	if len(r.writes) == 0 {
		return publish{}, false
	}
	return r.writes[len(r.writes)-1], true
}

func newTestState() (*SerialState, *publishRecorder) {
	rec := &publishRecorder{}
	return New(rec, nil), rec
}

func TestBeginEndFrame_NormalCycle(t *testing.T) {
	s, rec := newTestState()

	s.BeginFrame(FrameNormal)
	if got, _ := rec.last(); got.counter != CounterExtended || got.value != 1 {
		t.Fatalf("begin published %v=%d, want extended=1", got.counter, got.value)
	}
	if s.Inflight() != 4 {
		t.Fatalf("inflight = %d, want 4", s.Inflight())
	}

	s.EndFrame()
	if got, _ := rec.last(); got.counter != CounterExtended || got.value != 4 {
		t.Fatalf("end published %v=%d, want extended=4", got.counter, got.value)
	}
	if s.Current()%4 != 0 {
		t.Fatalf("current = %d, not idle-aligned", s.Current())
	}
}

func TestBeginEndFrame_UrgentCycle(t *testing.T) {
	s, rec := newTestState()

	s.BeginFrame(FrameUrgent)
	if got, _ := rec.last(); got.value != 3 {
		t.Fatalf("urgent begin published %d, want 3", got.value)
	}
	s.EndFrame()
	if got, _ := rec.last(); got.value != 4 {
		t.Fatalf("urgent end published %d, want 4", got.value)
	}
}

// The idle invariant must hold across many cycles of either disposition.
func TestIdleInvariantAcrossCycles(t *testing.T) {
	s, _ := newTestState()
	for i := 0; i < 10; i++ {
		d := FrameNormal
		if i%3 == 0 {
			d = FrameUrgent
		}
		s.BeginFrame(d)
		if s.Current()&3 != 1 && s.Current()&3 != 3 {
			t.Fatalf("cycle %d: in-flight current = %d, low bits not odd", i, s.Current())
		}
		if s.Inflight() != s.Current()-(s.Current()&3)+4 {
			t.Fatalf("cycle %d: inflight = %d for current %d", i, s.Inflight(), s.Current())
		}
		s.EndFrame()
		if s.Current()%4 != 0 {
			t.Fatalf("cycle %d: idle current = %d, want multiple of 4", i, s.Current())
		}
	}
	if s.Current() != 40 {
		t.Fatalf("current after 10 cycles = %d, want 40", s.Current())
	}
}

func TestExtendedConfigureConsumedAtBegin(t *testing.T) {
	s, rec := newTestState()

	s.OnSyncRequest(100, true)
	s.OnConfigure()
	// configure republishes the not-yet-advanced serial
	if got, _ := rec.last(); got.counter != CounterExtended || got.value != 0 {
		t.Fatalf("configure published %v=%d, want extended=0", got.counter, got.value)
	}

	s.BeginFrame(FrameNormal)
	// serial 100 is already aligned; begin advances to 101
	if got, _ := rec.last(); got.value != 101 {
		t.Fatalf("begin after configure published %d, want 101", got.value)
	}
	if s.Inflight() != 104 {
		t.Fatalf("inflight = %d, want 104", s.Inflight())
	}

	s.EndFrame()
	if got, _ := rec.last(); got.value != 104 {
		t.Fatalf("end published %d, want 104", got.value)
	}
	// extended configure was consumed at begin; no basic write expected
	for _, w := range rec.writes {
		if w.counter == CounterBasic {
			t.Fatalf("unexpected basic counter write %d", w.value)
		}
	}
}

func TestBeginFrameRealignsUnalignedConfigure(t *testing.T) {
	s, rec := newTestState()

	s.OnSyncRequest(101, true)
	s.OnConfigure()
	s.BeginFrame(FrameNormal)
	// 101 rounds up to 104, then advances by 1
	if got, _ := rec.last(); got.value != 105 {
		t.Fatalf("begin published %d, want 105", got.value)
	}
	if s.Inflight() != 108 {
		t.Fatalf("inflight = %d, want 108", s.Inflight())
	}
}

func TestBasicConfigurePublishedOnceAtEnd(t *testing.T) {
	s, rec := newTestState()

	s.OnSyncRequest(7, false)
	s.OnConfigure()

	s.BeginFrame(FrameNormal)
	s.EndFrame()

	var basics []uint64
	for _, w := range rec.writes {
		if w.counter == CounterBasic {
			basics = append(basics, w.value)
		}
	}
	if len(basics) != 1 || basics[0] != 7 {
		t.Fatalf("basic writes = %v, want exactly [7]", basics)
	}

	// a second cycle must not republish it
	s.BeginFrame(FrameNormal)
	s.EndFrame()
	for _, w := range rec.writes[len(rec.writes)-2:] {
		if w.counter == CounterBasic {
			t.Fatalf("basic counter republished: %d", w.value)
		}
	}
}

func TestConfigureClearsRequestSlot(t *testing.T) {
	s, _ := newTestState()
	s.OnSyncRequest(50, true)
	s.OnConfigure()
	if s.requested != 0 || s.requestedExtended {
		t.Fatalf("request slot not cleared: %d extended=%v", s.requested, s.requestedExtended)
	}
	if s.configured != 50 || !s.configuredExtended {
		t.Fatalf("configured = %d extended=%v, want 50 true", s.configured, s.configuredExtended)
	}
}

func TestFrameDrawnHighWaterMark(t *testing.T) {
	s, _ := newTestState()
	if !s.OnFrameDrawn(8) {
		t.Fatal("first drawn serial rejected")
	}
	if s.OnFrameDrawn(8) {
		t.Fatal("equal drawn serial accepted")
	}
	if s.OnFrameDrawn(4) {
		t.Fatal("stale drawn serial accepted")
	}
	if s.Drawn() != 8 {
		t.Fatalf("drawn = %d, want 8", s.Drawn())
	}
	if !s.OnFrameDrawn(12) {
		t.Fatal("advancing drawn serial rejected")
	}
}

func TestFrameTimingsHighWaterMark(t *testing.T) {
	s, _ := newTestState()
	if !s.OnFrameTimings(4) {
		t.Fatal("first timings serial rejected")
	}
	if s.OnFrameTimings(3) || s.OnFrameTimings(4) {
		t.Fatal("non-advancing timings serial accepted")
	}
	if s.Timing() != 4 {
		t.Fatalf("timing = %d, want 4", s.Timing())
	}
}
