// Package protocol defines the inbound window-system notification
// messages and the dispatcher that translates them into serial state
// updates and scheduling hints.
package protocol

// Event is an inbound window-system notification. Serial-carrying
// events hold the 64-bit serial as two 32-bit halves, low half first,
// exactly as they arrive on the wire.
type Event interface{ isEvent() }

// Ping is a liveness probe. Data carries the probe payload verbatim;
// it must be echoed back with only the routing fields changed, or the
// compositor will mark the client unresponsive.
type Ping struct {
	Data [5]uint32
}

// SyncRequest asks the client to synchronize the next configure cycle
// to the given serial.
type SyncRequest struct {
	SerialLo uint32
	SerialHi uint32
	Extended bool
}

// GeometryChanged reports a new window size.
type GeometryChanged struct {
	Width  int
	Height int
}

// FrameDrawn confirms the compositor has drawn the frame cycle ending
// at the given serial. The drawn timestamp is advisory.
type FrameDrawn struct {
	SerialLo uint32
	SerialHi uint32
	TimeLo   uint32
	TimeHi   uint32
}

// FrameTimings carries presentation timing feedback for a serial. The
// three scalars are informational; they do not feed the pacing formula
// but are preserved for forward compatibility.
type FrameTimings struct {
	SerialLo           uint32
	SerialHi           uint32
	PresentationOffset int32
	RefreshInterval    int32
	FrameDelay         int32
}

// Exposed reports that part of the window needs redrawing.
type Exposed struct {
	Count int
}

// CloseRequested reports a window manager delete request.
type CloseRequested struct{}

// Other is any message with no protocol effect; Name is logged at
// trace level.
type Other struct {
	Name string
}

func (Ping) isEvent()            {}
func (SyncRequest) isEvent()     {}
func (GeometryChanged) isEvent() {}
func (FrameDrawn) isEvent()      {}
func (FrameTimings) isEvent()    {}
func (Exposed) isEvent()         {}
func (CloseRequested) isEvent()  {}
func (Other) isEvent()           {}

// Serial64 combines two 32-bit serial halves, low half first.
func Serial64(lo, hi uint32) uint64 {
	return uint64(hi)<<32 | uint64(lo)
}
