// Package pacing contains the monotonic clock, the running-average
// sample rings, and the frame scheduler that paces submission against
// the compositor.
package pacing

// ringSlots is the fixed sample capacity of a RunningAverage. One
// slot short of a power of two so the window covers roughly a second
// of frames at 30 fps.
const ringSlots = 31

// RunningAverage is a fixed-capacity circular accumulator of signed
// microsecond samples. The running sum always equals the sum of the
// last min(count, capacity) inserted samples.
type RunningAverage struct {
	sum     int64
	count   int64
	offset  int
	samples [ringSlots]int64
}

// Add inserts a sample, evicting the oldest once the ring is full.
func (b *RunningAverage) Add(v int64) {
	old := b.samples[b.offset]
	b.samples[b.offset] = v
	b.sum += v - old
	b.count++
	b.offset++
	if b.offset >= ringSlots {
		b.offset = 0
	}
}

// Average returns the mean of the retained samples, or -1 before any
// sample has been inserted.
func (b *RunningAverage) Average() int64 {
	switch {
	case b.count == 0:
		return -1
	case b.count < ringSlots:
		return b.sum / b.count
	default:
		return b.sum / ringSlots
	}
}
