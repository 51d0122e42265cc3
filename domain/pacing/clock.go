package pacing

import "golang.org/x/sys/unix"

// Clock supplies monotonic microsecond timestamps.
type Clock interface {
	NowMicros() int64
}

// MonotonicClock reads CLOCK_MONOTONIC. The zero value is ready to use.
type MonotonicClock struct{}

func (MonotonicClock) NowMicros() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return ts.Sec*1_000_000 + ts.Nsec/1_000
}
