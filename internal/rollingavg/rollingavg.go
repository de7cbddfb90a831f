// Package rollingavg implements the fixed-size moving average the client
// game timer uses to smooth its estimate of the server's start time. The
// reference implementation's fuller outlier-rejecting rolling-statistics
// type (RollingStats / RollingStandardDeviation), whose definition was not
// present in the retained source, is not reproduced here; this implements
// exactly the arithmetic mean described in the spec's clock-alignment
// algorithm.
package rollingavg

import "github.com/corelock/lockstep/internal/timeval"

// Average is a ring buffer of TimeValue samples with a fixed capacity.
type Average struct {
	samples []timeval.TimeValue
	next    int
	filled  bool
}

// New creates an Average with the given window size. Size must be >= 1.
func New(size int) *Average {
	if size < 1 {
		size = 1
	}
	return &Average{samples: make([]timeval.TimeValue, size)}
}

// Add records a new sample, evicting the oldest once the window is full.
func (a *Average) Add(v timeval.TimeValue) {
	a.samples[a.next] = v
	a.next = (a.next + 1) % len(a.samples)
	if a.next == 0 {
		a.filled = true
	}
}

// Len reports how many samples are currently held.
func (a *Average) Len() int {
	if a.filled {
		return len(a.samples)
	}
	return a.next
}

// Mean returns the arithmetic mean of the samples currently held. The second
// return value is false if no sample has been added yet.
func (a *Average) Mean() (timeval.TimeValue, bool) {
	n := a.Len()
	if n == 0 {
		return timeval.TimeValue{}, false
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a.samples[i].AsSecsF64()
	}
	mean := sum / float64(n)
	secs := uint64(mean)
	nanos := uint32((mean - float64(secs)) * float64(timeval.NanosPerSec))
	return timeval.New(secs, nanos), true
}

// Full reports whether the window has been filled at least once.
func (a *Average) Full() bool { return a.filled }
