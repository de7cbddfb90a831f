package timeval

import (
	"fmt"
	"time"
)

// TimeDuration is a signed interval with nanosecond precision. Seconds and
// nanos always agree in sign (or one of them is zero); |nanos| < NanosPerSec.
type TimeDuration struct {
	seconds int64
	nanos   int32
}

// NewDuration builds a normalized TimeDuration from a possibly-unnormalized
// (seconds, nanos) pair, folding nanos into seconds the way Go's own
// truncating integer division already does (matches the reference
// implementation's normalization exactly: total nanoseconds is split back
// into seconds/nanos by truncating division, so the signs always agree).
func NewDuration(seconds int64, nanos int64) TimeDuration {
	total := seconds*NanosPerSec + nanos
	return TimeDuration{seconds: total / NanosPerSec, nanos: int32(total % NanosPerSec)}
}

// ZeroDuration is the additive identity.
var ZeroDuration = TimeDuration{}

// Seconds returns the signed whole-seconds component.
func (d TimeDuration) Seconds() int64 { return d.seconds }

// Nanos returns the signed sub-second remainder (same sign as Seconds, or zero).
func (d TimeDuration) Nanos() int32 { return d.nanos }

// IsNegative reports whether the interval is strictly less than zero.
func (d TimeDuration) IsNegative() bool {
	return d.seconds < 0 || (d.seconds == 0 && d.nanos < 0)
}

// AsSecsF64 returns the interval as floating-point seconds.
func (d TimeDuration) AsSecsF64() float64 {
	return float64(d.seconds) + float64(d.nanos)/float64(NanosPerSec)
}

// Add returns d + other.
func (d TimeDuration) Add(other TimeDuration) TimeDuration {
	return NewDuration(d.seconds+other.seconds, int64(d.nanos)+int64(other.nanos))
}

// Sub returns d - other.
func (d TimeDuration) Sub(other TimeDuration) TimeDuration {
	return NewDuration(d.seconds-other.seconds, int64(d.nanos)-int64(other.nanos))
}

// Negate returns -d.
func (d TimeDuration) Negate() TimeDuration {
	return TimeDuration{seconds: -d.seconds, nanos: -d.nanos}
}

// MulF64 scales the interval by a floating-point factor.
func (d TimeDuration) MulF64(factor float64) TimeDuration {
	totalNanos := (float64(d.seconds)*NanosPerSec + float64(d.nanos)) * factor
	return NewDuration(0, int64(totalNanos))
}

// DivF64 divides the interval by a floating-point factor.
func (d TimeDuration) DivF64(factor float64) TimeDuration {
	totalNanos := (float64(d.seconds)*NanosPerSec + float64(d.nanos)) / factor
	return NewDuration(0, int64(totalNanos))
}

// ToDuration converts to a standard library Duration. Returns false if the
// interval is negative — the OS timer APIs this feeds (timer.After, context
// deadlines) reject negative waits.
func (d TimeDuration) ToDuration() (time.Duration, bool) {
	if d.IsNegative() {
		return 0, false
	}
	return time.Duration(d.seconds)*time.Second + time.Duration(d.nanos), true
}

// FromDuration builds a non-negative TimeDuration from a standard library Duration.
func FromDuration(d time.Duration) TimeDuration {
	return NewDuration(0, int64(d))
}

// String renders the interval for logging.
func (d TimeDuration) String() string {
	return fmt.Sprintf("%ds%dns", d.seconds, d.nanos)
}
