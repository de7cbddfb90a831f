// Package timeval implements the engine's time primitives: an absolute
// instant (TimeValue) and a signed interval (TimeDuration), both normalized
// to nanosecond precision the way the engine's frame arithmetic requires.
package timeval

import "time"

// NanosPerSec is the number of nanoseconds in one second.
const NanosPerSec = 1_000_000_000

// TimeValue is an absolute instant: seconds since the Unix epoch plus a
// nanosecond remainder always kept in [0, NanosPerSec).
type TimeValue struct {
	secondsSinceEpoch uint64
	nanos             uint32
}

// Epoch is the zero TimeValue.
var Epoch = TimeValue{}

// New builds a normalized TimeValue, folding any nanos >= NanosPerSec into
// seconds.
func New(secondsSinceEpoch uint64, nanos uint32) TimeValue {
	secondsSinceEpoch += uint64(nanos / NanosPerSec)
	nanos %= NanosPerSec
	return TimeValue{secondsSinceEpoch: secondsSinceEpoch, nanos: nanos}
}

// Now returns the current wall-clock instant.
func Now() TimeValue {
	t := time.Now().UTC()
	return New(uint64(t.Unix()), uint32(t.Nanosecond()))
}

// FromTime converts a standard library time.Time.
func FromTime(t time.Time) TimeValue {
	secs := t.Unix()
	if secs < 0 {
		secs = 0
	}
	return New(uint64(secs), uint32(t.Nanosecond()))
}

// Seconds returns the whole-seconds component.
func (t TimeValue) Seconds() uint64 { return t.secondsSinceEpoch }

// Nanos returns the sub-second nanosecond remainder.
func (t TimeValue) Nanos() uint32 { return t.nanos }

// AsSecsF64 returns the instant as floating-point seconds since the epoch.
func (t TimeValue) AsSecsF64() float64 {
	return float64(t.secondsSinceEpoch) + float64(t.nanos)/float64(NanosPerSec)
}

// Compare returns -1, 0, or 1 as t is before, equal to, or after other.
func (t TimeValue) Compare(other TimeValue) int {
	switch {
	case t.secondsSinceEpoch < other.secondsSinceEpoch:
		return -1
	case t.secondsSinceEpoch > other.secondsSinceEpoch:
		return 1
	case t.nanos < other.nanos:
		return -1
	case t.nanos > other.nanos:
		return 1
	default:
		return 0
	}
}

// Before reports whether t is strictly earlier than other.
func (t TimeValue) Before(other TimeValue) bool { return t.Compare(other) < 0 }

// After reports whether t is strictly later than other.
func (t TimeValue) After(other TimeValue) bool { return t.Compare(other) > 0 }

// Equal reports value equality.
func (t TimeValue) Equal(other TimeValue) bool { return t.Compare(other) == 0 }

// Sub computes the signed duration t - other.
func (t TimeValue) Sub(other TimeValue) TimeDuration {
	secs := int64(t.secondsSinceEpoch) - int64(other.secondsSinceEpoch)
	nanos := int64(t.nanos) - int64(other.nanos)
	return NewDuration(secs, nanos)
}

// Add returns t advanced by d.
func (t TimeValue) Add(d TimeDuration) TimeValue {
	secs := int64(t.secondsSinceEpoch) + d.seconds
	nanos := int64(t.nanos) + int64(d.nanos)
	if nanos < 0 {
		secs--
		nanos += NanosPerSec
	} else if nanos >= NanosPerSec {
		secs++
		nanos -= NanosPerSec
	}
	// secondsSinceEpoch is unsigned, so a pre-epoch result is unrepresentable;
	// clamp to Epoch rather than wrap or panic.
	if secs < 0 {
		secs = 0
	}
	return New(uint64(secs), uint32(nanos))
}

// String renders the instant for logging.
func (t TimeValue) String() string {
	return time.Unix(int64(t.secondsSinceEpoch), int64(t.nanos)).UTC().Format(time.RFC3339Nano)
}
