// Package clock defines the TimeSource capability that lets the rest of the
// engine run identically against a real OS clock or a deterministic
// simulated one, per the capability-bundle redesign point: no code outside
// this package and internal/timequeue knows which implementation it got.
package clock

import "github.com/corelock/lockstep/internal/timeval"

// Source abstracts "what time is it" for both real and simulated runtimes.
type Source interface {
	Now() timeval.TimeValue
}

// Real reads the operating system clock.
type Real struct{}

// Now returns the current wall-clock instant.
func (Real) Now() timeval.TimeValue { return timeval.Now() }

// Sim is a Source whose value is set by an external driver — the virtual
// time queue (internal/timequeue) — rather than by reading the OS clock.
// It is intentionally a thin, lock-free value: the simulator is explicitly
// single-threaded (§5), so no synchronization is required here.
type Sim struct {
	now timeval.TimeValue
}

// NewSim creates a simulated clock starting at the given instant.
func NewSim(start timeval.TimeValue) *Sim {
	return &Sim{now: start}
}

// Now returns the simulator's current virtual instant.
func (s *Sim) Now() timeval.TimeValue { return s.now }

// Set advances (or, for test setup, rewinds) the simulated clock. Only the
// virtual time queue driving the simulation should call this.
func (s *Sim) Set(t timeval.TimeValue) { s.now = t }
