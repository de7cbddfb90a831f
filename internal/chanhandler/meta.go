// Package chanhandler is the engine's concurrency substrate: a typed
// single-producer/multi-consumer channel carrying (SendMeta, T), and a
// generic event-handler loop that consumes it. Both a real (OS-thread,
// blocking-channel) runtime and a simulated (single-threaded, virtual-clock)
// runtime implement the same contract, per the capability-bundle redesign
// note — nothing outside this package and its simulated counterpart knows
// which one it is driving.
package chanhandler

import "github.com/corelock/lockstep/internal/timeval"

// SendMeta stamps the sender's clock reading at the moment of send.
type SendMeta struct {
	SentAt timeval.TimeValue
}

// ReceiveMeta stamps both the sender's send time and the receiver's observed
// receive time, for in-queue latency diagnostics.
type ReceiveMeta struct {
	SendMeta
	ReceivedAt timeval.TimeValue
}

// Latency returns ReceivedAt - SentAt.
func (m ReceiveMeta) Latency() timeval.TimeDuration {
	return m.ReceivedAt.Sub(m.SentAt)
}
