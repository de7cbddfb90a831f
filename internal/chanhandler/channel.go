package chanhandler

import (
	"time"

	"github.com/corelock/lockstep/internal/clock"
	"github.com/corelock/lockstep/internal/timeval"
)

type envelope[T any] struct {
	meta    SendMeta
	payload T
}

// RecvResult is the outcome of a non-blocking receive attempt.
type RecvResult int

const (
	// RecvOK means a message was returned.
	RecvOK RecvResult = iota
	// RecvEmpty means no message was ready.
	RecvEmpty
	// RecvDisconnected means the sender side is gone and no more messages
	// will ever arrive.
	RecvDisconnected
)

// Sender is the send half of a Channel. Send blocks while the buffer is
// full; Go's buffered channel semantics stand in for the reference design's
// bounded queue.
type Sender[T any] struct {
	src    clock.Source
	ch     chan envelope[T]
	closed chan struct{}
}

// Send enqueues payload, stamped with the sender's current time, waiting for
// buffer space if needed. Returns the payload back with false once the
// channel has been closed, mirroring Err(T) instead of silently dropping it.
func (s *Sender[T]) Send(payload T) (T, bool) {
	select {
	case <-s.closed:
		return payload, false
	default:
	}
	env := envelope[T]{meta: SendMeta{SentAt: s.src.Now()}, payload: payload}
	select {
	case s.ch <- env:
		return payload, true
	case <-s.closed:
		return payload, false
	}
}

// Close marks the channel disconnected; subsequent Sends fail.
func (s *Sender[T]) Close() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
}

// Receiver is the receive half of a Channel.
type Receiver[T any] struct {
	src    clock.Source
	ch     chan envelope[T]
	closed chan struct{}
}

// TryRecvWithMeta performs a non-blocking receive.
func (r *Receiver[T]) TryRecvWithMeta() (ReceiveMeta, T, RecvResult) {
	select {
	case env, ok := <-r.ch:
		if !ok {
			var zero T
			return ReceiveMeta{}, zero, RecvDisconnected
		}
		return ReceiveMeta{SendMeta: env.meta, ReceivedAt: r.src.Now()}, env.payload, RecvOK
	default:
	}
	select {
	case <-r.closed:
		var zero T
		return ReceiveMeta{}, zero, RecvDisconnected
	default:
	}
	var zero T
	return ReceiveMeta{}, zero, RecvEmpty
}

// RecvTimeout blocks up to d for a message. Real channels only — simulated
// channels never block a host thread (they schedule a wake on the virtual
// time queue instead; see SimChannel).
func (r *Receiver[T]) RecvTimeout(d time.Duration) (ReceiveMeta, T, RecvResult) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case env, ok := <-r.ch:
		if !ok {
			var zero T
			return ReceiveMeta{}, zero, RecvDisconnected
		}
		return ReceiveMeta{SendMeta: env.meta, ReceivedAt: r.src.Now()}, env.payload, RecvOK
	case <-r.closed:
		return r.TryRecvWithMeta()
	case <-timer.C:
		var zero T
		return ReceiveMeta{}, zero, RecvEmpty
	}
}

// NewChannel creates a real, OS-channel-backed Channel with the given
// buffer capacity.
func NewChannel[T any](src clock.Source, capacity int) (*Sender[T], *Receiver[T]) {
	ch := make(chan envelope[T], capacity)
	closed := make(chan struct{})
	return &Sender[T]{src: src, ch: ch, closed: closed},
		&Receiver[T]{src: src, ch: ch, closed: closed}
}

// LoopStateKind discriminates the four responses a handler may return.
type LoopStateKind int

const (
	// KindWaitForNextEvent blocks indefinitely on the channel.
	KindWaitForNextEvent LoopStateKind = iota
	// KindWaitForNextEventOrTimeout blocks on the channel up to a duration.
	KindWaitForNextEventOrTimeout
	// KindTryForNextEvent polls the channel without blocking.
	KindTryForNextEvent
	// KindStopThread ends the loop, delivering a result to the join callback.
	KindStopThread
)

// LoopState is the handler's directive for what the loop should do next.
type LoopState struct {
	Kind    LoopStateKind
	Timeout timeval.TimeDuration
	Result  any
}

// WaitForNextEvent blocks until a message or stop arrives.
func WaitForNextEvent() LoopState { return LoopState{Kind: KindWaitForNextEvent} }

// WaitForNextEventOrTimeout blocks up to d.
func WaitForNextEventOrTimeout(d timeval.TimeDuration) LoopState {
	return LoopState{Kind: KindWaitForNextEventOrTimeout, Timeout: d}
}

// TryForNextEvent polls once without blocking.
func TryForNextEvent() LoopState { return LoopState{Kind: KindTryForNextEvent} }

// StopThread ends the loop and hands result to the join callback.
func StopThread(result any) LoopState { return LoopState{Kind: KindStopThread, Result: result} }
