package chanhandler

import (
	"github.com/corelock/lockstep/internal/clock"
)

// Msg is the payload actually carried on a handler channel: either an
// ordinary event or a polite StopThread request. StopThread rides the same
// channel as events so it is observed in send order, after everything
// queued ahead of it — the handler's current on_event always finishes
// first.
type Msg[T any] struct {
	stop   bool
	result any
	event  T
}

// Event wraps a payload as an ordinary channel message.
func Event[T any](payload T) Msg[T] { return Msg[T]{event: payload} }

// Stop wraps a StopThread request carrying the eventual join result.
func Stop[T any](result any) Msg[T] { return Msg[T]{stop: true, result: result} }

// Handler is implemented by every engine actor (ClientCore, ServerCore,
// FrameManager, GameTimer, listener adapters, ...).
type Handler[T any] interface {
	OnEvent(meta ReceiveMeta, payload T) LoopState
	OnTimeout() LoopState
	OnChannelEmpty() LoopState
	OnChannelDisconnect() LoopState
	OnStopSelf(result any)
}

// HandlerChannel pairs a Sender/Receiver of Msg[T], the shape every handler
// loop actually consumes.
type HandlerChannel[T any] struct {
	Send *Sender[Msg[T]]
	Recv *Receiver[Msg[T]]
}

// NewHandlerChannel creates a real, OS-channel-backed handler channel.
func NewHandlerChannel[T any](src clock.Source, capacity int) HandlerChannel[T] {
	s, r := NewChannel[Msg[T]](src, capacity)
	return HandlerChannel[T]{Send: s, Recv: r}
}

// SendEvent is shorthand for Send.Send(Event(payload)).
func (c HandlerChannel[T]) SendEvent(payload T) bool {
	_, ok := c.Send.Send(Event(payload))
	return ok
}

// SendStop is shorthand for Send.Send(Stop(result)).
func (c HandlerChannel[T]) SendStop(result any) bool {
	_, ok := c.Send.Send(Stop[T](result))
	return ok
}

// Run drives handler to completion against recv, implementing the loop
// described in §4.3: alternate between the handler's requested suspension
// mode and dispatching whatever that suspension yields, until a StopThread
// response (from either the handler or the channel itself) is reached.
//
// Run blocks the calling goroutine; callers spawn it with `go Run(...)` to
// give each actor its own OS thread, matching the real-runtime scheduling
// model of §5.
func Run[T any](recv *Receiver[Msg[T]], handler Handler[T]) {
	state := TryForNextEvent()
	for {
		switch state.Kind {
		case KindStopThread:
			handler.OnStopSelf(state.Result)
			return
		case KindWaitForNextEvent:
			state = dispatchBlocking(recv, handler)
		case KindWaitForNextEventOrTimeout:
			d, ok := state.Timeout.ToDuration()
			if !ok {
				d = 0
			}
			meta, payload, res := recv.RecvTimeout(d)
			state = dispatch(handler, meta, payload, res, true)
		case KindTryForNextEvent:
			meta, payload, res := recv.TryRecvWithMeta()
			state = dispatch(handler, meta, payload, res, false)
		}
	}
}

func dispatchBlocking[T any](recv *Receiver[Msg[T]], handler Handler[T]) LoopState {
	meta, payload, res := recv.RecvTimeout(blockingPoll)
	if res == RecvEmpty {
		// Blocking wait with no stop signal observed within the polling
		// slice; the caller asked to wait indefinitely, so just keep
		// waiting rather than surfacing a spurious timeout.
		return WaitForNextEvent()
	}
	return dispatch(handler, meta, payload, res, false)
}

// blockingPoll bounds how long a "WaitForNextEvent" suspension blocks the
// host goroutine before re-checking for external cancellation (e.g. process
// shutdown); it never surfaces as an OnTimeout call.
const blockingPoll = fullyBlockingSlice

func dispatch[T any](handler Handler[T], meta ReceiveMeta, payload Msg[T], res RecvResult, isTimeout bool) LoopState {
	switch res {
	case RecvOK:
		if payload.stop {
			return StopThread(payload.result)
		}
		return handler.OnEvent(meta, payload.event)
	case RecvDisconnected:
		return handler.OnChannelDisconnect()
	default: // RecvEmpty
		if isTimeout {
			return handler.OnTimeout()
		}
		return handler.OnChannelEmpty()
	}
}

// fullyBlockingSlice is large enough to behave as "block indefinitely" for
// any realistic engine actor while still letting Run notice a closed
// channel promptly (RecvTimeout returns immediately on disconnect).
const fullyBlockingSlice = 1<<63 - 1
