package chanhandler

import (
	"github.com/corelock/lockstep/internal/timequeue"
	"github.com/corelock/lockstep/internal/timeval"
)

// SimMode is the internal state of a SimChannel.
type SimMode int

const (
	// ModeQueue means messages accumulate for a future pull.
	ModeQueue SimMode = iota
	// ModeConsumer means each send immediately invokes the holder's
	// callback on the caller's stack — this is how the simulator drives
	// handlers synchronously, without threads.
	ModeConsumer
	// ModeDisconnected means sends fail; the receiver is gone.
	ModeDisconnected
)

type simEntry[T any] struct {
	meta    SendMeta
	message Msg[T]
}

// SimChannel is the simulated-runtime counterpart of a real handler
// channel: same (SendMeta, T) contract, but driven entirely by a
// timequeue.Queue rather than by blocking on an OS channel.
type SimChannel[T any] struct {
	q        *timequeue.Queue
	mode     SimMode
	buffered []simEntry[T]
	deliver  func(ReceiveMeta, Msg[T])
}

// NewSimChannel creates a channel in Queue mode.
func NewSimChannel[T any](q *timequeue.Queue) *SimChannel[T] {
	return &SimChannel[T]{q: q, mode: ModeQueue}
}

// Send enqueues or synchronously delivers msg depending on the current mode.
func (c *SimChannel[T]) Send(msg Msg[T]) bool {
	if c.mode == ModeDisconnected {
		return false
	}
	meta := SendMeta{SentAt: c.q.Now()}
	if c.mode == ModeConsumer && c.deliver != nil {
		c.deliver(ReceiveMeta{SendMeta: meta, ReceivedAt: c.q.Now()}, msg)
		return true
	}
	c.buffered = append(c.buffered, simEntry[T]{meta: meta, message: msg})
	return true
}

// SendEvent is shorthand for Send(Event(payload)).
func (c *SimChannel[T]) SendEvent(payload T) bool { return c.Send(Event(payload)) }

// SendStop is shorthand for Send(Stop(result)).
func (c *SimChannel[T]) SendStop(result any) bool { return c.Send(Stop[T](result)) }

// switchToConsumer drains anything buffered through fn (in arrival order)
// then switches into Consumer mode.
func (c *SimChannel[T]) switchToConsumer(fn func(ReceiveMeta, Msg[T])) {
	pending := c.buffered
	c.buffered = nil
	c.mode = ModeConsumer
	c.deliver = fn
	for _, e := range pending {
		fn(ReceiveMeta{SendMeta: e.meta, ReceivedAt: c.q.Now()}, e.message)
	}
}

func (c *SimChannel[T]) switchToQueue() {
	c.mode = ModeQueue
	c.deliver = nil
}

// Disconnect marks the channel disconnected; further sends fail.
func (c *SimChannel[T]) Disconnect() { c.mode = ModeDisconnected }

// holderState guards against re-entering a handler that is already
// executing, per the §9 design note — the source's implicit take-or-noop
// guard made explicit as a small state machine with an assertion.
type holderState int

const (
	holderIdle holderState = iota
	holderRunning
)

// Holder drives a Handler against a SimChannel using a timequeue instead of
// blocking OS primitives: a WaitForNextEventOrTimeout suspension becomes a
// scheduled wake, while WaitForNextEvent schedules nothing and simply waits
// for the next message; an arriving message cancels any pending wake and
// invokes on_event directly.
type Holder[T any] struct {
	Channel *SimChannel[T]
	handler Handler[T]
	queue   *timequeue.Queue
	state   holderState
	wake    timequeue.EventID
	hasWake bool
	stopped bool
}

// NewHolder creates a Holder and immediately drives the handler's initial
// TryForNextEvent suspension.
func NewHolder[T any](q *timequeue.Queue, handler Handler[T]) *Holder[T] {
	h := &Holder[T]{Channel: NewSimChannel[T](q), handler: handler, queue: q}
	h.Channel.switchToConsumer(h.onMessage)
	h.apply(TryForNextEvent())
	return h
}

func (h *Holder[T]) onMessage(meta ReceiveMeta, msg Msg[T]) {
	if h.stopped {
		return
	}
	if h.hasWake {
		h.queue.Cancel(h.wake)
		h.hasWake = false
	}
	h.enter()
	var next LoopState
	if msg.stop {
		next = StopThread(msg.result)
	} else {
		next = h.handler.OnEvent(meta, msg.event)
	}
	h.leave()
	h.apply(next)
}

// enter asserts the re-entrancy guard and marks the holder busy.
func (h *Holder[T]) enter() {
	if h.state == holderRunning {
		panic("chanhandler: re-entered a running holder")
	}
	h.state = holderRunning
}

func (h *Holder[T]) leave() { h.state = holderIdle }

// apply interprets a LoopState the way the real Run loop does, except that
// blocking suspensions become scheduled wakes on the virtual time queue
// instead of OS blocking calls.
func (h *Holder[T]) apply(state LoopState) {
	for {
		switch state.Kind {
		case KindStopThread:
			h.stopped = true
			h.Channel.switchToQueue()
			h.handler.OnStopSelf(state.Result)
			return
		case KindTryForNextEvent:
			// Nothing buffered (consumer mode drained synchronously on
			// send); dispatch ChannelEmpty immediately and loop.
			h.enter()
			next := h.handler.OnChannelEmpty()
			h.leave()
			state = next
			continue
		case KindWaitForNextEvent:
			h.hasWake = false
			return
		case KindWaitForNextEventOrTimeout:
			h.scheduleWake(state.Timeout)
			return
		}
	}
}

// scheduleWake arranges for OnTimeout to fire after d of virtual time,
// unless a message arrives first (onMessage cancels the pending wake).
func (h *Holder[T]) scheduleWake(d timeval.TimeDuration) {
	at := h.queue.Now().Add(d)
	h.hasWake = true
	h.wake = h.queue.AddEvent(at, func() {
		h.hasWake = false
		h.enter()
		next := h.handler.OnTimeout()
		h.leave()
		h.apply(next)
	})
}

// Stop delivers an external StopThread request through the channel, same as
// a real channel send.
func (h *Holder[T]) Stop(result any) { h.Channel.SendStop(result) }
