package chanhandler

import (
	"sync"
	"testing"

	"github.com/corelock/lockstep/internal/clock"
	"github.com/corelock/lockstep/internal/timequeue"
	"github.com/corelock/lockstep/internal/timeval"
)

// countingHandler accumulates events until asked to stop, always waiting
// indefinitely in between — the common shape of a long-lived actor.
type countingHandler struct {
	mu       sync.Mutex
	received []int
	stopped  chan any
}

func (h *countingHandler) OnEvent(_ ReceiveMeta, payload int) LoopState {
	h.mu.Lock()
	h.received = append(h.received, payload)
	h.mu.Unlock()
	return WaitForNextEvent()
}
func (h *countingHandler) OnTimeout() LoopState           { return WaitForNextEvent() }
func (h *countingHandler) OnChannelEmpty() LoopState      { return WaitForNextEvent() }
func (h *countingHandler) OnChannelDisconnect() LoopState { return StopThread("disconnected") }
func (h *countingHandler) OnStopSelf(result any)          { h.stopped <- result }

func TestRealRunDeliversEventsInOrderThenStops(t *testing.T) {
	hc := NewHandlerChannel[int](clock.Real{}, 8)
	handler := &countingHandler{stopped: make(chan any, 1)}
	go Run(hc.Recv, handler)

	for i := 0; i < 5; i++ {
		if !hc.SendEvent(i) {
			t.Fatalf("send %d failed", i)
		}
	}
	hc.SendStop("done")

	result := <-handler.stopped
	if result != "done" {
		t.Fatalf("stop result = %v, want %q", result, "done")
	}
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.received) != 5 {
		t.Fatalf("received %d events, want 5", len(handler.received))
	}
	for i, v := range handler.received {
		if v != i {
			t.Fatalf("received[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestSimulatedHolderDeliversSynchronously(t *testing.T) {
	handler := &countingHandler{stopped: make(chan any, 1)}
	sim := clock.NewSim(timeval.New(0, 0))
	q := timequeue.New(sim)
	holder := NewHolder[int](q, handler)

	holder.Channel.SendEvent(1)
	holder.Channel.SendEvent(2)
	holder.Stop("bye")

	handler.mu.Lock()
	got := append([]int(nil), handler.received...)
	handler.mu.Unlock()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("received = %v, want [1 2]", got)
	}
	select {
	case r := <-handler.stopped:
		if r != "bye" {
			t.Fatalf("stop result = %v, want bye", r)
		}
	default:
		t.Fatal("expected OnStopSelf to have been called synchronously")
	}
}
