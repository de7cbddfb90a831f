// Package timequeue implements the virtual time queue that drives the
// single-threaded simulated runtime: an ordered sequence of (time, id,
// callback) triples. AdvanceTime iteratively sets the simulated clock to
// each upcoming event time at or before the target and drains it; RunEvents
// drains everything already due.
package timequeue

import (
	"container/heap"

	"github.com/corelock/lockstep/internal/clock"
	"github.com/corelock/lockstep/internal/timeval"
)

// EventID identifies a scheduled event for cancellation.
type EventID uint64

type entry struct {
	at       timeval.TimeValue
	id       EventID
	seq      uint64 // break ties in favor of scheduling order
	callback func()
	index    int
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if c := h[i].at.Compare(h[j].at); c != 0 {
		return c < 0
	}
	return h[i].seq < h[j].seq
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is a single-threaded priority queue of pending callbacks paired with
// a simulated clock it advances as it drains.
type Queue struct {
	clock   *clock.Sim
	pending entryHeap
	byID    map[EventID]*entry
	nextID  EventID
	nextSeq uint64
}

// New creates a Queue anchored to the given simulated clock.
func New(simClock *clock.Sim) *Queue {
	return &Queue{clock: simClock, byID: make(map[EventID]*entry)}
}

// Now returns the queue's current virtual instant.
func (q *Queue) Now() timeval.TimeValue { return q.clock.Now() }

// AddEvent schedules callback to run at instant "at". Returns an id usable
// with Cancel.
func (q *Queue) AddEvent(at timeval.TimeValue, callback func()) EventID {
	q.nextID++
	q.nextSeq++
	e := &entry{at: at, id: q.nextID, seq: q.nextSeq, callback: callback}
	heap.Push(&q.pending, e)
	q.byID[e.id] = e
	return e.id
}

// AddEventAfter schedules callback to run d after the queue's current time.
func (q *Queue) AddEventAfter(d timeval.TimeDuration, callback func()) EventID {
	return q.AddEvent(q.Now().Add(d), callback)
}

// Cancel removes a pending event. Returns false if it already fired or
// never existed.
func (q *Queue) Cancel(id EventID) bool {
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	delete(q.byID, id)
	if e.index >= 0 {
		heap.Remove(&q.pending, e.index)
	}
	return true
}

// RunEvents drains every event already due at the queue's current virtual
// time without advancing the clock further.
func (q *Queue) RunEvents() int {
	return q.drainUntil(q.Now())
}

// AdvanceTime moves the simulated clock forward to target, draining every
// event at or before target in time order (including ones newly scheduled
// by earlier callbacks that fall at or before target).
func (q *Queue) AdvanceTime(target timeval.TimeValue) int {
	fired := 0
	for {
		if len(q.pending) == 0 {
			break
		}
		next := q.pending[0]
		if next.at.After(target) {
			break
		}
		q.clock.Set(next.at)
		heap.Pop(&q.pending)
		delete(q.byID, next.id)
		next.callback()
		fired++
	}
	if q.Now().Before(target) {
		q.clock.Set(target)
	}
	return fired
}

func (q *Queue) drainUntil(at timeval.TimeValue) int {
	fired := 0
	for len(q.pending) > 0 && !q.pending[0].at.After(at) {
		e := heap.Pop(&q.pending).(*entry)
		delete(q.byID, e.id)
		e.callback()
		fired++
	}
	return fired
}

// Pending reports how many events remain scheduled.
func (q *Queue) Pending() int { return len(q.pending) }
