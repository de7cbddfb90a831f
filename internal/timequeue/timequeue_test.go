package timequeue

import (
	"testing"

	"github.com/corelock/lockstep/internal/clock"
	"github.com/corelock/lockstep/internal/timeval"
)

func TestAdvanceTimeFiresInOrder(t *testing.T) {
	sim := clock.NewSim(timeval.New(0, 0))
	q := New(sim)
	var order []string
	q.AddEvent(timeval.New(5, 0), func() { order = append(order, "five") })
	q.AddEvent(timeval.New(2, 0), func() { order = append(order, "two") })
	q.AddEvent(timeval.New(2, 0), func() { order = append(order, "two-again") })

	fired := q.AdvanceTime(timeval.New(10, 0))
	if fired != 3 {
		t.Fatalf("fired = %d, want 3", fired)
	}
	want := []string{"two", "two-again", "five"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("order[%d] = %q, want %q", i, order[i], w)
		}
	}
	if !q.Now().Equal(timeval.New(10, 0)) {
		t.Fatalf("clock = %v, want 10s", q.Now())
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	sim := clock.NewSim(timeval.New(0, 0))
	q := New(sim)
	fired := false
	id := q.AddEvent(timeval.New(1, 0), func() { fired = true })
	if !q.Cancel(id) {
		t.Fatal("expected cancel to succeed")
	}
	q.AdvanceTime(timeval.New(5, 0))
	if fired {
		t.Fatal("canceled event should not fire")
	}
}

func TestAdvanceTimeNoPendingStillMovesClock(t *testing.T) {
	sim := clock.NewSim(timeval.New(0, 0))
	q := New(sim)
	q.AdvanceTime(timeval.New(3, 0))
	if !q.Now().Equal(timeval.New(3, 0)) {
		t.Fatalf("clock = %v, want 3s", q.Now())
	}
}

func TestScheduledDuringCallbackFiresIfDue(t *testing.T) {
	sim := clock.NewSim(timeval.New(0, 0))
	q := New(sim)
	var secondFired bool
	q.AddEvent(timeval.New(1, 0), func() {
		q.AddEvent(timeval.New(2, 0), func() { secondFired = true })
	})
	q.AdvanceTime(timeval.New(5, 0))
	if !secondFired {
		t.Fatal("expected event scheduled mid-drain to still fire within the advance window")
	}
}
