package rollingavg

import (
	"testing"

	"github.com/corelock/lockstep/internal/timeval"
)

func TestMeanOfConstantSamples(t *testing.T) {
	avg := New(50)
	sample := timeval.New(1020, 0)
	for i := 0; i < 50; i++ {
		avg.Add(sample)
	}
	mean, ok := avg.Mean()
	if !ok {
		t.Fatal("expected a mean once samples were added")
	}
	if mean.Seconds() != 1020 || mean.Nanos() != 0 {
		t.Fatalf("mean = %v, want 1020s0ns", mean)
	}
	if !avg.Full() {
		t.Fatal("expected window to report full after 50 samples into a size-50 window")
	}
}

func TestMeanEvictsOldest(t *testing.T) {
	avg := New(2)
	avg.Add(timeval.New(10, 0))
	avg.Add(timeval.New(20, 0))
	avg.Add(timeval.New(30, 0)) // evicts the 10s sample
	mean, _ := avg.Mean()
	if mean.Seconds() != 25 {
		t.Fatalf("mean after eviction = %v, want 25s", mean)
	}
}

func TestMeanEmptyWindow(t *testing.T) {
	avg := New(10)
	if _, ok := avg.Mean(); ok {
		t.Fatal("expected no mean for an empty window")
	}
}
