package gametimer

import (
	"testing"

	"github.com/corelock/lockstep/internal/timeval"
	"github.com/corelock/lockstep/internal/wire"
)

func TestServerAdvancesOneFramePerDuration(t *testing.T) {
	step := timeval.NewDuration(0, 100_000_000) // 100ms
	s := New(step, 1)
	start := timeval.New(1000, 0)
	s.StartServerTimer(start)

	if idx, ok := s.TryAdvanceFrameIndex(start); ok || idx != 0 {
		t.Fatalf("frame should not advance before one full step has elapsed, got idx=%d ok=%v", idx, ok)
	}

	now := start.Add(timeval.NewDuration(0, 250_000_000))
	idx, ok := s.TryAdvanceFrameIndex(now)
	if !ok || idx != 2 {
		t.Fatalf("after 250ms at 100ms/frame, want frame 2, got idx=%d ok=%v", idx, ok)
	}

	// Calling again at the same time must not re-fire.
	if _, ok := s.TryAdvanceFrameIndex(now); ok {
		t.Fatal("TryAdvanceFrameIndex fired twice for the same instant")
	}
}

// TestClientAlignsToServerStartTime reproduces the worked clock-alignment
// example: server start = 1000ms, period = 50ms, the client receives a
// TimeMessage for frame_index=40 (scheduled at 3000ms, fired exactly on
// schedule) while its own local clock reads 3020ms. The aligned start_time
// the client derives is in its own clock's frame — now minus period times
// frame_index — not the server's raw, un-synchronized StartTime field.
func TestClientAlignsToServerStartTime(t *testing.T) {
	step := timeval.NewDuration(0, 50_000_000)
	c := New(step, 4)

	scheduled := timeval.New(3, 0) // 3000ms: server start (1000ms) + 40*50ms
	now := timeval.New(3, 20_000_000)
	msg := wire.TimeMessage{
		StartTime:     timeval.New(1, 0), // the server's own clock; not locally comparable
		ScheduledTime: scheduled,
		ActualTime:    scheduled, // fired exactly on schedule: no lateness
		FrameDuration: step,
		FrameIndex:    40,
	}

	c.AdjustFromRemote(msg, now)
	if !c.Started() {
		t.Fatal("client scheduler should be started after first remote time message")
	}
	want := timeval.New(1, 20_000_000) // 1020ms
	if !c.StartTime().Equal(want) {
		t.Fatalf("start time = %v, want %v", c.StartTime(), want)
	}
}

func TestClientAlignmentStableOnIdenticalSignal(t *testing.T) {
	step := timeval.NewDuration(0, 50_000_000)
	c := New(step, 1) // window size 1: mean always equals the latest sample
	now := timeval.New(2000, 0)

	first := wire.TimeMessage{StartTime: timeval.New(1000, 0), ActualTime: now, FrameDuration: step}
	c.AdjustFromRemote(first, now)
	established := c.StartTime()

	// A second, identical message implies the same start, so the
	// single-sample window's mean, and with it the alignment, must not move.
	second := wire.TimeMessage{StartTime: timeval.New(1000, 0), ActualTime: now, FrameDuration: step}
	c.AdjustFromRemote(second, now)
	if c.StartTime().Seconds() != established.Seconds() {
		t.Fatalf("start time drifted on identical remote input: %v -> %v", established, c.StartTime())
	}
}
