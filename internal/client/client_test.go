package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/corelock/lockstep/internal/clock"
	"github.com/corelock/lockstep/internal/examplegame"
	"github.com/corelock/lockstep/internal/game"
	"github.com/corelock/lockstep/internal/gametimer"
	"github.com/corelock/lockstep/internal/server"
	"github.com/corelock/lockstep/internal/timeval"
	"github.com/corelock/lockstep/internal/wire"
)

func TestClientConnectsAndReceivesState(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	g := examplegame.New(17301, 17302)
	srv := server.New[examplegame.State, examplegame.Input, examplegame.ServerInput, examplegame.State](
		g, server.WithListenIP(net.IPv4(127, 0, 0, 1)),
	)
	go func() { _ = srv.Serve(ctx) }()
	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server not ready")
	}

	aggregator := examplegame.NewAggregator()
	c := New[examplegame.State, examplegame.Input, examplegame.ServerInput, examplegame.State, examplegame.InputEvent](g, aggregator)

	render := make(chan game.RenderEvent[examplegame.State], 64)
	runDone := make(chan error, 1)
	go func() {
		runDone <- c.Run(ctx, "127.0.0.1", render)
	}()

	joinDeadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(joinDeadline) && srv.PlayerCount() != 1 {
		time.Sleep(5 * time.Millisecond)
	}
	if n := srv.PlayerCount(); n != 1 {
		t.Fatalf("expected client to register with server, got player count %d", n)
	}
	srv.StartGame(nil)

	var sawInitial, sawState bool
	deadline := time.After(3 * time.Second)
	for !sawInitial || !sawState {
		select {
		case ev := <-render:
			switch ev.Kind {
			case game.RenderInitialInformation:
				sawInitial = true
			case game.RenderState:
				sawState = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for render events (initial=%v state=%v)", sawInitial, sawState)
		}
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("client Run did not return after cancel")
	}
}

// TestOnTimeMessageUsesInjectedClock drives onTimeMessage directly against a
// WithClock-injected clock.Sim, bypassing the network entirely, to confirm
// ClientCore reads "now" through the injected source rather than always
// hitting the OS clock when aligning to the server's time signal (§4.6).
func TestOnTimeMessageUsesInjectedClock(t *testing.T) {
	g := examplegame.New(17305, 17306)
	aggregator := examplegame.NewAggregator()
	fixed := timeval.New(99, 0)
	sim := clock.NewSim(fixed)
	c := New[examplegame.State, examplegame.Input, examplegame.ServerInput, examplegame.State, examplegame.InputEvent](
		g, aggregator,
		WithClock[examplegame.State, examplegame.Input, examplegame.ServerInput, examplegame.State, examplegame.InputEvent](sim),
	)
	c.scheduler = gametimer.New(timeval.NewDuration(0, 50_000_000), 4)

	msg := wire.TimeMessage{
		StartTime:     timeval.New(1, 0),
		ScheduledTime: timeval.New(1, 0),
		ActualTime:    timeval.New(1, 0),
		FrameDuration: timeval.NewDuration(0, 50_000_000),
		FrameIndex:    0,
	}
	c.onTimeMessage(msg)

	if !c.scheduler.Started() {
		t.Fatal("scheduler should be started after onTimeMessage")
	}
	if got := c.scheduler.StartTime(); !got.Equal(fixed) {
		t.Fatalf("start time = %v, want %v (injected clock)", got, fixed)
	}
}

func TestNewClientZeroValuePlayerIndex(t *testing.T) {
	g := examplegame.New(17303, 17304)
	aggregator := examplegame.NewAggregator()
	c := New[examplegame.State, examplegame.Input, examplegame.ServerInput, examplegame.State, examplegame.InputEvent](g, aggregator)
	if idx := c.PlayerIndex(); idx != 0 {
		t.Fatalf("expected zero-value player index before Run, got %d", idx)
	}
}
