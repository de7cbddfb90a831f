// Package game declares the capability interfaces a concrete game plugs
// into the engine (§6): how to seed state, how to compute a successor, how
// to interpolate between two states for rendering, and how to turn local
// input events into the wire input type. ClientCore and ServerCore are
// generic over these interfaces; they never know anything about a specific
// game's rules.
package game

import (
	"github.com/corelock/lockstep/internal/timeval"
	"github.com/corelock/lockstep/internal/wire"
)

// UpdateArg is handed to Game.NextState for every frame the engine
// advances. It exposes the frame being produced, every player's input for
// the frame it is produced from, and the server's per-frame input
// (ServerInput: derived locally on the server, taken from the server's
// broadcast on a client), which mirrors the
// original engine's split between player-authored and server-authored
// input (e.g. spawn events, RNG seeds).
type UpdateArg[I any, SI any] struct {
	NextFrameIndex wire.FrameIndex
	Inputs         []I
	ServerInput    *SI
}

// Input returns player playerIndex's input, or false if out of range.
func (a UpdateArg[I, SI]) Input(playerIndex wire.PlayerIndex) (I, bool) {
	if int(playerIndex) >= len(a.Inputs) {
		var zero I
		return zero, false
	}
	return a.Inputs[playerIndex], true
}

// InterpolationArg describes how far between two authoritative states a
// render should land, both as a [0,1] weight and as wall-clock elapsed
// time since the session started — games that animate by elapsed time
// rather than frame fraction want the latter.
type InterpolationArg struct {
	Weight              float64
	DurationSinceStart  timeval.TimeDuration
}

// Game is the capability interface a concrete game implements. S is the
// authoritative state type, I the per-player input type, SI the
// server-authored per-frame input type, R the interpolated render output.
type Game[S any, I any, SI any, R any] interface {
	// InitialState seeds the frame-zero state for a session of playerCount
	// players.
	InitialState(playerCount int) S

	// NextState computes the successor of current given arg. Called on
	// both server (authoritative path) and client (predictive path) —
	// must be a pure function of its arguments for determinism (§4.7).
	NextState(current S, arg UpdateArg[I, SI]) S

	// ServerInput lets the server attach authoritative, non-player input
	// (e.g. spawns, RNG draws) to the frame about to be produced. Return
	// the zero value of SI if the game has no server-authored input.
	ServerInput(current S, nextFrameIndex wire.FrameIndex, inputs []I) SI

	// Interpolate renders a point between first and second for display.
	Interpolate(initialInfo wire.InitialInformation[S], first, second S, arg InterpolationArg) R

	TCPPort() uint16
	UDPPort() uint16
	StepPeriod() timeval.TimeDuration
	GracePeriod() timeval.TimeDuration
	TimeSyncPeriod() timeval.TimeDuration
	ClockAverageSize() int
	MaxDatagramSize() int
}

// InputAggregator turns a stream of local input events (key presses, mouse
// moves, controller state — opaque to the engine) into the wire input type
// sampled once per frame. One instance is owned exclusively by ClientCore.
type InputAggregator[E any, I any] interface {
	HandleInputEvent(event E)
	GetInput() I
}
