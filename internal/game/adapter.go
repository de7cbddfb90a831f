package game

import (
	"github.com/corelock/lockstep/internal/frame"
	"github.com/corelock/lockstep/internal/wire"
)

// NextStateComputer adapts a Game into frame.NextStateComputer[S,I]. The
// frame manager is generic only over state and player input (§4.7); the
// server-authored per-frame input SI lives outside the frame store and is
// threaded in here via serverInputFor, which the owning core keeps current
// as ServerInputMessages arrive (or, on the authoring side, as the game
// produces them).
type NextStateComputer[S any, I any, SI any, R any] struct {
	Game           Game[S, I, SI, R]
	ServerInputFor func(nextFrameIndex wire.FrameIndex) *SI
}

// ComputeNextState implements frame.NextStateComputer.
func (c NextStateComputer[S, I, SI, R]) ComputeNextState(nextIndex wire.FrameIndex, current S, inputs []I) S {
	var serverInput *SI
	if c.ServerInputFor != nil {
		serverInput = c.ServerInputFor(nextIndex)
	}
	return c.Game.NextState(current, UpdateArg[I, SI]{
		NextFrameIndex: nextIndex,
		Inputs:         inputs,
		ServerInput:    serverInput,
	})
}

var _ frame.NextStateComputer[int, int] = NextStateComputer[int, int, int, int]{}
