package server

import (
	"github.com/corelock/lockstep/internal/frame"
	"github.com/corelock/lockstep/internal/game"
	"github.com/corelock/lockstep/internal/wire"
)

// serverComputer adapts a game.Game to frame.NextStateComputer on the
// authoritative side: unlike the client, the server derives SI itself
// rather than reading it off the wire, and reports every derived value back
// through onServerInput so the caller can broadcast it once the frame that
// used it is promoted.
type serverComputer[S any, I any, SI any, R any] struct {
	game          game.Game[S, I, SI, R]
	onServerInput func(nextIndex wire.FrameIndex, si SI)
}

var _ frame.NextStateComputer[int, int] = serverComputer[int, int, int, int]{}

func (c serverComputer[S, I, SI, R]) ComputeNextState(nextIndex wire.FrameIndex, current S, inputs []I) S {
	si := c.game.ServerInput(current, nextIndex, inputs)
	if c.onServerInput != nil {
		c.onServerInput(nextIndex, si)
	}
	return c.game.NextState(current, game.UpdateArg[I, SI]{
		NextFrameIndex: nextIndex,
		Inputs:         inputs,
		ServerInput:    &si,
	})
}

// serverObserver forwards frame.Manager transitions to the Core so they can
// be broadcast and handed to the render channel.
type serverObserver[S any, I any, SI any, R any] struct {
	core *Core[S, I, SI, R]
}

var _ frame.Observer[int] = serverObserver[int, int, int, int]{}

func (o serverObserver[S, I, SI, R]) NewState(isAuthoritative bool, frameIndex wire.FrameIndex, state S) {
	o.core.onNewState(isAuthoritative, frameIndex, state)
}

func (o serverObserver[S, I, SI, R]) InputAuthoritativelyMissing(frameIndex wire.FrameIndex, playerIndex wire.PlayerIndex) {
	o.core.onInputMissing(frameIndex, playerIndex)
}
