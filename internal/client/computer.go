package client

import (
	"github.com/corelock/lockstep/internal/frame"
	"github.com/corelock/lockstep/internal/game"
	"github.com/corelock/lockstep/internal/wire"
)

// serverInputFor reads one frame's server-authored input, as delivered by
// the server's ServerInputMessage broadcast — unlike ServerCore, ClientCore
// never derives SI itself.
func (c *Core[S, I, SI, R, E]) serverInputFor(nextIndex wire.FrameIndex) *SI {
	c.serverInputsMu.Lock()
	defer c.serverInputsMu.Unlock()
	si, ok := c.serverInputs[nextIndex]
	if !ok {
		return nil
	}
	return &si
}

func (c *Core[S, I, SI, R, E]) newComputer() frame.NextStateComputer[S, I] {
	return game.NextStateComputer[S, I, SI, R]{Game: c.g, ServerInputFor: c.serverInputFor}
}

// clientObserver forwards frame.Manager transitions to the Core's render
// channel. The client never rebroadcasts anything — only the server is a
// source of truth for its peers.
type clientObserver[S any, I any, SI any, R any, E any] struct {
	core *Core[S, I, SI, R, E]
}

var _ frame.Observer[int] = clientObserver[int, int, int, int, int]{}

func (o clientObserver[S, I, SI, R, E]) NewState(isAuthoritative bool, frameIndex wire.FrameIndex, state S) {
	o.core.onLocalNewState(isAuthoritative, frameIndex, state)
}

func (o clientObserver[S, I, SI, R, E]) InputAuthoritativelyMissing(wire.FrameIndex, wire.PlayerIndex) {
	// The client never originates this transition — InsertMissingInput is
	// only ever driven by the server's own grace-window accounting, which
	// ClientCore does not run locally.
}
