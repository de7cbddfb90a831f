package game

import "github.com/corelock/lockstep/internal/wire"

// RenderEventKind discriminates the union RenderReceiver consumes.
type RenderEventKind int

const (
	RenderInitialInformation RenderEventKind = iota
	RenderState
	RenderTime
	RenderStartTimeAdjustment
)

// RenderEvent is the tagged union fed to the application's render-side
// consumer: the initial handshake payload once, a stream of (possibly
// non-authoritative) states as the frame manager produces them, and
// periodic TimeMessages for clock display. RenderStartTimeAdjustment is
// declared, but nothing in the engine sends an event of that kind.
type RenderEvent[S any] struct {
	Kind                 RenderEventKind
	InitialInformation   wire.InitialInformation[S]
	State                S
	StateFrameIndex      wire.FrameIndex
	StateIsAuthoritative bool
	Time                 wire.TimeMessage
}
