package examplegame

import "github.com/corelock/lockstep/internal/game"

var _ game.InputAggregator[InputEvent, Input] = (*Aggregator)(nil)

// InputEvent is the local, opaque input event examplegame's aggregator
// consumes — a tiny stand-in for the original engine's Piston button/motion
// events (simpleinputeventhandler.rs), reduced to what a lockstep-speed test
// harness needs: movement keys, an aim point, and a fire trigger.
type InputEvent struct {
	Kind MoveKey
	Down bool

	IsAim bool
	Aim   Vec2

	IsFire bool
}

// MoveKey identifies one of the four movement keys.
type MoveKey int

const (
	MoveNone MoveKey = iota
	MoveUp
	MoveDown
	MoveLeft
	MoveRight
)

// Aggregator turns a stream of InputEvents into one Input per frame,
// latching "was pressed since last sample" for movement the way
// MoveButtonTracker does, and a one-shot fire trigger that resets after
// each GetInput call.
type Aggregator struct {
	up, down, left, right bool
	aim                   Vec2
	fire                  bool
}

// NewAggregator creates an Aggregator with no keys held and aim at origin.
func NewAggregator() *Aggregator { return &Aggregator{} }

// HandleInputEvent implements game.InputAggregator.
func (a *Aggregator) HandleInputEvent(e InputEvent) {
	switch {
	case e.IsAim:
		a.aim = e.Aim
	case e.IsFire:
		if e.Down {
			a.fire = true
		}
	default:
		switch e.Kind {
		case MoveUp:
			a.up = e.Down || a.up
		case MoveDown:
			a.down = e.Down || a.down
		case MoveLeft:
			a.left = e.Down || a.left
		case MoveRight:
			a.right = e.Down || a.right
		}
	}
}

// GetInput implements game.InputAggregator: samples the accumulated
// movement into a unit-ish velocity, consumes the one-shot fire flag, and
// resets the movement latches for the next frame.
func (a *Aggregator) GetInput() Input {
	var x, y float64
	if a.right {
		x++
	}
	if a.left {
		x--
	}
	if a.up {
		y++
	}
	if a.down {
		y--
	}
	velocity := Vec2{X: x, Y: y}
	if l := velocity.Len(); l > 0 {
		velocity = velocity.Scale(1 / l)
	}

	input := Input{Aim: a.aim, Velocity: velocity, Fire: a.fire}
	a.fire = false
	a.up, a.down, a.left, a.right = false, false, false, false
	return input
}
