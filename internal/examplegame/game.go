// Package examplegame is a minimal top-down shooter implementing
// game.Game and game.InputAggregator, used by the server and client
// packages' own tests as a concrete, deterministic game — grounded on the
// original engine's own "simple-game" sample (movement, aiming, firing,
// server-authoritative hit detection), with rendering stripped out since
// nothing here ever touches a screen.
package examplegame

import (
	"math"

	"github.com/corelock/lockstep/internal/game"
	"github.com/corelock/lockstep/internal/timeval"
	"github.com/corelock/lockstep/internal/wire"
)

// Vec2 is a simple 2D vector; the engine's State/Input types carry no
// behavior of their own beyond what NextState/Interpolate need.
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Scale(f float64) Vec2 { return Vec2{v.X * f, v.Y * f} }
func (v Vec2) Lerp(o Vec2, weight float64) Vec2 {
	return Vec2{v.X + (o.X-v.X)*weight, v.Y + (o.Y-v.Y)*weight}
}
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Len() float64    { return math.Hypot(v.X, v.Y) }

// Character is one player's simulated position and health.
type Character struct {
	PlayerIndex wire.PlayerIndex
	Position    Vec2
	Health      int
}

// Bullet is a single fired projectile, moving at constant velocity from the
// frame it was fired.
type Bullet struct {
	Position    Vec2
	Velocity    Vec2
	FiredFrame  wire.FrameIndex
	OwnerPlayer wire.PlayerIndex
}

// State is the game's authoritative per-frame snapshot.
type State struct {
	Characters []Character
	Bullets    []Bullet
}

// Input is one player's sampled action for a frame.
type Input struct {
	Aim      Vec2
	Velocity Vec2 // unit-ish movement direction, already normalized by the aggregator
	Fire     bool
}

// ServerInput carries the frame's authoritative hit results — the server
// derives it from colliding bullets against characters; clients only ever
// read it back off the wire.
type ServerInput struct {
	HitPlayers []wire.PlayerIndex
}

const (
	characterSpacing = 100.0
	moveSpeed        = 120.0 // units/sec
	bulletSpeed      = 400.0
	bulletLifetime   = 2.0 // seconds
	hitRadius        = 16.0
	startingHealth   = 3
)

// Game implements game.Game[State, Input, ServerInput, State] (render output
// reuses State directly — there is nothing to project beyond position
// interpolation).
type Game struct {
	TCPPortValue         uint16
	UDPPortValue         uint16
	StepPeriodValue      timeval.TimeDuration
	GracePeriodValue     timeval.TimeDuration
	TimeSyncPeriodValue  timeval.TimeDuration
	ClockAverageSizeValue int
	MaxDatagramSizeValue int
}

var _ game.Game[State, Input, ServerInput, State] = Game{}

// New creates a Game bound to tcpPort/udpPort, with conventional defaults
// otherwise: a 20Hz frame rate, a quarter-second grace window, and a
// one-second time-sync period. Tests pick distinct ports per server
// instance so concurrently-run test binaries never collide.
func New(tcpPort, udpPort uint16) Game {
	return Game{
		TCPPortValue:          tcpPort,
		UDPPortValue:          udpPort,
		StepPeriodValue:       timeval.NewDuration(0, 50_000_000),
		GracePeriodValue:      timeval.NewDuration(0, 250_000_000),
		TimeSyncPeriodValue:   timeval.NewDuration(1, 0),
		ClockAverageSizeValue: 20,
		MaxDatagramSizeValue:  1200,
	}
}

func (g Game) TCPPort() uint16                      { return g.TCPPortValue }
func (g Game) UDPPort() uint16                       { return g.UDPPortValue }
func (g Game) StepPeriod() timeval.TimeDuration      { return g.StepPeriodValue }
func (g Game) GracePeriod() timeval.TimeDuration     { return g.GracePeriodValue }
func (g Game) TimeSyncPeriod() timeval.TimeDuration  { return g.TimeSyncPeriodValue }
func (g Game) ClockAverageSize() int                 { return g.ClockAverageSizeValue }
func (g Game) MaxDatagramSize() int                  { return g.MaxDatagramSizeValue }

// InitialState seeds playerCount characters spaced along the x axis, full
// health, no bullets in flight.
func (g Game) InitialState(playerCount int) State {
	s := State{Characters: make([]Character, playerCount)}
	for i := 0; i < playerCount; i++ {
		s.Characters[i] = Character{
			PlayerIndex: wire.PlayerIndex(i),
			Position:    Vec2{X: float64(i) * characterSpacing, Y: 0},
			Health:      startingHealth,
		}
	}
	return s
}

// ServerInput detects bullet/character collisions for the frame about to be
// produced, mirroring simplestate.rs's get_server_input.
func (g Game) ServerInput(current State, nextFrameIndex wire.FrameIndex, inputs []Input) ServerInput {
	var hits []wire.PlayerIndex
	for _, ch := range current.Characters {
		for _, b := range current.Bullets {
			if b.OwnerPlayer == ch.PlayerIndex {
				continue
			}
			if ch.Position.Sub(b.Position).Len() <= hitRadius {
				hits = append(hits, ch.PlayerIndex)
			}
		}
	}
	return ServerInput{HitPlayers: hits}
}

// NextState advances characters by their sampled input and bullets by their
// velocity, applies the frame's server-authoritative hits, and expires
// bullets past their lifetime — mirroring simplestate.rs's update().
func (g Game) NextState(current State, arg game.UpdateArg[Input, ServerInput]) State {
	dt := g.StepPeriodValue.AsSecsF64()
	next := State{
		Characters: append([]Character(nil), current.Characters...),
		Bullets:    make([]Bullet, 0, len(current.Bullets)),
	}

	if arg.ServerInput != nil {
		hit := make(map[wire.PlayerIndex]bool, len(arg.ServerInput.HitPlayers))
		for _, p := range arg.ServerInput.HitPlayers {
			hit[p] = true
		}
		for i := range next.Characters {
			if hit[next.Characters[i].PlayerIndex] && next.Characters[i].Health > 0 {
				next.Characters[i].Health--
			}
		}
	}

	ageLimit := bulletLifetime
	for _, b := range current.Bullets {
		framesAlive := int64(arg.NextFrameIndex) - int64(b.FiredFrame)
		age := float64(framesAlive) * dt
		if age > ageLimit {
			continue
		}
		b.Position = b.Position.Add(b.Velocity.Scale(dt))
		next.Bullets = append(next.Bullets, b)
	}

	for i := range next.Characters {
		input, ok := arg.Input(next.Characters[i].PlayerIndex)
		if !ok {
			continue
		}
		next.Characters[i].Position = next.Characters[i].Position.Add(input.Velocity.Scale(moveSpeed * dt))
		if input.Fire {
			dir := input.Aim.Sub(next.Characters[i].Position)
			if l := dir.Len(); l > 0 {
				dir = dir.Scale(1 / l)
			} else {
				dir = Vec2{X: 1}
			}
			next.Bullets = append(next.Bullets, Bullet{
				Position:    next.Characters[i].Position,
				Velocity:    dir.Scale(bulletSpeed),
				FiredFrame:  arg.NextFrameIndex,
				OwnerPlayer: next.Characters[i].PlayerIndex,
			})
		}
	}

	return next
}

// Interpolate lerps every character's position between first and second for
// smooth rendering between authoritative frames, per simplestate.rs's
// interpolate().
func (g Game) Interpolate(_ wire.InitialInformation[State], first, second State, arg game.InterpolationArg) State {
	out := State{Characters: append([]Character(nil), second.Characters...), Bullets: second.Bullets}
	for i := range out.Characters {
		if i >= len(first.Characters) {
			break
		}
		out.Characters[i].Position = first.Characters[i].Position.Lerp(out.Characters[i].Position, arg.Weight)
	}
	return out
}
