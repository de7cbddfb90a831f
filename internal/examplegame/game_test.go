package examplegame

import (
	"testing"

	"github.com/corelock/lockstep/internal/game"
	"github.com/corelock/lockstep/internal/wire"
)

func TestInitialStateSpacesCharacters(t *testing.T) {
	g := New(0, 0)
	s := g.InitialState(3)
	if len(s.Characters) != 3 {
		t.Fatalf("expected 3 characters, got %d", len(s.Characters))
	}
	for i, c := range s.Characters {
		if c.Health != startingHealth {
			t.Errorf("character %d health = %d, want %d", i, c.Health, startingHealth)
		}
		if c.Position.X != float64(i)*characterSpacing {
			t.Errorf("character %d x = %v, want %v", i, c.Position.X, float64(i)*characterSpacing)
		}
	}
}

func TestNextStateMovesCharacterByInput(t *testing.T) {
	g := New(0, 0)
	s := g.InitialState(1)
	arg := game.UpdateArg[Input, ServerInput]{
		NextFrameIndex: 1,
		Inputs:         []Input{{Velocity: Vec2{X: 1, Y: 0}}},
	}
	next := g.NextState(s, arg)
	if next.Characters[0].Position.X <= s.Characters[0].Position.X {
		t.Fatalf("expected character to move right, got %v -> %v", s.Characters[0].Position, next.Characters[0].Position)
	}
}

func TestNextStateFireSpawnsBullet(t *testing.T) {
	g := New(0, 0)
	s := g.InitialState(1)
	arg := game.UpdateArg[Input, ServerInput]{
		NextFrameIndex: 1,
		Inputs:         []Input{{Aim: Vec2{X: 100, Y: 0}, Fire: true}},
	}
	next := g.NextState(s, arg)
	if len(next.Bullets) != 1 {
		t.Fatalf("expected 1 bullet after firing, got %d", len(next.Bullets))
	}
	if next.Bullets[0].OwnerPlayer != wire.PlayerIndex(0) {
		t.Errorf("bullet owner = %d, want 0", next.Bullets[0].OwnerPlayer)
	}
}

func TestNextStateAppliesServerHits(t *testing.T) {
	g := New(0, 0)
	s := g.InitialState(2)
	arg := game.UpdateArg[Input, ServerInput]{
		NextFrameIndex: 1,
		Inputs:         []Input{{}, {}},
		ServerInput:    &ServerInput{HitPlayers: []wire.PlayerIndex{1}},
	}
	next := g.NextState(s, arg)
	if next.Characters[1].Health != startingHealth-1 {
		t.Fatalf("expected player 1 health reduced, got %d", next.Characters[1].Health)
	}
	if next.Characters[0].Health != startingHealth {
		t.Fatalf("expected player 0 health unchanged, got %d", next.Characters[0].Health)
	}
}

func TestServerInputDetectsCollision(t *testing.T) {
	g := New(0, 0)
	s := g.InitialState(2)
	s.Bullets = []Bullet{{Position: s.Characters[1].Position, OwnerPlayer: 0}}
	si := g.ServerInput(s, 1, nil)
	if len(si.HitPlayers) != 1 || si.HitPlayers[0] != wire.PlayerIndex(1) {
		t.Fatalf("expected player 1 to be hit, got %#v", si.HitPlayers)
	}
}

func TestServerInputIgnoresOwnBullet(t *testing.T) {
	g := New(0, 0)
	s := g.InitialState(1)
	s.Bullets = []Bullet{{Position: s.Characters[0].Position, OwnerPlayer: 0}}
	si := g.ServerInput(s, 1, nil)
	if len(si.HitPlayers) != 0 {
		t.Fatalf("expected no self-hit, got %#v", si.HitPlayers)
	}
}

func TestInterpolateLerpsPosition(t *testing.T) {
	g := New(0, 0)
	first := State{Characters: []Character{{Position: Vec2{X: 0}}}}
	second := State{Characters: []Character{{Position: Vec2{X: 10}}}}
	out := g.Interpolate(wire.InitialInformation[State]{}, first, second, game.InterpolationArg{Weight: 0.5})
	if out.Characters[0].Position.X != 5 {
		t.Fatalf("expected midpoint x = 5, got %v", out.Characters[0].Position.X)
	}
}

func TestAggregatorLatchesMovementAndFire(t *testing.T) {
	a := NewAggregator()
	a.HandleInputEvent(InputEvent{Kind: MoveRight, Down: true})
	a.HandleInputEvent(InputEvent{Kind: MoveRight, Down: false})
	a.HandleInputEvent(InputEvent{IsFire: true, Down: true})
	in := a.GetInput()
	if in.Velocity.X <= 0 {
		t.Fatalf("expected rightward velocity from latched key, got %v", in.Velocity)
	}
	if !in.Fire {
		t.Fatal("expected fire to be latched")
	}
	in2 := a.GetInput()
	if in2.Fire {
		t.Fatal("expected fire to reset after one sample")
	}
	if in2.Velocity.X != 0 {
		t.Fatalf("expected velocity to reset after key release, got %v", in2.Velocity)
	}
}
