// Package frame implements the per-frame input/state store and the
// successor-computation algorithm described in §3/§4.7: a contiguous,
// strictly-increasing sequence of frames, each holding a state and one
// input slot per player, promoted to authoritative as inputs and
// predecessor states allow.
package frame

import "github.com/corelock/lockstep/internal/wire"

// StateKind discriminates a frame's state authority.
type StateKind int

const (
	// StateNone means the frame has no state yet.
	StateNone StateKind = iota
	// StateNonAuthoritative means a locally-computed, unconfirmed state.
	StateNonAuthoritative
	// StateAuthoritative means a server-confirmed (or server-produced) state.
	StateAuthoritative
)

// InputKind discriminates one player's input slot for one frame.
type InputKind int

const (
	// InputPending means no input has arrived yet.
	InputPending InputKind = iota
	// InputNonAuthoritative means a received-but-unconfirmed input.
	InputNonAuthoritative
	// InputAuthoritative means a confirmed, deadline-respecting input.
	InputAuthoritative
	// InputAuthoritativeMissing means the server declared this input
	// missing after the grace deadline elapsed.
	InputAuthoritativeMissing
)

// State is a frame's tagged-union state slot.
type State[S any] struct {
	Kind  StateKind
	Value S
}

// Input is a frame's tagged-union input slot.
type Input[I any] struct {
	Kind  InputKind
	Value I
}

// rank orders state authority for the monotonic join in setState:
// Authoritative > NonAuthoritative > None.
func (k StateKind) rank() int {
	switch k {
	case StateAuthoritative:
		return 2
	case StateNonAuthoritative:
		return 1
	default:
		return 0
	}
}

// Frame is one record in the FrameManager's store.
type Frame[S any, I any] struct {
	Index                   wire.FrameIndex
	State                   State[S]
	Inputs                  []Input[I]
	AuthoritativeInputCount int
	NeedToComputeNextState  bool
}

func blank[S any, I any](index wire.FrameIndex, playerCount int) *Frame[S, I] {
	return &Frame[S, I]{
		Index:  index,
		Inputs: make([]Input[I], playerCount),
	}
}

// setState applies the monotonic join: Authoritative replaces None or
// NonAuthoritative and is a no-op over an existing Authoritative state;
// NonAuthoritative only replaces None or NonAuthoritative; it is a no-op
// over an existing Authoritative state (invariant 3). Returns whether the
// slot actually changed.
func (f *Frame[S, I]) setState(kind StateKind, value S) bool {
	if kind.rank() < f.State.Kind.rank() {
		return false
	}
	if kind == f.State.Kind && kind != StateNonAuthoritative {
		// Authoritative-over-Authoritative or None-over-None: idempotent,
		// no-op (testable property 2).
		return false
	}
	f.State = State[S]{Kind: kind, Value: value}
	f.NeedToComputeNextState = true
	return true
}

// setInput writes a player's input slot, respecting invariant 2 (a slot in
// Authoritative/AuthoritativeMissing is never overwritten) and ignoring
// duplicate non-authoritative deliveries.
func (f *Frame[S, I]) setInput(playerIndex wire.PlayerIndex, kind InputKind, value I) bool {
	slot := &f.Inputs[playerIndex]
	if slot.Kind == InputAuthoritative || slot.Kind == InputAuthoritativeMissing {
		return false
	}
	if kind == InputNonAuthoritative && slot.Kind == InputNonAuthoritative {
		return false // duplicate, ignored
	}
	*slot = Input[I]{Kind: kind, Value: value}
	if kind == InputAuthoritative || kind == InputAuthoritativeMissing {
		f.AuthoritativeInputCount++
	}
	f.NeedToComputeNextState = true
	return true
}

// allInputsAuthoritative reports whether every input slot is in
// {Authoritative, AuthoritativeMissing}.
func (f *Frame[S, I]) allInputsAuthoritative() bool {
	return f.AuthoritativeInputCount == len(f.Inputs)
}

// inputValues extracts the current best-known input value for each player,
// for handing to the game's successor-state function. AuthoritativeMissing
// and Pending slots hand back the input type's zero value.
func (f *Frame[S, I]) inputValues() []I {
	values := make([]I, len(f.Inputs))
	for i, in := range f.Inputs {
		if in.Kind == InputNonAuthoritative || in.Kind == InputAuthoritative {
			values[i] = in.Value
		}
	}
	return values
}
