package frame

import "github.com/corelock/lockstep/internal/wire"

// NextStateComputer delegates successor-state computation to the game
// capability (§6): given the frame about to be produced, its predecessor
// state, and every player's input, return the next state.
type NextStateComputer[S any, I any] interface {
	ComputeNextState(nextIndex wire.FrameIndex, current S, inputs []I) S
}

// Observer receives frame-manager transitions. Parameterized rather than
// split into server/client concrete types per the §9 redesign note.
type Observer[S any] interface {
	NewState(isAuthoritative bool, frameIndex wire.FrameIndex, state S)
	InputAuthoritativelyMissing(frameIndex wire.FrameIndex, playerIndex wire.PlayerIndex)
}

// Manager is the per-frame store of inputs and states. It is owned
// exclusively by one actor (ClientCore or ServerCore) and is not safe for
// concurrent use — callers serialize access the way every other actor in
// the engine does, through their own event-handler loop.
type Manager[S any, I any] struct {
	playerCount int
	isServer    bool
	grace       int64 // frames; only consulted on the server
	computer    NextStateComputer[S, I]
	observer    Observer[S]

	frontIndex wire.FrameIndex
	frames     []*Frame[S, I]

	currentFrameIndex wire.FrameIndex
}

// Option configures a Manager at construction.
type Option[S any, I any] func(*Manager[S, I])

// WithGraceFrames sets the server-only missing-input grace window, in
// frames (spec's "grace" compared directly against frame indices).
func WithGraceFrames[S any, I any](frames int64) Option[S, I] {
	return func(m *Manager[S, I]) { m.grace = frames }
}

// New creates a Manager seeded with an authoritative state at frame 0 — the
// initial information every participant's frame manager is constructed
// from at handshake time.
func New[S any, I any](playerCount int, isServer bool, initialState S, computer NextStateComputer[S, I], observer Observer[S], opts ...Option[S, I]) *Manager[S, I] {
	m := &Manager[S, I]{
		playerCount: playerCount,
		isServer:    isServer,
		computer:    computer,
		observer:    observer,
	}
	for _, o := range opts {
		o(m)
	}
	seed := blank[S, I](0, playerCount)
	seed.State = State[S]{Kind: StateAuthoritative, Value: initialState}
	m.frames = []*Frame[S, I]{seed}
	return m
}

// CurrentFrameIndex returns the manager's last-set current frame index.
func (m *Manager[S, I]) CurrentFrameIndex() wire.FrameIndex { return m.currentFrameIndex }

// FrontIndex returns the lowest frame index still held in the store.
func (m *Manager[S, I]) FrontIndex() wire.FrameIndex { return m.frontIndex }

// Len reports how many frames are currently stored.
func (m *Manager[S, I]) Len() int { return len(m.frames) }

// Frame returns the stored frame at index, or nil if it has been dropped or
// never created.
func (m *Manager[S, I]) Frame(index wire.FrameIndex) *Frame[S, I] {
	if index < m.frontIndex || int(index-m.frontIndex) >= len(m.frames) {
		return nil
	}
	return m.frames[index-m.frontIndex]
}

// getOrCreate returns the frame at index, extending the contiguous store
// forward with blank frames as needed. index must be >= frontIndex; callers
// filter out-of-range indices before calling this (see InsertInput/InsertState).
func (m *Manager[S, I]) getOrCreate(index wire.FrameIndex) *Frame[S, I] {
	if len(m.frames) == 0 {
		m.frontIndex = index
	}
	for m.frontIndex+wire.FrameIndex(len(m.frames)) <= index {
		next := m.frontIndex + wire.FrameIndex(len(m.frames))
		m.frames = append(m.frames, blank[S, I](next, m.playerCount))
	}
	return m.frames[index-m.frontIndex]
}

// dropAllFramesBefore discards every stored frame with Index < index.
func (m *Manager[S, I]) dropAllFramesBefore(index wire.FrameIndex) {
	if index <= m.frontIndex {
		return
	}
	drop := int(index - m.frontIndex)
	if drop > len(m.frames) {
		drop = len(m.frames)
	}
	m.frames = m.frames[drop:]
	m.frontIndex = index
}

// AdvanceCurrentFrame sets the manager's tracked current frame index. On
// the server, every stored frame older than index-grace has its remaining
// Pending inputs declared authoritatively missing (§4.7, testable property 4).
func (m *Manager[S, I]) AdvanceCurrentFrame(index wire.FrameIndex) {
	if index > m.currentFrameIndex {
		m.currentFrameIndex = index
	}
	if !m.isServer {
		return
	}
	threshold := index - wire.FrameIndex(m.grace)
	if wire.FrameIndex(m.grace) > index {
		threshold = 0
	}
	for _, f := range m.frames {
		if f.Index >= threshold {
			break
		}
		for p := range f.Inputs {
			if f.Inputs[p].Kind == InputPending {
				f.setInput(wire.PlayerIndex(p), InputAuthoritativeMissing, zero[I]())
				m.observer.InputAuthoritativelyMissing(f.Index, wire.PlayerIndex(p))
			}
		}
	}
}

// InsertInput records a player's input for a frame. Inputs at indices below
// the store's front are silently dropped.
func (m *Manager[S, I]) InsertInput(frameIndex wire.FrameIndex, playerIndex wire.PlayerIndex, input I, isAuthoritative bool) {
	if len(m.frames) > 0 && frameIndex < m.frontIndex {
		return
	}
	f := m.getOrCreate(frameIndex)
	kind := InputNonAuthoritative
	if isAuthoritative {
		kind = InputAuthoritative
	}
	f.setInput(playerIndex, kind, input)
}

// InsertMissingInput declares a player's input for a frame authoritatively
// missing. Only a client should call this — it reflects the server's
// declaration, never a local guess (§9 open-question resolution: the
// client never originates AuthoritativeMissing on its own).
func (m *Manager[S, I]) InsertMissingInput(frameIndex wire.FrameIndex, playerIndex wire.PlayerIndex) {
	if len(m.frames) > 0 && frameIndex < m.frontIndex {
		return
	}
	f := m.getOrCreate(frameIndex)
	f.setInput(playerIndex, InputAuthoritativeMissing, zero[I]())
}

// InsertState records an authoritative state for a frame (client-only).
// States below the store's front are discarded.
func (m *Manager[S, I]) InsertState(frameIndex wire.FrameIndex, state S) {
	if frameIndex < m.frontIndex {
		return
	}
	f := m.getOrCreate(frameIndex)
	if f.setState(StateAuthoritative, state) {
		m.observer.NewState(true, f.Index, f.State.Value)
		m.dropAllFramesBefore(frameIndex)
	}
}

// Tick runs the core successor-computation algorithm (§4.7): ensures a
// blank frame exists past the current one, then repeatedly computes
// successors for any frame whose inputs or state changed, promoting and
// dropping predecessors whenever a computed successor becomes authoritative.
func (m *Manager[S, I]) Tick() {
	m.getOrCreate(m.currentFrameIndex + 1)

restart:
	for i := 0; i < len(m.frames)-1; i++ {
		f := m.frames[i]
		if !f.NeedToComputeNextState {
			continue
		}
		if f.State.Kind == StateNone {
			panic("frame: cannot compute a successor from a frame with no state")
		}
		nextIsAuthoritative := f.State.Kind == StateAuthoritative && f.allInputsAuthoritative()
		nextValue := m.computer.ComputeNextState(f.Index+1, f.State.Value, f.inputValues())
		f.NeedToComputeNextState = false

		nextKind := StateNonAuthoritative
		if nextIsAuthoritative {
			nextKind = StateAuthoritative
		}
		next := m.frames[i+1]
		if next.setState(nextKind, nextValue) {
			m.observer.NewState(nextIsAuthoritative, next.Index, next.State.Value)
			if nextIsAuthoritative {
				m.dropAllFramesBefore(next.Index)
				goto restart
			}
		}
	}
}

func zero[T any]() T {
	var v T
	return v
}
