// Package wire defines the engine's on-the-wire message types and their
// compact self-describing binary encoding (CBOR), per §4.10 and §6.
package wire

import (
	"fmt"

	"github.com/corelock/lockstep/internal/timeval"
	"github.com/fxamacker/cbor/v2"
)

// FrameIndex identifies a frame; zero is the initial authoritative state.
type FrameIndex uint64

// PlayerIndex identifies a player slot, assigned by the server at TCP
// handshake time.
type PlayerIndex uint32

// ServerConfig is the subset of game-defined constants the server hands to
// every client during the handshake, so a client never has to be built
// against game-specific compile-time constants to interoperate.
type ServerConfig struct {
	TCPPort              uint16
	UDPPort              uint16
	FrameDuration        timeval.TimeDuration
	GracePeriod          timeval.TimeDuration
	TimeSyncPeriod       timeval.TimeDuration
	ClientRollingAvgSize int
	MaxDatagramSize      int
}

// InitialInformation seeds every participant's frame manager at handshake
// time. It is generic over the game's State type.
type InitialInformation[S any] struct {
	ServerConfig ServerConfig
	PlayerCount  int
	PlayerIndex  PlayerIndex
	State        S
}

// TimeMessage carries the server's frame clock to clients for alignment.
type TimeMessage struct {
	StartTime     timeval.TimeValue
	FrameDuration timeval.TimeDuration
	FrameIndex    FrameIndex
	ScheduledTime timeval.TimeValue
	ActualTime    timeval.TimeValue
}

// InputMessage carries one player's input for one frame.
type InputMessage[I any] struct {
	FrameIndex  FrameIndex
	PlayerIndex PlayerIndex
	Input       I
}

// StateMessage carries a (possibly non-authoritative) successor state.
type StateMessage[S any] struct {
	FrameIndex    FrameIndex
	State         S
	Authoritative bool
}

// ServerInputMessage carries a server-derived per-frame summary (e.g. hit
// detection), always delivered authoritatively.
type ServerInputMessage[SI any] struct {
	FrameIndex  FrameIndex
	ServerInput SI
}

// Hello is the first UDP datagram a client sends, announcing which player
// slot it was assigned over TCP.
type Hello struct {
	PlayerIndex PlayerIndex
}

// Kind discriminates which concrete message an Envelope carries.
type Kind uint8

const (
	KindHello Kind = iota + 1
	KindInput
	KindServerInput
	KindState
	KindTime
)

// Envelope is the outer self-describing wrapper every UDP payload is
// encoded as, before fragmentation: a one-byte kind tag plus the raw CBOR
// encoding of the concrete message.
type Envelope struct {
	Kind    Kind
	Payload cbor.RawMessage
}

var encMode, _ = cbor.CanonicalEncOptions().EncMode()

// EncodeEnvelope wraps msg with its kind tag and CBOR-encodes the envelope.
func EncodeEnvelope(kind Kind, msg any) ([]byte, error) {
	payload, err := encMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("wire: encode payload: %w", err)
	}
	return encMode.Marshal(Envelope{Kind: kind, Payload: payload})
}

// DecodeEnvelope unwraps the outer envelope without decoding the payload.
func DecodeEnvelope(buf []byte) (Envelope, error) {
	var env Envelope
	if err := cbor.Unmarshal(buf, &env); err != nil {
		return Envelope{}, fmt.Errorf("wire: decode envelope: %w", err)
	}
	return env, nil
}

// DecodePayload decodes an envelope's payload into a concrete type.
func DecodePayload[T any](env Envelope) (T, error) {
	var v T
	if err := cbor.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("wire: decode payload kind=%d: %w", env.Kind, err)
	}
	return v, nil
}

// EncodeTCP encodes the single TCP handshake message.
func EncodeTCP[S any](msg InitialInformation[S]) ([]byte, error) {
	b, err := encMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("wire: encode InitialInformation: %w", err)
	}
	return b, nil
}

// DecodeTCP decodes the single TCP handshake message.
func DecodeTCP[S any](buf []byte) (InitialInformation[S], error) {
	var v InitialInformation[S]
	if err := cbor.Unmarshal(buf, &v); err != nil {
		return v, fmt.Errorf("wire: decode InitialInformation: %w", err)
	}
	return v, nil
}
