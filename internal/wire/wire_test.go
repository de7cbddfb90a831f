package wire

import (
	"testing"

	"github.com/corelock/lockstep/internal/timeval"
)

type testState struct {
	Counter int
}

type testInput struct {
	Pressed bool
}

func TestEnvelopeRoundTripInput(t *testing.T) {
	msg := InputMessage[testInput]{FrameIndex: 5, PlayerIndex: 1, Input: testInput{Pressed: true}}
	buf, err := EncodeEnvelope(KindInput, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := DecodeEnvelope(buf)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Kind != KindInput {
		t.Fatalf("kind = %d, want %d", env.Kind, KindInput)
	}
	got, err := DecodePayload[InputMessage[testInput]](env)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.FrameIndex != 5 || got.PlayerIndex != 1 || !got.Input.Pressed {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestEnvelopeRoundTripTimeMessage(t *testing.T) {
	msg := TimeMessage{
		StartTime:     timeval.New(100, 0),
		FrameDuration: timeval.NewDuration(0, 50_000_000),
		FrameIndex:    7,
		ScheduledTime: timeval.New(100, 350_000_000),
		ActualTime:    timeval.New(100, 351_200_000),
	}
	buf, err := EncodeEnvelope(KindTime, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := DecodeEnvelope(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := DecodePayload[TimeMessage](env)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !got.StartTime.Equal(msg.StartTime) || got.FrameIndex != msg.FrameIndex {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestInitialInformationTCPRoundTrip(t *testing.T) {
	msg := InitialInformation[testState]{
		ServerConfig: ServerConfig{TCPPort: 7000, UDPPort: 7001, MaxDatagramSize: 1500},
		PlayerCount:  2,
		PlayerIndex:  0,
		State:        testState{Counter: 42},
	}
	buf, err := EncodeTCP(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeTCP[testState](buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State.Counter != 42 || got.PlayerCount != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
