package client

import (
	"net"

	"github.com/corelock/lockstep/internal/chanhandler"
	"github.com/corelock/lockstep/internal/fragment"
	"github.com/corelock/lockstep/internal/frame"
	"github.com/corelock/lockstep/internal/game"
	"github.com/corelock/lockstep/internal/gametimer"
	"github.com/corelock/lockstep/internal/logging"
	"github.com/corelock/lockstep/internal/metrics"
	"github.com/corelock/lockstep/internal/wire"
)

// EventKind discriminates the ClientCore event union (§4.8).
type EventKind int

const (
	EventInitialInformation EventKind = iota
	EventUdpPacket
	EventInputEvent
)

// Event is the tagged union ClientCore's Handler loop consumes.
type Event[S any, E any] struct {
	Kind        EventKind
	InitialInfo wire.InitialInformation[S]
	Data        []byte
	Input       E
}

// OnEvent implements chanhandler.Handler.
func (c *Core[S, I, SI, R, E]) OnEvent(_ chanhandler.ReceiveMeta, ev Event[S, E]) chanhandler.LoopState {
	switch ev.Kind {
	case EventInitialInformation:
		return c.onInitialInformation(ev.InitialInfo)
	case EventUdpPacket:
		return c.onUdpPacket(ev.Data)
	case EventInputEvent:
		return c.onInputEvent(ev.Input)
	default:
		return c.nextWait()
	}
}

// OnTimeout implements chanhandler.Handler: the client's GameTimerTick
// effect (§4.8), folded into the loop's native timeout suspension exactly as
// ServerCore folds its own — see internal/gametimer's package doc. No-op
// until the scheduler has an alignment from the server's first TimeMessage.
func (c *Core[S, I, SI, R, E]) OnTimeout() chanhandler.LoopState {
	c.mu.RLock()
	running := c.running
	c.mu.RUnlock()
	if running && c.scheduler.Started() {
		now := c.clk.Now()
		if _, ok := c.scheduler.TryAdvanceFrameIndex(now); ok {
			c.doTick()
		}
	}
	return c.nextWait()
}

// OnChannelEmpty implements chanhandler.Handler.
func (c *Core[S, I, SI, R, E]) OnChannelEmpty() chanhandler.LoopState { return c.nextWait() }

// OnChannelDisconnect implements chanhandler.Handler.
func (c *Core[S, I, SI, R, E]) OnChannelDisconnect() chanhandler.LoopState {
	return chanhandler.StopThread(nil)
}

// OnStopSelf implements chanhandler.Handler.
func (c *Core[S, I, SI, R, E]) OnStopSelf(result any) {
	if err, ok := result.(error); ok {
		c.stopErr = err
	}
}

func (c *Core[S, I, SI, R, E]) nextWait() chanhandler.LoopState {
	c.mu.RLock()
	running := c.running
	c.mu.RUnlock()
	if !running || !c.scheduler.Started() {
		return chanhandler.WaitForNextEvent()
	}
	return chanhandler.WaitForNextEventOrTimeout(c.scheduler.NextTickDelay(c.clk.Now()))
}

// onInitialInformation transitions WaitingForHello to Running: it seeds the
// frame manager and scheduler from the server's handshake payload, then
// opens the session's single UDP peer connection.
func (c *Core[S, I, SI, R, E]) onInitialInformation(info wire.InitialInformation[S]) chanhandler.LoopState {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return c.nextWait()
	}
	c.playerIndex = info.PlayerIndex
	c.initialInfo = info
	c.running = true
	c.mu.Unlock()

	udpAddr, err := net.ResolveUDPAddr("udp", c.tcpConn.RemoteAddr().String())
	if err != nil {
		logging.L().Error("resolve_udp_addr_failed", "error", err)
		return chanhandler.StopThread(err)
	}
	udpAddr.Port = int(info.ServerConfig.UDPPort)
	udpConn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		logging.L().Error("udp_dial_failed", "error", err)
		return chanhandler.StopThread(err)
	}

	c.mu.Lock()
	c.udpConn = udpConn
	c.mu.Unlock()

	computer := c.newComputer()
	c.manager = frame.New[S, I](info.PlayerCount, false, info.State, computer, clientObserver[S, I, SI, R, E]{core: c})
	c.scheduler = gametimer.New(info.ServerConfig.FrameDuration, info.ServerConfig.ClientRollingAvgSize)

	go udpReadLoop[S, I, SI, R, E](c.ctx, udpConn, c.self)

	if err := sendHelloUDP(udpConn, c.playerIndex); err != nil {
		logging.L().Warn("udp_hello_send_failed", "error", err)
		metrics.IncError(metrics.ErrUDPWrite)
	}

	if c.renderSend != nil {
		select {
		case c.renderSend <- game.RenderEvent[S]{Kind: game.RenderInitialInformation, InitialInformation: info}:
		default:
		}
	}

	logging.L().Info("client_running", "player_index", c.playerIndex, "player_count", info.PlayerCount)
	return c.nextWait()
}

func sendHelloUDP(conn *net.UDPConn, index wire.PlayerIndex) error {
	buf, err := wire.EncodeEnvelope(wire.KindHello, wire.Hello{PlayerIndex: index})
	if err != nil {
		return err
	}
	_, err = conn.Write(buf)
	return err
}

func (c *Core[S, I, SI, R, E]) onUdpPacket(data []byte) chanhandler.LoopState {
	frag, ok := fragment.Decode(data)
	if !ok {
		metrics.IncMalformed()
		return c.nextWait()
	}
	buf, complete := c.assembler.AddFragment(c.clk.Now(), frag)
	if !complete {
		return c.nextWait()
	}
	if frag.Count > 1 {
		metrics.IncReassembled()
	}

	env, err := wire.DecodeEnvelope(buf)
	if err != nil {
		metrics.IncMalformed()
		c.assembler.Reset()
		return c.nextWait()
	}
	metrics.IncUDPRx()

	switch env.Kind {
	case wire.KindState:
		msg, err := wire.DecodePayload[wire.StateMessage[S]](env)
		if err != nil {
			metrics.IncMalformed()
			return c.nextWait()
		}
		if c.manager != nil {
			c.manager.InsertState(msg.FrameIndex, msg.State)
		}
	case wire.KindServerInput:
		msg, err := wire.DecodePayload[wire.ServerInputMessage[SI]](env)
		if err != nil {
			metrics.IncMalformed()
			return c.nextWait()
		}
		c.serverInputsMu.Lock()
		c.serverInputs[msg.FrameIndex] = msg.ServerInput
		c.serverInputsMu.Unlock()
	case wire.KindTime:
		msg, err := wire.DecodePayload[wire.TimeMessage](env)
		if err != nil {
			metrics.IncMalformed()
			return c.nextWait()
		}
		c.onTimeMessage(msg)
	default:
		logging.L().Warn("unexpected_udp_message_kind", "kind", env.Kind)
	}
	return c.nextWait()
}

// onTimeMessage is the client-side half of §4.6's clock alignment: fold the
// server's broadcast into the rolling average and re-derive the scheduler's
// start time from the updated average.
func (c *Core[S, I, SI, R, E]) onTimeMessage(msg wire.TimeMessage) {
	c.scheduler.AdjustFromRemote(msg, c.clk.Now())
	if c.renderSend != nil {
		select {
		case c.renderSend <- game.RenderEvent[S]{Kind: game.RenderTime, Time: msg}:
		default:
		}
	}
}

// onInputEvent forwards a local input event to the aggregator, guarded on
// the scheduler having a clock alignment — mirroring the original engine's
// "no time signal yet" guard, since sampling the aggregator before the
// frame clock starts would attach input to a frame index that is about to
// be rebased.
func (c *Core[S, I, SI, R, E]) onInputEvent(e E) chanhandler.LoopState {
	if c.scheduler == nil || !c.scheduler.Started() {
		return c.nextWait()
	}
	c.aggregator.HandleInputEvent(e)
	return c.nextWait()
}

// doTick is the per-tick effect of the client's GameTimerTick: sample the
// aggregator's accumulated input for the frame about to be produced,
// broadcast it, advance the local frame manager, and surface the resulting
// TimeMessage to the render channel — paralleling ServerCore.doTick's
// collapse of the original design's separate timer actor (see
// internal/gametimer's package doc).
func (c *Core[S, I, SI, R, E]) doTick() {
	frameIndex := c.scheduler.CurrentFrameIndex()
	input := c.aggregator.GetInput()
	c.manager.InsertInput(frameIndex, c.playerIndex, input, false)

	msg := wire.InputMessage[I]{FrameIndex: frameIndex, PlayerIndex: c.playerIndex, Input: input}
	if err := c.sendInput(msg); err != nil {
		logging.L().Warn("udp_input_send_failed", "error", err)
		metrics.IncError(metrics.ErrUDPWrite)
	}

	c.manager.AdvanceCurrentFrame(frameIndex)
	c.manager.Tick()
	if c.renderSend != nil {
		select {
		case c.renderSend <- game.RenderEvent[S]{Kind: game.RenderTime, Time: c.scheduler.BuildTimeMessage(c.clk.Now())}:
		default:
		}
	}
}

func (c *Core[S, I, SI, R, E]) sendInput(msg wire.InputMessage[I]) error {
	buf, err := wire.EncodeEnvelope(wire.KindInput, msg)
	if err != nil {
		return err
	}
	c.mu.RLock()
	conn := c.udpConn
	c.mu.RUnlock()
	if conn == nil {
		return nil
	}
	frags := c.fragmenter.Split(buf)
	for _, f := range frags {
		if _, err := conn.Write(f.Encode()); err != nil {
			return err
		}
	}
	metrics.AddUDPTx(len(frags))
	return nil
}

// onLocalNewState forwards every state the local frame manager produces —
// authoritative or predicted — to the render channel, per §4.8: the client
// renders its own predictions between authoritative corrections.
func (c *Core[S, I, SI, R, E]) onLocalNewState(isAuthoritative bool, frameIndex wire.FrameIndex, state S) {
	if isAuthoritative {
		metrics.IncAuthoritativeFrame()
	}
	if c.renderSend != nil {
		select {
		case c.renderSend <- game.RenderEvent[S]{Kind: game.RenderState, State: state, StateFrameIndex: frameIndex, StateIsAuthoritative: isAuthoritative}:
		default:
		}
	}
}
