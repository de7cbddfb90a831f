package server

import (
	"net"
	"time"

	"github.com/corelock/lockstep/internal/chanhandler"
	"github.com/corelock/lockstep/internal/discovery"
	"github.com/corelock/lockstep/internal/fragment"
	"github.com/corelock/lockstep/internal/frame"
	"github.com/corelock/lockstep/internal/game"
	"github.com/corelock/lockstep/internal/gametimer"
	"github.com/corelock/lockstep/internal/hub"
	"github.com/corelock/lockstep/internal/logging"
	"github.com/corelock/lockstep/internal/metrics"
	"github.com/corelock/lockstep/internal/timeval"
	"github.com/corelock/lockstep/internal/wire"
)

// EventKind discriminates the ServerCore event union (§4.9).
type EventKind int

const (
	EventStartListener EventKind = iota
	EventStartGame
	EventTcpConnection
	EventUdpPacket
)

// Event is the tagged union ServerCore's Handler loop consumes.
type Event[S any] struct {
	Kind       EventKind
	RenderSend chan<- game.RenderEvent[S]
	Conn       net.Conn
	Addr       *net.UDPAddr
	Data       []byte
}

// OnEvent implements chanhandler.Handler.
func (c *Core[S, I, SI, R]) OnEvent(_ chanhandler.ReceiveMeta, ev Event[S]) chanhandler.LoopState {
	switch ev.Kind {
	case EventStartListener:
		return c.onStartListener()
	case EventStartGame:
		return c.onStartGame(ev.RenderSend)
	case EventTcpConnection:
		return c.onTcpConnection(ev.Conn)
	case EventUdpPacket:
		return c.onUdpPacket(ev.Addr, ev.Data)
	default:
		return c.nextWait()
	}
}

// OnTimeout implements chanhandler.Handler: the server's free-running tick,
// per §4.9's GameTimerTick effect, folded into this loop's native timeout
// suspension rather than a separate timer actor (see internal/gametimer).
func (c *Core[S, I, SI, R]) OnTimeout() chanhandler.LoopState {
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	if started {
		now := c.clk.Now()
		if _, ok := c.scheduler.TryAdvanceFrameIndex(now); ok {
			c.doTick(now)
		}
	}
	return c.nextWait()
}

// OnChannelEmpty implements chanhandler.Handler.
func (c *Core[S, I, SI, R]) OnChannelEmpty() chanhandler.LoopState { return c.nextWait() }

// OnChannelDisconnect implements chanhandler.Handler.
func (c *Core[S, I, SI, R]) OnChannelDisconnect() chanhandler.LoopState {
	return chanhandler.StopThread(nil)
}

// OnStopSelf implements chanhandler.Handler. result is non-nil only when a
// bind failure in onStartListener force-stopped the loop.
func (c *Core[S, I, SI, R]) OnStopSelf(result any) {
	if err, ok := result.(error); ok {
		c.stopErr = err
	}
}

func (c *Core[S, I, SI, R]) nextWait() chanhandler.LoopState {
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	if !started {
		return chanhandler.WaitForNextEvent()
	}
	return chanhandler.WaitForNextEventOrTimeout(c.scheduler.NextTickDelay(c.clk.Now()))
}

func (c *Core[S, I, SI, R]) onStartListener() chanhandler.LoopState {
	udpAddr := &net.UDPAddr{IP: c.listenIP, Port: int(c.g.UDPPort())}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		logging.L().Error("udp_bind_failed", "error", err)
		metrics.IncError(metrics.ErrUDPRead)
		return chanhandler.StopThread(err)
	}

	tcpAddr := &net.TCPAddr{IP: c.listenIP, Port: int(c.g.TCPPort())}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		logging.L().Error("tcp_listen_failed", "error", err)
		metrics.IncError(metrics.ErrTCPRead)
		_ = udpConn.Close()
		return chanhandler.StopThread(err)
	}

	c.mu.Lock()
	c.udpConn = udpConn
	c.tcpListener = ln
	c.mu.Unlock()

	go acceptLoop(c.ctx, ln, c.self, c.handshakeTimeout, c.onHandshakeFailure)
	go udpReadLoop(c.ctx, udpConn, c.self)

	c.readyOnce.Do(func() { close(c.readyCh) })
	logging.L().Info("listening", "tcp", ln.Addr().String(), "udp", udpConn.LocalAddr().String())

	if c.discoveryEnabled {
		go c.startDiscovery(ln.Addr().(*net.TCPAddr).Port)
	}

	return c.nextWait()
}

func (c *Core[S, I, SI, R]) startDiscovery(port int) {
	stop, err := discovery.Advertise(c.ctx, c.discoveryInstance, port, c.discoveryMeta)
	if err != nil {
		logging.L().Warn("discovery_advertise_failed", "error", err)
		return
	}
	c.mu.Lock()
	c.discoveryStop = stop
	c.mu.Unlock()
	logging.L().Info("discovery_advertised", "service", discovery.ServiceType, "port", port)
}

func (c *Core[S, I, SI, R]) onHandshakeFailure() {
	c.totalHandshakeFail.Add(1)
}

func (c *Core[S, I, SI, R]) onTcpConnection(conn net.Conn) chanhandler.LoopState {
	c.totalAccepted.Add(1)
	c.mu.Lock()
	started := c.started
	atCapacity := c.maxClients > 0 && len(c.players) >= c.maxClients
	if started || atCapacity {
		c.mu.Unlock()
		if atCapacity && !started {
			metrics.IncHubReject()
			logging.L().Warn("player_rejected_max_clients", "addr", conn.RemoteAddr().String(), "max_clients", c.maxClients)
		}
		_ = conn.Close()
		return c.nextWait()
	}
	index := wire.PlayerIndex(len(c.players))
	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	slot := &playerSlot{index: index, ip: net.ParseIP(host), tcpConn: conn, hubClient: hub.NewClient[[]byte](defaultUDPOutboxSize)}
	c.players = append(c.players, slot)
	c.udpHub.Add(slot.hubClient)
	c.mu.Unlock()

	c.totalPlayers.Add(1)
	go udpWriter(c.ctx, c.udpConn, slot, c.udpHub)

	logging.L().Info("player_connected", "player_index", index, "addr", conn.RemoteAddr().String())
	return c.nextWait()
}

func (c *Core[S, I, SI, R]) onStartGame(renderSend chan<- game.RenderEvent[S]) chanhandler.LoopState {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return c.nextWait()
	}
	c.started = true
	players := append([]*playerSlot(nil), c.players...)
	c.renderSend = renderSend
	c.mu.Unlock()

	initialState := c.g.InitialState(len(players))
	cfg := wire.ServerConfig{
		TCPPort:              c.g.TCPPort(),
		UDPPort:              c.g.UDPPort(),
		FrameDuration:        c.g.StepPeriod(),
		GracePeriod:          c.g.GracePeriod(),
		TimeSyncPeriod:       c.g.TimeSyncPeriod(),
		ClientRollingAvgSize: c.g.ClockAverageSize(),
		MaxDatagramSize:      c.g.MaxDatagramSize(),
	}

	computer := serverComputer[S, I, SI, R]{game: c.g, onServerInput: c.recordServerInput}
	grace := graceFrames(c.g.GracePeriod(), c.g.StepPeriod())
	c.manager = frame.New[S, I](len(players), true, initialState, computer, serverObserver[S, I, SI, R]{core: c}, frame.WithGraceFrames[S, I](grace))

	c.scheduler = gametimer.New(c.g.StepPeriod(), 1)
	c.scheduler.StartServerTimer(c.clk.Now())

	for _, p := range players {
		info := wire.InitialInformation[S]{ServerConfig: cfg, PlayerCount: len(players), PlayerIndex: p.index, State: initialState}
		buf, err := wire.EncodeTCP(info)
		if err != nil {
			logging.L().Error("encode_initial_information_failed", "player_index", p.index, "error", err)
			continue
		}
		_ = p.tcpConn.SetWriteDeadline(time.Now().Add(c.handshakeTimeout))
		if err := wire.WriteFramed(p.tcpConn, buf); err != nil {
			logging.L().Warn("initial_information_write_failed", "player_index", p.index, "error", err)
			metrics.IncError(metrics.ErrTCPWrite)
			continue
		}
		_ = p.tcpConn.SetWriteDeadline(time.Time{})
		metrics.IncTCPTx()
	}

	if renderSend != nil {
		select {
		case renderSend <- game.RenderEvent[S]{Kind: game.RenderInitialInformation, InitialInformation: wire.InitialInformation[S]{ServerConfig: cfg, PlayerCount: len(players), State: initialState}}:
		default:
		}
	}

	logging.L().Info("game_started", "players", len(players))
	return c.nextWait()
}

func (c *Core[S, I, SI, R]) onUdpPacket(addr *net.UDPAddr, data []byte) chanhandler.LoopState {
	frag, ok := fragment.Decode(data)
	if !ok {
		metrics.IncMalformed()
		return c.nextWait()
	}

	key := addr.String()
	c.assemblersMu.Lock()
	asm, ok := c.assemblers[key]
	if !ok {
		asm = fragment.NewAssembler(defaultAssemblerDepth)
		c.assemblers[key] = asm
	}
	buf, complete := asm.AddFragment(c.clk.Now(), frag)
	c.assemblersMu.Unlock()
	if !complete {
		return c.nextWait()
	}
	if frag.Count > 1 {
		metrics.IncReassembled()
	}

	env, err := wire.DecodeEnvelope(buf)
	if err != nil {
		metrics.IncMalformed()
		return c.nextWait()
	}
	metrics.IncUDPRx()

	switch env.Kind {
	case wire.KindHello:
		hello, err := wire.DecodePayload[wire.Hello](env)
		if err != nil {
			metrics.IncMalformed()
			return c.nextWait()
		}
		c.onHello(hello, addr)
	case wire.KindInput:
		msg, err := wire.DecodePayload[wire.InputMessage[I]](env)
		if err != nil {
			metrics.IncMalformed()
			return c.nextWait()
		}
		c.onInputMessage(msg)
	default:
		logging.L().Warn("unexpected_udp_message_kind", "kind", env.Kind)
	}
	return c.nextWait()
}

func (c *Core[S, I, SI, R]) onHello(hello wire.Hello, addr *net.UDPAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(hello.PlayerIndex) >= len(c.players) {
		return
	}
	slot := c.players[hello.PlayerIndex]
	if slot.ip != nil && !slot.ip.Equal(addr.IP) {
		logging.L().Warn("udp_peer_ip_mismatch", "player_index", hello.PlayerIndex, "tcp_ip", slot.ip, "udp_ip", addr.IP)
		return
	}
	a := *addr
	slot.udpAddr.Store(&a)
}

func (c *Core[S, I, SI, R]) onInputMessage(msg wire.InputMessage[I]) {
	if c.manager == nil {
		return
	}
	c.manager.InsertInput(msg.FrameIndex, msg.PlayerIndex, msg.Input, true)
	c.broadcastEnvelope(wire.KindInput, msg)
}

// doTick is the per-tick effect of §4.9's GameTimerTick: advance the frame
// manager's current frame (which, on the server, also declares any
// still-pending input for old frames authoritatively missing), run the
// successor-computation algorithm, and broadcast the new TimeMessage.
//
// This collapses the original design's separate drop_steps_before /
// requested_current_frame bookkeeping into one AdvanceCurrentFrame call —
// frame.Manager already threads the grace window internally (see
// frame.WithGraceFrames), so there is no second threshold for ServerCore to
// track.
func (c *Core[S, I, SI, R]) doTick(now timeval.TimeValue) {
	msg := c.scheduler.BuildTimeMessage(now)
	c.manager.AdvanceCurrentFrame(c.scheduler.CurrentFrameIndex())
	c.manager.Tick()
	c.broadcastEnvelope(wire.KindTime, msg)

	if c.renderSend != nil {
		select {
		case c.renderSend <- game.RenderEvent[S]{Kind: game.RenderTime, Time: msg}:
		default:
		}
	}
}

func (c *Core[S, I, SI, R]) recordServerInput(frameIndex wire.FrameIndex, si SI) {
	c.serverInputsMu.Lock()
	c.serverInputs[frameIndex] = si
	c.serverInputsMu.Unlock()
}

// onNewState is the frame manager's observer callback. Per §4.9, only
// authoritative states and server-input are worth the wire: a
// non-authoritative (predicted) state exists purely so the server's own
// render channel has something to show and never reaches a client.
func (c *Core[S, I, SI, R]) onNewState(isAuthoritative bool, frameIndex wire.FrameIndex, state S) {
	if isAuthoritative {
		metrics.IncAuthoritativeFrame()
		c.broadcastEnvelope(wire.KindState, wire.StateMessage[S]{FrameIndex: frameIndex, State: state, Authoritative: true})

		c.serverInputsMu.Lock()
		si, ok := c.serverInputs[frameIndex]
		if ok {
			delete(c.serverInputs, frameIndex)
		}
		c.serverInputsMu.Unlock()
		if ok {
			c.broadcastEnvelope(wire.KindServerInput, wire.ServerInputMessage[SI]{FrameIndex: frameIndex, ServerInput: si})
		}
	}

	if c.renderSend != nil {
		select {
		case c.renderSend <- game.RenderEvent[S]{Kind: game.RenderState, State: state, StateFrameIndex: frameIndex, StateIsAuthoritative: isAuthoritative}:
		default:
		}
	}
}

func (c *Core[S, I, SI, R]) onInputMissing(frameIndex wire.FrameIndex, playerIndex wire.PlayerIndex) {
	metrics.IncMissingInput()
	logging.L().Debug("input_authoritatively_missing", "frame_index", frameIndex, "player_index", playerIndex)
}

func (c *Core[S, I, SI, R]) broadcastEnvelope(kind wire.Kind, msg any) {
	buf, err := wire.EncodeEnvelope(kind, msg)
	if err != nil {
		logging.L().Error("encode_envelope_failed", "kind", kind, "error", err)
		return
	}
	frags := c.fragmenter.Split(buf)
	for _, f := range frags {
		c.udpHub.Broadcast(f.Encode())
	}
	metrics.AddUDPTx(len(frags))
}
