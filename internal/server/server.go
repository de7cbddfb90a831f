// Package server implements ServerCore (§4.9): the authoritative side of a
// lockstep session. It accepts TCP connections to assign player slots,
// broadcasts the game's InitialInformation once play starts, and then
// drives the session's frame clock, receiving and rebroadcasting input over
// UDP while the frame manager promotes states to authoritative.
package server

import (
	"context"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corelock/lockstep/internal/buildinfo"
	"github.com/corelock/lockstep/internal/chanhandler"
	"github.com/corelock/lockstep/internal/clock"
	"github.com/corelock/lockstep/internal/discovery"
	"github.com/corelock/lockstep/internal/fragment"
	"github.com/corelock/lockstep/internal/frame"
	"github.com/corelock/lockstep/internal/game"
	"github.com/corelock/lockstep/internal/gametimer"
	"github.com/corelock/lockstep/internal/hub"
	"github.com/corelock/lockstep/internal/logging"
	"github.com/corelock/lockstep/internal/wire"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultAssemblerDepth   = 32
	defaultUDPOutboxSize    = 256
)

// playerSlot tracks one connected player across its TCP handshake and UDP
// peer discovery.
type playerSlot struct {
	index     wire.PlayerIndex
	ip        net.IP
	tcpConn   net.Conn
	udpAddr   atomic.Pointer[net.UDPAddr]
	hubClient *hub.Client[[]byte]
}

// Core is the ServerCore state machine. S is the authoritative state type,
// I the per-player input, SI the server-authored per-frame input, R the
// interpolated render type (unused server-side but carried for symmetry
// with the Game interface).
type Core[S any, I any, SI any, R any] struct {
	g                game.Game[S, I, SI, R]
	listenIP         net.IP
	handshakeTimeout time.Duration
	maxClients       int // 0 = unlimited
	clk              clock.Source

	discoveryEnabled  bool
	discoveryInstance string
	discoveryMeta     []string
	discoveryStop     func()

	ctx  context.Context
	self chanhandler.HandlerChannel[Event[S]]

	mu          sync.RWMutex
	started     bool
	players     []*playerSlot
	tcpListener net.Listener
	udpConn     *net.UDPConn

	assemblersMu sync.Mutex
	assemblers   map[string]*fragment.Assembler
	fragmenter   *fragment.Fragmenter

	udpHub *hub.Hub[[]byte]

	manager   *frame.Manager[S, I]
	scheduler *gametimer.Scheduler

	serverInputsMu sync.Mutex
	serverInputs   map[wire.FrameIndex]SI

	renderSend chan<- game.RenderEvent[S]

	readyCh   chan struct{}
	readyOnce sync.Once

	stopErr error

	totalAccepted      atomic.Uint64
	totalHandshakeFail atomic.Uint64
	totalPlayers       atomic.Uint64
}

// Option configures a Core at construction.
type Option[S any, I any, SI any, R any] func(*Core[S, I, SI, R])

// WithListenIP overrides the default loopback bind address.
func WithListenIP[S any, I any, SI any, R any](ip net.IP) Option[S, I, SI, R] {
	return func(c *Core[S, I, SI, R]) { c.listenIP = ip }
}

// WithHandshakeTimeout overrides the deadline for a client's post-connect
// Hello (§10 ambient-stack generalization of the teacher's handshake
// timeout).
func WithHandshakeTimeout[S any, I any, SI any, R any](d time.Duration) Option[S, I, SI, R] {
	return func(c *Core[S, I, SI, R]) {
		if d > 0 {
			c.handshakeTimeout = d
		}
	}
}

// WithMaxClients caps the number of players ServerCore will register before
// rejecting further handshakes (§11 engine-tuning config). Zero, the
// default, means unlimited.
func WithMaxClients[S any, I any, SI any, R any](n int) Option[S, I, SI, R] {
	return func(c *Core[S, I, SI, R]) {
		if n >= 0 {
			c.maxClients = n
		}
	}
}

// WithDiscovery enables mDNS advertisement of the server's TCP port once it
// binds (§11/§12: LAN discovery via internal/discovery, so a client need not
// be told server_ip out-of-band). instance may be empty to take the
// package's hostname-derived default.
func WithDiscovery[S any, I any, SI any, R any](instance string, meta ...string) Option[S, I, SI, R] {
	return func(c *Core[S, I, SI, R]) {
		c.discoveryEnabled = true
		c.discoveryInstance = instance
		c.discoveryMeta = meta
	}
}

// WithClock overrides the server's time source, defaulting to clock.Real{}.
// A test driving the Core against internal/timequeue's virtual time passes a
// *clock.Sim here instead, making the whole loop deterministic (§5, §9).
func WithClock[S any, I any, SI any, R any](src clock.Source) Option[S, I, SI, R] {
	return func(c *Core[S, I, SI, R]) {
		if src != nil {
			c.clk = src
		}
	}
}

// WithKickPolicy sets the hub's backpressure policy for slow UDP peers.
func WithKickPolicy[S any, I any, SI any, R any](policy hub.BackpressurePolicy) Option[S, I, SI, R] {
	return func(c *Core[S, I, SI, R]) { c.udpHub.Policy = policy }
}

// New creates a Core for game g.
func New[S any, I any, SI any, R any](g game.Game[S, I, SI, R], opts ...Option[S, I, SI, R]) *Core[S, I, SI, R] {
	c := &Core[S, I, SI, R]{
		g:                g,
		listenIP:         net.IPv4(127, 0, 0, 1),
		handshakeTimeout: defaultHandshakeTimeout,
		clk:              clock.Real{},
		assemblers:       make(map[string]*fragment.Assembler),
		fragmenter:       fragment.New(g.MaxDatagramSize()),
		udpHub:           hub.New[[]byte](),
		serverInputs:     make(map[wire.FrameIndex]SI),
		readyCh:          make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ready closes once the TCP listener and UDP socket are both bound.
func (c *Core[S, I, SI, R]) Ready() <-chan struct{} { return c.readyCh }

// PlayerCount returns how many players have completed their TCP handshake
// so far. Safe to poll before StartGame to decide when enough players have
// joined.
func (c *Core[S, I, SI, R]) PlayerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.players)
}

// Addr returns the bound TCP listener address, or "" before StartListener.
func (c *Core[S, I, SI, R]) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tcpListener == nil {
		return ""
	}
	return c.tcpListener.Addr().String()
}

// Serve drives the core's event loop until ctx is canceled. It blocks the
// calling goroutine, matching the real-runtime scheduling model of §5: one
// goroutine per actor.
func (c *Core[S, I, SI, R]) Serve(ctx context.Context) error {
	logging.L().Info("server_starting", "build", buildinfo.Report().String())
	c.ctx = ctx
	c.self = chanhandler.NewHandlerChannel[Event[S]](c.clk, 128)

	done := make(chan struct{})
	go func() {
		chanhandler.Run(c.self.Recv, c)
		close(done)
	}()

	c.self.SendEvent(Event[S]{Kind: EventStartListener})

	select {
	case <-ctx.Done():
		c.self.SendStop(nil)
		<-done
		return c.shutdown()
	case <-done:
		if err := c.shutdown(); err != nil {
			return err
		}
		return c.stopErr
	}
}

// StartGame requests the server transition from Listening to Running,
// seeding the game from the players connected so far. renderSend receives
// the server's own render-side view of the session (mainly useful for a
// headless dedicated server that also wants to log/observe state).
func (c *Core[S, I, SI, R]) StartGame(renderSend chan<- game.RenderEvent[S]) {
	c.self.SendEvent(Event[S]{Kind: EventStartGame, RenderSend: renderSend})
}

func (c *Core[S, I, SI, R]) shutdown() error {
	c.mu.Lock()
	ln := c.tcpListener
	udp := c.udpConn
	players := append([]*playerSlot(nil), c.players...)
	discoveryStop := c.discoveryStop
	c.mu.Unlock()
	if discoveryStop != nil {
		discoveryStop()
	}
	if ln != nil {
		_ = ln.Close()
	}
	if udp != nil {
		_ = udp.Close()
	}
	for _, p := range players {
		_ = p.tcpConn.Close()
		if p.hubClient != nil {
			c.udpHub.Remove(p.hubClient)
		}
	}
	logging.L().Info("server_shutdown_summary",
		"accepted", c.totalAccepted.Load(),
		"handshake_fail", c.totalHandshakeFail.Load(),
		"players", c.totalPlayers.Load(),
	)
	return nil
}

func graceFrames(grace, period interface{ AsSecsF64() float64 }) int64 {
	p := period.AsSecsF64()
	if p <= 0 {
		return 0
	}
	return int64(math.Ceil(grace.AsSecsF64() / p))
}
