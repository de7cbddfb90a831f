// Package client implements ClientCore (§4.8): the participant side of a
// lockstep session. It dials the server's TCP port, waits for the game's
// InitialInformation, then opens a UDP socket and drives its own local
// frame clock in step with the server's broadcast TimeMessages.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/corelock/lockstep/internal/chanhandler"
	"github.com/corelock/lockstep/internal/clock"
	"github.com/corelock/lockstep/internal/discovery"
	"github.com/corelock/lockstep/internal/fragment"
	"github.com/corelock/lockstep/internal/frame"
	"github.com/corelock/lockstep/internal/game"
	"github.com/corelock/lockstep/internal/gametimer"
	"github.com/corelock/lockstep/internal/logging"
	"github.com/corelock/lockstep/internal/wire"
)

const defaultHandshakeTimeout = 5 * time.Second

// Core is the ClientCore state machine. S/I/SI/R mirror game.Game; E is the
// concrete local input-event type the caller's InputAggregator consumes
// (key presses, controller state — opaque to the engine).
type Core[S any, I any, SI any, R any, E any] struct {
	g                game.Game[S, I, SI, R]
	aggregator       game.InputAggregator[E, I]
	handshakeTimeout time.Duration
	discoverTimeout  time.Duration // >0 enables mDNS auto-discovery when Run's serverHost is ""
	clk              clock.Source

	ctx  context.Context
	self chanhandler.HandlerChannel[Event[S, E]]

	mu          sync.RWMutex
	running     bool
	tcpConn     net.Conn
	udpConn     *net.UDPConn
	playerIndex wire.PlayerIndex
	initialInfo wire.InitialInformation[S]

	fragmenter *fragment.Fragmenter
	assembler  *fragment.Assembler

	manager   *frame.Manager[S, I]
	scheduler *gametimer.Scheduler

	serverInputsMu sync.Mutex
	serverInputs   map[wire.FrameIndex]SI

	renderSend chan<- game.RenderEvent[S]

	stopErr error
}

// Option configures a Core at construction.
type Option[S any, I any, SI any, R any, E any] func(*Core[S, I, SI, R, E])

// WithHandshakeTimeout overrides the deadline for the server's post-connect
// InitialInformation.
func WithHandshakeTimeout[S any, I any, SI any, R any, E any](d time.Duration) Option[S, I, SI, R, E] {
	return func(c *Core[S, I, SI, R, E]) {
		if d > 0 {
			c.handshakeTimeout = d
		}
	}
}

// WithAutoDiscover enables mDNS auto-discovery (internal/discovery): when
// Run is called with an empty serverHost, the client browses for up to
// timeout and connects to the first lockstep server it finds instead of
// requiring server_ip out-of-band.
func WithAutoDiscover[S any, I any, SI any, R any, E any](timeout time.Duration) Option[S, I, SI, R, E] {
	return func(c *Core[S, I, SI, R, E]) {
		if timeout > 0 {
			c.discoverTimeout = timeout
		}
	}
}

// WithClock overrides the client's time source, defaulting to clock.Real{}.
// A test driving the Core against internal/timequeue's virtual time passes a
// *clock.Sim here instead, making the whole loop deterministic (§5, §9).
func WithClock[S any, I any, SI any, R any, E any](src clock.Source) Option[S, I, SI, R, E] {
	return func(c *Core[S, I, SI, R, E]) {
		if src != nil {
			c.clk = src
		}
	}
}

// New creates a Core for game g, driven by the given input aggregator.
func New[S any, I any, SI any, R any, E any](g game.Game[S, I, SI, R], aggregator game.InputAggregator[E, I], opts ...Option[S, I, SI, R, E]) *Core[S, I, SI, R, E] {
	c := &Core[S, I, SI, R, E]{
		g:                g,
		aggregator:       aggregator,
		handshakeTimeout: defaultHandshakeTimeout,
		clk:              clock.Real{},
		fragmenter:       fragment.New(g.MaxDatagramSize()),
		assembler:        fragment.NewAssembler(32),
		serverInputs:     make(map[wire.FrameIndex]SI),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PlayerIndex returns the slot the server assigned this client, valid once
// Running.
func (c *Core[S, I, SI, R, E]) PlayerIndex() wire.PlayerIndex {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerIndex
}

// SendInputEvent forwards a local input event (key press, mouse move, ...)
// to the aggregator via the core's own event loop.
func (c *Core[S, I, SI, R, E]) SendInputEvent(e E) {
	c.self.SendEvent(Event[S, E]{Kind: EventInputEvent, Input: e})
}

// Run dials serverHost's TCP port, performs the handshake, and drives the
// session until ctx is canceled or the connection is lost. renderSend
// receives the stream of InitialInformation/State/Time render events.
func (c *Core[S, I, SI, R, E]) Run(ctx context.Context, serverHost string, renderSend chan<- game.RenderEvent[S]) error {
	c.ctx = ctx
	c.renderSend = renderSend

	if serverHost == "" {
		if c.discoverTimeout <= 0 {
			return fmt.Errorf("client: no serverHost given and auto-discovery is not enabled")
		}
		host, err := discoverServerHost(ctx, c.discoverTimeout)
		if err != nil {
			return fmt.Errorf("client: discover server: %w", err)
		}
		serverHost = host
	}

	tcpAddr := net.JoinHostPort(serverHost, fmt.Sprintf("%d", c.g.TCPPort()))
	conn, err := net.DialTimeout("tcp", tcpAddr, c.handshakeTimeout)
	if err != nil {
		return fmt.Errorf("client: dial tcp %s: %w", tcpAddr, err)
	}
	c.mu.Lock()
	c.tcpConn = conn
	c.mu.Unlock()

	if err := sendHello(conn); err != nil {
		_ = conn.Close()
		return fmt.Errorf("client: send hello: %w", err)
	}

	c.self = chanhandler.NewHandlerChannel[Event[S, E]](c.clk, 64)

	done := make(chan struct{})
	go func() {
		chanhandler.Run(c.self.Recv, c)
		close(done)
	}()

	go tcpReadLoop[S, I, SI, R, E](c.ctx, conn, c.self, serverHost)

	select {
	case <-ctx.Done():
		c.self.SendStop(nil)
		<-done
	case <-done:
	}

	c.mu.RLock()
	udp := c.udpConn
	c.mu.RUnlock()
	_ = conn.Close()
	if udp != nil {
		_ = udp.Close()
	}
	logging.L().Info("client_stopped")
	if c.stopErr != nil {
		return c.stopErr
	}
	return nil
}

func discoverServerHost(ctx context.Context, timeout time.Duration) (string, error) {
	entries, err := discovery.Discover(ctx, timeout)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if len(e.AddrIPv4) > 0 {
			return e.AddrIPv4[0].String(), nil
		}
	}
	return "", fmt.Errorf("no lockstep server found on the network")
}

func sendHello(conn net.Conn) error {
	buf, err := wire.EncodeEnvelope(wire.KindHello, wire.Hello{})
	if err != nil {
		return err
	}
	return wire.WriteFramed(conn, buf)
}
