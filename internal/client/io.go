package client

import (
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/corelock/lockstep/internal/chanhandler"
	"github.com/corelock/lockstep/internal/logging"
	"github.com/corelock/lockstep/internal/metrics"
	"github.com/corelock/lockstep/internal/wire"
)

// newUDPReadBackoff mirrors the server's own exponential backoff between
// transient UDP read errors (see internal/server/io.go).
func newUDPReadBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0
	return b
}

// tcpReadLoop reads the server's single one-shot InitialInformation message
// and forwards it as an EventInitialInformation, then exits — the TCP
// connection carries nothing further once the session has moved to UDP.
func tcpReadLoop[S any, I any, SI any, R any, E any](ctx context.Context, conn net.Conn, self chanhandler.HandlerChannel[Event[S, E]], serverHost string) {
	buf, err := wire.ReadFramed(conn)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.L().Error("tcp_read_initial_information_failed", "addr", serverHost, "error", err)
		metrics.IncError(metrics.ErrTCPRead)
		self.SendStop(err)
		return
	}
	metrics.IncTCPRx()
	info, err := wire.DecodeTCP[S](buf)
	if err != nil {
		logging.L().Error("decode_initial_information_failed", "error", err)
		metrics.IncError(metrics.ErrDecode)
		self.SendStop(err)
		return
	}
	self.SendEvent(Event[S, E]{Kind: EventInitialInformation, InitialInfo: info})
}

// udpReadLoop forwards every received datagram as an EventUdpPacket. Fully
// decoding and reassembling happens on the core's own goroutine, mirroring
// the server's udpReadLoop.
func udpReadLoop[S any, I any, SI any, R any, E any](ctx context.Context, conn *net.UDPConn, self chanhandler.HandlerChannel[Event[S, E]]) {
	buf := make([]byte, 64*1024)
	b := newUDPReadBackoff()
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.L().Warn("udp_read_failed", "error", err)
			metrics.IncError(metrics.ErrUDPRead)
			time.Sleep(b.NextBackOff())
			continue
		}
		b.Reset()
		data := make([]byte, n)
		copy(data, buf[:n])
		self.SendEvent(Event[S, E]{Kind: EventUdpPacket, Data: data})
	}
}
