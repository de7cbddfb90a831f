package server

import (
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/corelock/lockstep/internal/chanhandler"
	"github.com/corelock/lockstep/internal/hub"
	"github.com/corelock/lockstep/internal/logging"
	"github.com/corelock/lockstep/internal/metrics"
)

// newAcceptBackoff builds the exponential backoff applied between transient
// accept/read failures, replacing the teacher's hand-rolled fixed 200ms
// sleep with its own already-vendored backoff library.
func newAcceptBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0 // never gives up; the accept/read loop only stops via ctx
	return b
}

// acceptLoop accepts TCP connections and performs each one's Hello
// handshake on its own goroutine so a slow or hostile peer never blocks the
// core's single event-handler loop; only a successfully-handshaked
// connection is forwarded as an EventTcpConnection.
func acceptLoop[S any](ctx context.Context, ln net.Listener, self chanhandler.HandlerChannel[Event[S]], timeout time.Duration, onFail func()) {
	b := newAcceptBackoff()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.L().Warn("tcp_accept_failed", "error", err)
			metrics.IncError(metrics.ErrTCPRead)
			time.Sleep(b.NextBackOff())
			continue
		}
		b.Reset()
		go func(conn net.Conn) {
			if err := helloHandshake(ctx, conn, timeout); err != nil {
				logging.L().Warn("handshake_failed", "addr", conn.RemoteAddr().String(), "error", err)
				metrics.IncError(metrics.ErrHandshake)
				onFail()
				_ = conn.Close()
				return
			}
			self.SendEvent(Event[S]{Kind: EventTcpConnection, Conn: conn})
		}(conn)
	}
}

// udpReadLoop forwards every received datagram as an EventUdpPacket. Fully
// decoding and reassembling happens on the core's own goroutine so the
// manager/assembler state it touches is never shared across goroutines.
func udpReadLoop[S any](ctx context.Context, conn *net.UDPConn, self chanhandler.HandlerChannel[Event[S]]) {
	buf := make([]byte, 64*1024)
	b := newAcceptBackoff()
	for {
		n, addr, err := conn.ReadFromUDP(buf)
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
		self.SendEvent(Event[S]{Kind: EventUdpPacket, Addr: addr, Data: data})
	}
}

// udpWriter drains one player's hub queue to its UDP peer address, once
// known. Datagrams queued before the player's Hello has registered an
// address are dropped and are not resent.
func udpWriter(ctx context.Context, conn *net.UDPConn, slot *playerSlot, h *hub.Hub[[]byte]) {
	defer h.Remove(slot.hubClient)
	for {
		select {
		case <-ctx.Done():
			return
		case <-slot.hubClient.Closed:
			return
		case data, ok := <-slot.hubClient.Out:
			if !ok {
				return
			}
			addr := slot.udpAddr.Load()
			if addr == nil {
				continue
			}
			if _, err := conn.WriteToUDP(data, addr); err != nil {
				metrics.IncError(metrics.ErrUDPWrite)
			}
		}
	}
}
