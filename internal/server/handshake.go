package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/corelock/lockstep/internal/wire"
)

// helloHandshake reads the client's framed Hello within the configured
// deadline, generalizing the teacher's deadline-guarded TCP handshake
// (originally a Cannelloni hello exchange) to this engine's own wire
// format.
func helloHandshake(ctx context.Context, conn net.Conn, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set deadline: %v", ErrHandshake, err)
	}
	buf, err := wire.ReadFramed(conn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	var hello wire.Hello
	if err := decodeHello(buf, &hello); err != nil {
		return fmt.Errorf("%w: decode hello: %v", ErrHandshake, err)
	}
	return conn.SetReadDeadline(time.Time{})
}

func decodeHello(buf []byte, out *wire.Hello) error {
	env, err := wire.DecodeEnvelope(buf)
	if err != nil {
		return err
	}
	hello, err := wire.DecodePayload[wire.Hello](env)
	if err != nil {
		return err
	}
	*out = hello
	return nil
}
