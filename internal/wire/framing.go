package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxTCPMessageSize bounds a single length-prefixed TCP message, guarding
// against a corrupt or hostile length header causing an unbounded
// allocation.
const MaxTCPMessageSize = 1 << 20

// WriteFramed writes payload to w prefixed with its big-endian uint32
// length — the engine's only TCP framing, used for the client's Hello
// handshake message and the one-shot InitialInformation message (§4.10).
func WriteFramed(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w", err)
	}
	return nil
}

// ReadFramed reads one length-prefixed message from r.
func ReadFramed(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("wire: read frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxTCPMessageSize {
		return nil, fmt.Errorf("wire: frame size %d exceeds max %d", size, MaxTCPMessageSize)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("wire: read frame payload: %w", err)
	}
	return buf, nil
}
