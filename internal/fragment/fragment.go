// Package fragment implements user-space fragmentation and reassembly of
// messages that exceed the UDP MTU: a constant-size header
// {message_id, index, count} prefixes each fragment's payload slice.
package fragment

import "encoding/binary"

// HeaderSize is the wire size of a fragment header: message_id (u32) +
// index (u16) + count (u16).
const HeaderSize = 4 + 2 + 2

// Fragment is one piece of a larger message.
type Fragment struct {
	MessageID uint32
	Index     uint16
	Count     uint16
	Payload   []byte
}

// Encode serializes the fragment (header + payload) for UDP transmission.
func (f Fragment) Encode() []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))
	binary.BigEndian.PutUint32(buf[0:4], f.MessageID)
	binary.BigEndian.PutUint16(buf[4:6], f.Index)
	binary.BigEndian.PutUint16(buf[6:8], f.Count)
	copy(buf[HeaderSize:], f.Payload)
	return buf
}

// Decode parses a fragment previously produced by Encode.
func Decode(buf []byte) (Fragment, bool) {
	if len(buf) < HeaderSize {
		return Fragment{}, false
	}
	return Fragment{
		MessageID: binary.BigEndian.Uint32(buf[0:4]),
		Index:     binary.BigEndian.Uint16(buf[4:6]),
		Count:     binary.BigEndian.Uint16(buf[6:8]),
		Payload:   buf[HeaderSize:],
	}, true
}

// Fragmenter splits an encoded message into MTU-sized fragments, assigning
// each message a wrapping 32-bit id.
type Fragmenter struct {
	nextID          uint32
	maxDatagramSize int
}

// New creates a Fragmenter bounding every output fragment (header included)
// to maxDatagramSize bytes.
func New(maxDatagramSize int) *Fragmenter {
	return &Fragmenter{maxDatagramSize: maxDatagramSize}
}

// Split divides buf into fragments. A single-fragment message still carries
// Count == 1 so the assembler can special-case it without a reassembly map
// entry.
func (f *Fragmenter) Split(buf []byte) []Fragment {
	id := f.nextID
	if f.nextID == ^uint32(0) {
		f.nextID = 0
	} else {
		f.nextID++
	}

	payloadSize := f.maxDatagramSize - HeaderSize
	if payloadSize < 1 {
		payloadSize = 1
	}
	count := len(buf) / payloadSize
	if len(buf)%payloadSize != 0 || count == 0 {
		count++
	}

	fragments := make([]Fragment, 0, count)
	for i := 0; i < count; i++ {
		start := i * payloadSize
		end := start + payloadSize
		if end > len(buf) {
			end = len(buf)
		}
		fragments = append(fragments, Fragment{
			MessageID: id,
			Index:     uint16(i),
			Count:     uint16(count),
			Payload:   buf[start:end],
		})
	}
	return fragments
}
