package fragment

import "github.com/corelock/lockstep/internal/timeval"

type partial struct {
	count       uint16
	outstanding uint16
	parts       [][]byte
	firstSeen   timeval.TimeValue
}

func newPartial(now timeval.TimeValue, f Fragment) *partial {
	p := &partial{
		count:       f.Count,
		outstanding: f.Count,
		parts:       make([][]byte, f.Count),
		firstSeen:   now,
	}
	p.add(f)
	return p
}

func (p *partial) add(f Fragment) {
	if int(f.Index) >= len(p.parts) {
		return
	}
	if p.parts[f.Index] == nil {
		p.outstanding--
	}
	p.parts[f.Index] = f.Payload
}

func (p *partial) complete() bool { return p.outstanding == 0 }

func (p *partial) assemble() []byte {
	total := 0
	for _, part := range p.parts {
		total += len(part)
	}
	buf := make([]byte, 0, total)
	for _, part := range p.parts {
		buf = append(buf, part...)
	}
	return buf
}

// Assembler reassembles fragmented messages from a single peer. Callers
// hold one Assembler per source socket address (peer), per §4.5.
type Assembler struct {
	maxMessages int
	messages    map[uint32]*partial
}

// NewAssembler creates an Assembler bounded to maxMessages concurrently
// in-flight partial reassemblies.
func NewAssembler(maxMessages int) *Assembler {
	return &Assembler{maxMessages: maxMessages, messages: make(map[uint32]*partial)}
}

// AddFragment ingests one fragment. It returns the complete reassembled
// buffer and true once every fragment of that message has arrived.
func (a *Assembler) AddFragment(now timeval.TimeValue, f Fragment) ([]byte, bool) {
	if f.Count == 1 {
		return f.Payload, true
	}

	p, ok := a.messages[f.MessageID]
	if !ok {
		a.evictUntilRoom()
		p = newPartial(now, f)
		a.messages[f.MessageID] = p
	} else {
		p.add(f)
	}

	if p.complete() {
		delete(a.messages, f.MessageID)
		return p.assemble(), true
	}
	return nil, false
}

func (a *Assembler) evictUntilRoom() {
	for len(a.messages) >= a.maxMessages && a.maxMessages > 0 {
		var oldestID uint32
		var oldest timeval.TimeValue
		found := false
		for id, p := range a.messages {
			if !found || oldest.After(p.firstSeen) {
				oldest = p.firstSeen
				oldestID = id
				found = true
			}
		}
		if !found {
			return
		}
		delete(a.messages, oldestID)
	}
}

// Reset discards all in-flight reassembly state. Called after a decode
// failure on a reassembled message, per §4.5's failure policy, to avoid a
// stuck reassembler from a malformed stream.
func (a *Assembler) Reset() {
	a.messages = make(map[uint32]*partial)
}

// Pending reports how many messages are currently mid-reassembly.
func (a *Assembler) Pending() int { return len(a.messages) }
