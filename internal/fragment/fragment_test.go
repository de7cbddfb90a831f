package fragment

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/corelock/lockstep/internal/timeval"
)

func TestSplitAndReassembleRoundTrip(t *testing.T) {
	buf := bytes.Repeat([]byte{0xAB}, 4000)
	f := New(1500)
	fragments := f.Split(buf)
	if len(fragments) < 2 {
		t.Fatalf("expected multiple fragments for a 4000-byte buffer at MTU 1500, got %d", len(fragments))
	}

	a := NewAssembler(8)
	now := timeval.New(0, 0)
	var got []byte
	var done bool
	for _, fr := range fragments {
		got, done = a.AddFragment(now, fr)
	}
	if !done {
		t.Fatal("expected reassembly to complete after all fragments delivered")
	}
	if !bytes.Equal(got, buf) {
		t.Fatal("reassembled buffer does not match original")
	}
}

func TestReassemblyToleratesOutOfOrderAndDuplicates(t *testing.T) {
	buf := bytes.Repeat([]byte{0x01, 0x02, 0x03}, 800)
	fr := New(1500).Split(buf)
	if len(fr) < 2 {
		t.Fatal("expected multiple fragments")
	}
	order := rand.Perm(len(fr))
	a := NewAssembler(8)
	now := timeval.New(0, 0)
	var got []byte
	var done bool
	for _, idx := range order {
		got, done = a.AddFragment(now, fr[idx])
		_, _ = a.AddFragment(now, fr[idx]) // duplicate delivery
	}
	if !done || !bytes.Equal(got, buf) {
		t.Fatal("reassembly with permuted + duplicated fragments should still yield the original buffer")
	}
}

func TestMissingFragmentNeverCompletes(t *testing.T) {
	buf := bytes.Repeat([]byte{0x9}, 5000)
	fr := New(1500).Split(buf)
	if len(fr) < 3 {
		t.Fatal("expected at least 3 fragments")
	}
	a := NewAssembler(8)
	now := timeval.New(0, 0)
	for i, f := range fr {
		if i == 1 {
			continue // drop one fragment
		}
		if _, done := a.AddFragment(now, f); done {
			t.Fatal("reassembly should not complete with a missing fragment")
		}
	}
	if a.Pending() != 1 {
		t.Fatalf("pending = %d, want 1 (the incomplete message)", a.Pending())
	}
}

func TestCapacityEvictsOldestFirstFragmentTime(t *testing.T) {
	a := NewAssembler(2)
	mkFrag := func(id uint32) Fragment {
		return Fragment{MessageID: id, Index: 0, Count: 2, Payload: []byte{byte(id)}}
	}
	a.AddFragment(timeval.New(1, 0), mkFrag(1))
	a.AddFragment(timeval.New(2, 0), mkFrag(2))
	// Third message forces eviction of message 1 (oldest first-fragment time).
	a.AddFragment(timeval.New(3, 0), mkFrag(3))
	if a.Pending() != 2 {
		t.Fatalf("pending = %d, want 2 after eviction", a.Pending())
	}
	if _, ok := a.messages[1]; ok {
		t.Fatal("expected message 1 (oldest) to have been evicted")
	}
}

func TestSingleFragmentMessageBypassesReassembly(t *testing.T) {
	a := NewAssembler(8)
	payload := []byte("small")
	got, done := a.AddFragment(timeval.New(0, 0), Fragment{MessageID: 7, Index: 0, Count: 1, Payload: payload})
	if !done || !bytes.Equal(got, payload) {
		t.Fatal("count==1 fragment should return its payload immediately")
	}
	if a.Pending() != 0 {
		t.Fatal("single-fragment message should never enter the reassembly map")
	}
}
