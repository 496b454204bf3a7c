package session

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

func TestStreamAddIdempotent(t *testing.T) {
	st := NewStream("#osu")
	s := newTestSession(1, 0)
	st.Add(s)
	st.Add(s)
	if st.Len() != 1 {
		t.Errorf("Len = %d, want 1", st.Len())
	}
	if !st.Contains(s.Token()) {
		t.Error("Contains = false")
	}
}

func TestStreamRemoveAbsent(t *testing.T) {
	st := NewStream("#osu")
	s := newTestSession(1, 0)
	st.Add(s)

	if st.Remove("missing") {
		t.Error("Remove(absent) = true")
	}
	if st.Len() != 1 {
		t.Errorf("Len = %d after absent remove", st.Len())
	}
	if !st.Remove(s.Token()) {
		t.Error("Remove(member) = false")
	}
	if st.Len() != 0 {
		t.Errorf("Len = %d after remove", st.Len())
	}
}

func TestStreamBroadcast(t *testing.T) {
	st := NewStream("#osu")
	members := []*Session{newTestSession(1, 0), newTestSession(2, 0), newTestSession(3, 0)}
	outsider := newTestSession(4, 0)
	for _, s := range members {
		st.Add(s)
	}

	payload := []byte{0x18, 0, 0, 1, 0, 0, 0, 0}
	st.Broadcast(payload)

	for _, s := range members {
		if got := s.Drain(); !bytes.Equal(got, payload) {
			t.Errorf("member %d got %x, want %x", s.UserID(), got, payload)
		}
	}
	if outsider.Pending() != 0 {
		t.Errorf("non-member mailbox has %d bytes", outsider.Pending())
	}
}

func TestStreamBroadcastExcept(t *testing.T) {
	st := NewStream("#osu")
	a, b := newTestSession(1, 0), newTestSession(2, 0)
	st.Add(a)
	st.Add(b)

	st.BroadcastExcept([]byte{9}, a.Token())
	if a.Pending() != 0 {
		t.Error("excluded member received broadcast")
	}
	if b.Pending() != 1 {
		t.Error("member missed broadcast")
	}
}

func TestConcurrentBroadcastsAndMembership(t *testing.T) {
	st := NewStream("main")
	target := newTestSession(1, 0)
	st.Add(target)

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			st.Broadcast([]byte(fmt.Sprintf("<%02d>", i)))
		}(i)
		go func(i int) {
			defer wg.Done()
			other := newTestSession(int64(100+i), 0)
			st.Add(other)
			st.Remove(other.Token())
		}(i)
	}
	wg.Wait()

	got := target.Drain()
	if len(got) != n*4 {
		t.Fatalf("drained %d bytes, want %d", len(got), n*4)
	}
	seen := make(map[string]bool)
	for i := 0; i < len(got); i += 4 {
		seen[string(got[i:i+4])] = true
	}
	for i := 0; i < n; i++ {
		if !seen[fmt.Sprintf("<%02d>", i)] {
			t.Errorf("broadcast %d missing or corrupted", i)
		}
	}
}

func TestStreamManager(t *testing.T) {
	m := NewStreamManager()
	osu := m.Create("#osu")
	m.Create("main")

	if got, ok := m.Get("#osu"); !ok || got != osu {
		t.Error("Get(#osu) failed")
	}
	if names := m.Names(); len(names) != 2 || names[0] != "#osu" || names[1] != "main" {
		t.Errorf("Names = %v", names)
	}

	s := newTestSession(1, 0)
	osu.Add(s)
	replaced := m.Create("#osu")
	if replaced == osu {
		t.Fatal("Create returned the existing stream")
	}
	if replaced.Len() != 0 {
		t.Error("replacement stream kept old members")
	}

	if !m.Remove("main") || m.Remove("main") {
		t.Error("Remove results wrong")
	}
	if _, ok := m.Get("main"); ok {
		t.Error("removed stream still visible")
	}
}

func TestRemoveFromAll(t *testing.T) {
	m := NewStreamManager()
	a, b := m.Create("#osu"), m.Create("main")
	m.Create("lobby")
	s := newTestSession(1, 0)
	a.Add(s)
	b.Add(s)

	if n := m.RemoveFromAll(s.Token()); n != 2 {
		t.Errorf("RemoveFromAll = %d, want 2", n)
	}
	if a.Contains(s.Token()) || b.Contains(s.Token()) {
		t.Error("session still in a stream")
	}
}
