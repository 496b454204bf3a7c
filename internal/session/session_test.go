package session

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/soumetsu-project/soumetsu/internal/models"
	"github.com/soumetsu-project/soumetsu/internal/protocol"
)

func newTestSession(id int64, limit int) *Session {
	name := fmt.Sprintf("player%d", id)
	return New(&models.User{ID: id, Name: name, NameSafe: name}, Options{MailboxLimit: limit})
}

func TestSendDrain(t *testing.T) {
	s := newTestSession(1, 0)
	s.Send([]byte{1, 2})
	s.Send(nil)
	s.Send([]byte{3})

	if s.Pending() != 3 {
		t.Errorf("Pending = %d, want 3", s.Pending())
	}
	if got := s.Drain(); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Drain = %v", got)
	}
	if got := s.Drain(); len(got) != 0 {
		t.Errorf("second Drain = %v, want empty", got)
	}
}

func TestMailboxOverflow(t *testing.T) {
	s := newTestSession(1, 8)
	s.Send(make([]byte, 6))
	if s.Overflowed() {
		t.Fatal("overflowed below limit")
	}
	s.Send(make([]byte, 3))
	if !s.Overflowed() {
		t.Fatal("not overflowed past limit")
	}
	if s.Pending() != 6 {
		t.Errorf("Pending = %d, overflowing bytes should be dropped", s.Pending())
	}
	s.Send([]byte{1})
	if s.Pending() != 6 {
		t.Errorf("Send after overflow was buffered")
	}
	s.Drain()
	if !s.Overflowed() {
		t.Error("Drain cleared overflow flag")
	}
}

func TestTokensUnique(t *testing.T) {
	a, b := newTestSession(1, 0), newTestSession(1, 0)
	if a.Token() == b.Token() || a.Token() == "" {
		t.Errorf("tokens %q and %q", a.Token(), b.Token())
	}
}

func TestTouch(t *testing.T) {
	s := newTestSession(1, 0)
	at := time.Unix(1700000000, 0)
	s.Touch(at)
	if !s.LastSeen().Equal(at) {
		t.Errorf("LastSeen = %v, want %v", s.LastSeen(), at)
	}
}

func TestStatsFromStatus(t *testing.T) {
	s := newTestSession(7, 0)
	s.SetStatus(Status{Action: 2, ActionText: "playing", Mods: 16, Mode: 1, BeatmapID: 9})
	want := protocol.Stats{UserID: 7, ActionID: 2, ActionText: "playing", Mods: 16, Mode: 1, BeatmapID: 9}
	if got := s.Stats(); got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
}

func TestConcurrentSendSingleDrain(t *testing.T) {
	const writers, perWriter = 16, 200
	s := newTestSession(1, 0)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			pkt := protocol.Notification(fmt.Sprintf("writer-%02d", w))
			for i := 0; i < perWriter; i++ {
				s.Send(pkt)
			}
		}(w)
	}
	wg.Wait()

	// Every packet must parse cleanly and each writer must appear perWriter times.
	counts := make(map[string]int)
	r := protocol.NewReader(s.Drain())
	for !r.Empty() {
		id, length, err := r.ReadHeader()
		if err != nil {
			t.Fatalf("ReadHeader: %v", err)
		}
		if id != protocol.SrvNotification || length != 11 {
			t.Fatalf("corrupted packet: id %v length %d", id, length)
		}
		text, err := r.ReadString()
		if err != nil {
			t.Fatalf("ReadString: %v", err)
		}
		counts[text]++
	}
	if len(counts) != writers {
		t.Fatalf("saw %d writers, want %d", len(counts), writers)
	}
	for text, n := range counts {
		if n != perWriter {
			t.Errorf("%s delivered %d times, want %d", text, n, perWriter)
		}
	}
}

func TestDrainWhileSending(t *testing.T) {
	const writers, perWriter = 8, 500
	s := newTestSession(1, 0)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			pkt := protocol.Notification(fmt.Sprintf("writer-%02d", w))
			for i := 0; i < perWriter; i++ {
				s.Send(pkt)
			}
		}(w)
	}

	stop := make(chan struct{})
	drained := make(chan []byte)
	go func() {
		var all []byte
		for {
			select {
			case <-stop:
				drained <- append(all, s.Drain()...)
				return
			default:
				all = append(all, s.Drain()...)
			}
		}
	}()
	wg.Wait()
	close(stop)
	all := <-drained

	counts := make(map[string]int)
	r := protocol.NewReader(all)
	for !r.Empty() {
		id, length, err := r.ReadHeader()
		if err != nil {
			t.Fatalf("ReadHeader: %v", err)
		}
		if id != protocol.SrvNotification || length != 11 {
			t.Fatalf("corrupted packet: id %v length %d", id, length)
		}
		text, err := r.ReadString()
		if err != nil {
			t.Fatalf("ReadString: %v", err)
		}
		counts[text]++
	}
	for w := 0; w < writers; w++ {
		text := fmt.Sprintf("writer-%02d", w)
		if counts[text] != perWriter {
			t.Errorf("%s delivered %d times, want %d", text, counts[text], perWriter)
		}
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d after final drain", s.Pending())
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	a := newTestSession(1, 0)
	b := newTestSession(2, 0)
	reg.Add(a)
	reg.Add(b)

	if reg.Len() != 2 {
		t.Errorf("Len = %d", reg.Len())
	}
	if got, ok := reg.Get(a.Token()); !ok || got != a {
		t.Error("Get(a) failed")
	}
	if got, ok := reg.ByUserID(2); !ok || got != b {
		t.Error("ByUserID(2) failed")
	}
	if got, ok := reg.ByName("Player2"); !ok || got != b {
		t.Error("ByName(Player2) failed")
	}

	// A second login for the same user hands back the previous session.
	a2 := newTestSession(1, 0)
	if prev := reg.Add(a2); prev != a {
		t.Errorf("Add returned %v, want previous session", prev)
	}
	if got, _ := reg.ByUserID(1); got != a2 {
		t.Error("ByUserID did not move to newest session")
	}

	if _, ok := reg.Remove(a.Token()); !ok {
		t.Error("Remove(a) reported absent")
	}
	if got, ok := reg.ByUserID(1); !ok || got != a2 {
		t.Error("removing stale session dropped the newer one")
	}
	if _, ok := reg.Remove(a.Token()); ok {
		t.Error("second Remove reported present")
	}
	if len(reg.All()) != 2 {
		t.Errorf("All = %d sessions", len(reg.All()))
	}
}
