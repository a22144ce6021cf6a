package rooms

import (
	"fmt"
	"sync"
	"testing"
)

type fakeMember struct {
	id   string
	mu   sync.Mutex
	got  [][]byte
	full bool
}

func (f *fakeMember) ID() string { return f.id }

func (f *fakeMember) Send(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.got = append(f.got, payload)
	return true
}

func (f *fakeMember) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func TestJoinAndBroadcast(t *testing.T) {
	r := NewRegistry()
	a := &fakeMember{id: "a"}
	b := &fakeMember{id: "b"}
	c := &fakeMember{id: "c"}

	r.Join(a, "ws-1")
	r.Join(b, "ws-1")
	r.Join(c, "ws-2")

	n := r.Broadcast("ws-1", []byte("hello"), nil)
	if n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	if c.received() != 0 {
		t.Fatalf("cross-room delivery: ws-2 member received %d payloads", c.received())
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	r := NewRegistry()
	a := &fakeMember{id: "a"}
	b := &fakeMember{id: "b"}
	r.Join(a, "ws-1")
	r.Join(b, "ws-1")

	n := r.Broadcast("ws-1", []byte("x"), a)
	if n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if a.received() != 0 {
		t.Fatalf("sender received its own broadcast")
	}
	if b.received() != 1 {
		t.Fatalf("expected peer to receive broadcast")
	}
}

func TestJoinMovesConnectionBetweenRooms(t *testing.T) {
	r := NewRegistry()
	a := &fakeMember{id: "a"}

	r.Join(a, "ws-1")
	r.Join(a, "ws-2")

	if ws, _ := r.Room(a); ws != "ws-2" {
		t.Fatalf("expected connection in ws-2, got %q", ws)
	}
	if r.Size("ws-1") != 0 {
		t.Fatalf("expected empty ws-1 after move, size=%d", r.Size("ws-1"))
	}
	if n := r.Broadcast("ws-1", []byte("x"), nil); n != 0 {
		t.Fatalf("stale membership: %d deliveries in old room", n)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := &fakeMember{id: "a"}

	r.Leave(a) // absent: no-op
	r.Join(a, "ws-1")
	r.Leave(a)
	r.Leave(a)

	if _, ok := r.Room(a); ok {
		t.Fatalf("connection still tracked after leave")
	}
	if r.Size("ws-1") != 0 {
		t.Fatalf("room not emptied")
	}
}

func TestBroadcastSkipsSlowMembers(t *testing.T) {
	r := NewRegistry()
	slow := &fakeMember{id: "slow", full: true}
	fast := &fakeMember{id: "fast"}
	r.Join(slow, "ws-1")
	r.Join(fast, "ws-1")

	n := r.Broadcast("ws-1", []byte("x"), nil)
	if n != 1 {
		t.Fatalf("expected slow member skipped, delivered=%d", n)
	}
}

func TestConcurrentJoinLeaveBroadcast(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := &fakeMember{id: fmt.Sprintf("m-%d", i)}
			r.Join(m, "ws-1")
			r.Broadcast("ws-1", []byte("x"), m)
			r.Leave(m)
		}(i)
	}
	wg.Wait()

	if r.Size("ws-1") != 0 {
		t.Fatalf("expected empty room, size=%d", r.Size("ws-1"))
	}
}
