package southbound

import (
	"testing"
)

type stubConn struct {
	dpid uint64
}

func (c *stubConn) DPID() uint64       { return c.dpid }
func (c *stubConn) Send(Message) error { return nil }

func TestRegistry_AddAndLookup(t *testing.T) {
	r := NewRegistry()

	c1 := &stubConn{dpid: 1}
	r.Add(1, 4, c1)
	r.Add(2, 2, &stubConn{dpid: 2})

	if got := r.Count(); got != 2 {
		t.Fatalf("Count() = %d, want 2", got)
	}

	conn, ok := r.Conn(1)
	if !ok {
		t.Fatal("expected switch 1 to be present")
	}
	if conn != c1 {
		t.Error("Conn(1) returned a different connection")
	}

	if _, ok := r.Conn(99); ok {
		t.Error("expected switch 99 to be absent")
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	r.Add(1, 4, &stubConn{dpid: 1})

	r.Remove(1)

	if got := r.Count(); got != 0 {
		t.Errorf("Count() = %d after remove, want 0", got)
	}
	if _, ok := r.Conn(1); ok {
		t.Error("removed switch still resolvable")
	}

	// Removing an absent dpid is a no-op.
	r.Remove(42)
}

func TestRegistry_ReAddReplaces(t *testing.T) {
	r := NewRegistry()
	old := &stubConn{dpid: 1}
	fresh := &stubConn{dpid: 1}

	r.Add(1, 4, old)
	r.Add(1, 8, fresh)

	if got := r.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
	conn, _ := r.Conn(1)
	if conn != fresh {
		t.Error("re-add did not replace the connection")
	}

	infos := r.List()
	if len(infos) != 1 || infos[0].Ports != 8 {
		t.Errorf("List() = %+v, want one entry with 8 ports", infos)
	}
}
