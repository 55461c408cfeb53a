package southbound

import (
	"testing"
)

type recordingHandler struct {
	name string
	log  *[]string
}

func (h *recordingHandler) HandleEvent(ev Event) {
	*h.log = append(*h.log, h.name)
}

type panickyHandler struct{}

func (panickyHandler) HandleEvent(ev Event) {
	panic("boom")
}

func TestMux_DispatchOrder(t *testing.T) {
	mux := NewMux()

	var log []string
	mux.Register("first", &recordingHandler{name: "first", log: &log})
	mux.Register("second", &recordingHandler{name: "second", log: &log})
	mux.Register("third", &recordingHandler{name: "third", log: &log})

	mux.Dispatch(ConnectionDown{DPID: 1})

	if len(log) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(log))
	}
	for i, want := range []string{"first", "second", "third"} {
		if log[i] != want {
			t.Errorf("delivery %d = %s, want %s", i, log[i], want)
		}
	}
}

func TestMux_PanicIsContained(t *testing.T) {
	mux := NewMux()

	var log []string
	mux.Register("panicky", panickyHandler{})
	mux.Register("after", &recordingHandler{name: "after", log: &log})

	// Must not propagate the panic, and the later handler still runs.
	mux.Dispatch(ConnectionDown{DPID: 1})

	if len(log) != 1 || log[0] != "after" {
		t.Errorf("handler after the panicking one did not run: %v", log)
	}
}

func TestMux_EmptyDispatch(t *testing.T) {
	mux := NewMux()
	// No handlers registered: dispatch is a no-op.
	mux.Dispatch(PortStatus{DPID: 1, Port: 2, Down: true})
}
