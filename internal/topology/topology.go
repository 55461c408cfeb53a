package topology

import (
	"log/slog"
	"sync"
	"time"
)

// Topology is the shared, thread-safe view of the discovered graph.
// The discovery engine is the only writer; the ARP responder, the reactive
// router, and the debug handlers read it concurrently.
//
// Zero-value is safe to use (Router defaults to BFS).
type Topology struct {
	// Router computes paths. If nil, uses the default BFS implementation.
	Router Router

	mu    sync.RWMutex
	graph *Graph
}

// init lazily creates the graph. Caller must hold at least a read lock.
func (t *Topology) init() {
	if t.graph == nil {
		t.graph = newGraph()
	}
}

// AddNode inserts a switch if absent.
func (t *Topology) AddNode(dpid uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.init()
	t.graph.addNode(dpid)
}

// HasNode reports whether the switch is present.
func (t *Topology) HasNode(dpid uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.graph == nil {
		return false
	}
	_, ok := t.graph.nodes[dpid]
	return ok
}

// RefreshLink creates the a<->b link if absent and stamps it with now.
// Argument order does not matter. A self-loop is dropped with a log line.
func (t *Topology) RefreshLink(a, b uint64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.init()
	if !t.graph.refreshLink(a, b, now) {
		slog.Warn("refusing self-loop link", "dpid", a)
	}
}

// RecordPortUse notes that the given local port of dpid points at
// neighbor. Repeated identical observations are no-ops.
func (t *Topology) RecordPortUse(dpid uint64, port uint16, neighbor uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.init()
	t.graph.recordPortUse(dpid, port, neighbor)
}

// LinkingPorts returns the pair of local ports joining a and b, once both
// directions have been learned.
func (t *Topology) LinkingPorts(a, b uint64) (pa, pb uint16, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.graph == nil {
		return 0, 0, false
	}
	return t.graph.linkingPorts(a, b)
}

// RemoteEndpoint resolves the far side of a local port.
func (t *Topology) RemoteEndpoint(dpid uint64, port uint16) (neighbor uint64, neighborPort uint16, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.graph == nil {
		return 0, 0, false
	}
	return t.graph.remoteEndpoint(dpid, port)
}

// DeleteLink removes the a<->b adjacency. Partial state (a half-learned
// link, an already-removed port entry) is tolerated and cleaned up.
func (t *Topology) DeleteLink(a, b uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.init()
	if _, ok := t.graph.links[keyOf(a, b)]; ok {
		slog.Info("link removed", "a", a, "b", b)
	} else {
		slog.Debug("delete of absent link", "a", a, "b", b)
	}
	t.graph.deleteLink(a, b)
}

// RemoveNode deletes every incident link, then the switch itself.
func (t *Topology) RemoveNode(dpid uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.init()
	t.graph.removeNode(dpid)
}

// Neighbors returns dpid's current peers in link insertion order.
func (t *Topology) Neighbors(dpid uint64) []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.graph == nil {
		return nil
	}
	return t.graph.neighbors(dpid)
}

// LinkTo returns a copy of dpid's (port, neighbor) list.
func (t *Topology) LinkTo(dpid uint64) []PortLink {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.graph == nil {
		return nil
	}
	n, ok := t.graph.nodes[dpid]
	if !ok {
		return nil
	}
	return append([]PortLink(nil), n.LinkTo...)
}

// ShortestPath computes the hop list from src to dst, both endpoints
// included. ShortestPath(x, x) is [x] for a present node.
func (t *Topology) ShortestPath(from, to uint64) ([]uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	t.init()

	router := t.Router
	if router == nil {
		router = NewBFSRouter()
	}
	return router.Route(t.graph, from, to)
}

// Links returns a snapshot of the current link set.
func (t *Topology) Links() []Link {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.graph == nil {
		return nil
	}
	return t.graph.linkList()
}

// NodeCount returns the number of known switches.
func (t *Topology) NodeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.graph == nil {
		return 0
	}
	return len(t.graph.nodes)
}

// LinkCount returns the number of known links.
func (t *Topology) LinkCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.graph == nil {
		return 0
	}
	return len(t.graph.links)
}

// SweepStaleLinks removes every link last confirmed before cutoff and
// returns the removed set. The link list is snapshotted under the lock
// first, then each stale link is deleted under a fresh lock acquisition,
// so readers interleave and concurrent removals are tolerated.
func (t *Topology) SweepStaleLinks(cutoff time.Time) []Link {
	stale := make([]Link, 0)
	for _, l := range t.Links() {
		if l.LastSeen.Before(cutoff) {
			stale = append(stale, l)
		}
	}

	for _, l := range stale {
		slog.Info("link expired", "a", l.A, "b", l.B, "last_seen", l.LastSeen)
		t.DeleteLink(l.A, l.B)
	}
	return stale
}
