// Package topology maintains the discovered switch-to-switch graph: which
// switches exist, which local ports point at which neighbors, and how
// fresh each link is. Path computation runs as unweighted BFS over the
// adjacency lists.
package topology

import (
	"time"
)

// PortLink records that a local port of a switch leads to a neighbor.
type PortLink struct {
	Port     uint16 `json:"port"`
	Neighbor uint64 `json:"neighbor"`
}

// Node is one switch in the graph. LinkTo preserves insertion order; a
// local port appears at most once.
type Node struct {
	DPID   uint64     `json:"dpid"`
	LinkTo []PortLink `json:"link_to"`

	// peers lists neighbor dpids in link insertion order. BFS iterates it
	// so equal-length path ties break deterministically.
	peers []uint64
}

// Link is an undirected switch-to-switch adjacency. Endpoints are
// normalized so A < B; there is never a self-loop and never more than one
// link per dpid pair.
type Link struct {
	A        uint64    `json:"a"`
	B        uint64    `json:"b"`
	LastSeen time.Time `json:"last_seen"`
}

type linkKey struct {
	a, b uint64
}

func keyOf(a, b uint64) linkKey {
	if a > b {
		a, b = b, a
	}
	return linkKey{a: a, b: b}
}

// Graph is the raw adjacency-list topology. It is not safe for concurrent
// use; Topology provides the locked wrapper.
type Graph struct {
	nodes map[uint64]*Node
	links map[linkKey]*Link
}

func newGraph() *Graph {
	return &Graph{
		nodes: make(map[uint64]*Node),
		links: make(map[linkKey]*Link),
	}
}

// addNode inserts a switch if absent and returns it.
func (g *Graph) addNode(dpid uint64) *Node {
	n, ok := g.nodes[dpid]
	if !ok {
		n = &Node{DPID: dpid}
		g.nodes[dpid] = n
	}
	return n
}

// refreshLink creates the link if absent and stamps it with now. Both
// endpoints are created as needed. Self-loops are rejected.
func (g *Graph) refreshLink(a, b uint64, now time.Time) bool {
	if a == b {
		return false
	}

	na := g.addNode(a)
	nb := g.addNode(b)

	k := keyOf(a, b)
	l, ok := g.links[k]
	if !ok {
		g.links[k] = &Link{A: k.a, B: k.b, LastSeen: now}
		na.peers = append(na.peers, b)
		nb.peers = append(nb.peers, a)
		return true
	}
	l.LastSeen = now
	return true
}

// recordPortUse notes that the given local port of dpid points at
// neighbor. A port already present with the same neighbor is a no-op; a
// port already present with a different neighbor is repointed, keeping the
// one-entry-per-port invariant.
func (g *Graph) recordPortUse(dpid uint64, port uint16, neighbor uint64) {
	n := g.addNode(dpid)
	for i, pl := range n.LinkTo {
		if pl.Port == port {
			n.LinkTo[i].Neighbor = neighbor
			return
		}
	}
	n.LinkTo = append(n.LinkTo, PortLink{Port: port, Neighbor: neighbor})
}

// linkingPorts returns the local port on a pointing at b and the local
// port on b pointing at a. ok is false until both directions have been
// learned.
func (g *Graph) linkingPorts(a, b uint64) (pa, pb uint16, ok bool) {
	pa, okA := g.portToward(a, b)
	pb, okB := g.portToward(b, a)
	if !okA || !okB {
		return 0, 0, false
	}
	return pa, pb, true
}

func (g *Graph) portToward(from, to uint64) (uint16, bool) {
	n, ok := g.nodes[from]
	if !ok {
		return 0, false
	}
	for _, pl := range n.LinkTo {
		if pl.Neighbor == to {
			return pl.Port, true
		}
	}
	return 0, false
}

// remoteEndpoint resolves the far side of a local port: the neighbor dpid
// the port leads to and the neighbor's own port back. ok is false when
// either direction is unknown, which happens routinely while a link is
// half-learned or mid-teardown.
func (g *Graph) remoteEndpoint(dpid uint64, port uint16) (neighbor uint64, neighborPort uint16, ok bool) {
	n, found := g.nodes[dpid]
	if !found {
		return 0, 0, false
	}
	for _, pl := range n.LinkTo {
		if pl.Port == port {
			neighbor = pl.Neighbor
			neighborPort, ok = g.portToward(neighbor, dpid)
			return neighbor, neighborPort, ok
		}
	}
	return 0, 0, false
}

// deleteLink removes the adjacency between a and b: the port entries on
// both sides, the peer-list entries, and the link itself. It tolerates
// partial state; whatever half exists is cleaned up.
func (g *Graph) deleteLink(a, b uint64) {
	g.dropPortEntry(a, b)
	g.dropPortEntry(b, a)
	g.dropPeer(a, b)
	g.dropPeer(b, a)
	delete(g.links, keyOf(a, b))
}

func (g *Graph) dropPortEntry(from, to uint64) {
	n, ok := g.nodes[from]
	if !ok {
		return
	}
	filtered := n.LinkTo[:0]
	for _, pl := range n.LinkTo {
		if pl.Neighbor != to {
			filtered = append(filtered, pl)
		}
	}
	n.LinkTo = filtered
}

func (g *Graph) dropPeer(from, to uint64) {
	n, ok := g.nodes[from]
	if !ok {
		return
	}
	filtered := n.peers[:0]
	for _, p := range n.peers {
		if p != to {
			filtered = append(filtered, p)
		}
	}
	n.peers = filtered
}

// removeNode deletes every link incident to dpid and then the node.
func (g *Graph) removeNode(dpid uint64) {
	n, ok := g.nodes[dpid]
	if !ok {
		return
	}
	for _, peer := range append([]uint64(nil), n.peers...) {
		g.deleteLink(dpid, peer)
	}
	delete(g.nodes, dpid)
}

// neighbors returns dpid's peers in link insertion order.
func (g *Graph) neighbors(dpid uint64) []uint64 {
	n, ok := g.nodes[dpid]
	if !ok {
		return nil
	}
	return append([]uint64(nil), n.peers...)
}

// linkList returns a copy of the current link set.
func (g *Graph) linkList() []Link {
	links := make([]Link, 0, len(g.links))
	for _, l := range g.links {
		links = append(links, *l)
	}
	return links
}
