// Package routing installs forwarding state reactively: the first IPv4
// packet of a flow reaches the controller, a shortest path is computed
// over the live topology, and matching flows are programmed on every
// switch along it, in both directions, before the hosts retransmit.
package routing

import (
	"log/slog"
	"net/netip"
	"time"

	"github.com/okdaichi/ofmesh/internal/hosts"
	"github.com/okdaichi/ofmesh/internal/packet"
	"github.com/okdaichi/ofmesh/internal/southbound"
	"github.com/okdaichi/ofmesh/internal/topology"
	"github.com/okdaichi/ofmesh/observability"
)

// DefaultIdleTimeout is how long an installed flow survives without
// matching traffic. The switch reclaims it; the controller does not track
// installed flows.
const DefaultIdleTimeout = 15 * time.Second

// Router is the reactive path router component.
type Router struct {
	topo     *topology.Topology
	hosts    *hosts.Table
	switches *southbound.Registry
	rec      *observability.Recorder

	// IdleTimeout is stamped on every installed flow.
	IdleTimeout time.Duration

	// InjectTrigger re-emits the triggering packet along the fresh path,
	// sparing the sender the one-packet loss of a reactive install.
	InjectTrigger bool
}

// New creates a router over the shared graph, host table, and switch
// registry.
func New(topo *topology.Topology, table *hosts.Table, switches *southbound.Registry, rec *observability.Recorder) *Router {
	return &Router{
		topo:        topo,
		hosts:       table,
		switches:    switches,
		rec:         rec,
		IdleTimeout: DefaultIdleTimeout,
	}
}

// flowStep is one flow-mod to send: program dpid to emit traffic for
// nwDst on outPort.
type flowStep struct {
	dpid    uint64
	outPort uint16
	nwDst   netip.Addr
}

// HandleEvent implements southbound.Handler. Only IPv4 packet-ins are
// routed.
func (r *Router) HandleEvent(ev southbound.Event) {
	pi, ok := ev.(southbound.PacketIn)
	if !ok {
		return
	}

	frame, err := packet.Decode(pi.Data)
	if err != nil || frame.IPv4 == nil {
		return
	}
	r.rec.PacketIn("ipv4")

	r.route(pi, frame.IPv4.Src, frame.IPv4.Dst)
}

func (r *Router) route(pi southbound.PacketIn, srcIP, dstIP netip.Addr) {
	srcDPID, srcPort, ok := r.hosts.FindByIP(srcIP)
	if !ok {
		slog.Error("no host record for source ip", "ip", srcIP)
		r.rec.RouteFailed("unknown_src")
		return
	}
	dstDPID, dstPort, ok := r.hosts.FindByIP(dstIP)
	if !ok {
		slog.Error("no host record for destination ip", "ip", dstIP)
		r.rec.RouteFailed("unknown_dst")
		return
	}

	hops, err := r.topo.ShortestPath(srcDPID, dstDPID)
	if err != nil {
		slog.Error("no path between hosts",
			"src", srcIP, "src_dpid", srcDPID,
			"dst", dstIP, "dst_dpid", dstDPID, "error", err)
		r.rec.RouteFailed("no_path")
		return
	}

	// Resolve the port pair of every hop-to-hop link up front; a
	// half-learned link aborts the whole installation.
	forward := make([]flowStep, 0, len(hops))
	reverse := make([]flowStep, 0, len(hops))
	for i := 0; i+1 < len(hops); i++ {
		pa, pb, ok := r.topo.LinkingPorts(hops[i], hops[i+1])
		if !ok {
			slog.Error("link without a full port pair",
				"a", hops[i], "b", hops[i+1])
			r.rec.RouteFailed("half_learned_link")
			return
		}
		forward = append(forward, flowStep{dpid: hops[i], outPort: pa, nwDst: dstIP})
		// Collected in path order here; reversed below so the reverse
		// direction also installs source switch first.
		reverse = append(reverse, flowStep{dpid: hops[i+1], outPort: pb, nwDst: srcIP})
	}
	forward = append(forward, flowStep{dpid: dstDPID, outPort: dstPort, nwDst: dstIP})

	for i, j := 0, len(reverse)-1; i < j; i, j = i+1, j-1 {
		reverse[i], reverse[j] = reverse[j], reverse[i]
	}
	reverse = append(reverse, flowStep{dpid: srcDPID, outPort: srcPort, nwDst: srcIP})

	steps := make([]flowStep, 0, len(forward)+len(reverse))
	steps = append(steps, forward...)
	steps = append(steps, reverse...)

	// Every switch on the path must still be connected before anything is
	// sent.
	conns := make(map[uint64]southbound.Connection, len(hops))
	for _, step := range steps {
		if _, ok := conns[step.dpid]; ok {
			continue
		}
		conn, ok := r.switches.Conn(step.dpid)
		if !ok {
			slog.Error("switch on path not connected", "dpid", step.dpid)
			r.rec.RouteFailed("switch_gone")
			return
		}
		conns[step.dpid] = conn
	}

	// Forward direction first, then reverse, each in hop order. A send
	// failure aborts; flows already installed idle out on their own.
	sent := 0
	for _, step := range steps {
		if err := conns[step.dpid].Send(r.flowMod(step)); err != nil {
			slog.Error("flow install failed", "dpid", step.dpid, "error", err)
			r.rec.RouteFailed("send_failed")
			r.rec.FlowModsSent(sent)
			return
		}
		sent++
	}
	r.rec.FlowModsSent(sent)
	r.rec.RouteInstalled()

	slog.Info("route installed",
		"src", srcIP, "dst", dstIP,
		"path", hops, "flows", sent)

	if r.InjectTrigger {
		out := southbound.PacketOut{
			Data:    pi.Data,
			Actions: []southbound.Action{southbound.Output{Port: forward[0].outPort}},
		}
		if err := conns[forward[0].dpid].Send(out); err != nil {
			slog.Debug("trigger re-injection failed", "dpid", forward[0].dpid, "error", err)
		}
	}
}

func (r *Router) flowMod(step flowStep) southbound.FlowMod {
	idle := r.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return southbound.FlowMod{
		Match: southbound.Match{
			EthType: packet.EthTypeIPv4,
			NWDst:   step.nwDst,
		},
		Actions:     []southbound.Action{southbound.Output{Port: step.outPort}},
		IdleTimeout: uint16(idle / time.Second),
	}
}
