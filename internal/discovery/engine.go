// Package discovery runs the LLDP-based topology discovery engine: it
// programs the punt rules on every connecting switch, emits periodic LLDP
// probes on all physical ports, turns received probes into graph links,
// tears links down on port and connection loss, and sweeps links whose
// probes have stopped arriving.
package discovery

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/okdaichi/ofmesh/internal/hosts"
	"github.com/okdaichi/ofmesh/internal/packet"
	"github.com/okdaichi/ofmesh/internal/southbound"
	"github.com/okdaichi/ofmesh/internal/topology"
	"github.com/okdaichi/ofmesh/observability"
)

// DefaultLLDPTTL is the probe period and the advertised TTL. Links not
// reconfirmed within three periods are collected.
const DefaultLLDPTTL = 1 * time.Second

// Config carries the discovery knobs.
type Config struct {
	// ControllerMAC is the source address for probes on ports with no
	// hardware address in the inventory.
	ControllerMAC net.HardwareAddr

	// LLDPTTL is the probe period. Defaults to DefaultLLDPTTL.
	LLDPTTL time.Duration

	// ClearFlowsOnConnect wipes the switch's flow table before the punt
	// rules are installed. Debug behavior.
	ClearFlowsOnConnect bool
}

func (c Config) lldpTTL() time.Duration {
	if c.LLDPTTL > 0 {
		return c.LLDPTTL
	}
	return DefaultLLDPTTL
}

// switchState is the per-switch prober bookkeeping.
type switchState struct {
	conn   southbound.Connection
	ports  []southbound.PortInfo
	cancel context.CancelFunc
}

// Engine is the discovery component. It is the only writer of the
// topology graph.
type Engine struct {
	cfg   Config
	topo  *topology.Topology
	hosts *hosts.Table
	rec   *observability.Recorder

	mu        sync.Mutex
	scheduled map[uint64]*switchState // dpid present iff its prober is live

	now func() time.Time
}

// New creates a discovery engine over the shared graph and host table.
func New(cfg Config, topo *topology.Topology, table *hosts.Table, rec *observability.Recorder) *Engine {
	return &Engine{
		cfg:       cfg,
		topo:      topo,
		hosts:     table,
		rec:       rec,
		scheduled: make(map[uint64]*switchState),
		now:       time.Now,
	}
}

// HandleEvent implements southbound.Handler.
func (e *Engine) HandleEvent(ev southbound.Event) {
	switch ev := ev.(type) {
	case southbound.ConnectionUp:
		e.handleConnectionUp(ev)
	case southbound.ConnectionDown:
		e.handleConnectionDown(ev)
	case southbound.PortStatus:
		e.handlePortStatus(ev)
	case southbound.PacketIn:
		e.handlePacketIn(ev)
	}
}

// Scheduled reports whether a probe timer is live for the dpid.
func (e *Engine) Scheduled(dpid uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.scheduled[dpid]
	return ok
}

func (e *Engine) handleConnectionUp(ev southbound.ConnectionUp) {
	if e.cfg.ClearFlowsOnConnect {
		if err := ev.Conn.Send(southbound.FlowMod{Command: southbound.FlowDelete}); err != nil {
			slog.Warn("flow table clear failed", "dpid", ev.DPID, "error", err)
		}
	}

	// Punt all LLDP and all broadcast ARP to the controller.
	puntRules := []southbound.FlowMod{
		{
			Match: southbound.Match{
				EthType: packet.EthTypeLLDP,
				EthDst:  packet.LLDPMulticast,
			},
			Actions: []southbound.Action{southbound.Output{Port: southbound.PortController}},
		},
		{
			Match: southbound.Match{
				EthType: packet.EthTypeARP,
				EthDst:  packet.EthBroadcast,
			},
			Actions: []southbound.Action{southbound.Output{Port: southbound.PortController}},
		},
	}
	for _, fm := range puntRules {
		if err := ev.Conn.Send(fm); err != nil {
			slog.Warn("punt rule install failed", "dpid", ev.DPID, "error", err)
		}
	}
	slog.Debug("punt rules installed", "dpid", ev.DPID)

	e.mu.Lock()
	if _, ok := e.scheduled[ev.DPID]; ok {
		// Duplicate ConnectionUp: the running prober stands.
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	st := &switchState{conn: ev.Conn, ports: ev.Ports, cancel: cancel}
	e.scheduled[ev.DPID] = st
	e.mu.Unlock()

	// First probe round goes out immediately; the ticker takes over from
	// there.
	e.emitLLDP(ev.DPID, st)
	go e.runProber(ctx, ev.DPID, st)
}

// runProber emits one probe round per LLDP TTL until canceled.
func (e *Engine) runProber(ctx context.Context, dpid uint64, st *switchState) {
	ticker := time.NewTicker(e.cfg.lldpTTL())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.emitLLDP(dpid, st)
		}
	}
}

// emitLLDP sends one probe out of every physical port of the switch.
func (e *Engine) emitLLDP(dpid uint64, st *switchState) {
	ttl := uint16(e.cfg.lldpTTL() / time.Second)
	if ttl == 0 {
		ttl = 1
	}

	for _, p := range st.ports {
		if p.Number >= southbound.PortMax {
			continue
		}
		src := p.MAC
		if len(src) != 6 {
			src = e.cfg.ControllerMAC
		}
		data := packet.BuildLLDP(src, dpid, p.Number, ttl)
		out := southbound.PacketOut{
			Data:    data,
			Actions: []southbound.Action{southbound.Output{Port: p.Number}},
		}
		if err := st.conn.Send(out); err != nil {
			slog.Debug("lldp emit failed", "dpid", dpid, "port", p.Number, "error", err)
		}
	}
}

func (e *Engine) handlePacketIn(ev southbound.PacketIn) {
	frame, err := packet.Decode(ev.Data)
	if err != nil {
		return
	}

	switch frame.EthType {
	case packet.EthTypeLLDP:
		e.ingestLLDP(ev, frame)
	case packet.EthTypeARP:
		e.observeARP(ev, frame)
	}
}

// ingestLLDP turns a received probe into graph state. The probe tells us
// which remote (dpid, port) transmitted onto our ingress port; the reverse
// direction fills in when the symmetric probe arrives.
func (e *Engine) ingestLLDP(ev southbound.PacketIn, frame *packet.Frame) {
	remote, remotePort, err := packet.LLDPPeer(frame.LLDP)
	if err != nil {
		e.rec.LLDPMalformed()
		slog.Debug("malformed lldp dropped", "dpid", ev.DPID, "port", ev.InPort)
		return
	}
	e.rec.PacketIn("lldp")

	e.topo.AddNode(remote)
	e.topo.AddNode(ev.DPID)
	e.topo.RefreshLink(ev.DPID, remote, e.now())
	// The remote's own port entry fills in when its probe travels the
	// other way; here we only learn our side.
	e.topo.RecordPortUse(ev.DPID, ev.InPort, remote)

	slog.Debug("lldp probe ingested",
		"dpid", ev.DPID, "port", ev.InPort,
		"remote", remote, "remote_port", remotePort)
}

// observeARP feeds the sender of any ARP frame, request or reply, into the
// host table.
func (e *Engine) observeARP(ev southbound.PacketIn, frame *packet.Frame) {
	if frame.ARP == nil {
		return
	}
	e.rec.PacketIn("arp")

	rec := hosts.Record{
		DPID: ev.DPID,
		Port: ev.InPort,
		MAC:  frame.ARP.SenderMAC,
		IP:   frame.ARP.SenderIP,
	}
	if e.hosts.Observe(rec) {
		slog.Info("host learned", "ip", rec.IP, "mac", rec.MAC, "dpid", rec.DPID, "port", rec.Port)
	}
}

// handlePortStatus tears down the link behind an administratively downed
// port. Port-up needs no action: probes re-establish the link on their
// own.
func (e *Engine) handlePortStatus(ev southbound.PortStatus) {
	if !ev.Down {
		return
	}

	neighbor, _, ok := e.topo.RemoteEndpoint(ev.DPID, ev.Port)
	if !ok {
		slog.Debug("port down on unknown link", "dpid", ev.DPID, "port", ev.Port)
		return
	}
	slog.Info("port down", "dpid", ev.DPID, "port", ev.Port, "neighbor", neighbor)
	e.topo.DeleteLink(ev.DPID, neighbor)
}

// handleConnectionDown stops the prober and removes the switch and all its
// links from the graph.
func (e *Engine) handleConnectionDown(ev southbound.ConnectionDown) {
	e.mu.Lock()
	if st, ok := e.scheduled[ev.DPID]; ok {
		st.cancel()
		delete(e.scheduled, ev.DPID)
	}
	e.mu.Unlock()

	for _, nb := range e.topo.Neighbors(ev.DPID) {
		e.topo.DeleteLink(ev.DPID, nb)
	}
	e.topo.RemoveNode(ev.DPID)
	slog.Info("switch down", "dpid", ev.DPID)
}

// RunLinkCollector sweeps stale links every three TTLs until ctx is
// canceled.
func (e *Engine) RunLinkCollector(ctx context.Context) {
	interval := 3 * e.cfg.lldpTTL()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.CollectOnce()
		}
	}
}

// CollectOnce removes every link whose last confirmation is older than
// three TTLs.
func (e *Engine) CollectOnce() int {
	cutoff := e.now().Add(-3 * e.cfg.lldpTTL())
	removed := e.topo.SweepStaleLinks(cutoff)
	e.rec.LinksExpired(len(removed))
	return len(removed)
}
