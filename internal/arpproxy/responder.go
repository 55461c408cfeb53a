// Package arpproxy answers every ARP request with the controller's MAC.
// Hosts resolve all of their peers to the same L2 next hop, broadcast
// never floods the fabric, and the reactive router decides where IP
// traffic actually goes.
package arpproxy

import (
	"log/slog"
	"net"

	"github.com/okdaichi/ofmesh/internal/packet"
	"github.com/okdaichi/ofmesh/internal/southbound"
	"github.com/okdaichi/ofmesh/observability"
)

// DefaultControllerMAC is the fixed L2 identity the proxy answers with.
var DefaultControllerMAC = net.HardwareAddr{0x00, 0x00, 0xca, 0xfe, 0xba, 0xbe}

// Responder is the ARP proxy component.
type Responder struct {
	// MAC is the controller identity placed in every reply.
	MAC net.HardwareAddr

	rec *observability.Recorder
}

// New creates a responder. A nil mac falls back to DefaultControllerMAC.
func New(mac net.HardwareAddr, rec *observability.Recorder) *Responder {
	if len(mac) != 6 {
		mac = DefaultControllerMAC
	}
	return &Responder{MAC: mac, rec: rec}
}

// HandleEvent implements southbound.Handler. Only ARP request packet-ins
// produce a reply; replies are observed by the discovery engine and
// everything else is ignored here.
func (r *Responder) HandleEvent(ev southbound.Event) {
	pi, ok := ev.(southbound.PacketIn)
	if !ok {
		return
	}

	frame, err := packet.Decode(pi.Data)
	if err != nil || frame.ARP == nil {
		return
	}
	if frame.ARP.Op != packet.ARPOpRequest {
		return
	}

	reply, err := packet.BuildARPReply(r.MAC, frame)
	if err != nil {
		slog.Debug("arp reply build failed", "dpid", pi.DPID, "error", err)
		return
	}

	// The reply leaves through the same port the request came in on.
	out := southbound.PacketOut{
		Data:    reply,
		Actions: []southbound.Action{southbound.Output{Port: pi.InPort}},
	}
	if err := pi.Conn.Send(out); err != nil {
		slog.Warn("arp reply send failed", "dpid", pi.DPID, "error", err)
		return
	}

	r.rec.ARPReplySent()
	slog.Debug("arp reply sent",
		"dpid", pi.DPID, "port", pi.InPort,
		"for", frame.ARP.TargetIP, "to", frame.ARP.SenderIP)
}
