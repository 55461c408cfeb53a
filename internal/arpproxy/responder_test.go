package arpproxy

import (
	"net"
	"net/netip"
	"sync"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/okdaichi/ofmesh/internal/packet"
	"github.com/okdaichi/ofmesh/internal/southbound"
)

type fakeConn struct {
	dpid uint64
	mu   sync.Mutex
	sent []southbound.Message
}

func (c *fakeConn) DPID() uint64 { return c.dpid }

func (c *fakeConn) Send(msg southbound.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) packetOuts() []southbound.PacketOut {
	c.mu.Lock()
	defer c.mu.Unlock()
	var pos []southbound.PacketOut
	for _, m := range c.sent {
		if po, ok := m.(southbound.PacketOut); ok {
			pos = append(pos, po)
		}
	}
	return pos
}

func buildARPFrame(t *testing.T, op uint16, senderMAC, senderIP, targetIP string) []byte {
	t.Helper()

	mac, err := net.ParseMAC(senderMAC)
	if err != nil {
		t.Fatalf("bad mac: %v", err)
	}

	eth := layers.Ethernet{
		SrcMAC:       mac,
		DstMAC:       packet.EthBroadcast,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         op,
		SourceHwAddress:   mac,
		SourceProtAddress: netip.MustParseAddr(senderIP).AsSlice(),
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    netip.MustParseAddr(targetIP).AsSlice(),
	}

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, &eth, &arp); err != nil {
		t.Fatalf("serialize arp: %v", err)
	}
	return buf.Bytes()
}

// Scenario: host aa:..:01 / 10.0.0.1 asks for 10.0.0.2 on port 1 of
// switch 1. The proxy answers from the controller MAC, out the same port.
func TestResponder_RepliesToRequest(t *testing.T) {
	r := New(nil, nil)
	conn := &fakeConn{dpid: 1}

	req := buildARPFrame(t, packet.ARPOpRequest, "aa:aa:aa:aa:aa:01", "10.0.0.1", "10.0.0.2")
	r.HandleEvent(southbound.PacketIn{DPID: 1, InPort: 1, Data: req, Conn: conn})

	pos := conn.packetOuts()
	if len(pos) != 1 {
		t.Fatalf("packet outs = %d, want 1 reply", len(pos))
	}
	if out, ok := pos[0].Actions[0].(southbound.Output); !ok || out.Port != 1 {
		t.Fatalf("reply action = %+v, want output on the ingress port", pos[0].Actions)
	}

	frame, err := packet.Decode(pos[0].Data)
	if err != nil || frame.ARP == nil {
		t.Fatalf("reply did not decode as arp: %v", err)
	}
	if frame.ARP.Op != packet.ARPOpReply {
		t.Errorf("op = %d, want reply", frame.ARP.Op)
	}
	if frame.SrcMAC.String() != DefaultControllerMAC.String() {
		t.Errorf("eth src = %s, want controller mac", frame.SrcMAC)
	}
	if frame.DstMAC.String() != "aa:aa:aa:aa:aa:01" {
		t.Errorf("eth dst = %s, want the requester", frame.DstMAC)
	}
	if frame.ARP.SenderIP != netip.MustParseAddr("10.0.0.2") {
		t.Errorf("psrc = %s, want the requested target ip", frame.ARP.SenderIP)
	}
	if frame.ARP.TargetIP != netip.MustParseAddr("10.0.0.1") {
		t.Errorf("pdst = %s, want the requester ip", frame.ARP.TargetIP)
	}
	if frame.ARP.SenderMAC.String() != DefaultControllerMAC.String() {
		t.Errorf("hwsrc = %s, want controller mac", frame.ARP.SenderMAC)
	}
	if frame.ARP.TargetMAC.String() != "aa:aa:aa:aa:aa:01" {
		t.Errorf("hwdst = %s, want the requester mac", frame.ARP.TargetMAC)
	}
}

func TestResponder_IgnoresReplies(t *testing.T) {
	r := New(nil, nil)
	conn := &fakeConn{dpid: 1}

	rep := buildARPFrame(t, packet.ARPOpReply, "aa:aa:aa:aa:aa:02", "10.0.0.2", "10.0.0.1")
	r.HandleEvent(southbound.PacketIn{DPID: 1, InPort: 1, Data: rep, Conn: conn})

	if len(conn.packetOuts()) != 0 {
		t.Error("replies must be observed only, never answered")
	}
}

func TestResponder_IgnoresNonARP(t *testing.T) {
	r := New(nil, nil)
	conn := &fakeConn{dpid: 1}

	mac, _ := net.ParseMAC("00:11:22:33:44:55")
	lldp := packet.BuildLLDP(mac, 1, 3, 1)
	r.HandleEvent(southbound.PacketIn{DPID: 1, InPort: 1, Data: lldp, Conn: conn})
	r.HandleEvent(southbound.PortStatus{DPID: 1, Port: 1, Down: true})

	if len(conn.packetOuts()) != 0 {
		t.Error("non-arp input must be ignored")
	}
}

func TestResponder_CustomMAC(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:99")
	r := New(mac, nil)
	conn := &fakeConn{dpid: 1}

	req := buildARPFrame(t, packet.ARPOpRequest, "aa:aa:aa:aa:aa:01", "10.0.0.1", "10.0.0.2")
	r.HandleEvent(southbound.PacketIn{DPID: 1, InPort: 2, Data: req, Conn: conn})

	pos := conn.packetOuts()
	if len(pos) != 1 {
		t.Fatalf("packet outs = %d, want 1", len(pos))
	}
	frame, _ := packet.Decode(pos[0].Data)
	if frame.SrcMAC.String() != mac.String() {
		t.Errorf("eth src = %s, want %s", frame.SrcMAC, mac)
	}
}
