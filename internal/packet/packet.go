// Package packet decodes the three frame kinds the controller consumes
// (LLDP, ARP, IPv4) and builds the two it emits (LLDP probes, ARP
// replies). Decoding rides on gopacket; only the fields the controller
// actually consults are surfaced, so the rest of the module never touches
// the parser library directly.
package packet

import (
	"errors"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Ethertypes the controller handles.
const (
	EthTypeIPv4 uint16 = 0x0800
	EthTypeARP  uint16 = 0x0806
	EthTypeLLDP uint16 = 0x88cc
)

// ARP opcodes.
const (
	ARPOpRequest uint16 = 1
	ARPOpReply   uint16 = 2
)

// LLDPMulticast is the bridge-filtered LLDP destination address.
var LLDPMulticast = net.HardwareAddr{0x01, 0x80, 0xc2, 0x00, 0x00, 0x0e}

// EthBroadcast is the all-ones Ethernet address.
var EthBroadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ErrNotEthernet is returned when the data does not decode as an Ethernet
// frame at all.
var ErrNotEthernet = errors.New("packet: not an ethernet frame")

// ARPInfo is the decoded ARP payload.
type ARPInfo struct {
	Op        uint16
	SenderMAC net.HardwareAddr
	SenderIP  netip.Addr
	TargetMAC net.HardwareAddr
	TargetIP  netip.Addr
}

// IPv4Info carries the addresses of a decoded IPv4 header.
type IPv4Info struct {
	Src netip.Addr
	Dst netip.Addr
}

// LLDPInfo carries the mandatory TLVs of a decoded LLDPDU.
type LLDPInfo struct {
	ChassisSubtype uint8
	ChassisID      []byte
	PortSubtype    uint8
	PortID         []byte
	TTL            uint16
}

// Frame is a decoded Ethernet frame. Exactly one of ARP, IPv4, LLDP is
// non-nil when the payload decoded cleanly; all three are nil for other
// ethertypes or malformed payloads.
type Frame struct {
	SrcMAC  net.HardwareAddr
	DstMAC  net.HardwareAddr
	EthType uint16

	ARP  *ARPInfo
	IPv4 *IPv4Info
	LLDP *LLDPInfo
}

// Decode parses a raw Ethernet frame. A frame whose payload fails to
// decode still returns with the Ethernet fields set and all payload views
// nil; callers treat that as a malformed observation and drop it.
func Decode(data []byte) (*Frame, error) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)

	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return nil, ErrNotEthernet
	}
	eth := ethLayer.(*layers.Ethernet)

	f := &Frame{
		SrcMAC:  eth.SrcMAC,
		DstMAC:  eth.DstMAC,
		EthType: uint16(eth.EthernetType),
	}

	if l := pkt.Layer(layers.LayerTypeARP); l != nil {
		f.ARP = arpInfo(l.(*layers.ARP))
	}
	if l := pkt.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		src, okSrc := netip.AddrFromSlice(ip.SrcIP.To4())
		dst, okDst := netip.AddrFromSlice(ip.DstIP.To4())
		if okSrc && okDst {
			f.IPv4 = &IPv4Info{Src: src, Dst: dst}
		}
	}
	if l := pkt.Layer(layers.LayerTypeLinkLayerDiscovery); l != nil {
		lldp := l.(*layers.LinkLayerDiscovery)
		f.LLDP = &LLDPInfo{
			ChassisSubtype: uint8(lldp.ChassisID.Subtype),
			ChassisID:      lldp.ChassisID.ID,
			PortSubtype:    uint8(lldp.PortID.Subtype),
			PortID:         lldp.PortID.ID,
			TTL:            lldp.TTL,
		}
	}

	return f, nil
}

func arpInfo(arp *layers.ARP) *ARPInfo {
	senderIP, okS := netip.AddrFromSlice(arp.SourceProtAddress)
	targetIP, okT := netip.AddrFromSlice(arp.DstProtAddress)
	if !okS || !okT {
		return nil
	}
	return &ARPInfo{
		Op:        arp.Operation,
		SenderMAC: net.HardwareAddr(arp.SourceHwAddress),
		SenderIP:  senderIP,
		TargetMAC: net.HardwareAddr(arp.DstHwAddress),
		TargetIP:  targetIP,
	}
}
