package packet

import (
	"errors"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrNotARPRequest is returned when a reply is requested for a frame that
// is not an ARP request.
var ErrNotARPRequest = errors.New("packet: frame is not an arp request")

// BuildARPReply synthesizes the proxy reply for an ARP request: the
// controller answers for the requested target IP with its own MAC, so the
// querying host points its traffic at the controller-managed fabric.
func BuildARPReply(controllerMAC net.HardwareAddr, req *Frame) ([]byte, error) {
	if req == nil || req.ARP == nil || req.ARP.Op != ARPOpRequest {
		return nil, ErrNotARPRequest
	}

	eth := layers.Ethernet{
		SrcMAC:       controllerMAC,
		DstMAC:       req.SrcMAC,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   controllerMAC,
		SourceProtAddress: req.ARP.TargetIP.AsSlice(),
		DstHwAddress:      req.ARP.SenderMAC,
		DstProtAddress:    req.ARP.SenderIP.AsSlice(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &arp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
