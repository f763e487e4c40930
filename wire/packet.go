package wire

// IPLayer is one header in the IP nest, tagged by version. Profiles that
// only support IPv4 (this module's profiles/rtp) type-assert V4 is set;
// profiles/v2iponly and profiles/simple accept either.
type IPLayer struct {
	Version int // 4 or 6
	V4      IPv4Header
	V6      IPv6Header
}

// Packet is the pre-parsed representation every profile's Compressor
// operates on. Parsing raw link-layer/IP bytes into this shape (PCAP
// ingest, the user-facing buffer abstraction) is left to external
// callers — the core only ever sees already-demultiplexed headers.
type Packet struct {
	IPLayers []IPLayer // outermost first, innermost last
	UDP      *UDPHeader
	RTP      *RTPHeader
	Payload  []byte
}

// Innermost returns the last (innermost) IP layer, if any.
func (p *Packet) Innermost() (IPLayer, bool) {
	if len(p.IPLayers) == 0 {
		return IPLayer{}, false
	}
	return p.IPLayers[len(p.IPLayers)-1], true
}
