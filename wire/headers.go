// Package wire implements the shared ROHC wire-format primitives common
// to every profile: the add-CID prefix, packet-type discriminator
// detection, and the static/dynamic chain field codecs for IPv4/IPv6/
// UDP/RTP headers.
package wire

// IPv4Header holds the subset of an IPv4 header ROHC's static+dynamic
// chains carry.
type IPv4Header struct {
	SrcAddr    [4]byte
	DstAddr    [4]byte
	Protocol   uint8
	ToS        uint8
	TTL        uint8
	DF         bool
	Identification uint16
	Innermost  bool // this header terminates the IP header nest
}

// IPv6Header holds the subset of an IPv6 header the static chain tracks.
type IPv6Header struct {
	SrcAddr      [16]byte
	DstAddr      [16]byte
	NextHeader   uint8
	TrafficClass uint8
	FlowLabel    uint32 // 20 bits significant
	HasFlowLabel bool
	Innermost    bool
}

// UDPHeader holds the subset of a UDP header ROHC tracks.
type UDPHeader struct {
	SrcPort     uint16
	DstPort     uint16
	Checksum    uint16
	ChecksumUsed bool
}

// RTPHeader holds the subset of an RTP header ROHC tracks.
type RTPHeader struct {
	SSRC           uint32
	PayloadType    uint8 // 7 bits significant
	Marker         bool
	CC             uint8 // 4 bits significant: number of CSRC entries
	SequenceNumber uint16
	Timestamp      uint32
	Extension      bool
}
