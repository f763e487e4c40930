// Package simple implements the shared IR/IR-DYN-only skeleton for the
// profiles that never got a UO/UOR packet-type decision tree of their
// own in this module: Uncompressed, IP-only (ROHCv1), IP/UDP, IP/ESP,
// IP/UDPLite, IP/TCP, and their ROHCv2 counterparts. Every packet beyond
// the first resends the full dynamic chain (IR-DYN for ROHCv1 IDs,
// co_repair for ROHCv2 IDs) rather than a W-LSB delta: these profiles
// exist to round-trip and register correctly, not to squeeze bytes.
//
// wire has no header codec for ESP, TCP, or UDPLite, so IP/ESP and
// IP/TCP track only their IP nest (no transport-layer dynamic fields),
// and IP/UDPLite reuses the UDP static/dynamic codec (UDPLite's header
// layout is sport/dport/checksum-equivalent, the same fields wire's
// UDPHeader already models).
package simple

import (
	"errors"

	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/wire"
)

// CompState is the compressor-side state: IR for the first packet of a
// flow, FO ever after. There is no SO state: this skeleton never elides
// a field via W-LSB.
type CompState int

const (
	StateIR CompState = iota
	StateFO
)

func (s CompState) String() string {
	if s == StateIR {
		return "IR"
	}
	return "FO"
}

// DecompState is the decompressor-side state.
type DecompState int

const (
	StateNC DecompState = iota
	StateSC
	StateFC
)

func (s DecompState) String() string {
	switch s {
	case StateNC:
		return "NC"
	case StateSC:
		return "SC"
	default:
		return "FC"
	}
}

// MaxIRCount is how many consecutive IR packets the compressor sends
// before downgrading to FO.
const MaxIRCount = 1

// DecompFCFailThreshold is how many consecutive CRC failures in FC
// demote the decompressor back to SC.
const DecompFCFailThreshold = 1

// variant describes one registered profile ID's packet shape.
type variant struct {
	hasUDP bool
	isV2   bool
}

// variants enumerates every profile.ID this package serves. profiles/rtp
// and profiles/v2iponly own IPUDPRTP and V2IPOnly respectively; this
// package never registers those IDs.
var variants = map[profile.ID]variant{
	profile.Uncompressed:   {hasUDP: false, isV2: false},
	profile.IPOnly:         {hasUDP: false, isV2: false},
	profile.IPESP:          {hasUDP: false, isV2: false},
	profile.IPTCP:          {hasUDP: false, isV2: false},
	profile.IPUDP:          {hasUDP: true, isV2: false},
	profile.IPUDPLite:      {hasUDP: true, isV2: false},
	profile.V2Uncompressed: {hasUDP: false, isV2: true},
	profile.V2IPESP:        {hasUDP: false, isV2: true},
	profile.V2IPTCP:        {hasUDP: false, isV2: true},
	profile.V2IPUDP:        {hasUDP: true, isV2: true},
	profile.V2IPUDPLite:    {hasUDP: true, isV2: true},
}

// ErrUnsupportedProfile is returned by NewCompressor/NewDecompressor for
// any profile.ID this package does not serve.
var ErrUnsupportedProfile = errors.New("simple: unsupported profile id")

// ErrShapeMismatch is returned when a packet's UDP-presence doesn't
// match what the profile ID requires.
var ErrShapeMismatch = errors.New("simple: packet shape does not match profile")

// flowSnapshot is the per-flow identity + last-observed state this
// skeleton needs: the addresses/protocol that never change, and the
// ports when the profile carries UDP.
type flowSnapshot struct {
	srcAddr4, dstAddr4 [4]byte
	srcAddr6, dstAddr6 [16]byte
	isV6               bool
	protocol           uint8
	udpSrcPort         uint16
	udpDstPort         uint16
}

func snapshotFlow(pkt *wire.Packet) (flowSnapshot, bool) {
	inner, ok := pkt.Innermost()
	if !ok {
		return flowSnapshot{}, false
	}
	var fs flowSnapshot
	if inner.Version == 4 {
		fs.srcAddr4, fs.dstAddr4 = inner.V4.SrcAddr, inner.V4.DstAddr
		fs.protocol = inner.V4.Protocol
	} else {
		fs.isV6 = true
		fs.srcAddr6, fs.dstAddr6 = inner.V6.SrcAddr, inner.V6.DstAddr
		fs.protocol = inner.V6.NextHeader
	}
	if pkt.UDP != nil {
		fs.udpSrcPort, fs.udpDstPort = pkt.UDP.SrcPort, pkt.UDP.DstPort
	}
	return fs, true
}

func (fs flowSnapshot) sameFlow(other flowSnapshot) bool {
	if fs.isV6 != other.isV6 || fs.protocol != other.protocol {
		return false
	}
	if fs.isV6 {
		if fs.srcAddr6 != other.srcAddr6 || fs.dstAddr6 != other.dstAddr6 {
			return false
		}
	} else if fs.srcAddr4 != other.srcAddr4 || fs.dstAddr4 != other.dstAddr4 {
		return false
	}
	return fs.udpSrcPort == other.udpSrcPort && fs.udpDstPort == other.udpDstPort
}

// CompContext is the compressor-side per-flow context.
type CompContext struct {
	id      profile.ID
	State   CompState
	irCount int
	flow    flowSnapshot
	have    bool
}

func (c *CompContext) ProfileID() profile.ID { return c.id }

// ForceRefresh implements profile.Refreshable: a clone parked back in IR
// with irCount cleared, so the next Compress call resends the full
// static+dynamic chain.
func (c *CompContext) ForceRefresh() profile.Context {
	cp := c.clone()
	cp.State = StateIR
	cp.irCount = 0
	return cp
}

func (c *CompContext) clone() *CompContext {
	cp := *c
	return &cp
}

// DecompContext is the decompressor-side per-flow context.
type DecompContext struct {
	id      profile.ID
	State   DecompState
	static  *wire.Packet
	fcFails int
}

func (c *DecompContext) ProfileID() profile.ID { return c.id }

func (c *DecompContext) clone() *DecompContext {
	cp := *c
	return &cp
}
