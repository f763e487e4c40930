// Package v2iponly implements the RFC 5225 profile 0x0104 (ROHCv2
// IP-only): compressing a single, non-tunneled IPv4 header flow with no
// UDP/RTP layer underneath it. ROHCv2 replaces RFC 3095's IR/IR-DYN/UO-0/
// UO-1/UOR-2 packet family with IR, co_repair (full dynamic resend),
// co_common (explicit field-presence selection), and Normal (the steady-
// state packet, identified by the *absence* of a reserved discriminator
// prefix rather than by one).
//
// This module scopes the profile to IPv4: wire has no DynamicIPv6 codec
// and IPv6Header carries no TTL-equivalent field to track in the dynamic
// chain, so IPv6 flows fall through to profile negotiation failure
// rather than a half-built compression path.
package v2iponly

import (
	"github.com/kulaginds/rohc/ipid"
	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/wire"
	"github.com/kulaginds/rohc/wlsb"
)

// CompState is the compressor-side state. ROHCv2 keeps the same
// three-state shape RFC 3095 uses, just with its own packet formats per
// state.
type CompState int

const (
	StateIR CompState = iota
	StateFO
	StateSO
)

func (s CompState) String() string {
	switch s {
	case StateIR:
		return "IR"
	case StateFO:
		return "FO"
	default:
		return "SO"
	}
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

// FOToSOThreshold is how many consecutive packets confirming the current
// field set must pass before FO may promote to SO.
const FOToSOThreshold = 3

// DecompFCFailThreshold is how many consecutive CRC failures in FC
// demote the decompressor back to SC.
const DecompFCFailThreshold = 1

// DefaultWindowWidth is the W-LSB window width new contexts use absent
// an explicit override.
const DefaultWindowWidth = 4

// flowState holds the mutable tracking machinery: a W-LSB window over
// the synthetic Master Sequence Number this profile assigns each packet
// (there is no RTP SN to reuse, so the profile mints its own), the
// innermost IPv4 header's IP-ID behavior tracker, and a W-LSB window
// over the IP-ID-offset-from-MSN delta Tracker.Observe returns. Unlike
// profiles/rtp (which W-LSB-encodes the raw IP-ID directly), this
// profile follows the classical offset-from-MSN delta encoding.
type flowState struct {
	msn      *wlsb.Window
	id       *ipid.Tracker
	idOffset *wlsb.Window
}

func newFlowState(windowWidth int) *flowState {
	return &flowState{
		msn:      wlsb.NewWindow(windowWidth, 16),
		id:       ipid.NewTracker(),
		idOffset: wlsb.NewWindow(windowWidth, 16),
	}
}

// CompContext is the compressor-side per-flow context for this profile.
type CompContext struct {
	State CompState
	flow  *flowState

	irCount int
	foCount int

	reorderRatio ReorderRatio // advertised in every dynamic chain and applied to MinK's interval shift

	nextMSN uint16 // MSN to assign to the packet currently being compressed
	lastIP  wire.IPv4Header
	have    bool
}

func (c *CompContext) ProfileID() profile.ID { return profile.V2IPOnly }

// ForceRefresh implements profile.Refreshable: a clone parked back in IR
// with its dwell counters cleared, so the next Compress call resends the
// full static+dynamic chain.
func (c *CompContext) ForceRefresh() profile.Context {
	cp := c.clone()
	cp.State = StateIR
	cp.irCount = 0
	cp.foCount = 0
	return cp
}

func (c *CompContext) clone() *CompContext {
	cp := *c
	flowCp := *c.flow
	cp.flow = &flowCp
	return &cp
}

// DecompContext is the decompressor-side per-flow context.
type DecompContext struct {
	State DecompState
	flow  *flowState

	static  *wire.Packet
	lastIP  wire.IPv4Header
	lastMSN uint16
	have    bool

	reorderRatio ReorderRatio // learned from the last IR/co_repair dynamic chain

	fcFails int
}

func (c *DecompContext) ProfileID() profile.ID { return profile.V2IPOnly }

func (c *DecompContext) clone() *DecompContext {
	cp := *c
	flowCp := *c.flow
	cp.flow = &flowCp
	return &cp
}
