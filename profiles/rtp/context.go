// Package rtp implements the RFC 3095 profile 0x0001 (IP/UDP/RTP): the
// original ROHCv1 profile, compressing a flow of IPv4-or-IPv6/UDP/RTP
// headers (with an optional second IP header for tunneled flows) down to
// as little as one byte per packet once the context has converged.
package rtp

import (
	"github.com/kulaginds/rohc/ipid"
	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/tsscale"
	"github.com/kulaginds/rohc/wire"
	"github.com/kulaginds/rohc/wlsb"
)

// CompState is the compressor-side state (RFC 3095 §5.3.2).
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

// DecompState is the decompressor-side state (RFC 3095 §5.3.2).
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
// before downgrading to FO, once nothing has kept it pinned to IR.
const MaxIRCount = 1

// FOToSOThreshold is how many consecutive packets confirming the current
// field set must pass before FO may promote to SO.
const FOToSOThreshold = 3

// DecompFCFailThreshold is how many consecutive CRC failures in FC
// demote the decompressor back to SC (RFC 3095 §5.3.2.2.2's k-out-of-n).
const DecompFCFailThreshold = 1

// DefaultWindowWidth is the W-LSB window width new contexts use absent an
// explicit override from the owning compressor/decompressor instance.
const DefaultWindowWidth = 4

// flowState holds the mutable tracking machinery every context needs:
// W-LSB windows over SN and the raw IP-ID, the scaled-TS sub-machine,
// and the innermost IPv4 header's IP-ID behavior tracker. Only the
// innermost header's IP-ID ever gets bit-elided (the packet-type table's
// "IPv4-non-rnd" condition); any outer tunnel header rides along in the
// static/dynamic chain unchanged, per DESIGN.md.
type flowState struct {
	sn       *wlsb.Window
	ts       *tsscale.Machine
	id       *ipid.Tracker
	idWindow *wlsb.Window
}

func newFlowState(windowWidth int) *flowState {
	return &flowState{
		sn:       wlsb.NewWindow(windowWidth, 16),
		ts:       tsscale.NewMachine(windowWidth),
		id:       ipid.NewTracker(),
		idWindow: wlsb.NewWindow(windowWidth, 16),
	}
}

// CompContext is the compressor-side per-flow context for this profile.
type CompContext struct {
	State CompState
	flow  *flowState

	irCount int // consecutive IR packets sent so far in this IR dwell
	foCount int // consecutive packets confirming the current field set

	staticLayout []int // IP version per layer, outermost first; fixed at NewContext
	lastRTP      wire.RTPHeader
	lastUDP      wire.UDPHeader
	have         bool // false until the first packet has been observed
}

func (c *CompContext) ProfileID() profile.ID { return profile.IPUDPRTP }

// ForceRefresh implements profile.Refreshable: it returns a clone parked
// back in IR with its dwell counters cleared, so the next Compress call
// resends the full static+dynamic chain regardless of what changed.
func (c *CompContext) ForceRefresh() profile.Context {
	cp := c.clone()
	cp.State = StateIR
	cp.irCount = 0
	cp.foCount = 0
	return cp
}

// clone returns a copy of c safe to mutate while building the next
// commit; profile.Compressor.Compress must not mutate the context it was
// handed until the caller accepts the transmission.
func (c *CompContext) clone() *CompContext {
	cp := *c
	flowCp := *c.flow
	cp.flow = &flowCp
	cp.staticLayout = append([]int(nil), c.staticLayout...)
	return &cp
}

// DecompContext is the decompressor-side per-flow context.
type DecompContext struct {
	State DecompState
	flow  *flowState

	static  *wire.Packet // static chain fixed at IR time
	lastRTP wire.RTPHeader
	lastUDP wire.UDPHeader
	have    bool

	fcFails int // consecutive FC-state CRC failures

	// Clock-based repair (RFC 3095 §4.5.3) bookkeeping: the arrival time
	// of the last committed packet and a running average of the gap
	// between consecutive arrivals, both in the caller's arrivalTS units.
	// This module has no configured RTP clock rate to convert a wall-
	// clock gap into an expected tick count, so the average gap is
	// tracked directly in arrival-time units instead.
	lastArrivalTS  int64
	avgArrivalGap  float64
	haveArrival    bool
}

func (c *DecompContext) ProfileID() profile.ID { return profile.IPUDPRTP }

func (c *DecompContext) clone() *DecompContext {
	cp := *c
	flowCp := *c.flow
	cp.flow = &flowCp
	return &cp
}
