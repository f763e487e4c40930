package rtp

import (
	"errors"

	"github.com/kulaginds/rohc/crc"
	"github.com/kulaginds/rohc/ipid"
	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/tsscale"
	"github.com/kulaginds/rohc/wire"
)

// ErrNotIPUDPRTP is returned when Compress/Match/NewContext are handed a
// packet missing the UDP/RTP layers this profile requires.
var ErrNotIPUDPRTP = errors.New("rtp: packet is not IP/UDP/RTP")

// Compressor implements profile.Compressor for RFC 3095 profile 0x0001.
type Compressor struct {
	windowWidth int
}

// NewCompressor returns a Compressor using the default W-LSB window
// width. Most callers reach this via the top-level compressor package's
// EnableProfiles rather than constructing one directly.
func NewCompressor() *Compressor {
	return NewCompressorWithWidth(DefaultWindowWidth)
}

// NewCompressorWithWidth is like NewCompressor but overrides the W-LSB
// window width every flow's SN/TS/IP-ID windows are constructed with.
// The top-level compressor package's WithWLSBWindowWidth option reaches
// here.
func NewCompressorWithWidth(width int) *Compressor {
	return &Compressor{windowWidth: width}
}

func (c *Compressor) ID() profile.ID { return profile.IPUDPRTP }

// Match reports whether pkt belongs to the flow ctx tracks: same IP
// nest shape/addresses, same UDP ports, same RTP SSRC. Those fields are
// fixed in the static chain and never re-sent once committed, so a
// mismatch here always means "this is a different flow," not "resend
// the static chain."
func (c *Compressor) Match(ctx profile.Context, pkt *wire.Packet) bool {
	cc, ok := ctx.(*CompContext)
	if !ok || !cc.have {
		return false
	}
	if pkt.UDP == nil || pkt.RTP == nil || len(pkt.IPLayers) != len(cc.staticLayout) {
		return false
	}
	for i, layer := range pkt.IPLayers {
		if layer.Version != cc.staticLayout[i] {
			return false
		}
	}
	inner, ok := pkt.Innermost()
	if !ok {
		return false
	}
	return pkt.UDP.SrcPort == cc.lastUDP.SrcPort &&
		pkt.UDP.DstPort == cc.lastUDP.DstPort &&
		pkt.RTP.SSRC == cc.lastRTP.SSRC &&
		innerProtocolMatches(inner)
}

func innerProtocolMatches(inner wire.IPLayer) bool {
	if inner.Version == 4 {
		return inner.V4.Protocol == 17 // UDP
	}
	return inner.V6.NextHeader == 17
}

// NewContext builds the initial context for a brand new flow.
func (c *Compressor) NewContext(pkt *wire.Packet) (profile.Context, error) {
	if pkt.UDP == nil || pkt.RTP == nil || len(pkt.IPLayers) == 0 {
		return nil, ErrNotIPUDPRTP
	}
	layout := make([]int, len(pkt.IPLayers))
	for i, l := range pkt.IPLayers {
		layout[i] = l.Version
	}
	return &CompContext{
		State:        StateIR,
		flow:         newFlowState(c.windowWidth),
		staticLayout: layout,
	}, nil
}

// Compress classifies field changes against ctx, decides the packet type
// for the current compressor state, encodes pkt, and returns the
// (uncommitted) next context reflecting this transmission.
func (c *Compressor) Compress(ctx profile.Context, pkt *wire.Packet) ([]byte, profile.Context, error) {
	cc, ok := ctx.(*CompContext)
	if !ok {
		return nil, nil, errors.New("rtp: wrong context type")
	}
	if pkt.UDP == nil || pkt.RTP == nil || len(pkt.IPLayers) == 0 {
		return nil, nil, ErrNotIPUDPRTP
	}

	next := cc.clone()
	msn := pkt.RTP.SequenceNumber
	tsDec := next.flow.ts.Observe(pkt.RTP.Timestamp)

	inner, _ := pkt.Innermost()
	if inner.Version == 4 {
		// Observe's return value classifies behavior only; this module
		// W-LSB-encodes the raw IP-ID directly rather than RFC 3095's
		// offset-from-SN delta (see DESIGN.md).
		next.flow.id.Observe(inner.V4.Identification, msn)
		next.flow.idWindow.Insert(uint32(inner.V4.Identification))
	}
	next.flow.sn.Insert(uint32(msn))

	rtpChanged := next.have && (next.lastRTP.PayloadType != pkt.RTP.PayloadType || next.lastRTP.CC != pkt.RTP.CC)

	needs := fieldNeeds{
		snBits:           next.flow.sn.MinK(uint32(msn), 0),
		tsBits:           tsBitsNeeded(tsDec, next.flow.ts),
		idBits:           idBitsNeeded(next, inner),
		marker:           pkt.RTP.Marker,
		ipv4Sequential:   innermostIPv4Sequential(pkt, next.flow.id),
		rtpFieldsChanged: rtpChanged,
	}

	var out []byte
	var err error
	staticChanged := !next.have // first packet always gets IR

	switch {
	case next.State == StateIR || staticChanged:
		out, err = c.encodeAsIR(next, pkt)
		next.irCount++
		if next.irCount >= MaxIRCount {
			next.State = StateFO
			next.irCount = 0
		}

	case next.State == StateFO:
		out, err = c.encodeAsFO(next, pkt)
		if needs.snBits <= 4 && !needs.rtpFieldsChanged {
			next.foCount++
		} else {
			next.foCount = 0
		}
		if next.foCount >= FOToSOThreshold {
			next.State = StateSO
			next.foCount = 0
		}

	default: // StateSO
		pt := soPacketType(needs)
		out, err = c.encodeSO(next, pkt, tsDec, needs, pt)
		if needs.rtpFieldsChanged {
			// UOR-2-RTP for an irregular dynamic field change (PT/CC)
			// signals enough drift that FO's tighter confirmation count
			// should run again before SO is trusted a second time. An
			// ordinary UOR-2-ID/TS/RTP chosen only because IP-ID and TS
			// both moved this packet is routine SO traffic, not drift.
			next.State = StateFO
			next.foCount = 0
		}
	}
	if err != nil {
		return nil, nil, err
	}

	next.lastRTP = *pkt.RTP
	next.lastUDP = *pkt.UDP
	next.have = true
	return out, next, nil
}

func tsBitsNeeded(dec tsscale.Decision, m *tsscale.Machine) int {
	if dec.SendAbsolute {
		return 32
	}
	if m.State == tsscale.InitStride {
		return 29 // stride is SDVL-advertised in IR-DYN/FO packets, not W-LSB
	}
	return m.Scaled.MinK(dec.Scaled, 0)
}

func idBitsNeeded(cc *CompContext, inner wire.IPLayer) int {
	if inner.Version != 4 || cc.flow.id.Behavior() == ipid.Random || !cc.flow.id.Confirmed() {
		return 8 // soPacketType already uses the non-IPv4 rows here; 8 only lifts a UOR-2 extension to Ext-2 or above
	}
	return cc.flow.idWindow.MinK(uint32(inner.V4.Identification), 0)
}

func (c *Compressor) encodeAsIR(cc *CompContext, pkt *wire.Packet) ([]byte, error) {
	ids := idsFor(pkt, cc.flow.id)
	return encodeIR(pkt, ids)
}

func (c *Compressor) encodeAsFO(cc *CompContext, pkt *wire.Packet) ([]byte, error) {
	// FO always uses an IR-DYN-class resend of the full dynamic chain,
	// giving the decompressor everything needed to reach SC/FC without
	// relying on a W-LSB interval still being valid.
	ids := idsFor(pkt, cc.flow.id)
	return encodeIRDyn(pkt, ids)
}

func (c *Compressor) encodeSO(cc *CompContext, pkt *wire.Packet, tsDec tsscale.Decision, needs fieldNeeds, pt wire.PacketType) ([]byte, error) {
	crcBytes, err := headerCRCBytes(pkt)
	if err != nil {
		return nil, err
	}
	inner, _ := pkt.Innermost()
	var ipid32 uint32
	if inner.Version == 4 {
		ipid32 = uint32(inner.V4.Identification)
	}

	switch pt {
	case wire.PacketUO0:
		snLSB := uint8(pkt.RTP.SequenceNumber & 0xF)
		c3 := crc.CRC3.Calculate(crcBytes)
		return encodeUO0(snLSB, c3), nil

	case wire.PacketUO1TS:
		c3 := crc.CRC3.Calculate(crcBytes)
		return encodeUO1(uo1KindTS, tsDec.Scaled&0x1F, pkt.RTP.Marker, uint8(pkt.RTP.SequenceNumber&0xF), c3)

	case wire.PacketUO1ID:
		c3 := crc.CRC3.Calculate(crcBytes)
		return encodeUO1(uo1KindID, ipid32&0x1F, pkt.RTP.Marker, uint8(pkt.RTP.SequenceNumber&0xF), c3)

	case wire.PacketUO1RTP:
		c3 := crc.CRC3.Calculate(crcBytes)
		return encodeUO1(uo1KindRTP, tsDec.Scaled&0x3F, pkt.RTP.Marker, uint8(pkt.RTP.SequenceNumber&0xF), c3)

	default:
		return c.encodeUOR2Variant(cc, pkt, ipid32, tsDec, needs, pt)
	}
}

func (c *Compressor) encodeUOR2Variant(cc *CompContext, pkt *wire.Packet, ipid32 uint32, tsDec tsscale.Decision, needs fieldNeeds, pt wire.PacketType) ([]byte, error) {
	kind := uor2KindPlain
	switch pt {
	case wire.PacketUOR2ID:
		kind = uor2KindID
	case wire.PacketUOR2TS:
		kind = uor2KindTS
	case wire.PacketUOR2RTP:
		kind = uor2KindRTP
	}

	ext := decideExtension(needs)
	b := extBudgets[ext]
	extNeeded := ext != Ext0

	fields := uor2Fields{
		sn:     uint32(pkt.RTP.SequenceNumber) & mask(b.sn),
		marker: pkt.RTP.Marker,
	}
	// Field presence follows the chosen extension's budget, not kind: an
	// Ext2/Ext3 packet can carry a TS delta and an IP-ID delta together
	// even when kind (picked for the discriminator subtype) is ID or TS.
	if b.ts > 0 {
		fields.ts = tsDec.Scaled & mask(b.ts)
	}
	if b.id > 0 {
		fields.id = ipid32 & mask(b.id)
	}
	if kind == uor2KindRTP {
		fields.payloadType = pkt.RTP.PayloadType
		fields.cc = pkt.RTP.CC
	}

	crcBytes, err := headerCRCBytes(pkt)
	if err != nil {
		return nil, err
	}
	c7 := crc.CRC7.Calculate(crcBytes)
	return encodeUOR2(kind, ext, extNeeded, fields, c7)
}

func mask(bits int) uint32 {
	if bits <= 0 {
		return 0
	}
	if bits >= 32 {
		return 0xFFFFFFFF
	}
	return 1<<uint(bits) - 1
}

func idsFor(pkt *wire.Packet, tracker *ipid.Tracker) []flowIPID {
	ids := make([]flowIPID, 0, len(pkt.IPLayers))
	inner, _ := pkt.Innermost()
	for _, layer := range pkt.IPLayers {
		if layer.Version != 4 {
			continue
		}
		behavior := ipid.Sequential
		value := layer.V4.Identification
		if layer == inner {
			behavior = tracker.Behavior()
		}
		ids = append(ids, flowIPID{value: value, behavior: behavior})
	}
	return ids
}
