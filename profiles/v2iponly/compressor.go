package v2iponly

import (
	"errors"

	"github.com/kulaginds/rohc/crc"
	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/wire"
)

// Compressor implements profile.Compressor for RFC 5225 profile 0x0104.
type Compressor struct {
	windowWidth  int
	reorderRatio ReorderRatio
}

// NewCompressor returns a Compressor using the default W-LSB window
// width and no reordering tolerance (ReorderNone), since none of the
// profiles this repository builds negotiate a reordering-tolerant link
// by default.
func NewCompressor() *Compressor {
	return &Compressor{windowWidth: DefaultWindowWidth}
}

// NewCompressorWithReorderRatio is like NewCompressor but advertises
// ratio in every IR/co_repair dynamic chain and widens the MSN
// interpretation interval's shift accordingly, for flows where the
// channel is known to reorder packets.
func NewCompressorWithReorderRatio(ratio ReorderRatio) *Compressor {
	return &Compressor{windowWidth: DefaultWindowWidth, reorderRatio: ratio}
}

func (c *Compressor) ID() profile.ID { return profile.V2IPOnly }

// Match reports whether pkt belongs to the flow ctx tracks: a single
// IPv4 header with the same source/destination addresses and protocol.
// Those fields are fixed in the static chain and never re-sent once
// committed, so a mismatch here always means "this is a different
// flow."
func (c *Compressor) Match(ctx profile.Context, pkt *wire.Packet) bool {
	cc, ok := ctx.(*CompContext)
	if !ok || !cc.have {
		return false
	}
	inner, ok := singleIPv4(pkt)
	if !ok {
		return false
	}
	return inner.SrcAddr == cc.lastIP.SrcAddr &&
		inner.DstAddr == cc.lastIP.DstAddr &&
		inner.Protocol == cc.lastIP.Protocol
}

// singleIPv4 reports the packet's lone IPv4 header, if pkt is shaped the
// way this profile requires: exactly one IP layer, IPv4, no UDP/RTP
// riding underneath.
func singleIPv4(pkt *wire.Packet) (wire.IPv4Header, bool) {
	if pkt.UDP != nil || pkt.RTP != nil || len(pkt.IPLayers) != 1 {
		return wire.IPv4Header{}, false
	}
	layer := pkt.IPLayers[0]
	if layer.Version != 4 {
		return wire.IPv4Header{}, false
	}
	return layer.V4, true
}

// NewContext builds the initial context for a brand new flow.
func (c *Compressor) NewContext(pkt *wire.Packet) (profile.Context, error) {
	if _, ok := singleIPv4(pkt); !ok {
		return nil, ErrNotIPv4Only
	}
	return &CompContext{
		State:        StateIR,
		flow:         newFlowState(c.windowWidth),
		reorderRatio: c.reorderRatio,
	}, nil
}

// Compress classifies field changes against ctx, decides the packet
// type for the current compressor state, encodes pkt, and returns the
// (uncommitted) next context reflecting this transmission.
func (c *Compressor) Compress(ctx profile.Context, pkt *wire.Packet) ([]byte, profile.Context, error) {
	cc, ok := ctx.(*CompContext)
	if !ok {
		return nil, nil, errors.New("v2iponly: wrong context type")
	}
	h, ok := singleIPv4(pkt)
	if !ok {
		return nil, nil, ErrNotIPv4Only
	}

	next := cc.clone()
	msn := next.nextMSN
	next.nextMSN++

	offset := next.flow.id.Observe(h.Identification, msn)
	offsetU16 := uint16(offset)
	next.flow.idOffset.Insert(uint32(offsetU16))
	next.flow.msn.Insert(uint32(msn))

	dynamicChanged := next.have && (next.lastIP.ToS != h.ToS || next.lastIP.TTL != h.TTL || next.lastIP.DF != h.DF)

	needs := fieldNeeds{
		msnBits:              next.flow.msn.MinK(uint32(msn), next.reorderRatio.msnShift()),
		idBits:               idBitsNeeded(next, offsetU16),
		zeroBehavior:         zeroBehavior(next.flow.id),
		ipv4Sequential:       ipv4Sequential(next.flow.id),
		dynamicFieldsChanged: dynamicChanged,
	}

	var out []byte
	var err error
	staticChanged := !next.have

	switch {
	case next.State == StateIR || staticChanged:
		fid := flowIPID{value: h.Identification, behavior: next.flow.id.Behavior()}
		out, err = encodeIR(h, uint8(next.reorderRatio), msn, fid)
		next.irCount++
		if next.irCount >= MaxIRCount {
			next.State = StateFO
			next.irCount = 0
		}

	case next.State == StateFO:
		fid := flowIPID{value: h.Identification, behavior: next.flow.id.Behavior()}
		out, err = encodeCoRepair(h, uint8(next.reorderRatio), msn, fid)
		if needs.msnBits <= 6 && !needs.dynamicFieldsChanged && confirmedPredictable(needs) {
			next.foCount++
		} else {
			next.foCount = 0
		}
		if next.foCount >= FOToSOThreshold {
			next.State = StateSO
			next.foCount = 0
		}

	default: // StateSO
		form := soPacketType(needs)
		out, err = c.encodeSO(next, h, msn, offsetU16, needs, form)
		if needs.dynamicFieldsChanged || !confirmedPredictable(needs) {
			// A ToS/TTL/DF change can't be carried by a Normal packet, and
			// an IP-ID behavior that stopped being Sequential/Zero can't be
			// delta-encoded either; both force co_repair's full raw resend
			// and the same FO-confirmation discipline profiles/rtp applies
			// to an irregular RTP dynamic change.
			next.State = StateFO
			next.foCount = 0
		}
	}
	if err != nil {
		return nil, nil, err
	}

	next.lastIP = h
	next.have = true
	return out, next, nil
}

func idBitsNeeded(cc *CompContext, offset uint16) int {
	if !ipv4Sequential(cc.flow.id) {
		return 16 // forces the co_common branch rather than Normal-2
	}
	return cc.flow.idOffset.MinK(uint32(offset), 0)
}

func (c *Compressor) encodeSO(cc *CompContext, h wire.IPv4Header, msn uint16, idOffset uint16, needs fieldNeeds, form packetForm) ([]byte, error) {
	switch form {
	case formNormal1:
		c3 := crc3For(h, msn)
		return encodeNormal1(uint8(msn&0xF), c3), nil

	case formNormal2:
		c3 := crc3For(h, msn)
		return encodeNormal2(uint8(msn&0x3F), uint8(idOffset&0x1F), c3)

	default:
		return c.encodeCoCommonVariant(h, msn, idOffset, needs)
	}
}

func crc3For(h wire.IPv4Header, msn uint16) uint8 {
	b, err := msnCRCBytes(h, msn)
	if err != nil {
		return 0
	}
	return crc.CRC3.Calculate(b)
}

func (c *Compressor) encodeCoCommonVariant(h wire.IPv4Header, msn uint16, idOffset uint16, needs fieldNeeds) ([]byte, error) {
	ext := decideCCExt(needs)
	b := ccBudgets[ext]

	f := coCommonFields{
		msn:       uint32(msn) & mask(b.msn),
		idPresent: idNeeded(needs),
		h:         h,
	}
	if f.idPresent {
		f.idOffset = uint32(idOffset) & mask(b.id)
	}

	crcBytes, err := msnCRCBytes(h, msn)
	if err != nil {
		return nil, err
	}
	c7 := crc.CRC7.Calculate(crcBytes)
	return encodeCoCommon(ext, f, c7)
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
