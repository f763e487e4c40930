package v2iponly

import (
	"errors"

	"github.com/kulaginds/rohc/crc"
	"github.com/kulaginds/rohc/ipid"
	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/wire"
)

// ErrCRCFailed is returned when a packet's trailing CRC disagrees with
// every candidate reconstruction the decompressor tried, including
// repair.
var ErrCRCFailed = errors.New("v2iponly: crc validation failed")

// Decompressor implements profile.Decompressor for RFC 5225 profile
// 0x0104.
type Decompressor struct {
	windowWidth int
}

// NewDecompressor returns a Decompressor using the default W-LSB window
// width.
func NewDecompressor() *Decompressor {
	return &Decompressor{windowWidth: DefaultWindowWidth}
}

func (d *Decompressor) ID() profile.ID { return profile.V2IPOnly }

// NewContext parses the static chain a brand-new CID commits to and
// returns a DecompContext parked in NC: the decompressor cannot
// reconstruct anything until the first full packet (IR) arrives and
// fills in the dynamic chain too.
func (d *Decompressor) NewContext(staticChain []byte) (profile.Context, error) {
	h, err := decodeStaticOnly(staticChain)
	if err != nil {
		return nil, err
	}
	return &DecompContext{
		State:  StateNC,
		flow:   newFlowState(d.windowWidth),
		static: &wire.Packet{IPLayers: []wire.IPLayer{{Version: 4, V4: h}}},
	}, nil
}

// Decompress dispatches on the packet's discriminator byte and
// reconstructs the IPv4 header, advancing ctx's NC/SC/FC state.
func (d *Decompressor) Decompress(ctx profile.Context, packet []byte) (*wire.Packet, profile.Context, error) {
	dc, ok := ctx.(*DecompContext)
	if !ok {
		return nil, nil, errors.New("v2iponly: wrong context type")
	}
	if len(packet) == 0 {
		return nil, nil, ErrMalformed
	}

	pt, forbidden, err := wire.DetectRFC5225IPOnly(packet[0])
	if err != nil {
		return nil, nil, err
	}
	if forbidden {
		return nil, nil, ErrMalformed
	}

	switch pt {
	case wire.PacketIR:
		return d.decompressIR(dc, packet)
	case wire.PacketCoRepair:
		return d.decompressCoRepair(dc, packet)
	default:
		if dc.State == StateNC {
			return nil, nil, ErrMalformed
		}
		if pt == wire.PacketCoCommon {
			return d.decompressCoCommon(dc, packet)
		}
		return d.decompressNormal(dc, packet)
	}
}

func (d *Decompressor) decompressIR(dc *DecompContext, packet []byte) (*wire.Packet, profile.Context, error) {
	h, reorderRatio, msn, fid, err := decodeIR(packet)
	if err != nil {
		return nil, nil, err
	}

	next := dc.clone()
	next.static = &wire.Packet{IPLayers: []wire.IPLayer{{Version: 4, V4: h}}}
	next.reorderRatio = ReorderRatio(reorderRatio)
	next.commit(h, msn, fid)
	next.State = StateFC
	next.fcFails = 0
	return packetFor(h), next, nil
}

func (d *Decompressor) decompressCoRepair(dc *DecompContext, packet []byte) (*wire.Packet, profile.Context, error) {
	reorderRatio, msn, d2, headerCRC, controlCRC, err := decodeCoRepair(packet)
	if err != nil {
		return nil, nil, err
	}

	h := dc.lastIP
	h.DF = d2.DF
	h.ToS = d2.ToS
	h.TTL = d2.TTL
	fid := flowIPID{value: d2.IPID, behavior: d2.Behavior}
	if d2.Behavior != ipid.Zero {
		// DecodeDynamicIPv4 only populates IPID when Behavior != Zero;
		// under Zero it stays at its zero value and the real IP-ID (always
		// zero too under that behavior) is left as dc.lastIP already has it.
		h.Identification = d2.IPID
	}

	if !verifyCRC7(h, msn, headerCRC) {
		return d.fail(dc)
	}
	cb, err := controlCRCBytes(reorderRatio, msn, fid.behavior)
	if err != nil {
		return nil, nil, err
	}
	if crc.CRC3.Calculate(cb) != controlCRC {
		return d.fail(dc)
	}

	next := dc.clone()
	next.reorderRatio = ReorderRatio(reorderRatio)
	next.commit(h, msn, fid)
	if next.State == StateNC {
		next.State = StateSC
	}
	next.fcFails = 0
	return packetFor(h), next, nil
}

// commit folds a fully reconstructed header into next's flow trackers,
// mirroring exactly what the compressor observed when it built the
// packet.
func (dc *DecompContext) commit(h wire.IPv4Header, msn uint16, fid flowIPID) {
	offset := dc.flow.id.Observe(h.Identification, msn)
	dc.flow.idOffset.Insert(uint32(uint16(offset)))
	dc.flow.msn.Insert(uint32(msn))

	dc.lastIP = h
	dc.lastMSN = msn
	dc.have = true
}

func packetFor(h wire.IPv4Header) *wire.Packet {
	return &wire.Packet{IPLayers: []wire.IPLayer{{Version: 4, V4: h}}}
}

// reconstructIPID inverts ipid.Tracker.Observe's Sequential-case offset
// formula (offsetFromMSN = ipidDelta - msnDelta): given the last
// committed IP-ID/MSN pair, the new MSN, and the offset this packet
// carried, it recovers the IP-ID. Plain uint16 arithmetic wraps exactly
// the way the 16-bit field does, so no sign-extension is needed even
// though offset represents what Observe computed as a signed delta.
func reconstructIPID(lastIPID, lastMSN, msn, offset uint16) uint16 {
	return lastIPID + offset + (msn - lastMSN)
}

func (d *Decompressor) decompressNormal(dc *DecompContext, packet []byte) (*wire.Packet, profile.Context, error) {
	if !dc.have {
		return nil, nil, ErrMalformed
	}
	if len(packet) == 1 {
		return d.decompressNormal1(dc, packet)
	}
	return d.decompressNormal2(dc, packet)
}

func (d *Decompressor) decompressNormal1(dc *DecompContext, packet []byte) (*wire.Packet, profile.Context, error) {
	msnLSB, crc3 := decodeNormal1(packet[0])
	for _, msn := range repairMSNCandidates(uint32(dc.lastMSN), 4, uint32(msnLSB), dc.reorderRatio.msnShift()) {
		h := dc.lastIP // IP-ID rides forward unchanged: Normal-1 carries no IP-ID delta
		if verifyCRC3(h, uint16(msn), crc3) {
			return d.finishSO(dc, h, uint16(msn))
		}
	}
	return d.fail(dc)
}

func (d *Decompressor) decompressNormal2(dc *DecompContext, packet []byte) (*wire.Packet, profile.Context, error) {
	msnLSB, idLSB, crc3, err := decodeNormal2(packet)
	if err != nil {
		return nil, nil, err
	}
	for _, msn := range repairMSNCandidates(uint32(dc.lastMSN), 6, uint32(msnLSB), dc.reorderRatio.msnShift()) {
		offset, err := dc.flow.idOffset.DecodeMulti(5, uint32(idLSB), 0)
		if err != nil {
			continue
		}
		h := dc.lastIP
		h.Identification = reconstructIPID(dc.lastIP.Identification, dc.lastMSN, uint16(msn), uint16(offset))
		if verifyCRC3(h, uint16(msn), crc3) {
			return d.finishSO(dc, h, uint16(msn))
		}
	}
	return d.fail(dc)
}

func (d *Decompressor) decompressCoCommon(dc *DecompContext, packet []byte) (*wire.Packet, profile.Context, error) {
	f, ext, crc7, err := decodeCoCommon(packet)
	if err != nil {
		return nil, nil, err
	}
	b := ccBudgets[ext]

	for _, msn := range repairMSNCandidates(uint32(dc.lastMSN), b.msn, f.msn, dc.reorderRatio.msnShift()) {
		h := dc.lastIP
		h.DF = f.h.DF
		h.ToS = f.h.ToS
		h.TTL = f.h.TTL

		if f.idPresent {
			offset, err := dc.flow.idOffset.DecodeMulti(b.id, f.idOffset, 0)
			if err != nil {
				continue
			}
			h.Identification = reconstructIPID(dc.lastIP.Identification, dc.lastMSN, uint16(msn), uint16(offset))
		}
		if verifyCRC7(h, uint16(msn), crc7) {
			return d.finishSO(dc, h, uint16(msn))
		}
	}
	return d.fail(dc)
}

func (d *Decompressor) finishSO(dc *DecompContext, h wire.IPv4Header, msn uint16) (*wire.Packet, profile.Context, error) {
	next := dc.clone()
	fid := flowIPID{value: h.Identification, behavior: next.flow.id.Behavior()}
	next.commit(h, msn, fid)
	next.State = StateFC
	next.fcFails = 0
	return packetFor(h), next, nil
}

func (d *Decompressor) fail(dc *DecompContext) (*wire.Packet, profile.Context, error) {
	next := dc.clone()
	next.fcFails++
	if next.State == StateFC && next.fcFails >= DecompFCFailThreshold {
		next.State = StateSC
	}
	return nil, next, ErrCRCFailed
}
