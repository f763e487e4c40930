package rtp

import (
	"errors"

	"github.com/kulaginds/rohc/crc"
	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/tsscale"
	"github.com/kulaginds/rohc/wire"
)

// ErrCRCFailed is returned when a packet's trailing CRC disagrees with
// every candidate reconstruction the decompressor tried, including
// repair.
var ErrCRCFailed = errors.New("rtp: crc validation failed")

// Decompressor implements profile.Decompressor for RFC 3095 profile
// 0x0001.
type Decompressor struct {
	windowWidth int
}

// NewDecompressor returns a Decompressor using the default W-LSB window
// width.
func NewDecompressor() *Decompressor {
	return NewDecompressorWithWidth(DefaultWindowWidth)
}

// NewDecompressorWithWidth is like NewDecompressor but overrides the
// W-LSB window width every flow's SN/TS/IP-ID windows are constructed
// with. The top-level decompressor package's WithWLSBWindowWidth option
// reaches here.
func NewDecompressorWithWidth(width int) *Decompressor {
	return &Decompressor{windowWidth: width}
}

func (d *Decompressor) ID() profile.ID { return profile.IPUDPRTP }

// NewContext parses the static chain a brand-new CID commits to and
// returns a DecompContext parked in NC: the decompressor cannot
// reconstruct anything until the first full packet (IR) arrives and
// fills in the dynamic chain too.
func (d *Decompressor) NewContext(staticChain []byte) (profile.Context, error) {
	pkt, err := decodeStaticOnly(staticChain)
	if err != nil {
		return nil, err
	}
	return &DecompContext{
		State:  StateNC,
		flow:   newFlowState(d.windowWidth),
		static: pkt,
	}, nil
}

// Decompress dispatches on the packet's discriminator byte and
// reconstructs the full header set, advancing ctx's NC/SC/FC state per
// RFC 3095 §5.3.2.2. It carries no arrival-time information; clock-based
// repair is skipped. Callers that have a wall-clock arrival timestamp to
// offer should go through DecompressWithClock instead (the top-level
// decompressor facade does this automatically via profile.ClockAware).
func (d *Decompressor) Decompress(ctx profile.Context, packet []byte) (*wire.Packet, profile.Context, error) {
	return d.DecompressWithClock(ctx, packet, 0)
}

// DecompressWithClock is Decompress plus arrivalTS, the wall-clock time
// this packet was received: when the ordinary W-LSB repair search in the
// UO-1/UOR-2 CRC-failure path comes up empty, it is used to estimate how
// many packets were lost and retry against the SN/TS that loss run would
// imply (RFC 3095 §4.5.3's clock-based repair). arrivalTS<=0 means "no
// clock available" and disables that fallback, same as plain Decompress.
func (d *Decompressor) DecompressWithClock(ctx profile.Context, packet []byte, arrivalTS int64) (*wire.Packet, profile.Context, error) {
	dc, ok := ctx.(*DecompContext)
	if !ok {
		return nil, nil, errors.New("rtp: wrong context type")
	}
	if len(packet) == 0 {
		return nil, nil, ErrMalformed
	}

	pt, err := wire.DetectRFC3095(packet[0])
	if err != nil {
		return nil, nil, err
	}

	switch pt {
	case wire.PacketIR:
		return d.decompressIR(dc, packet, arrivalTS)
	case wire.PacketIRDyn:
		return d.decompressIRDyn(dc, packet, arrivalTS)
	default:
		if dc.State == StateNC {
			// Nothing to reconstruct against yet; only IR/IR-DYN can
			// establish or refresh the dynamic chain from NC.
			return nil, nil, ErrMalformed
		}
		return d.decompressCompressed(dc, packet, pt, arrivalTS)
	}
}

func (d *Decompressor) decompressIR(dc *DecompContext, packet []byte, arrivalTS int64) (*wire.Packet, profile.Context, error) {
	pkt, _, err := decodeIR(packet)
	if err != nil {
		return nil, nil, err
	}

	next := dc.clone()
	next.static = staticSnapshot(pkt)
	next.commit(pkt, arrivalTS)
	next.State = StateFC
	next.fcFails = 0
	return pkt, next, nil
}

func (d *Decompressor) decompressIRDyn(dc *DecompContext, packet []byte, arrivalTS int64) (*wire.Packet, profile.Context, error) {
	pkt, _, err := decodeIRDyn(packet, dc.static)
	if err != nil {
		return nil, nil, err
	}

	next := dc.clone()
	// ToS/TTL/DF live in the dynamic chain, not the static one, so a
	// fresh IR-DYN can change them; fold the refreshed values into the
	// baseline baseSnapshot builds future UO-x candidates from.
	next.static = &wire.Packet{
		IPLayers: cloneIPLayers(pkt.IPLayers),
		UDP:      dc.static.UDP,
		RTP:      dc.static.RTP,
	}
	next.commit(pkt, arrivalTS)
	if next.State == StateNC {
		next.State = StateSC
	}
	next.fcFails = 0
	return pkt, next, nil
}

// commit folds a fully reconstructed packet into next's flow trackers,
// mirroring exactly what the compressor observed when it built the
// packet (the behavior classification is deterministic given the same
// ipid/msn sequence, so re-deriving it here keeps both sides' W-LSB
// windows and scaled-TS machines in lockstep without needing to trust
// the wire-carried behavior code).
func (dc *DecompContext) commit(pkt *wire.Packet, arrivalTS int64) {
	msn := pkt.RTP.SequenceNumber
	dc.flow.sn.Insert(uint32(msn))
	dc.flow.ts.Observe(pkt.RTP.Timestamp)

	inner, ok := pkt.Innermost()
	if ok && inner.Version == 4 {
		dc.flow.id.Observe(inner.V4.Identification, msn)
		dc.flow.idWindow.Insert(uint32(inner.V4.Identification))
	}

	dc.lastRTP = *pkt.RTP
	dc.lastUDP = *pkt.UDP
	dc.have = true
	dc.observeArrival(arrivalTS)
}

func staticSnapshot(pkt *wire.Packet) *wire.Packet {
	return &wire.Packet{
		IPLayers: cloneIPLayers(pkt.IPLayers),
		UDP:      &wire.UDPHeader{SrcPort: pkt.UDP.SrcPort, DstPort: pkt.UDP.DstPort},
		RTP:      &wire.RTPHeader{SSRC: pkt.RTP.SSRC},
	}
}

// decompressCompressed handles UO-0/UO-1/UOR-2: reconstructs the
// candidate packet from the last committed context plus the bits
// carried on the wire, validates its CRC, and on failure walks the
// repair candidates in repair.go before giving up.
func (d *Decompressor) decompressCompressed(dc *DecompContext, packet []byte, pt wire.PacketType, arrivalTS int64) (*wire.Packet, profile.Context, error) {
	if !dc.have {
		return nil, nil, ErrMalformed
	}

	switch pt {
	case wire.PacketUO0:
		return d.decompressUO0(dc, packet, arrivalTS)
	case wire.PacketUO1ID, wire.PacketUO1TS, wire.PacketUO1RTP:
		return d.decompressUO1(dc, packet, pt, arrivalTS)
	default:
		return d.decompressUOR2(dc, packet, pt, arrivalTS)
	}
}

func (d *Decompressor) decompressUO0(dc *DecompContext, packet []byte, arrivalTS int64) (*wire.Packet, profile.Context, error) {
	if len(packet) < 1 {
		return nil, nil, ErrMalformed
	}
	snLSB, crc3 := decodeUO0(packet[0])

	for _, msn := range repairSNCandidates(uint32(lastSN(dc)), 4, uint32(snLSB)) {
		cand := baseSnapshot(dc)
		cand.RTP.SequenceNumber = uint16(msn)
		cand.RTP.Timestamp = dc.lastRTP.Timestamp
		// UO-0 carries neither TS nor IP-ID bits: both ride forward
		// unchanged from the last committed packet.
		setInnermostIPID(cand, uint32(currentIPID(dc)))
		if verifyCRC3(cand, crc3) {
			return d.finishSO(dc, cand, arrivalTS)
		}
	}
	return d.fail(dc)
}

func (d *Decompressor) decompressUO1(dc *DecompContext, packet []byte, pt wire.PacketType, arrivalTS int64) (*wire.Packet, profile.Context, error) {
	var kind uo1Kind
	switch pt {
	case wire.PacketUO1ID:
		kind = uo1KindID
	case wire.PacketUO1TS:
		kind = uo1KindTS
	default:
		kind = uo1KindRTP
	}

	fieldVal, marker, snLSB, crc3, err := decodeUO1(packet, kind)
	if err != nil {
		return nil, nil, err
	}

	k := 4
	for _, msn := range repairSNCandidates(uint32(lastSN(dc)), k, uint32(snLSB)) {
		cand := baseSnapshot(dc)
		cand.RTP.SequenceNumber = uint16(msn)
		cand.RTP.Marker = marker

		switch kind {
		case uo1KindTS:
			ts, ok := decodeScaledTS(dc, fieldVal, 5)
			if !ok {
				continue
			}
			cand.RTP.Timestamp = ts
			setInnermostIPID(cand, uint32(currentIPID(dc)))
		case uo1KindID:
			id, err := dc.flow.idWindow.DecodeMulti(5, fieldVal, 0)
			if err != nil {
				continue
			}
			setInnermostIPID(cand, id)
			cand.RTP.Timestamp = dc.lastRTP.Timestamp
		default: // uo1KindRTP
			ts, ok := decodeScaledTS(dc, fieldVal, 6)
			if !ok {
				continue
			}
			cand.RTP.Timestamp = ts
			setInnermostIPID(cand, uint32(currentIPID(dc)))
		}

		if verifyCRC3(cand, crc3) {
			return d.finishSO(dc, cand, arrivalTS)
		}
	}
	for _, cc := range clockRepairCandidates(dc, arrivalTS) {
		cand := baseSnapshot(dc)
		cand.RTP.SequenceNumber = cc.sn
		cand.RTP.Timestamp = cc.ts
		setInnermostIPID(cand, uint32(currentIPID(dc)))
		if verifyCRC3(cand, crc3) {
			return d.finishSO(dc, cand, arrivalTS)
		}
	}
	return d.fail(dc)
}

func (d *Decompressor) decompressUOR2(dc *DecompContext, packet []byte, pt wire.PacketType, arrivalTS int64) (*wire.Packet, profile.Context, error) {
	var kind uor2Kind
	switch pt {
	case wire.PacketUOR2ID:
		kind = uor2KindID
	case wire.PacketUOR2TS:
		kind = uor2KindTS
	case wire.PacketUOR2RTP:
		kind = uor2KindRTP
	default:
		kind = uor2KindPlain
	}

	f, ext, crc7, err := decodeUOR2(packet, kind)
	if err != nil {
		return nil, nil, err
	}
	b := extBudgets[ext]

	for _, msn := range repairSNCandidates(uint32(lastSN(dc)), b.sn, f.sn) {
		cand := baseSnapshot(dc)
		cand.RTP.SequenceNumber = uint16(msn)
		cand.RTP.Marker = f.marker
		cand.RTP.Timestamp = dc.lastRTP.Timestamp

		// Field presence follows the extension's budget, not kind: Ext2/
		// Ext3 can carry a TS delta and an IP-ID delta in the same packet.
		if b.ts > 0 {
			ts, good := decodeScaledTS(dc, f.ts, b.ts)
			if !good {
				continue
			}
			cand.RTP.Timestamp = ts
		}
		if b.id > 0 {
			id, err := dc.flow.idWindow.DecodeMulti(b.id, f.id, 0)
			if err != nil {
				continue
			}
			setInnermostIPID(cand, id)
		} else {
			setInnermostIPID(cand, uint32(currentIPID(dc)))
		}
		if kind == uor2KindRTP {
			cand.RTP.PayloadType = f.payloadType
			cand.RTP.CC = f.cc
		}
		if verifyCRC7(cand, crc7) {
			return d.finishSO(dc, cand, arrivalTS)
		}
	}
	for _, cc := range clockRepairCandidates(dc, arrivalTS) {
		cand := baseSnapshot(dc)
		cand.RTP.SequenceNumber = cc.sn
		cand.RTP.Timestamp = cc.ts
		cand.RTP.Marker = f.marker
		setInnermostIPID(cand, uint32(currentIPID(dc)))
		if kind == uor2KindRTP {
			cand.RTP.PayloadType = f.payloadType
			cand.RTP.CC = f.cc
		}
		if verifyCRC7(cand, crc7) {
			return d.finishSO(dc, cand, arrivalTS)
		}
	}
	return d.fail(dc)
}

// finishSO commits a successfully CRC-validated candidate and promotes
// NC/SC toward FC, or resets the FC failure counter.
func (d *Decompressor) finishSO(dc *DecompContext, cand *wire.Packet, arrivalTS int64) (*wire.Packet, profile.Context, error) {
	next := dc.clone()
	next.commit(cand, arrivalTS)
	next.State = StateFC
	next.fcFails = 0
	return cand, next, nil
}

// fail records a CRC failure against dc's context and demotes FC back
// to SC once DecompFCFailThreshold consecutive failures accumulate
// (RFC 3095 §5.3.2.2.2), still returning the (updated) context so the
// caller keeps tracking the failure run across calls.
func (d *Decompressor) fail(dc *DecompContext) (*wire.Packet, profile.Context, error) {
	next := dc.clone()
	next.fcFails++
	if next.State == StateFC && next.fcFails >= DecompFCFailThreshold {
		next.State = StateSC
	}
	return nil, next, ErrCRCFailed
}

// baseSnapshot builds a candidate packet seeded from the static chain
// and the last committed dynamic fields, ready for the caller to
// overwrite whichever fields this packet type carries.
func baseSnapshot(dc *DecompContext) *wire.Packet {
	udp := dc.lastUDP
	rtp := dc.lastRTP
	return &wire.Packet{
		IPLayers: cloneIPLayers(dc.static.IPLayers),
		UDP:      &udp,
		RTP:      &rtp,
	}
}

func lastSN(dc *DecompContext) uint16 {
	return dc.lastRTP.SequenceNumber
}

func currentIPID(dc *DecompContext) uint16 {
	if v, ok := dc.flow.idWindow.Newest(); ok {
		return uint16(v)
	}
	return 0
}

func setInnermostIPID(pkt *wire.Packet, id uint32) bool {
	for i := range pkt.IPLayers {
		if pkt.IPLayers[i].V4.Innermost && pkt.IPLayers[i].Version == 4 {
			pkt.IPLayers[i].V4.Identification = uint16(id)
			return true
		}
	}
	return false
}

// decodeScaledTS reconstructs an absolute timestamp from k bits of
// TS_SCALED, W-LSB-decoded against the flow's scaled-TS window and
// expanded via the machine's currently believed stride/offset. Returns
// false if the machine has no stride yet (InitTS) or decoding fails.
func decodeScaledTS(dc *DecompContext, bits uint32, k int) (uint32, bool) {
	m := dc.flow.ts
	if m.State == tsscale.InitTS {
		return 0, false
	}
	if m.TSStride == 0 {
		return 0, false
	}
	scaled, err := m.Scaled.DecodeMulti(k, bits, 0)
	if err != nil {
		return 0, false
	}
	return scaled*m.TSStride + m.TSOffset, true
}

func verifyCRC3(pkt *wire.Packet, want uint8) bool {
	b, err := headerCRCBytes(pkt)
	if err != nil {
		return false
	}
	return crc.CRC3.Calculate(b) == want
}

func verifyCRC7(pkt *wire.Packet, want uint8) bool {
	b, err := headerCRCBytes(pkt)
	if err != nil {
		return false
	}
	return crc.CRC7.Calculate(b) == want
}
