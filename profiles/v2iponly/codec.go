package v2iponly

import (
	"errors"

	"github.com/kulaginds/rohc/bitio"
	"github.com/kulaginds/rohc/crc"
	"github.com/kulaginds/rohc/ipid"
	"github.com/kulaginds/rohc/wire"
)

// ErrMalformed is returned by every decode function on a truncated or
// internally inconsistent packet.
var ErrMalformed = errors.New("v2iponly: malformed packet")

// ErrNotIPv4Only is returned when Compress/Match/NewContext are handed a
// packet this profile cannot represent: anything but exactly one IPv4
// header with no UDP/RTP layer underneath.
var ErrNotIPv4Only = errors.New("v2iponly: packet is not a single IPv4 header")

// profileIDByte is the one-byte encoding of profile.V2IPOnly used after
// the IR discriminator.
const profileIDByte = 0x04

// flowIPID bundles the IP-ID value and believed behavior the dynamic
// chain needs.
type flowIPID struct {
	value    uint16
	behavior ipid.Behavior
}

// ReorderRatio is the RFC 5225 reorder_ratio channel characterization: a
// 2-bit parameter negotiated per flow that trades W-LSB compression for
// tolerance to reordering on the path between compressor and
// decompressor. It widens the MSN interpretation interval's shift
// backward from the reference, at the cost of the compressor needing
// more k bits to keep the interval unambiguous.
type ReorderRatio uint8

const (
	ReorderNone          ReorderRatio = 0
	ReorderQuarter       ReorderRatio = 1
	ReorderHalf          ReorderRatio = 2
	ReorderThreeQuarters ReorderRatio = 3
)

// msnShift returns the interpretation-interval shift (the W-LSB "p"
// parameter) this ratio applies to the MSN context: RFC 5225's reference
// rohc_interval_get_rfc5225_msn_p derives this from both k and the ratio;
// without that function's body to ground against, this module applies a
// fixed shift against the MSN field's 16-bit width instead, scaled by the
// same quarter/half/three-quarters fractions the ratio names.
func (r ReorderRatio) msnShift() int {
	return int(r) * (16 / 4)
}

// dynamicBody writes the reorder_ratio/MSN/IPv4-dynamic entry shared by
// the IR and co_repair packets' full dynamic-chain resend.
func dynamicBody(w *bitio.Writer, reorderRatio uint8, msn uint16, h wire.IPv4Header, fid flowIPID) error {
	if err := w.Write(uint32(reorderRatio)&0x3, 2); err != nil {
		return err
	}
	if err := w.Write(0, 6); err != nil { // reserved, byte-align
		return err
	}
	if err := w.Write(uint32(msn), 16); err != nil {
		return err
	}
	d := wire.DynamicIPv4{DF: h.DF, Behavior: fid.behavior, ToS: h.ToS, TTL: h.TTL, IPID: fid.value}
	return wire.EncodeDynamicIPv4(w, d)
}

func decodeDynamicBody(r *bitio.Reader) (reorderRatio uint8, msn uint16, d wire.DynamicIPv4, err error) {
	rr, err := r.Read(2)
	if err != nil {
		return
	}
	reorderRatio = uint8(rr)
	if _, err = r.Read(6); err != nil { // reserved
		return
	}
	m, err := r.Read(16)
	if err != nil {
		return
	}
	msn = uint16(m)
	d, err = wire.DecodeDynamicIPv4(r)
	return
}

// irBody writes the profile byte, static chain, and dynamic chain shared
// by encodeIR and decodeIR's CRC recomputation.
func irBody(h wire.IPv4Header, reorderRatio uint8, msn uint16, fid flowIPID) ([]byte, error) {
	w := bitio.NewWriter()
	if err := w.Write(profileIDByte, 8); err != nil {
		return nil, err
	}
	if err := wire.EncodeStaticIPv4(w, h); err != nil {
		return nil, err
	}
	if err := dynamicBody(w, reorderRatio, msn, h, fid); err != nil {
		return nil, err
	}
	w.AlignByte()
	return w.Bytes(), nil
}

// encodeIR writes a full IR packet: discriminator, profile byte, static
// chain, dynamic chain, CRC-8 over the profile byte plus both chains.
func encodeIR(h wire.IPv4Header, reorderRatio uint8, msn uint16, fid flowIPID) ([]byte, error) {
	body, err := irBody(h, reorderRatio, msn, fid)
	if err != nil {
		return nil, err
	}
	sum := crc.CRC8.Calculate(body)

	w := bitio.NewWriter()
	if err := w.Write(0b11111101, 8); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(body); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(sum), 8); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// decodeIR parses an IR packet in full.
func decodeIR(data []byte) (wire.IPv4Header, uint8, uint16, flowIPID, error) {
	var h wire.IPv4Header
	var fid flowIPID
	if len(data) < 2 {
		return h, 0, 0, fid, ErrMalformed
	}
	r := bitio.NewReader(data)
	if _, err := r.Read(8); err != nil { // discriminator
		return h, 0, 0, fid, err
	}
	if _, err := r.Read(8); err != nil { // profile byte
		return h, 0, 0, fid, err
	}
	h, err := wire.DecodeStaticIPv4(r)
	if err != nil {
		return h, 0, 0, fid, err
	}
	reorderRatio, msn, d, err := decodeDynamicBody(r)
	if err != nil {
		return h, 0, 0, fid, err
	}
	h.DF = d.DF
	h.ToS = d.ToS
	h.TTL = d.TTL
	fid = flowIPID{value: d.IPID, behavior: d.Behavior}

	r.AlignByte()
	crcByte, err := r.Read(8)
	if err != nil {
		return h, 0, 0, fid, err
	}
	body, err := irBody(h, reorderRatio, msn, fid)
	if err != nil {
		return h, 0, 0, fid, err
	}
	if crc.CRC8.Calculate(body) != uint8(crcByte) {
		return h, 0, 0, fid, ErrMalformed
	}
	return h, reorderRatio, msn, fid, nil
}

// decodeStaticOnly parses just the discriminator, profile byte, and
// static chain of an IR packet. Used to build a fresh DecompContext
// before the full Decompress pass commits the flow's first
// reconstructed packet.
func decodeStaticOnly(data []byte) (wire.IPv4Header, error) {
	var h wire.IPv4Header
	if len(data) < 2 {
		return h, ErrMalformed
	}
	r := bitio.NewReader(data)
	if _, err := r.Read(8); err != nil {
		return h, err
	}
	if _, err := r.Read(8); err != nil {
		return h, err
	}
	return wire.DecodeStaticIPv4(r)
}

// encodeCoRepair writes a co_repair packet: discriminator, a header CRC-7
// (over the reconstructed header plus MSN, the same region co_common's
// CRC-7 protects) and a control CRC-3 (over reorder_ratio/MSN/IP-ID
// behavior, RFC 5225 §6's "control CRC" region), then the full dynamic
// chain resend. This is the FO-state packet, analogous to RFC 3095's
// IR-DYN: it gives the decompressor everything needed to reach SC/FC
// without relying on a W-LSB interval still being valid. The two CRC
// bytes are both carried ahead of the dynamic chain rather than trailing
// it, so a decompressor with no static snapshot yet (NC state) can still
// tell a malformed packet from a CRC disagreement it must defer.
func encodeCoRepair(h wire.IPv4Header, reorderRatio uint8, msn uint16, fid flowIPID) ([]byte, error) {
	hb, err := msnCRCBytes(h, msn)
	if err != nil {
		return nil, err
	}
	headerCRC := crc.CRC7.Calculate(hb)

	cb, err := controlCRCBytes(reorderRatio, msn, fid.behavior)
	if err != nil {
		return nil, err
	}
	controlCRC := crc.CRC3.Calculate(cb)

	w := bitio.NewWriter()
	if err := w.Write(0b11111011, 8); err != nil {
		return nil, err
	}
	if err := w.Write(0, 1); err != nil { // reserved
		return nil, err
	}
	if err := w.Write(uint32(headerCRC), 7); err != nil {
		return nil, err
	}
	if err := w.Write(0, 5); err != nil { // reserved
		return nil, err
	}
	if err := w.Write(uint32(controlCRC), 3); err != nil {
		return nil, err
	}
	if err := dynamicBody(w, reorderRatio, msn, h, fid); err != nil {
		return nil, err
	}
	w.AlignByte()
	return w.Bytes(), nil
}

// decodeCoRepair parses a co_repair packet's fields and its two leading
// CRC bytes, without verifying them: verification needs the context's
// static snapshot (SrcAddr/DstAddr/Protocol, unchanged since the last IR)
// to rebuild the full header the header CRC protects, which only the
// caller in decompressor.go has.
func decodeCoRepair(data []byte) (reorderRatio uint8, msn uint16, d wire.DynamicIPv4, headerCRC uint8, controlCRC uint8, err error) {
	if len(data) < 4 {
		err = ErrMalformed
		return
	}
	r := bitio.NewReader(data)
	if _, err = r.Read(8); err != nil { // discriminator
		return
	}
	if _, err = r.Read(1); err != nil { // reserved
		return
	}
	hc, err := r.Read(7)
	if err != nil {
		return
	}
	headerCRC = uint8(hc)
	if _, err = r.Read(5); err != nil { // reserved
		return
	}
	cc, err := r.Read(3)
	if err != nil {
		return
	}
	controlCRC = uint8(cc)

	reorderRatio, msn, d, err = decodeDynamicBody(r)
	return
}

// controlCRCBytes serializes the fields co_repair's (and, in principle,
// any ROHCv2 packet's) control CRC protects: reorder_ratio, MSN, and the
// believed IP-ID behavior. This is a distinct CRC region from the header
// CRC msnCRCBytes feeds: the control CRC exists so a decompressor can
// confirm the reorder_ratio/behavior parameters that size its W-LSB
// interval are still agreed on, independent of whether the reconstructed
// header itself checks out.
func controlCRCBytes(reorderRatio uint8, msn uint16, behavior ipid.Behavior) ([]byte, error) {
	w := bitio.NewWriter()
	if err := w.Write(uint32(reorderRatio)&0x3, 2); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(msn), 16); err != nil {
		return nil, err
	}
	if err := w.Write(controlBehaviorCode(behavior), 2); err != nil {
		return nil, err
	}
	w.AlignByte()
	return w.Bytes(), nil
}

// controlBehaviorCode mirrors wire.DynamicIPv4's 2-bit id_behavior
// encoding; kept local since the control CRC is computed over a field
// layout of this package's own devising, not the wire dynamic chain.
func controlBehaviorCode(b ipid.Behavior) uint32 {
	switch b {
	case ipid.Sequential:
		return 0
	case ipid.SequentialSwapped:
		return 1
	case ipid.Zero:
		return 2
	default:
		return 3
	}
}

// msnCRCBytes serializes every field the Normal/co_common CRC protects:
// the IPv4 header as it will be reconstructed, plus the MSN assigned to
// this packet. Both sides compute this independently and the CRC's job
// is to catch disagreement between those two views.
func msnCRCBytes(h wire.IPv4Header, msn uint16) ([]byte, error) {
	w := bitio.NewWriter()
	if err := wire.EncodeStaticIPv4(w, h); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(h.ToS), 8); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(h.TTL), 8); err != nil {
		return nil, err
	}
	df := uint32(0)
	if h.DF {
		df = 1
	}
	if err := w.Write(df, 1); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(h.Identification), 16); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(msn), 16); err != nil {
		return nil, err
	}
	w.AlignByte()
	return w.Bytes(), nil
}

// encodeNormal1 writes the 1-byte Normal packet: 0|msnLSB(4)|crc3(3).
// The top bit is structurally forced to 0, so this form can never
// collide with the 0b11111xxx reserved discriminator range.
func encodeNormal1(msnLSB uint8, crc3 uint8) []byte {
	return []byte{(msnLSB & 0xF) << 3 & 0x78 | crc3&0x7}
}

func decodeNormal1(b byte) (msnLSB uint8, crc3 uint8) {
	return (b >> 3) & 0xF, b & 0x7
}

// encodeNormal2 writes the 2-byte Normal packet: byte0 =
// 10|msnLSB(6), byte1 = idOffsetLSB(5)|crc3(3). The top two bits are
// structurally forced to 10, keeping byte0 in [0x80,0xBF] and so also
// clear of the reserved range.
func encodeNormal2(msnLSB uint8, idLSB uint8, crc3 uint8) ([]byte, error) {
	w := bitio.NewWriter()
	if err := w.Write(0b10, 2); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(msnLSB), 6); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(idLSB), 5); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(crc3), 3); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decodeNormal2(data []byte) (msnLSB uint8, idLSB uint8, crc3 uint8, err error) {
	if len(data) < 2 {
		return 0, 0, 0, ErrMalformed
	}
	r := bitio.NewReader(data)
	if _, err = r.Read(2); err != nil {
		return
	}
	m, err := r.Read(6)
	if err != nil {
		return
	}
	msnLSB = uint8(m)
	id, err := r.Read(5)
	if err != nil {
		return
	}
	idLSB = uint8(id)
	c, err := r.Read(3)
	if err != nil {
		return
	}
	crc3 = uint8(c)
	return
}

// coCommonFields is the decoded (or to-be-encoded) payload of a
// co_common packet once its extension has been applied.
type coCommonFields struct {
	msn       uint32
	idOffset  uint32
	idPresent bool
	h         wire.IPv4Header // DF/ToS/TTL always resent in full
}

// encodeCoCommon writes a co_common packet: discriminator, an ext+
// id-present selector byte, MSN at the chosen extension's width,
// DF/ToS/TTL resent in full, an optional IP-ID-offset at the chosen
// extension's width, a byte-aligned pad, and a CRC-7 byte.
func encodeCoCommon(ext ccExt, f coCommonFields, crc7 uint8) ([]byte, error) {
	w := bitio.NewWriter()
	if err := w.Write(0b11111010, 8); err != nil {
		return nil, err
	}
	idPresent := uint32(0)
	if f.idPresent {
		idPresent = 1
	}
	sel := uint32(ext)<<6 | idPresent<<5
	if err := w.Write(sel, 8); err != nil {
		return nil, err
	}

	b := ccBudgets[ext]
	if err := w.Write(f.msn, b.msn); err != nil {
		return nil, err
	}
	df := uint32(0)
	if f.h.DF {
		df = 1
	}
	if err := w.Write(df, 1); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(f.h.ToS), 8); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(f.h.TTL), 8); err != nil {
		return nil, err
	}
	if f.idPresent {
		if err := w.Write(f.idOffset, b.id); err != nil {
			return nil, err
		}
	}
	w.AlignByte()
	if err := w.Write(uint32(crc7), 8); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// decodeCoCommon parses a co_common packet, returning its fields, the
// extension level actually used, and the trailing CRC-7 byte for the
// caller to validate.
func decodeCoCommon(data []byte) (f coCommonFields, ext ccExt, crc7 uint8, err error) {
	if len(data) < 2 {
		return f, ccExt0, 0, ErrMalformed
	}
	r := bitio.NewReader(data)
	if _, err = r.Read(8); err != nil {
		return
	}
	sel, err := r.Read(8)
	if err != nil {
		return
	}
	ext = ccExt((sel >> 6) & 0x3)
	f.idPresent = (sel>>5)&0x1 == 1

	b := ccBudgets[ext]
	msn, err := r.Read(b.msn)
	if err != nil {
		return
	}
	f.msn = msn

	df, err := r.Read(1)
	if err != nil {
		return
	}
	f.h.DF = df == 1
	tos, err := r.Read(8)
	if err != nil {
		return
	}
	f.h.ToS = uint8(tos)
	ttl, err := r.Read(8)
	if err != nil {
		return
	}
	f.h.TTL = uint8(ttl)

	if f.idPresent {
		id, e := r.Read(b.id)
		if e != nil {
			return f, ext, 0, e
		}
		f.idOffset = id
	}

	r.AlignByte()
	c, err := r.Read(8)
	if err != nil {
		return
	}
	return f, ext, uint8(c), nil
}

func verifyCRC3(h wire.IPv4Header, msn uint16, want uint8) bool {
	b, err := msnCRCBytes(h, msn)
	if err != nil {
		return false
	}
	return crc.CRC3.Calculate(b) == want
}

func verifyCRC7(h wire.IPv4Header, msn uint16, want uint8) bool {
	b, err := msnCRCBytes(h, msn)
	if err != nil {
		return false
	}
	return crc.CRC7.Calculate(b) == want
}
