package rtp

import (
	"errors"

	"github.com/kulaginds/rohc/bitio"
	"github.com/kulaginds/rohc/crc"
	"github.com/kulaginds/rohc/ipid"
	"github.com/kulaginds/rohc/wire"
)

// ErrMalformed is returned by every decode function on a truncated or
// internally inconsistent packet.
var ErrMalformed = errors.New("rtp: malformed packet")

// profileIDByte is the one-byte encoding of profile.IPUDPRTP used after
// the IR/IR-DYN discriminator; every profile ID this module enables fits
// in a byte.
const profileIDByte = 0x01

// headerCRCBytes serializes every field the CRC protects: the full
// static+dynamic chain for every IP layer, then UDP, then RTP. Both sides
// compute this independently from their own view of the packet (the
// sender from the packet it is compressing, the receiver from what it
// just reconstructed) and the CRC's job is to catch disagreement between
// those two views.
func headerCRCBytes(pkt *wire.Packet) ([]byte, error) {
	w := bitio.NewWriter()
	for _, layer := range pkt.IPLayers {
		var err error
		switch layer.Version {
		case 4:
			err = wire.EncodeStaticIPv4(w, layer.V4)
		default:
			err = wire.EncodeStaticIPv6(w, layer.V6)
		}
		if err != nil {
			return nil, err
		}
	}
	if pkt.UDP != nil {
		if err := wire.EncodeStaticUDP(w, *pkt.UDP); err != nil {
			return nil, err
		}
		if err := wire.EncodeDynamicUDP(w, *pkt.UDP); err != nil {
			return nil, err
		}
	}
	if pkt.RTP != nil {
		if err := wire.EncodeStaticRTP(w, *pkt.RTP); err != nil {
			return nil, err
		}
	}
	w.AlignByte()
	return w.Bytes(), nil
}

// flowIPID bundles the per-layer IP-ID state the dynamic chain needs:
// the current value plus the believed behavior.
type flowIPID struct {
	value    uint16
	behavior ipid.Behavior
}

// irBody writes the profile byte, static chain, and dynamic chain shared
// by encodeIR and decodeIR's CRC recomputation.
func irBody(pkt *wire.Packet, ids []flowIPID) ([]byte, error) {
	w := bitio.NewWriter()
	if err := w.Write(profileIDByte, 8); err != nil {
		return nil, err
	}
	for _, layer := range pkt.IPLayers {
		var err error
		switch layer.Version {
		case 4:
			err = wire.EncodeStaticIPv4(w, layer.V4)
		default:
			err = wire.EncodeStaticIPv6(w, layer.V6)
		}
		if err != nil {
			return nil, err
		}
	}
	if pkt.UDP != nil {
		if err := wire.EncodeStaticUDP(w, *pkt.UDP); err != nil {
			return nil, err
		}
	}
	if pkt.RTP != nil {
		if err := wire.EncodeStaticRTP(w, *pkt.RTP); err != nil {
			return nil, err
		}
	}
	if err := encodeDynamicChain(w, pkt, ids); err != nil {
		return nil, err
	}
	w.AlignByte()
	return w.Bytes(), nil
}

// encodeIR writes a full IR packet: discriminator, profile byte, static
// chain, dynamic chain, CRC-8 over the profile byte plus both chains.
func encodeIR(pkt *wire.Packet, ids []flowIPID) ([]byte, error) {
	body, err := irBody(pkt, ids)
	if err != nil {
		return nil, err
	}
	sum := crc.CRC8.Calculate(body)

	w := bitio.NewWriter()
	if err := w.Write(0xFE, 8); err != nil {
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

// maxIPNest bounds the IP header nest depth decodeIPLayers will walk,
// guarding against a corrupt stream whose Innermost flags never set.
const maxIPNest = 2

// decodeIPLayers decodes a self-describing run of static IP chain
// entries: each entry's own version nibble says whether to read an IPv4
// or IPv6 static chain, and its Innermost flag says when the nest ends.
func decodeIPLayers(r *bitio.Reader) ([]wire.IPLayer, error) {
	var layers []wire.IPLayer
	for i := 0; i < maxIPNest; i++ {
		version, err := r.Peek(4)
		if err != nil {
			return nil, err
		}
		layer := wire.IPLayer{Version: int(version)}
		switch version {
		case 4:
			layer.V4, err = wire.DecodeStaticIPv4(r)
			layer.Version = 4
			layers = append(layers, layer)
			if err == nil && layer.V4.Innermost {
				return layers, nil
			}
		case 6:
			layer.V6, err = wire.DecodeStaticIPv6(r)
			layer.Version = 6
			layers = append(layers, layer)
			if err == nil && layer.V6.Innermost {
				return layers, nil
			}
		default:
			return nil, ErrMalformed
		}
		if err != nil {
			return nil, err
		}
	}
	return layers, nil
}

// decodeIR parses an IR packet in full: discriminator, profile byte,
// self-describing static chain, UDP/RTP static, dynamic chain, CRC-8.
func decodeIR(data []byte) (*wire.Packet, []flowIPID, error) {
	if len(data) < 2 {
		return nil, nil, ErrMalformed
	}
	r := bitio.NewReader(data)
	if _, err := r.Read(8); err != nil { // discriminator
		return nil, nil, err
	}
	if _, err := r.Read(8); err != nil { // profile byte
		return nil, nil, err
	}

	ipLayers, err := decodeIPLayers(r)
	if err != nil {
		return nil, nil, err
	}
	pkt := &wire.Packet{IPLayers: ipLayers, UDP: &wire.UDPHeader{}, RTP: &wire.RTPHeader{}}

	udpStatic, err := wire.DecodeStaticUDP(r)
	if err != nil {
		return nil, nil, err
	}
	rtpStatic, err := wire.DecodeStaticRTP(r)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]flowIPID, 0, len(pkt.IPLayers))
	for i := range pkt.IPLayers {
		if pkt.IPLayers[i].Version != 4 {
			continue
		}
		d, err := wire.DecodeDynamicIPv4(r)
		if err != nil {
			return nil, nil, err
		}
		pkt.IPLayers[i].V4.ToS = d.ToS
		pkt.IPLayers[i].V4.TTL = d.TTL
		pkt.IPLayers[i].V4.DF = d.DF
		ids = append(ids, flowIPID{value: d.IPID, behavior: d.Behavior})
	}
	udpDyn, err := wire.DecodeDynamicUDP(r)
	if err != nil {
		return nil, nil, err
	}
	udpStatic.Checksum = udpDyn.Checksum
	udpStatic.ChecksumUsed = udpDyn.ChecksumUsed
	pkt.UDP = &udpStatic

	rtpDyn, err := wire.DecodeDynamicRTP(r)
	if err != nil {
		return nil, nil, err
	}
	rtpStatic.PayloadType = rtpDyn.RTP.PayloadType
	rtpStatic.Marker = rtpDyn.RTP.Marker
	rtpStatic.CC = rtpDyn.RTP.CC
	rtpStatic.SequenceNumber = rtpDyn.RTP.SequenceNumber
	rtpStatic.Timestamp = rtpDyn.RTP.Timestamp
	pkt.RTP = &rtpStatic

	r.AlignByte()
	crcByte, err := r.Read(8)
	if err != nil {
		return nil, nil, err
	}

	body, err := irBody(pkt, ids)
	if err != nil {
		return nil, nil, err
	}
	if crc.CRC8.Calculate(body) != uint8(crcByte) {
		return nil, nil, ErrMalformed
	}

	return pkt, ids, nil
}

// decodeStaticOnly parses just the discriminator, profile byte, and
// static chain of an IR packet, ignoring the dynamic chain and trailing
// CRC. Used to build a fresh DecompContext before the full Decompress
// pass commits the flow's first reconstructed packet.
func decodeStaticOnly(data []byte) (*wire.Packet, error) {
	if len(data) < 2 {
		return nil, ErrMalformed
	}
	r := bitio.NewReader(data)
	if _, err := r.Read(8); err != nil { // discriminator
		return nil, err
	}
	if _, err := r.Read(8); err != nil { // profile byte
		return nil, err
	}
	ipLayers, err := decodeIPLayers(r)
	if err != nil {
		return nil, err
	}
	udpStatic, err := wire.DecodeStaticUDP(r)
	if err != nil {
		return nil, err
	}
	rtpStatic, err := wire.DecodeStaticRTP(r)
	if err != nil {
		return nil, err
	}
	return &wire.Packet{IPLayers: ipLayers, UDP: &udpStatic, RTP: &rtpStatic}, nil
}

// encodeDynamicChain appends the IPv4 dynamic entries (one per IPv4
// layer, paired positionally with ids), UDP dynamic, and RTP dynamic.
func encodeDynamicChain(w *bitio.Writer, pkt *wire.Packet, ids []flowIPID) error {
	idIdx := 0
	for _, layer := range pkt.IPLayers {
		if layer.Version != 4 {
			continue
		}
		var fid flowIPID
		if idIdx < len(ids) {
			fid = ids[idIdx]
		}
		idIdx++
		d := wire.DynamicIPv4{
			DF:       layer.V4.DF,
			Behavior: fid.behavior,
			ToS:      layer.V4.ToS,
			TTL:      layer.V4.TTL,
			IPID:     fid.value,
		}
		if err := wire.EncodeDynamicIPv4(w, d); err != nil {
			return err
		}
	}
	if pkt.UDP != nil {
		if err := wire.EncodeDynamicUDP(w, *pkt.UDP); err != nil {
			return err
		}
	}
	if pkt.RTP != nil {
		d := wire.DynamicRTP{UDPChecksum: checksumOf(pkt.UDP), RTP: *pkt.RTP}
		if err := wire.EncodeDynamicRTP(w, d); err != nil {
			return err
		}
	}
	return nil
}

func checksumOf(u *wire.UDPHeader) uint16 {
	if u == nil {
		return 0
	}
	return u.Checksum
}

// encodeIRDyn writes an IR-DYN packet: discriminator, profile byte,
// dynamic chain only, CRC-8 over the profile byte plus the dynamic chain.
func encodeIRDyn(pkt *wire.Packet, ids []flowIPID) ([]byte, error) {
	dw := bitio.NewWriter()
	if err := dw.Write(profileIDByte, 8); err != nil {
		return nil, err
	}
	if err := encodeDynamicChain(dw, pkt, ids); err != nil {
		return nil, err
	}
	dw.AlignByte()
	body := dw.Bytes()
	sum := crc.CRC8.Calculate(body)

	w := bitio.NewWriter()
	if err := w.Write(0xF8, 8); err != nil {
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

// decodeIRDyn parses an IR-DYN packet against a known static snapshot
// (the context's static chain, unchanged since the last IR).
func decodeIRDyn(data []byte, static *wire.Packet) (*wire.Packet, []flowIPID, error) {
	if len(data) < 2 {
		return nil, nil, ErrMalformed
	}
	r := bitio.NewReader(data)
	if _, err := r.Read(8); err != nil { // discriminator
		return nil, nil, err
	}
	if _, err := r.Read(8); err != nil { // profile byte
		return nil, nil, err
	}

	pkt := &wire.Packet{IPLayers: cloneIPLayers(static.IPLayers)}
	ids := make([]flowIPID, 0, len(pkt.IPLayers))
	for i := range pkt.IPLayers {
		if pkt.IPLayers[i].Version != 4 {
			continue
		}
		d, err := wire.DecodeDynamicIPv4(r)
		if err != nil {
			return nil, nil, err
		}
		pkt.IPLayers[i].V4.ToS = d.ToS
		pkt.IPLayers[i].V4.TTL = d.TTL
		pkt.IPLayers[i].V4.DF = d.DF
		ids = append(ids, flowIPID{value: d.IPID, behavior: d.Behavior})
	}

	udpDyn, err := wire.DecodeDynamicUDP(r)
	if err != nil {
		return nil, nil, err
	}
	udp := *static.UDP
	udp.Checksum = udpDyn.Checksum
	udp.ChecksumUsed = udpDyn.ChecksumUsed
	pkt.UDP = &udp

	rtpDyn, err := wire.DecodeDynamicRTP(r)
	if err != nil {
		return nil, nil, err
	}
	rtp := *static.RTP
	rtp.PayloadType = rtpDyn.RTP.PayloadType
	rtp.Marker = rtpDyn.RTP.Marker
	rtp.CC = rtpDyn.RTP.CC
	rtp.SequenceNumber = rtpDyn.RTP.SequenceNumber
	rtp.Timestamp = rtpDyn.RTP.Timestamp
	pkt.RTP = &rtp

	r.AlignByte()
	crcByte, err := r.Read(8)
	if err != nil {
		return nil, nil, err
	}

	dw := bitio.NewWriter()
	if err := dw.Write(profileIDByte, 8); err != nil {
		return nil, nil, err
	}
	if err := encodeDynamicChain(dw, pkt, ids); err != nil {
		return nil, nil, err
	}
	dw.AlignByte()
	if crc.CRC8.Calculate(dw.Bytes()) != uint8(crcByte) {
		return nil, nil, ErrMalformed
	}

	return pkt, ids, nil
}

func cloneIPLayers(in []wire.IPLayer) []wire.IPLayer {
	out := make([]wire.IPLayer, len(in))
	copy(out, in)
	return out
}

// encodeUO0 writes the 1-byte UO-0 packet: 0|sn(4)|crc3(3). snLSB must
// already be masked to 4 bits by the caller (the W-LSB k the decision
// table chose).
func encodeUO0(snLSB uint8, crc3 uint8) []byte {
	return []byte{(snLSB&0xF)<<3 | (crc3 & 0x7)}
}

// decodeUO0 splits a UO-0 byte back into its SN LSBs and CRC-3.
func decodeUO0(b byte) (snLSB uint8, crc3 uint8) {
	return (b >> 3) & 0xF, b & 0x7
}

// uo1Kind names which field a UO-1 variant carries natively.
type uo1Kind int

const (
	uo1KindTS uo1Kind = iota
	uo1KindID
	uo1KindRTP
)

func uo1Subtype(kind uo1Kind) uint32 {
	switch kind {
	case uo1KindID:
		return 0b01
	case uo1KindRTP:
		return 0b11
	default:
		return 0b10 // TS
	}
}

// encodeUO1 writes a UO-1 family packet: a discriminator byte, then the
// native field (TS 5 bits / ID 5 bits / TS 6 bits+M for RTP), 4-bit SN,
// and a CRC-3, bit-packed after the discriminator.
func encodeUO1(kind uo1Kind, fieldVal uint32, marker bool, snLSB uint8, crc3 uint8) ([]byte, error) {
	w := bitio.NewWriter()
	if err := w.Write(0x80|uo1Subtype(kind)<<3, 8); err != nil {
		return nil, err
	}
	switch kind {
	case uo1KindRTP:
		if err := w.Write(fieldVal, 6); err != nil {
			return nil, err
		}
		m := uint32(0)
		if marker {
			m = 1
		}
		if err := w.Write(m, 1); err != nil {
			return nil, err
		}
	default:
		if err := w.Write(fieldVal, 5); err != nil {
			return nil, err
		}
	}
	if err := w.Write(uint32(snLSB), 4); err != nil {
		return nil, err
	}
	if err := w.Write(uint32(crc3), 3); err != nil {
		return nil, err
	}
	w.AlignByte()
	return w.Bytes(), nil
}

// decodeUO1 parses a UO-1 family packet given its already-classified
// kind (the caller dispatches on wire.DetectRFC3095's PacketType).
func decodeUO1(data []byte, kind uo1Kind) (fieldVal uint32, marker bool, snLSB uint8, crc3 uint8, err error) {
	if len(data) < 2 {
		return 0, false, 0, 0, ErrMalformed
	}
	r := bitio.NewReader(data)
	if _, err = r.Read(8); err != nil {
		return
	}
	switch kind {
	case uo1KindRTP:
		fv, e := r.Read(6)
		if e != nil {
			return 0, false, 0, 0, e
		}
		fieldVal = fv
		m, e := r.Read(1)
		if e != nil {
			return 0, false, 0, 0, e
		}
		marker = m == 1
	default:
		fv, e := r.Read(5)
		if e != nil {
			return 0, false, 0, 0, e
		}
		fieldVal = fv
	}
	sn, e := r.Read(4)
	if e != nil {
		return 0, false, 0, 0, e
	}
	snLSB = uint8(sn)
	c, e := r.Read(3)
	if e != nil {
		return 0, false, 0, 0, e
	}
	crc3 = uint8(c)
	return fieldVal, marker, snLSB, crc3, nil
}

// uor2Kind names which extra field (beyond SN, which every UOR-2
// variant carries) a UOR-2 packet includes.
type uor2Kind int

const (
	uor2KindPlain uor2Kind = iota
	uor2KindID
	uor2KindTS
	uor2KindRTP
)

func uor2Subtype(kind uor2Kind) uint32 {
	switch kind {
	case uor2KindID:
		return 0b01
	case uor2KindTS:
		return 0b10
	case uor2KindRTP:
		return 0b11
	default:
		return 0b00
	}
}

// uor2Fields is the decoded (or to-be-encoded) payload of a UOR-2 packet
// once its extension, if any, has been applied. Field presence is
// driven by the chosen extension's budget, not by kind: kind only picks
// the discriminator subtype (and, for uor2KindRTP, whether PT/CC ride
// along), so Ext2/Ext3 can carry a TS delta and an IP-ID delta in the
// same packet when both changed at once.
type uor2Fields struct {
	sn          uint32
	ts          uint32
	id          uint32
	marker      bool
	payloadType uint8 // 7 bits significant; only sent/read for uor2KindRTP
	cc          uint8 // 4 bits significant; only sent/read for uor2KindRTP
}

// encodeUOR2 writes a UOR-2 family packet: discriminator(+E bit), an
// optional extension-type byte, the bit-packed fields at the chosen
// extension's width, PT/CC when kind is uor2KindRTP, a byte-aligned
// pad, and a CRC-7 byte.
func encodeUOR2(kind uor2Kind, ext Extension, extNeeded bool, f uor2Fields, crc7 uint8) ([]byte, error) {
	w := bitio.NewWriter()
	e := uint32(0)
	if extNeeded {
		e = 1
	}
	disc := 0xC0 | uor2Subtype(kind)<<2 | e
	if err := w.Write(disc, 8); err != nil {
		return nil, err
	}
	if extNeeded {
		if err := w.Write(uint32(ext), 8); err != nil {
			return nil, err
		}
	}

	b := extBudgets[ext]
	if err := w.Write(f.sn, b.sn); err != nil {
		return nil, err
	}
	if b.ts > 0 {
		if err := w.Write(f.ts, b.ts); err != nil {
			return nil, err
		}
	}
	if b.id > 0 {
		if err := w.Write(f.id, b.id); err != nil {
			return nil, err
		}
	}
	if kind == uor2KindRTP {
		if err := w.Write(uint32(f.payloadType)&0x7F, 7); err != nil {
			return nil, err
		}
		if err := w.Write(uint32(f.cc)&0xF, 4); err != nil {
			return nil, err
		}
	}
	m := uint32(0)
	if f.marker {
		m = 1
	}
	if err := w.Write(m, 1); err != nil {
		return nil, err
	}
	w.AlignByte()
	if err := w.Write(uint32(crc7), 8); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// decodeUOR2 parses a UOR-2 family packet, returning its fields, the
// extension level actually used (so the caller knows the exact W-LSB
// bit width each field was sent at), and the trailing CRC-7 byte for
// the caller to validate.
func decodeUOR2(data []byte, kind uor2Kind) (f uor2Fields, ext Extension, crc7 uint8, err error) {
	if len(data) < 2 {
		return f, Ext0, 0, ErrMalformed
	}
	r := bitio.NewReader(data)
	disc, err := r.Read(8)
	if err != nil {
		return f, Ext0, 0, err
	}
	ext = Ext0
	if disc&0x1 == 1 {
		extByte, e := r.Read(8)
		if e != nil {
			return f, Ext0, 0, e
		}
		ext = Extension(extByte)
	}

	b := extBudgets[ext]
	sn, err := r.Read(b.sn)
	if err != nil {
		return f, ext, 0, err
	}
	f.sn = sn
	if b.ts > 0 {
		ts, e := r.Read(b.ts)
		if e != nil {
			return f, ext, 0, e
		}
		f.ts = ts
	}
	if b.id > 0 {
		id, e := r.Read(b.id)
		if e != nil {
			return f, ext, 0, e
		}
		f.id = id
	}
	if kind == uor2KindRTP {
		pt, e := r.Read(7)
		if e != nil {
			return f, ext, 0, e
		}
		f.payloadType = uint8(pt)
		cc, e := r.Read(4)
		if e != nil {
			return f, ext, 0, e
		}
		f.cc = uint8(cc)
	}
	m, err := r.Read(1)
	if err != nil {
		return f, ext, 0, err
	}
	f.marker = m == 1

	r.AlignByte()
	c, err := r.Read(8)
	if err != nil {
		return f, ext, 0, err
	}
	return f, ext, uint8(c), nil
}
