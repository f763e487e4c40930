package wire

import "errors"

// PacketType enumerates the ROHC packet types this module encodes and
// parses.
type PacketType int

const (
	PacketIR PacketType = iota
	PacketIRDyn
	PacketUO0
	PacketUO1
	PacketUO1ID
	PacketUO1TS
	PacketUO1RTP
	PacketUOR2
	PacketUOR2ID
	PacketUOR2TS
	PacketUOR2RTP
	PacketCoRepair
	PacketCoCommon
	PacketNormal // ROHCv2 IP-only, first byte == first uncompressed byte
)

// ErrUnknownDiscriminator is returned when the first byte of a ROHC
// packet matches no known packet-type prefix for the active profile
// family.
var ErrUnknownDiscriminator = errors.New("wire: unknown packet type discriminator")

// IsAddCID reports whether b is an add-CID octet: 1110 CCCC.
func IsAddCID(b byte) bool {
	return b&0xF0 == 0xE0
}

// EncodeAddCID returns the add-CID octet for a small CID in [0,15].
func EncodeAddCID(cid int) (byte, error) {
	if cid < 0 || cid > 15 {
		return 0, errors.New("wire: small cid out of range")
	}
	return 0xE0 | byte(cid), nil
}

// DecodeAddCID extracts the CID from an add-CID octet. Caller must have
// already confirmed IsAddCID(b).
func DecodeAddCID(b byte) int {
	return int(b & 0x0F)
}

// DetectRFC3095 classifies the first byte of a ROHCv1 packet (one not
// preceded by, or after stripping, an add-CID octet) by its discriminator
// bits.
func DetectRFC3095(first byte) (PacketType, error) {
	switch {
	case first == 0b11111110 || first == 0b11111111:
		return PacketIR, nil
	case first == 0b11111000:
		return PacketIRDyn, nil
	case first&0x80 == 0: // 0 SSSS CCC
		return PacketUO0, nil
	case first&0xC0 == 0x80: // 10 ......
		return classifyUO1(first)
	case first&0xE0 == 0xC0: // 110 .....
		return classifyUOR2(first)
	default:
		return 0, ErrUnknownDiscriminator
	}
}

// classifyUO1 distinguishes the UO-1 variants. RFC 3095 layers these
// under the same 10-prefix; this module's RTP profile (the only one
// that codes UO-1 in full, per DESIGN.md) uses the next two bits as a
// sub-discriminator: 00=UO-1, 01=UO-1-ID, 10=UO-1-TS, 11=UO-1-RTP.
func classifyUO1(first byte) (PacketType, error) {
	switch (first >> 3) & 0x3 {
	case 0b00:
		return PacketUO1, nil
	case 0b01:
		return PacketUO1ID, nil
	case 0b10:
		return PacketUO1TS, nil
	default:
		return PacketUO1RTP, nil
	}
}

// classifyUOR2 distinguishes the UOR-2 variants using the same
// sub-discriminator convention as classifyUO1.
func classifyUOR2(first byte) (PacketType, error) {
	switch (first >> 2) & 0x3 {
	case 0b00:
		return PacketUOR2, nil
	case 0b01:
		return PacketUOR2ID, nil
	case 0b10:
		return PacketUOR2TS, nil
	default:
		return PacketUOR2RTP, nil
	}
}

// DetectRFC5225IPOnly classifies the first byte of a ROHCv2 IP-only
// packet: IR, co_repair, co_common, or Normal (RFC 5225 §6.1). forbidden
// reports true when the byte collides with a ROHC discriminator and
// therefore cannot be used as a Normal packet's first byte.
func DetectRFC5225IPOnly(first byte) (pt PacketType, forbidden bool, err error) {
	switch {
	case first == 0b11111101:
		return PacketIR, false, nil
	case first == 0b11111011:
		return PacketCoRepair, false, nil
	case first == 0b11111010:
		return PacketCoCommon, false, nil
	case first&0xF8 == 0xF8: // 11111xxx is reserved for ROHC discriminators
		return 0, true, nil
	default:
		return PacketNormal, false, nil
	}
}
