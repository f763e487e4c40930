package wire

import (
	"github.com/kulaginds/rohc/bitio"
	"github.com/kulaginds/rohc/ipid"
)

// behaviorCode/codeToBehavior map ipid.Behavior to the 2-bit id_behavior
// field of the IPv4 dynamic chain.
func behaviorCode(b ipid.Behavior) uint32 {
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

func codeToBehavior(c uint32) ipid.Behavior {
	switch c {
	case 0:
		return ipid.Sequential
	case 1:
		return ipid.SequentialSwapped
	case 2:
		return ipid.Zero
	default:
		return ipid.Random
	}
}

// DynamicIPv4 is the IPv4 dynamic chain entry (RFC 3095 §5.7.7.4):
// reserved(5)|df(1)|id_behavior(2)|tos(8)|ttl(8)|[ip_id(16) if behavior != zero].
type DynamicIPv4 struct {
	DF       bool
	Behavior ipid.Behavior
	ToS      uint8
	TTL      uint8
	IPID     uint16 // present unless Behavior == Zero
}

// EncodeDynamicIPv4 writes a DynamicIPv4 entry.
func EncodeDynamicIPv4(w *bitio.Writer, d DynamicIPv4) error {
	df := uint32(0)
	if d.DF {
		df = 1
	}
	if err := w.Write(0, 5); err != nil { // reserved
		return err
	}
	if err := w.Write(df, 1); err != nil {
		return err
	}
	if err := w.Write(behaviorCode(d.Behavior), 2); err != nil {
		return err
	}
	if err := w.Write(uint32(d.ToS), 8); err != nil {
		return err
	}
	if err := w.Write(uint32(d.TTL), 8); err != nil {
		return err
	}
	if d.Behavior != ipid.Zero {
		return w.Write(uint32(d.IPID), 16)
	}
	return nil
}

// DecodeDynamicIPv4 parses a DynamicIPv4 entry.
func DecodeDynamicIPv4(r *bitio.Reader) (DynamicIPv4, error) {
	var d DynamicIPv4
	if _, err := r.Read(5); err != nil {
		return d, err
	}
	df, err := r.Read(1)
	if err != nil {
		return d, err
	}
	d.DF = df == 1

	behavior, err := r.Read(2)
	if err != nil {
		return d, err
	}
	d.Behavior = codeToBehavior(behavior)

	tos, err := r.Read(8)
	if err != nil {
		return d, err
	}
	d.ToS = uint8(tos)

	ttl, err := r.Read(8)
	if err != nil {
		return d, err
	}
	d.TTL = uint8(ttl)

	if d.Behavior != ipid.Zero {
		id, err := r.Read(16)
		if err != nil {
			return d, err
		}
		d.IPID = uint16(id)
	}
	return d, nil
}

// EncodeDynamicUDP writes the UDP dynamic chain: checksum(16).
func EncodeDynamicUDP(w *bitio.Writer, h UDPHeader) error {
	return w.Write(uint32(h.Checksum), 16)
}

// DecodeDynamicUDP parses the UDP dynamic chain.
func DecodeDynamicUDP(r *bitio.Reader) (UDPHeader, error) {
	var h UDPHeader
	cs, err := r.Read(16)
	if err != nil {
		return h, err
	}
	h.Checksum = uint16(cs)
	h.ChecksumUsed = cs != 0
	return h, nil
}

// DynamicRTP is the RTP dynamic chain entry (RFC 3095 §5.7.7.8):
// checksum(16)|RX(1)|version(2)|pad(1)|CC(4)|M(1)|PT(7)|SN(16)|TS(32)|csrc_list_byte(8).
// Extension info when RX=1 is not modeled: this module never sets RX, as
// no profile here negotiates RTP header extensions (see DESIGN.md).
type DynamicRTP struct {
	UDPChecksum uint16
	RTP         RTPHeader
}

// EncodeDynamicRTP writes a DynamicRTP entry.
func EncodeDynamicRTP(w *bitio.Writer, d DynamicRTP) error {
	if err := w.Write(uint32(d.UDPChecksum), 16); err != nil {
		return err
	}
	if err := w.Write(0, 1); err != nil { // RX
		return err
	}
	if err := w.Write(2, 2); err != nil { // RTP version, always 2
		return err
	}
	if err := w.Write(0, 1); err != nil { // padding
		return err
	}
	if err := w.Write(uint32(d.RTP.CC)&0xF, 4); err != nil {
		return err
	}
	m := uint32(0)
	if d.RTP.Marker {
		m = 1
	}
	if err := w.Write(m, 1); err != nil {
		return err
	}
	if err := w.Write(uint32(d.RTP.PayloadType)&0x7F, 7); err != nil {
		return err
	}
	if err := w.Write(uint32(d.RTP.SequenceNumber), 16); err != nil {
		return err
	}
	if err := w.Write(d.RTP.Timestamp, 32); err != nil {
		return err
	}
	return w.Write(0, 8) // csrc_list_byte: no CSRC entries tracked
}

// DecodeDynamicRTP parses a DynamicRTP entry.
func DecodeDynamicRTP(r *bitio.Reader) (DynamicRTP, error) {
	var d DynamicRTP
	cs, err := r.Read(16)
	if err != nil {
		return d, err
	}
	d.UDPChecksum = uint16(cs)

	if _, err := r.Read(1); err != nil { // RX
		return d, err
	}
	if _, err := r.Read(2); err != nil { // version
		return d, err
	}
	if _, err := r.Read(1); err != nil { // padding
		return d, err
	}
	cc, err := r.Read(4)
	if err != nil {
		return d, err
	}
	d.RTP.CC = uint8(cc)

	m, err := r.Read(1)
	if err != nil {
		return d, err
	}
	d.RTP.Marker = m == 1

	pt, err := r.Read(7)
	if err != nil {
		return d, err
	}
	d.RTP.PayloadType = uint8(pt)

	sn, err := r.Read(16)
	if err != nil {
		return d, err
	}
	d.RTP.SequenceNumber = uint16(sn)

	ts, err := r.Read(32)
	if err != nil {
		return d, err
	}
	d.RTP.Timestamp = ts

	if _, err := r.Read(8); err != nil { // csrc_list_byte
		return d, err
	}

	return d, nil
}
