package wire

import "github.com/kulaginds/rohc/bitio"

// EncodeStaticIPv4 writes the IPv4 static chain entry (RFC 3095 §5.7.7.4):
// ver(4)|innermost(1)|reserved(3)|protocol(8)|src_addr(32)|dst_addr(32).
func EncodeStaticIPv4(w *bitio.Writer, h IPv4Header) error {
	innermost := uint32(0)
	if h.Innermost {
		innermost = 1
	}
	if err := w.Write(4, 4); err != nil { // version
		return err
	}
	if err := w.Write(innermost, 1); err != nil {
		return err
	}
	if err := w.Write(0, 3); err != nil { // reserved
		return err
	}
	if err := w.Write(uint32(h.Protocol), 8); err != nil {
		return err
	}
	if err := w.WriteBytes(h.SrcAddr[:]); err != nil {
		return err
	}
	return w.WriteBytes(h.DstAddr[:])
}

// DecodeStaticIPv4 parses an IPv4 static chain entry.
func DecodeStaticIPv4(r *bitio.Reader) (IPv4Header, error) {
	var h IPv4Header
	if _, err := r.Read(4); err != nil { // version, assumed 4
		return h, err
	}
	innermost, err := r.Read(1)
	if err != nil {
		return h, err
	}
	h.Innermost = innermost == 1
	if _, err := r.Read(3); err != nil { // reserved
		return h, err
	}
	proto, err := r.Read(8)
	if err != nil {
		return h, err
	}
	h.Protocol = uint8(proto)

	src, err := r.ReadBytes(4)
	if err != nil {
		return h, err
	}
	copy(h.SrcAddr[:], src)

	dst, err := r.ReadBytes(4)
	if err != nil {
		return h, err
	}
	copy(h.DstAddr[:], dst)

	return h, nil
}

// EncodeStaticIPv6 writes the IPv6 static chain entry: a 20-bit flow
// label variant when HasFlowLabel, or a flow-label-absent variant
// otherwise.
func EncodeStaticIPv6(w *bitio.Writer, h IPv6Header) error {
	innermost := uint32(0)
	if h.Innermost {
		innermost = 1
	}
	hasFlow := uint32(0)
	if h.HasFlowLabel {
		hasFlow = 1
	}
	if err := w.Write(6, 4); err != nil {
		return err
	}
	if err := w.Write(innermost, 1); err != nil {
		return err
	}
	if err := w.Write(hasFlow, 1); err != nil {
		return err
	}
	if err := w.Write(0, 2); err != nil { // reserved
		return err
	}
	if err := w.Write(uint32(h.NextHeader), 8); err != nil {
		return err
	}
	if h.HasFlowLabel {
		if err := w.Write(h.FlowLabel&0xFFFFF, 20); err != nil {
			return err
		}
	}
	if err := w.WriteBytes(h.SrcAddr[:]); err != nil {
		return err
	}
	return w.WriteBytes(h.DstAddr[:])
}

// DecodeStaticIPv6 parses an IPv6 static chain entry.
func DecodeStaticIPv6(r *bitio.Reader) (IPv6Header, error) {
	var h IPv6Header
	if _, err := r.Read(4); err != nil {
		return h, err
	}
	innermost, err := r.Read(1)
	if err != nil {
		return h, err
	}
	h.Innermost = innermost == 1

	hasFlow, err := r.Read(1)
	if err != nil {
		return h, err
	}
	h.HasFlowLabel = hasFlow == 1

	if _, err := r.Read(2); err != nil { // reserved
		return h, err
	}
	nh, err := r.Read(8)
	if err != nil {
		return h, err
	}
	h.NextHeader = uint8(nh)

	if h.HasFlowLabel {
		fl, err := r.Read(20)
		if err != nil {
			return h, err
		}
		h.FlowLabel = fl
	}

	src, err := r.ReadBytes(16)
	if err != nil {
		return h, err
	}
	copy(h.SrcAddr[:], src)

	dst, err := r.ReadBytes(16)
	if err != nil {
		return h, err
	}
	copy(h.DstAddr[:], dst)

	return h, nil
}

// EncodeStaticUDP writes the UDP static chain: sport(16)|dport(16).
func EncodeStaticUDP(w *bitio.Writer, h UDPHeader) error {
	if err := w.Write(uint32(h.SrcPort), 16); err != nil {
		return err
	}
	return w.Write(uint32(h.DstPort), 16)
}

// DecodeStaticUDP parses the UDP static chain.
func DecodeStaticUDP(r *bitio.Reader) (UDPHeader, error) {
	var h UDPHeader
	sport, err := r.Read(16)
	if err != nil {
		return h, err
	}
	h.SrcPort = uint16(sport)
	dport, err := r.Read(16)
	if err != nil {
		return h, err
	}
	h.DstPort = uint16(dport)
	return h, nil
}

// EncodeStaticRTP writes the RTP static chain: SSRC(32).
func EncodeStaticRTP(w *bitio.Writer, h RTPHeader) error {
	return w.Write(h.SSRC, 32)
}

// DecodeStaticRTP parses the RTP static chain.
func DecodeStaticRTP(r *bitio.Reader) (RTPHeader, error) {
	var h RTPHeader
	ssrc, err := r.Read(32)
	if err != nil {
		return h, err
	}
	h.SSRC = ssrc
	return h, nil
}
