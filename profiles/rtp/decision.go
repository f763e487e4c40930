package rtp

import (
	"github.com/kulaginds/rohc/ipid"
	"github.com/kulaginds/rohc/wire"
)

// fieldNeeds bundles how many W-LSB bits each candidate field needs for
// the packet currently being classified, plus whether the RTP marker bit
// is set and whether any "irregular" RTP dynamic field (SSRC is static so
// excluded; PT/CC) changed since the last commit.
type fieldNeeds struct {
	snBits int
	tsBits int
	idBits int // 8 when the innermost header's IP-ID is not predictable

	marker       bool
	ipv4Sequential bool // innermost header is IPv4 with a confirmed non-random (sequential, swapped or zero) behavior
	rtpFieldsChanged bool
}

// soPacketType implements the profile 0x0001 packet-type selection
// table for SO: which of UO-0 / UO-1 family / UOR-2 family the
// compressor may use for the next packet, given the current field
// deltas. FO never reaches this table; it always resends the full
// dynamic chain via encodeAsFO so the decompressor can catch up to any
// field it missed.
func soPacketType(n fieldNeeds) wire.PacketType {
	if n.rtpFieldsChanged {
		return wire.PacketUOR2RTP
	}

	if !n.ipv4Sequential {
		switch {
		case n.snBits <= 4 && n.tsBits == 0 && !n.marker:
			return wire.PacketUO0
		case n.snBits <= 4 && n.tsBits <= 6:
			return wire.PacketUO1RTP
		default:
			return wire.PacketUOR2RTP
		}
	}

	switch {
	case n.snBits <= 4 && n.idBits == 0 && n.tsBits == 0 && !n.marker:
		return wire.PacketUO0
	case n.snBits <= 4 && n.idBits == 0 && n.tsBits <= 5:
		return wire.PacketUO1TS
	case n.snBits <= 4 && n.idBits <= 5 && n.tsBits == 0 && !n.marker:
		return wire.PacketUO1ID
	case n.idBits > 0 && n.idBits <= 8:
		return wire.PacketUOR2ID
	default:
		return wire.PacketUOR2TS
	}
}

// Extension is the RFC 3095 §5.7.5 Ext-0..Ext-3 selector for UO-1/UOR-2
// packets whose native field budget is too small for the current deltas.
type Extension int

const (
	Ext0 Extension = iota
	Ext1
	Ext2
	Ext3
)

type extBudget struct {
	sn, ts, id int
}

// extBudgets bounds how many W-LSB bits of SN/TS/IP-ID a UOR-2 packet
// carries in total at each extension level. Ext-3 is "no smaller
// extension fits", and it is also what rtpFieldsChanged forces regardless
// of bit budgets; the PT and CC values themselves travel with the
// UOR-2-RTP packet type that such a change selects, not with Ext-3.
var extBudgets = map[Extension]extBudget{
	Ext0: {sn: 5, ts: 0, id: 0},
	Ext1: {sn: 5, ts: 8, id: 0},
	Ext2: {sn: 5, ts: 16, id: 8},
	Ext3: {sn: 16, ts: 32, id: 16},
}

// decideExtension returns the smallest extension whose budget covers n,
// or Ext3 if forced by an RTP dynamic field change or if no smaller level
// suffices.
func decideExtension(n fieldNeeds) Extension {
	if n.rtpFieldsChanged {
		return Ext3
	}
	for _, e := range []Extension{Ext0, Ext1, Ext2} {
		b := extBudgets[e]
		if n.snBits <= b.sn && n.tsBits <= b.ts && n.idBits <= b.id {
			return e
		}
	}
	return Ext3
}

// innermostIPv4Sequential reports whether the innermost IP header is IPv4
// and its IP-ID tracker has confirmed a non-random behavior (sequential,
// swapped or zero), i.e. the case the packet-type table calls
// "IPv4-non-rnd".
func innermostIPv4Sequential(pkt *wire.Packet, tracker *ipid.Tracker) bool {
	inner, ok := pkt.Innermost()
	if !ok || inner.Version != 4 || tracker == nil {
		return false
	}
	return tracker.Confirmed() && tracker.Behavior() != ipid.Random
}
