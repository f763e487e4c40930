package v2iponly

import "github.com/kulaginds/rohc/ipid"

// fieldNeeds bundles how many W-LSB bits the MSN and IP-ID-offset deltas
// need for the packet currently being classified, plus whether any of
// the dynamic fields Normal packets can't carry (ToS/TTL/DF) changed
// since the last commit.
type fieldNeeds struct {
	msnBits int
	idBits  int // 16 when the IP-ID offset is not predictable (anything but confirmed plain Sequential)

	zeroBehavior   bool // confirmed ipid.Zero: no IP-ID delta needed at all
	ipv4Sequential bool // confirmed plain sequential (not swapped): offset-from-MSN is meaningful

	dynamicFieldsChanged bool // ToS, TTL or DF changed: forces co_common
}

// soPacketType implements the steady-state packet-type selection for
// profile 0x0104: Normal-1, Normal-2, or co_common. FO never reaches
// this table; it always resends the full dynamic chain via co_repair.
func soPacketType(n fieldNeeds) packetForm {
	if n.dynamicFieldsChanged {
		return formCoCommon
	}
	switch {
	case n.zeroBehavior && n.msnBits <= 4:
		return formNormal1
	case n.ipv4Sequential && n.msnBits <= 6 && n.idBits <= 5:
		return formNormal2
	default:
		return formCoCommon
	}
}

// packetForm names which wire shape the SO-state encoder should use.
type packetForm int

const (
	formNormal1 packetForm = iota
	formNormal2
	formCoCommon
)

// ccExt is the co_common packet's extension selector: how wide its MSN
// and IP-ID-offset W-LSB fields are, analogous to profiles/rtp's UOR-2
// extensions but sized for this profile's narrower field set.
type ccExt int

const (
	ccExt0 ccExt = iota
	ccExt1
	ccExt2
)

type ccBudget struct {
	msn, id int
}

var ccBudgets = map[ccExt]ccBudget{
	ccExt0: {msn: 8, id: 0},
	ccExt1: {msn: 8, id: 8},
	ccExt2: {msn: 16, id: 16},
}

// decideCCExt returns the smallest co_common extension whose budget
// covers n, or ccExt2 if no smaller level suffices.
func decideCCExt(n fieldNeeds) ccExt {
	for _, e := range []ccExt{ccExt0, ccExt1} {
		b := ccBudgets[e]
		if n.msnBits <= b.msn && (n.idBits <= b.id || !idNeeded(n)) {
			return e
		}
	}
	return ccExt2
}

// idNeeded reports whether this packet's IP-ID offset must ride in the
// co_common body at all. Only confirmed plain-Sequential behavior has a
// meaningful offset-from-MSN delta to send; Zero needs no IP-ID at all,
// and Random/SequentialSwapped are never reachable here (see
// confirmedPredictable).
func idNeeded(n fieldNeeds) bool {
	return n.ipv4Sequential
}

// confirmedPredictable reports whether the IP-ID behavior is trusted
// enough to leave FO for SO at all: Zero (no IP-ID to send) or
// Sequential (an offset-from-MSN delta reconstructs it). Random and
// SequentialSwapped stay on the FO/co_repair path, which always resends
// the literal IP-ID value rather than a delta.
func confirmedPredictable(n fieldNeeds) bool {
	return n.zeroBehavior || n.ipv4Sequential
}

// ipv4Sequential reports whether tracker has confirmed plain sequential
// behavior, the one case this profile offset-from-MSN encodes. Byte-
// swapped sequential IP-IDs use a different delta formula (RFC 3095
// §5.2's swap case); this profile folds that behavior into the
// co_repair/full-resend path alongside Random rather than carrying a
// second reconstruction formula through Normal-2/co_common.
func ipv4Sequential(tracker *ipid.Tracker) bool {
	if tracker == nil {
		return false
	}
	return tracker.Confirmed() && tracker.Behavior() == ipid.Sequential
}

func zeroBehavior(tracker *ipid.Tracker) bool {
	if tracker == nil {
		return false
	}
	return tracker.Confirmed() && tracker.Behavior() == ipid.Zero
}
