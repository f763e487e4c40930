package v2iponly

import "github.com/kulaginds/rohc/wlsb"

// MaxRepairSpan bounds how far from the literal W-LSB interpretation the
// decompressor will search when the first-pass CRC fails, covering the
// common case of a short run of lost packets shifting which reference
// the sender actually meant.
const MaxRepairSpan = 8

// repairMSNCandidates returns every MSN value the decompressor should
// re-try CRC validation against after a Normal/co_common packet fails
// its first decode: the negotiated reorder_ratio's literal interval
// shift plus progressively wider offsets around it.
func repairMSNCandidates(ref uint32, k int, bits uint32, baseShift int) []uint32 {
	seen := make(map[uint32]bool)
	var out []uint32
	for span := 0; span <= MaxRepairSpan; span++ {
		for _, p := range []int{baseShift + span, baseShift - span} {
			v, err := wlsb.Decode(k, bits, ref, p, 16)
			if err != nil || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
			if span == 0 {
				break
			}
		}
	}
	return out
}
