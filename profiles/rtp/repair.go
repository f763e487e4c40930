package rtp

import (
	"math"

	"github.com/kulaginds/rohc/wlsb"
)

// MaxRepairSpan bounds how far from the literal W-LSB interpretation the
// decompressor will search when the first-pass CRC fails, covering the
// common case of a short run of lost packets shifting which reference the
// sender actually meant.
const MaxRepairSpan = 8

// repairSNCandidates returns every SN value the decompressor should
// re-try CRC validation against after a UO-0/UO-1/UOR-2 packet fails its
// first decode: the literal W-LSB interpretation (p=0) plus progressively
// wider offsets, since a lost packet run shifts the interval the sender
// assumed without changing which bits it sent.
func repairSNCandidates(ref uint32, k int, bits uint32) []uint32 {
	seen := make(map[uint32]bool)
	var out []uint32
	for span := 0; span <= MaxRepairSpan; span++ {
		for _, p := range []int{span, -span} {
			v, err := wlsb.Decode(k, bits, ref, p, 16)
			if err != nil || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
			if span == 0 {
				break // p=0 and p=-0 are the same candidate
			}
		}
	}
	return out
}

// repairClockCandidates returns candidate absolute timestamps to try when
// a scaled-TS packet's decoded value disagrees with the stride the
// machine currently believes (e.g. a lost packet broke the run of
// regularly-spaced timestamps). It walks forward from the last known TS
// in stride-sized steps, covering up to maxGap missed packets.
func repairClockCandidates(lastTS, stride uint32, maxGap int) []uint32 {
	if stride == 0 {
		return nil
	}
	out := make([]uint32, 0, maxGap)
	for i := 1; i <= maxGap; i++ {
		out = append(out, lastTS+uint32(i)*stride)
	}
	return out
}

// clockCandidate pairs an SN guess with the absolute TS repairClockCandidates
// derived alongside it, for the UO-1/UOR-2 CRC-failure path to try once
// the ordinary W-LSB repair search has already been exhausted.
type clockCandidate struct {
	sn uint16
	ts uint32
}

// clockRepairCandidates estimates how many packets were lost since the
// last commit from how the gap between this packet's arrival and the
// last committed one compares to the flow's running average inter-
// arrival gap, then pairs that estimate's range with the TS the scaled-TS
// stride would predict for each guess. Returns nil whenever any input
// needed for the estimate (an arrival clock, a prior arrival, a nonzero
// average gap, or a settled TS stride) is missing.
func clockRepairCandidates(dc *DecompContext, arrivalTS int64) []clockCandidate {
	if arrivalTS <= 0 || !dc.haveArrival || dc.avgArrivalGap <= 0 {
		return nil
	}
	gap := arrivalTS - dc.lastArrivalTS
	if gap <= 0 {
		return nil
	}
	estimate := int(math.Round(float64(gap)/dc.avgArrivalGap)) - 1
	if estimate <= 0 {
		return nil
	}
	if estimate > MaxRepairSpan {
		estimate = MaxRepairSpan
	}

	tss := repairClockCandidates(dc.lastRTP.Timestamp, dc.flow.ts.TSStride, estimate)
	out := make([]clockCandidate, len(tss))
	for i, ts := range tss {
		out[i] = clockCandidate{sn: dc.lastRTP.SequenceNumber + uint16(i+1), ts: ts}
	}
	return out
}

// observeArrival folds arrivalTS into the running inter-arrival average
// clockRepairCandidates estimates loss from. arrivalTS<=0 means the
// caller has no clock to offer (the plain Decompress entry point), and
// leaves the running average untouched.
func (dc *DecompContext) observeArrival(arrivalTS int64) {
	if arrivalTS <= 0 {
		return
	}
	if dc.haveArrival {
		gap := float64(arrivalTS - dc.lastArrivalTS)
		if gap > 0 {
			const alpha = 0.25
			if dc.avgArrivalGap == 0 {
				dc.avgArrivalGap = gap
			} else {
				dc.avgArrivalGap = alpha*gap + (1-alpha)*dc.avgArrivalGap
			}
		}
	}
	dc.lastArrivalTS = arrivalTS
	dc.haveArrival = true
}
