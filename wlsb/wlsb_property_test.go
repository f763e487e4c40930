package wlsb

import (
	"testing"

	"pgregory.net/rapid"
)

// TestWLSBDecodeProperty covers spec property 3: for any v, reference set
// R, and k chosen by the encoder's minimum-k rule, the decoder returns v
// exactly.
func TestWLSBDecodeProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		fieldWidth := rapid.SampledFrom([]int{8, 16, 32}).Draw(rt, "fieldWidth")
		windowWidth := rapid.SampledFrom([]int{1, 2, 4, 8}).Draw(rt, "windowWidth")
		p := rapid.IntRange(-2, 2).Draw(rt, "p")

		maxVal := uint32(1)<<uint(fieldWidth) - 1
		if fieldWidth == 32 {
			maxVal = ^uint32(0)
		}

		w := NewWindow(windowWidth, fieldWidth)
		nRefs := rapid.IntRange(1, windowWidth).Draw(rt, "nRefs")
		for i := 0; i < nRefs; i++ {
			ref := rapid.Uint32Range(0, maxVal).Draw(rt, "ref")
			w.Insert(ref)
		}

		v := rapid.Uint32Range(0, maxVal).Draw(rt, "v")
		k := w.MinK(v, p)

		var bits uint32
		if k == 32 {
			bits = v
		} else {
			bits = v & (1<<uint(k) - 1)
		}

		got, err := w.DecodeMulti(k, bits, p)
		if err != nil {
			rt.Fatalf("decode failed for k=%d chosen by MinK: %v", k, err)
		}
		if got != v {
			rt.Fatalf("decode mismatch: v=%d k=%d p=%d got=%d", v, k, p, got)
		}
	})
}
