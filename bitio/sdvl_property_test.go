package bitio

import (
	"testing"

	"pgregory.net/rapid"
)

// TestSDVLRoundTripProperty covers spec property 4: decode(encode(n)) == n
// for all n in [0, 2^29-1], and that encode(n) always picks the minimum
// number of bytes for its magnitude.
func TestSDVLRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.Uint32Range(0, MaxSDVLValue).Draw(rt, "n")

		w := NewWriter()
		if err := EncodeSDVL(w, n); err != nil {
			rt.Fatalf("encode(%d): %v", n, err)
		}
		if got := len(w.Bytes()); got != SDVLLen(n) {
			rt.Fatalf("encode(%d) used %d bytes, want minimum %d", n, got, SDVLLen(n))
		}

		r := NewReader(w.Bytes())
		got, err := DecodeSDVL(r)
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		if got != n {
			rt.Fatalf("round trip mismatch: encoded %d, decoded %d", n, got)
		}
	})
}

// TestBitioRoundTripProperty covers arbitrary bit-width fields packed
// back-to-back across byte boundaries.
func TestBitioRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 40).Draw(rt, "nFields")

		widths := make([]int, n)
		values := make([]uint32, n)
		w := NewWriter()
		for i := 0; i < n; i++ {
			width := rapid.IntRange(1, 32).Draw(rt, "width")
			var v uint32
			if width == 32 {
				v = rapid.Uint32().Draw(rt, "value")
			} else {
				v = rapid.Uint32Range(0, uint32(1<<uint(width)-1)).Draw(rt, "value")
			}
			widths[i] = width
			values[i] = v
			if err := w.Write(v, width); err != nil {
				rt.Fatalf("write: %v", err)
			}
		}

		r := NewReader(w.Bytes())
		for i := 0; i < n; i++ {
			got, err := r.Read(widths[i])
			if err != nil {
				rt.Fatalf("read field %d: %v", i, err)
			}
			if got != values[i] {
				rt.Fatalf("field %d: wrote %d width %d, read %d", i, values[i], widths[i], got)
			}
		}
	})
}
