// Package wlsb implements Window-based Least Significant Bits encoding
// (RFC 3095 §4.5.1): the sender transmits only the low k bits of a
// monotonically-evolving field, and the receiver reconstructs the full
// value as the unique candidate inside an interpretation interval built
// around its last known reference(s).
package wlsb

import "errors"

// ErrNoUniqueValue is returned by Decode when the supplied k is too
// small to place any candidate unambiguously in the interpretation
// interval. This should not happen for a k chosen by MinK, but Decode
// validates it defensively since received bits may come from an
// adversarial or corrupted packet.
var ErrNoUniqueValue = errors.New("wlsb: k insufficient for unique decode")

// Window holds the most recent `width` reference values for one tracked
// field (SN, TS, IP-ID, ...), each fieldWidth bits wide. width must be a
// positive power of two; RFC 3095 §4.5.2's default is 4.
type Window struct {
	width      int
	fieldWidth int
	entries    []uint32 // oldest first
}

// NewWindow returns an empty Window. width must be a positive power of
// two; fieldWidth is the bit width of the tracked field (16 for SN, 32
// for TS, 16 for IP-ID offset).
func NewWindow(width, fieldWidth int) *Window {
	if width <= 0 || width&(width-1) != 0 {
		panic("wlsb: width must be a positive power of two")
	}
	return &Window{width: width, fieldWidth: fieldWidth}
}

// Insert records v as the newest reference, evicting the oldest entry
// once the window is at capacity.
func (w *Window) Insert(v uint32) {
	w.entries = append(w.entries, v)
	if len(w.entries) > w.width {
		w.entries = w.entries[len(w.entries)-w.width:]
	}
}

// Values returns the current window contents, oldest first. The caller
// must not mutate the returned slice.
func (w *Window) Values() []uint32 {
	return w.entries
}

// Newest returns the most recently inserted reference.
func (w *Window) Newest() (uint32, bool) {
	if len(w.entries) == 0 {
		return 0, false
	}
	return w.entries[len(w.entries)-1], true
}

// Oldest returns the least recently inserted reference still in the
// window.
func (w *Window) Oldest() (uint32, bool) {
	if len(w.entries) == 0 {
		return 0, false
	}
	return w.entries[0], true
}

// Len reports how many references the window currently holds.
func (w *Window) Len() int {
	return len(w.entries)
}

// modulus returns 2^fieldWidth as a uint64 (fieldWidth up to 32).
func modulus(fieldWidth int) uint64 {
	return uint64(1) << uint(fieldWidth)
}

// forwardDistance returns (v - base) mod 2^fieldWidth, i.e. how far
// forward from base one must travel (wrapping) to reach v.
func forwardDistance(base, v uint32, fieldWidth int) uint64 {
	mod := modulus(fieldWidth)
	return (uint64(v) - uint64(base) + mod) % mod
}

// bitsNeeded returns the minimum k such that d fits in [0, 2^k - 1].
func bitsNeeded(d uint64) int {
	k := 0
	for (uint64(1) << uint(k)) <= d {
		k++
	}
	return k
}

// MinK returns the minimum k in [0, fieldWidth] such that v falls inside
// the interpretation interval [ref - p, ref + 2^k - 1 - p] (mod
// 2^fieldWidth) for every reference currently in the window. Per RFC
// 3095 §4.5.1, this is the encoder's whole contract: the smallest k safe
// against every reference the decoder might still be holding.
func (w *Window) MinK(v uint32, p int) int {
	k := 0
	for _, ref := range w.entries {
		base := wrappingSub(ref, p, w.fieldWidth)
		d := forwardDistance(base, v, w.fieldWidth)
		if needed := bitsNeeded(d); needed > k {
			k = needed
		}
	}
	if k > w.fieldWidth {
		k = w.fieldWidth
	}
	return k
}

// wrappingSub computes (ref - p) mod 2^fieldWidth for a possibly
// negative offset p.
func wrappingSub(ref uint32, p, fieldWidth int) uint32 {
	mod := modulus(fieldWidth)
	v := (int64(ref) - int64(p)) % int64(mod)
	if v < 0 {
		v += int64(mod)
	}
	return uint32(v)
}

// Decode reconstructs the unique value whose low k bits equal bits,
// lying in the interpretation interval [ref - p, ref + 2^k - 1 - p] (mod
// 2^fieldWidth) anchored at the single reference ref. Field width wraps
// at fieldWidth bits (16 for SN/IP-ID offset, 32 for TS).
func Decode(k int, bits uint32, ref uint32, p int, fieldWidth int) (uint32, error) {
	if k < 0 || k > fieldWidth || fieldWidth <= 0 || fieldWidth > 32 {
		return 0, ErrNoUniqueValue
	}
	if k == fieldWidth {
		// The full field was sent; no interval needed.
		return bits & uint32(modulus(fieldWidth)-1), nil
	}

	mod := modulus(fieldWidth)
	maskK := uint64(1)<<uint(k) - 1
	low := uint64(wrappingSub(ref, p, fieldWidth))

	bitsU := uint64(bits) & maskK
	diff := (bitsU - (low & maskK) + maskK + 1) & maskK
	candidate := (low + diff) % mod

	return uint32(candidate), nil
}

// DecodeMulti reconstructs v given it must simultaneously satisfy every
// reference in the window (the decoder side of the same contract MinK
// encodes against). All references must agree on the same candidate;
// disagreement signals a stale window and is reported as
// ErrNoUniqueValue so callers can fall through to CRC-gated repair.
func (w *Window) DecodeMulti(k int, bits uint32, p int) (uint32, error) {
	if len(w.entries) == 0 {
		return 0, ErrNoUniqueValue
	}
	first, err := Decode(k, bits, w.entries[0], p, w.fieldWidth)
	if err != nil {
		return 0, err
	}
	for _, ref := range w.entries[1:] {
		v, err := Decode(k, bits, ref, p, w.fieldWidth)
		if err != nil {
			return 0, err
		}
		if v != first {
			return 0, ErrNoUniqueValue
		}
	}
	return first, nil
}
