package bitio

import "errors"

// MaxSDVLValue is the largest integer representable by SDVL: 2^29 - 1.
const MaxSDVLValue = 1<<29 - 1

// ErrSDVLTooLarge is returned when encoding a value that exceeds
// MaxSDVLValue.
var ErrSDVLTooLarge = errors.New("bitio: sdvl value exceeds 2^29-1")

// sdvlForm describes one of SDVL's four length tiers: the number of
// payload bits, the high-bit prefix, and the prefix's own bit width.
type sdvlForm struct {
	payloadBits int
	prefix      uint32
	prefixBits  int
}

var sdvlForms = []sdvlForm{
	{payloadBits: 7, prefix: 0b0, prefixBits: 1},
	{payloadBits: 14, prefix: 0b10, prefixBits: 2},
	{payloadBits: 21, prefix: 0b110, prefixBits: 3},
	{payloadBits: 29, prefix: 0b111, prefixBits: 3},
}

// EncodeSDVL appends the shortest SDVL encoding of value to w.
func EncodeSDVL(w *Writer, value uint32) error {
	if value > MaxSDVLValue {
		return ErrSDVLTooLarge
	}
	for _, f := range sdvlForms {
		if value < 1<<uint(f.payloadBits) || f.payloadBits == 29 {
			if err := w.Write(f.prefix, f.prefixBits); err != nil {
				return err
			}
			return w.Write(value, f.payloadBits)
		}
	}
	return ErrSDVLTooLarge
}

// SDVLLen returns the number of bytes EncodeSDVL would use for value,
// without writing anything.
func SDVLLen(value uint32) int {
	switch {
	case value < 1<<7:
		return 1
	case value < 1<<14:
		return 2
	case value < 1<<21:
		return 3
	default:
		return 4
	}
}

// DecodeSDVL reads one SDVL-encoded value from r, dispatching on the
// leading high-bit prefix.
func DecodeSDVL(r *Reader) (uint32, error) {
	first, err := r.Peek(1)
	if err != nil {
		return 0, err
	}
	if first == 0 {
		_, _ = r.Read(1)
		return r.Read(7)
	}

	two, err := r.Peek(2)
	if err != nil {
		return 0, err
	}
	if two == 0b10 {
		_, _ = r.Read(2)
		return r.Read(14)
	}

	three, err := r.Peek(3)
	if err != nil {
		return 0, err
	}
	_, _ = r.Read(3)
	if three == 0b110 {
		return r.Read(21)
	}
	// 0b111 prefix
	return r.Read(29)
}
