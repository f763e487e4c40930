package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate_WidthMasking(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}

	assert.LessOrEqual(t, CRC3.Calculate(data), uint8(0x7))
	assert.LessOrEqual(t, CRC7.Calculate(data), uint8(0x7f))
	assert.Equal(t, Width3, CRC3.Width())
	assert.Equal(t, Width7, CRC7.Width())
	assert.Equal(t, Width8, CRC8.Width())
}

func TestCalculate_Deterministic(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	a := CRC8.Calculate(data)
	b := CRC8.Calculate(append([]byte(nil), data...))
	assert.Equal(t, a, b)
}

func TestCalculate_SensitiveToSingleBitFlip(t *testing.T) {
	base := []byte{0x10, 0x20, 0x30, 0x40}
	flipped := append([]byte(nil), base...)
	flipped[2] ^= 0x01

	assert.NotEqual(t, CRC8.Calculate(base), CRC8.Calculate(flipped))
}

// TestCalculate_CheckValue verifies each width against the check value
// the CRC catalogue defines for CRC-3/ROHC, CRC-7/ROHC and CRC-8/ROHC: the
// CRC of the ASCII string "123456789" under that variant's parameters.
// This is the test that would have caught Width8's polynomial being
// entered in its bit-reversed form (0xe0) instead of RFC 3095 §5.9.1's
// non-reflected 0x07: the masking/determinism/bit-flip tests above all
// pass under either polynomial, since they never check against a known
// external value.
func TestCalculate_CheckValue(t *testing.T) {
	data := []byte("123456789")

	assert.Equal(t, uint8(0x6), CRC3.Calculate(data))
	assert.Equal(t, uint8(0x53), CRC7.Calculate(data))
	assert.Equal(t, uint8(0xd0), CRC8.Calculate(data))
}
