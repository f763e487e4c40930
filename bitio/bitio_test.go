package bitio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_ReadBits(t *testing.T) {
	data := []byte{0xAB, 0xCD, 0xEF, 0x12}
	r := NewReader(data)

	v, err := r.Read(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0A), v)

	v, err = r.Read(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xBC), v)

	v, err = r.Read(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0D), v)
}

func TestReader_ShortRead(t *testing.T) {
	r := NewReader([]byte{0xFF})
	_, err := r.Read(9)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestReader_Peek(t *testing.T) {
	r := NewReader([]byte{0xF0})
	v, err := r.Peek(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xF), v)

	// Peek must not advance the cursor.
	v, err = r.Read(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xF), v)
}

func TestWriter_WriteBits(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.Write(0x0A, 4))
	require.NoError(t, w.Write(0xBC, 8))
	require.NoError(t, w.Write(0x0D, 4))

	assert.Equal(t, []byte{0xAB, 0xCD}, w.Bytes())
}

func TestWriter_AcrossByteBoundary(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.Write(0b1, 1))
	require.NoError(t, w.Write(0b0000000, 7))
	assert.Equal(t, []byte{0x80}, w.Bytes())
}

func TestRoundTrip_ArbitraryFields(t *testing.T) {
	widths := []int{1, 3, 4, 7, 8, 13, 16, 21, 32}
	values := []uint32{0, 1, 5, 0x7F, 0xFF, 0x1FFF, 0xFFFF, 0x1FFFFF, 0xFFFFFFFF}

	w := NewWriter()
	for i, width := range widths {
		v := values[i] & (1<<uint(width) - 1)
		if width == 32 {
			v = values[i]
		}
		require.NoError(t, w.Write(v, width))
	}

	r := NewReader(w.Bytes())
	for i, width := range widths {
		want := values[i] & (1<<uint(width) - 1)
		if width == 32 {
			want = values[i]
		}
		got, err := r.Read(width)
		require.NoError(t, err)
		assert.Equal(t, want, got, "field %d width %d", i, width)
	}
}

func TestSDVL_MinimumForm(t *testing.T) {
	cases := []struct {
		value   uint32
		nBytes  int
	}{
		{0, 1},
		{0x7F, 1},
		{0x80, 2},
		{0x3FFF, 2},
		{0x4000, 3},
		{0x1FFFFF, 3},
		{0x200000, 4},
		{MaxSDVLValue, 4},
	}
	for _, c := range cases {
		w := NewWriter()
		require.NoError(t, EncodeSDVL(w, c.value))
		assert.Len(t, w.Bytes(), c.nBytes, "value %d", c.value)
		assert.Equal(t, c.nBytes, SDVLLen(c.value))
	}
}

func TestSDVL_TooLarge(t *testing.T) {
	w := NewWriter()
	err := EncodeSDVL(w, MaxSDVLValue+1)
	assert.ErrorIs(t, err, ErrSDVLTooLarge)
}

func TestSDVL_RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x7F, 0x80, 0x3FFF, 0x4000, 0x1FFFFF, 0x200000, MaxSDVLValue}
	for _, v := range values {
		w := NewWriter()
		require.NoError(t, EncodeSDVL(w, v))

		r := NewReader(w.Bytes())
		got, err := DecodeSDVL(r)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
