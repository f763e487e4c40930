package wlsb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow_InsertEvicts(t *testing.T) {
	w := NewWindow(4, 16)
	for i := uint32(1); i <= 6; i++ {
		w.Insert(i)
	}
	assert.Equal(t, []uint32{3, 4, 5, 6}, w.Values())

	oldest, ok := w.Oldest()
	require.True(t, ok)
	assert.Equal(t, uint32(3), oldest)

	newest, ok := w.Newest()
	require.True(t, ok)
	assert.Equal(t, uint32(6), newest)
}

func TestMinKAndDecode_SequentialSN(t *testing.T) {
	w := NewWindow(4, 16)
	for i := uint32(100); i < 104; i++ {
		w.Insert(i)
	}

	v := uint32(104)
	k := w.MinK(v, -1)
	require.LessOrEqual(t, k, 16)

	bits := v & (1<<uint(k) - 1)
	got, err := w.DecodeMulti(k, bits, -1)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestDecode_FullFieldWhenKEqualsWidth(t *testing.T) {
	got, err := Decode(16, 0xABCD, 0, 0, 16)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xABCD), got)
}

func TestMinK_GrowsWithDistance(t *testing.T) {
	w := NewWindow(1, 16)
	w.Insert(1000)

	kNear := w.MinK(1001, -1)
	kFar := w.MinK(60000, -1)
	assert.Greater(t, kFar, kNear)
}

func TestWrapAround(t *testing.T) {
	// SN wraps at 16 bits: reference near the top of the field, value
	// just past the wrap point.
	w := NewWindow(1, 16)
	w.Insert(65534)

	v := uint32(2) // 65534 -> 65535 -> 0 -> 1 -> 2
	k := w.MinK(v, -1)
	bits := v & (1<<uint(k) - 1)

	got, err := w.DecodeMulti(k, bits, -1)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}
