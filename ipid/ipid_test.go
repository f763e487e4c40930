package ipid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Sequential(t *testing.T) {
	tr := NewTracker()
	tr.Observe(100, 1)
	tr.Observe(101, 2)
	tr.Observe(102, 3)

	assert.Equal(t, Sequential, tr.Behavior())
	assert.True(t, tr.Confirmed())
}

func TestTracker_Zero(t *testing.T) {
	tr := NewTracker()
	tr.Observe(0, 1)
	tr.Observe(0, 2)
	tr.Observe(0, 3)

	assert.Equal(t, Zero, tr.Behavior())
}

func TestTracker_SequentialSwapped(t *testing.T) {
	tr := NewTracker()
	// Byte-swapped sequential: 0x0001, 0x0002, 0x0003 as big-endian
	// IP-IDs show up swapped on the wire as 0x0100, 0x0200, 0x0300.
	tr.Observe(0x0100, 1)
	tr.Observe(0x0200, 2)
	tr.Observe(0x0300, 3)

	assert.Equal(t, SequentialSwapped, tr.Behavior())
}

func TestTracker_RandomNeverConfirms(t *testing.T) {
	tr := NewTracker()
	tr.Observe(5, 1)
	tr.Observe(40000, 2)
	tr.Observe(12, 3)

	assert.Equal(t, Random, tr.Behavior())
	assert.False(t, tr.Confirmed())
}

func TestTracker_String(t *testing.T) {
	assert.Equal(t, "sequential", Sequential.String())
	assert.Equal(t, "zero", Zero.String())
	assert.Equal(t, "random", Random.String())
	assert.Equal(t, "sequential-swap", SequentialSwapped.String())
}
