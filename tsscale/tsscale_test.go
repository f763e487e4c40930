package tsscale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_InitToScaled(t *testing.T) {
	m := NewMachine(4)

	d := m.Observe(1000)
	assert.True(t, d.SendAbsolute)
	assert.Equal(t, InitTS, m.State)

	d = m.Observe(1160) // stride 160
	assert.True(t, d.SendStride)
	assert.Equal(t, InitStride, m.State)
	assert.Equal(t, uint32(160), m.TSStride)

	d = m.Observe(1320)
	assert.True(t, d.SendStride)
	assert.Equal(t, InitStride, m.State)

	d = m.Observe(1480)
	require.Equal(t, SendScaled, m.State)
	assert.Equal(t, (uint32(1480)-m.TSOffset)/160, d.Scaled)
}

func TestMachine_ConstantTSStaysPut(t *testing.T) {
	m := NewMachine(4)
	m.Observe(500)
	d := m.Observe(500)
	assert.True(t, d.SendAbsolute)
	assert.Equal(t, InitTS, m.State)
}

func TestMachine_StrideViolationFallsBack(t *testing.T) {
	m := NewMachine(4)
	m.Observe(0)
	m.Observe(160)
	m.Observe(320)
	_ = m.Observe(480) // now SendScaled
	require.Equal(t, SendScaled, m.State)

	d := m.Observe(481) // not a multiple of 160: stride violation
	assert.True(t, d.SendStride)
	assert.Equal(t, InitStride, m.State)
	assert.Equal(t, uint32(1), m.TSStride)
}
