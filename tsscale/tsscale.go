// Package tsscale implements the RTP scaled-timestamp sub-machine from
// RFC 3095 §4.5.3: a small state machine that detects a constant TS
// stride and, once confident, transmits only TS_SCALED = (TS -
// ts_offset) / ts_stride instead of the full 32-bit timestamp.
package tsscale

import "github.com/kulaginds/rohc/wlsb"

// State is one of the three scaled-TS sub-states.
type State int

const (
	// InitTS: no stride candidate yet; the absolute TS is sent as-is.
	InitTS State = iota
	// InitStride: a stride candidate exists and is being advertised
	// (SDVL-encoded) until the receiver has seen it enough times to
	// trust it.
	InitStride
	// SendScaled: steady state; only the scaled TS is transmitted,
	// W-LSB encoded.
	SendScaled
)

// MinStrideTransmissions is ROHC_INIT_TS_STRIDE_MIN: the number of
// INIT_STRIDE transmissions required before moving to SEND_SCALED.
const MinStrideTransmissions = 3

// Machine tracks one RTP flow's scaled-TS state on the compressor side.
// The decompressor mirrors the same fields but only ever follows where
// the compressor leads, via the dynamic/irregular chain.
type Machine struct {
	State State

	TSStride   uint32
	TSOffset   uint32
	lastTS     uint32
	haveLastTS bool

	strideTxCount int

	// Scaled holds the W-LSB window over TS_SCALED values once in
	// SendScaled state.
	Scaled *wlsb.Window
}

// NewMachine returns a Machine in InitTS with the given W-LSB window
// width for TS_SCALED.
func NewMachine(windowWidth int) *Machine {
	return &Machine{
		State:  InitTS,
		Scaled: wlsb.NewWindow(windowWidth, 32),
	}
}

// Observe feeds the next RTP timestamp through the state machine and
// returns what the compressor should do: whether to send TS absolute or
// scaled, and (in InitStride) whether to re-advertise the stride.
type Decision struct {
	SendAbsolute bool
	SendStride   bool // advertise ts_stride (INIT_STRIDE only)
	Scaled       uint32
}

// Observe advances the state machine for the newly observed TS and
// returns the compressor's transmission decision.
func (m *Machine) Observe(ts uint32) Decision {
	if !m.haveLastTS {
		m.haveLastTS = true
		m.lastTS = ts
		return Decision{SendAbsolute: true}
	}

	if ts == m.lastTS {
		// "Constant TS" special case: stay put until behavior clarifies,
		// regardless of current state.
		m.lastTS = ts
		if m.State == SendScaled && m.TSStride != 0 {
			return Decision{Scaled: (ts - m.TSOffset) / m.TSStride}
		}
		return Decision{SendAbsolute: true}
	}

	switch m.State {
	case InitTS:
		stride := ts - m.lastTS
		m.TSStride = stride
		m.TSOffset = ts % stride
		m.State = InitStride
		m.strideTxCount = 1
		m.lastTS = ts
		return Decision{SendStride: true}

	case InitStride:
		if !m.strideHolds(ts) {
			// Stride candidate was wrong; recompute and restart the
			// advertisement count.
			stride := ts - m.lastTS
			m.TSStride = stride
			m.TSOffset = ts % stride
			m.strideTxCount = 1
			m.lastTS = ts
			return Decision{SendStride: true}
		}
		m.strideTxCount++
		m.lastTS = ts
		if m.strideTxCount >= MinStrideTransmissions {
			m.State = SendScaled
			scaled := (ts - m.TSOffset) / m.TSStride
			m.Scaled.Insert(scaled)
			return Decision{Scaled: scaled}
		}
		return Decision{SendStride: true}

	default: // SendScaled
		if !m.strideHolds(ts) {
			m.State = InitStride
			stride := ts - m.lastTS
			m.TSStride = stride
			m.TSOffset = ts % stride
			m.strideTxCount = 1
			m.lastTS = ts
			return Decision{SendStride: true}
		}
		m.lastTS = ts
		scaled := (ts - m.TSOffset) / m.TSStride
		m.Scaled.Insert(scaled)
		return Decision{Scaled: scaled}
	}
}

// strideHolds reports whether the delta from lastTS to ts is an exact
// multiple of the current stride (a stride violation otherwise).
func (m *Machine) strideHolds(ts uint32) bool {
	if m.TSStride == 0 {
		return false
	}
	delta := ts - m.lastTS
	return delta%m.TSStride == 0
}
