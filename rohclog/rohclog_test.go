package rohclog

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func newBufLogger(buf *bytes.Buffer) *Logger {
	l := log.New(buf)
	l.SetLevel(log.DebugLevel)
	return New(l)
}

func TestDiscard_NeverPanics(t *testing.T) {
	lg := Discard()
	lg.StateTransition(0, "IP-only", "IR", "FO", "steady")
	lg.PacketEncoded(0, "IP-only", "IR", 12)
	lg.CRCFailure(0, "IR", "none")
	lg.RepairOutcome(0, "window-shift", true)
	lg.ContextEvicted(1, "IP-only")
	lg.Dropped(0, assert.AnError)
}

func TestStateTransition_WritesExpectedFields(t *testing.T) {
	var buf bytes.Buffer
	lg := newBufLogger(&buf)

	lg.StateTransition(3, "IP/UDP/RTP", "IR", "SO", "context confirmed")

	out := buf.String()
	assert.Contains(t, out, "state transition")
	assert.Contains(t, out, "cid=3")
	assert.Contains(t, out, "from=IR")
	assert.Contains(t, out, "to=SO")
}

func TestCRCFailure_LogsAtWarnLevel(t *testing.T) {
	var buf bytes.Buffer
	lg := newBufLogger(&buf)

	lg.CRCFailure(5, "UO-1", "crc-repair")

	out := buf.String()
	assert.Contains(t, out, "crc failure")
	assert.Contains(t, out, "cid=5")
	assert.Contains(t, out, "repair=crc-repair")
}

func TestDropped_IncludesCause(t *testing.T) {
	var buf bytes.Buffer
	lg := newBufLogger(&buf)

	lg.Dropped(7, assert.AnError)

	out := buf.String()
	assert.Contains(t, out, "packet dropped")
	assert.Contains(t, out, "cid=7")
}

func TestDefault_ReturnsUsableLogger(t *testing.T) {
	lg := Default()
	assert.NotNil(t, lg)
	lg.ContextEvicted(0, "IP-only")
}
