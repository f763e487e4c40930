// Package rohclog is the structured event sink every compressor/
// decompressor instance writes to. It wraps github.com/charmbracelet/log
// rather than a hand-rolled logger: every call site attaches a level and
// a field list (CID, profile, state, counters) instead of interpolating
// values into a format string. A no-op Discard sink is always valid, the
// Go equivalent of the reference library's nullable variadic trace
// callback.
package rohclog

import (
	"io"

	"github.com/charmbracelet/log"
)

// Logger is the event sink passed to compressor/decompressor
// constructors. The zero value is not usable; use New or Discard.
type Logger struct {
	l *log.Logger
}

// New wraps an existing charmbracelet/log.Logger.
func New(l *log.Logger) *Logger {
	return &Logger{l: l}
}

// Discard returns a Logger that drops every event. This is the default
// for instances that don't opt into logging.
func Discard() *Logger {
	return &Logger{l: log.New(io.Discard)}
}

// Default returns a Logger writing to stderr at Info level, suitable for
// cmd/rohcstat and ad-hoc debugging.
func Default() *Logger {
	l := log.Default()
	l.SetLevel(log.InfoLevel)
	return &Logger{l: l}
}

// StateTransition logs a compressor or decompressor state change.
func (lg *Logger) StateTransition(cid int, profile string, from, to string, reason string) {
	lg.l.Info("state transition",
		"cid", cid,
		"profile", profile,
		"from", from,
		"to", to,
		"reason", reason,
	)
}

// PacketEncoded logs the packet type the compressor chose for a CID.
func (lg *Logger) PacketEncoded(cid int, profile string, packetType string, bytes int) {
	lg.l.Debug("packet encoded",
		"cid", cid,
		"profile", profile,
		"type", packetType,
		"bytes", bytes,
	)
}

// CRCFailure logs a decompressor CRC mismatch and whether repair is being
// attempted.
func (lg *Logger) CRCFailure(cid int, packetType string, repairAttempt string) {
	lg.l.Warn("crc failure",
		"cid", cid,
		"type", packetType,
		"repair", repairAttempt,
	)
}

// RepairOutcome logs the result of a repair attempt.
func (lg *Logger) RepairOutcome(cid int, strategy string, succeeded bool) {
	lg.l.Info("repair attempt",
		"cid", cid,
		"strategy", strategy,
		"succeeded", succeeded,
	)
}

// ContextEvicted logs LRU eviction of a compressor context.
func (lg *Logger) ContextEvicted(cid int, profile string) {
	lg.l.Info("context evicted", "cid", cid, "profile", profile)
}

// Dropped logs a packet drop with its cause.
func (lg *Logger) Dropped(cid int, cause error) {
	lg.l.Warn("packet dropped", "cid", cid, "cause", cause)
}
