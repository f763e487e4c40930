// Package profile defines the polymorphic profile capability set every
// ROHC compression scheme implements, and a construction-scoped registry
// of them. This replaces the reference C library's per-profile
// function-pointer tables (create, destroy, check_context, parse,
// encode, decide_state, code_static, code_dynamic, extension_decide)
// with a Go interface pair implemented once per profile.
package profile

import (
	"errors"

	"github.com/kulaginds/rohc/wire"
)

// ID is a ROHC profile identifier (RFC 3095 §8, RFC 5225 §10).
type ID uint16

const (
	Uncompressed  ID = 0x0000
	IPUDPRTP      ID = 0x0001
	IPUDP         ID = 0x0002
	IPESP         ID = 0x0003
	IPOnly        ID = 0x0004
	IPTCP         ID = 0x0006
	IPUDPLite     ID = 0x0007
	V2Uncompressed ID = 0x0100
	V2IPUDPRTP    ID = 0x0101
	V2IPUDP       ID = 0x0102
	V2IPESP       ID = 0x0103
	V2IPOnly      ID = 0x0104
	V2IPTCP       ID = 0x0106
	V2IPUDPLite   ID = 0x0107
)

func (id ID) String() string {
	switch id {
	case Uncompressed:
		return "Uncompressed"
	case IPUDPRTP:
		return "IP/UDP/RTP"
	case IPUDP:
		return "IP/UDP"
	case IPESP:
		return "IP/ESP"
	case IPOnly:
		return "IP-only"
	case IPTCP:
		return "IP/TCP"
	case IPUDPLite:
		return "IP/UDPLite"
	case V2Uncompressed:
		return "ROHCv2 Uncompressed"
	case V2IPUDPRTP:
		return "ROHCv2 IP/UDP/RTP"
	case V2IPUDP:
		return "ROHCv2 IP/UDP"
	case V2IPESP:
		return "ROHCv2 IP/ESP"
	case V2IPOnly:
		return "ROHCv2 IP-only"
	case V2IPTCP:
		return "ROHCv2 IP/TCP"
	case V2IPUDPLite:
		return "ROHCv2 IP/UDPLite"
	default:
		return "unknown"
	}
}

// IsV2 reports whether id belongs to the RFC 5225 (ROHCv2) family.
func (id ID) IsV2() bool {
	return id >= 0x0100
}

// ErrUnknownProfile is returned when a registry lookup misses.
var ErrUnknownProfile = errors.New("profile: unknown profile id")

// Compressor is the capability set a profile exposes on the compressor
// side. Concrete profiles (profiles/rtp, profiles/v2iponly,
// profiles/simple) implement this against their own context type hidden
// behind the opaque Context.
type Compressor interface {
	ID() ID

	// Match reports whether pkt belongs to the flow this context tracks
	// (the "check_context" capability).
	Match(ctx Context, pkt *wire.Packet) bool

	// NewContext builds the initial context state for the first packet
	// of a new flow ("create").
	NewContext(pkt *wire.Packet) (Context, error)

	// Compress classifies field changes, decides state and packet type,
	// and encodes pkt into a ROHC packet using ctx as the reference
	// state. It returns the encoded bytes and the (possibly updated)
	// context to commit if the caller accepts this transmission.
	Compress(ctx Context, pkt *wire.Packet) (out []byte, next Context, err error)
}

// Decompressor is the capability set a profile exposes on the
// decompressor side.
type Decompressor interface {
	ID() ID

	// NewContext builds a context from an IR packet's static chain
	// ("create" triggered by IR receipt).
	NewContext(staticChain []byte) (Context, error)

	// Decompress parses packet, decodes it against ctx, validates by
	// CRC, and returns the reconstructed packet plus the context to
	// commit on success.
	Decompress(ctx Context, packet []byte) (out *wire.Packet, next Context, err error)
}

// Refreshable is implemented by a compressor Context that knows how to
// force itself back to its flow's initial (IR) state. The facade calls
// this to drive periodic U-mode refreshes (comp_set_features'
// TIME_BASED_REFRESHES): a context that doesn't implement it is simply
// left alone, since not every profile's state machine has a notion of
// "the initial state" worth forcing a return to outside normal change
// detection.
type Refreshable interface {
	ForceRefresh() Context
}

// ClockAware is implemented by a profile Decompressor whose CRC-failure
// repair path can use the packet's wall-clock arrival time (RFC 3095
// §4.5.3's clock-based repair: when the usual W-LSB interpretation
// fails, retry with an SN jump consistent with the inter-arrival gap).
// The facade calls DecompressWithClock instead of Decompress when a
// Decompressor implements this, threading the caller-supplied arrival
// timestamp through. A Decompressor that doesn't implement it (no
// arrival-clock heuristic worth running) is simply called via the plain
// Decompress method.
type ClockAware interface {
	DecompressWithClock(ctx Context, packet []byte, arrivalTS int64) (out *wire.Packet, next Context, err error)
}

// Context is an opaque per-flow state blob owned by a profile
// implementation. The context table (rohccontext) stores these without
// knowing their concrete shape; only the owning profile type-asserts
// them back.
type Context interface {
	// ProfileID identifies which profile owns this context, so the
	// table can route packets to the right Compressor/Decompressor
	// without a type switch at the call site.
	ProfileID() ID
}

// CompressorRegistry maps profile IDs to enabled compressor
// implementations. Constructed per compressor instance rather than
// shared process-wide, so separate compressors can enable different
// profile sets.
type CompressorRegistry struct {
	byID map[ID]Compressor
}

// NewCompressorRegistry returns an empty registry, created fresh per
// compressor instance rather than shared process-wide.
func NewCompressorRegistry() *CompressorRegistry {
	return &CompressorRegistry{byID: make(map[ID]Compressor)}
}

// Enable registers p, making it available for Match/Compress.
func (r *CompressorRegistry) Enable(p Compressor) {
	r.byID[p.ID()] = p
}

// Get returns the compressor enabled for id, if any.
func (r *CompressorRegistry) Get(id ID) (Compressor, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// All returns every enabled compressor, in no particular order. Used to
// find which profile matches an outgoing packet when no existing
// context claims it.
func (r *CompressorRegistry) All() []Compressor {
	out := make([]Compressor, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	return out
}

// DecompressorRegistry is the decompressor-side counterpart.
type DecompressorRegistry struct {
	byID map[ID]Decompressor
}

// NewDecompressorRegistry returns an empty registry.
func NewDecompressorRegistry() *DecompressorRegistry {
	return &DecompressorRegistry{byID: make(map[ID]Decompressor)}
}

// Enable registers p.
func (r *DecompressorRegistry) Enable(p Decompressor) {
	r.byID[p.ID()] = p
}

// Get returns the decompressor enabled for id, if any.
func (r *DecompressorRegistry) Get(id ID) (Decompressor, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// All returns every enabled decompressor, in no particular order.
func (r *DecompressorRegistry) All() []Decompressor {
	out := make([]Decompressor, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	return out
}
