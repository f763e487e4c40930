// Package decompressor is the public decompressor-side API: decomp_new,
// decomp_enable_profiles, decompress (spec.md §6). It owns a
// rohccontext.Table keyed by the CID carried on the wire (no LRU
// eviction: decompressor contexts are only destroyed by explicit Free or
// a caller-driven timeout) and a profile.DecompressorRegistry of the
// profiles the caller has enabled.
package decompressor

import (
	"errors"
	"fmt"

	"github.com/kulaginds/rohc/bitio"
	"github.com/kulaginds/rohc/feedback"
	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/profiles/rtp"
	"github.com/kulaginds/rohc/profiles/simple"
	"github.com/kulaginds/rohc/profiles/v2iponly"
	"github.com/kulaginds/rohc/rohccontext"
	"github.com/kulaginds/rohc/rohclog"
	"github.com/kulaginds/rohc/wire"
)

// Status is the outcome of a Decompress call (spec.md §6:
// {OK, NO_CONTEXT, BAD_CRC, MALFORMED, ...}).
type Status int

const (
	OK Status = iota
	NoContext
	BadCRC
	Malformed
	ProfileMismatch
	Error
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case NoContext:
		return "NO_CONTEXT"
	case BadCRC:
		return "BAD_CRC"
	case Malformed:
		return "MALFORMED"
	case ProfileMismatch:
		return "PROFILE_MISMATCH"
	case Error:
		return "ERROR"
	default:
		return "unknown"
	}
}

// ErrMalformed is returned when packet is too short to carry even a CID
// prefix and a discriminator byte.
var ErrMalformed = errors.New("decompressor: malformed packet")

// Decompressor is one decompressor instance: one context table keyed by
// wire CID, one set of enabled profiles, one operating mode.
type Decompressor struct {
	table    *rohccontext.Table
	registry *profile.DecompressorRegistry
	log      *rohclog.Logger

	cidType   rohccontext.CIDType
	mode      rohccontext.Mode
	wlsbWidth int
}

// Option configures a Decompressor at construction time.
type Option func(*Decompressor)

// WithLogger sets the structured event sink. Absent this option, events
// are discarded.
func WithLogger(lg *rohclog.Logger) Option {
	return func(d *Decompressor) { d.log = lg }
}

// WithWLSBWindowWidth overrides the W-LSB window width new RTP flows are
// tracked with; see compressor.WithWLSBWindowWidth.
func WithWLSBWindowWidth(width int) Option {
	return func(d *Decompressor) { d.wlsbWidth = width }
}

// NewDecompressor returns a Decompressor for the given cid_type/mode
// (decomp_new) with no profiles enabled yet; call EnableProfiles before
// Decompress.
func NewDecompressor(cidType rohccontext.CIDType, maxCID int, mode rohccontext.Mode, opts ...Option) *Decompressor {
	d := &Decompressor{
		registry:  profile.NewDecompressorRegistry(),
		log:       rohclog.Discard(),
		cidType:   cidType,
		mode:      mode,
		wlsbWidth: rtp.DefaultWindowWidth,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.table = rohccontext.New(cidType, maxCID, false)
	return d
}

// EnableProfiles registers a concrete Decompressor implementation for
// each id (decomp_enable_profiles).
func (d *Decompressor) EnableProfiles(ids ...profile.ID) error {
	for _, id := range ids {
		p, err := newProfileDecompressor(id, d.wlsbWidth)
		if err != nil {
			return fmt.Errorf("decompressor: enable profile %s: %w", id, err)
		}
		d.registry.Enable(p)
	}
	return nil
}

func newProfileDecompressor(id profile.ID, wlsbWidth int) (profile.Decompressor, error) {
	switch id {
	case profile.IPUDPRTP:
		return rtp.NewDecompressorWithWidth(wlsbWidth), nil
	case profile.V2IPOnly:
		return v2iponly.NewDecompressor(), nil
	default:
		return simple.NewDecompressor(id)
	}
}

// Decompress parses packet (which may carry leading piggybacked
// feedback elements ahead of the actual ROHC packet, RFC 3095 §5.2.1),
// routes it to the context its CID names, decodes it, and returns the
// reconstructed packet. arrivalTS is the caller-supplied wall-clock
// timestamp: a profile's Decompressor that implements profile.ClockAware
// (profiles/rtp, for its clock-based repair fallback) receives it via
// DecompressWithClock; every other profile is called via the plain
// Decompress method and never sees it.
//
// wire/packet.go's own design boundary ("parsing raw link-layer/IP bytes
// ... is left to external callers") means the reconstructed packet is
// returned as a *wire.Packet rather than serialized back to raw IP
// bytes: no profile in this module ever builds a byte-exact IP packet,
// only the pre-parsed header struct every profile already shares.
//
// feedbackRcvd returns the raw payload of every piggybacked feedback
// element peeled off the front of packet, for the caller to interpret
// with feedback.DecodeFeedback1/DecodeFeedback2. feedbackSend returns a
// feedback packet (encoded with feedback.EncodePacket) this instance
// wants relayed back to its peer compressor, non-nil only when the mode
// is not Unidirectional and the packet failed to decode.
func (d *Decompressor) Decompress(packet []byte, arrivalTS int64) (status Status, pkt *wire.Packet, feedbackRcvd [][]byte, feedbackSend []byte, err error) {
	rest := packet
	for {
		var payload []byte
		var ok bool
		payload, rest, ok, err = feedback.DecodePacket(rest)
		if err != nil {
			return Malformed, nil, feedbackRcvd, nil, err
		}
		if !ok {
			break
		}
		feedbackRcvd = append(feedbackRcvd, payload)
	}

	cid, stripped, err := d.stripCID(rest)
	if err != nil {
		return Malformed, nil, feedbackRcvd, nil, err
	}

	ctx, decMode, lookupErr := d.table.Lookup(cid)
	if lookupErr != nil {
		p, newPkt, newErr := d.tryNewContext(cid, stripped, arrivalTS)
		if newErr != nil {
			fb := d.maybeNACK(d.mode != rohccontext.Unidirectional)
			d.log.Dropped(int(cid), newErr)
			return NoContext, nil, feedbackRcvd, fb, newErr
		}
		d.log.StateTransition(int(cid), p.ID().String(), "", "", "ir creates context")
		return OK, newPkt, feedbackRcvd, nil, nil
	}

	p, ok := d.registry.Get(ctx.ProfileID())
	if !ok {
		return ProfileMismatch, nil, feedbackRcvd, nil, profile.ErrUnknownProfile
	}

	decPkt, next, decErr := decompressWithClock(p, ctx, stripped, arrivalTS)
	if decErr != nil {
		if updErr := d.table.Update(cid, next); updErr != nil {
			d.log.Dropped(int(cid), updErr)
		}
		fb := d.maybeNACK(decMode != rohccontext.Unidirectional)
		d.log.CRCFailure(int(cid), "", "")
		return BadCRC, nil, feedbackRcvd, fb, decErr
	}

	if err := d.table.Update(cid, next); err != nil {
		return Error, nil, feedbackRcvd, nil, err
	}
	return OK, decPkt, feedbackRcvd, nil, nil
}

// tryNewContext handles the "unknown CID" path: only an IR packet (the
// only packet type self-contained enough to build a fresh context) can
// succeed here. It tries every enabled profile in turn, since the
// facade has no cheaper way to learn which profile an IR packet belongs
// to before a profile has attempted to parse its static chain.
func (d *Decompressor) tryNewContext(cid rohccontext.CID, stripped []byte, arrivalTS int64) (profile.Decompressor, *wire.Packet, error) {
	for _, p := range d.registry.All() {
		ctx, err := p.NewContext(stripped)
		if err != nil {
			continue
		}
		pkt, next, err := decompressWithClock(p, ctx, stripped, arrivalTS)
		if err != nil {
			continue
		}
		if err := d.table.CreateAt(cid, next, d.mode); err != nil {
			return nil, nil, err
		}
		return p, pkt, nil
	}
	return nil, nil, rohccontext.ErrNoContext
}

// decompressWithClock calls p's DecompressWithClock when it implements
// profile.ClockAware (profiles/rtp, for clock-based repair), falling
// back to the plain Decompress method for every other profile.
func decompressWithClock(p profile.Decompressor, ctx profile.Context, packet []byte, arrivalTS int64) (*wire.Packet, profile.Context, error) {
	if ca, ok := p.(profile.ClockAware); ok {
		return ca.DecompressWithClock(ctx, packet, arrivalTS)
	}
	return p.Decompress(ctx, packet)
}

// stripCID removes any add-CID octet or SDVL large-CID prefix from data
// and returns the CID it named (0 if neither prefix is present, the
// implicit default context).
func (d *Decompressor) stripCID(data []byte) (rohccontext.CID, []byte, error) {
	if len(data) == 0 {
		return 0, nil, ErrMalformed
	}
	if wire.IsAddCID(data[0]) {
		if len(data) < 2 {
			return 0, nil, ErrMalformed
		}
		return rohccontext.CID(wire.DecodeAddCID(data[0])), data[1:], nil
	}
	if d.cidType != rohccontext.LargeCID {
		// Small-CID table, no add-CID octet present: the implicit
		// default context, CID 0.
		return 0, data, nil
	}

	// Large-CID tables always carry an SDVL-encoded CID prefix, even
	// when that CID is 0 (SDVL's single-byte form covers 0).
	r := bitio.NewReader(data)
	v, err := bitio.DecodeSDVL(r)
	if err != nil {
		return 0, nil, err
	}
	r.AlignByte()
	return rohccontext.CID(v), data[r.BytePos():], nil
}

// maybeNACK builds a NACK feedback packet when send is true and returns
// nil otherwise. Callers pass whether the mode is O/R: in U-mode the
// decompressor never feeds back (spec.md §7).
func (d *Decompressor) maybeNACK(send bool) []byte {
	if !send {
		return nil
	}
	payload, err := feedback.EncodeFeedback2(feedback.Feedback2{Kind: feedback.NACK})
	if err != nil {
		return nil
	}
	fb, err := feedback.EncodePacket(payload)
	if err != nil {
		return nil
	}
	return fb
}
