// Package compressor is the public compressor-side API: comp_new,
// comp_enable_profiles, compress (spec.md §6). It owns a rohccontext.Table
// for CID assignment/LRU eviction and a profile.CompressorRegistry of the
// profiles the caller has enabled, and routes each outgoing packet to the
// first matching context or, failing that, the first enabled profile that
// accepts the packet's shape.
package compressor

import (
	"errors"
	"fmt"
	"time"

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

// Status is the outcome of a Compress call, mirroring spec.md §6's
// {OK, ERROR, SEGMENT} result set.
type Status int

const (
	OK Status = iota
	ERROR
	SEGMENT
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case ERROR:
		return "ERROR"
	case SEGMENT:
		return "SEGMENT"
	default:
		return "unknown"
	}
}

// Feature is a comp_set_features bitmask flag.
type Feature uint32

const (
	TimeBasedRefreshes Feature = 1 << iota
	Compat16x
	NoIPChecksums
	DumpPackets
)

// RandSource is the comp_new rand_cb hook: a source of randomness a
// profile may draw on for nondeterministic initial state (e.g. an
// initial MSN offset). Most profiles in this module derive everything
// from the packets they see and never call it, but it is threaded
// through the constructor to keep the external interface shape
// spec.md §6 describes.
type RandSource interface {
	Uint32() uint32
}

// RTPDetectionFunc is the comp_set_rtp_detection_cb predicate: given the
// innermost IP layer, the UDP header, and the payload, report whether
// this UDP flow should be treated as RTP.
type RTPDetectionFunc func(inner wire.IPLayer, udp wire.UDPHeader, payload []byte) bool

// ErrNoProfileMatch is returned when no enabled profile's NewContext
// accepts the packet's shape.
var ErrNoProfileMatch = errors.New("compressor: no enabled profile matches packet")

// ErrOutputTooSmall is returned when the caller-supplied output buffer
// cannot hold the encoded packet. Per spec.md §7, the context is left
// uncommitted in this case.
var ErrOutputTooSmall = errors.New("compressor: output buffer too small")

// Compressor is one compressor instance: one context table, one set of
// enabled profiles, one configuration.
type Compressor struct {
	table    *rohccontext.Table
	registry *profile.CompressorRegistry
	log      *rohclog.Logger
	rand     RandSource

	cidType   rohccontext.CIDType
	mode      rohccontext.Mode
	wlsbWidth int
	rtpDetect RTPDetectionFunc
	features  Feature

	refreshPackets  int           // 0 disables the packet-count trigger
	refreshInterval time.Duration // 0 disables the timer trigger
	refreshTracking map[rohccontext.CID]*refreshState
	now             func() time.Time
}

// refreshState is the per-CID bookkeeping the periodic-refresh trigger
// needs: a count of packets sent since the last refresh (IR or co_repair/
// IR-DYN) and the time it was sent. Both reset whenever a refresh goes
// out, per spec.md §4.4's "timer restarts on each transmitted packet"
// (read here as "each refresh packet", since a timer that restarted on
// every packet could never elapse under steady traffic).
type refreshState struct {
	packetsSinceRefresh int
	lastRefresh         time.Time
}

// Option configures a Compressor at construction time.
type Option func(*Compressor)

// WithLogger sets the structured event sink. Absent this option, events
// are discarded.
func WithLogger(lg *rohclog.Logger) Option {
	return func(c *Compressor) { c.log = lg }
}

// WithWLSBWindowWidth overrides the W-LSB window width (comp_set_wlsb_window_width).
// width must be a power of two in {1,2,4,8,16,32,64}; an invalid width
// is silently ignored at this layer (caught when the profile constructs
// its windows).
func WithWLSBWindowWidth(width int) Option {
	return func(c *Compressor) { c.wlsbWidth = width }
}

// WithRTPDetectionCB sets the comp_set_rtp_detection_cb predicate. Per
// wire/packet.go's documented boundary, the core only ever sees packets
// already demultiplexed into wire.Packet's IP/UDP/RTP header fields;
// whether a UDP flow is RTP is decided before Compress is called. This
// hook is stored for callers that want to consult it while building the
// wire.Packet they hand to Compress (e.g. "does pkt.RTP belong set");
// Compress itself never invokes it.
func WithRTPDetectionCB(cb RTPDetectionFunc) Option {
	return func(c *Compressor) { c.rtpDetect = cb }
}

// WithFeatures sets the comp_set_features bitmask.
func WithFeatures(f Feature) Option {
	return func(c *Compressor) { c.features = f }
}

// WithMode sets the ROHC operating mode new contexts are created under.
// Defaults to rohccontext.Unidirectional.
func WithMode(mode rohccontext.Mode) Option {
	return func(c *Compressor) { c.mode = mode }
}

// WithPeriodicRefresh sets the thresholds for the TimeBasedRefreshes
// feature (spec.md §4.4): a context still in U-mode is forced back to IR
// after packets packets since its last refresh, or after interval has
// elapsed since its last refresh, whichever comes first. A zero value
// disables that trigger. Has no effect unless WithFeatures
// also sets TimeBasedRefreshes and WithMode leaves the instance in
// rohccontext.Unidirectional: other modes have a feedback channel to
// request resync reactively and don't need a blind periodic one.
func WithPeriodicRefresh(packets int, interval time.Duration) Option {
	return func(c *Compressor) {
		c.refreshPackets = packets
		c.refreshInterval = interval
	}
}

// NewCompressor returns a Compressor with no profiles enabled yet; call
// EnableProfiles before Compress.
func NewCompressor(cidType rohccontext.CIDType, maxCID int, rand RandSource, opts ...Option) *Compressor {
	c := &Compressor{
		registry:        profile.NewCompressorRegistry(),
		log:             rohclog.Discard(),
		rand:            rand,
		cidType:         cidType,
		mode:            rohccontext.Unidirectional,
		wlsbWidth:       rtp.DefaultWindowWidth,
		refreshTracking: make(map[rohccontext.CID]*refreshState),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.table = rohccontext.New(cidType, maxCID, true)
	return c
}

// RTPDetectionCB returns the predicate set by WithRTPDetectionCB, or nil
// if none was set. Callers building a wire.Packet from raw payload bytes
// consult this before deciding whether to populate pkt.RTP.
func (c *Compressor) RTPDetectionCB() RTPDetectionFunc {
	return c.rtpDetect
}

// Features reports the comp_set_features bitmask this instance was
// constructed with.
func (c *Compressor) Features() Feature {
	return c.features
}

// HasFeature reports whether f is set in this instance's feature
// bitmask.
func (c *Compressor) HasFeature(f Feature) bool {
	return c.features&f != 0
}

// Rand returns the rand_cb source this instance was constructed with.
func (c *Compressor) Rand() RandSource {
	return c.rand
}

// EnableProfiles registers a concrete Compressor implementation for each
// id (comp_enable_profiles). Unknown ids return profile.ErrUnknownProfile
// wrapped with the offending id.
func (c *Compressor) EnableProfiles(ids ...profile.ID) error {
	for _, id := range ids {
		p, err := newProfileCompressor(id, c.wlsbWidth)
		if err != nil {
			return fmt.Errorf("compressor: enable profile %s: %w", id, err)
		}
		c.registry.Enable(p)
	}
	return nil
}

// newProfileCompressor builds the concrete profiles/* Compressor for id.
func newProfileCompressor(id profile.ID, wlsbWidth int) (profile.Compressor, error) {
	switch id {
	case profile.IPUDPRTP:
		return rtp.NewCompressorWithWidth(wlsbWidth), nil
	case profile.V2IPOnly:
		return v2iponly.NewCompressor(), nil
	default:
		return simple.NewCompressor(id)
	}
}

// Compress encodes pkt against the matching (or newly created) context
// and writes the wire-format ROHC packet, including any add-CID prefix,
// into out. n is the number of bytes written. The context is committed
// only when encoding and the copy into out both succeed, matching
// spec.md §7's "output buffer too small leaves the context untouched."
func (c *Compressor) Compress(pkt *wire.Packet, out []byte) (Status, int, error) {
	cid, ctx, p, err := c.findOrCreateContext(pkt)
	if err != nil {
		return ERROR, 0, err
	}
	ctx = c.maybeRefresh(cid, ctx)

	body, next, err := p.Compress(ctx, pkt)
	if err != nil {
		c.log.Dropped(int(cid), err)
		return ERROR, 0, err
	}

	wireBytes, err := c.addCIDPrefix(cid, body)
	if err != nil {
		return ERROR, 0, err
	}
	if len(wireBytes) > len(out) {
		return ERROR, 0, ErrOutputTooSmall
	}
	n := copy(out, wireBytes)

	if err := c.table.Update(cid, next); err != nil {
		return ERROR, 0, err
	}
	c.recordTransmission(cid)
	c.log.PacketEncoded(int(cid), next.ProfileID().String(), "", n)
	return OK, n, nil
}

// maybeRefresh implements the TimeBasedRefreshes feature (spec.md §4.4):
// in U-mode, a context is forced back to IR once it has gone refreshPackets
// packets or refreshInterval without one, since U-mode has no feedback
// channel to request a resync reactively. ctx is returned unchanged when
// the feature is off, the mode isn't Unidirectional, no threshold is
// configured, ctx doesn't implement profile.Refreshable, or neither
// threshold has actually elapsed yet.
func (c *Compressor) maybeRefresh(cid rohccontext.CID, ctx profile.Context) profile.Context {
	if !c.HasFeature(TimeBasedRefreshes) || c.mode != rohccontext.Unidirectional {
		return ctx
	}
	if c.refreshPackets <= 0 && c.refreshInterval <= 0 {
		return ctx
	}
	rf, ok := ctx.(profile.Refreshable)
	if !ok {
		return ctx
	}

	st, tracked := c.refreshTracking[cid]
	if !tracked {
		// First packet seen for this CID under periodic refresh: nothing
		// to compare against yet, just start the clock.
		c.refreshTracking[cid] = &refreshState{lastRefresh: c.now()}
		return ctx
	}

	due := false
	if c.refreshPackets > 0 && st.packetsSinceRefresh >= c.refreshPackets {
		due = true
	}
	if c.refreshInterval > 0 && c.now().Sub(st.lastRefresh) >= c.refreshInterval {
		due = true
	}
	if !due {
		return ctx
	}
	st.packetsSinceRefresh = 0
	st.lastRefresh = c.now()
	return rf.ForceRefresh()
}

// recordTransmission advances a CID's packet-since-last-refresh count
// after a packet has actually been committed. maybeRefresh already resets
// the counter itself when it forces a refresh, so this only has work to
// do on the ordinary, non-refresh packets in between.
func (c *Compressor) recordTransmission(cid rohccontext.CID) {
	st, ok := c.refreshTracking[cid]
	if !ok {
		return
	}
	st.packetsSinceRefresh++
}

// findOrCreateContext looks for a live context whose profile's Match
// accepts pkt; failing that, it tries every enabled profile's
// NewContext in turn and installs the first one that accepts pkt's
// shape.
func (c *Compressor) findOrCreateContext(pkt *wire.Packet) (rohccontext.CID, profile.Context, profile.Compressor, error) {
	var (
		foundCID rohccontext.CID
		foundCtx profile.Context
		foundP   profile.Compressor
		found    bool
	)
	c.table.Each(func(cid rohccontext.CID, ctx profile.Context, _ rohccontext.Mode) {
		if found {
			return
		}
		p, ok := c.registry.Get(ctx.ProfileID())
		if ok && p.Match(ctx, pkt) {
			foundCID, foundCtx, foundP, found = cid, ctx, p, true
		}
	})
	if found {
		return foundCID, foundCtx, foundP, nil
	}

	for _, p := range c.registry.All() {
		ctx, err := p.NewContext(pkt)
		if err != nil {
			continue
		}
		cid, evicted, err := c.table.Create(ctx, c.mode)
		if err != nil {
			return 0, nil, nil, err
		}
		if evicted != nil {
			c.log.ContextEvicted(int(*evicted), "")
		}
		return cid, ctx, p, nil
	}
	return 0, nil, nil, ErrNoProfileMatch
}

// addCIDPrefix prepends the wire-format CID marker body needs: nothing
// for CID 0 (the implicit default context), an add-CID octet for small
// CIDs, or an SDVL-encoded CID for large CIDs.
func (c *Compressor) addCIDPrefix(cid rohccontext.CID, body []byte) ([]byte, error) {
	if c.cidType == rohccontext.SmallCID {
		if cid == 0 {
			return body, nil
		}
		b, err := wire.EncodeAddCID(int(cid))
		if err != nil {
			return nil, err
		}
		return append([]byte{b}, body...), nil
	}

	// Large-CID tables always carry an SDVL-encoded CID prefix, even
	// when that CID is 0 (SDVL's single-byte form covers 0), so the
	// decompressor side never has to guess whether one is present.
	w := bitio.NewWriter()
	if err := bitio.EncodeSDVL(w, uint32(cid)); err != nil {
		return nil, err
	}
	w.AlignByte()
	return append(w.Bytes(), body...), nil
}

// DecodeFeedback parses an opaque feedback blob the caller received on
// the reverse channel (e.g. via decompressor.Decompress's feedbackSend
// output) back into its ACK/NACK/STATIC-NACK form, for callers that want
// to react to it (e.g. demote a context after a STATIC-NACK). This
// module's compressor does not itself consume feedback automatically:
// RFC 3095 leaves that reaction to the implementation, and wiring it
// through every profile's state machine is out of scope here.
func DecodeFeedback(payload []byte) (feedback.Feedback2, error) {
	return feedback.DecodeFeedback2(payload)
}
