package simple

import (
	"errors"

	"github.com/kulaginds/rohc/ipid"
	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/wire"
)

// ErrNotShaped is returned when Compress/Match/NewContext are handed a
// packet with no IP layer at all.
var ErrNotShaped = errors.New("simple: packet has no IP layer")

// Compressor implements profile.Compressor for one of this package's
// registered IR/IR-DYN-only profile IDs.
type Compressor struct {
	id profile.ID
	v  variant
}

// NewCompressor returns a Compressor for id, or ErrUnsupportedProfile if
// id is not one this package serves.
func NewCompressor(id profile.ID) (*Compressor, error) {
	v, ok := variants[id]
	if !ok {
		return nil, ErrUnsupportedProfile
	}
	return &Compressor{id: id, v: v}, nil
}

func (c *Compressor) ID() profile.ID { return c.id }

// Match reports whether pkt belongs to the flow ctx tracks.
func (c *Compressor) Match(ctx profile.Context, pkt *wire.Packet) bool {
	cc, ok := ctx.(*CompContext)
	if !ok || !cc.have {
		return false
	}
	fs, ok := snapshotFlow(pkt)
	if !ok || pkt.RTP != nil || (pkt.UDP != nil) != c.v.hasUDP {
		return false
	}
	return cc.flow.sameFlow(fs)
}

// NewContext builds the initial context for a brand new flow.
func (c *Compressor) NewContext(pkt *wire.Packet) (profile.Context, error) {
	fs, ok := snapshotFlow(pkt)
	if !ok {
		return nil, ErrNotShaped
	}
	if pkt.RTP != nil || (pkt.UDP != nil) != c.v.hasUDP {
		return nil, ErrShapeMismatch
	}
	return &CompContext{id: c.id, State: StateIR, flow: fs}, nil
}

// Compress encodes pkt as IR (first packet, or still within the IR
// dwell) or as a full dynamic-chain resend (FO state), and returns the
// (uncommitted) next context.
func (c *Compressor) Compress(ctx profile.Context, pkt *wire.Packet) ([]byte, profile.Context, error) {
	cc, ok := ctx.(*CompContext)
	if !ok {
		return nil, nil, errors.New("simple: wrong context type")
	}
	fs, ok := snapshotFlow(pkt)
	if !ok {
		return nil, nil, ErrNotShaped
	}

	next := cc.clone()
	next.flow = fs

	ids := ipidFields(pkt)

	var out []byte
	var err error
	if next.State == StateIR || !next.have {
		out, err = encodeIR(c.id, pkt, ids, c.v)
		next.irCount++
		if next.irCount >= MaxIRCount {
			next.State = StateFO
			next.irCount = 0
		}
	} else {
		out, err = encodeFO(c.id, pkt, ids, c.v)
	}
	if err != nil {
		return nil, nil, err
	}

	next.have = true
	return out, next, nil
}

// ipidFields assigns each IPv4 layer a flowIPID with Random behavior:
// this skeleton never tracks IP-ID behavior across packets (every
// dynamic field is always resent in full), so the raw value always
// rides the wire.
func ipidFields(pkt *wire.Packet) []flowIPID {
	var ids []flowIPID
	for _, layer := range pkt.IPLayers {
		if layer.Version != 4 {
			continue
		}
		behavior := ipid.Random
		if layer.V4.Identification == 0 {
			behavior = ipid.Zero
		}
		ids = append(ids, flowIPID{value: layer.V4.Identification, behavior: behavior})
	}
	return ids
}
