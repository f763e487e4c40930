package simple

import (
	"errors"

	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/wire"
)

// ErrCRCFailed is returned when a packet's trailing CRC disagrees with
// the dynamic chain just decoded.
var ErrCRCFailed = errors.New("simple: crc validation failed")

// Decompressor implements profile.Decompressor for one of this
// package's registered IR/IR-DYN-only profile IDs.
type Decompressor struct {
	id profile.ID
	v  variant
}

// NewDecompressor returns a Decompressor for id, or
// ErrUnsupportedProfile if id is not one this package serves.
func NewDecompressor(id profile.ID) (*Decompressor, error) {
	v, ok := variants[id]
	if !ok {
		return nil, ErrUnsupportedProfile
	}
	return &Decompressor{id: id, v: v}, nil
}

func (d *Decompressor) ID() profile.ID { return d.id }

// NewContext parses the static chain a brand-new CID commits to.
func (d *Decompressor) NewContext(staticChain []byte) (profile.Context, error) {
	pkt, err := decodeStaticOnly(staticChain, d.v)
	if err != nil {
		return nil, err
	}
	return &DecompContext{id: d.id, State: StateNC, static: pkt}, nil
}

// Decompress parses packet as IR (if present, or if ctx is still NC) or
// as an FO-state full dynamic-chain resend, and returns the
// reconstructed packet plus the context to commit on success.
func (d *Decompressor) Decompress(ctx profile.Context, packet []byte) (*wire.Packet, profile.Context, error) {
	dc, ok := ctx.(*DecompContext)
	if !ok {
		return nil, nil, errors.New("simple: wrong context type")
	}
	if len(packet) < 2 {
		return nil, nil, ErrMalformed
	}

	isIR := packet[0] == discIRv1 || packet[0] == discIRv2
	if !isIR && dc.State == StateNC {
		return nil, nil, ErrMalformed
	}

	if isIR {
		pkt, _, err := decodeIR(packet, d.v)
		if err != nil {
			return nil, nil, err
		}
		next := dc.clone()
		next.static = pkt
		next.State = StateFC
		next.fcFails = 0
		return pkt, next, nil
	}

	pkt, _, err := decodeFO(packet, dc.static, d.v)
	if err != nil {
		next := dc.clone()
		next.fcFails++
		if next.State == StateFC && next.fcFails >= DecompFCFailThreshold {
			next.State = StateSC
		}
		return nil, next, err
	}

	next := dc.clone()
	next.static = pkt
	next.State = StateFC
	next.fcFails = 0
	return pkt, next, nil
}
