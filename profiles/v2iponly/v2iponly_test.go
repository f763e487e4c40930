package v2iponly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/wire"
)

func testPacket(ipidv uint16, ttl uint8) *wire.Packet {
	return &wire.Packet{
		IPLayers: []wire.IPLayer{{
			Version: 4,
			V4: wire.IPv4Header{
				SrcAddr:        [4]byte{10, 0, 0, 1},
				DstAddr:        [4]byte{10, 0, 0, 2},
				Protocol:       1,
				ToS:            0,
				TTL:            ttl,
				DF:             true,
				Identification: ipidv,
				Innermost:      true,
			},
		}},
	}
}

// flow drives a sequence of packets through one compressor and one
// decompressor instance sharing a context pair, asserting every
// reconstructed packet matches the original.
type flow struct {
	t  *testing.T
	c  *Compressor
	d  *Decompressor
	cc profile.Context
	dc profile.Context
}

func newFlow(t *testing.T) *flow {
	return &flow{t: t, c: NewCompressor(), d: NewDecompressor()}
}

func (f *flow) send(pkt *wire.Packet) *wire.Packet {
	t := f.t
	if f.cc == nil {
		var err error
		f.cc, err = f.c.NewContext(pkt)
		require.NoError(t, err)
	}

	out, nextC, err := f.c.Compress(f.cc, pkt)
	require.NoError(t, err)
	f.cc = nextC

	if f.dc == nil {
		f.dc, err = f.d.NewContext(out)
		require.NoError(t, err)
	}

	got, nextD, err := f.d.Decompress(f.dc, out)
	require.NoError(t, err)
	f.dc = nextD
	return got
}

func TestRoundTrip_IRFirstPacket(t *testing.T) {
	f := newFlow(t)
	pkt := testPacket(5, 64)
	got := f.send(pkt)

	require.NotNil(t, got)
	assert.Equal(t, pkt.IPLayers[0].V4.Identification, got.IPLayers[0].V4.Identification)
	assert.Equal(t, pkt.IPLayers[0].V4.TTL, got.IPLayers[0].V4.TTL)
	assert.Equal(t, StateFO, f.cc.(*CompContext).State)
}

func TestRoundTrip_ReachesSOAfterConvergence(t *testing.T) {
	f := newFlow(t)
	ipidv := uint16(5)

	var lastGot *wire.Packet
	for i := 0; i < 12; i++ {
		pkt := testPacket(ipidv, 64)
		lastGot = f.send(pkt)
		ipidv++
	}

	require.NotNil(t, lastGot)
	cc := f.cc.(*CompContext)
	assert.Equal(t, StateSO, cc.State)

	dc := f.dc.(*DecompContext)
	assert.Equal(t, StateFC, dc.State)
}

func TestRoundTrip_SequenceOfPacketsMatchesFieldByField(t *testing.T) {
	f := newFlow(t)
	ipidv := uint16(1)

	for i := 0; i < 20; i++ {
		pkt := testPacket(ipidv, 64)
		got := f.send(pkt)

		require.NotNil(t, got, "packet %d", i)
		assert.Equal(t, pkt.IPLayers[0].V4.Identification, got.IPLayers[0].V4.Identification, "packet %d IP-ID", i)
		assert.Equal(t, pkt.IPLayers[0].V4.TTL, got.IPLayers[0].V4.TTL, "packet %d TTL", i)
		assert.Equal(t, pkt.IPLayers[0].V4.DF, got.IPLayers[0].V4.DF, "packet %d DF", i)

		ipidv++
	}
}

func TestRoundTrip_ZeroIPIDStaysOnNormal1(t *testing.T) {
	f := newFlow(t)

	var lastGot *wire.Packet
	for i := 0; i < 12; i++ {
		pkt := testPacket(0, 64)
		lastGot = f.send(pkt)
	}

	require.NotNil(t, lastGot)
	assert.Equal(t, uint16(0), lastGot.IPLayers[0].V4.Identification)
	cc := f.cc.(*CompContext)
	assert.Equal(t, StateSO, cc.State)
}

func TestRoundTrip_TTLChangeForcesCoCommonAndDemotion(t *testing.T) {
	f := newFlow(t)
	ipidv := uint16(1)

	for i := 0; i < 10; i++ {
		pkt := testPacket(ipidv, 64)
		f.send(pkt)
		ipidv++
	}
	require.Equal(t, StateSO, f.cc.(*CompContext).State)

	pkt := testPacket(ipidv, 32)
	got := f.send(pkt)

	require.NotNil(t, got)
	assert.Equal(t, uint8(32), got.IPLayers[0].V4.TTL)
	// A TTL/ToS/DF change can't be carried by a Normal packet and forces
	// co_common, which also demotes SO back to FO's confirmation window
	// (see Compress's dynamicChanged handling).
	assert.Equal(t, StateFO, f.cc.(*CompContext).State)
}

func TestMatch_DifferentDestinationIsNewFlow(t *testing.T) {
	c := NewCompressor()
	pkt := testPacket(1, 64)
	ctx, err := c.NewContext(pkt)
	require.NoError(t, err)
	_, next, err := c.Compress(ctx, pkt)
	require.NoError(t, err)

	other := testPacket(1, 64)
	other.IPLayers[0].V4.DstAddr = [4]byte{10, 0, 0, 3}
	assert.False(t, c.Match(next, other))

	same := testPacket(2, 64)
	assert.True(t, c.Match(next, same))
}

func TestNewContext_RejectsNonIPv4OnlyPacket(t *testing.T) {
	c := NewCompressor()
	pkt := testPacket(1, 64)
	pkt.UDP = &wire.UDPHeader{SrcPort: 1, DstPort: 2}
	_, err := c.NewContext(pkt)
	assert.ErrorIs(t, err, ErrNotIPv4Only)
}
