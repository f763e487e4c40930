package simple

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/wire"
)

func ipOnlyPacket(ipidv uint16, ttl uint8) *wire.Packet {
	return &wire.Packet{
		IPLayers: []wire.IPLayer{{
			Version: 4,
			V4: wire.IPv4Header{
				SrcAddr:        [4]byte{10, 0, 0, 1},
				DstAddr:        [4]byte{10, 0, 0, 2},
				Protocol:       1,
				TTL:            ttl,
				Identification: ipidv,
				Innermost:      true,
			},
		}},
	}
}

func ipUDPPacket(ipidv uint16, srcPort uint16) *wire.Packet {
	pkt := ipOnlyPacket(ipidv, 64)
	pkt.IPLayers[0].V4.Protocol = 17
	pkt.UDP = &wire.UDPHeader{SrcPort: srcPort, DstPort: 53, Checksum: 0xABCD, ChecksumUsed: true}
	return pkt
}

type flow struct {
	t  *testing.T
	id profile.ID
	c  *Compressor
	d  *Decompressor
	cc profile.Context
	dc profile.Context
}

func newFlow(t *testing.T, id profile.ID) *flow {
	c, err := NewCompressor(id)
	require.NoError(t, err)
	d, err := NewDecompressor(id)
	require.NoError(t, err)
	return &flow{t: t, id: id, c: c, d: d}
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
		var err error
		f.dc, err = f.d.NewContext(out)
		require.NoError(t, err)
	}

	got, nextD, err := f.d.Decompress(f.dc, out)
	require.NoError(t, err)
	f.dc = nextD
	return got
}

func TestRoundTrip_IPOnlyIRThenFO(t *testing.T) {
	f := newFlow(t, profile.IPOnly)

	for i := 0; i < 5; i++ {
		pkt := ipOnlyPacket(uint16(100+i), 64)
		got := f.send(pkt)
		require.NotNil(t, got, "packet %d", i)
		assert.Equal(t, pkt.IPLayers[0].V4.Identification, got.IPLayers[0].V4.Identification, "packet %d", i)
		assert.Equal(t, pkt.IPLayers[0].V4.TTL, got.IPLayers[0].V4.TTL, "packet %d", i)
	}
	assert.Equal(t, StateFO, f.cc.(*CompContext).State)
	assert.Equal(t, StateFC, f.dc.(*DecompContext).State)
}

func TestRoundTrip_IPUDPFieldsMatch(t *testing.T) {
	f := newFlow(t, profile.IPUDP)

	for i := 0; i < 4; i++ {
		pkt := ipUDPPacket(uint16(1+i), 49170)
		got := f.send(pkt)
		require.NotNil(t, got, "packet %d", i)
		assert.Equal(t, pkt.UDP.SrcPort, got.UDP.SrcPort, "packet %d", i)
		assert.Equal(t, pkt.UDP.Checksum, got.UDP.Checksum, "packet %d", i)
		assert.Equal(t, pkt.IPLayers[0].V4.Identification, got.IPLayers[0].V4.Identification, "packet %d", i)
	}
}

func TestRoundTrip_V2IPUDPUsesCoRepairAfterIR(t *testing.T) {
	f := newFlow(t, profile.V2IPUDP)

	pkt1 := ipUDPPacket(1, 1000)
	got1 := f.send(pkt1)
	require.NotNil(t, got1)
	assert.Equal(t, StateFO, f.cc.(*CompContext).State)

	pkt2 := ipUDPPacket(2, 1000)
	got2 := f.send(pkt2)
	require.NotNil(t, got2)
	assert.Equal(t, pkt2.IPLayers[0].V4.Identification, got2.IPLayers[0].V4.Identification)
}

func TestMatch_UDPPresenceMismatchIsNewFlow(t *testing.T) {
	c, err := NewCompressor(profile.IPUDP)
	require.NoError(t, err)
	pkt := ipUDPPacket(1, 1000)
	ctx, err := c.NewContext(pkt)
	require.NoError(t, err)
	_, next, err := c.Compress(ctx, pkt)
	require.NoError(t, err)

	other := ipOnlyPacket(1, 64) // no UDP header at all
	assert.False(t, c.Match(next, other))
}

func TestNewCompressor_RejectsUnsupportedProfile(t *testing.T) {
	_, err := NewCompressor(profile.IPUDPRTP)
	assert.ErrorIs(t, err, ErrUnsupportedProfile)

	_, err = NewCompressor(profile.V2IPOnly)
	assert.ErrorIs(t, err, ErrUnsupportedProfile)
}
