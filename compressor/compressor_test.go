package compressor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulaginds/rohc/compressor"
	"github.com/kulaginds/rohc/decompressor"
	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/rohccontext"
	"github.com/kulaginds/rohc/wire"
)

type fixedRand struct{}

func (fixedRand) Uint32() uint32 { return 0x2A2A2A2A }

func ipOnlyPacket(src, dst byte, ipid uint16) *wire.Packet {
	return &wire.Packet{
		IPLayers: []wire.IPLayer{{
			Version: 4,
			V4: wire.IPv4Header{
				SrcAddr:        [4]byte{10, 0, 0, src},
				DstAddr:        [4]byte{10, 0, 0, dst},
				Protocol:       1,
				TTL:            64,
				Identification: ipid,
				Innermost:      true,
			},
		}},
	}
}

func newPair(t *testing.T) (*compressor.Compressor, *decompressor.Decompressor) {
	c := compressor.NewCompressor(rohccontext.SmallCID, 16, fixedRand{})
	require.NoError(t, c.EnableProfiles(profile.IPOnly))

	d := decompressor.NewDecompressor(rohccontext.SmallCID, 16, rohccontext.Unidirectional)
	require.NoError(t, d.EnableProfiles(profile.IPOnly))
	return c, d
}

func TestRoundTrip_SingleFlowDefaultContext(t *testing.T) {
	c, d := newPair(t)
	out := make([]byte, 256)

	for i := 0; i < 3; i++ {
		pkt := ipOnlyPacket(1, 2, uint16(100+i))
		status, n, err := c.Compress(pkt, out)
		require.NoError(t, err)
		assert.Equal(t, compressor.OK, status)

		dstatus, got, _, fbSend, derr := d.Decompress(out[:n], 0)
		require.NoError(t, derr)
		assert.Equal(t, decompressor.OK, dstatus)
		assert.Nil(t, fbSend)
		require.NotNil(t, got)
		assert.Equal(t, pkt.IPLayers[0].V4.Identification, got.IPLayers[0].V4.Identification)
	}
}

func TestRoundTrip_TwoFlowsGetDistinctCIDs(t *testing.T) {
	c, d := newPair(t)
	out := make([]byte, 256)

	flowA := ipOnlyPacket(1, 2, 10)
	flowB := ipOnlyPacket(3, 4, 20)

	_, nA, err := c.Compress(flowA, out)
	require.NoError(t, err)
	bufA := append([]byte(nil), out[:nA]...)

	outB := make([]byte, 256)
	_, nB, err := c.Compress(flowB, outB)
	require.NoError(t, err)

	_, gotA, _, _, err := d.Decompress(bufA, 0)
	require.NoError(t, err)
	_, gotB, _, _, err := d.Decompress(outB[:nB], 0)
	require.NoError(t, err)

	assert.Equal(t, flowA.IPLayers[0].V4.DstAddr, gotA.IPLayers[0].V4.DstAddr)
	assert.Equal(t, flowB.IPLayers[0].V4.DstAddr, gotB.IPLayers[0].V4.DstAddr)
	assert.NotEqual(t, gotA.IPLayers[0].V4.DstAddr, gotB.IPLayers[0].V4.DstAddr)
}

func TestCompress_OutputBufferTooSmall(t *testing.T) {
	c, _ := newPair(t)
	pkt := ipOnlyPacket(1, 2, 5)
	tiny := make([]byte, 1)

	status, _, err := c.Compress(pkt, tiny)
	assert.Equal(t, compressor.ERROR, status)
	assert.ErrorIs(t, err, compressor.ErrOutputTooSmall)
}

func TestCompress_NoEnabledProfileMatches(t *testing.T) {
	c := compressor.NewCompressor(rohccontext.SmallCID, 16, fixedRand{})
	require.NoError(t, c.EnableProfiles(profile.IPUDP))

	pkt := ipOnlyPacket(1, 2, 5) // no UDP layer, doesn't match IPUDP
	out := make([]byte, 256)
	status, _, err := c.Compress(pkt, out)
	assert.Equal(t, compressor.ERROR, status)
	assert.ErrorIs(t, err, compressor.ErrNoProfileMatch)
}

func TestDecompress_UnknownNonIRPacketIsNoContext(t *testing.T) {
	_, d := newPair(t)
	garbage := []byte{0xF8, 0x04, 0x00, 0x00}
	status, pkt, _, _, err := d.Decompress(garbage, 0)
	assert.Equal(t, decompressor.NoContext, status)
	assert.Nil(t, pkt)
	assert.Error(t, err)
}
