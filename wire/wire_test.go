package wire

import (
	"testing"

	"github.com/kulaginds/rohc/bitio"
	"github.com/kulaginds/rohc/ipid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticIPv4_RoundTrip(t *testing.T) {
	h := IPv4Header{
		SrcAddr:   [4]byte{10, 0, 0, 1},
		DstAddr:   [4]byte{10, 0, 0, 2},
		Protocol:  17,
		Innermost: true,
	}

	w := bitio.NewWriter()
	require.NoError(t, EncodeStaticIPv4(w, h))

	r := bitio.NewReader(w.Bytes())
	got, err := DecodeStaticIPv4(r)
	require.NoError(t, err)

	assert.Equal(t, h.SrcAddr, got.SrcAddr)
	assert.Equal(t, h.DstAddr, got.DstAddr)
	assert.Equal(t, h.Protocol, got.Protocol)
	assert.True(t, got.Innermost)
}

func TestStaticIPv6_RoundTrip(t *testing.T) {
	h := IPv6Header{
		NextHeader:   17,
		HasFlowLabel: true,
		FlowLabel:    0x12345,
		Innermost:    true,
	}
	h.SrcAddr[0] = 0xfe
	h.DstAddr[0] = 0x20

	w := bitio.NewWriter()
	require.NoError(t, EncodeStaticIPv6(w, h))

	r := bitio.NewReader(w.Bytes())
	got, err := DecodeStaticIPv6(r)
	require.NoError(t, err)
	assert.Equal(t, h.FlowLabel, got.FlowLabel)
	assert.True(t, got.HasFlowLabel)
	assert.Equal(t, h.SrcAddr, got.SrcAddr)
}

func TestDynamicIPv4_ZeroBehaviorOmitsIPID(t *testing.T) {
	d := DynamicIPv4{Behavior: ipid.Zero, ToS: 0, TTL: 64}

	w := bitio.NewWriter()
	require.NoError(t, EncodeDynamicIPv4(w, d))
	assert.Len(t, w.Bytes(), 3)

	r := bitio.NewReader(w.Bytes())
	got, err := DecodeDynamicIPv4(r)
	require.NoError(t, err)
	assert.Equal(t, ipid.Zero, got.Behavior)
	assert.Equal(t, uint16(0), got.IPID)
}

func TestDynamicIPv4_SequentialCarriesIPID(t *testing.T) {
	d := DynamicIPv4{Behavior: ipid.Sequential, ToS: 1, TTL: 30, IPID: 0xBEEF, DF: true}

	w := bitio.NewWriter()
	require.NoError(t, EncodeDynamicIPv4(w, d))
	assert.Len(t, w.Bytes(), 5)

	r := bitio.NewReader(w.Bytes())
	got, err := DecodeDynamicIPv4(r)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestDynamicRTP_RoundTrip(t *testing.T) {
	d := DynamicRTP{
		UDPChecksum: 0x1234,
		RTP: RTPHeader{
			CC:             2,
			Marker:         true,
			PayloadType:    0x60,
			SequenceNumber: 5000,
			Timestamp:      0xCAFEBABE,
		},
	}

	w := bitio.NewWriter()
	require.NoError(t, EncodeDynamicRTP(w, d))

	r := bitio.NewReader(w.Bytes())
	got, err := DecodeDynamicRTP(r)
	require.NoError(t, err)
	assert.Equal(t, d.UDPChecksum, got.UDPChecksum)
	assert.Equal(t, d.RTP.CC, got.RTP.CC)
	assert.Equal(t, d.RTP.Marker, got.RTP.Marker)
	assert.Equal(t, d.RTP.PayloadType, got.RTP.PayloadType)
	assert.Equal(t, d.RTP.SequenceNumber, got.RTP.SequenceNumber)
	assert.Equal(t, d.RTP.Timestamp, got.RTP.Timestamp)
}

func TestAddCID_RoundTrip(t *testing.T) {
	b, err := EncodeAddCID(7)
	require.NoError(t, err)
	assert.True(t, IsAddCID(b))
	assert.Equal(t, 7, DecodeAddCID(b))
}

func TestAddCID_OutOfRange(t *testing.T) {
	_, err := EncodeAddCID(16)
	assert.Error(t, err)
}

func TestDetectRFC3095(t *testing.T) {
	cases := []struct {
		b    byte
		want PacketType
	}{
		{0b11111110, PacketIR},
		{0b11111000, PacketIRDyn},
		{0b00001010, PacketUO0},
		{0b10000000, PacketUO1},
		{0b10001000, PacketUO1ID},
		{0b10010000, PacketUO1TS},
		{0b10011000, PacketUO1RTP},
		{0b11000000, PacketUOR2},
		{0b11000100, PacketUOR2ID},
		{0b11001000, PacketUOR2TS},
		{0b11001100, PacketUOR2RTP},
	}
	for _, c := range cases {
		got, err := DetectRFC3095(c.b)
		require.NoError(t, err, "byte %08b", c.b)
		assert.Equal(t, c.want, got, "byte %08b", c.b)
	}
}

func TestDetectRFC5225IPOnly_ForbiddenNormalByte(t *testing.T) {
	_, forbidden, err := DetectRFC5225IPOnly(0b11111100)
	require.NoError(t, err)
	assert.True(t, forbidden)

	pt, forbidden, err := DetectRFC5225IPOnly(0x42)
	require.NoError(t, err)
	assert.False(t, forbidden)
	assert.Equal(t, PacketNormal, pt)

	pt, forbidden, err = DetectRFC5225IPOnly(0b11111101)
	require.NoError(t, err)
	assert.False(t, forbidden)
	assert.Equal(t, PacketIR, pt)
}
