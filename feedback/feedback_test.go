package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedback1_RoundTrip(t *testing.T) {
	b := EncodeFeedback1(0x2A)
	got, err := DecodeFeedback1(b)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x2A), got)
}

func TestFeedback2_RoundTripNoOptions(t *testing.T) {
	fb := Feedback2{Kind: ACK, MSNLSBs: 1000}
	b, err := EncodeFeedback2(fb)
	require.NoError(t, err)

	got, err := DecodeFeedback2(b)
	require.NoError(t, err)
	assert.Equal(t, ACK, got.Kind)
	assert.Equal(t, uint16(1000), got.MSNLSBs)
	assert.Empty(t, got.Options)
}

func TestFeedback2_RoundTripWithOptions(t *testing.T) {
	fb := Feedback2{
		Kind:    NACK,
		MSNLSBs: 42,
		Options: []Option{
			{Type: OptionCRC, CRC: 0x5A},
			{Type: OptionSN, SN: 777},
			{Type: OptionTime, TimeGapMs: 15},
		},
	}
	b, err := EncodeFeedback2(fb)
	require.NoError(t, err)

	got, err := DecodeFeedback2(b)
	require.NoError(t, err)
	assert.Equal(t, fb.Kind, got.Kind)
	assert.Equal(t, fb.MSNLSBs, got.MSNLSBs)
	require.Len(t, got.Options, 3)
	assert.Equal(t, fb.Options, got.Options)
}

func TestFeedback2_StaticNACK(t *testing.T) {
	fb := Feedback2{Kind: StaticNACK, MSNLSBs: 0}
	b, err := EncodeFeedback2(fb)
	require.NoError(t, err)

	got, err := DecodeFeedback2(b)
	require.NoError(t, err)
	assert.Equal(t, StaticNACK, got.Kind)
}

func TestDecodeFeedback2_Malformed(t *testing.T) {
	_, err := DecodeFeedback2([]byte{0x00})
	assert.ErrorIs(t, err, ErrMalformed)
}
