package decompressor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kulaginds/rohc/profile"
	"github.com/kulaginds/rohc/rohccontext"
)

func TestEnableProfiles_RejectsUnbuiltProfile(t *testing.T) {
	d := NewDecompressor(rohccontext.SmallCID, 16, rohccontext.Unidirectional)
	err := d.EnableProfiles(profile.V2IPUDPRTP)
	assert.Error(t, err)
}

func TestStripCID_SmallCIDDefaultsToZero(t *testing.T) {
	d := NewDecompressor(rohccontext.SmallCID, 16, rohccontext.Unidirectional)
	cid, rest, err := d.stripCID([]byte{0xFE, 0x04})
	assert.NoError(t, err)
	assert.Equal(t, rohccontext.CID(0), cid)
	assert.Equal(t, []byte{0xFE, 0x04}, rest)
}

func TestStripCID_AddCIDOctetNamesCID(t *testing.T) {
	d := NewDecompressor(rohccontext.SmallCID, 16, rohccontext.Unidirectional)
	cid, rest, err := d.stripCID([]byte{0xE3, 0xFE, 0x04})
	assert.NoError(t, err)
	assert.Equal(t, rohccontext.CID(3), cid)
	assert.Equal(t, []byte{0xFE, 0x04}, rest)
}

func TestMaybeNACK_UnidirectionalNeverSends(t *testing.T) {
	d := NewDecompressor(rohccontext.SmallCID, 16, rohccontext.Unidirectional)
	assert.Nil(t, d.maybeNACK(false))
}

func TestMaybeNACK_OptimisticModeSends(t *testing.T) {
	d := NewDecompressor(rohccontext.SmallCID, 16, rohccontext.Optimistic)
	assert.NotNil(t, d.maybeNACK(true))
}
