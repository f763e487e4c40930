package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kulaginds/rohc/wire"
)

func TestID_String(t *testing.T) {
	assert.Equal(t, "IP-only", IPOnly.String())
	assert.Equal(t, "ROHCv2 IP-only", V2IPOnly.String())
	assert.Equal(t, "unknown", ID(0xDEAD).String())
}

func TestID_IsV2(t *testing.T) {
	assert.False(t, IPOnly.IsV2())
	assert.False(t, IPUDPRTP.IsV2())
	assert.True(t, V2IPOnly.IsV2())
	assert.True(t, V2Uncompressed.IsV2())
}

type stubContext struct{ id ID }

func (c stubContext) ProfileID() ID { return c.id }

type stubCompressor struct{ id ID }

func (s stubCompressor) ID() ID { return s.id }
func (s stubCompressor) Match(Context, *wire.Packet) bool { return true }
func (s stubCompressor) NewContext(*wire.Packet) (Context, error) { return stubContext{s.id}, nil }
func (s stubCompressor) Compress(Context, *wire.Packet) ([]byte, Context, error) {
	return nil, stubContext{s.id}, nil
}

type stubDecompressor struct{ id ID }

func (s stubDecompressor) ID() ID { return s.id }
func (s stubDecompressor) NewContext([]byte) (Context, error) { return stubContext{s.id}, nil }
func (s stubDecompressor) Decompress(Context, []byte) (*wire.Packet, Context, error) {
	return nil, stubContext{s.id}, nil
}

func TestCompressorRegistry_EnableAndGet(t *testing.T) {
	r := NewCompressorRegistry()
	_, ok := r.Get(IPOnly)
	assert.False(t, ok)

	r.Enable(stubCompressor{IPOnly})
	p, ok := r.Get(IPOnly)
	assert.True(t, ok)
	assert.Equal(t, IPOnly, p.ID())
	assert.Len(t, r.All(), 1)
}

func TestCompressorRegistry_EnableOverwritesSameID(t *testing.T) {
	r := NewCompressorRegistry()
	r.Enable(stubCompressor{IPOnly})
	r.Enable(stubCompressor{IPOnly})
	assert.Len(t, r.All(), 1)
}

func TestDecompressorRegistry_EnableAndGet(t *testing.T) {
	r := NewDecompressorRegistry()
	r.Enable(stubDecompressor{IPUDPRTP})
	p, ok := r.Get(IPUDPRTP)
	assert.True(t, ok)
	assert.Equal(t, IPUDPRTP, p.ID())

	_, ok = r.Get(IPOnly)
	assert.False(t, ok)
	assert.Len(t, r.All(), 1)
}
