package rohccontext

import (
	"testing"

	"github.com/kulaginds/rohc/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	id profile.ID
}

func (f fakeContext) ProfileID() profile.ID { return f.id }

func TestTable_CreateAndLookup(t *testing.T) {
	tbl := New(SmallCID, 16, true)

	cid, evicted, err := tbl.Create(fakeContext{id: profile.IPUDPRTP}, Optimistic)
	require.NoError(t, err)
	assert.Nil(t, evicted)
	assert.Equal(t, CID(0), cid)

	ctx, mode, err := tbl.Lookup(cid)
	require.NoError(t, err)
	assert.Equal(t, Optimistic, mode)
	assert.Equal(t, profile.IPUDPRTP, ctx.ProfileID())
}

func TestTable_LookupMissing(t *testing.T) {
	tbl := New(SmallCID, 16, true)
	_, _, err := tbl.Lookup(5)
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestTable_EvictsLRUWhenFull(t *testing.T) {
	tbl := New(SmallCID, 2, true)

	cidA, _, err := tbl.Create(fakeContext{id: profile.IPOnly}, Unidirectional)
	require.NoError(t, err)
	cidB, _, err := tbl.Create(fakeContext{id: profile.IPOnly}, Unidirectional)
	require.NoError(t, err)

	// Touch A so B becomes least-recently-used.
	_, _, err = tbl.Lookup(cidA)
	require.NoError(t, err)

	cidC, evicted, err := tbl.Create(fakeContext{id: profile.IPOnly}, Unidirectional)
	require.NoError(t, err)
	require.NotNil(t, evicted)
	assert.Equal(t, cidB, *evicted)
	assert.Equal(t, cidB, cidC) // victim's slot is reused

	_, _, err = tbl.Lookup(cidB)
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestTable_NoEvictionWhenDisabled(t *testing.T) {
	tbl := New(SmallCID, 1, false)

	_, _, err := tbl.Create(fakeContext{id: profile.IPOnly}, Unidirectional)
	require.NoError(t, err)

	_, _, err = tbl.Create(fakeContext{id: profile.IPOnly}, Unidirectional)
	assert.ErrorIs(t, err, ErrContextFull)
}

func TestTable_CreateAtAndFree(t *testing.T) {
	tbl := New(LargeCID, 100, false)

	err := tbl.CreateAt(42, fakeContext{id: profile.V2IPOnly}, Reliable)
	require.NoError(t, err)

	ctx, mode, err := tbl.Lookup(42)
	require.NoError(t, err)
	assert.Equal(t, Reliable, mode)
	assert.Equal(t, profile.V2IPOnly, ctx.ProfileID())

	tbl.Free(42)
	_, _, err = tbl.Lookup(42)
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestTable_Update(t *testing.T) {
	tbl := New(SmallCID, 16, true)
	cid, _, err := tbl.Create(fakeContext{id: profile.IPUDPRTP}, Optimistic)
	require.NoError(t, err)

	err = tbl.Update(cid, fakeContext{id: profile.IPUDPRTP})
	require.NoError(t, err)

	err = tbl.Update(CID(99), fakeContext{id: profile.IPUDPRTP})
	assert.ErrorIs(t, err, ErrNoContext)
}
