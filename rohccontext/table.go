// Package rohccontext implements the CID → context mapping shared by
// compressor and decompressor instances per RFC 3095 §5.2.3: creation on
// first use, LRU eviction once max_contexts is exceeded, and the
// small/large CID encoding split.
package rohccontext

import (
	"container/list"
	"errors"

	"github.com/kulaginds/rohc/profile"
)

// CID is a Context Identifier (RFC 3095 §5.2.3): an integer in [0, N).
type CID int

// CIDType selects the wire encoding for CIDs: small CIDs use the 1-byte
// add-CID prefix (range [0,15]); large CIDs are SDVL-encoded
// (range [0,16383]).
type CIDType int

const (
	SmallCID CIDType = iota
	LargeCID
)

// MaxSmallCID and MaxLargeCID bound the two CID ranges.
const (
	MaxSmallCID = 15
	MaxLargeCID = 16383
)

// Mode is the ROHC operating mode (RFC 3095 §4).
type Mode int

const (
	Unidirectional Mode = iota
	Optimistic
	Reliable
)

// ErrContextFull is returned by Create when every slot is occupied and
// the table is configured never to evict (decompressor side: eviction is
// a compressor-only policy; the decompressor discards via timeout or
// explicit free instead).
var ErrContextFull = errors.New("rohccontext: no free context slot")

// ErrNoContext is returned by Lookup when cid names no live context.
var ErrNoContext = errors.New("rohccontext: no context for cid")

// entry is one occupied table slot: the profile-owned state plus the
// bookkeeping the table itself needs (LRU position, mode).
type entry struct {
	cid     CID
	ctx     profile.Context
	mode    Mode
	lruElem *list.Element
}

// Table owns the CID → context mapping for one compressor or
// decompressor instance. It is mutated only by its owning instance;
// there is no cross-instance or concurrent access.
type Table struct {
	cidType     CIDType
	maxContexts int
	evictLRU    bool // true for compressor tables, false for decompressor

	entries map[CID]*entry
	lru     *list.List // front = most recently used
}

// New returns an empty Table. evictLRU should be true for compressor
// instances (which create-or-evict on demand) and false for decompressor
// instances (which only destroy via explicit Free/timeout). The
// compressor looks a context up by flow 5-tuple; the decompressor looks
// it up by the CID carried on the wire.
func New(cidType CIDType, maxContexts int, evictLRU bool) *Table {
	return &Table{
		cidType:     cidType,
		maxContexts: maxContexts,
		evictLRU:    evictLRU,
		entries:     make(map[CID]*entry),
		lru:         list.New(),
	}
}

// MaxCID returns the largest CID value this table's CIDType allows,
// clamped to maxContexts-1.
func (t *Table) MaxCID() CID {
	limit := CID(MaxSmallCID)
	if t.cidType == LargeCID {
		limit = CID(MaxLargeCID)
	}
	if CID(t.maxContexts-1) < limit {
		limit = CID(t.maxContexts - 1)
	}
	return limit
}

// Lookup returns the live context for cid, touching its LRU position.
func (t *Table) Lookup(cid CID) (profile.Context, Mode, error) {
	e, ok := t.entries[cid]
	if !ok {
		return nil, 0, ErrNoContext
	}
	t.lru.MoveToFront(e.lruElem)
	return e.ctx, e.mode, nil
}

// Peek is like Lookup but does not disturb LRU order; useful for
// diagnostics/tests.
func (t *Table) Peek(cid CID) (profile.Context, Mode, error) {
	e, ok := t.entries[cid]
	if !ok {
		return nil, 0, ErrNoContext
	}
	return e.ctx, e.mode, nil
}

// firstFreeCID returns the lowest unused CID within range, or -1 if none.
func (t *Table) firstFreeCID() CID {
	max := t.MaxCID()
	for c := CID(0); c <= max; c++ {
		if _, ok := t.entries[c]; !ok {
			return c
		}
	}
	return -1
}

// Create installs ctx at the first free CID, evicting the
// least-recently-used entry first if the table is full and eviction is
// enabled (compressor tables). Returns the assigned CID.
func (t *Table) Create(ctx profile.Context, mode Mode) (CID, evicted *CID, err error) {
	cid := t.firstFreeCID()
	if cid == -1 {
		if !t.evictLRU || t.lru.Len() == 0 {
			return 0, nil, ErrContextFull
		}
		back := t.lru.Back()
		victimCID := back.Value.(CID)
		t.destroy(victimCID)
		cid = victimCID
		evicted = &victimCID
	}

	e := &entry{cid: cid, ctx: ctx, mode: mode}
	e.lruElem = t.lru.PushFront(cid)
	t.entries[cid] = e
	return cid, evicted, nil
}

// CreateAt installs ctx at an explicit cid (decompressor side: the CID
// comes off the wire, not from a free-slot search), replacing whatever
// was there.
func (t *Table) CreateAt(cid CID, ctx profile.Context, mode Mode) error {
	if cid > t.MaxCID() || cid < 0 {
		return errors.New("rohccontext: cid out of range")
	}
	if e, ok := t.entries[cid]; ok {
		t.lru.Remove(e.lruElem)
	}
	e := &entry{cid: cid, ctx: ctx, mode: mode}
	e.lruElem = t.lru.PushFront(cid)
	t.entries[cid] = e
	return nil
}

// Update replaces the committed context for an existing cid, after a
// successful compression or CRC-validated decompression, without
// touching CID assignment.
func (t *Table) Update(cid CID, ctx profile.Context) error {
	e, ok := t.entries[cid]
	if !ok {
		return ErrNoContext
	}
	e.ctx = ctx
	t.lru.MoveToFront(e.lruElem)
	return nil
}

// Free destroys the context at cid (decompressor timeout/explicit free,
// or compressor-initiated destruction on profile reassignment).
func (t *Table) Free(cid CID) {
	t.destroy(cid)
}

func (t *Table) destroy(cid CID) {
	e, ok := t.entries[cid]
	if !ok {
		return
	}
	t.lru.Remove(e.lruElem)
	delete(t.entries, cid)
}

// Len reports the number of live contexts.
func (t *Table) Len() int {
	return len(t.entries)
}

// Each calls fn for every live entry.
func (t *Table) Each(fn func(cid CID, ctx profile.Context, mode Mode)) {
	for cid, e := range t.entries {
		fn(cid, e.ctx, e.mode)
	}
}
