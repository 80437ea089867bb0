// Copyright 2025 Certen Protocol
//
// KV bank: per-module store wrapping an IAVL tree (pkg/merkle) with
// tx-cache and block-cache layers.

package ledger

import (
	"bytes"
	"sort"
	"sync"

	"github.com/nodalchain/baseapp/pkg/merkle"
)

// Store is the common read/write/iterate surface shared by a PersistedBank
// and a CacheBank, letting caches nest on top of either.
type Store interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) ([]byte, error)
	Iterator(start, end []byte) (Iterator, error)
	ReverseIterator(start, end []byte) (Iterator, error)
}

// Iterator walks a Store's keyspace in order.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Close() error
}

// PersistedBank is the bottom Store layer: a thin adapter over a single
// merkle.Tree, with no caching of its own.
type PersistedBank struct {
	tree *merkle.Tree
}

// NewPersistedBank wraps tree as a Store.
func NewPersistedBank(tree *merkle.Tree) *PersistedBank {
	return &PersistedBank{tree: tree}
}

func (p *PersistedBank) Get(key []byte) ([]byte, error) {
	value, _, err := p.tree.Get(key)
	return value, err
}

func (p *PersistedBank) Set(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	_, _, err := p.tree.Set(key, value)
	return err
}

func (p *PersistedBank) Delete(key []byte) ([]byte, error) {
	value, _, err := p.tree.Remove(key)
	return value, err
}

func (p *PersistedBank) Iterator(start, end []byte) (Iterator, error) {
	it := p.tree.Range(merkle.Bounds{Start: start, End: end})
	return newTreeIterator(it), nil
}

func (p *PersistedBank) ReverseIterator(start, end []byte) (Iterator, error) {
	// The tree's own Range always walks ascending; reverse by buffering.
	// Acceptable here because ranges are bounded slices of module state,
	// never an unbounded full-keyspace scan in the paths that need
	// descending order (pagination's reverse mode, primarily).
	it := p.tree.Range(merkle.Bounds{Start: start, End: end})
	var pairs []merkle.KVPair
	for it.Next() {
		pairs = append(pairs, it.Pair())
	}
	if it.Err() != nil {
		return nil, it.Err()
	}
	for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
		pairs[i], pairs[j] = pairs[j], pairs[i]
	}
	return newSliceIterator(pairs), nil
}

// treeIterator adapts merkle.Iterator's pull-based Next()-then-Pair() shape
// to the Valid()/Next()/Key()/Value() cursor shape used elsewhere in this
// package, advancing one step ahead of what callers observe.
type treeIterator struct {
	it    *merkle.Iterator
	valid bool
	pair  merkle.KVPair
}

func newTreeIterator(it *merkle.Iterator) *treeIterator {
	ti := &treeIterator{it: it}
	ti.advance()
	return ti
}

func (t *treeIterator) advance() {
	t.valid = t.it.Next()
	if t.valid {
		t.pair = t.it.Pair()
	}
}

func (t *treeIterator) Valid() bool   { return t.valid }
func (t *treeIterator) Next()         { t.advance() }
func (t *treeIterator) Key() []byte   { return t.pair.Key }
func (t *treeIterator) Value() []byte { return t.pair.Value }
func (t *treeIterator) Close() error  { return t.it.Err() }

// sliceIterator is a cursor over a pre-materialized, already-ordered slice
// of pairs: primed at index 0, like treeIterator, so Valid() is meaningful
// before any Next() call.
type sliceIterator struct {
	pairs []merkle.KVPair
	idx   int
}

func newSliceIterator(pairs []merkle.KVPair) *sliceIterator {
	return &sliceIterator{pairs: pairs}
}

func (s *sliceIterator) Valid() bool   { return s.idx < len(s.pairs) }
func (s *sliceIterator) Next()         { s.idx++ }
func (s *sliceIterator) Key() []byte   { return s.pairs[s.idx].Key }
func (s *sliceIterator) Value() []byte { return s.pairs[s.idx].Value }
func (s *sliceIterator) Close() error  { return nil }

// CacheBank is a generic, nestable cache layer over any Store: the
// tx-cache and block-cache are both instances of this type. The ABCI
// handler's ante and message phases each run in their own tx-cache over
// the block cache; it does not nest caches deeper than that.
type CacheBank struct {
	mu      sync.RWMutex
	parent  Store
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewCacheBank returns an empty cache layer over parent.
func NewCacheBank(parent Store) *CacheBank {
	return &CacheBank{parent: parent, writes: make(map[string][]byte), deletes: make(map[string]struct{})}
}

// Get resolves key: own write, own delete (-> not found), else the parent.
func (c *CacheBank) Get(key []byte) ([]byte, error) {
	c.mu.RLock()
	k := string(key)
	if v, ok := c.writes[k]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	if _, ok := c.deletes[k]; ok {
		c.mu.RUnlock()
		return nil, nil
	}
	c.mu.RUnlock()
	return c.parent.Get(key)
}

// Set rejects an empty key and otherwise records key->value in this layer.
func (c *CacheBank) Set(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := string(key)
	delete(c.deletes, k)
	c.writes[k] = value
	return nil
}

// Delete shadows key with a tombstone in this layer and returns its prior
// (merged) value.
func (c *CacheBank) Delete(key []byte) ([]byte, error) {
	prior, err := c.Get(key)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	k := string(key)
	delete(c.writes, k)
	c.deletes[k] = struct{}{}
	c.mu.Unlock()
	return prior, nil
}

// Write flushes this layer's writes (in ascending key order) then its
// deletes into the parent, exactly mirroring commit_block's "writes
// precede deletes" rule so an overwrite-then-delete within one layer has
// the same effect as a delete. The layer is left empty afterward.
func (c *CacheBank) Write() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.writes))
	for k := range c.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.parent.Set([]byte(k), c.writes[k]); err != nil {
			return err
		}
	}

	dkeys := make([]string, 0, len(c.deletes))
	for k := range c.deletes {
		dkeys = append(dkeys, k)
	}
	sort.Strings(dkeys)
	for _, k := range dkeys {
		if _, err := c.parent.Delete([]byte(k)); err != nil {
			return err
		}
	}

	c.writes = make(map[string][]byte)
	c.deletes = make(map[string]struct{})
	return nil
}

// Discard drops every pending write/delete in this layer without touching
// the parent.
func (c *CacheBank) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = make(map[string][]byte)
	c.deletes = make(map[string]struct{})
}

// Iterator returns the merged ascending view of this layer over its
// parent, minus deleted keys, so a range scan observes cached writes
// and tombstones exactly as point reads do.
func (c *CacheBank) Iterator(start, end []byte) (Iterator, error) {
	return c.mergedIterator(start, end, false)
}

// ReverseIterator is Iterator in descending order.
func (c *CacheBank) ReverseIterator(start, end []byte) (Iterator, error) {
	return c.mergedIterator(start, end, true)
}

func (c *CacheBank) mergedIterator(start, end []byte, reverse bool) (Iterator, error) {
	c.mu.RLock()
	ownKeys := make([]string, 0, len(c.writes))
	for k := range c.writes {
		if inRange([]byte(k), start, end) {
			ownKeys = append(ownKeys, k)
		}
	}
	deleted := make(map[string]struct{}, len(c.deletes))
	for k := range c.deletes {
		deleted[k] = struct{}{}
	}
	writes := make(map[string][]byte, len(c.writes))
	for k, v := range c.writes {
		writes[k] = v
	}
	c.mu.RUnlock()
	sort.Strings(ownKeys)

	var parentIt Iterator
	var err error
	if reverse {
		parentIt, err = c.parent.ReverseIterator(start, end)
	} else {
		parentIt, err = c.parent.Iterator(start, end)
	}
	if err != nil {
		return nil, err
	}

	merged := map[string][]byte{}
	for parentIt.Valid() {
		k := string(parentIt.Key())
		if _, isDeleted := deleted[k]; !isDeleted {
			if _, isOwn := writes[k]; !isOwn {
				merged[k] = parentIt.Value()
			}
		}
		parentIt.Next()
	}
	if err := parentIt.Close(); err != nil {
		return nil, err
	}
	for _, k := range ownKeys {
		if _, isDeleted := deleted[k]; !isDeleted {
			merged[k] = writes[k]
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	} else {
		sort.Strings(keys)
	}
	pairs := make([]merkle.KVPair, len(keys))
	for i, k := range keys {
		pairs[i] = merkle.KVPair{Key: []byte(k), Value: merged[k]}
	}
	return newSliceIterator(pairs), nil
}

func inRange(key, start, end []byte) bool {
	if start != nil && bytes.Compare(key, start) < 0 {
		return false
	}
	if end != nil && bytes.Compare(key, end) >= 0 {
		return false
	}
	return true
}

// Bank is the full per-module KV bank: a persisted IAVL tree, a block cache
// above it, and (when a transaction is open) a tx cache above that.
type Bank struct {
	name      string
	persisted *PersistedBank
	block     *CacheBank
	tx        *CacheBank
}

// NewBank constructs a Bank named name over tree.
func NewBank(name string, tree *merkle.Tree) *Bank {
	p := NewPersistedBank(tree)
	return &Bank{name: name, persisted: p, block: NewCacheBank(p)}
}

// Name returns the bank's declared name.
func (b *Bank) Name() string { return b.name }

// active returns the tx cache if one is open, else the block cache —
// resolving reads/writes through whichever layer the current context
// should see.
func (b *Bank) active() Store {
	if b.tx != nil {
		return b.tx
	}
	return b.block
}

func (b *Bank) Get(key []byte) ([]byte, error)            { return b.active().Get(key) }
func (b *Bank) Set(key, value []byte) error                { return b.active().Set(key, value) }
func (b *Bank) Delete(key []byte) ([]byte, error)           { return b.active().Delete(key) }
func (b *Bank) Iterator(start, end []byte) (Iterator, error) { return b.active().Iterator(start, end) }
func (b *Bank) ReverseIterator(start, end []byte) (Iterator, error) {
	return b.active().ReverseIterator(start, end)
}

// BeginTx opens a fresh tx cache over the block cache and returns it so a
// caller may nest further caches on top of it.
func (b *Bank) BeginTx() *CacheBank {
	b.tx = NewCacheBank(b.block)
	return b.tx
}

// CommitTx promotes the open tx cache's writes into the block cache.
// Calling it twice in a row with no intervening writes is a no-op the
// second time.
func (b *Bank) CommitTx() error {
	if b.tx == nil {
		return nil
	}
	if err := b.tx.Write(); err != nil {
		return err
	}
	b.tx = nil
	return nil
}

// DiscardTx drops the open tx cache without touching the block cache.
func (b *Bank) DiscardTx() {
	b.tx = nil
}

// CommitBlock flushes the block cache into the IAVL tree (writes in
// ascending key order, then deletes) and saves a new version,
// returning the bank's new root hash.
func (b *Bank) CommitBlock() ([]byte, int64, error) {
	if err := b.block.Write(); err != nil {
		return nil, 0, err
	}
	return b.persisted.tree.SaveVersion()
}

// Tree exposes the underlying IAVL tree for read-only historical access
// (the Query context pins a version and reads directly from here).
func (b *Bank) Tree() *merkle.Tree { return b.persisted.tree }
