// Copyright 2025 Certen Protocol
//
// Multi-store: a named registry of Banks committed together into one
// application root hash.

package ledger

import (
	"sort"

	"github.com/nodalchain/baseapp/pkg/merkle"
)

// MultiStore owns every module's Bank and rolls their per-bank commit
// hashes up into a single application hash on each block commit.
type MultiStore struct {
	banks map[string]*Bank
	order []string // declaration order, preserved for BeginTx/CommitTx/DiscardTx iteration
	roots map[string][]byte
}

// NewMultiStore returns an empty registry.
func NewMultiStore() *MultiStore {
	return &MultiStore{banks: make(map[string]*Bank), roots: make(map[string][]byte)}
}

// Register declares bank under its own name. Registering the same name
// twice is a programmer error, not a runtime condition: panics. Module
// stores are wired once at startup before any block touches them.
func (m *MultiStore) Register(bank *Bank) {
	if _, exists := m.banks[bank.Name()]; exists {
		panic("ledger: bank already registered: " + bank.Name())
	}
	m.banks[bank.Name()] = bank
	m.order = append(m.order, bank.Name())
}

// Bank returns the named bank, or ErrUnknownBank if it was never
// registered.
func (m *MultiStore) Bank(name string) (*Bank, error) {
	b, ok := m.banks[name]
	if !ok {
		return nil, ErrUnknownBank
	}
	return b, nil
}

// Names returns every registered bank name in declaration order.
func (m *MultiStore) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// BeginTx opens a fresh tx-cache layer on every registered bank. The ABCI
// handler calls this once per ante phase and once per message-dispatch
// phase: each phase is its own "tx end" as far as Bank's
// two-layer model is concerned, letting a message-phase failure discard
// only its own writes while the ante phase's fee/sequence effects, already
// promoted to the block cache, survive.
func (m *MultiStore) BeginTx() {
	for _, name := range m.order {
		m.banks[name].BeginTx()
	}
}

// CommitTx promotes every bank's open tx cache into its block cache.
func (m *MultiStore) CommitTx() error {
	for _, name := range m.order {
		if err := m.banks[name].CommitTx(); err != nil {
			return err
		}
	}
	return nil
}

// DiscardTx drops every bank's open tx cache without touching its block
// cache.
func (m *MultiStore) DiscardTx() {
	for _, name := range m.order {
		m.banks[name].DiscardTx()
	}
}

// Commit flushes every bank's block cache into its tree and saves a new
// version, then builds the canonical ascending-name-sorted commit-hash
// table and returns the application hash (the Merkle root of that table)
// together with the new version number. The composite hash is computed
// from a sorted table regardless of declaration order, so
// adding a module never reorders existing banks' contribution to the
// table.
func (m *MultiStore) Commit() (appHash []byte, version int64, err error) {
	names := make([]string, 0, len(m.banks))
	for name := range m.banks {
		names = append(names, name)
	}
	sort.Strings(names)

	table := make(map[string][]byte, len(names))
	for _, name := range names {
		root, v, err := m.banks[name].CommitBlock()
		if err != nil {
			return nil, 0, err
		}
		table[name] = root
		version = v
	}
	m.roots = table

	appHash = rollUp(names, table)
	return appHash, version, nil
}

// AppHash recomputes the application hash from the last Commit's table
// without touching any bank, for repeated Info()/Query() calls.
func (m *MultiStore) AppHash() []byte {
	names := make([]string, 0, len(m.roots))
	for name := range m.roots {
		names = append(names, name)
	}
	sort.Strings(names)
	return rollUp(names, m.roots)
}

// ProveBank builds a portable inclusion receipt for the named bank's
// commit hash under the application hash of the last Commit, at height.
// A verifier holding only the application hash can check the bank's root
// from the receipt alone.
func (m *MultiStore) ProveBank(name string, height uint64) (*merkle.Receipt, error) {
	if _, ok := m.roots[name]; !ok {
		return nil, ErrUnknownBank
	}

	names := make([]string, 0, len(m.roots))
	for n := range m.roots {
		names = append(names, n)
	}
	sort.Strings(names)

	leaves := make([][]byte, len(names))
	index := -1
	for i, n := range names {
		leaves[i] = merkle.HashLeaf([]byte(n), m.roots[n])
		if n == name {
			index = i
		}
	}
	return merkle.BuildReceipt(leaves, index, height)
}

// rollUp hashes the sorted name -> root-hash table into one composite
// hash: each entry contributes merkle.HashLeaf(name, root) (both fields
// length-prefixed), and entries combine pairwise via merkle.CombineHashes,
// an unpaired last entry carried up a level unchanged.
func rollUp(names []string, table map[string][]byte) []byte {
	if len(names) == 0 {
		return merkle.HashLeaf(nil, nil)
	}
	leaves := make([][]byte, len(names))
	for i, name := range names {
		leaves[i] = merkle.HashLeaf([]byte(name), table[name])
	}
	for len(leaves) > 1 {
		var next [][]byte
		for i := 0; i < len(leaves); i += 2 {
			if i+1 < len(leaves) {
				next = append(next, merkle.CombineHashes(leaves[i], leaves[i+1]))
			} else {
				next = append(next, leaves[i])
			}
		}
		leaves = next
	}
	return leaves[0]
}

// PrefixBank is a view over a parent Store that prepends a fixed prefix to
// every key and strips it again on read.
type PrefixBank struct {
	parent Store
	prefix []byte
}

// NewPrefixBank returns a view of parent scoped beneath prefix. prefix
// must be non-empty.
func NewPrefixBank(parent Store, prefix []byte) *PrefixBank {
	return &PrefixBank{parent: parent, prefix: append([]byte(nil), prefix...)}
}

func (pb *PrefixBank) scope(key []byte) []byte {
	out := make([]byte, 0, len(pb.prefix)+len(key))
	out = append(out, pb.prefix...)
	out = append(out, key...)
	return out
}

func (pb *PrefixBank) Get(key []byte) ([]byte, error) {
	return pb.parent.Get(pb.scope(key))
}

func (pb *PrefixBank) Set(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return pb.parent.Set(pb.scope(key), value)
}

func (pb *PrefixBank) Delete(key []byte) ([]byte, error) {
	return pb.parent.Delete(pb.scope(key))
}

func (pb *PrefixBank) Iterator(start, end []byte) (Iterator, error) {
	s, e := pb.scopedBounds(start, end)
	it, err := pb.parent.Iterator(s, e)
	if err != nil {
		return nil, err
	}
	return &prefixIterator{it: it, prefix: pb.prefix}, nil
}

func (pb *PrefixBank) ReverseIterator(start, end []byte) (Iterator, error) {
	s, e := pb.scopedBounds(start, end)
	it, err := pb.parent.ReverseIterator(s, e)
	if err != nil {
		return nil, err
	}
	return &prefixIterator{it: it, prefix: pb.prefix}, nil
}

// scopedBounds translates a caller's unprefixed [start, end) into the
// parent's prefixed keyspace. A nil end becomes the prefix's own upper
// bound: increment the last non-0xFF byte and truncate any trailing 0xFF
// bytes; a prefix that is all 0xFF bytes has no finite upper bound, so the
// scan runs unbounded above (the parent store's own end-of-keyspace).
func (pb *PrefixBank) scopedBounds(start, end []byte) ([]byte, []byte) {
	s := pb.scope(start)
	if end != nil {
		return s, pb.scope(end)
	}
	return s, prefixUpperBound(pb.prefix)
}

func prefixUpperBound(prefix []byte) []byte {
	bound := append([]byte(nil), prefix...)
	for len(bound) > 0 {
		last := len(bound) - 1
		if bound[last] == 0xFF {
			bound = bound[:last]
			continue
		}
		bound[last]++
		return bound
	}
	return nil // prefix was all 0xFF (or empty): unbounded above
}

// prefixIterator strips the fixed prefix from keys yielded by the wrapped
// parent iterator.
type prefixIterator struct {
	it     Iterator
	prefix []byte
}

func (p *prefixIterator) Valid() bool { return p.it.Valid() }
func (p *prefixIterator) Next()       { p.it.Next() }
func (p *prefixIterator) Key() []byte { return p.it.Key()[len(p.prefix):] }
func (p *prefixIterator) Value() []byte { return p.it.Value() }
func (p *prefixIterator) Close() error  { return p.it.Close() }
