// Copyright 2025 Certen Protocol
//
// Context: the request-scoped capability bundle passed to every module
// handler, in four variants distinguished by what they may do.

package baseapp

import (
	"context"
	"time"

	"github.com/nodalchain/baseapp/pkg/gas"
	"github.com/nodalchain/baseapp/pkg/ledger"
	"github.com/nodalchain/baseapp/pkg/merkle"
)

// Kind distinguishes the four Context variants.
type Kind int

const (
	KindInit Kind = iota
	KindQuery
	KindTx
	KindBlock
)

// Header carries the subset of block-header fields handlers need.
type Header struct {
	Height  int64
	Time    time.Time
	ChainID string
}

// Context is passed to every module handler. Which operations are valid
// depends on Kind: Query contexts reject writes; Init and Block contexts
// carry no live gas meter (begin/end-block and genesis are untimed);
// only Tx contexts carry a raw
// tx, a gas meter, and an event sink.
type Context struct {
	goCtx  context.Context
	kind   Kind
	stores *ledger.MultiStore
	header Header

	// Tx-only fields.
	meter   *gas.Meter
	gasCfg  gas.Config
	events  *EventManager
	rawTx   []byte

	// Query-only field: the historical version this context is pinned to.
	// Zero means "head" (the version as of the last Commit).
	version int64
}

// NewInitContext opens an Init context at the genesis height.
func NewInitContext(goCtx context.Context, stores *ledger.MultiStore, chainID string, initialHeight int64) *Context {
	return &Context{
		goCtx:  goCtx,
		kind:   KindInit,
		stores: stores,
		header: Header{Height: initialHeight, ChainID: chainID},
	}
}

// NewBlockContext opens a Block context (BeginBlock/EndBlock), untimed.
func NewBlockContext(goCtx context.Context, stores *ledger.MultiStore, header Header) *Context {
	return &Context{goCtx: goCtx, kind: KindBlock, stores: stores, header: header}
}

// NewQueryContext opens a read-only context pinned to version (0 = head).
func NewQueryContext(goCtx context.Context, stores *ledger.MultiStore, version int64) *Context {
	return &Context{goCtx: goCtx, kind: KindQuery, stores: stores, version: version}
}

// NewTxContext opens a mutable Tx context with a gas meter seeded to
// gasLimit and a fresh event sink.
func NewTxContext(goCtx context.Context, stores *ledger.MultiStore, header Header, rawTx []byte, gasLimit uint64, gasCfg gas.Config) *Context {
	return &Context{
		goCtx:  goCtx,
		kind:   KindTx,
		stores: stores,
		header: header,
		meter:  gas.NewMeter(gasLimit),
		gasCfg: gasCfg,
		events: NewEventManager(),
		rawTx:  rawTx,
	}
}

// WithEventManager returns a shallow copy of ctx using the given sink,
// letting the ante pipeline and message dispatch share one context value
// while isolating which events a sub-cache's rollback should discard.
func (c Context) WithEventManager(m *EventManager) Context {
	c.events = m
	return c
}

func (c *Context) Kind() Kind           { return c.kind }
func (c *Context) Header() Header       { return c.header }
func (c *Context) GoContext() context.Context { return c.goCtx }
func (c *Context) GasMeter() *gas.Meter { return c.meter }
func (c *Context) EventManager() *EventManager { return c.events }
func (c *Context) RawTx() []byte        { return c.rawTx }
func (c *Context) Version() int64       { return c.version }

// KVStore returns a read-only (for Query) or mutable gas-metered (for Tx)
// view of the named bank.
func (c *Context) KVStore(name string) (gas.Store, error) {
	if c.kind == KindQuery {
		bank, err := c.stores.Bank(name)
		if err != nil {
			return nil, err
		}
		return &historicalView{tree: bank.Tree(), version: c.version}, nil
	}
	bank, err := c.stores.Bank(name)
	if err != nil {
		return nil, err
	}
	if c.kind == KindTx {
		return gas.NewWrappedStore(bank, c.meter, c.gasCfg), nil
	}
	return bank, nil
}

// historicalView is a read-only Store pinned to a tree version other than
// its current working state: Query contexts never observe writes from a
// later, uncommitted block. version 0 means head
// (the tree's last saved version).
type historicalView struct {
	tree    *merkle.Tree
	version int64
}

func (h *historicalView) resolvedVersion() int64 {
	if h.version != 0 {
		return h.version
	}
	return h.tree.Version()
}

func (h *historicalView) Get(key []byte) ([]byte, error) {
	v, _, err := h.tree.GetAtVersion(h.resolvedVersion(), key)
	return v, err
}
func (h *historicalView) Set(key, value []byte) error        { return errReadOnly }
func (h *historicalView) Delete(key []byte) ([]byte, error)   { return nil, errReadOnly }
func (h *historicalView) Iterator(start, end []byte) (gas.Iterator, error) {
	it, err := h.tree.RangeAtVersion(h.resolvedVersion(), merkle.Bounds{Start: start, End: end})
	if err != nil {
		return nil, err
	}
	return &historicalIterator{it: it}, nil
}
func (h *historicalView) ReverseIterator(start, end []byte) (gas.Iterator, error) {
	// Historical queries never need descending order in this application;
	// reverse pagination is served by buffering at the pagination layer.
	return nil, errReadOnly
}

// historicalIterator adapts merkle.Iterator's pull-then-read shape to the
// Valid()/Next()/Key()/Value() cursor shape gas.Store expects.
type historicalIterator struct {
	it    *merkle.Iterator
	valid bool
	pair  merkle.KVPair
}

func (h *historicalIterator) advanceIfNeeded() {
	if h.pair.Key == nil && !h.valid {
		h.valid = h.it.Next()
		if h.valid {
			h.pair = h.it.Pair()
		}
	}
}
func (h *historicalIterator) Valid() bool {
	h.advanceIfNeeded()
	return h.valid
}
func (h *historicalIterator) Next() {
	h.advanceIfNeeded()
	h.valid = h.it.Next()
	if h.valid {
		h.pair = h.it.Pair()
	}
}
func (h *historicalIterator) Key() []byte   { h.advanceIfNeeded(); return h.pair.Key }
func (h *historicalIterator) Value() []byte { h.advanceIfNeeded(); return h.pair.Value }
func (h *historicalIterator) Close() error  { return h.it.Err() }

var errReadOnly = NewCoded(CodespaceCore, CodeInvalidRequest, "query context is read-only")
