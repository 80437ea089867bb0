// Copyright 2025 Certen Protocol
//
// Node DB: persists IAVL nodes by hash and per-version roots on top of
// a CometBFT dbm.DB, with a bounded LRU decode cache in front of it.

package kvdb

import (
	"bytes"
	"container/list"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	dbm "github.com/cometbft/cometbft-db"
)

// Keyspace prefixes: roots by version, nodes by hash.
const (
	rootsPrefix byte = 0x01
	nodesPrefix byte = 0x02
)

// ErrCacheSizeTooSmall is returned if a NodeDB is constructed with cache
// size < 1.
var ErrCacheSizeTooSmall = errors.New("kvdb: node cache size must be >= 1")

func rootKey(version int64) []byte {
	buf := make([]byte, binary.MaxVarintLen64+1)
	buf[0] = rootsPrefix
	n := binary.PutVarint(buf[1:], version)
	return buf[:1+n]
}

func nodeKey(hash []byte) []byte {
	key := make([]byte, 1+len(hash))
	key[0] = nodesPrefix
	copy(key[1:], hash)
	return key
}

// cacheEntry is the value stored in the LRU's doubly linked list.
type cacheEntry struct {
	key   string
	value []byte
}

// lru is a bounded, hash-keyed LRU cache. Not safe for concurrent use on
// its own; NodeDB guards it with a mutex.
type lru struct {
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

func newLRU(capacity int) *lru {
	return &lru{capacity: capacity, ll: list.New(), items: make(map[string]*list.Element)}
}

func (c *lru) get(key string) ([]byte, bool) {
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*cacheEntry).value, true
	}
	return nil, false
}

func (c *lru) add(key string, value []byte) {
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*cacheEntry).value = value
		return
	}
	el := c.ll.PushFront(&cacheEntry{key: key, value: value})
	c.items[key] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
}

// CacheMetrics receives node-cache lookup outcomes. pkg/metrics.Collector
// satisfies it.
type CacheMetrics interface {
	ObserveCacheHit()
	ObserveCacheMiss()
}

// NodeDB implements merkle.NodeSource on top of a CometBFT dbm.DB. An
// optional key prefix distinguishes the node DB's own keyspace from any
// other use of the same underlying database, so multiple per-module banks
// may share one dbm.DB instance by using distinct prefixes (see
// NewNodeDBWithPrefix).
type NodeDB struct {
	mu      sync.Mutex
	db      dbm.DB
	prefix  []byte
	cache   *lru
	metrics CacheMetrics
}

// NewNodeDB wraps db with a decode cache of the given size (must be >= 1).
func NewNodeDB(db dbm.DB, cacheSize int) (*NodeDB, error) {
	return NewNodeDBWithPrefix(db, nil, cacheSize)
}

// NewNodeDBWithPrefix is NewNodeDB scoped to keys beneath prefix, letting
// several module banks share one physical dbm.DB.
func NewNodeDBWithPrefix(db dbm.DB, prefix []byte, cacheSize int) (*NodeDB, error) {
	if cacheSize < 1 {
		return nil, ErrCacheSizeTooSmall
	}
	return &NodeDB{db: db, prefix: append([]byte(nil), prefix...), cache: newLRU(cacheSize)}, nil
}

// SetMetrics attaches a cache-lookup observer. Call before the database
// serves traffic.
func (n *NodeDB) SetMetrics(m CacheMetrics) { n.metrics = m }

func (n *NodeDB) scoped(key []byte) []byte {
	if len(n.prefix) == 0 {
		return key
	}
	out := make([]byte, 0, len(n.prefix)+len(key))
	out = append(out, n.prefix...)
	out = append(out, key...)
	return out
}

// GetNode returns the serialized node for hash, or nil if absent. The
// returned bytes are never mutated in place once cached, preserving the
// "cache never diverges from persistence" invariant.
func (n *NodeDB) GetNode(hash []byte) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	k := string(hash)
	if cached, ok := n.cache.get(k); ok {
		if n.metrics != nil {
			n.metrics.ObserveCacheHit()
		}
		return cached, nil
	}
	if n.metrics != nil {
		n.metrics.ObserveCacheMiss()
	}
	data, err := n.db.Get(n.scoped(nodeKey(hash)))
	if err != nil {
		return nil, fmt.Errorf("kvdb: get node %x: %w", hash, err)
	}
	if data == nil {
		return nil, nil
	}
	n.cache.add(k, data)
	return data, nil
}

// SaveNode writes data under hash, in both the backing DB and the decode
// cache. Nodes are written exactly once per distinct hash by construction
// (the IAVL tree never re-saves an already-persisted node).
func (n *NodeDB) SaveNode(hash, data []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.db.Set(n.scoped(nodeKey(hash)), data); err != nil {
		return fmt.Errorf("kvdb: save node %x: %w", hash, err)
	}
	n.cache.add(string(hash), data)
	return nil
}

// GetRoot returns the root hash committed at version, or nil if that
// version was never saved.
func (n *NodeDB) GetRoot(version int64) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	data, err := n.db.Get(n.scoped(rootKey(version)))
	if err != nil {
		return nil, fmt.Errorf("kvdb: get root %d: %w", version, err)
	}
	return data, nil
}

// SaveRoot durably commits version -> hash. Uses SetSync so a crash right
// after Commit cannot lose the just-committed root.
func (n *NodeDB) SaveRoot(version int64, hash []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.db.SetSync(n.scoped(rootKey(version)), hash); err != nil {
		return fmt.Errorf("kvdb: save root %d: %w", version, err)
	}
	return nil
}

// Versions returns every version that has a saved root, ascending.
func (n *NodeDB) Versions() ([]int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	start := n.scoped([]byte{rootsPrefix})
	end := n.scoped([]byte{rootsPrefix + 1})
	it, err := n.db.Iterator(start, end)
	if err != nil {
		return nil, fmt.Errorf("kvdb: iterate roots: %w", err)
	}
	defer it.Close()

	var versions []int64
	for ; it.Valid(); it.Next() {
		key := it.Key()[len(n.prefix)+1:]
		v, err := binary.ReadVarint(bytes.NewReader(key))
		if err != nil {
			return nil, fmt.Errorf("kvdb: decode root key: %w", err)
		}
		versions = append(versions, v)
	}
	// Root keys are zigzag varints, whose byte order is not numeric order.
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}
