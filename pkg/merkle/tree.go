// Copyright 2025 Certen Protocol
//
// Versioned, authenticated IAVL+ tree: a self-balancing AVL tree where
// every node carries a Merkle hash, in-order traversal yields strictly
// ascending keys, and every save_version produces a new immutable root
// reachable by its version number until pruned.

package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors surfaced by tree operations.
var (
	ErrVersionNotFound = errors.New("iavl: version not found")
	ErrOverwrite       = errors.New("iavl: version already saved with a different root")
	ErrEmptyKey        = errors.New("iavl: key cannot be empty")
)

// NodeSource is the persistence backend an IAVL tree delegates node and root
// storage to — satisfied structurally by pkg/kvdb.NodeDB.
type NodeSource interface {
	GetNode(hash []byte) ([]byte, error)
	SaveNode(hash, data []byte) error
	GetRoot(version int64) ([]byte, error)
	SaveRoot(version int64, hash []byte) error
	Versions() ([]int64, error)
}

// ndbSource adapts a NodeSource into the *Node-returning helpers Node
// methods use, keeping decode/encode logic out of the storage interface.
type ndbSource struct {
	src NodeSource
}

func (s ndbSource) getNode(hash []byte) (*Node, error) {
	if len(hash) == 0 || bytes.Equal(hash, EmptyHash) {
		return &Node{height: -1, size: 0}, nil // sentinel "no child" leaf-height -1
	}
	data, err := s.src.GetNode(hash)
	if err != nil {
		return nil, fmt.Errorf("storage corruption: node %x unreadable: %w", hash, err)
	}
	if data == nil {
		return nil, fmt.Errorf("storage corruption: node %x missing", hash)
	}
	n, err := decodeNode(data)
	if err != nil {
		return nil, fmt.Errorf("storage corruption: %w", err)
	}
	n.hash = append([]byte(nil), hash...)
	return n, nil
}

func (s ndbSource) saveNode(n *Node) error {
	return s.src.SaveNode(n.Hash(), n.encode())
}

// Tree is a single versioned IAVL+ tree, normally one per per-module Bank.
type Tree struct {
	mu      sync.RWMutex
	ndb     ndbSource
	root    *Node // nil => empty tree
	version int64 // head (last loaded/saved) version
}

// NewTree returns a fresh, empty tree backed by src at version 0.
func NewTree(src NodeSource) *Tree {
	return &Tree{ndb: ndbSource{src: src}}
}

// RootHash returns the working tree's current root hash, or EmptyHash if
// the tree holds zero keys.
func (t *Tree) RootHash() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.root == nil {
		return append([]byte(nil), EmptyHash...)
	}
	return t.root.Hash()
}

// Version returns the tree's current head version.
func (t *Tree) Version() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Get resolves key against the working tree. found is false if the key is
// absent.
func (t *Tree) Get(key []byte) (value []byte, found bool, err error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.getFrom(t.root, key)
}

func (t *Tree) getFrom(n *Node, key []byte) ([]byte, bool, error) {
	if n == nil {
		return nil, false, nil
	}
	if n.isLeaf() {
		if bytes.Equal(n.key, key) {
			return n.value, true, nil
		}
		return nil, false, nil
	}
	if bytes.Compare(key, n.key) < 0 {
		left, err := n.getLeftNode(t)
		if err != nil {
			return nil, false, err
		}
		return t.getFrom(left, key)
	}
	right, err := n.getRightNode(t)
	if err != nil {
		return nil, false, err
	}
	return t.getFrom(right, key)
}

// Set inserts or updates key->value in the working tree. Setting an empty
// key is rejected; setting an empty value succeeds.
func (t *Tree) Set(key, value []byte) (prior []byte, updated bool, err error) {
	if len(key) == 0 {
		return nil, false, ErrEmptyKey
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	newRoot, prior, updated, err := t.setRecursive(t.root, key, value)
	if err != nil {
		return nil, false, err
	}
	t.root = newRoot
	return prior, updated, nil
}

func (t *Tree) setRecursive(n *Node, key, value []byte) (*Node, []byte, bool, error) {
	if n == nil {
		return newLeaf(key, value, t.version+1), nil, false, nil
	}
	if n.isLeaf() {
		cmp := bytes.Compare(key, n.key)
		switch {
		case cmp == 0:
			return newLeaf(key, value, t.version+1), n.value, true, nil
		case cmp < 0:
			parent := &Node{
				key: n.key, height: 1, size: 2, version: t.version + 1,
				leftNode: newLeaf(key, value, t.version+1), rightNode: n,
			}
			return parent, nil, false, nil
		default:
			parent := &Node{
				key: key, height: 1, size: 2, version: t.version + 1,
				leftNode: n, rightNode: newLeaf(key, value, t.version+1),
			}
			return parent, nil, false, nil
		}
	}

	clone := t.cloneForWrite(n)
	var prior []byte
	var updated bool
	var err error
	if bytes.Compare(key, clone.key) < 0 {
		left, err2 := clone.getLeftNode(t)
		if err2 != nil {
			return nil, nil, false, err2
		}
		clone.leftNode, prior, updated, err = t.setRecursive(left, key, value)
		clone.leftHash = nil
	} else {
		right, err2 := clone.getRightNode(t)
		if err2 != nil {
			return nil, nil, false, err2
		}
		clone.rightNode, prior, updated, err = t.setRecursive(right, key, value)
		clone.rightHash = nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	if err := clone.calcHeightAndSize(t); err != nil {
		return nil, nil, false, err
	}
	balanced, err := t.rebalance(clone)
	if err != nil {
		return nil, nil, false, err
	}
	return balanced, prior, updated, nil
}

// cloneForWrite gives copy-on-write semantics: a persisted node is never
// mutated in place, only a fresh working copy of it is.
func (t *Tree) cloneForWrite(n *Node) *Node {
	clone := *n
	clone.version = t.version + 1
	clone.hash = nil
	clone.persisted = false
	return &clone
}

// Remove deletes key from the working tree, returning its prior value.
func (t *Tree) Remove(key []byte) (value []byte, removed bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.root == nil {
		return nil, false, nil
	}
	newRoot, value, removed, err := t.removeRecursive(t.root, key)
	if err != nil {
		return nil, false, err
	}
	t.root = newRoot
	return value, removed, nil
}

func (t *Tree) removeRecursive(n *Node, key []byte) (*Node, []byte, bool, error) {
	if n.isLeaf() {
		if bytes.Equal(n.key, key) {
			return nil, n.value, true, nil
		}
		return n, nil, false, nil
	}

	clone := t.cloneForWrite(n)
	if bytes.Compare(key, clone.key) < 0 {
		left, err := clone.getLeftNode(t)
		if err != nil {
			return nil, nil, false, err
		}
		newLeft, value, removed, err := t.removeRecursive(left, key)
		if err != nil {
			return nil, nil, false, err
		}
		if !removed {
			return n, nil, false, nil
		}
		if newLeft == nil {
			right, err := clone.getRightNode(t)
			if err != nil {
				return nil, nil, false, err
			}
			return right, value, true, nil
		}
		clone.leftNode, clone.leftHash = newLeft, nil
		if err := clone.calcHeightAndSize(t); err != nil {
			return nil, nil, false, err
		}
		balanced, err := t.rebalance(clone)
		return balanced, value, true, err
	}

	right, err := clone.getRightNode(t)
	if err != nil {
		return nil, nil, false, err
	}
	newRight, value, removed, err := t.removeRecursive(right, key)
	if err != nil {
		return nil, nil, false, err
	}
	if !removed {
		return n, nil, false, nil
	}
	if newRight == nil {
		left, err := clone.getLeftNode(t)
		if err != nil {
			return nil, nil, false, err
		}
		return left, value, true, nil
	}
	clone.rightNode, clone.rightHash = newRight, nil
	if err := clone.calcHeightAndSize(t); err != nil {
		return nil, nil, false, err
	}
	balanced, err := t.rebalance(clone)
	return balanced, value, true, err
}

// rebalance restores the |balance| <= 1 AVL invariant after a mutation.
func (t *Tree) rebalance(n *Node) (*Node, error) {
	bal, err := n.balance(t)
	if err != nil {
		return nil, err
	}
	switch {
	case bal > 1:
		left, err := n.getLeftNode(t)
		if err != nil {
			return nil, err
		}
		leftBal, err := left.balance(t)
		if err != nil {
			return nil, err
		}
		if leftBal < 0 {
			newLeft, err := t.rotateLeft(t.cloneForWrite(left))
			if err != nil {
				return nil, err
			}
			n.leftNode, n.leftHash = newLeft, nil
			if err := n.calcHeightAndSize(t); err != nil {
				return nil, err
			}
		}
		return t.rotateRight(n)
	case bal < -1:
		right, err := n.getRightNode(t)
		if err != nil {
			return nil, err
		}
		rightBal, err := right.balance(t)
		if err != nil {
			return nil, err
		}
		if rightBal > 0 {
			newRight, err := t.rotateRight(t.cloneForWrite(right))
			if err != nil {
				return nil, err
			}
			n.rightNode, n.rightHash = newRight, nil
			if err := n.calcHeightAndSize(t); err != nil {
				return nil, err
			}
		}
		return t.rotateLeft(n)
	default:
		return n, nil
	}
}

func (t *Tree) rotateLeft(n *Node) (*Node, error) {
	right, err := n.getRightNode(t)
	if err != nil {
		return nil, err
	}
	newRight := t.cloneForWrite(right)
	rightLeft, err := newRight.getLeftNode(t)
	if err != nil {
		return nil, err
	}
	n.rightNode, n.rightHash = rightLeft, nil
	newRight.leftNode, newRight.leftHash = n, nil
	if err := n.calcHeightAndSize(t); err != nil {
		return nil, err
	}
	if err := newRight.calcHeightAndSize(t); err != nil {
		return nil, err
	}
	return newRight, nil
}

func (t *Tree) rotateRight(n *Node) (*Node, error) {
	left, err := n.getLeftNode(t)
	if err != nil {
		return nil, err
	}
	newLeft := t.cloneForWrite(left)
	leftRight, err := newLeft.getRightNode(t)
	if err != nil {
		return nil, err
	}
	n.leftNode, n.leftHash = leftRight, nil
	newLeft.rightNode, newLeft.rightHash = n, nil
	if err := n.calcHeightAndSize(t); err != nil {
		return nil, err
	}
	if err := newLeft.calcHeightAndSize(t); err != nil {
		return nil, err
	}
	return newLeft, nil
}

// SaveVersion hashes, persists, and publishes the working tree as the next
// version. If a root already exists at head+1 with a different hash, it
// fails with ErrOverwrite; saving the bit-identical root is idempotent.
func (t *Tree) SaveVersion() (rootHash []byte, version int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.version + 1
	var hash []byte
	if t.root == nil {
		hash = append([]byte(nil), EmptyHash...)
	} else {
		hash, err = t.root.hashWithChildren(t)
		if err != nil {
			return nil, 0, err
		}
	}

	existing, err := t.ndb.src.GetRoot(next)
	if err == nil && existing != nil {
		if !bytes.Equal(existing, hash) {
			return nil, 0, ErrOverwrite
		}
	} else {
		if t.root != nil {
			if err := t.root.saveRecursive(t); err != nil {
				return nil, 0, err
			}
		}
		if err := t.ndb.src.SaveRoot(next, hash); err != nil {
			return nil, 0, err
		}
	}

	if t.root != nil {
		t.root.version = next
	}
	t.version = next
	return append([]byte(nil), hash...), next, nil
}

// LoadVersion replaces the working tree with the persisted tree at version
// v. v=0 loads the empty tree.
func (t *Tree) LoadVersion(v int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v == 0 {
		t.root = nil
		t.version = 0
		return nil
	}
	hash, err := t.ndb.src.GetRoot(v)
	if err != nil || hash == nil {
		return ErrVersionNotFound
	}
	if bytes.Equal(hash, EmptyHash) {
		t.root = nil
		t.version = v
		return nil
	}
	root, err := t.ndb.getNode(hash)
	if err != nil {
		return err
	}
	t.root = root
	t.version = v
	return nil
}

// GetAtVersion resolves key against the tree as it stood at a previously
// saved version, without disturbing the working tree — the basis of the
// Query context's pinned-version guarantee.
func (t *Tree) GetAtVersion(version int64, key []byte) (value []byte, found bool, err error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	root, err := t.rootAtVersion(version)
	if err != nil {
		return nil, false, err
	}
	return t.getFrom(root, key)
}

// rootAtVersion loads (without caching into t.root) the node tree rooted
// at version's saved hash.
func (t *Tree) rootAtVersion(version int64) (*Node, error) {
	hash, err := t.ndb.src.GetRoot(version)
	if err != nil {
		return nil, fmt.Errorf("iavl: get root at version %d: %w", version, err)
	}
	if hash == nil {
		return nil, ErrVersionNotFound
	}
	if bytes.Equal(hash, EmptyHash) {
		return nil, nil
	}
	return t.ndb.getNode(hash)
}

// ContainsHash reports whether hash names a node reachable from the
// persisted store (used to answer light-client "do you have this node"
// checks without materializing it).
func (t *Tree) ContainsHash(hash []byte) bool {
	if len(hash) == 0 || bytes.Equal(hash, EmptyHash) {
		return true
	}
	data, err := t.ndb.src.GetNode(hash)
	return err == nil && data != nil
}
