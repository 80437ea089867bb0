// Copyright 2025 Certen Protocol
//
// IAVL tree node encoding and hashing: self-balancing AVL nodes with
// per-node Merkle hashes over a deterministic byte encoding.

package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// EmptyHash is the distinguished root hash of a tree with zero keys.
var EmptyHash = make([]byte, 32)

// HashLeaf hashes a (name, value) pair for use outside of a tree's own
// node encoding, e.g. the multi-store's per-bank commit-hash table.
func HashLeaf(name, value []byte) []byte {
	var buf bytes.Buffer
	putBytes(&buf, name)
	putBytes(&buf, value)
	sum := sha256.Sum256(buf.Bytes())
	return sum[:]
}

// CombineHashes hashes two child hashes into their parent hash by
// length-prefixing each. Tree inner nodes do not use it: their hash also
// covers height, size and version.
func CombineHashes(left, right []byte) []byte {
	var buf bytes.Buffer
	putBytes(&buf, left)
	putBytes(&buf, right)
	sum := sha256.Sum256(buf.Bytes())
	return sum[:]
}

// Node is one node of the working IAVL tree. Inner nodes carry in-memory
// children when mutated this version and fall back to leftHash/rightHash
// (resolved through a NodeSource) once persisted, giving the copy-on-write
// sharing the design notes call for.
type Node struct {
	key     []byte
	value   []byte // leaves only
	height  int8
	size    int64
	version int64

	leftHash, rightHash []byte
	leftNode, rightNode *Node

	hash      []byte
	persisted bool
}

func (n *Node) isLeaf() bool { return n.height == 0 }

func newLeaf(key, value []byte, version int64) *Node {
	return &Node{key: key, value: value, height: 0, size: 1, version: version}
}

// balance returns left-height minus right-height.
func (n *Node) balance(t *Tree) (int8, error) {
	left, err := n.getLeftNode(t)
	if err != nil {
		return 0, err
	}
	right, err := n.getRightNode(t)
	if err != nil {
		return 0, err
	}
	return left.height - right.height, nil
}

func (n *Node) calcHeightAndSize(t *Tree) error {
	left, err := n.getLeftNode(t)
	if err != nil {
		return err
	}
	right, err := n.getRightNode(t)
	if err != nil {
		return err
	}
	if left.height > right.height {
		n.height = left.height + 1
	} else {
		n.height = right.height + 1
	}
	n.size = left.size + right.size
	return nil
}

func (n *Node) getLeftNode(t *Tree) (*Node, error) {
	if n.leftNode != nil {
		return n.leftNode, nil
	}
	node, err := t.ndb.getNode(n.leftHash)
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (n *Node) getRightNode(t *Tree) (*Node, error) {
	if n.rightNode != nil {
		return n.rightNode, nil
	}
	node, err := t.ndb.getNode(n.rightHash)
	if err != nil {
		return nil, err
	}
	return node, nil
}

// hashBytes returns this node's deterministic hash-input encoding.
// Leaf hashes include the value's own digest, not the raw value, so large
// values don't dominate inner-node recomputation cost.
func (n *Node) hashBytes() []byte {
	var buf bytes.Buffer
	putVarint(&buf, int64(n.height))
	putVarint(&buf, n.size)
	putVarint(&buf, n.version)
	if n.isLeaf() {
		putBytes(&buf, n.key)
		valueHash := sha256.Sum256(n.value)
		putBytes(&buf, valueHash[:])
	} else {
		putBytes(&buf, n.leftHash)
		putBytes(&buf, n.rightHash)
	}
	return buf.Bytes()
}

// Hash returns (computing and memoizing if necessary) this node's hash.
func (n *Node) Hash() []byte {
	if n.hash != nil {
		return n.hash
	}
	sum := sha256.Sum256(n.hashBytes())
	n.hash = sum[:]
	return n.hash
}

// hashWithChildren recomputes this node's children's hashes (if dirty)
// before computing its own, walking bottom-up. It is only ever called on
// the in-memory working tree.
func (n *Node) hashWithChildren(t *Tree) ([]byte, error) {
	if n.isLeaf() {
		return n.Hash(), nil
	}
	if n.leftNode != nil {
		h, err := n.leftNode.hashWithChildren(t)
		if err != nil {
			return nil, err
		}
		n.leftHash = h
	}
	if n.rightNode != nil {
		h, err := n.rightNode.hashWithChildren(t)
		if err != nil {
			return nil, err
		}
		n.rightHash = h
	}
	n.hash = nil
	return n.Hash(), nil
}

// saveRecursive persists every not-yet-persisted node in this subtree,
// memoizing on already-persisted (unchanged) subtrees so a save_version
// only writes the nodes that actually changed this version.
func (n *Node) saveRecursive(t *Tree) error {
	if n.persisted {
		return nil
	}
	if !n.isLeaf() {
		if n.leftNode != nil {
			if err := n.leftNode.saveRecursive(t); err != nil {
				return err
			}
		}
		if n.rightNode != nil {
			if err := n.rightNode.saveRecursive(t); err != nil {
				return err
			}
		}
	}
	if err := t.ndb.saveNode(n); err != nil {
		return err
	}
	n.persisted = true
	n.leftNode = nil
	n.rightNode = nil
	return nil
}

// encode serializes the full node (not just the hash input) for storage in
// the node DB, so it can be reconstructed by hash on demand.
func (n *Node) encode() []byte {
	var buf bytes.Buffer
	putVarint(&buf, int64(n.height))
	putVarint(&buf, n.size)
	putVarint(&buf, n.version)
	putBytes(&buf, n.key)
	if n.isLeaf() {
		buf.WriteByte(1)
		putBytes(&buf, n.value)
	} else {
		buf.WriteByte(0)
		putBytes(&buf, n.leftHash)
		putBytes(&buf, n.rightHash)
	}
	return buf.Bytes()
}

var errCorruptNode = errors.New("iavl: corrupt node encoding")

func decodeNode(data []byte) (*Node, error) {
	r := bytes.NewReader(data)
	height, err := getVarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: height: %v", errCorruptNode, err)
	}
	size, err := getVarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: size: %v", errCorruptNode, err)
	}
	version, err := getVarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: version: %v", errCorruptNode, err)
	}
	key, err := getBytes(r)
	if err != nil {
		return nil, fmt.Errorf("%w: key: %v", errCorruptNode, err)
	}
	isLeaf, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: leaf flag: %v", errCorruptNode, err)
	}
	n := &Node{key: key, height: int8(height), size: size, version: version, persisted: true}
	if isLeaf == 1 {
		value, err := getBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%w: value: %v", errCorruptNode, err)
		}
		n.value = value
	} else {
		left, err := getBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%w: leftHash: %v", errCorruptNode, err)
		}
		right, err := getBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%w: rightHash: %v", errCorruptNode, err)
		}
		n.leftHash, n.rightHash = left, right
	}
	return n, nil
}

func putVarint(buf *bytes.Buffer, v int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func putBytes(buf *bytes.Buffer, b []byte) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(b)))
	buf.Write(tmp[:n])
	buf.Write(b)
}

func getVarint(r *bytes.Reader) (int64, error) {
	return binary.ReadVarint(r)
}

func getBytes(r *bytes.Reader) ([]byte, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	out := make([]byte, length)
	if _, err := r.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}
