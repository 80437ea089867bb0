// Copyright 2025 Certen Protocol

package kvdb

import (
	"bytes"
	"crypto/sha256"
	"testing"

	dbm "github.com/cometbft/cometbft-db"
)

func hashOf(b byte) []byte {
	sum := sha256.Sum256([]byte{b})
	return sum[:]
}

func TestNodeDBSaveGetNode(t *testing.T) {
	ndb, err := NewNodeDB(dbm.NewMemDB(), 10)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	hash := hashOf(1)
	if err := ndb.SaveNode(hash, []byte("node-bytes")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := ndb.GetNode(hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "node-bytes" {
		t.Errorf("node = %q, want %q", got, "node-bytes")
	}

	missing, err := ndb.GetNode(hashOf(99))
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("missing node = %q, want nil", missing)
	}
}

func TestNodeDBRootsAndVersions(t *testing.T) {
	ndb, err := NewNodeDB(dbm.NewMemDB(), 10)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	for v := int64(1); v <= 3; v++ {
		if err := ndb.SaveRoot(v, hashOf(byte(v))); err != nil {
			t.Fatalf("save root %d: %v", v, err)
		}
	}
	root, err := ndb.GetRoot(2)
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if !bytes.Equal(root, hashOf(2)) {
		t.Errorf("root 2 = %x, want %x", root, hashOf(2))
	}

	versions, err := ndb.Versions()
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("versions = %v, want 3 entries", versions)
	}
}

func TestNodeDBCacheSizePrecondition(t *testing.T) {
	if _, err := NewNodeDB(dbm.NewMemDB(), 0); err != ErrCacheSizeTooSmall {
		t.Errorf("cache size 0: err = %v, want ErrCacheSizeTooSmall", err)
	}
}

func TestNodeDBCacheServesAfterBackendLoss(t *testing.T) {
	// A cached node must be served verbatim even if the backing store no
	// longer has it; the cache never diverges from what was written.
	backend := dbm.NewMemDB()
	ndb, err := NewNodeDB(backend, 10)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	hash := hashOf(7)
	if err := ndb.SaveNode(hash, []byte("cached")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := backend.Delete(nodeKey(hash)); err != nil {
		t.Fatalf("backend delete: %v", err)
	}
	got, err := ndb.GetNode(hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "cached" {
		t.Errorf("node = %q, want cache to serve it", got)
	}
}

func TestNodeDBLRUEviction(t *testing.T) {
	ndb, err := NewNodeDB(dbm.NewMemDB(), 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := byte(1); i <= 3; i++ {
		if err := ndb.SaveNode(hashOf(i), []byte{i}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	// All three stay readable; the evicted one comes off the backend.
	for i := byte(1); i <= 3; i++ {
		got, err := ndb.GetNode(hashOf(i))
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if !bytes.Equal(got, []byte{i}) {
			t.Errorf("node %d = %v, want [%d]", i, got, i)
		}
	}
}

func TestNodeDBPrefixIsolation(t *testing.T) {
	backend := dbm.NewMemDB()
	a, err := NewNodeDBWithPrefix(backend, []byte("a/"), 10)
	if err != nil {
		t.Fatalf("new a: %v", err)
	}
	b, err := NewNodeDBWithPrefix(backend, []byte("b/"), 10)
	if err != nil {
		t.Fatalf("new b: %v", err)
	}

	if err := a.SaveRoot(1, hashOf(1)); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := b.SaveRoot(1, hashOf(2)); err != nil {
		t.Fatalf("save b: %v", err)
	}

	rootA, _ := a.GetRoot(1)
	rootB, _ := b.GetRoot(1)
	if bytes.Equal(rootA, rootB) {
		t.Error("prefixed databases observed each other's roots")
	}

	versionsA, err := a.Versions()
	if err != nil {
		t.Fatalf("versions a: %v", err)
	}
	if len(versionsA) != 1 || versionsA[0] != 1 {
		t.Errorf("versions a = %v, want [1]", versionsA)
	}
}
