// Copyright 2025 Certen Protocol

package ledger

import (
	"bytes"
	"testing"
)

func TestBankLayerResolution(t *testing.T) {
	bank := newTestBank(t, "test")

	// Persisted layer.
	if err := bank.Set([]byte("p"), []byte("persisted")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, _, err := bank.CommitBlock(); err != nil {
		t.Fatalf("commit block: %v", err)
	}

	// Block layer overrides persisted.
	if err := bank.Set([]byte("p"), []byte("block")); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Tx layer overrides block.
	bank.BeginTx()
	if err := bank.Set([]byte("p"), []byte("tx")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := bank.Get([]byte("p"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "tx" {
		t.Errorf("p = %q, want %q", got, "tx")
	}

	// A tx-layer delete shadows everything beneath.
	if _, err := bank.Delete([]byte("p")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = bank.Get([]byte("p"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("p = %q after tx delete, want nil", got)
	}

	// Discarding the tx restores the block layer's view.
	bank.DiscardTx()
	got, err = bank.Get([]byte("p"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "block" {
		t.Errorf("p = %q after discard, want %q", got, "block")
	}
}

func TestBankEmptyKeyRejected(t *testing.T) {
	bank := newTestBank(t, "test")
	if err := bank.Set(nil, []byte("v")); err != ErrEmptyKey {
		t.Errorf("set empty key: err = %v, want ErrEmptyKey", err)
	}
	bank.BeginTx()
	if err := bank.Set([]byte{}, []byte("v")); err != ErrEmptyKey {
		t.Errorf("set empty key in tx: err = %v, want ErrEmptyKey", err)
	}
}

func TestCommitTxIdempotent(t *testing.T) {
	bank := newTestBank(t, "test")
	bank.BeginTx()
	if err := bank.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := bank.CommitTx(); err != nil {
		t.Fatalf("first commit tx: %v", err)
	}
	if err := bank.CommitTx(); err != nil {
		t.Fatalf("second commit tx: %v", err)
	}
	got, err := bank.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("k = %q, want %q", got, "v")
	}
}

func TestSetThenDeleteLeavesNothing(t *testing.T) {
	bank := newTestBank(t, "test")
	bank.BeginTx()
	if err := bank.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := bank.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := bank.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("k = %q, want nil", got)
	}

	if err := bank.CommitTx(); err != nil {
		t.Fatalf("commit tx: %v", err)
	}
	if _, _, err := bank.CommitBlock(); err != nil {
		t.Fatalf("commit block: %v", err)
	}
	value, found, err := bank.Tree().Get([]byte("k"))
	if err != nil {
		t.Fatalf("tree get: %v", err)
	}
	if found {
		t.Errorf("k persisted as %q, want nothing", value)
	}
}

func TestCacheBankMergedIterator(t *testing.T) {
	bank := newTestBank(t, "test")

	// Persisted: a, b, c. Block cache: overwrite b, delete c, add d.
	for _, k := range []string{"a", "b", "c"} {
		if err := bank.Set([]byte(k), []byte("old-"+k)); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if _, _, err := bank.CommitBlock(); err != nil {
		t.Fatalf("commit block: %v", err)
	}
	if err := bank.Set([]byte("b"), []byte("new-b")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := bank.Delete([]byte("c")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := bank.Set([]byte("d"), []byte("new-d")); err != nil {
		t.Fatalf("set: %v", err)
	}

	it, err := bank.Iterator(nil, nil)
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	defer it.Close()

	want := []struct{ k, v string }{{"a", "old-a"}, {"b", "new-b"}, {"d", "new-d"}}
	for i, w := range want {
		if !it.Valid() {
			t.Fatalf("iterator exhausted at %d, want %q", i, w.k)
		}
		if string(it.Key()) != w.k || string(it.Value()) != w.v {
			t.Errorf("entry %d = (%q, %q), want (%q, %q)", i, it.Key(), it.Value(), w.k, w.v)
		}
		it.Next()
	}
	if it.Valid() {
		t.Errorf("unexpected extra entry %q", it.Key())
	}
}

func TestPrefixBankScoping(t *testing.T) {
	bank := newTestBank(t, "test")
	if err := bank.Set([]byte{0, 1}, []byte{1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := bank.Set([]byte{1, 3}, []byte{2}); err != nil {
		t.Fatalf("set: %v", err)
	}

	pb := NewPrefixBank(bank, []byte{1})
	it, err := pb.Iterator(nil, nil)
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	defer it.Close()

	if !it.Valid() {
		t.Fatal("prefix scan yielded nothing")
	}
	if !bytes.Equal(it.Key(), []byte{3}) || !bytes.Equal(it.Value(), []byte{2}) {
		t.Errorf("entry = (%v, %v), want ([3], [2])", it.Key(), it.Value())
	}
	it.Next()
	if it.Valid() {
		t.Errorf("unexpected extra entry %v", it.Key())
	}

	got, err := pb.Get([]byte{3})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte{2}) {
		t.Errorf("pb[3] = %v, want [2]", got)
	}
}

func TestPrefixUpperBound(t *testing.T) {
	cases := []struct {
		prefix []byte
		want   []byte
	}{
		{[]byte{0x01}, []byte{0x02}},
		{[]byte{0x01, 0xFF}, []byte{0x02}},
		{[]byte{0xFF, 0xFF}, nil},
		{[]byte{0x61, 0x62}, []byte{0x61, 0x63}},
	}
	for _, tc := range cases {
		got := prefixUpperBound(tc.prefix)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("prefixUpperBound(%v) = %v, want %v", tc.prefix, got, tc.want)
		}
	}
}
