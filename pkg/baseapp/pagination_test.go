// Copyright 2025 Certen Protocol

package baseapp

import (
	"fmt"
	"testing"
)

// sliceSource is a Source over a fixed slice that counts how many items
// were pulled, for laziness checks.
type sliceSource struct {
	items  []PageItem
	idx    int
	pulled int
}

func newSliceSource(n int) *sliceSource {
	s := &sliceSource{}
	for i := 0; i < n; i++ {
		s.items = append(s.items, PageItem{
			Key:   []byte(fmt.Sprintf("k%03d", i)),
			Value: []byte(fmt.Sprintf("v%03d", i)),
		})
	}
	return s
}

func (s *sliceSource) Next() (PageItem, bool) {
	if s.idx >= len(s.items) {
		return PageItem{}, false
	}
	item := s.items[s.idx]
	s.idx++
	s.pulled++
	return item, true
}

func TestPageByOffsetVisitsEverythingOnce(t *testing.T) {
	const total, limit = 23, 5
	seen := map[string]int{}
	var order []string

	for offset := uint64(0); ; offset++ {
		src := newSliceSource(total)
		items, result, err := PageByOffset(src, offset, limit)
		if err != nil {
			t.Fatalf("offset %d: %v", offset, err)
		}
		for _, item := range items {
			seen[string(item.Key)]++
			order = append(order, string(item.Key))
		}
		if result.NextItem == nil {
			break
		}
	}

	if len(seen) != total {
		t.Fatalf("visited %d distinct items, want %d", len(seen), total)
	}
	for k, n := range seen {
		if n != 1 {
			t.Errorf("item %q visited %d times", k, n)
		}
	}
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			t.Errorf("items out of original order: %q then %q", order[i-1], order[i])
		}
	}
}

func TestPageByOffsetReportsRemaining(t *testing.T) {
	src := newSliceSource(100)
	items, result, err := PageByOffset(src, 1, 10)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(items) != 10 {
		t.Fatalf("items = %d, want 10", len(items))
	}
	if string(items[0].Key) != "k010" {
		t.Errorf("first = %q, want k010", items[0].Key)
	}
	if result.NextItem == nil || string(result.NextItem.Key) != "k020" {
		t.Fatalf("next item = %v, want k020", result.NextItem)
	}
	if result.CountRemaining != 80 {
		t.Errorf("remaining = %d, want 80", result.CountRemaining)
	}
}

func TestPageByKey(t *testing.T) {
	src := newSliceSource(10)
	items, result, err := PageByKey(src, []byte("k004"), 3)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if string(items[0].Key) != "k004" {
		t.Errorf("first = %q, want k004", items[0].Key)
	}
	if string(result.NextKey) != "k007" {
		t.Errorf("next key = %q, want k007", result.NextKey)
	}

	// Resume from NextKey covers the rest.
	src = newSliceSource(10)
	items, result, err = PageByKey(src, result.NextKey, 5)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3 (k007..k009)", len(items))
	}
	if result.NextKey != nil {
		t.Errorf("next key = %q, want none", result.NextKey)
	}
}

func TestPageByKeyMissingKey(t *testing.T) {
	src := newSliceSource(5)
	items, result, err := PageByKey(src, []byte("absent"), 3)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(items) != 0 || result.NextKey != nil {
		t.Errorf("missing key yielded %d items, next %q", len(items), result.NextKey)
	}
}

func TestIteratorSource(t *testing.T) {
	it := &fakeCursor{pairs: [][2]string{{"a", "1"}, {"b", "2"}}}
	src := NewIteratorSource(it)

	item, ok := src.Next()
	if !ok || string(item.Key) != "a" {
		t.Fatalf("first = (%q, %v)", item.Key, ok)
	}
	item, ok = src.Next()
	if !ok || string(item.Key) != "b" {
		t.Fatalf("second = (%q, %v)", item.Key, ok)
	}
	if _, ok := src.Next(); ok {
		t.Error("exhausted source still yielding")
	}
}

type fakeCursor struct {
	pairs [][2]string
	idx   int
}

func (f *fakeCursor) Valid() bool   { return f.idx < len(f.pairs) }
func (f *fakeCursor) Next()         { f.idx++ }
func (f *fakeCursor) Key() []byte   { return []byte(f.pairs[f.idx][0]) }
func (f *fakeCursor) Value() []byte { return []byte(f.pairs[f.idx][1]) }
