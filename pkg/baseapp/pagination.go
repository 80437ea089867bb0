// Copyright 2025 Certen Protocol
//
// Pagination: by-offset and by-key windows over a lazy item sequence,
// peeking one element ahead of the window to compute the next cursor
// without materializing the underlying sequence.

package baseapp

// PageItem is one element a Pager pulls from its underlying sequence.
type PageItem struct {
	Key   []byte
	Value []byte
}

// PageResult reports what remains after a page was taken.
type PageResult struct {
	CountRemaining uint64
	NextItem       *PageItem // by-offset mode
	NextKey        []byte    // by-key mode
}

// Source is a lazy, ordered pull source of items. Implementations (e.g. a
// ledger.Iterator adapter) must not be consulted beyond what Next() calls
// demand.
type Source interface {
	// Next returns the next item, or ok=false when exhausted.
	Next() (item PageItem, ok bool)
}

// PageByOffset skips offset*limit items, takes up to limit, and peeks one
// further item to report what remains — never materializing src.
func PageByOffset(src Source, offset, limit uint64) ([]PageItem, PageResult, error) {
	skip := offset * limit
	for i := uint64(0); i < skip; i++ {
		if _, ok := src.Next(); !ok {
			return nil, PageResult{}, nil
		}
	}

	items := make([]PageItem, 0, limit)
	for uint64(len(items)) < limit {
		item, ok := src.Next()
		if !ok {
			return items, PageResult{}, nil
		}
		items = append(items, item)
	}

	next, ok := src.Next()
	remaining := uint64(0)
	var nextItem *PageItem
	if ok {
		remaining = 1
		n := next
		nextItem = &n
		for {
			if _, ok := src.Next(); !ok {
				break
			}
			remaining++
		}
	}
	return items, PageResult{CountRemaining: remaining, NextItem: nextItem}, nil
}

// PageByKey skips items until one's key equals key (key itself is not
// included in the skip count's stopping condition — the matching item is
// the first item of the returned window), takes up to limit, and peeks
// one further item's key as NextKey.
func PageByKey(src Source, key []byte, limit uint64) ([]PageItem, PageResult, error) {
	if key != nil {
		for {
			item, ok := src.Next()
			if !ok {
				return nil, PageResult{}, nil
			}
			if string(item.Key) == string(key) {
				return takeFrom(src, item, limit)
			}
		}
	}
	first, ok := src.Next()
	if !ok {
		return nil, PageResult{}, nil
	}
	return takeFrom(src, first, limit)
}

func takeFrom(src Source, first PageItem, limit uint64) ([]PageItem, PageResult, error) {
	items := make([]PageItem, 0, limit)
	items = append(items, first)
	for uint64(len(items)) < limit {
		item, ok := src.Next()
		if !ok {
			return items, PageResult{}, nil
		}
		items = append(items, item)
	}
	next, ok := src.Next()
	if !ok {
		return items, PageResult{}, nil
	}
	return items, PageResult{CountRemaining: 1, NextKey: next.Key}, nil
}

// IteratorSource adapts a ledger.Iterator-shaped cursor (Valid/Next/Key/
// Value) into a Source, the adapter every module query handler uses to
// paginate a store range without buffering it.
type IteratorSource struct {
	it      iteratorLike
	started bool
}

// iteratorLike mirrors ledger.Iterator's surface without importing
// pkg/ledger, avoiding a dependency baseapp does not otherwise need.
type iteratorLike interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
}

// NewIteratorSource wraps it, which must already be primed (Valid() tells
// whether the first element is available) exactly as pkg/ledger's
// iterators are constructed.
func NewIteratorSource(it iteratorLike) *IteratorSource {
	return &IteratorSource{it: it}
}

func (s *IteratorSource) Next() (PageItem, bool) {
	if s.started {
		s.it.Next()
	}
	s.started = true
	if !s.it.Valid() {
		return PageItem{}, false
	}
	return PageItem{Key: s.it.Key(), Value: s.it.Value()}, true
}
