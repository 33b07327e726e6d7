/*
Copyright (C) 2026  ReedCMS Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package sortedindex is a read-optimised, copy-on-write sorted slice:
// reads never block, writes replace the whole backing slice under a
// compare-and-swap. It backs the frame index, which is written once
// per commit/rollback/restore/archive and searched on rollback/restore.
//
// Properties:
//   - read is O(log N) and always nonblocking
//   - write is O(N log N); concurrent writes are not serialised by
//     the caller, so each one retries its CAS until it wins
package sortedindex

import (
	"sort"
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// Keyed is the entry contract: anything with an ordered key can live
// in a sortedindex.Index.
type Keyed[TK constraints.Ordered] interface {
	Key() TK
}

// Index is a sorted, by-key, copy-on-write slice of T.
type Index[T Keyed[TK], TK constraints.Ordered] struct {
	p atomic.Pointer[[]T]
}

// New returns an empty Index ready to use.
func New[T Keyed[TK], TK constraints.Ordered]() *Index[T, TK] {
	idx := &Index[T, TK]{}
	empty := make([]T, 0)
	idx.p.Store(&empty)
	return idx
}

// All returns the current snapshot of entries in key order. The
// returned slice must not be mutated.
func (idx *Index[T, TK]) All() []T {
	return *idx.p.Load()
}

// Len returns the current entry count.
func (idx *Index[T, TK]) Len() int {
	return len(*idx.p.Load())
}

// Get returns the entry with the given key, if present.
func (idx *Index[T, TK]) Get(key TK) (T, bool) {
	items := *idx.p.Load()
	i := sort.Search(len(items), func(i int) bool { return items[i].Key() >= key })
	if i < len(items) && items[i].Key() == key {
		return items[i], true
	}
	var zero T
	return zero, false
}

// Nearest returns the entry with the greatest key <= target, if any.
// This is the binary search the frame manager uses for point-in-time
// restore ("nearest frame with timestamp <= target").
func (idx *Index[T, TK]) Nearest(target TK) (T, bool) {
	items := *idx.p.Load()
	i := sort.Search(len(items), func(i int) bool { return items[i].Key() > target })
	if i == 0 {
		var zero T
		return zero, false
	}
	return items[i-1], true
}

// Append inserts or replaces an entry, keeping the slice sorted by
// key. Safe for concurrent use; a concurrent Append races only against
// other Appends and retries via CAS, never against a reader.
func (idx *Index[T, TK]) Append(entry T) {
	for {
		old := idx.p.Load()
		items := *old
		next := make([]T, 0, len(items)+1)
		inserted := false
		for _, it := range items {
			if !inserted && it.Key() == entry.Key() {
				next = append(next, entry)
				inserted = true
				continue
			}
			next = append(next, it)
		}
		if !inserted {
			next = append(next, entry)
			sort.Slice(next, func(i, j int) bool { return next[i].Key() < next[j].Key() })
		}
		if idx.p.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Replace sorts entries by key (in place) and atomically swaps in a
// copy as the whole backing slice. Used when reloading the index from
// disk.
func (idx *Index[T, TK]) Replace(entries []T) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key() < entries[j].Key() })
	cp := make([]T, len(entries))
	copy(cp, entries)
	idx.p.Store(&cp)
}
