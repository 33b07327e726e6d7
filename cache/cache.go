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

// Package cache holds the in-memory mirror of every table: one map
// per table, guarded by a reader-writer lock so lookups never block
// each other and mutation is exclusive.
package cache

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// tableCache is one table's key->value map.
type tableCache struct {
	mu      sync.RWMutex
	entries map[string]string
	// order preserves insertion order from the file, so List without a
	// pattern reflects file order rather than Go's randomized map
	// iteration order.
	order []string
}

func newTableCache() *tableCache {
	return &tableCache{entries: make(map[string]string)}
}

// Cache is the process-wide, table-keyed collection of tableCaches.
type Cache struct {
	mu     sync.RWMutex // protects the tables map itself, not its contents
	tables map[string]*tableCache
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{tables: make(map[string]*tableCache)}
}

func (c *Cache) table(name string) *tableCache {
	c.mu.RLock()
	t, ok := c.tables[name]
	c.mu.RUnlock()
	if ok {
		return t
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok = c.tables[name]; ok {
		return t
	}
	t = newTableCache()
	c.tables[name] = t
	return t
}

// Lookup answers a single concrete key in O(1) expected time.
func (c *Cache) Lookup(table, key string) (string, bool) {
	t := c.table(table)
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[key]
	return v, ok
}

// Insert adds or overwrites one entry, appending to the insertion
// order if the key is new.
func (c *Cache) Insert(table, key, value string) {
	t := c.table(table)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[key]; !exists {
		t.order = append(t.order, key)
	}
	t.entries[key] = value
}

// Remove deletes one entry if present and reports whether it existed.
func (c *Cache) Remove(table, key string) bool {
	t := c.table(table)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[key]; !ok {
		return false
	}
	delete(t.entries, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Reload replaces the whole table's contents atomically from a fresh
// set of key/value pairs, in the given order. Used after a full
// rewrite of the table file (set/remove pipeline, frame rollback,
// point-in-time restore).
func (c *Cache) Reload(table string, orderedPairs [][2]string) {
	t := c.table(table)
	entries := make(map[string]string, len(orderedPairs))
	order := make([]string, 0, len(orderedPairs))
	for _, kv := range orderedPairs {
		if _, exists := entries[kv[0]]; !exists {
			order = append(order, kv[0])
		}
		entries[kv[0]] = kv[1]
	}
	t.mu.Lock()
	t.entries = entries
	t.order = order
	t.mu.Unlock()
}

// List returns the keys of a table in insertion order, optionally
// filtered by a simple glob pattern (`*` and `?`). An empty pattern
// lists all keys.
func (c *Cache) List(table, pattern string) []string {
	t := c.table(table)
	t.mu.RLock()
	defer t.mu.RUnlock()
	if pattern == "" {
		out := make([]string, len(t.order))
		copy(out, t.order)
		return out
	}
	var out []string
	for _, k := range t.order {
		if matchGlob(pattern, k) {
			out = append(out, k)
		}
	}
	return out
}

// Count returns the number of entries currently cached for table.
func (c *Cache) Count(table string) int {
	t := c.table(table)
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Tables returns the names of every table currently known to the
// cache, sorted alphabetically -- the order frame commit acquires
// per-table locks in.
func (c *Cache) Tables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// matchGlob implements the simple `*`/`?` glob the specification
// names for List, via filepath.Match (which supports exactly those
// two wildcards over a flat string).
func matchGlob(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	if err != nil {
		// invalid pattern: fall back to a literal prefix/substring
		// match rather than erroring a read-only list call.
		return strings.Contains(name, strings.Trim(pattern, "*?"))
	}
	return ok
}
