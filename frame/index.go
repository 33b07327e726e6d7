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

package frame

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/reedcms/reedbase/errs"
	"github.com/reedcms/reedbase/internal/atomicfile"
	"github.com/reedcms/reedbase/internal/sortedindex"
)

// IndexEntry is one row of frames/index.csv:
// timestamp|frame_id|name|status|tables_affected|committed_at
type IndexEntry struct {
	Timestamp      int64
	FrameID        string
	Name           string
	Status         Status
	TablesAffected string
	CommittedAt    int64
}

// Key makes IndexEntry a sortedindex.Keyed[string]. Two distinct
// frames can commit within the same Unix second, so the bare
// timestamp cannot serve as a unique key without one clobbering the
// other's row on upsert; zero-padding the timestamp and tie-breaking
// on frame id gives a string that both sorts in timestamp order and
// stays unique per frame.
func (e IndexEntry) Key() string {
	return fmt.Sprintf("%019d|%s", e.Timestamp, e.FrameID)
}

func encodeIndexEntry(e IndexEntry) string {
	return strings.Join([]string{
		strconv.FormatInt(e.Timestamp, 10),
		e.FrameID,
		e.Name,
		string(e.Status),
		e.TablesAffected,
		strconv.FormatInt(e.CommittedAt, 10),
	}, "|")
}

func parseIndexEntry(line string) (IndexEntry, error) {
	fields := strings.Split(line, "|")
	if len(fields) != 6 {
		return IndexEntry{}, errs.New(errs.CsvMalformed, "frame.parseIndexEntry", "",
			fmt.Errorf("expected 6 columns, got %d", len(fields)))
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return IndexEntry{}, errs.New(errs.CsvMalformed, "frame.parseIndexEntry", "", err)
	}
	committedAt, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return IndexEntry{}, errs.New(errs.CsvMalformed, "frame.parseIndexEntry", "", err)
	}
	return IndexEntry{
		Timestamp:      ts,
		FrameID:        fields[1],
		Name:           fields[2],
		Status:         Status(fields[3]),
		TablesAffected: fields[4],
		CommittedAt:    committedAt,
	}, nil
}

// indexCache wraps the sortedindex holding every IndexEntry; the file
// it is persisted to is Manager.indexPath. Index rows are never removed (§3
// invariant 7 / the TTL section); archiving a row rewrites its status
// in place rather than deleting it.
type indexCache struct {
	mu  sync.Mutex
	idx *sortedindex.Index[IndexEntry, string]
}

func newIndexCache() *indexCache {
	return &indexCache{idx: sortedindex.New[IndexEntry, string]()}
}

func (c *indexCache) all() []IndexEntry { return c.idx.All() }

func (c *indexCache) replace(entries []IndexEntry) { c.idx.Replace(entries) }

func (c *indexCache) upsert(e IndexEntry) { c.idx.Append(e) }

func (m *Manager) indexPath() string {
	return filepath.Join(m.dataDir, "frames", "index.csv")
}

// refreshIndex reloads frames/index.csv from disk into the in-memory
// sorted cache. Called at Manager construction and whenever the
// time-bounded cache (frame.index_cache_ttl_seconds) goes stale.
func (m *Manager) refreshIndex() error {
	content, err := atomicfile.ReadAll(m.indexPath())
	if err != nil {
		return err
	}
	var entries []IndexEntry
	for _, line := range strings.Split(string(content), "\n") {
		if line == "" {
			continue
		}
		e, err := parseIndexEntry(line)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	m.index.replace(entries)
	m.mu.Lock()
	m.lastLoaded = m.now()
	m.mu.Unlock()
	return nil
}

// appendIndex adds or updates (by timestamp and frame id, see Key) one IndexEntry, both in
// the in-memory cache and in the on-disk file. The file is small and
// infrequently written (once per commit/rollback/restore/archive
// pass), so a full sorted rewrite is simpler than true append-only
// semantics while still satisfying "strictly ordered by timestamp".
func (m *Manager) appendIndex(e IndexEntry) error {
	m.index.upsert(e)
	return m.rewriteIndexFile()
}

func (m *Manager) rewriteIndexFile() error {
	entries := m.index.all()
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(encodeIndexEntry(e))
		b.WriteByte('\n')
	}
	return atomicfile.WriteAll(m.indexPath(), []byte(b.String()))
}

// logEvent is one row of frames/frame.log: an append-only audit trail
// of every frame state transition and logged operation.
// timestamp|frame_id|event|data
type logEvent struct {
	Timestamp int64
	FrameID   string
	Event     string // begin, op, commit, rollback, crashed
	Data      string
}

func encodeLogEvent(e logEvent) string {
	return strings.Join([]string{
		strconv.FormatInt(e.Timestamp, 10),
		e.FrameID,
		e.Event,
		e.Data,
	}, "|")
}

func parseLogEvent(line string) (logEvent, error) {
	fields := strings.SplitN(line, "|", 4)
	if len(fields) < 3 {
		return logEvent{}, errs.New(errs.CsvMalformed, "frame.parseLogEvent", "",
			fmt.Errorf("expected at least 3 columns, got %d", len(fields)))
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return logEvent{}, errs.New(errs.CsvMalformed, "frame.parseLogEvent", "", err)
	}
	data := ""
	if len(fields) == 4 {
		data = fields[3]
	}
	return logEvent{Timestamp: ts, FrameID: fields[1], Event: fields[2], Data: data}, nil
}

func (m *Manager) logPath() string {
	return filepath.Join(m.dataDir, "frames", "frame.log")
}

func (m *Manager) appendLog(e logEvent) error {
	return atomicfile.AppendLine(m.logPath(), encodeLogEvent(e))
}

func (m *Manager) readLog() ([]logEvent, error) {
	content, err := atomicfile.ReadAll(m.logPath())
	if err != nil {
		return nil, err
	}
	var events []logEvent
	for _, line := range strings.Split(string(content), "\n") {
		if line == "" {
			continue
		}
		e, err := parseLogEvent(line)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
