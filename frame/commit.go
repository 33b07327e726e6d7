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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reedcms/reedbase/errs"
	"github.com/reedcms/reedbase/store"
)

// Frame is a named coordinated unit of mutation across one or more
// tables, identified by a single Unix-seconds timestamp shared by
// every Set/Remove made through it.
type Frame struct {
	mgr       *Manager
	id        string
	timestamp int64
	name      string
	startedAt time.Time

	mu      sync.Mutex
	status  Status
	done    bool // true once Commit/Rollback/Close has finalized the frame
	tables  map[string]struct{}
}

// ID returns the frame's 128-bit (UUID) identifier.
func (f *Frame) ID() string { return f.id }

// Timestamp returns the frame's shared Unix-seconds timestamp.
func (f *Frame) Timestamp() int64 { return f.timestamp }

// Name returns the frame's caller-supplied name.
func (f *Frame) Name() string { return f.name }

// Status returns the frame's current lifecycle status.
func (f *Frame) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// LogOperation appends an operation record to the frame's in-memory
// list and to frame.log, and marks table as touched by this frame so
// Commit knows to include it in the snapshot.
func (f *Frame) LogOperation(action, table string) error {
	f.mu.Lock()
	if table != "" {
		f.tables[table] = struct{}{}
	}
	f.mu.Unlock()
	return f.mgr.appendLog(logEvent{
		Timestamp: f.timestamp,
		FrameID:   f.id,
		Event:     "op",
		Data:      fmt.Sprintf("action=%s table=%s", action, table),
	})
}

// Set upserts one record as part of this frame: the version.log entry
// embeds the frame's shared timestamp and id, and table is recorded as
// touched so Commit snapshots it.
func (f *Frame) Set(table, key, value, description string) error {
	ctx := store.FrameContext{Timestamp: f.timestamp, FrameID: f.id, User: "frame"}
	if err := f.mgr.store.SetInFrame(ctx, table, key, value, description); err != nil {
		return err
	}
	return f.LogOperation("set", table)
}

// Remove deletes one record as part of this frame, tolerating a
// missing key (frames may batch removes over keys that do not exist
// in every table).
func (f *Frame) Remove(table, key string) error {
	ctx := store.FrameContext{Timestamp: f.timestamp, FrameID: f.id, User: "frame"}
	if err := f.mgr.store.RemoveInFrame(ctx, table, key); err != nil {
		return err
	}
	return f.LogOperation("remove", table)
}

func (f *Frame) touchedTablesSorted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	tables := make([]string, 0, len(f.tables))
	for t := range f.tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// Commit snapshots every table this frame touched -- under per-table
// writer locks acquired in alphabetical order -- writes
// frames/<timestamp>.snapshot.csv, and appends a committed row to
// frames/index.csv.
func (f *Frame) Commit() (Report, error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return Report{}, errs.New(errs.FrameNotFound, "frame.Commit", f.id, fmt.Errorf("frame already finalized"))
	}
	f.mu.Unlock()

	start := time.Now()
	tables := f.touchedTablesSorted()

	snap := Snapshot{Timestamp: f.timestamp, FrameID: f.id, Tables: make(map[string]TableSnapshotEntry, len(tables))}
	err := f.mgr.store.LockTables(tables, func() error {
		for _, t := range tables {
			content, err := f.mgr.store.TableContent(t)
			if err != nil {
				return err
			}
			hash := contentHash(content)
			if err := f.mgr.blobs.writeIncr(hash, content); err != nil {
				return err
			}
			snap.Tables[t] = TableSnapshotEntry{Timestamp: f.timestamp, Hash: hash}
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	if err := f.mgr.writeSnapshotFile(f.timestamp, snap); err != nil {
		return Report{}, err
	}

	if err := f.mgr.appendIndex(IndexEntry{
		Timestamp:      f.timestamp,
		FrameID:        f.id,
		Name:           f.name,
		Status:         StatusCommitted,
		TablesAffected: strings.Join(tables, ","),
		CommittedAt:    f.mgr.now().Unix(),
	}); err != nil {
		return Report{}, err
	}
	if err := f.mgr.appendLog(logEvent{Timestamp: f.mgr.now().Unix(), FrameID: f.id, Event: "commit"}); err != nil {
		return Report{}, err
	}

	f.mu.Lock()
	f.status = StatusCommitted
	f.done = true
	f.mu.Unlock()
	f.mgr.clearActive(f)

	if f.mgr.metrics != nil {
		f.mgr.metrics.FrameCommittedTotal.Inc()
		f.mgr.metrics.FrameCommitDuration.Observe(time.Since(start).Seconds())
	}
	f.mgr.log.Debug().Str("frame_id", f.id).Strs("tables", tables).Msg("frame committed")
	return Report{FrameID: f.id, Timestamp: f.timestamp, Tables: tables}, nil
}

// Rollback undoes the most recent committed frame before f: it finds
// the committed frame preceding that one and, for every table in its
// snapshot, writes a fresh version whose
// content equals the snapshot's content -- never destroying the
// post-commit version, only appending a new one ahead of it.
func (f *Frame) Rollback() (RollbackReport, error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return RollbackReport{}, errs.New(errs.FrameNotFound, "frame.Rollback", f.id, fmt.Errorf("frame already finalized"))
	}
	f.mu.Unlock()

	start := time.Now()
	f.mgr.maybeRefreshIndex()
	// f is the frame Rollback is called on -- per the documented usage
	// (a fresh frame begun right before the call), f's own timestamp is
	// later than the commit to undo, so the nearest commit at or before
	// f.timestamp-1 is that commit itself (latest), not the state
	// before it. The frame being undone is latest; the state to
	// restore to is whatever was committed before latest.
	latest, ok := f.mgr.nearestCommitted(f.timestamp - 1)
	if !ok {
		return RollbackReport{}, errs.New(errs.NoFrameBeforeTimestamp, "frame.Rollback", f.id,
			fmt.Errorf("no committed frame before %d", f.timestamp))
	}
	prior, ok := f.mgr.nearestCommitted(latest.Timestamp - 1)
	if !ok {
		return RollbackReport{}, errs.New(errs.NoFrameBeforeTimestamp, "frame.Rollback", f.id,
			fmt.Errorf("no committed frame before %d", latest.Timestamp))
	}
	snap, err := f.mgr.readSnapshotFile(prior.Timestamp)
	if err != nil {
		return RollbackReport{}, err
	}
	tables := sortedSnapshotTables(snap)
	freshTS := f.mgr.now().Unix()
	action := fmt.Sprintf("rollback from frame %s", latest.FrameID)

	err = f.mgr.store.LockTables(tables, func() error {
		for _, t := range tables {
			te := snap.Tables[t]
			content, err := f.mgr.blobs.read(te.Hash)
			if err != nil {
				return err
			}
			ctx := store.FrameContext{Timestamp: freshTS, FrameID: f.id, User: "frame"}
			if err := f.mgr.store.ReplaceTableContent(ctx, t, action, content); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return RollbackReport{}, err
	}

	// The rollback snapshot reuses the prior snapshot's hashes, now
	// referenced by two index rows; bump each hash's refcount rather
	// than reading+rewriting content that is already on disk.
	rollbackSnap := Snapshot{Timestamp: freshTS, FrameID: f.id, Tables: snap.Tables}
	for _, e := range rollbackSnap.Tables {
		if err := f.mgr.blobs.incrExisting(e.Hash); err != nil {
			return RollbackReport{}, err
		}
	}
	if err := f.mgr.writeSnapshotFile(freshTS, rollbackSnap); err != nil {
		return RollbackReport{}, err
	}
	if err := f.mgr.appendIndex(IndexEntry{
		Timestamp:      freshTS,
		FrameID:        f.id,
		Name:           f.name,
		Status:         StatusRolledBack,
		TablesAffected: strings.Join(tables, ","),
		CommittedAt:    f.mgr.now().Unix(),
	}); err != nil {
		return RollbackReport{}, err
	}
	if err := f.mgr.appendLog(logEvent{Timestamp: f.mgr.now().Unix(), FrameID: f.id, Event: "rollback", Data: prior.FrameID}); err != nil {
		return RollbackReport{}, err
	}

	f.mu.Lock()
	f.status = StatusRolledBack
	f.done = true
	f.mu.Unlock()
	f.mgr.clearActive(f)

	if f.mgr.metrics != nil {
		f.mgr.metrics.FrameRolledBackTotal.Inc()
		f.mgr.metrics.FrameRollbackDuration.Observe(time.Since(start).Seconds())
	}
	return RollbackReport{FrameID: f.id, RestoredFrom: prior.FrameID, Timestamp: freshTS, Tables: tables}, nil
}

// Close finalizes an unfinished frame: if Commit or Rollback already
// ran, this is a no-op. Otherwise it logs a warning and marks the
// frame crashed, leaving the actual versionised rollback to the next
// startup's crash recovery pass (see DESIGN.md's Open Question
// decision) rather than attempting it synchronously here.
func (f *Frame) Close() {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.status = StatusCrashed
	f.done = true
	f.mu.Unlock()

	f.mgr.log.Warn().Str("frame_id", f.id).Str("name", f.name).
		Msg("frame dropped without commit/rollback; marking crashed for startup recovery")
	if err := f.mgr.appendLog(logEvent{Timestamp: f.mgr.now().Unix(), FrameID: f.id, Event: "crashed", Data: "dropped without commit/rollback"}); err != nil {
		f.mgr.log.Error().Err(err).Str("frame_id", f.id).Msg("failed to record crashed frame")
	}
	f.mgr.clearActive(f)
}
