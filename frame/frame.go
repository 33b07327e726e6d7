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

// Package frame implements the coordinated multi-table commit (C7): a
// Frame fixes one Unix-seconds timestamp shared by every table
// mutation it contains, and produces exactly one snapshot of the
// resulting state. Frames support commit, versionised rollback, and
// point-in-time restore via a binary-searched, timestamp-sorted index.
package frame

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reedcms/reedbase/errs"
	"github.com/reedcms/reedbase/metrics"
	"github.com/reedcms/reedbase/pkg/log"
	"github.com/reedcms/reedbase/store"
)

// Status is one of the lifecycle states a Frame moves through.
type Status string

const (
	StatusActive     Status = "active"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
	StatusCrashed    Status = "crashed"
	StatusArchived   Status = "archived"
)

// ManagerOptions configures a Manager beyond its data directory.
type ManagerOptions struct {
	RetentionDays        int           // frame.retention.days, default 365
	IndexCacheTTLSeconds int           // frame.index_cache_ttl_seconds, default 60
	Metrics              *metrics.Registry
	CleanupInterval      time.Duration // how often the background goroutine sweeps; 0 disables it
}

// DefaultManagerOptions matches the specification's configuration
// defaults.
func DefaultManagerOptions() ManagerOptions {
	return ManagerOptions{
		RetentionDays:        365,
		IndexCacheTTLSeconds: 60,
		CleanupInterval:      time.Hour,
	}
}

// Manager is the process-wide frame manager singleton: it owns the
// single active-frame slot (nested frames are disallowed, per the
// specification) and the in-memory, time-bounded frame index cache.
type Manager struct {
	dataDir   string
	store     *store.Store
	metrics   *metrics.Registry
	log       zerolog.Logger
	now       func() time.Time
	retention time.Duration
	indexTTL  time.Duration

	mu             sync.Mutex
	active         *Frame
	index          *indexCache
	lastLoaded     time.Time
	blobs          *blobStore

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Report is Frame.Commit's result.
type Report struct {
	FrameID   string
	Timestamp int64
	Tables    []string
}

// RollbackReport is Frame.Rollback's result.
type RollbackReport struct {
	FrameID      string
	RestoredFrom string
	Timestamp    int64
	Tables       []string
}

// RestoreReport is Manager.RestoreTo's result.
type RestoreReport struct {
	SourceFrameID string
	Timestamp     int64
	Tables        []string
}

// RecoveryReport summarises the crash-recovery pass Manager.New runs
// at startup over any frame left `active` in frame.log.
type RecoveryReport struct {
	Recovered     []string
	Unrecoverable []string
}

// New returns a Manager rooted at dataDir, runs crash recovery over
// any frame left active in frame.log, and starts the TTL cleanup
// background goroutine (unless opts.CleanupInterval is 0). Call
// Close when done to stop the goroutine.
func New(dataDir string, st *store.Store, opts ManagerOptions) (*Manager, RecoveryReport, error) {
	if opts.RetentionDays == 0 {
		opts.RetentionDays = DefaultManagerOptions().RetentionDays
	}
	if opts.IndexCacheTTLSeconds == 0 {
		opts.IndexCacheTTLSeconds = DefaultManagerOptions().IndexCacheTTLSeconds
	}
	m := &Manager{
		dataDir:   dataDir,
		store:     st,
		metrics:   opts.Metrics,
		log:       log.WithComponent("frame"),
		now:       time.Now,
		retention: time.Duration(opts.RetentionDays) * 24 * time.Hour,
		indexTTL:  time.Duration(opts.IndexCacheTTLSeconds) * time.Second,
		index:     newIndexCache(),
		blobs:     newBlobStore(dataDir),
		stopCh:    make(chan struct{}),
	}
	if err := m.blobs.load(); err != nil {
		return nil, RecoveryReport{}, err
	}
	if err := m.refreshIndex(); err != nil {
		return nil, RecoveryReport{}, err
	}
	report, err := m.recoverCrashed()
	if err != nil {
		return nil, RecoveryReport{}, err
	}
	if opts.CleanupInterval > 0 {
		m.wg.Add(1)
		go m.cleanupLoop(opts.CleanupInterval)
	}
	return m, report, nil
}

// Close stops the background TTL cleanup goroutine. If a frame is
// still active, it is marked crashed (best-effort, per the
// specification's "log and let startup recovery handle it" design
// decision) rather than rolled back synchronously.
func (m *Manager) Close() {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if active != nil {
		active.Close()
	}
	close(m.stopCh)
	m.wg.Wait()
}

// Begin allocates a fresh frame id and a shared Unix-seconds
// timestamp, appends an `active` row to frame.log, and returns the
// Frame. Only one frame may be active process-wide at a time; Go has
// no per-goroutine identity to key nested-frame detection on the way
// the specification's "same thread/task" wording implies, so this
// manager enforces the stricter single-active-frame rule instead (see
// DESIGN.md).
func (m *Manager) Begin(name string) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, errs.New(errs.FrameAlreadyActive, "frame.Begin", name,
			fmt.Errorf("frame %q is already active", m.active.name))
	}
	f := &Frame{
		mgr:       m,
		id:        uuid.NewString(),
		timestamp: m.now().Unix(),
		name:      name,
		status:    StatusActive,
		startedAt: m.now(),
		tables:    make(map[string]struct{}),
	}
	if err := m.appendLog(logEvent{Timestamp: f.timestamp, FrameID: f.id, Event: "begin", Data: name}); err != nil {
		return nil, err
	}
	m.active = f
	if m.metrics != nil {
		m.metrics.FrameStartedTotal.Inc()
	}
	m.log.Debug().Str("frame_id", f.id).Str("name", name).Msg("frame begun")
	return f, nil
}

// ActiveFrame reports the currently active frame's id and age, if any.
// Used by the health check to flag a frame that has been open too
// long (§4.9's "frame active for > 5 min" warning).
func (m *Manager) ActiveFrame() (id string, age time.Duration, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return "", 0, false
	}
	return m.active.id, m.now().Sub(m.active.startedAt), true
}

// Alive reports false once Close has been called and true before that,
// including when no cleanup goroutine was started (CleanupInterval 0).
func (m *Manager) Alive() bool {
	select {
	case <-m.stopCh:
		return false
	default:
		return true
	}
}

// IndexEntryCount returns the number of rows currently held in the
// in-memory frame index cache, a cheap "is the index loadable" signal
// for the health check.
func (m *Manager) IndexEntryCount() int {
	return len(m.index.all())
}

func (m *Manager) clearActive(f *Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == f {
		m.active = nil
	}
}

func (m *Manager) maybeRefreshIndex() {
	m.mu.Lock()
	stale := m.now().Sub(m.lastLoaded) > m.indexTTL
	m.mu.Unlock()
	if stale {
		m.refreshIndex()
	}
}

// nearestCommitted returns the committed index entry with the
// greatest timestamp <= target, if any. The entries are held
// timestamp-sorted; this is the "nearest frame <= target" binary
// search the specification names, narrowed to committed rows since
// only those carry a usable snapshot.
func (m *Manager) nearestCommitted(target int64) (IndexEntry, bool) {
	items := m.index.all()
	i := sort.Search(len(items), func(i int) bool { return items[i].Timestamp > target })
	for j := i - 1; j >= 0; j-- {
		if items[j].Status == StatusCommitted {
			return items[j], true
		}
	}
	return IndexEntry{}, false
}

// RestoreTo implements point-in-time restore: it finds the greatest
// committed frame at or before targetTS, and for every table in that
// frame's snapshot, writes a fresh version whose content equals the
// snapshot's content.
func (m *Manager) RestoreTo(targetTS int64) (RestoreReport, error) {
	m.maybeRefreshIndex()
	entry, ok := m.nearestCommitted(targetTS)
	if !ok {
		return RestoreReport{}, errs.New(errs.NoFrameBeforeTimestamp, "frame.RestoreTo", "",
			fmt.Errorf("no committed frame at or before %d", targetTS))
	}
	snap, err := m.readSnapshotFile(entry.Timestamp)
	if err != nil {
		return RestoreReport{}, err
	}
	tables := sortedSnapshotTables(snap)
	freshTS := m.now().Unix()
	action := fmt.Sprintf("restore to frame %s", entry.FrameID)
	err = m.store.LockTables(tables, func() error {
		for _, t := range tables {
			te := snap.Tables[t]
			content, err := m.blobs.read(te.Hash)
			if err != nil {
				return err
			}
			ctx := store.FrameContext{Timestamp: freshTS, FrameID: entry.FrameID, User: "frame"}
			if err := m.store.ReplaceTableContent(ctx, t, action, content); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return RestoreReport{}, err
	}
	restoredSnap := Snapshot{Timestamp: freshTS, FrameID: entry.FrameID, Tables: snap.Tables}
	for _, te := range restoredSnap.Tables {
		if err := m.blobs.incrExisting(te.Hash); err != nil {
			return RestoreReport{}, err
		}
	}
	if err := m.writeSnapshotFile(freshTS, restoredSnap); err != nil {
		return RestoreReport{}, err
	}
	if err := m.appendIndex(IndexEntry{
		Timestamp:      freshTS,
		FrameID:        entry.FrameID,
		Name:           "restore:" + entry.Name,
		Status:         StatusCommitted,
		TablesAffected: strings.Join(tables, ","),
		CommittedAt:    m.now().Unix(),
	}); err != nil {
		return RestoreReport{}, err
	}
	if m.metrics != nil {
		m.metrics.RestoreTotal.Inc()
	}
	return RestoreReport{SourceFrameID: entry.FrameID, Timestamp: freshTS, Tables: tables}, nil
}

func sortedSnapshotTables(snap Snapshot) []string {
	tables := make([]string, 0, len(snap.Tables))
	for t := range snap.Tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
