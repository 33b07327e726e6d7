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

// Package store is the orchestration point (C6): get/set/list/remove
// per table, coordinating the record codec, atomic file I/O, backup
// engine, cache, and resolver. Every table is exclusively owned by the
// Store; mutation always goes through it.
package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reedcms/reedbase/backup"
	"github.com/reedcms/reedbase/cache"
	"github.com/reedcms/reedbase/errs"
	"github.com/reedcms/reedbase/internal/atomicfile"
	"github.com/reedcms/reedbase/metrics"
	"github.com/reedcms/reedbase/pkg/log"
	"github.com/reedcms/reedbase/record"
	"github.com/reedcms/reedbase/resolver"
	"github.com/reedcms/reedbase/versionlog"
)

// Options configures a Store beyond its directory.
type Options struct {
	BackupKeep                int
	BackupCompressionLevel    int
	DescriptionMinLenOnCreate int
	Metrics                   *metrics.Registry
}

// DefaultOptions matches the specification's configuration defaults.
func DefaultOptions() Options {
	return Options{
		BackupKeep:                32,
		BackupCompressionLevel:    6,
		DescriptionMinLenOnCreate: 10,
	}
}

// FrameContext carries the shared timestamp, frame id, and acting user
// a frame uses to stamp every mutation it makes as one coordinated
// unit. The zero value means "not in a frame": a fresh timestamp,
// versionlog.NoFrame, and the "system" user.
type FrameContext struct {
	Timestamp int64
	FrameID   string
	User      string
}

func (c FrameContext) resolve(now func() time.Time) (int64, string, string) {
	ts := c.Timestamp
	if ts == 0 {
		ts = now().Unix()
	}
	frameID := c.FrameID
	if frameID == "" {
		frameID = versionlog.NoFrame
	}
	user := c.User
	if user == "" {
		user = "system"
	}
	return ts, frameID, user
}

// tableHandle is the per-table writer lock: held for the entire set
// pipeline (backup, rewrite, cache update, version log append). Reads
// never take this lock -- they go straight to the cache -- so a plain
// Mutex, not an RWMutex, models the "one writer, serialized" contract;
// "reads are parallel" is the cache's own RWMutex, one layer down.
type tableHandle struct {
	name string
	path string
	mu   sync.Mutex
}

// Store is the C6 façade over one data directory.
type Store struct {
	dataDir string
	opts    Options
	backup  *backup.Engine
	cache   *cache.Cache
	metrics *metrics.Registry
	log     zerolog.Logger
	now     func() time.Time

	tablesMu sync.Mutex
	tables   map[string]*tableHandle
}

// Open returns a Store rooted at dataDir, creating the directory if
// necessary.
func Open(dataDir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, errs.New(errs.IoError, "store.Open", dataDir, err)
	}
	be := backup.New(dataDir)
	be.Keep = opts.BackupKeep
	be.CompressionPreset = opts.BackupCompressionLevel
	if opts.DescriptionMinLenOnCreate == 0 {
		opts.DescriptionMinLenOnCreate = DefaultOptions().DescriptionMinLenOnCreate
	}
	s := &Store{
		dataDir: dataDir,
		opts:    opts,
		backup:  be,
		cache:   cache.New(),
		metrics: opts.Metrics,
		log:     log.WithComponent("store"),
		now:     time.Now,
		tables:  make(map[string]*tableHandle),
	}
	return s, nil
}

// DataDir returns the store's root directory.
func (s *Store) DataDir() string { return s.dataDir }

// Cache exposes the underlying cache, e.g. so a CLI wrapper can report
// per-table entry counts for a health check.
func (s *Store) Cache() *cache.Cache { return s.cache }

// Backup exposes the underlying backup engine, e.g. so a CLI wrapper
// can list or prune backups directly.
func (s *Store) Backup() *backup.Engine { return s.backup }

func (s *Store) tablePath(name string) string {
	return filepath.Join(s.dataDir, name+".csv")
}

// table returns (creating if necessary) the handle for a table. Tables
// are created on first write, per the specification's lifecycle note.
func (s *Store) table(name string) *tableHandle {
	s.tablesMu.Lock()
	defer s.tablesMu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		t = &tableHandle{name: name, path: s.tablePath(name)}
		s.tables[name] = t
	}
	return t
}

// TableNames returns every table name the Store knows about, sorted
// alphabetically -- the order frame commit locks tables in.
func (s *Store) TableNames() []string {
	s.tablesMu.Lock()
	defer s.tablesMu.Unlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnsureTable registers a table (creating its handle) without writing
// to it, so frame operations can reference tables that exist on disk
// but have not yet been touched this process lifetime.
func (s *Store) EnsureTable(name string) {
	s.table(name)
}

// LoadFromDisk warms the cache for every *.csv file already present
// under dataDir. Call once at startup; this is the "cold init of one
// table" path the specification budgets at <50ms per file.
func (s *Store) LoadFromDisk() error {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.New(errs.IoError, "store.LoadFromDisk", s.dataDir, err)
	}
	for _, ent := range entries {
		if ent.IsDir() || filepath.Ext(ent.Name()) != ".csv" {
			continue
		}
		name := ent.Name()[:len(ent.Name())-len(".csv")]
		start := time.Now()
		if err := s.reload(name); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.CacheLoadDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
	}
	return nil
}

func (s *Store) reload(name string) error {
	th := s.table(name)
	records, err := s.readTable(th)
	if err != nil {
		return err
	}
	pairs := make([][2]string, len(records))
	for i, r := range records {
		pairs[i] = [2]string{r.Key, r.Value}
	}
	s.cache.Reload(name, pairs)
	return nil
}

func (s *Store) readTable(th *tableHandle) ([]record.Record, error) {
	content, err := atomicfile.ReadAll(th.path)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, nil
	}
	records, err := record.ReadAll(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return records, nil
}

// writeTableRecords serialises records and atomically rewrites the
// table file, returning the bytes written (used for the version.log
// size/hash/crc32 columns).
func (s *Store) writeTableRecords(th *tableHandle, records []record.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := record.WriteAll(&buf, records); err != nil {
		return nil, errs.New(errs.IoError, "store.write", th.path, err)
	}
	if err := atomicfile.WriteAll(th.path, buf.Bytes()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Store) appendVersionLog(table, action, user string, ts int64, frameID string, content []byte, rows int) error {
	sum := sha256.Sum256(content)
	entry := versionlog.Entry{
		Timestamp: ts,
		Action:    action,
		User:      user,
		Base:      table,
		Size:      int64(len(content)),
		Rows:      rows,
		Hash:      hex.EncodeToString(sum[:]),
		CRC32:     fmt.Sprintf("%08x", crc32.ChecksumIEEE(content)),
		FrameID:   frameID,
	}
	return versionlog.Append(s.dataDir, entry)
}

func (s *Store) pruneBackups(table, path string) {
	removed, err := s.backup.Prune(path, s.opts.BackupKeep)
	if err != nil {
		s.log.Warn().Err(err).Str("table", table).Msg("backup prune failed")
		return
	}
	if len(removed) > 0 && s.metrics != nil {
		s.metrics.BackupPruneTotal.Inc()
	}
}

func (s *Store) createBackup(table, path string) error {
	info, err := s.backup.CreateBackup(path)
	if err != nil {
		return errs.New(errs.BackupFailed, "store.createBackup", path, err)
	}
	if s.metrics != nil {
		s.metrics.BackupCreatedTotal.Inc()
		if info.UncompressedSize > 0 {
			ratio := float64(info.UncompressedSize) / float64(max64(info.CompressedSize, 1))
			s.metrics.BackupCompressRatio.Observe(ratio)
		}
	}
	return nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Get resolves key through the environment/language fallback algorithm
// (C5) and answers from the in-memory cache (C4). It never touches
// disk and never blocks on I/O.
func (s *Store) Get(table, key, language, environment string) (resolver.Result, error) {
	lookup := func(k string) (string, bool) { return s.cache.Lookup(table, k) }
	res, err := resolver.Resolve(lookup, key, language, environment)
	if s.metrics != nil {
		result := "hit"
		if err != nil {
			result = "miss"
		}
		s.metrics.GetTotal.WithLabelValues(table, result).Inc()
	}
	return res, err
}

// Set upserts one record outside of any frame.
func (s *Store) Set(table, key, value, description string) error {
	return s.SetInFrame(FrameContext{}, table, key, value, description)
}

// SetInFrame upserts one record, stamping the version.log entry with
// ctx's timestamp and frame id instead of a fresh timestamp and
// versionlog.NoFrame. A Frame's own Set method is the usual caller;
// ordinary callers use Set.
func (s *Store) SetInFrame(ctx FrameContext, table, key, value, description string) error {
	start := time.Now()
	if err := resolver.ValidateKey(key); err != nil {
		return err
	}
	_, existed := s.cache.Lookup(table, key)
	if !existed && len(strings.TrimSpace(description)) < s.opts.DescriptionMinLenOnCreate {
		return errs.New(errs.ValidationError, "store.Set", key,
			fmt.Errorf("description must be at least %d characters on create", s.opts.DescriptionMinLenOnCreate))
	}

	th := s.table(table)
	th.mu.Lock()
	defer th.mu.Unlock()

	if err := s.createBackup(table, th.path); err != nil {
		return err
	}
	s.pruneBackups(table, th.path)

	records, err := s.readTable(th)
	if err != nil {
		return err
	}

	desc := description
	found := false
	for i := range records {
		if records[i].Key == key {
			if desc == "" {
				desc = records[i].Description
			}
			records[i].Value = value
			records[i].Description = desc
			found = true
			break
		}
	}
	if !found {
		records = append(records, record.Record{Key: key, Value: value, Description: description})
	}

	content, err := s.writeTableRecords(th, records)
	if err != nil {
		return err
	}
	s.cache.Insert(table, key, value)

	ts, frameID, user := ctx.resolve(s.now)
	if err := s.appendVersionLog(table, "set", user, ts, frameID, content, len(records)); err != nil {
		s.log.Warn().Err(err).Str("table", table).Msg("version.log append failed")
	}

	if s.metrics != nil {
		s.metrics.SetTotal.WithLabelValues(table).Inc()
		s.metrics.SetDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())
	}
	s.log.Debug().Str("table", table).Str("key", key).Msg("set")
	return nil
}

// List returns a table's keys in file insertion order, optionally
// filtered by a `*`/`?` glob pattern. An empty pattern lists all keys.
func (s *Store) List(table, pattern string) []string {
	return s.cache.List(table, pattern)
}

// Remove deletes one record outside of any frame. Removing an absent
// key is a NotFound error rather than a silent no-op, per the
// specification's standalone-remove rule; frames that batch removes
// call RemoveInFrame directly and tolerate a missing key as a no-op.
func (s *Store) Remove(table, key string) error {
	return s.remove(FrameContext{}, table, key, false)
}

// RemoveInFrame removes key as part of a frame's coordinated mutation
// set; a missing key is a silent no-op (frames may batch removes over
// keys that do not exist in every table).
func (s *Store) RemoveInFrame(ctx FrameContext, table, key string) error {
	return s.remove(ctx, table, key, true)
}

func (s *Store) remove(ctx FrameContext, table, key string, tolerateMissing bool) error {
	if err := resolver.ValidateKey(key); err != nil {
		return err
	}
	th := s.table(table)
	th.mu.Lock()
	defer th.mu.Unlock()

	if _, ok := s.cache.Lookup(table, key); !ok {
		if tolerateMissing {
			return nil
		}
		return errs.New(errs.NotFound, "store.Remove", key, nil)
	}

	if err := s.createBackup(table, th.path); err != nil {
		return err
	}
	s.pruneBackups(table, th.path)

	records, err := s.readTable(th)
	if err != nil {
		return err
	}
	filtered := records[:0:0]
	for _, r := range records {
		if r.Key != key {
			filtered = append(filtered, r)
		}
	}

	content, err := s.writeTableRecords(th, filtered)
	if err != nil {
		return err
	}
	s.cache.Remove(table, key)

	ts, frameID, user := ctx.resolve(s.now)
	if err := s.appendVersionLog(table, "remove", user, ts, frameID, content, len(filtered)); err != nil {
		s.log.Warn().Err(err).Str("table", table).Msg("version.log append failed")
	}
	if s.metrics != nil {
		s.metrics.SetTotal.WithLabelValues(table).Inc()
	}
	return nil
}

// TableContent returns a table's current raw on-disk bytes. Used by
// the frame manager to compute a table's content hash for a snapshot.
func (s *Store) TableContent(table string) ([]byte, error) {
	th := s.table(table)
	return atomicfile.ReadAll(th.path)
}

// ReplaceTableContent overwrites a table's file verbatim -- the
// versionised-rollback/point-in-time-restore primitive. Unlike
// Set/Remove, it does not take the table's writer lock itself: the
// caller (always the frame manager) must already hold it via
// LockTables, since rollback/restore touch several tables under one
// alphabetically-ordered lock acquisition.
func (s *Store) ReplaceTableContent(ctx FrameContext, table, action string, content []byte) error {
	th := s.table(table)
	if err := s.createBackup(table, th.path); err != nil {
		return err
	}
	s.pruneBackups(table, th.path)

	if err := atomicfile.WriteAll(th.path, content); err != nil {
		return err
	}
	records, err := record.ReadAll(bytes.NewReader(content))
	if err != nil {
		return err
	}
	pairs := make([][2]string, len(records))
	for i, r := range records {
		pairs[i] = [2]string{r.Key, r.Value}
	}
	s.cache.Reload(table, pairs)

	ts, frameID, user := ctx.resolve(s.now)
	return s.appendVersionLog(table, action, user, ts, frameID, content, len(records))
}

// LockTables acquires the writer locks for the given tables, in
// alphabetical order (deduplicated), runs fn, and releases them in
// reverse order. This is the only multi-table lock path in the store;
// ordinary Set/Remove only ever lock their own single table.
func (s *Store) LockTables(tables []string, fn func() error) error {
	uniq := make(map[string]struct{}, len(tables))
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		if _, ok := uniq[t]; ok {
			continue
		}
		uniq[t] = struct{}{}
		names = append(names, t)
	}
	sort.Strings(names)

	handles := make([]*tableHandle, len(names))
	for i, name := range names {
		handles[i] = s.table(name)
	}
	for _, h := range handles {
		h.mu.Lock()
	}
	defer func() {
		for i := len(handles) - 1; i >= 0; i-- {
			handles[i].mu.Unlock()
		}
	}()
	return fn()
}
