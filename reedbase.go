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

// Package reedbase is the public façade wiring the record codec, file
// I/O, backup engine, cache, resolver, store API, and frame manager
// (C1-C7) into one handle: Open returns a *DB exposing Get, Set, List,
// Remove, Begin, HealthCheck, and Shutdown. Generalized from the
// teacher's package-level storage.Init/CreateDatabase/GetDatabase
// convention into an instance the caller owns, per the specification's
// "no implicit global constructors" design note. There is no
// package-level default instance: every caller opens its own DB.
package reedbase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dc0d/onexit"

	"github.com/reedcms/reedbase/errs"
	"github.com/reedcms/reedbase/frame"
	"github.com/reedcms/reedbase/metrics"
	"github.com/reedcms/reedbase/pkg/log"
	"github.com/reedcms/reedbase/resolver"
	"github.com/reedcms/reedbase/store"
)

// Error is re-exported so callers can type-assert without importing
// the internal errs package directly.
type Error = errs.Error

// Error kind re-exports, named after the specification's closed set.
const (
	NotFound               = errs.NotFound
	ValidationError        = errs.ValidationError
	IoError                = errs.IoError
	CsvMalformed           = errs.CsvMalformed
	BackupFailed           = errs.BackupFailed
	FrameAlreadyActive     = errs.FrameAlreadyActive
	FrameNotFound          = errs.FrameNotFound
	NoFrameBeforeTimestamp = errs.NoFrameBeforeTimestamp
	SnapshotCorrupted      = errs.SnapshotCorrupted
	LockPoisoned           = errs.LockPoisoned
)

// Config carries every configuration knob named in the specification's
// external-interfaces table, plus logging/metrics toggles.
type Config struct {
	DataDir                      string
	BackupKeep                   int
	BackupCompressionLevel       int
	FrameRetentionDays           int
	FrameIndexCacheTTLSeconds    int
	DescriptionMinLengthOnCreate int
	FrameCleanupInterval         time.Duration
	Metrics                      *metrics.Registry
	Logging                      log.Config
}

// DefaultConfig returns a Config with every default named in the
// specification's configuration table.
func DefaultConfig(dataDir string) Config {
	if dataDir == "" {
		dataDir = ".reed/"
	}
	so := store.DefaultOptions()
	fo := frame.DefaultManagerOptions()
	return Config{
		DataDir:                      dataDir,
		BackupKeep:                   so.BackupKeep,
		BackupCompressionLevel:       so.BackupCompressionLevel,
		FrameRetentionDays:           fo.RetentionDays,
		FrameIndexCacheTTLSeconds:    fo.IndexCacheTTLSeconds,
		DescriptionMinLengthOnCreate: so.DescriptionMinLenOnCreate,
		FrameCleanupInterval:         fo.CleanupInterval,
		Logging:                      log.Config{Level: log.InfoLevel},
	}
}

// Option mutates a Config built from DefaultConfig.
type Option func(*Config)

func WithBackupKeep(n int) Option { return func(c *Config) { c.BackupKeep = n } }

func WithBackupCompressionLevel(n int) Option {
	return func(c *Config) { c.BackupCompressionLevel = n }
}

func WithFrameRetentionDays(n int) Option { return func(c *Config) { c.FrameRetentionDays = n } }

func WithFrameIndexCacheTTLSeconds(n int) Option {
	return func(c *Config) { c.FrameIndexCacheTTLSeconds = n }
}

func WithDescriptionMinLengthOnCreate(n int) Option {
	return func(c *Config) { c.DescriptionMinLengthOnCreate = n }
}

// WithFrameCleanupInterval sets how often the frame manager's
// background goroutine sweeps for TTL archiving and index refresh; 0
// disables the goroutine entirely (mainly for tests).
func WithFrameCleanupInterval(d time.Duration) Option {
	return func(c *Config) { c.FrameCleanupInterval = d }
}

// WithMetrics supplies a pre-built metrics registry, e.g. so several
// DB instances in one test process don't collide on the default
// global prometheus registry.
func WithMetrics(r *metrics.Registry) Option { return func(c *Config) { c.Metrics = r } }

// WithLogging reconfigures the process-wide logger before Open builds
// component loggers from it.
func WithLogging(cfg log.Config) Option { return func(c *Config) { c.Logging = cfg } }

// HealthStatus is the overall or per-check outcome of HealthCheck.
type HealthStatus string

const (
	HealthOK       HealthStatus = "ok"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// CheckResult is one named health check's outcome.
type CheckResult struct {
	Name   string
	Status HealthStatus
	Detail string
}

// HealthReport is HealthCheck's result: the worst status across every
// check, plus the detail behind each one.
type HealthReport struct {
	Status    HealthStatus
	Checks    []CheckResult
	CheckedAt time.Time
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthOK: 0, HealthWarning: 1, HealthCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// DB is the façade over one data directory's C1-C9 stack.
type DB struct {
	cfg      Config
	store    *store.Store
	frames   *frame.Manager
	metrics  *metrics.Registry
	recovery frame.RecoveryReport

	shutdownOnce sync.Once
}

// Open builds every component over dataDir, warms the cache from
// disk, runs frame crash recovery, starts the frame manager's
// background TTL/index goroutine, and registers a process-exit
// shutdown hook (github.com/dc0d/onexit, as the teacher's own
// storage/settings.go registers its trace-file close hook).
func Open(dataDir string, opts ...Option) (*DB, error) {
	cfg := DefaultConfig(dataDir)
	for _, o := range opts {
		o(&cfg)
	}
	log.Init(cfg.Logging)
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	st, err := store.Open(cfg.DataDir, store.Options{
		BackupKeep:                cfg.BackupKeep,
		BackupCompressionLevel:    cfg.BackupCompressionLevel,
		DescriptionMinLenOnCreate: cfg.DescriptionMinLengthOnCreate,
		Metrics:                   cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	if err := st.LoadFromDisk(); err != nil {
		return nil, err
	}

	mgr, report, err := frame.New(cfg.DataDir, st, frame.ManagerOptions{
		RetentionDays:        cfg.FrameRetentionDays,
		IndexCacheTTLSeconds: cfg.FrameIndexCacheTTLSeconds,
		Metrics:              cfg.Metrics,
		CleanupInterval:      cfg.FrameCleanupInterval,
	})
	if err != nil {
		return nil, err
	}

	db := &DB{cfg: cfg, store: st, frames: mgr, metrics: cfg.Metrics, recovery: report}
	onexit.Register(func() { db.Shutdown() })
	return db, nil
}

// Get resolves key through the environment/language fallback
// algorithm and answers from the in-memory cache.
func (db *DB) Get(table, key, language, environment string) (resolver.Result, error) {
	return db.store.Get(table, key, language, environment)
}

// Set upserts one record outside of any frame.
func (db *DB) Set(table, key, value, description string) error {
	return db.store.Set(table, key, value, description)
}

// List returns a table's keys, optionally filtered by a glob pattern.
func (db *DB) List(table, pattern string) []string {
	return db.store.List(table, pattern)
}

// Remove deletes one record outside of any frame.
func (db *DB) Remove(table, key string) error {
	return db.store.Remove(table, key)
}

// Begin starts a new coordinated multi-table frame.
func (db *DB) Begin(name string) (*frame.Frame, error) {
	return db.frames.Begin(name)
}

// RestoreTo restores every table to its state in the nearest committed
// frame at or before targetTS.
func (db *DB) RestoreTo(targetTS int64) (frame.RestoreReport, error) {
	return db.frames.RestoreTo(targetTS)
}

// RecoveryReport returns the crash-recovery summary from Open's
// startup pass.
func (db *DB) RecoveryReport() frame.RecoveryReport {
	return db.recovery
}

// Metrics exposes the registry backing this DB, e.g. to mount
// Metrics().Handler() on an embedding HTTP server.
func (db *DB) Metrics() *metrics.Registry {
	return db.metrics
}

// Store exposes the underlying store façade for callers needing
// lower-level access (backup listing, table content) the DB façade
// does not wrap one-to-one.
func (db *DB) Store() *store.Store {
	return db.store
}

// HealthCheck checks that every table file the store knows of is
// readable, reports the cache's entry count and the frame index's row
// count, and checks that the frame manager has not been closed. A
// crashed frame recovered at the last startup makes the report
// critical; a frame left active for over 5 minutes makes it a warning.
// It does not require the canonical tables to exist, and it does not
// count the operations logged on a frame.
func (db *DB) HealthCheck(ctx context.Context) HealthReport {
	report := HealthReport{Status: HealthOK, CheckedAt: time.Now()}
	add := func(name string, status HealthStatus, detail string) {
		report.Checks = append(report.Checks, CheckResult{Name: name, Status: status, Detail: detail})
		report.Status = worse(report.Status, status)
	}

	for _, t := range db.store.TableNames() {
		select {
		case <-ctx.Done():
			add("csv:"+t, HealthCritical, "health check canceled before table was checked")
			return report
		default:
		}
		if _, err := db.store.TableContent(t); err != nil {
			add("csv:"+t, HealthCritical, err.Error())
		}
	}
	cached := 0
	for _, t := range db.store.TableNames() {
		cached += db.store.Cache().Count(t)
	}
	add("cache", HealthOK, fmt.Sprintf("%d entries cached across %d tables", cached, len(db.store.TableNames())))

	add("frame_index", HealthOK, fmt.Sprintf("%d index rows loaded", db.frames.IndexEntryCount()))

	if db.frames.Alive() {
		add("frame_cleanup_thread", HealthOK, "running")
	} else {
		add("frame_cleanup_thread", HealthCritical, "background cleanup goroutine stopped")
	}

	if len(db.recovery.Recovered) > 0 || len(db.recovery.Unrecoverable) > 0 {
		status := HealthCritical
		add("frame_crash_recovery", status, fmt.Sprintf("recovered=%d unrecoverable=%d at last startup",
			len(db.recovery.Recovered), len(db.recovery.Unrecoverable)))
	}

	if _, age, ok := db.frames.ActiveFrame(); ok && age > 5*time.Minute {
		add("frame_active_duration", HealthWarning, fmt.Sprintf("frame active for %s", age))
	}

	if families, err := db.metrics.Gather(); err != nil {
		add("metrics", HealthWarning, err.Error())
	} else {
		add("metrics", HealthOK, fmt.Sprintf("%d metric families registered", len(families)))
	}

	return report
}

// Shutdown stops the frame manager's background goroutine. Safe to
// call more than once; the onexit-registered hook and an explicit
// caller call both land here without double-stopping anything.
func (db *DB) Shutdown() {
	db.shutdownOnce.Do(func() {
		db.frames.Close()
	})
}
