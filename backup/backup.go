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

// Package backup implements the XZ-compressed snapshot-and-retention
// discipline every table mutation goes through before it touches the
// table file.
package backup

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/reedcms/reedbase/errs"
	"github.com/reedcms/reedbase/internal/atomicfile"
)

// Info describes one backup file.
type Info struct {
	Path             string
	TableStem        string
	UnixSeconds      int64
	UncompressedSize int64
	CompressedSize   int64
}

// Engine creates, lists, prunes and restores backups for tables living
// under DataDir/backups.
type Engine struct {
	DataDir           string
	Keep              int // retention count, default 32
	CompressionPreset  int // LZMA2 preset 0-9, default 6
	now               func() time.Time
}

// New returns an Engine with the defaults from the specification.
func New(dataDir string) *Engine {
	return &Engine{DataDir: dataDir, Keep: 32, CompressionPreset: 6, now: time.Now}
}

func (e *Engine) backupDir() string {
	return filepath.Join(e.DataDir, "backups")
}

func presetToDictCap(preset int) int {
	// ulikunitz/xz has no notion of liblzma's 0-9 presets; approximate
	// by scaling the dictionary size, which is the dominant lever on
	// both ratio and determinism for repetitive CSV text.
	switch {
	case preset <= 0:
		return 1 << 16
	case preset >= 9:
		return 1 << 26
	default:
		return 1 << uint(16+preset)
	}
}

// CreateBackup snapshots tablePath's current content into
// <data-dir>/backups/<stem>.<unix_seconds>.csv.xz. The current on-disk
// content of tablePath is read and backed up (a missing table file
// yields an empty backup, consistent with "table created on first
// write").
func (e *Engine) CreateBackup(tablePath string) (Info, error) {
	content, err := atomicfile.ReadAll(tablePath)
	if err != nil {
		return Info{}, err
	}
	return e.createBackupOf(tablePath, content)
}

func (e *Engine) createBackupOf(tablePath string, content []byte) (Info, error) {
	stem := strings.TrimSuffix(filepath.Base(tablePath), filepath.Ext(tablePath))
	ts := e.now().Unix()
	dir := e.backupDir()
	if err := os.MkdirAll(dir, 0750); err != nil {
		return Info{}, errs.New(errs.BackupFailed, "backup.CreateBackup", tablePath, err)
	}
	name := fmt.Sprintf("%s.%d.csv.xz", stem, ts)
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		// same-second collision: disambiguate with nanoseconds
		name = fmt.Sprintf("%s.%d.%d.csv.xz", stem, ts, e.now().UnixNano())
		path = filepath.Join(dir, name)
	}

	var compressed bytes.Buffer
	cfg := xz.WriterConfig{DictCap: presetToDictCap(e.CompressionPreset)}
	if err := cfg.Verify(); err != nil {
		return Info{}, errs.New(errs.BackupFailed, "backup.CreateBackup", tablePath, err)
	}
	w, err := cfg.NewWriter(&compressed)
	if err != nil {
		return Info{}, errs.New(errs.BackupFailed, "backup.CreateBackup", tablePath, err)
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return Info{}, errs.New(errs.BackupFailed, "backup.CreateBackup", tablePath, err)
	}
	if err := w.Close(); err != nil {
		return Info{}, errs.New(errs.BackupFailed, "backup.CreateBackup", tablePath, err)
	}

	if err := atomicfile.WriteAll(path, compressed.Bytes()); err != nil {
		return Info{}, errs.New(errs.BackupFailed, "backup.CreateBackup", tablePath, err)
	}

	info := Info{
		Path:             path,
		TableStem:        stem,
		UnixSeconds:      ts,
		UncompressedSize: int64(len(content)),
		CompressedSize:   int64(compressed.Len()),
	}

	// no pruning happens here; callers run Prune after a successful
	// backup and decide what to do with its error (store logs it).
	return info, nil
}

// ListBackups returns every backup for tablePath, newest first.
func (e *Engine) ListBackups(tablePath string) ([]Info, error) {
	stem := strings.TrimSuffix(filepath.Base(tablePath), filepath.Ext(tablePath))
	entries, err := os.ReadDir(e.backupDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.New(errs.IoError, "backup.ListBackups", tablePath, err)
	}
	prefix := stem + "."
	var infos []Info
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasPrefix(ent.Name(), prefix) || !strings.HasSuffix(ent.Name(), ".csv.xz") {
			continue
		}
		mid := strings.TrimSuffix(strings.TrimPrefix(ent.Name(), prefix), ".csv.xz")
		tsPart := mid
		if i := strings.Index(mid, "."); i >= 0 {
			tsPart = mid[:i]
		}
		ts, err := strconv.ParseInt(tsPart, 10, 64)
		if err != nil {
			continue
		}
		fi, err := ent.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Path:           filepath.Join(e.backupDir(), ent.Name()),
			TableStem:      stem,
			UnixSeconds:    ts,
			CompressedSize: fi.Size(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].UnixSeconds != infos[j].UnixSeconds {
			return infos[i].UnixSeconds > infos[j].UnixSeconds
		}
		// same second: a nanosecond-suffixed name was written after
		// the plain one, so the longer name is the newer backup
		if len(infos[i].Path) != len(infos[j].Path) {
			return len(infos[i].Path) > len(infos[j].Path)
		}
		return infos[i].Path > infos[j].Path
	})
	return infos, nil
}

// Prune removes all but the newest keep backups for tablePath. Failure
// to remove an individual file is logged by the caller and does not
// abort the rest of the pass (non-fatal per the specification).
func (e *Engine) Prune(tablePath string, keep int) ([]string, error) {
	infos, err := e.ListBackups(tablePath)
	if err != nil {
		return nil, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(infos) <= keep {
		return nil, nil
	}
	var removed []string
	var firstErr error
	for _, info := range infos[keep:] {
		if err := os.Remove(info.Path); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed = append(removed, info.Path)
	}
	if firstErr != nil {
		return removed, errs.New(errs.IoError, "backup.Prune", tablePath, firstErr)
	}
	return removed, nil
}

// Decompress reads and decompresses one backup file's content.
func Decompress(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.New(errs.IoError, "backup.Decompress", path, err)
	}
	defer f.Close()
	r, err := xz.NewReader(f)
	if err != nil {
		return nil, errs.New(errs.SnapshotCorrupted, "backup.Decompress", path, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.New(errs.SnapshotCorrupted, "backup.Decompress", path, err)
	}
	return data, nil
}

// Restore selects the stepsBack-th newest backup for tablePath
// (stepsBack=1 is the newest) and atomically rewrites tablePath with
// its decompressed content. Restore itself does not back up
// tablePath's current content first; callers that want that
// protection create one before calling Restore.
func (e *Engine) Restore(tablePath string, stepsBack int) (Info, error) {
	if stepsBack < 1 {
		return Info{}, errs.New(errs.ValidationError, "backup.Restore", tablePath, fmt.Errorf("stepsBack must be >= 1"))
	}
	infos, err := e.ListBackups(tablePath)
	if err != nil {
		return Info{}, err
	}
	if stepsBack > len(infos) {
		return Info{}, errs.New(errs.NotFound, "backup.Restore", tablePath, fmt.Errorf("only %d backups available", len(infos)))
	}
	target := infos[stepsBack-1]
	data, err := Decompress(target.Path)
	if err != nil {
		return Info{}, err
	}
	if err := atomicfile.WriteAll(tablePath, data); err != nil {
		return Info{}, err
	}
	return target, nil
}
