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

// Package atomicfile provides whole-file atomic read/write, following
// the write-temp/fsync/rename/fsync-dir protocol: a reader never sees
// a partially written file.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/reedcms/reedbase/errs"
)

// ReadAll reads the whole file at path. A missing file is reported as
// an empty byte slice with no error, mirroring the teacher's
// ReadSchema convention of treating "not written yet" as empty rather
// than fatal.
func ReadAll(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.New(errs.IoError, "atomicfile.ReadAll", path, err)
	}
	return b, nil
}

// WriteAll atomically replaces the file at path with data: write to
// path+".tmp", fsync it, rename over path, then fsync the containing
// directory. On any failure the temp file is removed and the original
// is left untouched.
func WriteAll(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errs.New(errs.IoError, "atomicfile.WriteAll", path, err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return errs.New(errs.IoError, "atomicfile.WriteAll", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return errs.New(errs.IoError, "atomicfile.WriteAll", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errs.New(errs.IoError, "atomicfile.WriteAll", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errs.New(errs.IoError, "atomicfile.WriteAll", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.New(errs.IoError, "atomicfile.WriteAll", path, err)
	}
	syncDir(dir)
	return nil
}

// syncDir fsyncs the directory so the rename itself is durable. Not
// all platforms support fsync on directories; failures here are
// non-fatal since the rename has already completed.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	d.Sync()
}

// AppendLine appends one line (with a trailing newline) to the file at
// path, creating it if necessary. Used by append-only logs
// (frame.log, version.log) where atomic whole-file replacement would
// be wasteful.
func AppendLine(path, line string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errs.New(errs.IoError, "atomicfile.AppendLine", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return errs.New(errs.IoError, "atomicfile.AppendLine", path, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, line); err != nil {
		return errs.New(errs.IoError, "atomicfile.AppendLine", path, err)
	}
	return f.Sync()
}
