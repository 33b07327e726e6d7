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

// Package versionlog appends and parses the per-table version.log: one
// row per mutation, 9 pipe-delimited columns. An older 8-column form
// (no frame_id) is accepted on read and upgraded to 9 columns the next
// time the log is rewritten.
package versionlog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/reedcms/reedbase/errs"
	"github.com/reedcms/reedbase/internal/atomicfile"
)

// NoFrame is the frame_id value written for mutations outside a frame.
const NoFrame = "n/a"

// Entry is one version.log row.
type Entry struct {
	Timestamp int64
	Action    string
	User      string
	Base      string // table/base name
	Size      int64  // byte size of the table file after this mutation
	Rows      int    // row count of the table file after this mutation
	Hash      string
	CRC32     string
	FrameID   string // NoFrame outside a frame
}

// Encode serialises one Entry into its 9-column line (no trailing
// newline).
func Encode(e Entry) string {
	frameID := e.FrameID
	if frameID == "" {
		frameID = NoFrame
	}
	fields := []string{
		strconv.FormatInt(e.Timestamp, 10),
		e.Action,
		e.User,
		e.Base,
		strconv.FormatInt(e.Size, 10),
		strconv.Itoa(e.Rows),
		e.Hash,
		e.CRC32,
		frameID,
	}
	return strings.Join(fields, "|")
}

// Parse reads one line, accepting both the current 9-column form and
// the older 8-column form (pre-frame_id), which is treated as
// NoFrame.
func Parse(line string) (Entry, error) {
	fields := strings.Split(line, "|")
	if len(fields) != 8 && len(fields) != 9 {
		return Entry{}, errs.New(errs.CsvMalformed, "versionlog.Parse", "",
			fmt.Errorf("expected 8 or 9 columns, got %d", len(fields)))
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Entry{}, errs.New(errs.CsvMalformed, "versionlog.Parse", "", err)
	}
	size, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return Entry{}, errs.New(errs.CsvMalformed, "versionlog.Parse", "", err)
	}
	rows, err := strconv.Atoi(fields[5])
	if err != nil {
		return Entry{}, errs.New(errs.CsvMalformed, "versionlog.Parse", "", err)
	}
	e := Entry{
		Timestamp: ts,
		Action:    fields[1],
		User:      fields[2],
		Base:      fields[3],
		Size:      size,
		Rows:      rows,
		Hash:      fields[6],
		CRC32:     fields[7],
		FrameID:   NoFrame,
	}
	if len(fields) == 9 {
		e.FrameID = fields[8]
	}
	return e, nil
}

// Append writes one entry to <data-dir>/version.log.
func Append(dataDir string, e Entry) error {
	return atomicfile.AppendLine(dataDir+"/version.log", Encode(e))
}

// ReadAll parses every entry in <data-dir>/version.log, upgrading
// 8-column rows to 9-column Entry values in memory. It does not
// rewrite the file; Rewrite does that explicitly.
func ReadAll(dataDir string) ([]Entry, error) {
	content, err := atomicfile.ReadAll(dataDir + "/version.log")
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, line := range strings.Split(string(content), "\n") {
		if line == "" {
			continue
		}
		e, err := Parse(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Rewrite reads the version.log, upgrades every row to the 9-column
// form, and atomically rewrites the file. Call this after detecting
// any 8-column rows on read.
func Rewrite(dataDir string) error {
	entries, err := ReadAll(dataDir)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(Encode(e))
		b.WriteByte('\n')
	}
	return atomicfile.WriteAll(dataDir+"/version.log", []byte(b.String()))
}
