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

// Package errs defines the closed set of error kinds every ReedBase
// component returns, so callers can branch on errors.Is/errors.As
// instead of string matching.
package errs

import "fmt"

// Kind is one of the error kinds named in the ReedBase specification.
type Kind string

const (
	NotFound               Kind = "not_found"
	ValidationError        Kind = "validation_error"
	IoError                Kind = "io_error"
	CsvMalformed           Kind = "csv_malformed"
	BackupFailed           Kind = "backup_failed"
	FrameAlreadyActive     Kind = "frame_already_active"
	FrameNotFound          Kind = "frame_not_found"
	NoFrameBeforeTimestamp Kind = "no_frame_before_timestamp"
	SnapshotCorrupted      Kind = "snapshot_corrupted"
	LockPoisoned           Kind = "lock_poisoned"
)

// System reports whether a Kind represents a system error (exit code 2
// in the CLI wrapper) as opposed to a user error (exit code 1).
func (k Kind) System() bool {
	switch k {
	case NotFound, ValidationError:
		return false
	default:
		return true
	}
}

// Error is the single exported error type every ReedBase operation
// returns. Op names the failing operation (e.g. "store.Set"), Path is
// the file or key involved when relevant, and Cause wraps the
// underlying error if any.
type Error struct {
	Kind  Kind
	Op    string
	Path  string
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is lets errors.Is(err, errs.KindOf(errs.NotFound)) work by comparing
// Kind, not identity. target must be an *Error, such as a bare Kind
// wrapped via errs.KindOf; any other target never matches.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	if other.Kind == "" {
		return false
	}
	return e.Kind == other.Kind
}

// New builds an Error. cause may be nil.
func New(kind Kind, op, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Cause: cause}
}

// KindOf returns a sentinel *Error carrying only a Kind, suitable for
// errors.Is(err, errs.KindOf(errs.NotFound)).
func KindOf(kind Kind) *Error {
	return &Error{Kind: kind}
}
