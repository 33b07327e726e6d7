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

// Package record implements the pipe-delimited record codec: one
// line in, one Record out, and back.
package record

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/reedcms/reedbase/errs"
)

const Header = "key|value|description"

// Record is the smallest unit of storage: a (key, value, description)
// triple.
type Record struct {
	Key         string
	Value       string
	Description string
}

// MalformedError reports a line that could not be parsed.
type MalformedError struct {
	Line   int
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed record at line %d: %s", e.Line, e.Reason)
}

// needsQuoting reports whether a field must be wrapped in double
// quotes to round-trip through the pipe-delimited format.
func needsQuoting(field string) bool {
	return strings.ContainsAny(field, "|\"\n\r")
}

func quoteField(field string) string {
	if !needsQuoting(field) {
		return field
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range field {
		if r == '"' {
			b.WriteString(`""`)
		} else {
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Encode serialises a Record into one CSV line, without the trailing
// newline.
func Encode(r Record) string {
	return strings.Join([]string{
		quoteField(r.Key),
		quoteField(r.Value),
		quoteField(r.Description),
	}, "|")
}

// SplitFields exposes the record codec's quote-aware pipe splitter for
// other pipe-delimited formats. The frame snapshot and index formats
// do not use it; they split on a plain '|'.
func SplitFields(line string) ([]string, error) {
	return splitFields(line)
}

// splitFields is the unexported implementation behind SplitFields and
// Parse.
func splitFields(line string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case inQuotes:
			if c == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					cur.WriteByte('"')
					i++
				} else {
					inQuotes = false
				}
			} else {
				cur.WriteRune(c)
			}
		case c == '"' && cur.Len() == 0:
			inQuotes = true
		case c == '|':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unbalanced quotes")
	}
	fields = append(fields, cur.String())
	return fields, nil
}

// Parse turns one line into a Record. A 2-column line is accepted with
// an empty description; a line with more than 3 columns is an error.
func Parse(line string, lineNo int) (Record, error) {
	fields, err := splitFields(line)
	if err != nil {
		return Record{}, errs.New(errs.CsvMalformed, "record.Parse", "", &MalformedError{lineNo, err.Error()})
	}
	switch len(fields) {
	case 2:
		return Record{Key: fields[0], Value: fields[1]}, nil
	case 3:
		return Record{Key: fields[0], Value: fields[1], Description: fields[2]}, nil
	default:
		return Record{}, errs.New(errs.CsvMalformed, "record.Parse", "",
			&MalformedError{lineNo, fmt.Sprintf("expected 2 or 3 columns, got %d", len(fields))})
	}
}

// splitLogicalLines breaks content into one string per record line,
// splitting on LF only outside a quoted field -- a quoted value is
// allowed to embed a raw newline (per the quoting rule), so a plain
// line scanner would tear such a record in two. Tracking quote state
// by toggling on every `"` byte is sufficient here: a doubled `""`
// escape inside a quoted field toggles twice and nets no change,
// exactly matching splitFields' own escaping rule.
func splitLogicalLines(content string) []string {
	var lines []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range content {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == '\n' && !inQuotes:
			lines = append(lines, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// ReadAll parses every record out of r. The optional header line
// ("key|value|description") is skipped if present; it is not required
// on read.
func ReadAll(r io.Reader) ([]Record, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.New(errs.IoError, "record.ReadAll", "", err)
	}
	var records []Record
	lineNo := 0
	first := true
	for _, raw := range splitLogicalLines(string(content)) {
		lineNo++
		line := strings.TrimRight(raw, "\r")
		if line == "" {
			continue
		}
		if first && line == Header {
			first = false
			continue
		}
		first = false
		rec, err := Parse(line, lineNo)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteAll serialises records with a required header, LF line endings.
func WriteAll(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header + "\n"); err != nil {
		return errs.New(errs.IoError, "record.WriteAll", "", err)
	}
	for _, rec := range records {
		if _, err := bw.WriteString(Encode(rec) + "\n"); err != nil {
			return errs.New(errs.IoError, "record.WriteAll", "", err)
		}
	}
	return bw.Flush()
}
