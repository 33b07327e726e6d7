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

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	frameNameFlag    string
	frameSetFlags    []string
	frameRemoveFlags []string
)

// frameCmd is deliberately a single subcommand rather than separate
// begin/commit verbs: a frame.Frame only lives in one process's
// memory, and each cobra invocation is a fresh process, so "reedcli
// frame begin" followed by a later "reedcli frame commit" could never
// share the same *frame.Frame. Bundling begin+apply+commit into one
// RunE call keeps the whole coordinated transaction inside a single
// process lifetime, the same constraint rollbackCmd and restoreCmd
// work around in their own ways (see DESIGN.md).
var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Begin a frame, apply a batch of set/remove operations, and commit it",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		f, err := db.Begin(frameNameFlag)
		if err != nil {
			return err
		}

		for _, spec := range frameSetFlags {
			table, key, value, description, err := parseSetSpec(spec)
			if err != nil {
				f.Close()
				return err
			}
			if err := f.Set(table, key, value, description); err != nil {
				f.Close()
				return err
			}
		}
		for _, spec := range frameRemoveFlags {
			table, key, err := parseRemoveSpec(spec)
			if err != nil {
				f.Close()
				return err
			}
			if err := f.Remove(table, key); err != nil {
				f.Close()
				return err
			}
		}

		report, err := f.Commit()
		if err != nil {
			return err
		}
		fmt.Printf("committed frame %s at %d, tables: %s\n", report.FrameID, report.Timestamp, strings.Join(report.Tables, ", "))
		return nil
	},
}

// parseSetSpec parses "table:key=value" or "table:key=value:description".
func parseSetSpec(spec string) (table, key, value, description string, err error) {
	tablePart, rest, ok := strings.Cut(spec, ":")
	if !ok {
		return "", "", "", "", fmt.Errorf("invalid --set %q: expected table:key=value", spec)
	}
	keyPart, rest, _ := strings.Cut(rest, "=")
	valuePart, descPart, _ := strings.Cut(rest, ":")
	if keyPart == "" || valuePart == "" {
		return "", "", "", "", fmt.Errorf("invalid --set %q: expected table:key=value", spec)
	}
	return tablePart, keyPart, valuePart, descPart, nil
}

// parseRemoveSpec parses "table:key".
func parseRemoveSpec(spec string) (table, key string, err error) {
	table, key, ok := strings.Cut(spec, ":")
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid --remove %q: expected table:key", spec)
	}
	return table, key, nil
}

func init() {
	frameCmd.Flags().StringVar(&frameNameFlag, "name", "frame", "frame name recorded in the index")
	frameCmd.Flags().StringArrayVar(&frameSetFlags, "set", nil, "table:key=value[:description], repeatable")
	frameCmd.Flags().StringArrayVar(&frameRemoveFlags, "remove", nil, "table:key, repeatable")
}
