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
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var restoreAtFlag int64

// restoreCmd restores directly through Manager.RestoreTo, which needs
// no live frame object, unlike rollbackCmd and frameCmd.
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore every table to the nearest committed frame at or before a point in time",
	RunE: func(cmd *cobra.Command, args []string) error {
		if restoreAtFlag == 0 {
			return fmt.Errorf("--at <unix-seconds> is required")
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		report, err := db.RestoreTo(restoreAtFlag)
		if err != nil {
			return err
		}
		fmt.Printf("restored from frame %s (ts=%s), tables: %s\n",
			report.SourceFrameID, strconv.FormatInt(report.Timestamp, 10), strings.Join(report.Tables, ", "))
		return nil
	},
}

func init() {
	restoreCmd.Flags().Int64Var(&restoreAtFlag, "at", 0, "restore target, Unix seconds")
}
