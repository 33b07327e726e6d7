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

// rollbackCmd opens a transient frame purely to anchor a timestamp
// just after "now" and immediately calls Rollback on it, which undoes
// the most recent committed frame before that point by restoring the
// committed frame preceding it -- there is no standalone
// Manager.Rollback, since rollback is defined as an operation on a
// frame's own timestamp.
var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Undo the most recent committed frame, restoring the committed frame before it",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		f, err := db.Begin("rollback")
		if err != nil {
			return err
		}
		report, err := f.Rollback()
		if err != nil {
			return err
		}
		fmt.Printf("rolled back to frame %s, tables: %s\n", report.RestoredFrom, strings.Join(report.Tables, ", "))
		return nil
	},
}
