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
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Inspect and prune a table's XZ-compressed backups",
}

var backupListCmd = &cobra.Command{
	Use:   "list <table>",
	Short: "List a table's backups, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		path := filepath.Join(db.Store().DataDir(), args[0]+".csv")
		infos, err := db.Store().Backup().ListBackups(path)
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("%s\t%s\t%d bytes\n", info.Path, time.Unix(info.UnixSeconds, 0).Format(time.RFC3339), info.CompressedSize)
		}
		return nil
	},
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune <table>",
	Short: "Delete backups beyond the configured retention count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		path := filepath.Join(db.Store().DataDir(), args[0]+".csv")
		removed, err := db.Store().Backup().Prune(path, db.Store().Backup().Keep)
		if err != nil {
			return err
		}
		for _, r := range removed {
			fmt.Println("removed", r)
		}
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupPruneCmd)
}
