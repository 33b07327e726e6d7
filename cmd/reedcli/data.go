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

	"github.com/spf13/cobra"
)

var (
	getLanguageFlag    string
	getEnvironmentFlag string
	setDescriptionFlag string
	listPatternFlag    string
)

var getCmd = &cobra.Command{
	Use:   "get <table> <key>",
	Short: "Resolve a key through the language/environment fallback chain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()
		res, err := db.Get(args[0], args[1], getLanguageFlag, getEnvironmentFlag)
		if err != nil {
			return err
		}
		fmt.Println(res.Value)
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <table> <key> <value>",
	Short: "Upsert one record",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()
		return db.Set(args[0], args[1], args[2], setDescriptionFlag)
	},
}

var listCmd = &cobra.Command{
	Use:   "list <table>",
	Short: "List a table's keys, optionally filtered by a glob pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()
		for _, key := range db.List(args[0], listPatternFlag) {
			fmt.Println(key)
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <table> <key>",
	Short: "Delete one record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()
		return db.Remove(args[0], args[1])
	},
}

func init() {
	getCmd.Flags().StringVar(&getLanguageFlag, "lang", "", "language suffix")
	getCmd.Flags().StringVar(&getEnvironmentFlag, "env", "", "environment suffix")
	setCmd.Flags().StringVar(&setDescriptionFlag, "description", "", "human-readable field description")
	listCmd.Flags().StringVar(&listPatternFlag, "pattern", "", "glob pattern (*, ?) over keys")
}
