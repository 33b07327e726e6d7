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

// Command reedcli is a thin cobra wrapper exercising the reedbase
// library for manual/operational use: get/set/list/remove, a
// begin-apply-commit frame run, rollback, point-in-time restore,
// backup listing/pruning, and a health check. Modeled on
// cuemby-warren's cmd/warren and cmd/warren-migrate entry points: a
// cobra root command, persistent flags initialized via
// cobra.OnInitialize, and subcommands returning error from RunE.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reedcms/reedbase"
	"github.com/reedcms/reedbase/pkg/log"
)

var (
	dataDirFlag  string
	configFlag   string
	logLevelFlag string
	logJSONFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "reedcli",
	Short: "reedcli operates a ReedBase CSV-backed content store",
	Long: `reedcli is a thin operational wrapper around the reedbase library:
get/set/list/remove records, run coordinated multi-table frames, roll
back or restore to a prior point in time, manage backups, and check
store health.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "root directory of the CSV store (default .reed/)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSONFlag, "log-json", false, "output logs as JSON")

	cobra.OnInitialize(func() {
		log.Init(log.Config{Level: log.Level(logLevelFlag), JSONOutput: logJSONFlag})
	})

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(frameCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	os.Exit(run())
}

// run executes the command tree and maps the result to the
// specification's exit codes: 0 success, 1 user error (NotFound,
// ValidationError), 2 any other error including a recovered panic.
func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "reedcli: panic: %v\n", r)
			code = 2
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "reedcli: %v\n", err)
		return exitCodeFor(err)
	}
	return 0
}

func exitCodeFor(err error) int {
	var e *reedbase.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case reedbase.NotFound, reedbase.ValidationError:
			return 1
		}
	}
	return 2
}

// openDB builds a *reedbase.DB from --data-dir/--config, shutting it
// down is the caller's responsibility (defer db.Shutdown()).
func openDB() (*reedbase.DB, error) {
	fc, err := loadFileConfig(configFlag)
	if err != nil {
		return nil, err
	}
	dir := resolveDataDir(dataDirFlag, fc)
	return reedbase.Open(dir, fc.options()...)
}
