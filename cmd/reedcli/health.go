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

	"github.com/reedcms/reedbase"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run the store's health checks and report the worst status found",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		report := db.HealthCheck(cmd.Context())
		for _, c := range report.Checks {
			fmt.Printf("[%s] %s: %s\n", c.Status, c.Name, c.Detail)
		}
		fmt.Printf("overall: %s\n", report.Status)
		if report.Status == reedbase.HealthCritical {
			return fmt.Errorf("health check reported a critical status")
		}
		return nil
	},
}
