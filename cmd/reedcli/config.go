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
	"os"

	"gopkg.in/yaml.v3"

	"github.com/reedcms/reedbase"
)

// fileConfig is the CLI's own YAML config file shape, mapping onto
// reedbase.Config. The library itself never reads a config file; this
// is purely for reedcli's operational convenience, per SPEC_FULL's
// ambient-stack configuration note.
type fileConfig struct {
	DataDir                      string `yaml:"data_dir"`
	BackupKeep                   int    `yaml:"backup_keep"`
	BackupCompressionLevel       int    `yaml:"backup_compression_level"`
	FrameRetentionDays           int    `yaml:"frame_retention_days"`
	FrameIndexCacheTTLSeconds    int    `yaml:"frame_index_cache_ttl_seconds"`
	DescriptionMinLengthOnCreate int    `yaml:"description_min_length_on_create"`
}

// loadFileConfig reads path if it exists; a missing path is not an
// error (the CLI falls back to flags and reedbase's own defaults).
func loadFileConfig(path string) (fileConfig, error) {
	if path == "" {
		return fileConfig{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileConfig{}, nil
		}
		return fileConfig{}, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fileConfig{}, err
	}
	return fc, nil
}

// options translates the parsed file config into reedbase.Options,
// skipping any zero-valued field so reedbase's own defaults apply.
func (fc fileConfig) options() []reedbase.Option {
	var opts []reedbase.Option
	if fc.BackupKeep > 0 {
		opts = append(opts, reedbase.WithBackupKeep(fc.BackupKeep))
	}
	if fc.BackupCompressionLevel > 0 {
		opts = append(opts, reedbase.WithBackupCompressionLevel(fc.BackupCompressionLevel))
	}
	if fc.FrameRetentionDays > 0 {
		opts = append(opts, reedbase.WithFrameRetentionDays(fc.FrameRetentionDays))
	}
	if fc.FrameIndexCacheTTLSeconds > 0 {
		opts = append(opts, reedbase.WithFrameIndexCacheTTLSeconds(fc.FrameIndexCacheTTLSeconds))
	}
	if fc.DescriptionMinLengthOnCreate > 0 {
		opts = append(opts, reedbase.WithDescriptionMinLengthOnCreate(fc.DescriptionMinLengthOnCreate))
	}
	// The CLI runs one command per process; there is no benefit to a
	// background TTL/index goroutine that outlives a single command,
	// so it is disabled here regardless of the file config.
	opts = append(opts, reedbase.WithFrameCleanupInterval(0))
	return opts
}

func resolveDataDir(flagVal string, fc fileConfig) string {
	if flagVal != "" {
		return flagVal
	}
	if fc.DataDir != "" {
		return fc.DataDir
	}
	return ".reed/"
}
