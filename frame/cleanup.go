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

package frame

import "time"

// cleanupLoop runs pruneSnapshots on a ticker until Close is called.
// Grounded on the teacher's cache eviction loop (storage/cache.go),
// which runs the same select-on-ticker-vs-stop-channel shape.
func (m *Manager) cleanupLoop(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if err := m.pruneSnapshots(); err != nil {
				m.log.Error().Err(err).Msg("snapshot retention sweep failed")
			}
			m.maybeRefreshIndex()
		}
	}
}

// pruneSnapshots archives every non-archived index entry older than
// the retention window: its snapshot file is removed and its blob
// references are dropped, but the index row itself is kept, with its
// status updated to archived, per the specification's "index rows are
// never removed" invariant.
func (m *Manager) pruneSnapshots() error {
	cutoff := m.now().Add(-m.retention).Unix()
	for _, e := range m.index.all() {
		if e.Status == StatusArchived || e.Timestamp >= cutoff {
			continue
		}
		snap, err := m.readSnapshotFile(e.Timestamp)
		if err == nil {
			for _, te := range snap.Tables {
				if err := m.blobs.decr(te.Hash); err != nil {
					m.log.Warn().Err(err).Str("hash", te.Hash).Msg("blob decref failed during archive")
				}
			}
		}
		m.removeSnapshotFile(e.Timestamp)

		archived := e
		archived.Status = StatusArchived
		if err := m.appendIndex(archived); err != nil {
			return err
		}
		m.log.Debug().Int64("timestamp", e.Timestamp).Str("frame_id", e.FrameID).Msg("snapshot archived")
	}
	return nil
}
