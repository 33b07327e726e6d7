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

package reedbase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reedcms/reedbase/metrics"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir, WithMetrics(metrics.New()), WithFrameCleanupInterval(0))
	require.NoError(t, err)
	t.Cleanup(db.Shutdown)
	return db
}

func TestOpenSetThenGetRoundTrips(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Set("text", "page.title@en", "Welcome", "Homepage title"))

	res, err := db.Get("text", "page.title", "en", "")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", res.Value)
}

func TestListAndRemove(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Set("text", "a.one", "1", "first of two keys in this test table"))
	require.NoError(t, db.Set("text", "a.two", "2", "second of two keys in this test table"))

	keys := db.List("text", "a.*")
	assert.ElementsMatch(t, []string{"a.one", "a.two"}, keys)

	require.NoError(t, db.Remove("text", "a.one"))
	assert.ElementsMatch(t, []string{"a.two"}, db.List("text", "a.*"))
}

func TestBeginCommitThroughFacade(t *testing.T) {
	db := newTestDB(t)
	f, err := db.Begin("batch update")
	require.NoError(t, err)
	require.NoError(t, f.Set("text", "x", "v1", "a key set inside a coordinated frame"))
	report, err := f.Commit()
	require.NoError(t, err)
	assert.Equal(t, []string{"text"}, report.Tables)

	res, err := db.Get("text", "x", "", "")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Value)
}

func TestRestoreToThroughFacade(t *testing.T) {
	db := newTestDB(t)
	f, err := db.Begin("initial")
	require.NoError(t, err)
	require.NoError(t, f.Set("text", "x", "v1", "value restored to after the second frame"))
	_, err = f.Commit()
	require.NoError(t, err)
	cutoff := time.Now().Unix()

	// Frame timestamps are Unix seconds; sleep past the second boundary
	// so the two commits land on distinct timestamps and cutoff
	// unambiguously falls between them.
	time.Sleep(1100 * time.Millisecond)

	f2, err := db.Begin("second")
	require.NoError(t, err)
	require.NoError(t, f2.Set("text", "x", "v2", "value restored to after the second frame"))
	_, err = f2.Commit()
	require.NoError(t, err)

	res, err := db.Get("text", "x", "", "")
	require.NoError(t, err)
	assert.Equal(t, "v2", res.Value)

	_, err = db.RestoreTo(cutoff)
	require.NoError(t, err)

	res, err = db.Get("text", "x", "", "")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Value)
}

func TestHealthCheckReportsOKOnFreshStore(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Set("text", "x", "v1", "seed a table so the csv check has something to read"))

	report := db.HealthCheck(context.Background())
	assert.Equal(t, HealthOK, report.Status)
	assert.NotEmpty(t, report.Checks)
}

func TestHealthCheckOKWithFreshlyBegunFrame(t *testing.T) {
	db := newTestDB(t)
	f, err := db.Begin("just started")
	require.NoError(t, err)
	t.Cleanup(f.Close)

	report := db.HealthCheck(context.Background())
	assert.Equal(t, HealthOK, report.Status)
}

func TestShutdownIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	db.Shutdown()
	db.Shutdown()
}
