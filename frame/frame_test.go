package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reedcms/reedbase/store"
)

// fakeClock hands out strictly increasing Unix-second timestamps, one
// tick per call. Frame ordering depends on distinct timestamps across
// Begin calls, and two real Begin calls in the same test can easily
// land in the same wall-clock second, so tests that need several
// ordered frames use this instead of the real clock.
type fakeClock struct{ t int64 }

func (c *fakeClock) now() time.Time {
	c.t++
	return time.Unix(c.t, 0)
}

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(dir, store.DefaultOptions())
	require.NoError(t, err)
	m, _, err := New(dir, st, ManagerOptions{})
	require.NoError(t, err)
	m.now = (&fakeClock{t: 1700000000}).now
	t.Cleanup(m.Close)
	return m, st
}

func TestBeginCommitWritesSnapshotAndIndex(t *testing.T) {
	m, _ := newTestManager(t)
	f, err := m.Begin("seed content")
	require.NoError(t, err)
	require.NoError(t, f.Set("text", "page.title", "Welcome", "Homepage title"))
	require.NoError(t, f.Set("nav", "main.home", "/", "Home link target"))

	report, err := f.Commit()
	require.NoError(t, err)
	assert.Equal(t, f.ID(), report.FrameID)
	assert.ElementsMatch(t, []string{"nav", "text"}, report.Tables)

	entries := m.index.all()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusCommitted, entries[0].Status)
}

func TestBeginRejectsNestedFrame(t *testing.T) {
	m, _ := newTestManager(t)
	f, err := m.Begin("first")
	require.NoError(t, err)
	defer f.Close()

	_, err = m.Begin("second")
	require.Error(t, err)
}

func TestCommitThenRollbackRestoresPriorContent(t *testing.T) {
	m, st := newTestManager(t)

	f1, err := m.Begin("initial")
	require.NoError(t, err)
	require.NoError(t, f1.Set("text", "x", "v1", "explain this field"))
	_, err = f1.Commit()
	require.NoError(t, err)

	f2, err := m.Begin("second edit")
	require.NoError(t, err)
	require.NoError(t, f2.Set("text", "x", "v2", ""))
	_, err = f2.Commit()
	require.NoError(t, err)

	res, err := st.Get("text", "x", "", "")
	require.NoError(t, err)
	assert.Equal(t, "v2", res.Value)

	f3, err := m.Begin("rollback attempt")
	require.NoError(t, err)
	require.NoError(t, f3.LogOperation("rollback-target", "text"))
	rr, err := f3.Rollback()
	require.NoError(t, err)
	assert.Equal(t, f1.ID(), rr.RestoredFrom)

	res, err = st.Get("text", "x", "", "")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Value)
}

func TestRestoreToPointInTime(t *testing.T) {
	m, st := newTestManager(t)

	f1, err := m.Begin("v1")
	require.NoError(t, err)
	require.NoError(t, f1.Set("text", "x", "v1", "explain this field"))
	_, err = f1.Commit()
	require.NoError(t, err)
	targetTS := f1.Timestamp()

	f2, err := m.Begin("v2")
	require.NoError(t, err)
	require.NoError(t, f2.Set("text", "x", "v2", ""))
	_, err = f2.Commit()
	require.NoError(t, err)

	_, err = m.RestoreTo(targetTS)
	require.NoError(t, err)

	res, err := st.Get("text", "x", "", "")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Value)
}

func TestRollbackWithNoPriorCommitFails(t *testing.T) {
	m, _ := newTestManager(t)
	f, err := m.Begin("only frame")
	require.NoError(t, err)
	require.NoError(t, f.Set("text", "x", "v1", "explain this field"))
	require.NoError(t, f.LogOperation("noop", "text"))

	_, err = f.Rollback()
	require.Error(t, err)
}

func TestCloseWithoutCommitMarksCrashed(t *testing.T) {
	m, _ := newTestManager(t)
	f, err := m.Begin("abandoned")
	require.NoError(t, err)
	f.Close()
	assert.Equal(t, StatusCrashed, f.Status())

	// the active slot is freed, so a fresh Begin succeeds
	_, err = m.Begin("next")
	require.NoError(t, err)
}

func TestRecoverCrashedRollsForwardAbandonedFrame(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(dir, store.DefaultOptions())
	require.NoError(t, err)

	m, _, err := New(dir, st, ManagerOptions{})
	require.NoError(t, err)
	m.now = (&fakeClock{t: 1700000000}).now
	f1, err := m.Begin("base")
	require.NoError(t, err)
	require.NoError(t, f1.Set("text", "x", "v1", "explain this field"))
	_, err = f1.Commit()
	require.NoError(t, err)

	f2, err := m.Begin("abandoned edit")
	require.NoError(t, err)
	require.NoError(t, f2.Set("text", "x", "v2", ""))
	// simulate a crash: f2 is never committed or rolled back; m.Close
	// only marks it crashed, leaving the rollback to the next startup
	m.Close()

	st2, err := store.Open(dir, store.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, st2.LoadFromDisk())

	m2, report, err := New(dir, st2, ManagerOptions{})
	require.NoError(t, err)
	defer m2.Close()

	assert.Contains(t, report.Recovered, f2.ID())

	res, err := st2.Get("text", "x", "", "")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Value)
}

func TestPruneSnapshotsArchivesOldEntriesButKeepsIndexRow(t *testing.T) {
	m, _ := newTestManager(t)
	m.retention = 0 // everything is immediately eligible for archiving

	f, err := m.Begin("archivable")
	require.NoError(t, err)
	require.NoError(t, f.Set("text", "x", "v1", "explain this field"))
	_, err = f.Commit()
	require.NoError(t, err)

	require.NoError(t, m.pruneSnapshots())

	entries := m.index.all()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusArchived, entries[0].Status)
}
