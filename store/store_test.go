package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reedcms/reedbase/errs"
	"github.com/reedcms/reedbase/versionlog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, DefaultOptions())
	require.NoError(t, err)
	return s
}

func TestSetThenGetBasic(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("text", "page.title@en", "Welcome", "Homepage title"))
	res, err := s.Get("text", "page.title", "en", "")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", res.Value)
	assert.Equal(t, "page.title@en", res.ResolvedKey)
}

func TestGetFallsBackToBaseKey(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("text", "page.title", "Untitled", "Homepage title"))
	res, err := s.Get("text", "page.title", "de", "")
	require.NoError(t, err)
	assert.Equal(t, "Untitled", res.Value)
}

func TestSetAcceptsLanguageAndEnvironmentSuffixAndWinsFallback(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("text", "page.title@en@prod", "Prod Welcome", "Homepage title"))
	require.NoError(t, s.Set("text", "page.title@en", "Dev Welcome", "Homepage title"))
	require.NoError(t, s.Set("text", "page.title", "Fallback", "Homepage title"))

	res, err := s.Get("text", "page.title", "en", "prod")
	require.NoError(t, err)
	assert.Equal(t, "Prod Welcome", res.Value)
	assert.Equal(t, "page.title@en@prod", res.ResolvedKey)
}

func TestSetPreservesDescriptionOnEmptyUpdate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("text", "x", "v1", "explain this field"))
	require.NoError(t, s.Set("text", "x", "v2", ""))

	content, err := os.ReadFile(s.tablePath("text"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "x|v2|explain this field")
}

func TestSetRejectsShortDescriptionOnCreate(t *testing.T) {
	s := newTestStore(t)
	err := s.Set("text", "x", "v1", "short")
	require.Error(t, err)
	e, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, errs.ValidationError, e.Kind)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("text", "missing.key", "", "")
	require.Error(t, err)
	e, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, errs.NotFound, e.Kind)
}

func TestRemoveStandaloneMissingKeyIsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Remove("text", "missing")
	require.Error(t, err)
	e, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, errs.NotFound, e.Kind)
}

func TestRemoveDeletesRecord(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("text", "x", "v1", "explain this field"))
	require.NoError(t, s.Remove("text", "x"))
	_, err := s.Get("text", "x", "", "")
	require.Error(t, err)
}

func TestRemoveInFrameToleratesMissingKey(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RemoveInFrame(FrameContext{Timestamp: 100, FrameID: "f1"}, "text", "missing"))
}

func TestListReturnsInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("text", "b", "2", "field b description"))
	require.NoError(t, s.Set("text", "a", "1", "field a description"))
	assert.Equal(t, []string{"b", "a"}, s.List("text", ""))
}

func TestListGlobPattern(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("text", "page.title", "1", "field description"))
	require.NoError(t, s.Set("text", "page.body", "2", "field description"))
	require.NoError(t, s.Set("text", "other", "3", "field description"))
	got := s.List("text", "page.*")
	assert.ElementsMatch(t, []string{"page.title", "page.body"}, got)
}

func TestBackupCreatedBeforeEachSet(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("text", "x", "v1", "explain this field"))
	require.NoError(t, s.Set("text", "x", "v2", ""))
	infos, err := s.Backup().ListBackups(s.tablePath("text"))
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestLoadFromDiskWarmsCache(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s1.Set("text", "x", "v1", "explain this field"))

	s2, err := Open(dir, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s2.LoadFromDisk())
	res, err := s2.Get("text", "x", "", "")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Value)
}

func TestSetInFrameStampsVersionLogWithFrameID(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetInFrame(FrameContext{Timestamp: 42, FrameID: "frame-abc", User: "tester"}, "text", "x", "v1", "explain this field"))
	entries, err := versionlog.ReadAll(s.DataDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(42), entries[0].Timestamp)
	assert.Equal(t, "frame-abc", entries[0].FrameID)
	assert.Equal(t, "tester", entries[0].User)
}

func TestReplaceTableContentRewritesFileAndCache(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("text", "a", "1", "field a description"))
	require.NoError(t, s.Set("text", "b", "2", "field b description"))

	old, err := s.TableContent("text")
	require.NoError(t, err)

	require.NoError(t, s.Set("text", "c", "3", "field c description"))

	err = s.LockTables([]string{"text"}, func() error {
		return s.ReplaceTableContent(FrameContext{Timestamp: 99, FrameID: "f1", User: "frame"}, "text", "rollback from frame f1", old)
	})
	require.NoError(t, err)

	_, err = s.Get("text", "c", "", "")
	require.Error(t, err)
	res, err := s.Get("text", "a", "", "")
	require.NoError(t, err)
	assert.Equal(t, "1", res.Value)
}
