package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	dir := t.TempDir()
	e := New(dir)
	counter := int64(1700000000)
	e.now = func() time.Time {
		counter++
		return time.Unix(counter, 0)
	}
	return e, dir
}

func TestCreateAndDecompressBackup(t *testing.T) {
	e, dir := newTestEngine(t)
	tablePath := filepath.Join(dir, "text.csv")
	require.NoError(t, os.WriteFile(tablePath, []byte("key|value|description\nx|v1|d1\n"), 0640))

	info, err := e.CreateBackup(tablePath)
	require.NoError(t, err)
	assert.FileExists(t, info.Path)
	assert.Equal(t, "text", info.TableStem)

	data, err := Decompress(info.Path)
	require.NoError(t, err)
	assert.Equal(t, "key|value|description\nx|v1|d1\n", string(data))
}

func TestListBackupsNewestFirst(t *testing.T) {
	e, dir := newTestEngine(t)
	tablePath := filepath.Join(dir, "text.csv")
	require.NoError(t, os.WriteFile(tablePath, []byte("v1"), 0640))
	_, err := e.CreateBackup(tablePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tablePath, []byte("v2"), 0640))
	_, err = e.CreateBackup(tablePath)
	require.NoError(t, err)

	infos, err := e.ListBackups(tablePath)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Greater(t, infos[0].UnixSeconds, infos[1].UnixSeconds)
}

func TestPruneIsIdempotent(t *testing.T) {
	e, dir := newTestEngine(t)
	tablePath := filepath.Join(dir, "text.csv")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(tablePath, []byte{byte(i)}, 0640))
		_, err := e.CreateBackup(tablePath)
		require.NoError(t, err)
	}
	removed1, err := e.Prune(tablePath, 2)
	require.NoError(t, err)
	assert.Len(t, removed1, 3)

	removed2, err := e.Prune(tablePath, 2)
	require.NoError(t, err)
	assert.Empty(t, removed2)

	infos, err := e.ListBackups(tablePath)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestRestoreSelectsStepsBack(t *testing.T) {
	e, dir := newTestEngine(t)
	tablePath := filepath.Join(dir, "text.csv")
	require.NoError(t, os.WriteFile(tablePath, []byte("v1"), 0640))
	_, err := e.CreateBackup(tablePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tablePath, []byte("v2"), 0640))
	_, err = e.CreateBackup(tablePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tablePath, []byte("v3 current"), 0640))

	_, err = e.Restore(tablePath, 1)
	require.NoError(t, err)
	got, _ := os.ReadFile(tablePath)
	assert.Equal(t, "v2", string(got))

	_, err = e.Restore(tablePath, 2)
	require.NoError(t, err)
	got, _ = os.ReadFile(tablePath)
	assert.Equal(t, "v1", string(got))
}

func TestRestoreBeyondAvailableIsNotFound(t *testing.T) {
	e, dir := newTestEngine(t)
	tablePath := filepath.Join(dir, "text.csv")
	require.NoError(t, os.WriteFile(tablePath, []byte("v1"), 0640))
	_, err := e.CreateBackup(tablePath)
	require.NoError(t, err)

	_, err = e.Restore(tablePath, 5)
	assert.Error(t, err)
}
