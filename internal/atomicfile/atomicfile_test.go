package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAllThenReadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "text.csv")
	require.NoError(t, WriteAll(path, []byte("hello")))
	got, err := ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestReadAllMissingFileIsEmptyNotError(t *testing.T) {
	got, err := ReadAll(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWriteAllLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "text.csv")
	require.NoError(t, WriteAll(path, []byte("v1")))
	require.NoError(t, WriteAll(path, []byte("v2")))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "text.csv", entries[0].Name())
}

func TestAppendLineAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.log")
	require.NoError(t, AppendLine(path, "one"))
	require.NoError(t, AppendLine(path, "two"))
	got, err := ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(got))
}
