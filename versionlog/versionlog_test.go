package versionlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	e := Entry{
		Timestamp: 1700000000,
		Action:    "set",
		User:      "admin",
		Base:      "text",
		Size:      42,
		Rows:      3,
		Hash:      "abc123",
		CRC32:     "deadbeef",
		FrameID:   "f-1",
	}
	got, err := Parse(Encode(e))
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestEncodeDefaultsFrameIDToNoFrame(t *testing.T) {
	line := Encode(Entry{Timestamp: 1, Action: "set", Base: "text"})
	assert.Contains(t, line, "|n/a")
}

func TestParseAcceptsLegacyEightColumnRow(t *testing.T) {
	line := "1700000000|set|admin|text|42|3|abc123|deadbeef"
	got, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, NoFrame, got.FrameID)
}

func TestParseRejectsWrongColumnCount(t *testing.T) {
	_, err := Parse("a|b|c")
	assert.Error(t, err)
}

func TestAppendReadAllRewritePreservesFrameID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, Entry{Timestamp: 1, Action: "set", Base: "text", FrameID: "f-1"}))

	entries, err := ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, Rewrite(dir))
	entries, err = ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f-1", entries[0].FrameID)
}
