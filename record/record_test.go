package record

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	cases := []Record{
		{Key: "page.title@en", Value: "Welcome", Description: "Homepage title"},
		{Key: "x", Value: "v2", Description: ""},
		{Key: "weird", Value: "a|b\"c\nd", Description: "has pipes"},
	}
	for _, rec := range cases {
		line := Encode(rec)
		got, err := Parse(line, 1)
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	}
}

func TestParseTwoColumnsEmptyDescription(t *testing.T) {
	got, err := Parse("x|v1", 1)
	require.NoError(t, err)
	assert.Equal(t, Record{Key: "x", Value: "v1"}, got)
}

func TestParseTooManyColumnsErrors(t *testing.T) {
	_, err := Parse("a|b|c|d", 4)
	require.Error(t, err)
	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 4, malformed.Line)
}

func TestParseUnbalancedQuotesErrors(t *testing.T) {
	_, err := Parse(`a|"unterminated`, 1)
	require.Error(t, err)
}

func TestReadAllSkipsOptionalHeader(t *testing.T) {
	input := "key|value|description\nx|v1|d1\ny|v2|d2\n"
	records, err := ReadAll(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "x", records[0].Key)
}

func TestReadAllWithoutHeader(t *testing.T) {
	input := "x|v1|d1\ny|v2|d2\n"
	records, err := ReadAll(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestReadAllCRLF(t *testing.T) {
	input := "x|v1|d1\r\ny|v2|d2\r\n"
	records, err := ReadAll(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestWriteAllProducesLFAndHeader(t *testing.T) {
	var buf strings.Builder
	err := WriteAll(&buf, []Record{{Key: "x", Value: "v1", Description: "d1"}})
	require.NoError(t, err)
	assert.Equal(t, "key|value|description\nx|v1|d1\n", buf.String())
	assert.NotContains(t, buf.String(), "\r")
}

func TestQuotingOnlyAppliedWhenNeeded(t *testing.T) {
	assert.Equal(t, "plain", quoteField("plain"))
	assert.Equal(t, `"a""b"`, quoteField(`a"b`))
	assert.Equal(t, `"a|b"`, quoteField("a|b"))
}

func TestReadAllRoundTripsEmbeddedNewline(t *testing.T) {
	records := []Record{
		{Key: "a", Value: "line1\nline2", Description: "multi-line value"},
		{Key: "b", Value: "plain", Description: "after the multi-line record"},
	}
	var buf strings.Builder
	require.NoError(t, WriteAll(&buf, records))

	got, err := ReadAll(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, records, got)
}
