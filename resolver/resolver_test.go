package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestCandidatesOrder(t *testing.T) {
	assert.Equal(t, []string{"k@en@prod", "k@en", "k@prod", "k"}, Candidates("k", "en", "prod"))
	assert.Equal(t, []string{"k@en", "k"}, Candidates("k", "en", ""))
	assert.Equal(t, []string{"k@prod", "k"}, Candidates("k", "", "prod"))
	assert.Equal(t, []string{"k"}, Candidates("k", "", ""))
}

func TestResolveFallbackToBase(t *testing.T) {
	m := map[string]string{"page.title": "Untitled"}
	res, err := Resolve(lookupFrom(m), "page.title", "de", "")
	require.NoError(t, err)
	assert.Equal(t, "Untitled", res.Value)
	assert.Equal(t, "page.title", res.ResolvedKey)
}

func TestResolveFirstCandidateWins(t *testing.T) {
	m := map[string]string{
		"page.title@en@prod": "A",
		"page.title@en":      "B",
		"page.title":         "C",
	}
	res, err := Resolve(lookupFrom(m), "page.title", "en", "prod")
	require.NoError(t, err)
	assert.Equal(t, "A", res.Value)
}

func TestResolveNotFound(t *testing.T) {
	_, err := Resolve(lookupFrom(nil), "page.title", "en", "prod")
	require.Error(t, err)
}

func TestValidateKeyRejectsUppercaseAndEmptySegments(t *testing.T) {
	assert.Error(t, ValidateKey("Page.Title"))
	assert.Error(t, ValidateKey("page..title"))
	assert.Error(t, ValidateKey(""))
	assert.NoError(t, ValidateKey("page.title"))
	assert.NoError(t, ValidateKey("page.title@en"))
}

func TestValidateKeyAcceptsTwoSuffixSegments(t *testing.T) {
	assert.NoError(t, ValidateKey("page.title@en@prod"))
	assert.Error(t, ValidateKey("page.title@en@prod@extra"))
	assert.Error(t, ValidateKey("page.title@en@"))
}

func TestValidateSuffixRejectsAtSign(t *testing.T) {
	assert.Error(t, ValidateSuffix("@en"))
	assert.Error(t, ValidateSuffix(""))
	assert.NoError(t, ValidateSuffix("en"))
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 1, Depth("page"))
	assert.Equal(t, 3, Depth("a.b.c"))
	assert.Equal(t, 3, Depth("a.b.c@en"))
}
