package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProducesPHCString(t *testing.T) {
	phc, err := Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(phc, "$argon2id$v=19$m=19456,t=2,p=1$"))
}

func TestVerifyRoundTrip(t *testing.T) {
	phc, err := Hash("hunter2")
	require.NoError(t, err)
	ok, err := Verify(phc, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsWrongPassword(t *testing.T) {
	phc, err := Hash("hunter2")
	require.NoError(t, err)
	ok, err := Verify(phc, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsMalformedPHC(t *testing.T) {
	_, err := Verify("not-a-phc-string", "x")
	assert.Error(t, err)
}

func TestHashIsSalted(t *testing.T) {
	a, err := Hash("same password")
	require.NoError(t, err)
	b, err := Hash("same password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
