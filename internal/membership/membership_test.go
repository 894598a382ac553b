// internal/membership/membership_test.go
package membership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"golang", "machine learning"},
		normalizeTags([]string{" Golang ", "Machine Learning", "golang", ""}))
	assert.Empty(t, normalizeTags(nil))
	assert.Empty(t, normalizeTags([]string{"  ", ""}))
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, salt, err := hashPassword("SecurePass123!")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotEmpty(t, salt)

	ok, err := verifyPassword("SecurePass123!", salt, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifyPassword("wrong-password", salt, hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHashesAreSalted(t *testing.T) {
	hash1, salt1, err := hashPassword("SecurePass123!")
	require.NoError(t, err)
	hash2, salt2, err := hashPassword("SecurePass123!")
	require.NoError(t, err)

	assert.NotEqual(t, salt1, salt2)
	assert.NotEqual(t, hash1, hash2)
}
