package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveFingerprintIsStable(t *testing.T) {
	a := DeriveFingerprint("visitor-key")
	b := DeriveFingerprint("visitor-key")
	other := DeriveFingerprint("different-key")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)
	assert.Len(t, a, 32)
	assert.NotContains(t, a, "visitor-key", "raw key never leaks into the fingerprint")
}

func TestGenerateULIDIsSortableAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := GenerateULID()
		assert.Len(t, id, 26)
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := GenerateSecureToken(24)
	require.NoError(t, err)
	b, err := GenerateSecureToken(24)
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestGenerateSecureKeyLength(t *testing.T) {
	key, err := GenerateSecureKey(64)
	require.NoError(t, err)
	assert.Len(t, key, 64)
}

func TestDashboardTokenRoundTrip(t *testing.T) {
	secret := "test-secret-key-for-jwt-signing-32-chars"

	token, err := GenerateDashboardToken("acme", "admin", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "acme", claims["tenantId"])
	assert.Equal(t, "admin", claims["role"])
	assert.Equal(t, "dashboard", claims["type"])
}

func TestValidateJWTRejectsWrongSecret(t *testing.T) {
	token, err := GenerateDashboardToken("acme", "admin", "secret-one", time.Hour)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "secret-two")
	assert.Error(t, err)
}

func TestValidateJWTRejectsExpiredToken(t *testing.T) {
	secret := "test-secret"
	token, err := GenerateDashboardToken("acme", "admin", secret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(token, secret)
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, CheckPassword(hash, "correct horse battery staple"))
	assert.False(t, CheckPassword(hash, "wrong password"))
}
