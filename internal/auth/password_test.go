package auth

import (
	"strings"
	"testing"

	"github.com/example/marketplace-engine/internal/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ====== HashPassword Tests ======

func TestHashPassword_AcceptsEightOrMoreChars(t *testing.T) {
	for _, password := range []string{
		"password",
		"this-is-a-very-long-password-123!@#",
		"p@ssw0rd!",
	} {
		hash, err := HashPassword(password)
		require.NoError(t, err, "password %q", password)
		assert.NotEqual(t, password, hash)
		assert.True(t, strings.HasPrefix(hash, "$2"), "expected a bcrypt hash, got %q", hash)
	}
}

func TestHashPassword_RejectsShortPasswords(t *testing.T) {
	for _, password := range []string{"1234567", "", "       "} {
		hash, err := HashPassword(password)
		assert.ErrorIs(t, err, fault.ErrValidation, "password %q", password)
		assert.Empty(t, hash)
	}
}

func TestHashPassword_SaltsEachHash(t *testing.T) {
	first, err := HashPassword("testpassword123")
	require.NoError(t, err)
	second, err := HashPassword("testpassword123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

// ====== CheckPassword Tests ======

func TestCheckPassword_Verifies(t *testing.T) {
	hash, err := HashPassword("correctpassword")
	require.NoError(t, err)

	assert.True(t, CheckPassword("correctpassword", hash))
	assert.False(t, CheckPassword("wrongpassword", hash))
}

func TestCheckPassword_GarbageHashFailsClosed(t *testing.T) {
	assert.False(t, CheckPassword("password", "invalid-hash"))
	assert.False(t, CheckPassword("password", ""))
}

func TestCheckPassword_CaseSensitive(t *testing.T) {
	hash, err := HashPassword("Password123")
	require.NoError(t, err)

	assert.True(t, CheckPassword("Password123", hash))
	assert.False(t, CheckPassword("password123", hash))
}
