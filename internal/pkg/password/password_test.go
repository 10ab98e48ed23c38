package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testParams = Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(testParams)

	encoded, err := h.Hash("pw123456")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))
	assert.NotContains(t, encoded, "pw123456")

	ok, err := h.Verify("pw123456", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("pw123457", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasher_SaltsDiffer(t *testing.T) {
	h := NewHasher(testParams)
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHasher_VerifyUsesEncodedParams(t *testing.T) {
	encoded, err := NewHasher(testParams).Hash("secret-pass")
	require.NoError(t, err)

	ok, err := NewHasher(DefaultParams).Verify("secret-pass", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasher_LegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	require.NoError(t, err)

	h := NewHasher(testParams)
	ok, err := h.Verify("old-password", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasher_MalformedHash(t *testing.T) {
	h := NewHasher(testParams)
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$garbage$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5",
	} {
		ok, err := h.Verify("x", encoded)
		assert.False(t, ok, encoded)
		assert.ErrorIs(t, err, ErrMalformedHash, encoded)
	}
}
