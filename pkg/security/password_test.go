package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/security"
)

var fastParams = config.PasswordConfig{
	ArgonMemoryKB:    1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", fastParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"), hash)

	ok, err := security.VerifyPassword("very-secure-password", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("bogus-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	for _, encoded := range []string{
		"not-a-hash",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$a2V5",
		"$argon2id$v=16$m=1024,t=1,p=1$c2FsdHNhbHQ$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdHNhbHQ$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$a2V5",
	} {
		_, err := security.VerifyPassword("irrelevant", encoded)
		assert.ErrorIs(t, err, security.ErrInvalidHash, encoded)
	}
}

func TestNeedsRehashTracksConfiguredCosts(t *testing.T) {
	hash, err := security.HashPassword("pw", fastParams)
	require.NoError(t, err)
	assert.False(t, security.NeedsRehash(hash, fastParams))

	stronger := fastParams
	stronger.ArgonTime = 2
	assert.True(t, security.NeedsRehash(hash, stronger))
	assert.True(t, security.NeedsRehash("garbage", fastParams))
}

func TestGenerateTempPassword(t *testing.T) {
	pw, err := security.GenerateTempPassword(20)
	require.NoError(t, err)
	assert.Len(t, pw, 20)
	assert.NotContainsf(t, pw, "0", "look-alike characters are excluded")

	_, err = security.GenerateTempPassword(0)
	assert.Error(t, err)
}
