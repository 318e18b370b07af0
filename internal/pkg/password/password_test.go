package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashVerify(t *testing.T) {
	hash, err := HashWithCost("password", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, Verify("password", hash))
	assert.False(t, Verify("Password", hash))
	assert.False(t, Verify("password", "not-a-hash"))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("token-a")
	assert.Len(t, a, 16)
	assert.Equal(t, a, Fingerprint("token-a"))
	assert.NotEqual(t, a, Fingerprint("token-b"))
}

func TestVerifyUnknownRunsFullCostCompare(t *testing.T) {
	assert.False(t, VerifyUnknown("unknown-identity"))
	assert.False(t, VerifyUnknown(""))

	cost, err := bcrypt.Cost(unknownHash)
	require.NoError(t, err)
	assert.Equal(t, DefaultCost, cost)
}
