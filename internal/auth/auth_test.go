package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProofRoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	require.Len(t, salt, saltBytes*2)

	proof := ComputeProof("hunter2", salt)
	assert.True(t, VerifyProof(proof, ComputeProof("hunter2", salt)))
	assert.False(t, VerifyProof(proof, ComputeProof("hunter3", salt)))

	otherSalt, err := GenerateSalt()
	require.NoError(t, err)
	assert.NotEqual(t, salt, otherSalt)
	assert.False(t, VerifyProof(proof, ComputeProof("hunter2", otherSalt)))
}

func TestDeriveFakeSaltStable(t *testing.T) {
	secret := []byte("process-secret")
	a := DeriveFakeSalt(secret, "ghost")
	b := DeriveFakeSalt(secret, "ghost")
	assert.Equal(t, a, b)
	assert.Len(t, a, saltBytes*2)

	assert.NotEqual(t, a, DeriveFakeSalt(secret, "other"))
	assert.NotEqual(t, a, DeriveFakeSalt([]byte("different-secret"), "ghost"))
}

func TestTokenConsumeOnce(t *testing.T) {
	store := NewTokenStore(time.Minute)

	token, err := store.GenerateToken("alice")
	require.NoError(t, err)

	username, ok := store.ConsumeToken(token)
	require.True(t, ok)
	assert.Equal(t, "alice", username)

	_, ok = store.ConsumeToken(token)
	assert.False(t, ok)
}

func TestTokenExpiry(t *testing.T) {
	store := NewTokenStore(-time.Second)

	token, err := store.GenerateToken("alice")
	require.NoError(t, err)

	_, ok := store.ConsumeToken(token)
	assert.False(t, ok)
}

func TestTokenUnknown(t *testing.T) {
	store := NewTokenStore(time.Minute)
	_, ok := store.ConsumeToken("no-such-token")
	assert.False(t, ok)
}
