package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	ok, err := h.Verify(hash, "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(hash, "battery staple")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Verify("not-a-bcrypt-hash", "x")
	assert.Error(t, err)
}

func TestNewBcryptHasher_OutOfRangeCostUsesDefault(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(99).cost)
}
