package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storefront/pkg/apierror"
)

func TestBcryptHasher(t *testing.T) {
	t.Parallel()

	hasher := NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("Secret1!")
	require.NoError(t, err)
	require.NotEqual(t, "Secret1!", hash)

	require.True(t, hasher.Compare("Secret1!", hash))
	require.False(t, hasher.Compare("Secret2!", hash))
	require.False(t, hasher.Compare("Secret1!", "not-a-bcrypt-hash"))
	require.False(t, hasher.Compare("Secret1!", ""))
}

func TestBcryptHasherRejectsOverlongPassword(t *testing.T) {
	t.Parallel()

	_, err := NewBcryptHasher(bcrypt.MinCost).Hash(strings.Repeat("a", 73))
	require.Equal(t, apierror.CodeValidation, apierror.CodeOf(err))
}

func TestNewBcryptHasherClampsCost(t *testing.T) {
	t.Parallel()

	require.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	require.Equal(t, 12, NewBcryptHasher(12).cost)
}
