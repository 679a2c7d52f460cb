package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndComparePassword(t *testing.T) {
	hashed, err := HashPassword("s3cret!", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hashed)

	assert.NoError(t, ComparePassword(hashed, "s3cret!"))
	assert.ErrorIs(t, ComparePassword(hashed, "wrong"), ErrPasswordMismatch)

	err = ComparePassword("not-a-bcrypt-digest", "s3cret!")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPasswordMismatch)
}

func TestHashPasswordOutOfRangeCost(t *testing.T) {
	hashed, err := HashPassword("s3cret!", 0)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hashed))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
