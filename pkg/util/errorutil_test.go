package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
	})

	t.Run("wrapped domain error", func(t *testing.T) {
		cause := errors.New("signature mismatch")
		err := fmt.Errorf("validate: %w", NewInvalidToken(cause))

		de := ToDomainError(err)
		require.NotNil(t, de)
		assert.Equal(t, http.StatusUnauthorized, de.HTTPStatus)
		assert.Equal(t, "invalid_token", de.Code)
		assert.Equal(t, InvalidTokenMessage, de.Message)
		assert.ErrorIs(t, de, cause)
	})

	t.Run("unknown error becomes internal", func(t *testing.T) {
		de := ToDomainError(errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
		assert.Equal(t, "internal server error", de.Message)
	})
}

func TestBadCredentialsIsGeneric(t *testing.T) {
	unknownUser := ToDomainError(NewBadCredentials(errors.New("user not found")))
	wrongPassword := ToDomainError(NewBadCredentials(errors.New("hash mismatch")))

	assert.Equal(t, unknownUser.Code, wrongPassword.Code)
	assert.Equal(t, unknownUser.Message, wrongPassword.Message)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.HTTPStatus)
}

func TestCodeForStatus(t *testing.T) {
	assert.Equal(t, "not_found", CodeForStatus(http.StatusNotFound))
	assert.Equal(t, "internal_error", CodeForStatus(http.StatusBadGateway))
	assert.Equal(t, "error", CodeForStatus(http.StatusTeapot))
}
