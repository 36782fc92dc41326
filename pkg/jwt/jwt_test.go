package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	id := uuid.New()

	token, err := s.GenerateToken(id, "rosa@fundo", "Rosa", "OPERATOR", "v1")
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "v1", claims.TokenVersion)

	_, err = NewSigner("other", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = s.ValidateToken("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestSignerExpiry(t *testing.T) {
	s := NewSigner("secret", time.Minute)
	s.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }

	token, err := s.GenerateToken(uuid.New(), "rosa@fundo", "Rosa", "OPERATOR", "v1")
	require.NoError(t, err)
	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
