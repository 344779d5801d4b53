package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

func TestVerifier_IssueAndParse(t *testing.T) {
	v := NewVerifier("test-secret", "pharmatech-auth")

	token, err := v.Issue(42, "buyer@example.com", "customer", time.Hour)
	require.NoError(t, err)

	claims, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "customer", claims.Role)
}

func TestVerifier_Parse_Rejects(t *testing.T) {
	v := NewVerifier("test-secret", "pharmatech-auth")

	t.Run("过期Token", func(t *testing.T) {
		token, err := v.Issue(1, "a@b.c", "customer", -time.Minute)
		require.NoError(t, err)
		_, err = v.Parse(token)
		assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
	})

	t.Run("密钥不一致", func(t *testing.T) {
		other := NewVerifier("another-secret", "pharmatech-auth")
		token, err := other.Issue(1, "a@b.c", "customer", time.Hour)
		require.NoError(t, err)
		_, err = v.Parse(token)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("签发方不一致", func(t *testing.T) {
		other := NewVerifier("test-secret", "someone-else")
		token, err := other.Issue(1, "a@b.c", "customer", time.Hour)
		require.NoError(t, err)
		_, err = v.Parse(token)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("格式错误", func(t *testing.T) {
		_, err := v.Parse("not-a-jwt")
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})
}
