package tokenmanager

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
	"github.com/nkiryanov/cashbackmart/internal/models"
)

func Test_TokenManager(t *testing.T) {
	t.Parallel()

	testUser := models.User{
		ID:       uuid.New(),
		Username: "testuser",
		Role:     models.RoleAdmin,
	}

	t.Run("new defaults", func(t *testing.T) {
		m, err := New(Config{SecretKey: "secret"})
		require.NoError(t, err, "token manager should be created without errors")

		require.Equal(t, "secret", m.key, "secret key should be set")
		require.Equal(t, defaultAccessTokenTTL, m.accessTTL, "default access token TTL should be set")
		require.Equal(t, defaultSigningMethod, m.alg.Alg(), "default signing method should be set")
	})

	t.Run("new fails", func(t *testing.T) {
		_, err := New(Config{})
		require.Error(t, err, "empty secret is not allowed")

		_, err = New(Config{SecretKey: "secret", Alg: "nope"})
		require.Error(t, err, "unknown alg is not allowed")
	})

	t.Run("issue claims", func(t *testing.T) {
		m, err := New(Config{SecretKey: "test-secret-key", AccessTTL: 15 * time.Minute})
		require.NoError(t, err)

		issued, err := m.Issue(testUser)
		require.NoError(t, err)

		token, err := jwt.ParseWithClaims(issued.Value, &AccessTokenClaims{}, func(token *jwt.Token) (any, error) {
			return []byte("test-secret-key"), nil
		})
		require.NoError(t, err)
		require.True(t, token.Valid, "access token should be valid")

		claims, ok := token.Claims.(*AccessTokenClaims)
		require.True(t, ok, "claims should be of type AccessTokenClaims")
		require.Equal(t, testUser.ID, claims.UserID)
		require.Equal(t, models.RoleAdmin, claims.Role)
		require.NotEmpty(t, claims.ID, "token has to has jti")
		require.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)
		require.WithinDuration(t, issued.ExpiresAt, claims.ExpiresAt.Time, 0)
	})

	t.Run("issue different tokens", func(t *testing.T) {
		m, err := New(Config{SecretKey: "test-secret-key"})
		require.NoError(t, err)

		first, err := m.Issue(testUser)
		require.NoError(t, err)
		second, err := m.Issue(testUser)
		require.NoError(t, err)

		require.NotEqual(t, first.Value, second.Value, "jti makes every token unique")
	})

	t.Run("Parse", func(t *testing.T) {
		m, err := New(Config{SecretKey: "test-secret-key"})
		require.NoError(t, err)

		t.Run("valid token", func(t *testing.T) {
			issued, err := m.Issue(testUser)
			require.NoError(t, err)

			actor, err := m.Parse(issued.Value)

			require.NoError(t, err)
			require.Equal(t, models.Actor{UserID: testUser.ID, Role: models.RoleAdmin}, actor)
		})

		t.Run("not a token", func(t *testing.T) {
			_, err := m.Parse("invalid token")

			require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
			require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
		})

		t.Run("signed with other key", func(t *testing.T) {
			other, err := New(Config{SecretKey: "other-key"})
			require.NoError(t, err)
			issued, err := other.Issue(testUser)
			require.NoError(t, err)

			_, err = m.Parse(issued.Value)

			require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
		})

		t.Run("expired token", func(t *testing.T) {
			short, err := New(Config{SecretKey: "test-secret-key", AccessTTL: -time.Minute})
			require.NoError(t, err)
			issued, err := short.Issue(testUser)
			require.NoError(t, err)

			_, err = m.Parse(issued.Value)

			require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
		})
	})
}
