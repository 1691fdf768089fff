package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		Issuer:                "groupbuy-identity",
		AccessTokenExpiration: 15 * time.Minute,
	})
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestJWTService()
	userID := uuid.New()

	token, expiresAt, err := svc.GenerateAccessToken(userID, "Linh")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Second)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	got, err := claims.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, got)
	assert.Equal(t, "Linh", claims.DisplayName)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := newTestJWTService()
	userID := uuid.New()

	sign := func(claims *Claims, secret string, method jwt.SigningMethod) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	base := func() *Claims {
		now := time.Now()
		return &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "groupbuy-identity",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
				IssuedAt:  jwt.NewNumericDate(now),
			},
			UserID: userID.String(),
		}
	}

	expired := base()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	notYet := base()
	notYet.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour))

	noUser := base()
	noUser.UserID = ""

	badUser := base()
	badUser.UserID = "not-a-uuid"

	wrongIssuer := base()
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"garbage", "not.a.token", ErrInvalidToken},
		{"wrong secret", sign(base(), "another-secret", jwt.SigningMethodHS256), ErrInvalidToken},
		{"wrong algorithm", sign(base(), "test-secret-key-at-least-32-chars", jwt.SigningMethodHS512), ErrInvalidToken},
		{"expired", sign(expired, "test-secret-key-at-least-32-chars", jwt.SigningMethodHS256), ErrExpiredToken},
		{"not yet valid", sign(notYet, "test-secret-key-at-least-32-chars", jwt.SigningMethodHS256), ErrTokenNotYetValid},
		{"missing user", sign(noUser, "test-secret-key-at-least-32-chars", jwt.SigningMethodHS256), ErrMissingUserID},
		{"malformed user", sign(badUser, "test-secret-key-at-least-32-chars", jwt.SigningMethodHS256), ErrInvalidClaims},
		{"wrong issuer", sign(wrongIssuer, "test-secret-key-at-least-32-chars", jwt.SigningMethodHS256), ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
