package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merodocs-http-service/internal/infrastructure/config"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService(&config.Config{JWTSecretKey: "test-secret"})

	token, err := svc.GenerateToken(Guard(7, 3), time.Hour)
	require.NoError(t, err)

	claims, err := svc.ExtractClaims(token)
	require.NoError(t, err)
	p, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, Principal{ID: 7, Role: RoleGuard, ApartmentID: 3}, p)
}

func TestJWTRejectsForeignSecret(t *testing.T) {
	token, err := NewJWTService(&config.Config{JWTSecretKey: "a"}).GenerateToken(Resident(1, 1), time.Hour)
	require.NoError(t, err)

	_, err = NewJWTService(&config.Config{JWTSecretKey: "b"}).ExtractClaims(token)
	assert.Error(t, err)
}

func TestJWTUnknownRole(t *testing.T) {
	claims := &JWTClaims{
		UserID: 1,
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	parsed, err := NewJWTService(&config.Config{JWTSecretKey: "s"}).ExtractClaims(signed)
	require.NoError(t, err)
	_, err = parsed.Principal()
	assert.ErrorIs(t, err, ErrTokenRole)
}
