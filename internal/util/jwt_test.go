package util

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing"

func TestJWT_RoundTrip(t *testing.T) {
	token, err := GenerateJWT("admin-123", testSecret, 0)
	require.NoError(t, err)

	id, err := ParseJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "admin-123", id)
}

func TestJWT_NoExpiryByDefault(t *testing.T) {
	token, err := GenerateJWT("admin-123", testSecret, 0)
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	_, hasExp := parsed.Claims.(jwt.MapClaims)["exp"]
	assert.False(t, hasExp)
}

func TestJWT_PositiveTTLSetsExpiry(t *testing.T) {
	before := time.Now()
	token, err := GenerateJWT("admin-123", testSecret, time.Hour)
	require.NoError(t, err)

	id, err := ParseJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "admin-123", id)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	exp, err := parsed.Claims.GetExpirationTime()
	require.NoError(t, err)
	require.NotNil(t, exp)
	assert.WithinDuration(t, before.Add(time.Hour), exp.Time, 5*time.Second)
}

func TestJWT_NonPositiveTTLNeverExpires(t *testing.T) {
	token, err := GenerateJWT("admin-123", testSecret, -time.Hour)
	require.NoError(t, err)

	id, err := ParseJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "admin-123", id)
}

func TestJWT_Invalid(t *testing.T) {
	valid, err := GenerateJWT("admin-123", testSecret, 0)
	require.NoError(t, err)
	otherSecret, err := GenerateJWT("admin-123", "different-secret", 0)
	require.NoError(t, err)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "admin-123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": "admin-123"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "admin-123"}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt-token"},
		{"malformed", "header.payload.signature"},
		{"wrong secret", otherSecret},
		{"expired", expired},
		{"alg none", noneAlg},
		{"missing id claim", noID},
		{"bearer prefix", "Bearer " + valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJWT(tt.token, testSecret)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestExtractToken_Verbatim(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, ExtractToken(req))

	req.Header.Set("Authorization", "abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", ExtractToken(req))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword("s3cret", hash))
	assert.False(t, CheckPassword("wrong", hash))
}
