package util

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// claimID is the claim carrying the admin id.
const claimID = "id"

// GenerateJWT signs an HS256 token for adminID. ttl <= 0 issues a token
// without an exp claim.
func GenerateJWT(adminID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		claimID: adminID,
		"iat":   now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseJWT validates the signature and returns the admin id. Every failure
// wraps ErrInvalidToken.
func ParseJWT(tokenStr, secret string) (string, error) {
	if tokenStr == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	adminID, ok := claims[claimID].(string)
	if !ok || adminID == "" {
		return "", fmt.Errorf("%w: missing %q claim", ErrInvalidToken, claimID)
	}
	return adminID, nil
}

// ExtractToken returns the Authorization header verbatim. No scheme prefix is
// expected.
func ExtractToken(r *http.Request) string {
	return r.Header.Get("Authorization")
}
