package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// -----------------------------------------------------------------------------

// ErrInvalidToken is returned for any token that fails verification: bad
// signature, expired, malformed, or missing the user_id claim.
var ErrInvalidToken = errors.New("invalid token")

// -----------------------------------------------------------------------------
// HMACVerifier validates HS256 access tokens issued by the auth service.
// -----------------------------------------------------------------------------

type HMACVerifier struct {
	secret []byte
}

// -----------------------------------------------------------------------------

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// -----------------------------------------------------------------------------

// Verify parses and validates the token, returning the user_id claim.
func (v *HMACVerifier) Verify(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	// user_id claim must be a number
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, ErrInvalidToken
	}

	return int64(userID), nil
}
