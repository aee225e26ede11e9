package dispatch

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// deviceToken mints a short-lived HS256 token identifying this device to the
// remote API. A fresh token is signed per dispatch; they are cheap and a
// long-lived one would outlive its usefulness on a mostly-offline device.
func deviceToken(deviceID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   deviceID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
