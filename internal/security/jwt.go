// Package security guards the daemon's local API with signed bearer tokens.
// A nil secret disables authentication entirely (dev mode).
package security

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no token accompanies the request.
	ErrMissingToken = errors.New("security: missing authorization token")
	// ErrInvalidToken is returned when the JWT is malformed or the signature
	// does not verify.
	ErrInvalidToken = errors.New("security: invalid token")
	// ErrExpiredToken is returned when the JWT has expired.
	ErrExpiredToken = errors.New("security: token expired")
	// ErrInsufficientRole is returned when the token's role lacks permission.
	ErrInsufficientRole = errors.New("security: insufficient role")
)

// Roles accepted in API tokens. Control can mutate the queue; read can only
// observe it.
const (
	RoleControl = "control"
	RoleRead    = "read"
)

// Claims identify an API client and its permission level.
type Claims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
}

type jwtClaims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for the given client and role.
func GenerateToken(clientID, role string, secret []byte, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		ClientID: clientID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken parses and validates a JWT string, returning the claims.
func ValidateToken(tokenStr string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwtClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	jc, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &Claims{ClientID: jc.ClientID, Role: jc.Role}, nil
}

// Authorize validates the token carried by r and checks it against the
// request method: read tokens may only issue GET requests. Tokens arrive in
// the Authorization header or, for websocket clients that cannot set
// headers, a ?token= query parameter.
func Authorize(r *http.Request, secret []byte) (*Claims, error) {
	tokenStr := bearerToken(r)
	if tokenStr == "" {
		tokenStr = r.URL.Query().Get("token")
	}
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	claims, err := ValidateToken(tokenStr, secret)
	if err != nil {
		return nil, err
	}

	switch claims.Role {
	case RoleControl:
	case RoleRead:
		if r.Method != http.MethodGet {
			return nil, ErrInsufficientRole
		}
	default:
		return nil, ErrInsufficientRole
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// AuthMiddleware validates bearer tokens on every request. A nil secret
// passes everything through unauthenticated.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == nil {
				next.ServeHTTP(w, r)
				return
			}

			if _, err := Authorize(r, secret); err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, ErrInsufficientRole) {
					status = http.StatusForbidden
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				fmt.Fprintf(w, `{"error":%q}`, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
