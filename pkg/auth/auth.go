package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized covers every credential failure: missing, malformed,
// badly signed, or expired tokens. Verification failures are never retried.
var ErrUnauthorized = errors.New("unauthorized")

// Principal is the verified identity behind an authenticated request. It
// carries nothing but the account id.
type Principal struct {
	ID string
}

// Verifier resolves a bearer credential to a principal. The rest of the
// system treats principal resolution as a precondition and never inspects
// tokens itself.
type Verifier interface {
	Verify(token string) (Principal, error)
}

// JWTVerifier verifies HS256-signed tokens whose subject claim is the
// account id. Expiry is honored when present.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(token string) (Principal, error) {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (interface{}, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return Principal{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}

	return Principal{ID: sub}, nil
}

// IssueToken mints a bearer token for an account id. Used by the token
// utility and by tests; the server itself only ever verifies.
func IssueToken(secret, accountID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
