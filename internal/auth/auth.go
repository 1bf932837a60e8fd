package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier resolves a bearer credential to a user id.
type Verifier interface {
	Verify(token string) (string, error)
}

type claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// JwtVerifier accepts HS256 tokens carrying a "userId" claim, the format
// issued by the sign-in API.
type JwtVerifier struct {
	secret []byte
	parser *jwt.Parser
}

var _ Verifier = (*JwtVerifier)(nil)

func NewJwtVerifier(secret string) *JwtVerifier {
	return &JwtVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

func (v *JwtVerifier) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}

	var c claims
	_, err := v.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.UserID == "" {
		return "", fmt.Errorf("%w: no userId claim", ErrInvalidToken)
	}
	return c.UserID, nil
}

// Issue signs a token for userID. ttl <= 0 issues a token without expiry.
func Issue(secret, userID string, ttl time.Duration) (string, error) {
	c := claims{UserID: userID}
	c.IssuedAt = jwt.NewNumericDate(time.Now())
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// BearerToken extracts the credential from an "Authorization: Bearer x"
// header value. A bare token is accepted as well.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
