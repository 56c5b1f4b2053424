package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/go-admin-template/go-admin-template/internal/db/models"
)

// Claims are the claims carried by an issued bearer token.
type Claims struct {
	Username   string `json:"username"`
	AuthSource string `json:"auth_source"`

	jwt.RegisteredClaims
}

// UserID returns the numeric user ID from the token subject.
func (c *Claims) UserID() (uint64, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}

	return id, nil
}

// TokenIssuer issues and verifies HS256 signed bearer tokens.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
}

// NewTokenIssuer creates a token issuer with the given signing secret and
// token lifetime.
func NewTokenIssuer(secret string, expiry time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// Issue creates a signed token for the given user.
func (i *TokenIssuer) Issue(user *models.User) (string, error) {
	now := time.Now()

	claims := Claims{
		Username:   user.Username,
		AuthSource: string(user.AuthSource),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	return signed, nil
}

// Verify parses and validates a token string and returns its claims.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := new(Claims)

	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
