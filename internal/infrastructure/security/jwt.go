// Package security provides JWT token utilities
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Token kinds carried in the "kind" claim.
const (
	KindAccess = "access"
	KindQR     = "qr"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated caller as carried by a bearer token.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Photo string `json:"photo,omitempty"`
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(secret, issuer string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// WithClock replaces the time source used for iat/exp.
func (ti *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	ti.now = now
	return ti
}

// Issue creates a token of the given kind for identity.
func (ti *TokenIssuer) Issue(identity Identity, kind string, ttl time.Duration) (string, error) {
	if identity.UID == "" {
		return "", fmt.Errorf("cannot issue token without uid")
	}
	now := ti.now().UTC()
	claims := jwt.MapClaims{
		"sub":   identity.UID,
		"email": identity.Email,
		"name":  identity.Name,
		"photo": identity.Photo,
		"kind":  kind,
		"iss":   ti.issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"jti":   GenerateULID(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, expiry, issuer and kind and returns the identity.
func (ti *TokenIssuer) Validate(tokenString, kind string) (Identity, error) {
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	token, err := parser.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return ti.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if !claims.VerifyIssuer(ti.issuer, true) {
		return Identity{}, fmt.Errorf("%w: issuer", ErrInvalidToken)
	}
	if got, _ := claims["kind"].(string); got != kind {
		return Identity{}, fmt.Errorf("%w: kind %q", ErrInvalidToken, got)
	}

	identity := Identity{}
	identity.UID, _ = claims["sub"].(string)
	identity.Email, _ = claims["email"].(string)
	identity.Name, _ = claims["name"].(string)
	identity.Photo, _ = claims["photo"].(string)
	if identity.UID == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return identity, nil
}
