// Package auth issues and checks session tokens, hashes passwords, and
// attaches the signed-in user to each request.
//
// SESSION FLOW:
//  1. POST /login or /register checks the password and issues a token
//  2. The token goes into the HttpOnly access_token cookie for TokenTTL
//  3. LoadUser validates the cookie on every request and loads the user row
//  4. GET /logout clears the cookie
//
// TOKEN STRUCTURE (three base64url parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<username>","iss":"moviespace","iat":...,"exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
//
// Nothing is stored server side. A token stays valid until it expires, and
// rotating the secret signs everyone out.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "moviespace"

	// TokenTTL is how long a session token (and its cookie) stays valid.
	TokenTTL = 7 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService signs and validates HS256 session tokens. The subject claim
// carries the username.
type TokenService struct {
	secret []byte
}

// NewTokenService builds a TokenService. The secret must be at least 16
// characters; in production use 32 random bytes, for example
// SECRET_KEY=$(openssl rand -hex 32).
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: secret key must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the token payload. Subject holds the username, which is unique and
// immutable, so LoadUser can resolve it with one lookup.
type claims struct {
	jwt.RegisteredClaims
}

// Generate returns a token for username that expires after TokenTTL.
func (s *TokenService) Generate(username string) (string, error) {
	return s.GenerateWithDuration(username, TokenTTL)
}

// GenerateWithDuration is Generate with a caller-chosen lifetime. A negative d
// yields an already expired token.
func (s *TokenService) GenerateWithDuration(username string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate returns the username tokenStr was issued for. Every failure wraps
// ErrInvalidToken.
//
// VALIDATION CHECKS:
//   - the HMAC signature matches the secret
//   - exp is present and in the future
//   - iss is "moviespace"
//   - alg is HS256
//
// ALGORITHM CONFUSION:
// A token whose header names "none" or an RSA algorithm must never reach the
// key function. jwt.WithValidMethods rejects it first, and the key function
// still refuses anything that is not HMAC.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: expired", ErrInvalidToken)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}
	if c.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	return c.Subject, nil
}
