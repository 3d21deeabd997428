package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind separates the two credentials issued by Issuer: long-lived session cookies and short-lived
// bearer credentials presented to the idea endpoint.
type Kind string

// Issuer signs and verifies HS256 JWTs.
type Issuer struct {
	secret []byte
}

const (
	// KindSession marks a token stored in the session cookie.
	KindSession Kind = "session"
	// KindAPI marks a bearer credential for the idea endpoint.
	KindAPI Kind = "api"

	kindClaim = "typ"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrWrongKind    = errors.New("wrong token kind")
)

// NewIssuer creates an Issuer with the given signing secret.
func NewIssuer(secret []byte) Issuer {
	return Issuer{secret: secret}
}

// Generate creates a token of the given kind for subject, expiring after ttl.
func (i Issuer) Generate(subject string, kind Kind, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     subject,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
		kindClaim: string(kind),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return s, nil
}

// Verify validates the token, checks it is of the expected kind and returns its subject.
func (i Issuer) Verify(tokenString string, kind Kind) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	if k, _ := claims[kindClaim].(string); Kind(k) != kind {
		return "", fmt.Errorf("%w: want %s, got %q", ErrWrongKind, kind, k)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}
