// Package auth provides optional bearer-token protection for the API.
//
// Tokens are JWTs signed with either a shared HS256 secret or an RS256 key
// pair whose public half is configured as PEM. Scopes gate route groups:
// "read" for polling, "control" for anything that moves the arm, "telemetry"
// for the event stream.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arm-control/acc/internal/config"
)

// Scope names.
const (
	ScopeRead      = "read"
	ScopeControl   = "control"
	ScopeTelemetry = "telemetry"
)

// Claims is the accepted token payload.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// HasScope reports whether the token grants the named scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingScope = errors.New("missing scope")
)

// Verifier validates bearer tokens against the configured algorithm and key.
type Verifier struct {
	alg    string
	secret []byte
	pub    *rsa.PublicKey
}

// NewVerifier builds a verifier from the auth configuration. Returns nil when
// auth is disabled; a nil Verifier admits every request.
func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Algorithm {
	case "HS256":
		if cfg.SecretKey == "" {
			return nil, errors.New("auth: HS256 requires a secret key")
		}
		return &Verifier{alg: "HS256", secret: []byte(cfg.SecretKey)}, nil
	case "RS256":
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("auth: parse RS256 public key: %w", err)
		}
		return &Verifier{alg: "RS256", pub: pub}, nil
	default:
		return nil, fmt.Errorf("auth: unsupported algorithm %q", cfg.Algorithm)
	}
}

// Verify parses and validates a compact JWT and returns its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != v.alg {
			return nil, fmt.Errorf("%w: unexpected signing method %s", ErrInvalidToken, t.Method.Alg())
		}
		if v.alg == "HS256" {
			return v.secret, nil
		}
		return v.pub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
