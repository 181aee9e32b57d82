package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService produces and validates the stateless session tokens. The
// wire format is a compact JWT: three dot-separated base64url segments,
// HMAC-SHA-256 signed with the process-wide secret.
type TokenService interface {
	Issue(identity Identity) (string, error)
	Validate(raw string) (*SessionClaims, error)
	TTL() time.Duration
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
	logger     Logger
}

// TokenOption customizes the token service
type TokenOption func(*TokenServiceImpl)

// WithTokenClock injects a clock, used by tests to cross the expiry
// boundary without sleeping
func WithTokenClock(now func() time.Time) TokenOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger overrides the fallback logger
func WithTokenLogger(logger Logger) TokenOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a TokenService. A non-positive ttl falls back to
// DefaultTokenTTL (7 days).
func NewTokenService(signingKey []byte, ttl time.Duration, opts ...TokenOption) *TokenServiceImpl {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	ts := &TokenServiceImpl{
		signingKey: signingKey,
		ttl:        ttl,
		now:        time.Now,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// TTL returns the configured token lifetime; cookies reuse it as Max-Age.
func (ts *TokenServiceImpl) TTL() time.Duration {
	return ts.ttl
}

// Issue signs a token for the identity with iat=now and exp=now+ttl
func (ts *TokenServiceImpl) Issue(identity Identity) (string, error) {
	if identity == nil || identity.ID() == "" {
		return "", ErrNoEmptyString
	}

	now := ts.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
		Username: identity.Username(),
		UserRole: identity.Role(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", wrapInternal(err, "failed to sign session token")
	}
	return signed, nil
}

// Validate verifies signature then payload then expiry. Every failure
// collapses into ErrTokenInvalid so callers cannot probe which check
// rejected the token.
func (ts *TokenServiceImpl) Validate(raw string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, jwt.WithTimeFunc(ts.now))

	if err != nil {
		ts.logger.Debug("token rejected", "error", err)
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || !claims.wellFormed() {
		ts.logger.Debug("token payload rejected")
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
