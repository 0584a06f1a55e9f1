package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"core_bank/internal/domain"
)

// DefaultTokenTTL is the validity window of an issued credential.
const DefaultTokenTTL = 2 * time.Hour

// Claims carried by a credential
type Claims struct {
	UserID               uint        `json:"user_id"`            // Subject id, mirrored in "sub"
	Role                 domain.Role `json:"role"`               // Role at issue time
	Username             string      `json:"username,omitempty"` // Optional username
	jwt.RegisteredClaims             // Standard JWT claims (sub, iat, exp)
}

// Tokens issues and verifies HS256 credentials with one process-wide secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens builds a Tokens. A non-positive ttl falls back to DefaultTokenTTL.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of t reading time from now.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	cp := *t
	cp.now = now
	return &cp
}

// Issue signs a credential for the given subject, expiring ttl after now.
func (t *Tokens) Issue(userID uint, role domain.Role, username string) (string, error) {
	issued := t.now()
	claims := Claims{
		UserID:   userID,
		Role:     role,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", domain.Internal(err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded identity.
// Failures are domain.ErrTokenExpired or domain.ErrTokenInvalid.
func (t *Tokens) Verify(tokenStr string) (*domain.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.Wrap(domain.ErrTokenExpired, err)
	case err != nil:
		return nil, domain.Wrap(domain.ErrTokenInvalid, err)
	case !token.Valid || claims.UserID == 0 || claims.Role == "":
		return nil, domain.ErrTokenInvalid
	}
	return &domain.Identity{UserID: claims.UserID, Role: claims.Role, Username: claims.Username}, nil
}

// TTL reports the validity window of issued credentials.
func (t *Tokens) TTL() time.Duration { return t.ttl }
