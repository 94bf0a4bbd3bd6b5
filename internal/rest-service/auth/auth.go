// Package auth turns bearer tokens into the principal every operation runs as.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
	ErrTokenExpired = errors.New("bearer token expired")
	ErrWeakKey      = errors.New("signing key must be at least 32 bytes")
)

const MinKeyLength = 32

// Principal is the identity a request acts as. It is trusted as issued.
type Principal struct {
	UserID       uint
	CompanyID    uint
	DepartmentID uint
	PersonalID   string
	UserName     string
	// Storage is the user quota in KB.
	Storage    int64
	Permission bool
	Admin      bool
	ExpiresAt  time.Time
}

// CanGrant reports whether the principal may manage directory permissions.
func (p *Principal) CanGrant() bool {
	return p.Admin || p.Permission
}

type Claims struct {
	CompanyID    uint   `json:"company_id"`
	DepartmentID uint   `json:"department_id"`
	PersonalID   string `json:"personal_id"`
	UserName     string `json:"user_name"`
	Storage      int64  `json:"storage"`
	Permission   bool   `json:"permission"`
	Admin        bool   `json:"admin"`
	jwt.RegisteredClaims
}

type Tokens struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(signingKey, issuer string, ttl time.Duration) (*Tokens, error) {
	if len(signingKey) < MinKeyLength {
		return nil, ErrWeakKey
	}
	return &Tokens{key: []byte(signingKey), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for p valid for the configured ttl.
func (t *Tokens) Issue(p Principal) (string, error) {
	now := t.now()
	claims := &Claims{
		CompanyID:    p.CompanyID,
		DepartmentID: p.DepartmentID,
		PersonalID:   p.PersonalID,
		UserName:     p.UserName,
		Storage:      p.Storage,
		Permission:   p.Permission,
		Admin:        p.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(p.UserID), 10),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (t *Tokens) Verify(token string) (*Principal, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return t.key, nil }, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 0)
	if err != nil || userID == 0 || claims.CompanyID == 0 {
		return nil, fmt.Errorf("%w: no user or company", ErrInvalidToken)
	}
	return &Principal{
		UserID:       uint(userID),
		CompanyID:    claims.CompanyID,
		DepartmentID: claims.DepartmentID,
		PersonalID:   claims.PersonalID,
		UserName:     claims.UserName,
		Storage:      claims.Storage,
		Permission:   claims.Permission,
		Admin:        claims.Admin,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}
