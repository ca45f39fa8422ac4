package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-gateway/middleware/security/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Claims é o payload dos tokens aceitos. O sub é o id do usuário.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTIdentityProvider valida bearer tokens HS256.
type JWTIdentityProvider struct {
	secret []byte
	issuer string
	leeway time.Duration
}

type JWTOption func(*JWTIdentityProvider)

func WithIssuer(iss string) JWTOption {
	return func(p *JWTIdentityProvider) { p.issuer = iss }
}

func WithLeeway(d time.Duration) JWTOption {
	return func(p *JWTIdentityProvider) { p.leeway = d }
}

func NewJWTIdentityProvider(secret string, opts ...JWTOption) *JWTIdentityProvider {
	p := &JWTIdentityProvider{secret: []byte(secret)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *JWTIdentityProvider) Verify(_ context.Context, token string) (*domain.Principal, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(p.issuer))
	}
	if p.leeway > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(p.leeway))
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", domain.ErrInvalidToken)
	}

	return &domain.Principal{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
		Claims: map[string]any{
			"iss":   claims.Issuer,
			"email": claims.Email,
			"role":  claims.Role,
		},
	}, nil
}

// Issue assina um token para subject. Usado por ferramentas e testes.
func (p *JWTIdentityProvider) Issue(subject, email, role string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	now := time.Now()
	claims := &Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
