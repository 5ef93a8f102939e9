// Package auth resolves opaque credentials issued by the platform's account
// service. The signaling core only ever sees the resolved identity.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carebridge/telecare/internal/core"
	"github.com/carebridge/telecare/internal/domain"
)

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTResolver implements core.Authenticator over HMAC-signed tokens.
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

func (r *JWTResolver) Resolve(ctx context.Context, credential string) (*domain.Identity, error) {
	if credential == "" {
		return nil, domain.ErrUnauthenticated
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, domain.ErrUnauthenticated
	}
	role := domain.Role(claims.Role)
	switch role {
	case domain.RolePatient, domain.RoleDoctor, domain.RoleAdmin:
	default:
		return nil, domain.ErrUnauthenticated
	}
	if claims.Subject == "" {
		return nil, domain.ErrUnauthenticated
	}
	return &domain.Identity{ID: domain.IdentityID(claims.Subject), Role: role}, nil
}

// GenerateToken mints a credential; used by tests and the dev seeding tool.
func GenerateToken(identity *domain.Identity, secret []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(identity.ID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		Role: string(identity.Role),
	})
	return token.SignedString(secret)
}

var _ core.Authenticator = (*JWTResolver)(nil)
