package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carebridge/telecare/internal/domain"
)

func TestResolveRoundTrip(t *testing.T) {
	secret := "test-secret"
	r := NewJWTResolver(secret)

	for _, role := range []domain.Role{domain.RolePatient, domain.RoleDoctor, domain.RoleAdmin} {
		ident := &domain.Identity{ID: "u-" + domain.IdentityID(role), Role: role}
		token, err := GenerateToken(ident, []byte(secret), time.Hour)
		require.NoError(t, err)

		got, err := r.Resolve(context.Background(), token)
		require.NoError(t, err)
		require.Equal(t, ident.ID, got.ID)
		require.Equal(t, role, got.Role)
	}
}

func TestResolveRejects(t *testing.T) {
	secret := "test-secret"
	r := NewJWTResolver(secret)
	ident := &domain.Identity{ID: "u1", Role: domain.RolePatient}

	t.Run("empty credential", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "")
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := GenerateToken(ident, []byte("other-secret"), time.Hour)
		require.NoError(t, err)
		_, err = r.Resolve(context.Background(), token)
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := GenerateToken(ident, []byte(secret), -time.Minute)
		require.NoError(t, err)
		_, err = r.Resolve(context.Background(), token)
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := GenerateToken(&domain.Identity{ID: "u1", Role: "superuser"}, []byte(secret), time.Hour)
		require.NoError(t, err)
		_, err = r.Resolve(context.Background(), token)
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("missing subject", func(t *testing.T) {
		token, err := GenerateToken(&domain.Identity{Role: domain.RoleDoctor}, []byte(secret), time.Hour)
		require.NoError(t, err)
		_, err = r.Resolve(context.Background(), token)
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
	})
}
