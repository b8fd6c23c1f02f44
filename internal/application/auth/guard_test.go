package auth

import (
	"context"
	"testing"
	"time"

	"github.com/erp/mall-admin/internal/domain/session"
	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("guard-test"))
	require.NoError(t, err)
	return signed
}

func authenticatedStore(t *testing.T, token string) *Store {
	t.Helper()
	store := NewStore(nil)
	require.NoError(t, store.Replace(context.Background(), session.Session{Token: token}))
	return store
}

func TestGuard_AnonymousRedirectsWithFrom(t *testing.T) {
	guard := NewGuard(NewStore(nil))

	d := guard.Check(context.Background(), "/pms/product?pageNum=3")

	assert.False(t, d.Allowed)
	assert.Equal(t, "/login?from=%2Fpms%2Fproduct%3FpageNum%3D3", d.Redirect)
	assert.Equal(t, "/pms/product?pageNum=3", guard.ResumeTarget(d.Redirect))
}

func TestGuard_PublicRoutes(t *testing.T) {
	guard := NewGuard(NewStore(nil), WithPublicRoutes("/about"))

	for _, loc := range []string{shared.LoginRoute, "/login?from=%2Fhome", shared.NotFoundRoute, "/about"} {
		assert.True(t, guard.Check(context.Background(), loc).Allowed, loc)
	}
}

func TestGuard_AuthenticatedAllowed(t *testing.T) {
	store := authenticatedStore(t, "Bearer "+signedToken(t, time.Now().Add(time.Hour)))
	guard := NewGuard(store)

	d := guard.Check(context.Background(), "/pms/brand")

	assert.True(t, d.Allowed)
	assert.Empty(t, d.Redirect)
}

func TestGuard_ExpiredTokenClearsSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := authenticatedStore(t, "Bearer "+signedToken(t, now.Add(-time.Minute)))
	guard := NewGuard(store, WithClock(func() time.Time { return now }))

	d := guard.Check(context.Background(), "/pms/brand")

	assert.False(t, d.Allowed)
	assert.Equal(t, "/login?from=%2Fpms%2Fbrand", d.Redirect)
	assert.False(t, store.IsAuthenticated())
}

func TestGuard_OpaqueTokenTrusted(t *testing.T) {
	guard := NewGuard(authenticatedStore(t, "not-a-jwt"))

	assert.True(t, guard.Check(context.Background(), "/home").Allowed)
}

func TestGuard_ResumeTargetDefaultsHome(t *testing.T) {
	guard := NewGuard(NewStore(nil))

	assert.Equal(t, shared.HomeRoute, guard.ResumeTarget(shared.LoginRoute))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	got, ok := TokenExpiry("Bearer " + signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	got, ok = TokenExpiry(signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry("garbage")
	assert.False(t, ok)
}
