package auth

import (
	"context"
	"strings"
	"time"

	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Decision is the outcome of a route check
type Decision struct {
	Allowed  bool
	Redirect string
}

// Guard decides whether a console location may be entered.
// Anonymous operators are sent to the login route, which keeps the
// requested location so that login can resume there.
type Guard struct {
	store  *Store
	public map[string]bool
	now    func() time.Time
	logger *zap.Logger
}

// GuardOption configures a Guard
type GuardOption func(*Guard)

// WithGuardLogger sets the logger
func WithGuardLogger(l *zap.Logger) GuardOption {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

// WithPublicRoutes adds routes that never need a session
func WithPublicRoutes(routes ...string) GuardOption {
	return func(g *Guard) {
		for _, r := range routes {
			g.public[r] = true
		}
	}
}

// NewGuard creates a guard over store. The login and not-found routes are
// always public.
func NewGuard(store *Store, opts ...GuardOption) *Guard {
	g := &Guard{
		store: store,
		public: map[string]bool{
			shared.LoginRoute:    true,
			shared.NotFoundRoute: true,
		},
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check decides whether location may be entered. A token whose expiry has
// passed counts as absent, and the session is cleared before redirecting.
func (g *Guard) Check(ctx context.Context, location string) Decision {
	if g.public[shared.RoutePath(location)] {
		return Decision{Allowed: true}
	}

	token := g.store.Token()
	if token != "" {
		if exp, ok := TokenExpiry(token); ok && !g.now().Before(exp) {
			g.logger.Info("Session token expired", zap.Time("expired_at", exp))
			if _, err := g.store.Clear(ctx); err != nil {
				g.logger.Warn("Failed to remove expired session", zap.Error(err))
			}
			token = ""
		}
	}
	if token == "" {
		return Decision{Redirect: shared.LoginLocation(location)}
	}
	return Decision{Allowed: true}
}

// ResumeTarget returns where to go after logging in from loginLocation
func (g *Guard) ResumeTarget(loginLocation string) string {
	return shared.ResumeTarget(loginLocation)
}

// TokenExpiry reads the exp claim of a session token without verifying its
// signature. Tokens that are not JWTs, or carry no exp, report false.
func TokenExpiry(token string) (time.Time, bool) {
	raw := token
	if i := strings.LastIndexByte(token, ' '); i >= 0 {
		raw = token[i+1:]
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
