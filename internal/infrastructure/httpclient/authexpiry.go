package httpclient

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// MsgSessionExpired is the confirmation shown when the session is rejected
const MsgSessionExpired = "Your session has expired. Please log in again."

// SessionClearer is the part of the session store the flow needs
type SessionClearer interface {
	IsAuthenticated() bool
	Clear(ctx context.Context) (bool, error)
}

// AuthExpiryHandler runs the session-expired flow: confirm, clear the
// session, discard application state, then navigate to login keeping the
// current location. Concurrent triggers collapse into one run, and a trigger
// on an already anonymous session does nothing.
type AuthExpiryHandler struct {
	session   SessionClearer
	confirmer shared.Confirmer
	navigator shared.Navigator
	logger    *zap.Logger
	metrics   *telemetry.Metrics

	running atomic.Bool

	mu      sync.Mutex
	discard []func()
}

var _ AuthFailureHandler = (*AuthExpiryHandler)(nil)

// AuthExpiryOption configures an AuthExpiryHandler
type AuthExpiryOption func(*AuthExpiryHandler)

// WithExpiryLogger sets the logger
func WithExpiryLogger(l *zap.Logger) AuthExpiryOption {
	return func(h *AuthExpiryHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithExpiryMetrics counts completed flows
func WithExpiryMetrics(m *telemetry.Metrics) AuthExpiryOption {
	return func(h *AuthExpiryHandler) { h.metrics = m }
}

// NewAuthExpiryHandler creates the flow
func NewAuthExpiryHandler(session SessionClearer, confirmer shared.Confirmer, navigator shared.Navigator, opts ...AuthExpiryOption) *AuthExpiryHandler {
	h := &AuthExpiryHandler{
		session:   session,
		confirmer: confirmer,
		navigator: navigator,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnDiscard registers application state to drop when the session expires
func (h *AuthExpiryHandler) OnDiscard(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.discard = append(h.discard, fn)
}

// Handle implements AuthFailureHandler. It reports whether this call cleared
// the session.
func (h *AuthExpiryHandler) Handle(ctx context.Context) bool {
	if !h.running.CompareAndSwap(false, true) {
		h.logger.Debug("Auth expiry flow already running")
		return false
	}
	defer h.running.Store(false)
	if !h.session.IsAuthenticated() {
		return false
	}

	from := h.navigator.Current()
	if !h.confirmer.Confirm(ctx, MsgSessionExpired) {
		h.logger.Info("Operator kept the expired session")
		return false
	}

	cleared, err := h.session.Clear(ctx)
	if err != nil {
		h.logger.Warn("Failed to remove persisted session", zap.Error(err))
	}
	if !cleared {
		return false
	}

	h.mu.Lock()
	hooks := append([]func(){}, h.discard...)
	h.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}

	h.metrics.RecordAuthExpiry()
	h.logger.Info("Session expired, redirecting to login", zap.String("from", from))
	h.navigator.Navigate(shared.LoginLocation(from))
	return true
}
