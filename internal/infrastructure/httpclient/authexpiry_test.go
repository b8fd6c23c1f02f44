package httpclient

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/erp/mall-admin/internal/domain/pms"
	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/testutil"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthExpiry_ConcurrentFailuresClearOnce(t *testing.T) {
	p := newPipeline(t)
	var discarded atomic.Int32
	p.expiry.OnDiscard(func() { discarded.Add(1) })
	p.server.ExpireTokens()

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = Send[shared.PageResult[pms.Brand]](context.Background(), p.client, Get("/brand/list", nil))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.True(t, IsAuthFailure(err))
	}
	assert.Equal(t, 1, p.session.Clears())
	assert.Equal(t, 1, p.confirmer.Calls())
	assert.Equal(t, []string{MsgSessionExpired}, p.confirmer.Asked())
	assert.Equal(t, int32(1), discarded.Load())
	assert.False(t, p.session.IsAuthenticated())

	assert.Equal(t, "/login?from=%2Fpms%2Fbrand%3FpageNum%3D2", p.navigator.Current())
	logins := 0
	for _, loc := range p.navigator.History() {
		if strings.HasPrefix(loc, shared.LoginRoute) {
			logins++
		}
	}
	assert.Equal(t, 1, logins)
	expected := `
# HELP mall_admin_auth_expiry_total Times the session-expired flow cleared the session
# TYPE mall_admin_auth_expiry_total counter
mall_admin_auth_expiry_total 1
`
	assert.NoError(t, promtestutil.GatherAndCompare(p.metrics.Registry(), strings.NewReader(expected),
		"mall_admin_auth_expiry_total"))
}

func TestAuthExpiry_OverlappingTriggersCollapse(t *testing.T) {
	p := newPipeline(t)
	p.confirmer.Gate = make(chan struct{})
	p.server.ExpireTokens()

	first := make(chan error, 1)
	go func() {
		_, err := Send[pms.Brand](context.Background(), p.client, Get("/brand/1", nil))
		first <- err
	}()
	require.Eventually(t, func() bool { return p.confirmer.Calls() == 1 }, testutil.WaitTimeout, testutil.PollInterval)

	// A second 401 while the confirmation is still open changes nothing.
	_, err := Send[pms.Brand](context.Background(), p.client, Get("/brand/2", nil))
	assert.True(t, IsAuthFailure(err))
	assert.Equal(t, 1, p.confirmer.Calls())
	assert.True(t, p.session.IsAuthenticated())

	close(p.confirmer.Gate)
	assert.True(t, IsAuthFailure(<-first))
	assert.Equal(t, 1, p.session.Clears())
	assert.Equal(t, "/login?from=%2Fpms%2Fbrand%3FpageNum%3D2", p.navigator.Current())
}

func TestAuthExpiry_DeclinedKeepsSession(t *testing.T) {
	p := newPipeline(t)
	p.confirmer.Answer = false
	var discarded atomic.Int32
	p.expiry.OnDiscard(func() { discarded.Add(1) })
	p.server.FailNext(http.MethodGet, "/brand/1", http.StatusForbidden, "没有相关权限")

	_, err := Send[pms.Brand](context.Background(), p.client, Get("/brand/1", nil))

	assert.True(t, IsAuthFailure(err))
	assert.Equal(t, []string{"没有相关权限"}, p.notifier.Errors())
	assert.Equal(t, 1, p.confirmer.Calls())
	assert.True(t, p.session.IsAuthenticated())
	assert.Zero(t, p.session.Clears())
	assert.Zero(t, discarded.Load())
	assert.Equal(t, []string{"/pms/brand?pageNum=2"}, p.navigator.History())
}

func TestAuthExpiry_AnonymousSessionIsNoop(t *testing.T) {
	session := &fakeSession{}
	confirmer := testutil.NewConfirmer(true)
	navigator := testutil.NewNavigator("/login")
	h := NewAuthExpiryHandler(session, confirmer, navigator)

	assert.False(t, h.Handle(context.Background()))
	assert.Zero(t, confirmer.Calls())
	assert.Equal(t, []string{"/login"}, navigator.History())
}

func TestAuthExpiry_BareHTTPStatus(t *testing.T) {
	p := newPipeline(t)
	p.server.ReplyRawNext(http.MethodPost, "/brand/create", http.StatusUnauthorized, "")

	err := Do(context.Background(), p.client, PostJSON("/brand/create", pms.DefaultBrand()))

	var be *BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusUnauthorized, be.Code)
	assert.Equal(t, 1, p.session.Clears())
	assert.True(t, strings.HasPrefix(p.navigator.Current(), shared.LoginRoute+"?from="))
}
