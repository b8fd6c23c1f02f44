package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/infrastructure/httpclient"
	"github.com/erp/mall-admin/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCache struct{ clears int }

func (c *countingCache) Clear() { c.clears++ }

type loginFixture struct {
	server   *testutil.MallServer
	store    *Store
	cache    *countingCache
	notifier *testutil.RecordingNotifier
	service  *LoginService
}

func newLoginFixture(t *testing.T) *loginFixture {
	t.Helper()
	f := &loginFixture{
		server:   testutil.NewMallServer(t, 7),
		store:    NewStore(nil),
		cache:    &countingCache{},
		notifier: &testutil.RecordingNotifier{},
	}
	client, err := httpclient.NewClient(httpclient.Config{BaseURL: f.server.URL, Timeout: 5 * time.Second},
		httpclient.WithTokenSource(f.store),
		httpclient.WithNotifier(f.notifier))
	require.NoError(t, err)
	f.service = NewLoginService(client, f.store, WithCache(f.cache))
	return f
}

func TestLogin_StoresTokenHeadAndProfile(t *testing.T) {
	f := newLoginFixture(t)

	profile, err := f.service.Login(context.Background(), LoginInput{
		Username: testutil.AdminUsername,
		Password: testutil.AdminPassword,
	})
	require.NoError(t, err)

	require.NotNil(t, profile)
	assert.Equal(t, testutil.AdminUsername, profile.Username)
	assert.Equal(t, StateAuthenticated, f.store.State())
	assert.Regexp(t, `^Bearer [\w-]+\.[\w-]+\.[\w-]+$`, f.store.Token())
	assert.Equal(t, testutil.AdminUsername, f.store.User().Username)
	assert.Equal(t, 1, f.cache.clears)

	req, ok := f.server.LastRequest(http.MethodGet, "/admin/info")
	require.True(t, ok)
	assert.Equal(t, f.store.Token(), req.Header.Get("Authorization"))
}

func TestLogin_TokenWithoutHead(t *testing.T) {
	f := newLoginFixture(t)
	f.server.ReplyNext(http.MethodPost, "/admin/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, shared.OK(LoginResult{Token: "opaque"}))
	})

	_, err := f.service.Login(context.Background(), LoginInput{Username: "admin", Password: "x"})
	require.NoError(t, err)

	assert.Equal(t, "opaque", f.store.Token())
}

func TestLogin_EmptyFieldsNeverReachServer(t *testing.T) {
	f := newLoginFixture(t)

	_, err := f.service.Login(context.Background(), LoginInput{Username: "  "})

	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, MsgUsernameRequired, verr.Field("username"))
	assert.Equal(t, MsgPasswordRequired, verr.Field("password"))
	assert.Zero(t, f.server.TotalHits())
	assert.False(t, f.store.IsAuthenticated())
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newLoginFixture(t)

	_, err := f.service.Login(context.Background(), LoginInput{Username: "admin", Password: "wrong"})

	var be *httpclient.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusNotFound, be.Code)
	assert.Equal(t, []string{"用户名或密码错误"}, f.notifier.Errors())
	assert.False(t, f.store.IsAuthenticated())
	assert.Zero(t, f.cache.clears)
}

func TestLogin_ProfileFailureKeepsSession(t *testing.T) {
	f := newLoginFixture(t)
	f.server.FailNext(http.MethodGet, "/admin/info", http.StatusInternalServerError, "服务异常")

	profile, err := f.service.Login(context.Background(), LoginInput{
		Username: testutil.AdminUsername,
		Password: testutil.AdminPassword,
	})

	require.NoError(t, err)
	assert.Nil(t, profile)
	assert.True(t, f.store.IsAuthenticated())
	assert.Nil(t, f.store.User())
}

func TestLogout(t *testing.T) {
	f := newLoginFixture(t)
	_, err := f.service.Login(context.Background(), LoginInput{
		Username: testutil.AdminUsername,
		Password: testutil.AdminPassword,
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(context.Background()))

	assert.Equal(t, StateAnonymous, f.store.State())
	assert.Empty(t, f.store.Token())
	assert.Nil(t, f.store.User())
	assert.Equal(t, 2, f.cache.clears)
}
