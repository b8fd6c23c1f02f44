package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/erp/mall-admin/internal/application/auth"
	"github.com/erp/mall-admin/internal/application/form"
	"github.com/erp/mall-admin/internal/application/listing"
	apppms "github.com/erp/mall-admin/internal/application/pms"
	"github.com/erp/mall-admin/internal/domain/pms"
	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/infrastructure/cache"
	"github.com/erp/mall-admin/internal/infrastructure/httpclient"
	"github.com/erp/mall-admin/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server    *testutil.MallServer
	store     *auth.Store
	notifier  *testutil.RecordingNotifier
	confirmer *testutil.ScriptedConfirmer
	navigator *testutil.MemoryNavigator
	stdin     *bytes.Buffer
	out       *bytes.Buffer
	app       *App
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		server:    testutil.NewMallServer(t, 11),
		store:     auth.NewStore(nil),
		notifier:  &testutil.RecordingNotifier{},
		confirmer: testutil.NewConfirmer(true),
		navigator: testutil.NewNavigator(shared.HomeRoute),
		stdin:     &bytes.Buffer{},
		out:       &bytes.Buffer{},
	}
	qc := cache.New()
	t.Cleanup(func() { _ = qc.Close() })

	expiry := httpclient.NewAuthExpiryHandler(f.store, f.confirmer, f.navigator)
	expiry.OnDiscard(qc.Clear)
	client, err := httpclient.NewClient(httpclient.Config{BaseURL: f.server.URL, Timeout: 5 * time.Second},
		httpclient.WithTokenSource(f.store),
		httpclient.WithNotifier(f.notifier),
		httpclient.WithAuthFailureHandler(expiry))
	require.NoError(t, err)

	f.app = New(Deps{
		Store:     f.store,
		Guard:     auth.NewGuard(f.store),
		Login:     auth.NewLoginService(client, f.store, auth.WithCache(qc)),
		Catalog:   apppms.NewCatalog(apppms.NewAPI(client), qc),
		Cache:     qc,
		Notifier:  f.notifier,
		Confirmer: f.confirmer,
		Navigator: f.navigator,
		In:        f.stdin,
		Out:       f.out,
	})
	return f
}

func (f *fixture) run(args ...string) error {
	return f.app.Run(context.Background(), args)
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, f.run("login", "-u", testutil.AdminUsername, "-p", testutil.AdminPassword))
	f.out.Reset()
}

func (f *fixture) lines() []string {
	return strings.Split(strings.TrimRight(f.out.String(), "\n"), "\n")
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLogin_ThenWhoami(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run("login", "-u", " admin ", "-p", testutil.AdminPassword))
	assert.Equal(t, []string{"Signed in as admin"}, f.notifier.Successes())
	assert.Equal(t, shared.HomeRoute, f.navigator.Current())

	require.NoError(t, f.run("whoami"))
	out := f.out.String()
	assert.Contains(t, out, "username: admin\n")
	assert.Contains(t, out, "nickname: 系统管理员\n")
	assert.Contains(t, out, "roles:    超级管理员\n")
	assert.Contains(t, out, "expires:  ")
}

func TestLogin_MissingFieldsAreReported(t *testing.T) {
	f := newFixture(t)

	err := f.run("login", "-u", "  ")

	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{
		"password: " + auth.MsgPasswordRequired,
		"username: " + auth.MsgUsernameRequired,
	}, f.notifier.Errors())
	assert.Zero(t, f.server.Hits("POST", "/admin/login"))
}

func TestGuard_AnonymousListGoesToLogin(t *testing.T) {
	f := newFixture(t)

	err := f.run("list", "brand", "-page", "2")

	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Equal(t, "/login?from=%2Fpms%2Fbrand%3FpageNum%3D2", f.navigator.Current())
	assert.Zero(t, f.server.Hits("GET", "/brand/list"))
}

func TestLogout_ClearsSession(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.NoError(t, f.run("logout"))

	assert.False(t, f.store.IsAuthenticated())
	assert.ErrorIs(t, f.run("whoami"), ErrLoginRequired)
}

func TestList_RendersPage(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.NoError(t, f.run("list", "brand", "-page", "2", "-size", "5"))

	lines := f.lines()
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "ID"))
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[1]), "6 "))
	assert.Equal(t, "page 2/3, 5 per page, 12 total", lines[6])
	assert.Equal(t, "/pms/brand?pageNum=2", f.navigator.Current())
}

func TestList_ProductsByCategoryPath(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.NoError(t, f.run("list", "product", "-category-path", "22,25"))

	lines := f.lines()
	assert.Equal(t, "page 1/1, 10 per page, 6 total", lines[len(lines)-1])
	req, ok := f.server.LastRequest("GET", "/product/list")
	require.True(t, ok)
	assert.Equal(t, "25", req.Query.Get("productCategoryId"))
}

func TestBatch_AppliesToSelectionAndRefreshes(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.NoError(t, f.run("batch", "brand", "hideBrand", "7", "9", "-size", "12"))

	for _, id := range []int64{7, 9} {
		b, ok := f.server.Brand(id)
		require.True(t, ok)
		assert.Equal(t, 0, b.ShowStatus)
	}
	assert.Equal(t, []string{"Hide brand: 2 record(s)?"}, f.confirmer.Asked())
	assert.Contains(t, f.notifier.Successes(), listing.MsgOperationSucceeded)
	assert.Equal(t, 2, f.server.Hits("GET", "/brand/list"))
	assert.Contains(t, f.out.String(), "12 total")
}

func TestBatch_RowsOffPageAreNotSelected(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	err := f.run("batch", "brand", "showBrand", "11", "-size", "5")

	assert.ErrorIs(t, err, shared.ErrEmptySelection)
	assert.Equal(t, []string{"Record 11 is not on page 1", shared.ErrEmptySelection.Message}, f.notifier.Warnings())
	assert.Zero(t, f.confirmer.Calls())
	assert.Zero(t, f.server.Hits("POST", "/brand/update/showStatus"))
}

func TestBatch_UnknownOperation(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	err := f.run("batch", "brand", "explode", "1")

	assert.ErrorIs(t, err, shared.ErrNoBatchOperation)
	assert.Zero(t, f.confirmer.Calls())
}

func TestBatch_DeclinedChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.confirmer.Answer = false
	before, _ := f.server.Brand(2)

	err := f.run("batch", "brand", "factoryOn", "2")

	assert.ErrorIs(t, err, shared.ErrSubmitCancelled)
	after, _ := f.server.Brand(2)
	assert.Equal(t, before, after)
}

func TestDelete_Attributes(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.NoError(t, f.run("delete", "productAttribute", "71", "-cid", "61"))

	for _, attr := range f.server.Attributes(61) {
		assert.NotEqual(t, int64(71), attr.ID)
	}
	assert.Equal(t, []string{"Delete 1 productAttribute record(s)?"}, f.confirmer.Asked())
	assert.Contains(t, f.notifier.Successes(), listing.MsgDeleteSucceeded)
	assert.Contains(t, f.out.String(), "Size")
}

func TestGet_PrintsYAML(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.NoError(t, f.run("get", "brand", "3"))

	lines := f.lines()
	assert.Equal(t, "id: 3", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "name: "))
	assert.Contains(t, lines, fmt.Sprintf("showStatus: %d", mustBrand(t, f, 3).ShowStatus))
}

func mustBrand(t *testing.T, f *fixture, id int64) pms.Brand {
	t.Helper()
	b, ok := f.server.Brand(id)
	require.True(t, ok)
	return b
}

func TestUpdate_OverlaysFileOnCurrentValues(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	before := mustBrand(t, f, 3)

	require.NoError(t, f.run("update", "brand", "3", "-f", writeFile(t, "name: Renamed Brand\nsort: 42\n")))

	after := mustBrand(t, f, 3)
	assert.Equal(t, "Renamed Brand", after.Name)
	assert.Equal(t, 42, after.Sort)
	assert.Equal(t, before.Logo, after.Logo)
	assert.Equal(t, []string{form.MsgConfirmSubmit}, f.confirmer.Asked())
	assert.Contains(t, f.notifier.Successes(), form.MsgSubmitSucceeded)
}

func TestCreate_FromStdin(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.stdin.WriteString("name: Globex\nlogo: https://example.com/globex.png\n")

	require.NoError(t, f.run("create", "brand", "-f", "-"))

	req, ok := f.server.LastRequest("POST", "/brand/create")
	require.True(t, ok)
	var sent pms.Brand
	require.NoError(t, json.Unmarshal(req.Body, &sent))
	assert.Equal(t, "Globex", sent.Name)
	assert.Equal(t, 1, sent.ShowStatus, "defaults are kept")
}

func TestCreate_ValidationNeverReachesServer(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	err := f.run("create", "brand", "-f", writeFile(t, "name: X\n"))

	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, f.notifier.Errors(), form.MsgValidationFailed)
	assert.Contains(t, f.notifier.Errors(), "logo: This field is required")
	assert.Contains(t, f.notifier.Errors(), "name: Must be at least 2 characters")
	assert.Zero(t, f.server.Hits("POST", "/brand/create"))
	assert.Zero(t, f.confirmer.Calls())
}

func TestCreate_CategoryLevelFromParent(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.NoError(t, f.run("create", "productCategory", "-parent", "21", "-f", writeFile(t, "name: Hoodies\n")))

	req, ok := f.server.LastRequest("POST", "/productCategory/create")
	require.True(t, ok)
	var sent pms.ProductCategory
	require.NoError(t, json.Unmarshal(req.Body, &sent))
	assert.Equal(t, int64(21), sent.ParentID)
	assert.Equal(t, 1, sent.Level)

	err := f.run("create", "productCategory", "-parent", "23", "-f", writeFile(t, "name: Too deep\n"))
	assert.ErrorIs(t, err, pms.ErrInvalidParent)
	assert.Equal(t, 1, f.server.Hits("POST", "/productCategory/create"))
}

func TestUpdate_AttrCategoryFromList(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.NoError(t, f.run("update", "productAttrCategory", "62", "-f", writeFile(t, "name: Smartphone\n")))

	req, ok := f.server.LastRequest("POST", "/productAttribute/category/update/62")
	require.True(t, ok)
	var sent pms.ProductAttrCategory
	require.NoError(t, json.Unmarshal(req.Body, &sent))
	assert.Equal(t, "Smartphone", sent.Name)
	assert.Equal(t, 1, f.server.Hits("GET", "/productAttribute/category/list/withAttr"))
}

func TestOps_ListsBatchOperations(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.NoError(t, f.run("ops", "product"))

	out := f.out.String()
	assert.Contains(t, out, "publish")
	assert.Contains(t, out, "Put on shelf")
	assert.Zero(t, f.server.Hits("GET", "/product/list"))
}

func TestRun_Errors(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	assert.ErrorIs(t, f.run(), ErrUsage)
	assert.ErrorIs(t, f.run("explode"), ErrUsage)
	assert.ErrorIs(t, f.run("list"), ErrUsage)
	assert.ErrorIs(t, f.run("list", "order"), shared.ErrUnknownEntity)
	assert.ErrorIs(t, f.run("get", "brand"), ErrUsage)
	assert.ErrorIs(t, f.run("get", "brand", "x"), ErrUsage)
	assert.ErrorIs(t, f.run("create", "brand"), ErrUsage)
	assert.ErrorIs(t, f.run("list", "brand", "-page", "two"), ErrUsage)
}

func TestSessionExpiryDuringList(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.server.ExpireTokens()

	ctx, cancel := context.WithTimeout(context.Background(), testutil.WaitTimeout)
	defer cancel()
	err := f.app.Run(ctx, []string{"list", "brand"})

	require.NoError(t, ctx.Err(), "list must settle once the session is discarded")
	assert.True(t, httpclient.IsAuthFailure(err))
	assert.ErrorIs(t, err, cache.ErrCleared)
	assert.False(t, f.store.IsAuthenticated())
	assert.Equal(t, []string{httpclient.MsgSessionExpired}, f.confirmer.Asked())
	assert.True(t, strings.HasPrefix(f.navigator.Current(), shared.LoginRoute+"?from="))
}

func TestParseArgs_Interspersed(t *testing.T) {
	var tgt target
	fs := newFlagSet("batch")
	tgt.register(fs)

	pos, err := parseArgs(fs, []string{"brand", "-page", "2", "showBrand", "7", "-size", "5", "9"})

	require.NoError(t, err)
	assert.Equal(t, []string{"brand", "showBrand", "7", "9"}, pos)
	assert.Equal(t, shared.PageQuery{PageNum: 2, PageSize: 5}, tgt.pageQuery())
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"7,9", " 11 ", ""})
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 9, 11}, ids)

	_, err = parseIDs([]string{"0"})
	assert.ErrorIs(t, err, ErrUsage)
}

func TestDocument_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeYAML(&buf, pms.Brand{ID: 4, Name: "1001", Logo: "l.png", ShowStatus: 1}))

	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "id: 4", lines[0])
	assert.Equal(t, `name: "1001"`, lines[1])

	var decoded pms.Brand
	require.NoError(t, decodeInto(buf.Bytes(), &decoded))
	assert.Equal(t, pms.Brand{ID: 4, Name: "1001", Logo: "l.png", ShowStatus: 1}, decoded)

	b := pms.Brand{Sort: 9}
	require.NoError(t, decodeInto([]byte("name: '1001'\nshowStatus: 1\n"), &b))
	assert.Equal(t, "1001", b.Name)
	assert.Equal(t, 9, b.Sort, "missing keys keep their values")

	require.NoError(t, decodeInto(nil, &b))
	assert.ErrorIs(t, decodeInto([]byte("name: [unclosed"), &b), shared.ErrInvalidInput)
}
