package form

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/mall-admin/internal/domain/pms"
	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCache struct {
	mu     sync.Mutex
	scopes [][]string
}

func (r *recordingCache) Invalidate(scope ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes = append(r.scopes, scope)
	return 1
}

// brandAPI is an in-memory brand endpoint family
type brandAPI struct {
	brands  map[int64]pms.Brand
	created []pms.Brand
	updated map[int64]pms.Brand
	failing error
}

func newBrandAPI() *brandAPI {
	return &brandAPI{
		brands: map[int64]pms.Brand{
			7: {ID: 7, Name: "Acme", Logo: "acme.png", ShowStatus: 1},
		},
		updated: make(map[int64]pms.Brand),
	}
}

func (a *brandAPI) calls() int { return len(a.created) + len(a.updated) }

func (a *brandAPI) binding() Binding[pms.Brand] {
	return Binding[pms.Brand]{
		Name:     "brand",
		Scope:    pms.ScopeBrands,
		Defaults: pms.DefaultBrand,
		Get: func(_ context.Context, id int64) (pms.Brand, error) {
			b, ok := a.brands[id]
			if !ok {
				return pms.Brand{}, errors.New("品牌不存在")
			}
			return b, nil
		},
		Create: func(_ context.Context, b pms.Brand) error {
			if a.failing != nil {
				return a.failing
			}
			a.created = append(a.created, b)
			return nil
		},
		Update: func(_ context.Context, id int64, b pms.Brand) error {
			if a.failing != nil {
				return a.failing
			}
			a.updated[id] = b
			return nil
		},
	}
}

type formFixture struct {
	api       *brandAPI
	cache     *recordingCache
	notifier  *testutil.RecordingNotifier
	confirmer *testutil.ScriptedConfirmer
	navigator *testutil.MemoryNavigator
}

func newFormFixture() *formFixture {
	return &formFixture{
		api:       newBrandAPI(),
		cache:     &recordingCache{},
		notifier:  &testutil.RecordingNotifier{},
		confirmer: testutil.NewConfirmer(true),
		navigator: testutil.NewNavigator("/pms/brand"),
	}
}

func (f *formFixture) collaborators() Collaborators {
	return Collaborators{
		Cache:     f.cache,
		Notifier:  f.notifier,
		Confirmer: f.confirmer,
		Navigator: f.navigator,
	}
}

func TestCreate_SubmitResetsToDefaults(t *testing.T) {
	f := newFormFixture()
	c := NewCreate(f.api.binding(), f.collaborators())
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))
	assert.Equal(t, pms.DefaultBrand(), c.Values())

	b := c.Values()
	b.Name = "Globex"
	b.Logo = "globex.png"
	c.SetValues(b)
	require.NoError(t, c.Submit(ctx))

	require.Len(t, f.api.created, 1)
	assert.Equal(t, "Globex", f.api.created[0].Name)
	assert.Equal(t, pms.DefaultBrand(), c.Values())
	assert.Equal(t, [][]string{{pms.ScopeBrands}}, f.cache.scopes)
	assert.Equal(t, []string{MsgConfirmSubmit}, f.confirmer.Asked())
	assert.Equal(t, []string{MsgSubmitSucceeded}, f.notifier.Successes())
	assert.Equal(t, []string{"/pms/brand"}, f.navigator.History())
}

func TestCreate_BackAfterCreate(t *testing.T) {
	f := newFormFixture()
	f.navigator.Navigate("/pms/brand/add")
	c := NewCreate(f.api.binding(), f.collaborators(), WithBackAfterCreate())
	require.NoError(t, c.Load(context.Background()))
	c.SetValues(pms.Brand{Name: "Initech", Logo: "i.png"})

	require.NoError(t, c.Submit(context.Background()))

	assert.Equal(t, "/pms/brand", f.navigator.Current())
}

func TestEdit_LoadSubmitAndGoBack(t *testing.T) {
	f := newFormFixture()
	f.navigator.Navigate("/pms/brand/update?id=7")
	c := NewEdit(f.api.binding(), 7, f.collaborators())
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))
	assert.Equal(t, "Acme", c.Values().Name)
	assert.Equal(t, ModeEdit, c.Mode())

	b := c.Values()
	b.ShowStatus = 0
	c.SetValues(b)
	require.NoError(t, c.Submit(ctx))

	assert.Equal(t, 0, f.api.updated[7].ShowStatus)
	assert.Equal(t, "/pms/brand", f.navigator.Current())
	assert.Equal(t, [][]string{{pms.ScopeBrands}}, f.cache.scopes)
}

func TestEdit_LoadFailure(t *testing.T) {
	f := newFormFixture()
	c := NewEdit(f.api.binding(), 404, f.collaborators())

	err := c.Load(context.Background())

	assert.Error(t, err)
	assert.False(t, c.Loaded())
	assert.ErrorIs(t, c.Submit(context.Background()), shared.ErrNotLoaded)
}

func TestSubmit_ValidationNeverReachesServer(t *testing.T) {
	f := newFormFixture()
	c := NewCreate(f.api.binding(), f.collaborators())
	require.NoError(t, c.Load(context.Background()))
	c.SetValues(pms.Brand{Name: "A", ShowStatus: 3})

	err := c.Submit(context.Background())

	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Must be at least 2 characters", verr.Field("name"))
	assert.Equal(t, "This field is required", verr.Field("logo"))
	assert.Equal(t, "Must be one of: 0 1", verr.Field("showStatus"))
	assert.Equal(t, verr.Fields, c.FieldErrors())
	assert.Equal(t, []string{MsgValidationFailed}, f.notifier.Errors())
	assert.Zero(t, f.confirmer.Calls())
	assert.Zero(t, f.api.calls())
	assert.Empty(t, f.cache.scopes)
}

func TestSubmit_NestedFieldPaths(t *testing.T) {
	f := newFormFixture()
	b := Binding[pms.Product]{
		Name:     "product",
		Scope:    pms.ScopeProducts,
		Defaults: pms.DefaultProduct,
		Create:   func(context.Context, pms.Product) error { return nil },
	}
	c := NewCreate(b, f.collaborators())
	require.NoError(t, c.Load(context.Background()))
	p := c.Values()
	p.Name = "Phone"
	p.ProductSn = "SN-1"
	p.SkuStockList = []pms.SkuStock{{SkuCode: "", Price: decimal.NewFromInt(10)}}
	c.SetValues(p)

	err := c.Submit(context.Background())

	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{"skuStockList[0].skuCode": "This field is required"}, verr.Fields)
}

func TestSubmit_DeclinedConfirmation(t *testing.T) {
	f := newFormFixture()
	f.confirmer.Answer = false
	c := NewCreate(f.api.binding(), f.collaborators())
	require.NoError(t, c.Load(context.Background()))
	c.SetValues(pms.Brand{Name: "Globex", Logo: "g.png"})

	err := c.Submit(context.Background())

	assert.ErrorIs(t, err, shared.ErrSubmitCancelled)
	assert.Zero(t, f.api.calls())
	assert.Equal(t, "Globex", c.Values().Name)
}

func TestSubmit_RemoteFailureKeepsValues(t *testing.T) {
	f := newFormFixture()
	remote := errors.New("参数检验失败")
	f.api.failing = remote
	c := NewCreate(f.api.binding(), f.collaborators())
	require.NoError(t, c.Load(context.Background()))
	c.SetValues(pms.Brand{Name: "Globex", Logo: "g.png"})

	err := c.Submit(context.Background())

	assert.ErrorIs(t, err, remote)
	assert.Equal(t, "Globex", c.Values().Name)
	assert.Empty(t, f.cache.scopes)
	assert.Empty(t, f.notifier.Successes())
}

func TestReset(t *testing.T) {
	f := newFormFixture()
	c := NewEdit(f.api.binding(), 7, f.collaborators())
	require.NoError(t, c.Load(context.Background()))
	c.SetValues(pms.Brand{Name: "changed"})

	c.Reset()

	assert.Equal(t, "Acme", c.Values().Name)
}
