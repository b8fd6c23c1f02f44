// Package pms binds the product-management endpoints of the mall-admin API
// to the list and form controllers.
package pms

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/erp/mall-admin/internal/domain/pms"
	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/infrastructure/httpclient"
)

// API is the typed client of the catalog endpoints
type API struct {
	client *httpclient.Client
}

// NewAPI creates the catalog API on a pipeline client
func NewAPI(client *httpclient.Client) *API {
	return &API{client: client}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func idPath(format string, id int64) string {
	return strings.Replace(format, "{id}", strconv.FormatInt(id, 10), 1)
}

func pageValues(f shared.Filter, q shared.PageQuery) url.Values {
	values := url.Values{}
	for k, v := range q.Normalize().Params() {
		values.Set(k, v)
	}
	for k, v := range f.Params() {
		values.Set(k, v)
	}
	return values
}

// statusForm is the body of the form-encoded batch status endpoints
func statusForm(field string, ids []int64, value int) url.Values {
	return url.Values{
		"ids": {joinIDs(ids)},
		field: {strconv.Itoa(value)},
	}
}

// statusQuery sends the batch status as query parameters, as the product
// endpoints expect
func statusQuery(path, field string, ids []int64, value int) httpclient.Request {
	return httpclient.Request{
		Method: http.MethodPost,
		Path:   path,
		Query: url.Values{
			"ids": {joinIDs(ids)},
			field: {strconv.Itoa(value)},
		},
	}
}

// Brand

func (a *API) ListBrands(ctx context.Context, f pms.BrandFilter, q shared.PageQuery) (shared.PageResult[pms.Brand], error) {
	return httpclient.Send[shared.PageResult[pms.Brand]](ctx, a.client, httpclient.Get("/brand/list", pageValues(f, q)))
}

func (a *API) GetBrand(ctx context.Context, id int64) (pms.Brand, error) {
	return httpclient.Send[pms.Brand](ctx, a.client, httpclient.Get(idPath("/brand/{id}", id), nil))
}

func (a *API) CreateBrand(ctx context.Context, b pms.Brand) error {
	return httpclient.Do(ctx, a.client, httpclient.PostJSON("/brand/create", b))
}

func (a *API) UpdateBrand(ctx context.Context, id int64, b pms.Brand) error {
	return httpclient.Do(ctx, a.client, httpclient.PostJSON(idPath("/brand/update/{id}", id), b))
}

func (a *API) DeleteBrand(ctx context.Context, id int64) error {
	return httpclient.Do(ctx, a.client, httpclient.Get(idPath("/brand/delete/{id}", id), nil))
}

func (a *API) UpdateBrandShowStatus(ctx context.Context, ids []int64, status int) error {
	return httpclient.Do(ctx, a.client, httpclient.PostForm("/brand/update/showStatus", statusForm("showStatus", ids, status)))
}

func (a *API) UpdateBrandFactoryStatus(ctx context.Context, ids []int64, status int) error {
	return httpclient.Do(ctx, a.client, httpclient.PostForm("/brand/update/factoryStatus", statusForm("factoryStatus", ids, status)))
}

// Product

func (a *API) ListProducts(ctx context.Context, f pms.ProductFilter, q shared.PageQuery) (shared.PageResult[pms.Product], error) {
	return httpclient.Send[shared.PageResult[pms.Product]](ctx, a.client, httpclient.Get("/product/list", pageValues(f, q)))
}

// SimpleListProducts searches products by name or serial number without
// paging, as pickers do
func (a *API) SimpleListProducts(ctx context.Context, keyword string) ([]pms.Product, error) {
	return httpclient.Send[[]pms.Product](ctx, a.client, httpclient.Get("/product/simpleList", url.Values{"keyword": {keyword}}))
}

// GetProduct loads a product with all its relations for editing
func (a *API) GetProduct(ctx context.Context, id int64) (pms.Product, error) {
	return httpclient.Send[pms.Product](ctx, a.client, httpclient.Get(idPath("/product/updateInfo/{id}", id), nil))
}

func (a *API) CreateProduct(ctx context.Context, p pms.Product) error {
	return httpclient.Do(ctx, a.client, httpclient.PostJSON("/product/create", p))
}

func (a *API) UpdateProduct(ctx context.Context, id int64, p pms.Product) error {
	return httpclient.Do(ctx, a.client, httpclient.PostJSON(idPath("/product/update/{id}", id), p))
}

func (a *API) UpdateProductDeleteStatus(ctx context.Context, ids []int64, status int) error {
	return httpclient.Do(ctx, a.client, statusQuery("/product/update/deleteStatus", "deleteStatus", ids, status))
}

func (a *API) UpdateProductNewStatus(ctx context.Context, ids []int64, status int) error {
	return httpclient.Do(ctx, a.client, statusQuery("/product/update/newStatus", "newStatus", ids, status))
}

func (a *API) UpdateProductRecommendStatus(ctx context.Context, ids []int64, status int) error {
	return httpclient.Do(ctx, a.client, statusQuery("/product/update/recommendStatus", "recommendStatus", ids, status))
}

func (a *API) UpdateProductPublishStatus(ctx context.Context, ids []int64, status int) error {
	return httpclient.Do(ctx, a.client, statusQuery("/product/update/publishStatus", "publishStatus", ids, status))
}

// Product category

func (a *API) ListCategories(ctx context.Context, f pms.CategoryFilter, q shared.PageQuery) (shared.PageResult[pms.ProductCategory], error) {
	path := idPath("/productCategory/list/{id}", f.ParentID)
	return httpclient.Send[shared.PageResult[pms.ProductCategory]](ctx, a.client, httpclient.Get(path, pageValues(f, q)))
}

func (a *API) GetCategory(ctx context.Context, id int64) (pms.ProductCategory, error) {
	return httpclient.Send[pms.ProductCategory](ctx, a.client, httpclient.Get(idPath("/productCategory/{id}", id), nil))
}

func (a *API) CreateCategory(ctx context.Context, c pms.ProductCategory) error {
	return httpclient.Do(ctx, a.client, httpclient.PostJSON("/productCategory/create", c))
}

func (a *API) UpdateCategory(ctx context.Context, id int64, c pms.ProductCategory) error {
	return httpclient.Do(ctx, a.client, httpclient.PostJSON(idPath("/productCategory/update/{id}", id), c))
}

func (a *API) DeleteCategory(ctx context.Context, id int64) error {
	return httpclient.Do(ctx, a.client, httpclient.PostJSON(idPath("/productCategory/delete/{id}", id), nil))
}

func (a *API) UpdateCategoryShowStatus(ctx context.Context, ids []int64, status int) error {
	return httpclient.Do(ctx, a.client, httpclient.PostForm("/productCategory/update/showStatus", statusForm("showStatus", ids, status)))
}

func (a *API) UpdateCategoryNavStatus(ctx context.Context, ids []int64, status int) error {
	return httpclient.Do(ctx, a.client, httpclient.PostForm("/productCategory/update/navStatus", statusForm("navStatus", ids, status)))
}

// CategoryTree returns the top-level categories with their children
func (a *API) CategoryTree(ctx context.Context) (pms.CategoryTree, error) {
	return httpclient.Send[pms.CategoryTree](ctx, a.client, httpclient.Get("/productCategory/list/withChildren", nil))
}

// Product attribute category

func (a *API) ListAttrCategories(ctx context.Context, _ shared.NoFilter, q shared.PageQuery) (shared.PageResult[pms.ProductAttrCategory], error) {
	return httpclient.Send[shared.PageResult[pms.ProductAttrCategory]](ctx, a.client,
		httpclient.Get("/productAttribute/category/list", pageValues(shared.NoFilter{}, q)))
}

func (a *API) CreateAttrCategory(ctx context.Context, c pms.ProductAttrCategory) error {
	return httpclient.Do(ctx, a.client, httpclient.PostJSON("/productAttribute/category/create", c))
}

func (a *API) UpdateAttrCategory(ctx context.Context, id int64, c pms.ProductAttrCategory) error {
	return httpclient.Do(ctx, a.client, httpclient.PostJSON(idPath("/productAttribute/category/update/{id}", id), c))
}

func (a *API) DeleteAttrCategory(ctx context.Context, id int64) error {
	return httpclient.Do(ctx, a.client, httpclient.Get(idPath("/productAttribute/category/delete/{id}", id), nil))
}

// AttrCategoriesWithAttr returns every attribute category with its specs
func (a *API) AttrCategoriesWithAttr(ctx context.Context) ([]pms.ProductAttrCategory, error) {
	return httpclient.Send[[]pms.ProductAttrCategory](ctx, a.client, httpclient.Get("/productAttribute/category/list/withAttr", nil))
}

// Product attribute

func (a *API) ListAttributes(ctx context.Context, f pms.AttributeFilter, q shared.PageQuery) (shared.PageResult[pms.ProductAttribute], error) {
	path := idPath("/productAttribute/list/{id}", f.CategoryID)
	return httpclient.Send[shared.PageResult[pms.ProductAttribute]](ctx, a.client, httpclient.Get(path, pageValues(f, q)))
}

func (a *API) GetAttribute(ctx context.Context, id int64) (pms.ProductAttribute, error) {
	return httpclient.Send[pms.ProductAttribute](ctx, a.client, httpclient.Get(idPath("/productAttribute/{id}", id), nil))
}

func (a *API) CreateAttribute(ctx context.Context, attr pms.ProductAttribute) error {
	return httpclient.Do(ctx, a.client, httpclient.PostJSON("/productAttribute/create", attr))
}

func (a *API) UpdateAttribute(ctx context.Context, id int64, attr pms.ProductAttribute) error {
	return httpclient.Do(ctx, a.client, httpclient.PostJSON(idPath("/productAttribute/update/{id}", id), attr))
}

// DeleteAttributes removes several attributes in one call
func (a *API) DeleteAttributes(ctx context.Context, ids []int64) error {
	return httpclient.Do(ctx, a.client, httpclient.PostJSON("/productAttribute/delete", ids))
}

// AttrInfo returns the attribute set bound to a product category
func (a *API) AttrInfo(ctx context.Context, productCategoryID int64) (pms.ProductAttrInfo, error) {
	return httpclient.Send[pms.ProductAttrInfo](ctx, a.client, httpclient.Get(idPath("/productAttribute/attrInfo/{id}", productCategoryID), nil))
}
