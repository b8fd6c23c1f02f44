package pms

import (
	"context"
	"fmt"

	"github.com/erp/mall-admin/internal/domain/pms"
	"github.com/erp/mall-admin/internal/infrastructure/cache"
)

// Catalog serves lookups shared by several screens from the query cache
type Catalog struct {
	api   *API
	cache *cache.QueryCache
}

// NewCatalog creates a catalog over api and qc
func NewCatalog(api *API, qc *cache.QueryCache) *Catalog {
	return &Catalog{api: api, cache: qc}
}

// API returns the underlying endpoints
func (c *Catalog) API() *API {
	return c.api
}

// CategoryTree returns the cached two-level category tree
func (c *Catalog) CategoryTree(ctx context.Context) (pms.CategoryTree, error) {
	key := cache.NewKey([]string{pms.ScopeCategoryTree})
	return cache.Fetch(ctx, c.cache, key, c.api.CategoryTree)
}

// ProductCategoryFilter applies a cascading category selection to f. A path
// that stops at a category with children leaves the category unset.
func (c *Catalog) ProductCategoryFilter(ctx context.Context, f pms.ProductFilter, path []int64) (pms.ProductFilter, error) {
	if len(path) == 0 {
		return f.SelectCategoryPath(nil), nil
	}
	tree, err := c.CategoryTree(ctx)
	if err != nil {
		return f, fmt.Errorf("load category tree: %w", err)
	}
	if _, ok := tree.LeafPath(path); !ok {
		return f.SelectCategoryPath(nil), nil
	}
	return f.SelectCategoryPath(path), nil
}

// NewCategory returns the defaults of a category created under parentID,
// with the level derived from the tree
func (c *Catalog) NewCategory(ctx context.Context, parentID int64) (pms.ProductCategory, error) {
	tree, err := c.CategoryTree(ctx)
	if err != nil {
		return pms.ProductCategory{}, fmt.Errorf("load category tree: %w", err)
	}
	level, ok := tree.LevelFor(parentID)
	if !ok {
		return pms.ProductCategory{}, fmt.Errorf("%w: category %d cannot have children", pms.ErrInvalidParent, parentID)
	}
	cat := pms.DefaultProductCategory()
	cat.ParentID = parentID
	cat.Level = level
	return cat, nil
}

// AttrInfo returns the attribute set of a product category
func (c *Catalog) AttrInfo(ctx context.Context, productCategoryID int64) (pms.ProductAttrInfo, error) {
	key := cache.NewKey([]string{pms.ScopeAttributes, "attrInfo", fmt.Sprint(productCategoryID)})
	return cache.Fetch(ctx, c.cache, key, func(ctx context.Context) (pms.ProductAttrInfo, error) {
		return c.api.AttrInfo(ctx, productCategoryID)
	})
}
