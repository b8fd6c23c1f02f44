package pms

import (
	"context"
	"fmt"

	"github.com/erp/mall-admin/internal/application/listing"
	"github.com/erp/mall-admin/internal/domain/pms"
	"github.com/erp/mall-admin/internal/domain/shared"
)

func setStatus(update func(context.Context, []int64, int) error, value int) func(context.Context, []int64) error {
	return func(ctx context.Context, ids []int64) error {
		return update(ctx, ids, value)
	}
}

// eachID deletes one id at a time for endpoints without a batch form.
// It stops at the first failure and reports the ids already deleted as a
// *listing.PartialError.
func eachID(remove func(context.Context, int64) error) func(context.Context, []int64) error {
	return func(ctx context.Context, ids []int64) error {
		done := make([]int64, 0, len(ids))
		for _, id := range ids {
			if err := remove(ctx, id); err != nil {
				err = fmt.Errorf("id %d: %w", id, err)
				if len(done) > 0 {
					return &listing.PartialError{Done: done, Err: err}
				}
				return err
			}
			done = append(done, id)
		}
		return nil
	}
}

// BrandResource is the brand list screen
func (a *API) BrandResource() listing.Resource[pms.Brand, pms.BrandFilter] {
	remove := eachID(a.DeleteBrand)
	return listing.Resource[pms.Brand, pms.BrandFilter]{
		Name:  pms.EntityBrand,
		Scope: pms.ScopeBrands,
		List:  a.ListBrands,
		ID:    func(b pms.Brand) int64 { return b.ID },
		Actions: []listing.BatchAction{
			{Op: pms.OpShowBrand, Label: "Show brand", Apply: setStatus(a.UpdateBrandShowStatus, 1)},
			{Op: pms.OpHideBrand, Label: "Hide brand", Apply: setStatus(a.UpdateBrandShowStatus, 0)},
			{Op: pms.OpFactoryOn, Label: "Mark as manufacturer", Apply: setStatus(a.UpdateBrandFactoryStatus, 1)},
			{Op: pms.OpFactoryOff, Label: "Unmark as manufacturer", Apply: setStatus(a.UpdateBrandFactoryStatus, 0)},
			{Op: pms.OpDelete, Label: "Delete", Apply: remove},
		},
		Delete: remove,
	}
}

// ProductResource is the product list screen. Deleting a product only sets
// its delete status.
func (a *API) ProductResource() listing.Resource[pms.Product, pms.ProductFilter] {
	remove := setStatus(a.UpdateProductDeleteStatus, 1)
	return listing.Resource[pms.Product, pms.ProductFilter]{
		Name:  pms.EntityProduct,
		Scope: pms.ScopeProducts,
		List:  a.ListProducts,
		ID:    func(p pms.Product) int64 { return p.ID },
		Actions: []listing.BatchAction{
			{Op: pms.OpPublish, Label: "Put on shelf", Apply: setStatus(a.UpdateProductPublishStatus, 1)},
			{Op: pms.OpUnpublish, Label: "Take off shelf", Apply: setStatus(a.UpdateProductPublishStatus, 0)},
			{Op: pms.OpRecommend, Label: "Recommend", Apply: setStatus(a.UpdateProductRecommendStatus, 1)},
			{Op: pms.OpUnrecommend, Label: "Stop recommending", Apply: setStatus(a.UpdateProductRecommendStatus, 0)},
			{Op: pms.OpNew, Label: "Mark as new", Apply: setStatus(a.UpdateProductNewStatus, 1)},
			{Op: pms.OpUnnew, Label: "Unmark as new", Apply: setStatus(a.UpdateProductNewStatus, 0)},
			{Op: pms.OpDelete, Label: "Delete", Apply: remove},
		},
		Delete: remove,
	}
}

// CategoryResource lists the children of one parent category
func (a *API) CategoryResource(parentID int64) listing.Resource[pms.ProductCategory, pms.CategoryFilter] {
	remove := eachID(a.DeleteCategory)
	return listing.Resource[pms.ProductCategory, pms.CategoryFilter]{
		Name:     pms.EntityCategory,
		Scope:    pms.ScopeCategories,
		Segments: func(f pms.CategoryFilter) []string { return []string{f.ScopeSegment()} },
		Related:  []string{pms.ScopeCategoryTree},
		List:     a.ListCategories,
		ID:       func(c pms.ProductCategory) int64 { return c.ID },
		Actions: []listing.BatchAction{
			{Op: pms.OpShow, Label: "Show", Apply: setStatus(a.UpdateCategoryShowStatus, 1)},
			{Op: pms.OpHide, Label: "Hide", Apply: setStatus(a.UpdateCategoryShowStatus, 0)},
			{Op: pms.OpNavOn, Label: "Show in navigation", Apply: setStatus(a.UpdateCategoryNavStatus, 1)},
			{Op: pms.OpNavOff, Label: "Hide from navigation", Apply: setStatus(a.UpdateCategoryNavStatus, 0)},
			{Op: pms.OpDelete, Label: "Delete", Apply: remove},
		},
		Delete:        remove,
		DefaultFilter: pms.CategoryFilter{ParentID: parentID},
	}
}

// AttrCategoryResource is the attribute category list screen
func (a *API) AttrCategoryResource() listing.Resource[pms.ProductAttrCategory, shared.NoFilter] {
	remove := eachID(a.DeleteAttrCategory)
	return listing.Resource[pms.ProductAttrCategory, shared.NoFilter]{
		Name:    pms.EntityAttrCategory,
		Scope:   pms.ScopeAttrCategories,
		Related: []string{pms.ScopeAttributes},
		List:    a.ListAttrCategories,
		ID:      func(c pms.ProductAttrCategory) int64 { return c.ID },
		Actions: []listing.BatchAction{
			{Op: pms.OpDelete, Label: "Delete", Apply: remove},
		},
		Delete: remove,
	}
}

// AttributeResource lists the specs or params of one attribute category
func (a *API) AttributeResource(cid int64, attrType int) listing.Resource[pms.ProductAttribute, pms.AttributeFilter] {
	return listing.Resource[pms.ProductAttribute, pms.AttributeFilter]{
		Name:     pms.EntityAttribute,
		Scope:    pms.ScopeAttributes,
		Segments: func(f pms.AttributeFilter) []string { return []string{f.ScopeSegment()} },
		Related:  []string{pms.ScopeAttrCategories},
		List:     a.ListAttributes,
		ID:       func(attr pms.ProductAttribute) int64 { return attr.ID },
		Actions: []listing.BatchAction{
			{Op: pms.OpDelete, Label: "Delete", Apply: a.DeleteAttributes},
		},
		Delete:        a.DeleteAttributes,
		DefaultFilter: pms.AttributeFilter{CategoryID: cid, Type: attrType},
	}
}
