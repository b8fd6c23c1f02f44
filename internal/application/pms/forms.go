package pms

import (
	"context"

	"github.com/erp/mall-admin/internal/application/form"
	"github.com/erp/mall-admin/internal/domain/pms"
)

// BrandForm binds the brand create and edit screens
func (a *API) BrandForm() form.Binding[pms.Brand] {
	return form.Binding[pms.Brand]{
		Name:     pms.EntityBrand,
		Scope:    pms.ScopeBrands,
		Related:  []string{pms.ScopeProducts},
		Defaults: pms.DefaultBrand,
		Get:      a.GetBrand,
		Create:   a.CreateBrand,
		Update:   a.UpdateBrand,
	}
}

// ProductForm binds the product create and edit screens
func (a *API) ProductForm() form.Binding[pms.Product] {
	return form.Binding[pms.Product]{
		Name:     pms.EntityProduct,
		Scope:    pms.ScopeProducts,
		Related:  []string{pms.ScopeBrands, pms.ScopeCategories},
		Defaults: pms.DefaultProduct,
		Get:      a.GetProduct,
		Create:   a.CreateProduct,
		Update:   a.UpdateProduct,
	}
}

// CategoryForm binds the category create and edit screens
func (a *API) CategoryForm() form.Binding[pms.ProductCategory] {
	return form.Binding[pms.ProductCategory]{
		Name:     pms.EntityCategory,
		Scope:    pms.ScopeCategories,
		Related:  []string{pms.ScopeCategoryTree},
		Defaults: pms.DefaultProductCategory,
		Get:      a.GetCategory,
		Create:   a.CreateCategory,
		Update:   a.UpdateCategory,
	}
}

// AttrCategoryForm binds the attribute category dialog. Only the name is
// editable, so the form loads from the list row.
func (a *API) AttrCategoryForm(current pms.ProductAttrCategory) form.Binding[pms.ProductAttrCategory] {
	return form.Binding[pms.ProductAttrCategory]{
		Name:     pms.EntityAttrCategory,
		Scope:    pms.ScopeAttrCategories,
		Defaults: func() pms.ProductAttrCategory { return pms.ProductAttrCategory{} },
		Get: func(context.Context, int64) (pms.ProductAttrCategory, error) {
			return current, nil
		},
		Create: a.CreateAttrCategory,
		Update: a.UpdateAttrCategory,
	}
}

// AttributeForm binds the attribute create and edit screens of category cid
func (a *API) AttributeForm(cid int64, attrType int) form.Binding[pms.ProductAttribute] {
	return form.Binding[pms.ProductAttribute]{
		Name:     pms.EntityAttribute,
		Scope:    pms.ScopeAttributes,
		Related:  []string{pms.ScopeAttrCategories},
		Defaults: func() pms.ProductAttribute { return pms.DefaultProductAttribute(cid, attrType) },
		Get:      a.GetAttribute,
		Create:   a.CreateAttribute,
		Update:   a.UpdateAttribute,
	}
}
