package cli

import (
	"strconv"

	"github.com/erp/mall-admin/internal/domain/pms"
	"github.com/erp/mall-admin/internal/interfaces/console"
)

func id(v int64) string { return strconv.FormatInt(v, 10) }

var brandColumns = []console.Column[pms.Brand]{
	{Header: "ID", Value: func(b pms.Brand) string { return id(b.ID) }},
	{Header: "NAME", Value: func(b pms.Brand) string { return b.Name }},
	{Header: "LETTER", Value: func(b pms.Brand) string { return b.FirstLetter }},
	{Header: "SORT", Value: func(b pms.Brand) string { return strconv.Itoa(b.Sort) }},
	{Header: "FACTORY", Value: func(b pms.Brand) string { return console.Status(b.FactoryStatus) }},
	{Header: "SHOW", Value: func(b pms.Brand) string { return console.Status(b.ShowStatus) }},
	{Header: "PRODUCTS", Value: func(b pms.Brand) string { return strconv.Itoa(b.ProductCount) }},
}

var productColumns = []console.Column[pms.Product]{
	{Header: "ID", Value: func(p pms.Product) string { return id(p.ID) }},
	{Header: "NAME", Value: func(p pms.Product) string { return p.Name }},
	{Header: "SN", Value: func(p pms.Product) string { return p.ProductSn }},
	{Header: "BRAND", Value: func(p pms.Product) string { return p.BrandName }},
	{Header: "PRICE", Value: func(p pms.Product) string { return p.Price.StringFixed(2) }},
	{Header: "STOCK", Value: func(p pms.Product) string { return strconv.Itoa(p.Stock) }},
	{Header: "PUBLISH", Value: func(p pms.Product) string { return console.Status(p.PublishStatus) }},
	{Header: "NEW", Value: func(p pms.Product) string { return console.Status(p.NewStatus) }},
	{Header: "RECOMMEND", Value: func(p pms.Product) string { return console.Status(p.RecommendStatus) }},
	{Header: "VERIFY", Value: func(p pms.Product) string { return console.Status(p.VerifyStatus) }},
}

var categoryColumns = []console.Column[pms.ProductCategory]{
	{Header: "ID", Value: func(c pms.ProductCategory) string { return id(c.ID) }},
	{Header: "NAME", Value: func(c pms.ProductCategory) string { return c.Name }},
	{Header: "LEVEL", Value: func(c pms.ProductCategory) string { return strconv.Itoa(c.Level) }},
	{Header: "PRODUCTS", Value: func(c pms.ProductCategory) string { return strconv.Itoa(c.ProductCount) }},
	{Header: "UNIT", Value: func(c pms.ProductCategory) string { return c.ProductUnit }},
	{Header: "NAV", Value: func(c pms.ProductCategory) string { return console.Status(c.NavStatus) }},
	{Header: "SHOW", Value: func(c pms.ProductCategory) string { return console.Status(c.ShowStatus) }},
	{Header: "SORT", Value: func(c pms.ProductCategory) string { return strconv.Itoa(c.Sort) }},
}

var attrCategoryColumns = []console.Column[pms.ProductAttrCategory]{
	{Header: "ID", Value: func(c pms.ProductAttrCategory) string { return id(c.ID) }},
	{Header: "NAME", Value: func(c pms.ProductAttrCategory) string { return c.Name }},
	{Header: "SPECS", Value: func(c pms.ProductAttrCategory) string { return strconv.Itoa(c.AttributeCount) }},
	{Header: "PARAMS", Value: func(c pms.ProductAttrCategory) string { return strconv.Itoa(c.ParamCount) }},
}

var selectTypes = map[int]string{0: "unique", 1: "single", 2: "multiple"}

var attributeColumns = []console.Column[pms.ProductAttribute]{
	{Header: "ID", Value: func(a pms.ProductAttribute) string { return id(a.ID) }},
	{Header: "NAME", Value: func(a pms.ProductAttribute) string { return a.Name }},
	{Header: "SELECT", Value: func(a pms.ProductAttribute) string { return selectTypes[a.SelectType] }},
	{Header: "INPUT", Value: func(a pms.ProductAttribute) string {
		if a.InputType == 1 {
			return "list"
		}
		return "manual"
	}},
	{Header: "VALUES", Value: func(a pms.ProductAttribute) string { return a.InputList }},
	{Header: "SORT", Value: func(a pms.ProductAttribute) string { return strconv.Itoa(a.Sort) }},
}
