package pms

import "strconv"

// Attribute kinds
const (
	AttributeTypeSpec  = 0
	AttributeTypeParam = 1
)

// ProductAttrCategory groups specs and params shared by a family of products
type ProductAttrCategory struct {
	ID                   int64              `json:"id,omitempty"`
	Name                 string             `json:"name" validate:"required,max=64"`
	AttributeCount       int                `json:"attributeCount,omitempty"`
	ParamCount           int                `json:"paramCount,omitempty"`
	ProductAttributeList []ProductAttribute `json:"productAttributeList,omitempty"`
}

// ProductAttribute is a spec (type 0) or param (type 1) of an attribute category
type ProductAttribute struct {
	ID                         int64  `json:"id,omitempty"`
	ProductAttributeCategoryID int64  `json:"productAttributeCategoryId" validate:"min=1"`
	Name                       string `json:"name" validate:"required,max=64"`
	SelectType                 int    `json:"selectType" validate:"oneof=0 1 2"`
	InputType                  int    `json:"inputType" validate:"oneof=0 1"`
	InputList                  string `json:"inputList"`
	Sort                       int    `json:"sort" validate:"min=0"`
	FilterType                 int    `json:"filterType" validate:"oneof=0 1"`
	SearchType                 int    `json:"searchType" validate:"oneof=0 1 2"`
	RelatedStatus              int    `json:"relatedStatus" validate:"oneof=0 1"`
	HandAddStatus              int    `json:"handAddStatus" validate:"oneof=0 1"`
	Type                       int    `json:"type" validate:"oneof=0 1"`
}

// DefaultProductAttribute is the blank form of a new attribute in category cid
func DefaultProductAttribute(cid int64, attrType int) ProductAttribute {
	return ProductAttribute{ProductAttributeCategoryID: cid, Type: attrType}
}

// AttributeFilter selects the attributes of one category and kind
type AttributeFilter struct {
	CategoryID int64
	Type       int
}

// Params implements shared.Filter. The category id travels in the path.
func (f AttributeFilter) Params() map[string]string {
	return map[string]string{"type": strconv.Itoa(f.Type)}
}

// ScopeSegment returns the category id as a cache scope segment
func (f AttributeFilter) ScopeSegment() string {
	return strconv.FormatInt(f.CategoryID, 10)
}

// ProductAttrInfo is the attribute set bound to a product category, used when
// creating a product in that category.
type ProductAttrInfo struct {
	AttributeList       []ProductAttribute `json:"attributeList"`
	AttributeCategoryID int64              `json:"attributeCategoryId"`
}
