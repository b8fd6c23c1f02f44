package pms

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is a catalog product with its pricing and stock relations
type Product struct {
	ID                         int64            `json:"id,omitempty"`
	BrandID                    int64            `json:"brandId"`
	ProductCategoryID          int64            `json:"productCategoryId"`
	FeightTemplateID           int64            `json:"feightTemplateId"`
	ProductAttributeCategoryID int64            `json:"productAttributeCategoryId"`
	Name                       string           `json:"name" validate:"required,max=200"`
	Pic                        string           `json:"pic"`
	ProductSn                  string           `json:"productSn" validate:"required,max=64"`
	DeleteStatus               int              `json:"deleteStatus" validate:"oneof=0 1"`
	PublishStatus              int              `json:"publishStatus" validate:"oneof=0 1"`
	NewStatus                  int              `json:"newStatus" validate:"oneof=0 1"`
	RecommendStatus            int              `json:"recommendStatus" validate:"oneof=0 1"`
	VerifyStatus               int              `json:"verifyStatus" validate:"oneof=0 1"`
	Sort                       int              `json:"sort" validate:"min=0"`
	Sale                       int              `json:"sale"`
	Price                      decimal.Decimal  `json:"price"`
	PromotionPrice             *decimal.Decimal `json:"promotionPrice,omitempty"`
	GiftGrowth                 int              `json:"giftGrowth"`
	GiftPoint                  int              `json:"giftPoint"`
	UsePointLimit              int              `json:"usePointLimit"`
	SubTitle                   string           `json:"subTitle"`
	Description                string           `json:"description"`
	OriginalPrice              decimal.Decimal  `json:"originalPrice"`
	Stock                      int              `json:"stock" validate:"min=0"`
	LowStock                   int              `json:"lowStock" validate:"min=0"`
	Unit                       string           `json:"unit"`
	Weight                     decimal.Decimal  `json:"weight"`
	PreviewStatus              int              `json:"previewStatus" validate:"oneof=0 1"`
	ServiceIDs                 string           `json:"serviceIds"`
	Keywords                   string           `json:"keywords"`
	Note                       string           `json:"note"`
	AlbumPics                  string           `json:"albumPics"`
	DetailTitle                string           `json:"detailTitle"`
	DetailDesc                 string           `json:"detailDesc"`
	DetailHTML                 string           `json:"detailHtml"`
	DetailMobileHTML           string           `json:"detailMobileHtml"`
	PromotionStartTime         string           `json:"promotionStartTime,omitempty"`
	PromotionEndTime           string           `json:"promotionEndTime,omitempty"`
	PromotionPerLimit          int              `json:"promotionPerLimit"`
	PromotionType              int              `json:"promotionType" validate:"min=0,max=4"`
	BrandName                  string           `json:"brandName,omitempty"`
	ProductCategoryName        string           `json:"productCategoryName,omitempty"`

	ProductLadderList                []ProductLadder                `json:"productLadderList,omitempty" validate:"dive"`
	ProductFullReductionList         []ProductFullReduction         `json:"productFullReductionList,omitempty" validate:"dive"`
	MemberPriceList                  []MemberPrice                  `json:"memberPriceList,omitempty"`
	SkuStockList                     []SkuStock                     `json:"skuStockList,omitempty" validate:"dive"`
	ProductAttributeValueList        []ProductAttributeValue        `json:"productAttributeValueList,omitempty"`
	SubjectProductRelationList       []SubjectProductRelation       `json:"subjectProductRelationList,omitempty"`
	PrefrenceAreaProductRelationList []PrefrenceAreaProductRelation `json:"prefrenceAreaProductRelationList,omitempty"`
}

// ProductLadder is a quantity discount tier
type ProductLadder struct {
	ID        int64           `json:"id,omitempty"`
	ProductID int64           `json:"productId,omitempty"`
	Count     int             `json:"count" validate:"min=1"`
	Discount  decimal.Decimal `json:"discount"`
	Price     decimal.Decimal `json:"price"`
}

// ProductFullReduction is a spend-X-save-Y rule
type ProductFullReduction struct {
	ID          int64           `json:"id,omitempty"`
	ProductID   int64           `json:"productId,omitempty"`
	FullPrice   decimal.Decimal `json:"fullPrice"`
	ReducePrice decimal.Decimal `json:"reducePrice"`
}

// MemberPrice is a price reserved for a member level
type MemberPrice struct {
	ID              int64           `json:"id,omitempty"`
	ProductID       int64           `json:"productId,omitempty"`
	MemberLevelID   int64           `json:"memberLevelId"`
	MemberPrice     decimal.Decimal `json:"memberPrice"`
	MemberLevelName string          `json:"memberLevelName,omitempty"`
}

// SkuStock is the stock of one SKU. SpData is the JSON-encoded spec values.
type SkuStock struct {
	ID             int64            `json:"id,omitempty"`
	ProductID      int64            `json:"productId,omitempty"`
	SkuCode        string           `json:"skuCode" validate:"required"`
	Price          decimal.Decimal  `json:"price"`
	Stock          int              `json:"stock" validate:"min=0"`
	LowStock       int              `json:"lowStock"`
	Pic            string           `json:"pic"`
	Sale           int              `json:"sale,omitempty"`
	PromotionPrice *decimal.Decimal `json:"promotionPrice,omitempty"`
	LockStock      int              `json:"lockStock,omitempty"`
	SpData         string           `json:"spData"`
}

// ProductAttributeValue binds an attribute value to a product
type ProductAttributeValue struct {
	ID                 int64  `json:"id,omitempty"`
	ProductID          int64  `json:"productId,omitempty"`
	ProductAttributeID int64  `json:"productAttributeId"`
	Value              string `json:"value"`
}

// SubjectProductRelation links a product to a topic
type SubjectProductRelation struct {
	ID        int64 `json:"id,omitempty"`
	ProductID int64 `json:"productId,omitempty"`
	SubjectID int64 `json:"subjectId"`
}

// PrefrenceAreaProductRelation links a product to a preference area
type PrefrenceAreaProductRelation struct {
	ID              int64 `json:"id,omitempty"`
	ProductID       int64 `json:"productId,omitempty"`
	PrefrenceAreaID int64 `json:"prefrenceAreaId"`
}

// DefaultProduct is the blank form of a new product
func DefaultProduct() Product {
	return Product{
		Price:         decimal.Zero,
		OriginalPrice: decimal.Zero,
		Weight:        decimal.Zero,
	}
}

// ProductFilter narrows the product list. Nil pointers are unset.
type ProductFilter struct {
	Keyword           string
	ProductSn         string
	BrandID           *int64
	ProductCategoryID *int64
	PublishStatus     *int
	VerifyStatus      *int
}

// Params implements shared.Filter
func (f ProductFilter) Params() map[string]string {
	params := map[string]string{}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		params["keyword"] = kw
	}
	if sn := strings.TrimSpace(f.ProductSn); sn != "" {
		params["productSn"] = sn
	}
	if f.BrandID != nil {
		params["brandId"] = strconv.FormatInt(*f.BrandID, 10)
	}
	if f.ProductCategoryID != nil {
		params["productCategoryId"] = strconv.FormatInt(*f.ProductCategoryID, 10)
	}
	if f.PublishStatus != nil {
		params["publishStatus"] = strconv.Itoa(*f.PublishStatus)
	}
	if f.VerifyStatus != nil {
		params["verifyStatus"] = strconv.Itoa(*f.VerifyStatus)
	}
	return params
}

// SelectCategoryPath sets the category filter from a cascading selection.
// The last element of the path is used; an empty path clears the filter.
func (f ProductFilter) SelectCategoryPath(path []int64) ProductFilter {
	if id, ok := PathToLeafID(path); ok {
		f.ProductCategoryID = &id
	} else {
		f.ProductCategoryID = nil
	}
	return f
}
