package pms

// Batch operation names, as offered by each list screen.
const (
	OpShowBrand  = "showBrand"
	OpHideBrand  = "hideBrand"
	OpFactoryOn  = "factoryOn"
	OpFactoryOff = "factoryOff"

	OpPublish     = "publish"
	OpUnpublish   = "unpublish"
	OpRecommend   = "recommend"
	OpUnrecommend = "unrecommend"
	OpNew         = "new"
	OpUnnew       = "unnew"

	OpShow   = "show"
	OpHide   = "hide"
	OpNavOn  = "navOn"
	OpNavOff = "navOff"

	OpDelete = "delete"
)

// Entity names used for cache scopes and console commands
const (
	EntityBrand         = "brand"
	EntityProduct       = "product"
	EntityCategory      = "productCategory"
	EntityAttrCategory  = "productAttrCategory"
	EntityAttribute     = "productAttribute"
	ScopeBrands         = "brands"
	ScopeProducts       = "products"
	ScopeCategories     = "productCategories"
	ScopeCategoryTree   = "productCategoriesWithChildren"
	ScopeAttrCategories = "productAttrCategories"
	ScopeAttributes     = "productAttributes"
)
