package pms

import "strings"

// Brand is a product brand
type Brand struct {
	ID                  int64  `json:"id,omitempty"`
	Name                string `json:"name" validate:"required,min=2,max=140"`
	FirstLetter         string `json:"firstLetter" validate:"max=8"`
	Sort                int    `json:"sort" validate:"min=0"`
	FactoryStatus       int    `json:"factoryStatus" validate:"oneof=0 1"`
	ShowStatus          int    `json:"showStatus" validate:"oneof=0 1"`
	ProductCount        int    `json:"productCount,omitempty"`
	ProductCommentCount int    `json:"productCommentCount,omitempty"`
	Logo                string `json:"logo" validate:"required"`
	BigPic              string `json:"bigPic"`
	BrandStory          string `json:"brandStory"`
}

// DefaultBrand is the blank form of a new brand
func DefaultBrand() Brand {
	return Brand{ShowStatus: 1, FactoryStatus: 0}
}

// BrandFilter narrows the brand list
type BrandFilter struct {
	Keyword string
}

// Params implements shared.Filter
func (f BrandFilter) Params() map[string]string {
	params := map[string]string{}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		params["keyword"] = kw
	}
	return params
}
