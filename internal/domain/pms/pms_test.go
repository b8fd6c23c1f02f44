package pms

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func TestPathToLeafID(t *testing.T) {
	tests := []struct {
		name   string
		path   []int64
		want   int64
		wantOK bool
	}{
		{name: "two levels picks the leaf", path: []int64{3, 7}, want: 7, wantOK: true},
		{name: "single element", path: []int64{3}, want: 3, wantOK: true},
		{name: "empty path is unset", path: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PathToLeafID(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProductFilter_SelectCategoryPath(t *testing.T) {
	f := ProductFilter{Keyword: "phone"}.SelectCategoryPath([]int64{3, 7})
	require.NotNil(t, f.ProductCategoryID)
	assert.Equal(t, int64(7), *f.ProductCategoryID)
	assert.Equal(t, "7", f.Params()["productCategoryId"])

	cleared := f.SelectCategoryPath(nil)
	assert.Nil(t, cleared.ProductCategoryID)
	assert.NotContains(t, cleared.Params(), "productCategoryId")
	assert.Equal(t, "phone", cleared.Params()["keyword"])
}

func TestProductFilter_ParamsOmitUnset(t *testing.T) {
	assert.Empty(t, ProductFilter{}.Params())
	assert.Empty(t, ProductFilter{Keyword: "   "}.Params())

	params := ProductFilter{
		ProductSn:     "NO.001",
		BrandID:       int64Ptr(6),
		PublishStatus: intPtr(0),
		VerifyStatus:  intPtr(1),
	}.Params()
	assert.Equal(t, map[string]string{
		"productSn":     "NO.001",
		"brandId":       "6",
		"publishStatus": "0",
		"verifyStatus":  "1",
	}, params)
}

func TestCategoryTree(t *testing.T) {
	tree := CategoryTree{
		{ID: 1, Name: "Clothing", Level: 0, Children: []ProductCategory{
			{ID: 7, ParentID: 1, Name: "T-Shirts", Level: 1},
			{ID: 8, ParentID: 1, Name: "Jackets", Level: 1},
		}},
		{ID: 2, Name: "Phones", Level: 0},
	}

	t.Run("leaf path resolves", func(t *testing.T) {
		id, ok := tree.LeafPath([]int64{1, 8})
		assert.True(t, ok)
		assert.Equal(t, int64(8), id)
	})
	t.Run("leafless parent leaves the filter unset", func(t *testing.T) {
		_, ok := tree.LeafPath([]int64{1})
		assert.False(t, ok)
	})
	t.Run("childless top level is a leaf", func(t *testing.T) {
		id, ok := tree.LeafPath([]int64{2})
		assert.True(t, ok)
		assert.Equal(t, int64(2), id)
	})
	t.Run("broken path is unset", func(t *testing.T) {
		_, ok := tree.LeafPath([]int64{2, 8})
		assert.False(t, ok)
	})
	t.Run("find searches children", func(t *testing.T) {
		c, ok := tree.Find(7)
		require.True(t, ok)
		assert.Equal(t, "T-Shirts", c.Name)
	})
	t.Run("level for parent", func(t *testing.T) {
		level, ok := tree.LevelFor(0)
		assert.True(t, ok)
		assert.Equal(t, 0, level)

		level, ok = tree.LevelFor(1)
		assert.True(t, ok)
		assert.Equal(t, 1, level)

		_, ok = tree.LevelFor(7)
		assert.False(t, ok, "second-level categories cannot be parents")
	})
}

func TestProduct_PricesAreJSONNumbers(t *testing.T) {
	p := DefaultProduct()
	p.Name = "Phone"
	p.Price = decimal.RequireFromString("3999.50")

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"price":3999.5`)
	assert.NotContains(t, string(data), "promotionPrice")

	var decoded Product
	require.NoError(t, json.Unmarshal([]byte(`{"id":26,"name":"Phone","price":88.8,"originalPrice":"99"}`), &decoded))
	assert.True(t, decoded.Price.Equal(decimal.RequireFromString("88.8")))
	assert.True(t, decoded.OriginalPrice.Equal(decimal.NewFromInt(99)))
}

func TestFilters_Params(t *testing.T) {
	assert.Equal(t, map[string]string{"keyword": "nike"}, BrandFilter{Keyword: " nike "}.Params())
	assert.Empty(t, BrandFilter{}.Params())
	assert.Nil(t, CategoryFilter{ParentID: 3}.Params())
	assert.Equal(t, "3", CategoryFilter{ParentID: 3}.ScopeSegment())
	assert.Equal(t, map[string]string{"type": "1"}, AttributeFilter{CategoryID: 4, Type: AttributeTypeParam}.Params())
	assert.Equal(t, "4", AttributeFilter{CategoryID: 4}.ScopeSegment())
}
