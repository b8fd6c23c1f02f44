package pms

import (
	"strconv"

	"github.com/erp/mall-admin/internal/domain/shared"
)

// ErrInvalidParent is returned when a category is placed under a category
// that cannot have children
var ErrInvalidParent = shared.NewDomainError("INVALID_PARENT", "Only top-level categories can have children")

// ProductCategory is a node of the two-level category tree
type ProductCategory struct {
	ID           int64             `json:"id,omitempty"`
	ParentID     int64             `json:"parentId" validate:"min=0"`
	Name         string            `json:"name" validate:"required,max=64"`
	Level        int               `json:"level" validate:"oneof=0 1"`
	ProductCount int               `json:"productCount,omitempty"`
	ProductUnit  string            `json:"productUnit"`
	NavStatus    int               `json:"navStatus" validate:"oneof=0 1"`
	ShowStatus   int               `json:"showStatus" validate:"oneof=0 1"`
	Sort         int               `json:"sort" validate:"min=0"`
	Icon         string            `json:"icon"`
	Keywords     string            `json:"keywords"`
	Description  string            `json:"description"`
	Children     []ProductCategory `json:"children,omitempty"`
}

// DefaultProductCategory is the blank form of a new top-level category
func DefaultProductCategory() ProductCategory {
	return ProductCategory{ShowStatus: 1}
}

// CategoryFilter selects the children of one parent; 0 lists the top level
type CategoryFilter struct {
	ParentID int64
}

// Params implements shared.Filter. The parent id travels in the path.
func (f CategoryFilter) Params() map[string]string { return nil }

// ScopeSegment returns the parent id as a cache scope segment
func (f CategoryFilter) ScopeSegment() string {
	return strconv.FormatInt(f.ParentID, 10)
}

// PathToLeafID returns the last id of a cascading selection path.
// An empty path means "no category".
func PathToLeafID(path []int64) (int64, bool) {
	if len(path) == 0 {
		return 0, false
	}
	return path[len(path)-1], true
}

// CategoryTree is the result of the withChildren endpoint: top-level
// categories with their direct children.
type CategoryTree []ProductCategory

// Find returns the category with the given id at any depth
func (t CategoryTree) Find(id int64) (ProductCategory, bool) {
	for _, c := range t {
		if c.ID == id {
			return c, true
		}
		if found, ok := CategoryTree(c.Children).Find(id); ok {
			return found, true
		}
	}
	return ProductCategory{}, false
}

// LeafPath validates a cascading selection against the tree. It returns the
// leaf id only when the path walks parent-to-child and ends on a node with no
// children; a path stopping at a parent that still has children is unset.
func (t CategoryTree) LeafPath(path []int64) (int64, bool) {
	if len(path) == 0 {
		return 0, false
	}
	level := t
	var node ProductCategory
	for _, id := range path {
		found := false
		for _, c := range level {
			if c.ID == id {
				node, found = c, true
				break
			}
		}
		if !found {
			return 0, false
		}
		level = node.Children
	}
	if len(node.Children) > 0 {
		return 0, false
	}
	return PathToLeafID(path)
}

// LevelFor returns the level a new category gets under parentID.
// Only top-level categories can be parents.
func (t CategoryTree) LevelFor(parentID int64) (int, bool) {
	if parentID == 0 {
		return 0, true
	}
	for _, c := range t {
		if c.ID == parentID && c.Level == 0 {
			return 1, true
		}
	}
	return 0, false
}
