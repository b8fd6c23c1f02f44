package shared

import (
	"fmt"
	"strconv"
)

// DefaultPageSize is the page size every list screen starts with
const DefaultPageSize = 10

// PageQuery holds the 1-based pagination parameters of a list request
type PageQuery struct {
	PageNum  int `json:"pageNum"`
	PageSize int `json:"pageSize"`
}

// DefaultPageQuery returns the first page with the default page size
func DefaultPageQuery() PageQuery {
	return PageQuery{PageNum: 1, PageSize: DefaultPageSize}
}

// Normalize clamps the query into its valid range
func (q PageQuery) Normalize() PageQuery {
	if q.PageNum < 1 {
		q.PageNum = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	return q
}

// Params returns the wire parameters of the query
func (q PageQuery) Params() map[string]string {
	return map[string]string{
		"pageNum":  strconv.Itoa(q.PageNum),
		"pageSize": strconv.Itoa(q.PageSize),
	}
}

// Filter is implemented by entity-specific list filters.
// Params returns only the filter values that are set; zero values are omitted
// so that two structurally equal filters always produce the same parameters.
type Filter interface {
	Params() map[string]string
}

// NoFilter is the filter of lists that only paginate
type NoFilter struct{}

// Params implements Filter
func (NoFilter) Params() map[string]string { return nil }

// PageResult is the paginated list payload returned by every list endpoint
type PageResult[T any] struct {
	List      []T `json:"list"`
	Total     int `json:"total"`
	PageNum   int `json:"pageNum"`
	PageSize  int `json:"pageSize"`
	TotalPage int `json:"totalPage"`
}

// NewPageResult creates a page result and derives the page count
func NewPageResult[T any](items []T, total, pageNum, pageSize int) PageResult[T] {
	totalPage := 0
	if pageSize > 0 {
		totalPage = total / pageSize
		if total%pageSize > 0 {
			totalPage++
		}
	}
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{
		List:      items,
		Total:     total,
		PageNum:   pageNum,
		PageSize:  pageSize,
		TotalPage: totalPage,
	}
}

// Validate checks the counters of a decoded page result
func (p PageResult[T]) Validate() error {
	if p.Total < 0 || p.TotalPage < 0 || p.PageNum < 0 || p.PageSize < 0 {
		return fmt.Errorf("page result has negative counters (total=%d, totalPage=%d, pageNum=%d, pageSize=%d)",
			p.Total, p.TotalPage, p.PageNum, p.PageSize)
	}
	if len(p.List) > p.Total && p.Total > 0 {
		return fmt.Errorf("page result lists %d items but reports total %d", len(p.List), p.Total)
	}
	return nil
}
