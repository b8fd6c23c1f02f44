package listing

import (
	"context"
	"fmt"

	"github.com/erp/mall-admin/internal/domain/shared"
)

// Resource binds one entity list to its remote endpoints. The controller
// only needs row ids and the calls; row contents are opaque to it.
type Resource[T any, F shared.Filter] struct {
	// Name is used in logs
	Name string
	// Scope is the root cache scope of the entity. Mutations invalidate it
	// as a prefix, so every filtered view of the entity refreshes.
	Scope string
	// Segments adds filter values that travel in the request path to the
	// cache scope, e.g. the parent id of a category list.
	Segments func(F) []string
	// Related lists other scopes that a mutation of this entity makes stale
	Related []string

	List func(ctx context.Context, filter F, page shared.PageQuery) (shared.PageResult[T], error)
	ID   func(T) int64

	Actions []BatchAction
	Delete  func(ctx context.Context, ids []int64) error

	DefaultFilter F
	PageSize      int
}

// BatchAction is a mutation applied to every selected id
type BatchAction struct {
	Op    string
	Label string
	Apply func(ctx context.Context, ids []int64) error
}

// PartialError reports a mutation that failed after the server had already
// applied it to some ids. Done lists those ids in request order.
type PartialError struct {
	Done []int64
	Err  error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d record(s) done before failure: %v", len(e.Done), e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// Action returns the batch action named op
func (r Resource[T, F]) Action(op string) (BatchAction, bool) {
	for _, a := range r.Actions {
		if a.Op == op {
			return a, true
		}
	}
	return BatchAction{}, false
}

func (r Resource[T, F]) scope(filter F) []string {
	scope := []string{r.Scope}
	if r.Segments != nil {
		scope = append(scope, r.Segments(filter)...)
	}
	return scope
}

func (r Resource[T, F]) pageSize() int {
	if r.PageSize > 0 {
		return r.PageSize
	}
	return shared.DefaultPageSize
}
