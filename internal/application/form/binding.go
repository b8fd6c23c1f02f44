package form

import "context"

// Binding ties a form to the endpoints of one entity
type Binding[T any] struct {
	Name string
	// Scope is the root cache scope invalidated after a successful submit
	Scope   string
	Related []string

	Defaults func() T
	Get      func(ctx context.Context, id int64) (T, error)
	Create   func(ctx context.Context, values T) error
	Update   func(ctx context.Context, id int64, values T) error
}

// Invalidator is the part of the query cache a form needs
type Invalidator interface {
	Invalidate(scope ...string) int
}
