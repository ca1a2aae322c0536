// Package repo defines a generic repository interface over graph-backed
// entities.
package repo

import "context"

// Repository is a generic entity store. Merge is an upsert keyed on the
// entity's ID property.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Merge(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination for List operations.
type ListOpts struct {
	Offset int
	Limit  int
}
