package sale

import (
	"context"
)

// Repository persists sales.
type Repository interface {
	Create(ctx context.Context, s *Sale) error
	Get(ctx context.Context, id string) (*Sale, error)
	GetForUpdate(ctx context.Context, id string) (*Sale, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]*Sale, int64, error)
}
