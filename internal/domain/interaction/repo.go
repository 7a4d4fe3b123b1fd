package interaction

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// GetByPair looks up an active record for the normalized pair (a, b).
	// Callers must pass the pair already in normalized order.
	GetByPair(ctx context.Context, a, b string) (*Record, error)
	List(ctx context.Context, limit, offset int) ([]*Record, int, error)
	Update(ctx context.Context, rec *Record) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}
