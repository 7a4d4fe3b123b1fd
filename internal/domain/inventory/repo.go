package inventory

import (
	"context"

	"github.com/google/uuid"
)

// SearchFilter narrows Search results. Query matches free text over the
// medication, generic and brand names, the registry code and the batch
// number. Category filters on the stored column; the derived status filters
// are applied by the service after the query.
type SearchFilter struct {
	Query    string
	Category string
}

type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	GetByRegistryCode(ctx context.Context, code string) (*Item, error)
	Search(ctx context.Context, filter SearchFilter, limit, offset int) ([]*Item, int, error)
	// Restock atomically adds qty to current stock and stamps last_restocked.
	Restock(ctx context.Context, id uuid.UUID, qty int) error
	// Deduct atomically subtracts qty from current stock. It must fail with
	// errs.ErrInsufficientStock when the item holds fewer than qty units, and
	// never drive stock negative under concurrent callers.
	Deduct(ctx context.Context, id uuid.UUID, qty int) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	// AlertCandidates returns active items that are at or below minimum stock
	// or expire within the given number of days.
	AlertCandidates(ctx context.Context, withinDays int) ([]*Item, error)
}
