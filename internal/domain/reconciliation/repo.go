package reconciliation

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists reconciliation records and their discrepancy rows.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// Update rewrites the record row and its discrepancy rows.
	Update(ctx context.Context, r *Record) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
}
