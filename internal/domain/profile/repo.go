package profile

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists patient pharmacy profiles.
type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByPatient(ctx context.Context, patientID, pharmacistID uuid.UUID) (*Profile, error)
	// Update writes the full profile document back, including the JSONB lists.
	Update(ctx context.Context, p *Profile) error
}
