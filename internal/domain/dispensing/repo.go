package dispensing

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists dispense records and their lines.
type Repository interface {
	// Create inserts the record and its lines. A record number collision
	// surfaces as ErrDuplicateRecordNumber.
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByRecordNumber(ctx context.Context, number string) (*Record, error)
	// Update rewrites the record and its lines guarded by the optimistic
	// version column; the stored version must match r.Version.
	Update(ctx context.Context, r *Record) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Record, int, error)
	// CountCompletedByPrescription counts completed records sharing a
	// prescription, for refill tracking.
	CountCompletedByPrescription(ctx context.Context, prescriptionID uuid.UUID) (int, error)
}
