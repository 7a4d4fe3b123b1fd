package reconciliation

import (
	"time"

	"github.com/google/uuid"
)

// Discrepancy types.
const (
	TypeProfileNotReported  = "profile-not-reported"
	TypeDosageMismatch      = "dosage-mismatch"
	TypeReportedNotInProfile = "reported-not-in-profile"
)

// Record and discrepancy statuses.
const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
)

// ReportedMedication is one medication the patient reports taking, gathered
// from an external source during the reconciliation interview.
type ReportedMedication struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
}

// Discrepancy is one difference between the profile's medication list and
// what the patient reported.
type Discrepancy struct {
	Type           string     `json:"type"`
	MedicationName string     `json:"medication_name"`
	Description    string     `json:"description"`
	ReportedDosage *string    `json:"reported_dosage,omitempty"`
	Status         string     `json:"status"`
	Resolution     *string    `json:"resolution,omitempty"`
	ResolvedBy     *string    `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// Record is one reconciliation run. Discrepancies are addressed by index.
type Record struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	PatientID     uuid.UUID     `db:"patient_id" json:"patient_id"`
	PerformedBy   uuid.UUID     `db:"performed_by" json:"performed_by"`
	Sources       []string      `db:"sources" json:"sources"`
	Discrepancies []Discrepancy `db:"-" json:"discrepancies"`
	Status        string        `db:"status" json:"status"`
	ReconciledAt  time.Time     `db:"reconciled_at" json:"reconciled_at"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// PendingCount returns how many discrepancies are still unresolved.
func (r *Record) PendingCount() int {
	n := 0
	for _, d := range r.Discrepancies {
		if d.Status == StatusPending {
			n++
		}
	}
	return n
}
