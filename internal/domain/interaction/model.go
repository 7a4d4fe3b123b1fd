package interaction

import (
	"time"

	"github.com/google/uuid"
)

// Record maps to the drug_interaction table. A record describes one known
// interaction between an unordered, case-insensitive pair of medications.
type Record struct {
	ID             uuid.UUID `db:"id" json:"id"`
	MedicationA    string    `db:"medication_a" json:"medication_a"`
	MedicationB    string    `db:"medication_b" json:"medication_b"`
	Type           string    `db:"interaction_type" json:"interaction_type"`
	Description    string    `db:"description" json:"description"`
	ClinicalEffect string    `db:"clinical_effect" json:"clinical_effect"`
	Mechanism      *string   `db:"mechanism" json:"mechanism,omitempty"`
	Management     string    `db:"management" json:"management"`
	EvidenceLevel  *string   `db:"evidence_level" json:"evidence_level,omitempty"`
	Severity       int       `db:"severity" json:"severity"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Interaction types, ordered by clinical significance.
const (
	TypeMinor           = "minor"
	TypeModerate        = "moderate"
	TypeMajor           = "major"
	TypeContraindicated = "contraindicated"
)
