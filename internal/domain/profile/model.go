package profile

import (
	"time"

	"github.com/google/uuid"
)

// Medication statuses on a profile.
const (
	MedicationActive       = "active"
	MedicationDiscontinued = "discontinued"
	MedicationOnHold       = "on-hold"
)

// Allergy reaction types.
const (
	ReactionMild            = "mild"
	ReactionModerate        = "moderate"
	ReactionSevere          = "severe"
	ReactionLifeThreatening = "life-threatening"
)

// Alert types.
const (
	AlertAllergy           = "allergy"
	AlertInteraction       = "interaction"
	AlertDuplication       = "duplication"
	AlertContraindication  = "contraindication"
	AlertAgeRelated        = "age-related"
	AlertRenalAdjustment   = "renal-adjustment"
	AlertHepaticAdjustment = "hepatic-adjustment"
)

// Alert severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Medication is one entry in a profile's current medication list.
type Medication struct {
	Name               string     `json:"name"`
	Dosage             string     `json:"dosage"`
	Frequency          string     `json:"frequency"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	PrescribedBy       *string    `json:"prescribed_by,omitempty"`
	Indication         *string    `json:"indication,omitempty"`
	Status             string     `json:"status"`
	AdherenceScore     *float64   `json:"adherence_score,omitempty"`
	RefillIntervalDays *int       `json:"refill_interval_days,omitempty"`
	LastRefillDate     *time.Time `json:"last_refill_date,omitempty"`
	NextRefillDue      *time.Time `json:"next_refill_due,omitempty"`
}

// Allergy is a recorded patient allergy.
type Allergy struct {
	Allergen     string    `json:"allergen"`
	ReactionType string    `json:"reaction_type"`
	Symptoms     []string  `json:"symptoms"`
	DateReported time.Time `json:"date_reported"`
	ReportedBy   *string   `json:"reported_by,omitempty"`
	Verified     bool      `json:"verified"`
}

// Condition is a recorded patient condition.
type Condition struct {
	Name          string     `json:"name"`
	DiagnosisDate *time.Time `json:"diagnosis_date,omitempty"`
	Severity      *string    `json:"severity,omitempty"`
	Status        *string    `json:"status,omitempty"`
}

// Compliance captures the latest adherence assessment for the patient.
type Compliance struct {
	OverallAdherence   *float64   `json:"overall_adherence,omitempty"`
	Barriers           []string   `json:"barriers,omitempty"`
	Interventions      []string   `json:"interventions,omitempty"`
	LastAssessmentDate *time.Time `json:"last_assessment_date,omitempty"`
	AssessedBy         *string    `json:"assessed_by,omitempty"`
}

// Alert is a clinical alert attached to a profile.
type Alert struct {
	ID             uuid.UUID  `json:"id"`
	Type           string     `json:"type"`
	Severity       string     `json:"severity"`
	Message        string     `json:"message"`
	Active         bool       `json:"active"`
	DateCreated    time.Time  `json:"date_created"`
	AcknowledgedBy *string    `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// Profile is a patient's pharmacy profile, keyed by (patient, pharmacist).
// The nested lists are stored as JSONB documents.
type Profile struct {
	ID                 uuid.UUID    `db:"id" json:"id"`
	PatientID          uuid.UUID    `db:"patient_id" json:"patient_id"`
	PharmacistID       uuid.UUID    `db:"pharmacist_id" json:"pharmacist_id"`
	CurrentMedications []Medication `db:"current_medications" json:"current_medications"`
	Allergies          []Allergy    `db:"allergies" json:"allergies"`
	Conditions         []Condition  `db:"conditions" json:"conditions"`
	Compliance         Compliance   `db:"compliance" json:"compliance"`
	Alerts             []Alert      `db:"alerts" json:"alerts"`
	Retired            bool         `db:"retired" json:"retired"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`

	// Derived on read, never persisted.
	ActiveMedicationCount  int `db:"-" json:"active_medication_count"`
	HighPriorityAlertCount int `db:"-" json:"high_priority_alert_count"`
}

// ApplyCounts fills the derived counters from the current document state.
// High priority means an active alert of high or critical severity.
func (p *Profile) ApplyCounts() {
	active := 0
	for _, m := range p.CurrentMedications {
		if m.Status == MedicationActive {
			active++
		}
	}
	p.ActiveMedicationCount = active

	high := 0
	for _, a := range p.Alerts {
		if a.Active && (a.Severity == SeverityHigh || a.Severity == SeverityCritical) {
			high++
		}
	}
	p.HighPriorityAlertCount = high
}
