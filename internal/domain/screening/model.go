package screening

import "github.com/google/uuid"

// MedicationRef identifies one medication in a screening request.
type MedicationRef struct {
	Name string  `json:"name"`
	NDC  *string `json:"ndc,omitempty"`
}

// Request is the input to a safety screen. When PatientID is set, the
// patient's recorded allergies and conditions are merged into the screen in
// addition to whatever the caller supplies.
type Request struct {
	PatientID     *uuid.UUID      `json:"patient_id,omitempty"`
	Medications   []MedicationRef `json:"medications"`
	Allergies     []string        `json:"allergies"`
	Conditions    []string        `json:"conditions"`
	PatientAge    *int            `json:"patient_age,omitempty"`
	PatientWeight *float64        `json:"patient_weight,omitempty"`
}

// Finding reports one known interaction between two requested medications.
type Finding struct {
	MedicationA    string `json:"medication_a"`
	MedicationB    string `json:"medication_b"`
	Type           string `json:"interaction_type"`
	Severity       int    `json:"severity"`
	Description    string `json:"description"`
	ClinicalEffect string `json:"clinical_effect"`
	Management     string `json:"management"`
}

// AllergyAlert reports a requested medication matching a recorded allergy.
type AllergyAlert struct {
	Medication string `json:"medication"`
	Allergen   string `json:"allergen"`
}

// SourceStatus tags how much of the screen could be completed.
type SourceStatus string

const (
	// SourceOK: catalog consulted and, when configured, advisory analysis
	// succeeded.
	SourceOK SourceStatus = "ok"
	// SourceDegraded: catalog findings are present but the advisory call
	// failed or timed out.
	SourceDegraded SourceStatus = "degraded"
	// SourceUnavailable: the catalog itself could not be read.
	SourceUnavailable SourceStatus = "unavailable"
)

// Result is the outcome of a safety screen. Findings are sorted by severity
// descending.
type Result struct {
	Findings      []Finding      `json:"findings"`
	AllergyAlerts []AllergyAlert `json:"allergy_alerts"`
	Source        SourceStatus   `json:"source"`
	SourceReason  string         `json:"source_reason,omitempty"`
	Analysis      *string        `json:"analysis,omitempty"`
}
