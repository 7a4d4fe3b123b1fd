package adherence

import (
	"time"

	"github.com/google/uuid"
)

// Adherence buckets.
const (
	StatusExcellent = "excellent"
	StatusGood      = "good"
	StatusFair      = "fair"
	StatusPoor      = "poor"
)

// Bucket maps a score to its adherence bucket.
func Bucket(score float64) string {
	switch {
	case score >= 90:
		return StatusExcellent
	case score >= 80:
		return StatusGood
	case score >= 70:
		return StatusFair
	default:
		return StatusPoor
	}
}

// MedicationAdherence is the per-medication assessment result.
type MedicationAdherence struct {
	Name          string     `json:"name"`
	Score         float64    `json:"score"`
	Status        string     `json:"status"`
	MissedRefills int        `json:"missed_refills"`
	LastDispensed *time.Time `json:"last_dispensed,omitempty"`
}

// Assessment is the outcome of one adherence run.
type Assessment struct {
	PatientID     uuid.UUID             `json:"patient_id"`
	PerMedication []MedicationAdherence `json:"per_medication"`
	Overall       float64               `json:"overall"`
	OverallStatus string                `json:"overall_status"`
	AssessedAt    time.Time             `json:"assessed_at"`
}
