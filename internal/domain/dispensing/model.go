package dispensing

import (
	"time"

	"github.com/google/uuid"
)

// Dispense record statuses.
const (
	StatusPending         = "pending"
	StatusInProgress      = "in-progress"
	StatusCompleted       = "completed"
	StatusPartiallyFilled = "partially-filled"
	StatusCancelled       = "cancelled"
	StatusOnHold          = "on-hold"
)

// Verification statuses.
const (
	VerificationPending               = "pending"
	VerificationVerified              = "verified"
	VerificationRejected              = "rejected"
	VerificationRequiresClarification = "requires-clarification"
)

// Payment methods.
const (
	PaymentCash             = "cash"
	PaymentCard             = "card"
	PaymentInsurance        = "insurance"
	PaymentPartialInsurance = "partial-insurance"
	PaymentVoucher          = "voucher"
)

// validTransitions is the dispensing state machine. Completed and cancelled
// have no outgoing edges.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusInProgress: true,
		StatusOnHold:     true,
		StatusCancelled:  true,
	},
	StatusInProgress: {
		StatusCompleted:       true,
		StatusPartiallyFilled: true,
		StatusOnHold:          true,
		StatusCancelled:       true,
	},
	StatusOnHold: {
		StatusPending:    true,
		StatusInProgress: true,
		StatusCancelled:  true,
	},
	StatusPartiallyFilled: {
		StatusCompleted: true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransition reports whether the state machine allows moving from one
// status to another.
func CanTransition(from, to string) bool {
	return validTransitions[from][to]
}

// Line is one dispensed medication on a record.
type Line struct {
	InventoryItemID     uuid.UUID  `json:"inventory_item_id"`
	MedicationName      string     `json:"medication_name"`
	PrescribedDosage    string     `json:"prescribed_dosage"`
	PrescribedFrequency string     `json:"prescribed_frequency"`
	PrescribedDuration  string     `json:"prescribed_duration"`
	DispensedQuantity   int        `json:"dispensed_quantity"`
	DaysSupply          int        `json:"days_supply"`
	UnitPrice           float64    `json:"unit_price"`
	TotalPrice          float64    `json:"total_price"`
	BatchNumber         *string    `json:"batch_number,omitempty"`
	ExpiryDate          *time.Time `json:"expiry_date,omitempty"`
	Substituted         bool       `json:"substituted"`
	SubstitutionReason  *string    `json:"substitution_reason,omitempty"`
	CounselingProvided  bool       `json:"counseling_provided"`
	CounselingNotes     *string    `json:"counseling_notes,omitempty"`
}

// Payment records how the dispense was paid for.
type Payment struct {
	Method         string  `json:"method"`
	AmountPaid     float64 `json:"amount_paid"`
	InsuranceClaim *string `json:"insurance_claim,omitempty"`
}

// PickupPerson identifies who collected the medications.
type PickupPerson struct {
	Name         string  `json:"name"`
	Relationship *string `json:"relationship,omitempty"`
	IDVerified   bool    `json:"id_verified"`
}

// Pickup records collection of the dispensed medications.
type Pickup struct {
	PickedUp     bool          `json:"picked_up"`
	PickupDate   *time.Time    `json:"pickup_date,omitempty"`
	PickupPerson *PickupPerson `json:"pickup_person,omitempty"`
}

// QualityChecks is the pre-release checklist.
type QualityChecks struct {
	LabelAccuracy    bool       `json:"label_accuracy"`
	QuantityAccuracy bool       `json:"quantity_accuracy"`
	ExpiryDateCheck  bool       `json:"expiry_date_check"`
	FinalReview      bool       `json:"final_review"`
	ReviewedBy       *string    `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
}

// Record is one dispensing workflow run for a prescription. Records are never
// deleted; cancellation is a terminal status.
type Record struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PrescriptionID     uuid.UUID  `db:"prescription_id" json:"prescription_id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	PharmacistID       uuid.UUID  `db:"pharmacist_id" json:"pharmacist_id"`
	PrescriberID       *uuid.UUID `db:"prescriber_id" json:"prescriber_id,omitempty"`
	RecordNumber       string     `db:"record_number" json:"record_number"`
	VerificationStatus string     `db:"verification_status" json:"verification_status"`
	VerificationNotes  *string    `db:"verification_notes" json:"verification_notes,omitempty"`
	Status             string     `db:"status" json:"status"`
	HoldReason         *string    `db:"hold_reason" json:"hold_reason,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	// DispensedAt marks that the lines' stock deductions have been applied.
	// A stamped record must never be dispensed again.
	DispensedAt      *time.Time     `db:"dispensed_at" json:"dispensed_at,omitempty"`
	Lines            []Line         `db:"-" json:"lines"`
	TotalAmount      float64        `db:"total_amount" json:"total_amount"`
	Payment          *Payment       `db:"payment" json:"payment,omitempty"`
	Pickup           *Pickup        `db:"pickup" json:"pickup,omitempty"`
	QualityChecks    *QualityChecks `db:"quality_checks" json:"quality_checks,omitempty"`
	RefillsRemaining int            `db:"refills_remaining" json:"refills_remaining"`
	MaxRefills       int            `db:"max_refills" json:"max_refills"`
	Version          int            `db:"version" json:"version"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the record is in a terminal status.
func (r *Record) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusCancelled
}
