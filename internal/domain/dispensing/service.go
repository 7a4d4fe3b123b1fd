package dispensing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pharmd/pharmd/internal/domain/profile"
	"github.com/pharmd/pharmd/pkg/errs"
)

// Ledger is the slice of the inventory service the workflow needs.
// *inventory.Service satisfies it.
type Ledger interface {
	Deduct(ctx context.Context, id uuid.UUID, qty int) error
}

// ProfileStore updates the patient medication history when a record
// completes. *profile.Service satisfies it.
type ProfileStore interface {
	RecordRefill(ctx context.Context, patientID, pharmacistID uuid.UUID, meds []profile.Medication, now time.Time, defaultIntervalDays int) (*profile.Profile, error)
}

// Tx runs a function inside one database transaction. *db.TxRunner satisfies
// it.
type Tx interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var validPaymentMethods = map[string]bool{
	PaymentCash:             true,
	PaymentCard:             true,
	PaymentInsurance:        true,
	PaymentPartialInsurance: true,
	PaymentVoucher:          true,
}

type Service struct {
	repo               Repository
	ledger             Ledger
	profiles           ProfileStore
	tx                 Tx
	logger             zerolog.Logger
	refillIntervalDays int
}

func NewService(repo Repository, ledger Ledger, profiles ProfileStore, tx Tx, logger zerolog.Logger, refillIntervalDays int) *Service {
	return &Service{
		repo:               repo,
		ledger:             ledger,
		profiles:           profiles,
		tx:                 tx,
		logger:             logger,
		refillIntervalDays: refillIntervalDays,
	}
}

// CreateInput is the prescription intake payload.
type CreateInput struct {
	PrescriptionID uuid.UUID  `json:"prescription_id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	PrescriberID   *uuid.UUID `json:"prescriber_id,omitempty"`
	MaxRefills     int        `json:"max_refills"`
}

// Create opens a new dispense record in pending status with a fresh record
// number. A number collision is retried once before failing.
func (s *Service) Create(ctx context.Context, in CreateInput, pharmacistID uuid.UUID) (*Record, error) {
	if in.PrescriptionID == uuid.Nil {
		return nil, errs.Validationf("prescription_id is required")
	}
	if in.PatientID == uuid.Nil {
		return nil, errs.Validationf("patient_id is required")
	}
	if in.MaxRefills < 0 {
		return nil, errs.Validationf("max_refills cannot be negative")
	}

	rec := &Record{
		PrescriptionID:     in.PrescriptionID,
		PatientID:          in.PatientID,
		PharmacistID:       pharmacistID,
		PrescriberID:       in.PrescriberID,
		RecordNumber:       NewRecordNumber(time.Now()),
		VerificationStatus: VerificationPending,
		Status:             StatusPending,
		RefillsRemaining:   in.MaxRefills,
		MaxRefills:         in.MaxRefills,
	}

	err := s.repo.Create(ctx, rec)
	if errors.Is(err, errs.ErrDuplicateRecordNumber) {
		rec.RecordNumber = NewRecordNumber(time.Now())
		err = s.repo.Create(ctx, rec)
	}
	if err != nil {
		return nil, err
	}

	s.audit(rec, "dispense record created")
	return rec, nil
}

// VerifyInput carries the pharmacist's verification decision.
type VerifyInput struct {
	Decision string  `json:"decision"`
	Lines    []Line  `json:"lines,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

// Verify applies the verification decision. Approval requires at least one
// line with a positive quantity and moves the record to in-progress; a
// rejection cancels the record; requires-clarification keeps it pending.
func (s *Service) Verify(ctx context.Context, id uuid.UUID, in VerifyInput) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Terminal() {
		return nil, fmt.Errorf("%w: record %s is %s", errs.ErrInvalidStateTransition, rec.RecordNumber, rec.Status)
	}
	if rec.VerificationStatus == VerificationVerified {
		return nil, errs.Validationf("record %s is already verified", rec.RecordNumber)
	}

	switch in.Decision {
	case VerificationVerified:
		if err := validateLines(in.Lines); err != nil {
			return nil, err
		}
		if !CanTransition(rec.Status, StatusInProgress) {
			return nil, fmt.Errorf("%w: cannot start dispensing from %s", errs.ErrInvalidStateTransition, rec.Status)
		}
		total := 0.0
		for i := range in.Lines {
			if in.Lines[i].TotalPrice == 0 {
				in.Lines[i].TotalPrice = in.Lines[i].UnitPrice * float64(in.Lines[i].DispensedQuantity)
			}
			total += in.Lines[i].TotalPrice
		}
		rec.Lines = in.Lines
		rec.TotalAmount = total
		rec.VerificationStatus = VerificationVerified
		rec.Status = StatusInProgress
	case VerificationRejected:
		if !CanTransition(rec.Status, StatusCancelled) {
			return nil, fmt.Errorf("%w: cannot cancel from %s", errs.ErrInvalidStateTransition, rec.Status)
		}
		rec.VerificationStatus = VerificationRejected
		rec.Status = StatusCancelled
		reason := "verification rejected"
		if in.Notes != nil {
			reason = *in.Notes
		}
		rec.CancellationReason = &reason
	case VerificationRequiresClarification:
		rec.VerificationStatus = VerificationRequiresClarification
	default:
		return nil, errs.Validationf("invalid verification decision: %s", in.Decision)
	}
	rec.VerificationNotes = in.Notes

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.audit(rec, "dispense record verification "+in.Decision)
	return rec, nil
}

func validateLines(lines []Line) error {
	if len(lines) == 0 {
		return errs.Validationf("verification requires at least one line")
	}
	for i, l := range lines {
		if l.InventoryItemID == uuid.Nil {
			return errs.Validationf("line %d: inventory_item_id is required", i)
		}
		if strings.TrimSpace(l.MedicationName) == "" {
			return errs.Validationf("line %d: medication_name is required", i)
		}
		if l.DispensedQuantity <= 0 {
			return errs.Validationf("line %d: dispensed_quantity must be positive", i)
		}
		if l.UnitPrice < 0 || l.TotalPrice < 0 {
			return errs.Validationf("line %d: prices cannot be negative", i)
		}
	}
	return nil
}

// DispenseInput carries payment, pickup, counseling and quality-check data
// captured at the counter.
type DispenseInput struct {
	Payment       *Payment         `json:"payment,omitempty"`
	Pickup        *Pickup          `json:"pickup,omitempty"`
	QualityChecks *QualityChecks   `json:"quality_checks,omitempty"`
	Counseling    []CounselingNote `json:"counseling,omitempty"`
	PartialFill   bool             `json:"partial_fill,omitempty"`
}

// CounselingNote marks counseling on one line by index.
type CounselingNote struct {
	LineIndex int     `json:"line_index"`
	Provided  bool    `json:"provided"`
	Notes     *string `json:"notes,omitempty"`
}

// Dispense deducts every line from inventory in a single transaction. An
// insufficient balance on any line rolls the whole deduction back and parks
// the record on hold with a reason naming the medication. With pickup
// confirmed the record completes; a partial fill moves it to
// partially-filled; otherwise it stays in progress awaiting pickup.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID, in DispenseInput) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Terminal() {
		return nil, fmt.Errorf("%w: record %s is %s", errs.ErrInvalidStateTransition, rec.RecordNumber, rec.Status)
	}
	if rec.Status != StatusInProgress {
		return nil, fmt.Errorf("%w: dispensing requires in-progress, record %s is %s",
			errs.ErrInvalidStateTransition, rec.RecordNumber, rec.Status)
	}
	if rec.DispensedAt != nil {
		return nil, fmt.Errorf("%w: record %s was already dispensed, confirm pickup instead",
			errs.ErrInvalidStateTransition, rec.RecordNumber)
	}
	if rec.VerificationStatus != VerificationVerified {
		return nil, errs.Validationf("record %s is not verified", rec.RecordNumber)
	}
	if in.Payment != nil {
		if !validPaymentMethods[in.Payment.Method] {
			return nil, errs.Validationf("invalid payment method: %s", in.Payment.Method)
		}
		if in.Payment.AmountPaid < 0 {
			return nil, errs.Validationf("amount paid cannot be negative")
		}
	}
	for _, note := range in.Counseling {
		if note.LineIndex < 0 || note.LineIndex >= len(rec.Lines) {
			return nil, errs.Validationf("counseling line index %d out of range", note.LineIndex)
		}
	}

	// Deduction and the record update commit or roll back together: a lost
	// version check must not leave stock deducted, and a crash between the
	// two must not leave an unstamped record whose lines were deducted.
	now := time.Now().UTC()
	var shortage string
	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		for _, line := range rec.Lines {
			if err := s.ledger.Deduct(txCtx, line.InventoryItemID, line.DispensedQuantity); err != nil {
				if errors.Is(err, errs.ErrInsufficientStock) {
					shortage = line.MedicationName
				}
				return err
			}
		}

		rec.DispensedAt = &now
		rec.Payment = in.Payment
		rec.QualityChecks = in.QualityChecks
		if rec.QualityChecks != nil && rec.QualityChecks.ReviewedAt == nil {
			rec.QualityChecks.ReviewedAt = &now
		}
		for _, note := range in.Counseling {
			rec.Lines[note.LineIndex].CounselingProvided = note.Provided
			rec.Lines[note.LineIndex].CounselingNotes = note.Notes
		}

		switch {
		case in.Pickup != nil && in.Pickup.PickedUp:
			rec.Pickup = in.Pickup
			if rec.Pickup.PickupDate == nil {
				rec.Pickup.PickupDate = &now
			}
			if err := s.complete(txCtx, rec); err != nil {
				return err
			}
		case in.PartialFill:
			rec.Status = StatusPartiallyFilled
			if in.Pickup != nil {
				rec.Pickup = in.Pickup
			}
		default:
			if in.Pickup != nil {
				rec.Pickup = in.Pickup
			}
		}

		return s.repo.Update(txCtx, rec)
	})
	if err != nil {
		if shortage == "" {
			return nil, err
		}
		// The deduction rolled back as a whole; park the record instead of
		// failing the request.
		reason := fmt.Sprintf("insufficient stock for %s", shortage)
		rec.HoldReason = &reason
		rec.Status = StatusOnHold
		if updateErr := s.repo.Update(ctx, rec); updateErr != nil {
			return nil, updateErr
		}
		s.audit(rec, "dispense held: "+reason)
		return rec, nil
	}

	if rec.Status == StatusCompleted {
		s.recordProfileRefill(ctx, rec, now)
	}
	s.audit(rec, "dispense processed")
	return rec, nil
}

// ConfirmPickup completes a dispensed record waiting for collection.
func (s *Service) ConfirmPickup(ctx context.Context, id uuid.UUID, pickup Pickup) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(rec.Status, StatusCompleted) {
		return nil, fmt.Errorf("%w: cannot complete record %s from %s",
			errs.ErrInvalidStateTransition, rec.RecordNumber, rec.Status)
	}

	now := time.Now().UTC()
	pickup.PickedUp = true
	if pickup.PickupDate == nil {
		pickup.PickupDate = &now
	}
	rec.Pickup = &pickup
	if err := s.complete(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.recordProfileRefill(ctx, rec, now)
	s.audit(rec, "dispense picked up")
	return rec, nil
}

// complete moves the record to completed and refreshes the refill counter
// from the prescription's history.
func (s *Service) complete(ctx context.Context, rec *Record) error {
	rec.Status = StatusCompleted

	completed, err := s.repo.CountCompletedByPrescription(ctx, rec.PrescriptionID)
	if err != nil {
		return err
	}
	rec.RefillsRemaining = rec.MaxRefills - completed - 1
	if rec.RefillsRemaining < 0 {
		rec.RefillsRemaining = 0
	}
	return nil
}

// recordProfileRefill pushes the completed refill into the patient profile.
// It runs after the record's own transaction has committed: profile history
// is advisory and a failure there must not undo a completed dispense.
func (s *Service) recordProfileRefill(ctx context.Context, rec *Record, now time.Time) {
	meds := make([]profile.Medication, 0, len(rec.Lines))
	for _, l := range rec.Lines {
		meds = append(meds, profile.Medication{
			Name:      l.MedicationName,
			Dosage:    l.PrescribedDosage,
			Frequency: l.PrescribedFrequency,
		})
	}
	if len(meds) == 0 {
		return
	}
	if _, err := s.profiles.RecordRefill(ctx, rec.PatientID, rec.PharmacistID, meds, now, s.refillIntervalDays); err != nil {
		s.logger.Warn().Err(err).
			Str("record_number", rec.RecordNumber).
			Msg("failed to update profile medication history")
	}
}

// Hold parks a record.
func (s *Service) Hold(ctx context.Context, id uuid.UUID, reason string) (*Record, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errs.Validationf("hold reason is required")
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(rec.Status, StatusOnHold) {
		return nil, fmt.Errorf("%w: cannot hold record %s from %s",
			errs.ErrInvalidStateTransition, rec.RecordNumber, rec.Status)
	}
	rec.Status = StatusOnHold
	rec.HoldReason = &reason
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.audit(rec, "dispense held: "+reason)
	return rec, nil
}

// Release resumes a held record: back to in-progress once verified, back to
// pending otherwise.
func (s *Service) Release(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusOnHold {
		return nil, fmt.Errorf("%w: record %s is not on hold",
			errs.ErrInvalidStateTransition, rec.RecordNumber)
	}
	if rec.VerificationStatus == VerificationVerified {
		rec.Status = StatusInProgress
	} else {
		rec.Status = StatusPending
	}
	rec.HoldReason = nil
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.audit(rec, "dispense released from hold")
	return rec, nil
}

// Cancel terminally cancels a record.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Record, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errs.Validationf("cancellation reason is required")
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(rec.Status, StatusCancelled) {
		return nil, fmt.Errorf("%w: cannot cancel record %s from %s",
			errs.ErrInvalidStateTransition, rec.RecordNumber, rec.Status)
	}
	rec.Status = StatusCancelled
	rec.CancellationReason = &reason
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.audit(rec, "dispense cancelled: "+reason)
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByRecordNumber(ctx context.Context, number string) (*Record, error) {
	return s.repo.GetByRecordNumber(ctx, number)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Record, int, error) {
	if _, ok := validTransitions[status]; !ok {
		return nil, 0, errs.Validationf("invalid status: %s", status)
	}
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

func (s *Service) audit(rec *Record, msg string) {
	s.logger.Info().
		Str("record_number", rec.RecordNumber).
		Str("record_id", rec.ID.String()).
		Str("status", rec.Status).
		Str("verification_status", rec.VerificationStatus).
		Msg(msg)
}
