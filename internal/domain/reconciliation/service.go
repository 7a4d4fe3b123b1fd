package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pharmd/pharmd/internal/domain/profile"
	"github.com/pharmd/pharmd/pkg/errs"
)

// ProfileStore is the slice of the profile service the engine needs.
// *profile.Service satisfies it.
type ProfileStore interface {
	GetOrCreate(ctx context.Context, patientID, pharmacistID uuid.UUID) (*profile.Profile, error)
	UpsertMedications(ctx context.Context, patientID, pharmacistID uuid.UUID, meds []profile.Medication) (*profile.Profile, error)
}

// Tx runs a function inside one database transaction. *db.TxRunner satisfies
// it; tests pass a passthrough.
type Tx interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo     Repository
	profiles ProfileStore
	tx       Tx
	logger   zerolog.Logger
}

func NewService(repo Repository, profiles ProfileStore, tx Tx, logger zerolog.Logger) *Service {
	return &Service{repo: repo, profiles: profiles, tx: tx, logger: logger}
}

// Perform compares the profile's active medication list against what the
// patient reported and records every discrepancy. A run with no
// discrepancies is created already resolved.
func (s *Service) Perform(ctx context.Context, patientID, pharmacistID uuid.UUID, sources []string, reported []ReportedMedication) (*Record, error) {
	for _, r := range reported {
		if strings.TrimSpace(r.Name) == "" {
			return nil, errs.Validationf("reported medication name is required")
		}
	}

	prof, err := s.profiles.GetOrCreate(ctx, patientID, pharmacistID)
	if err != nil {
		return nil, err
	}

	var active []profile.Medication
	for _, m := range prof.CurrentMedications {
		if m.Status == profile.MedicationActive {
			active = append(active, m)
		}
	}

	discrepancies := compare(active, reported)

	now := time.Now().UTC()
	rec := &Record{
		PatientID:     patientID,
		PerformedBy:   pharmacistID,
		Sources:       sources,
		Discrepancies: discrepancies,
		Status:        StatusPending,
		ReconciledAt:  now,
	}
	if len(discrepancies) == 0 {
		rec.Status = StatusResolved
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("record_id", rec.ID.String()).
		Str("patient_id", patientID.String()).
		Int("discrepancies", len(discrepancies)).
		Msg("medication reconciliation performed")
	return rec, nil
}

// compare produces the three discrepancy classes: active profile medications
// the patient did not report, dosage mismatches on medications both sides
// know, and reported medications missing from the profile. Name matching is
// case-insensitive and exact.
func compare(active []profile.Medication, reported []ReportedMedication) []Discrepancy {
	var out []Discrepancy

	for _, med := range active {
		match, found := findReported(reported, med.Name)
		if !found {
			out = append(out, Discrepancy{
				Type:           TypeProfileNotReported,
				MedicationName: med.Name,
				Description:    fmt.Sprintf("%s is on the profile but the patient did not report taking it", med.Name),
				Status:         StatusPending,
			})
			continue
		}
		profDosage := strings.TrimSpace(med.Dosage)
		repDosage := strings.TrimSpace(match.Dosage)
		if profDosage != "" && repDosage != "" && profDosage != repDosage {
			dosage := repDosage
			out = append(out, Discrepancy{
				Type:           TypeDosageMismatch,
				MedicationName: med.Name,
				Description:    fmt.Sprintf("%s dosage differs: profile has %s, patient reports %s", med.Name, profDosage, repDosage),
				ReportedDosage: &dosage,
				Status:         StatusPending,
			})
		}
	}

	for _, rep := range reported {
		if findActive(active, rep.Name) {
			continue
		}
		dosage := strings.TrimSpace(rep.Dosage)
		d := Discrepancy{
			Type:           TypeReportedNotInProfile,
			MedicationName: rep.Name,
			Description:    fmt.Sprintf("patient reports taking %s but it is not on the profile", rep.Name),
			Status:         StatusPending,
		}
		if dosage != "" {
			d.ReportedDosage = &dosage
		}
		out = append(out, d)
	}
	return out
}

func findReported(reported []ReportedMedication, name string) (ReportedMedication, bool) {
	for _, r := range reported {
		if strings.EqualFold(strings.TrimSpace(r.Name), strings.TrimSpace(name)) {
			return r, true
		}
	}
	return ReportedMedication{}, false
}

func findActive(active []profile.Medication, name string) bool {
	for _, m := range active {
		if strings.EqualFold(strings.TrimSpace(m.Name), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// ResolveDiscrepancy marks the discrepancy at index resolved. When no pending
// entries remain the record auto-resolves. With updateProfile the profile
// medication list is patched according to the discrepancy type, in the same
// transaction as the record update.
func (s *Service) ResolveDiscrepancy(ctx context.Context, recordID uuid.UUID, index int, resolution, resolvedBy string, updateProfile bool) (*Record, error) {
	if strings.TrimSpace(resolution) == "" {
		return nil, errs.Validationf("resolution is required")
	}

	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(rec.Discrepancies) {
		return nil, errs.Validationf("discrepancy index %d out of range", index)
	}
	if rec.Discrepancies[index].Status != StatusPending {
		return nil, errs.Validationf("discrepancy %d is already resolved", index)
	}

	now := time.Now().UTC()
	rec.Discrepancies[index].Status = StatusResolved
	rec.Discrepancies[index].Resolution = &resolution
	rec.Discrepancies[index].ResolvedBy = &resolvedBy
	rec.Discrepancies[index].ResolvedAt = &now
	if rec.PendingCount() == 0 {
		rec.Status = StatusResolved
		rec.ReconciledAt = now
	}

	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		if updateProfile {
			if err := s.patchProfile(txCtx, rec, rec.Discrepancies[index]); err != nil {
				return err
			}
		}
		return s.repo.Update(txCtx, rec)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("record_id", rec.ID.String()).
		Int("index", index).
		Str("type", rec.Discrepancies[index].Type).
		Bool("profile_updated", updateProfile).
		Msg("reconciliation discrepancy resolved")
	return rec, nil
}

func (s *Service) patchProfile(ctx context.Context, rec *Record, d Discrepancy) error {
	switch d.Type {
	case TypeReportedNotInProfile:
		med := profile.Medication{Name: d.MedicationName, Status: profile.MedicationActive}
		if d.ReportedDosage != nil {
			med.Dosage = *d.ReportedDosage
		}
		_, err := s.profiles.UpsertMedications(ctx, rec.PatientID, rec.PerformedBy, []profile.Medication{med})
		return err
	case TypeDosageMismatch:
		return s.patchExisting(ctx, rec, d.MedicationName, func(m *profile.Medication) {
			if d.ReportedDosage != nil {
				m.Dosage = *d.ReportedDosage
			}
		})
	case TypeProfileNotReported:
		return s.patchExisting(ctx, rec, d.MedicationName, func(m *profile.Medication) {
			m.Status = profile.MedicationDiscontinued
		})
	default:
		return errs.Validationf("unknown discrepancy type: %s", d.Type)
	}
}

func (s *Service) patchExisting(ctx context.Context, rec *Record, name string, fn func(*profile.Medication)) error {
	prof, err := s.profiles.GetOrCreate(ctx, rec.PatientID, rec.PerformedBy)
	if err != nil {
		return err
	}
	for _, m := range prof.CurrentMedications {
		if strings.EqualFold(m.Name, name) {
			fn(&m)
			_, err := s.profiles.UpsertMedications(ctx, rec.PatientID, rec.PerformedBy, []profile.Medication{m})
			return err
		}
	}
	// The medication left the profile since the run; nothing to patch.
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
