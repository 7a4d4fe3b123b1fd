package profile

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pharmd/pharmd/pkg/errs"
)

var validMedicationStatuses = map[string]bool{
	MedicationActive:       true,
	MedicationDiscontinued: true,
	MedicationOnHold:       true,
}

var validReactionTypes = map[string]bool{
	ReactionMild:            true,
	ReactionModerate:        true,
	ReactionSevere:          true,
	ReactionLifeThreatening: true,
}

var validAlertTypes = map[string]bool{
	AlertAllergy:           true,
	AlertInteraction:       true,
	AlertDuplication:       true,
	AlertContraindication:  true,
	AlertAgeRelated:        true,
	AlertRenalAdjustment:   true,
	AlertHepaticAdjustment: true,
}

var validAlertSeverities = map[string]bool{
	SeverityLow:      true,
	SeverityMedium:   true,
	SeverityHigh:     true,
	SeverityCritical: true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetOrCreate returns the profile for the (patient, pharmacist) pair,
// creating an empty one on first access.
func (s *Service) GetOrCreate(ctx context.Context, patientID, pharmacistID uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetByPatient(ctx, patientID, pharmacistID)
	if err == nil {
		p.ApplyCounts()
		return p, nil
	}
	if !errs.IsNotFound(err) {
		return nil, err
	}
	p = &Profile{PatientID: patientID, PharmacistID: pharmacistID}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	p.ApplyCounts()
	return p, nil
}

// Get returns the profile or NotFound; it never creates one.
func (s *Service) Get(ctx context.Context, patientID, pharmacistID uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetByPatient(ctx, patientID, pharmacistID)
	if err != nil {
		return nil, err
	}
	p.ApplyCounts()
	return p, nil
}

// UpsertMedications merges the given medications into the profile's current
// list: entries matching an existing medication by case-insensitive name
// replace it, the rest are appended.
func (s *Service) UpsertMedications(ctx context.Context, patientID, pharmacistID uuid.UUID, meds []Medication) (*Profile, error) {
	if len(meds) == 0 {
		return nil, errs.Validationf("at least one medication is required")
	}
	for i := range meds {
		if strings.TrimSpace(meds[i].Name) == "" {
			return nil, errs.Validationf("medication name is required")
		}
		if meds[i].Status == "" {
			meds[i].Status = MedicationActive
		}
		if !validMedicationStatuses[meds[i].Status] {
			return nil, errs.Validationf("invalid medication status: %s", meds[i].Status)
		}
	}

	return s.mutate(ctx, patientID, pharmacistID, func(p *Profile) error {
		for _, med := range meds {
			replaced := false
			for i := range p.CurrentMedications {
				if strings.EqualFold(p.CurrentMedications[i].Name, med.Name) {
					p.CurrentMedications[i] = med
					replaced = true
					break
				}
			}
			if !replaced {
				p.CurrentMedications = append(p.CurrentMedications, med)
			}
		}
		return nil
	})
}

func (s *Service) AddAllergy(ctx context.Context, patientID, pharmacistID uuid.UUID, a Allergy) (*Profile, error) {
	if strings.TrimSpace(a.Allergen) == "" {
		return nil, errs.Validationf("allergen is required")
	}
	if !validReactionTypes[a.ReactionType] {
		return nil, errs.Validationf("invalid reaction type: %s", a.ReactionType)
	}
	if a.DateReported.IsZero() {
		a.DateReported = time.Now().UTC()
	}
	return s.mutate(ctx, patientID, pharmacistID, func(p *Profile) error {
		p.Allergies = append(p.Allergies, a)
		return nil
	})
}

func (s *Service) AddCondition(ctx context.Context, patientID, pharmacistID uuid.UUID, c Condition) (*Profile, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, errs.Validationf("condition name is required")
	}
	return s.mutate(ctx, patientID, pharmacistID, func(p *Profile) error {
		p.Conditions = append(p.Conditions, c)
		return nil
	})
}

func (s *Service) AddAlert(ctx context.Context, patientID, pharmacistID uuid.UUID, a Alert) (*Profile, error) {
	if !validAlertTypes[a.Type] {
		return nil, errs.Validationf("invalid alert type: %s", a.Type)
	}
	if !validAlertSeverities[a.Severity] {
		return nil, errs.Validationf("invalid alert severity: %s", a.Severity)
	}
	if strings.TrimSpace(a.Message) == "" {
		return nil, errs.Validationf("alert message is required")
	}
	a.ID = uuid.New()
	a.Active = true
	a.DateCreated = time.Now().UTC()
	return s.mutate(ctx, patientID, pharmacistID, func(p *Profile) error {
		p.Alerts = append(p.Alerts, a)
		return nil
	})
}

// AcknowledgeAlert marks the alert acknowledged and inactive.
func (s *Service) AcknowledgeAlert(ctx context.Context, patientID, pharmacistID, alertID uuid.UUID, acknowledgedBy string) (*Profile, error) {
	return s.mutate(ctx, patientID, pharmacistID, func(p *Profile) error {
		for i := range p.Alerts {
			if p.Alerts[i].ID == alertID {
				now := time.Now().UTC()
				p.Alerts[i].Active = false
				p.Alerts[i].AcknowledgedBy = &acknowledgedBy
				p.Alerts[i].AcknowledgedAt = &now
				return nil
			}
		}
		return errs.NotFoundf("alert %s not found on profile", alertID)
	})
}

func (s *Service) SetCompliance(ctx context.Context, patientID, pharmacistID uuid.UUID, c Compliance) (*Profile, error) {
	if c.OverallAdherence != nil && (*c.OverallAdherence < 0 || *c.OverallAdherence > 100) {
		return nil, errs.Validationf("overall adherence must be between 0 and 100")
	}
	return s.mutate(ctx, patientID, pharmacistID, func(p *Profile) error {
		p.Compliance = c
		return nil
	})
}

// Retire flags the profile retired. The row is kept; retired profiles reject
// further mutations.
func (s *Service) Retire(ctx context.Context, patientID, pharmacistID uuid.UUID) error {
	p, err := s.repo.GetByPatient(ctx, patientID, pharmacistID)
	if err != nil {
		return err
	}
	if p.Retired {
		return nil
	}
	p.Retired = true
	return s.repo.Update(ctx, p)
}

// RecordRefill updates the medication history after a completed dispense:
// matching active medications get LastRefillDate=now and NextRefillDue
// pushed out by their refill interval; dispensed medications not yet on the
// profile are appended as active entries.
func (s *Service) RecordRefill(ctx context.Context, patientID, pharmacistID uuid.UUID, meds []Medication, now time.Time, defaultIntervalDays int) (*Profile, error) {
	return s.mutate(ctx, patientID, pharmacistID, func(p *Profile) error {
		for _, med := range meds {
			found := false
			for i := range p.CurrentMedications {
				if strings.EqualFold(p.CurrentMedications[i].Name, med.Name) {
					applyRefill(&p.CurrentMedications[i], now, defaultIntervalDays)
					found = true
					break
				}
			}
			if !found {
				entry := med
				entry.Status = MedicationActive
				applyRefill(&entry, now, defaultIntervalDays)
				p.CurrentMedications = append(p.CurrentMedications, entry)
			}
		}
		return nil
	})
}

func applyRefill(m *Medication, now time.Time, defaultIntervalDays int) {
	interval := defaultIntervalDays
	if m.RefillIntervalDays != nil && *m.RefillIntervalDays > 0 {
		interval = *m.RefillIntervalDays
	}
	refill := now
	due := now.AddDate(0, 0, interval)
	m.LastRefillDate = &refill
	m.NextRefillDue = &due
}

// SaveAdherence persists per-medication adherence scores and the overall
// compliance figure from an assessment run.
func (s *Service) SaveAdherence(ctx context.Context, patientID, pharmacistID uuid.UUID, scores map[string]float64, overall float64, assessedBy string, now time.Time) error {
	_, err := s.mutate(ctx, patientID, pharmacistID, func(p *Profile) error {
		for i := range p.CurrentMedications {
			if score, ok := scores[strings.ToLower(p.CurrentMedications[i].Name)]; ok {
				v := score
				p.CurrentMedications[i].AdherenceScore = &v
			}
		}
		p.Compliance.OverallAdherence = &overall
		p.Compliance.LastAssessmentDate = &now
		p.Compliance.AssessedBy = &assessedBy
		return nil
	})
	return err
}

// mutate runs a read-modify-write cycle on the profile, creating it on first
// touch. Retired profiles reject mutation.
func (s *Service) mutate(ctx context.Context, patientID, pharmacistID uuid.UUID, fn func(*Profile) error) (*Profile, error) {
	p, err := s.GetOrCreate(ctx, patientID, pharmacistID)
	if err != nil {
		return nil, err
	}
	if p.Retired {
		return nil, errs.Validationf("profile for patient %s is retired", patientID)
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	p.ApplyCounts()
	return p, nil
}
