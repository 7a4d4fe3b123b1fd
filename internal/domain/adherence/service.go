package adherence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pharmd/pharmd/internal/domain/profile"
)

// ProfileStore is the slice of the profile service the engine needs.
// *profile.Service satisfies it.
type ProfileStore interface {
	GetOrCreate(ctx context.Context, patientID, pharmacistID uuid.UUID) (*profile.Profile, error)
	SaveAdherence(ctx context.Context, patientID, pharmacistID uuid.UUID, scores map[string]float64, overall float64, assessedBy string, now time.Time) error
}

// Each missed refill costs this many points off a perfect score.
const missedRefillPenalty = 20

type Service struct {
	profiles     ProfileStore
	intervalDays int
	lookbackDays int
	logger       zerolog.Logger
}

// NewService builds the engine. intervalDays is the default expected refill
// cadence; a medication's own RefillIntervalDays overrides it. lookbackDays
// caps how far back missed refills accumulate.
func NewService(profiles ProfileStore, intervalDays, lookbackDays int, logger zerolog.Logger) *Service {
	return &Service{
		profiles:     profiles,
		intervalDays: intervalDays,
		lookbackDays: lookbackDays,
		logger:       logger,
	}
}

// Assess scores every active medication on the profile and persists the
// results. A medication never dispensed, or one inside its refill window,
// scores 100. An empty profile is perfectly adherent.
func (s *Service) Assess(ctx context.Context, patientID, pharmacistID uuid.UUID, now time.Time) (*Assessment, error) {
	prof, err := s.profiles.GetOrCreate(ctx, patientID, pharmacistID)
	if err != nil {
		return nil, err
	}

	assessment := &Assessment{
		PatientID:  patientID,
		AssessedAt: now,
	}

	scores := make(map[string]float64)
	var sum float64
	for _, med := range prof.CurrentMedications {
		if med.Status != profile.MedicationActive {
			continue
		}
		ma := s.assessMedication(med, now)
		assessment.PerMedication = append(assessment.PerMedication, ma)
		scores[strings.ToLower(med.Name)] = ma.Score
		sum += ma.Score
	}

	if len(assessment.PerMedication) == 0 {
		assessment.Overall = 100
	} else {
		assessment.Overall = sum / float64(len(assessment.PerMedication))
	}
	assessment.OverallStatus = Bucket(assessment.Overall)

	if err := s.profiles.SaveAdherence(ctx, patientID, pharmacistID, scores,
		assessment.Overall, pharmacistID.String(), now); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("patient_id", patientID.String()).
		Float64("overall", assessment.Overall).
		Str("status", assessment.OverallStatus).
		Int("medications", len(assessment.PerMedication)).
		Msg("adherence assessment completed")
	return assessment, nil
}

func (s *Service) assessMedication(med profile.Medication, now time.Time) MedicationAdherence {
	ma := MedicationAdherence{
		Name:          med.Name,
		Score:         100,
		LastDispensed: med.LastRefillDate,
	}

	if med.LastRefillDate != nil {
		interval := s.intervalDays
		if med.RefillIntervalDays != nil && *med.RefillIntervalDays > 0 {
			interval = *med.RefillIntervalDays
		}
		days := int(now.Sub(*med.LastRefillDate).Hours() / 24)
		if days > s.lookbackDays {
			days = s.lookbackDays
		}
		if days > 0 && interval > 0 {
			ma.MissedRefills = days / interval
		}
		ma.Score = 100 - float64(ma.MissedRefills*missedRefillPenalty)
		if ma.Score < 0 {
			ma.Score = 0
		}
	}

	ma.Status = Bucket(ma.Score)
	return ma
}
