package screening

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pharmd/pharmd/internal/domain/interaction"
	"github.com/pharmd/pharmd/internal/domain/profile"
	"github.com/pharmd/pharmd/pkg/errs"
)

// Catalog is the subset of the interaction catalog the screener needs.
// *interaction.Service satisfies it.
type Catalog interface {
	Lookup(ctx context.Context, a, b string) (*interaction.Record, error)
}

// Profiles loads the patient's pharmacy profile so recorded allergies and
// conditions join the screen beyond what the caller supplies.
// *profile.Service satisfies it.
type Profiles interface {
	Get(ctx context.Context, patientID, pharmacistID uuid.UUID) (*profile.Profile, error)
}

// AdvisoryClient is an external analysis service consulted after the catalog
// pass. Implementations must honor the context deadline. A failed or slow
// advisory call degrades the result; it never fails the screen.
type AdvisoryClient interface {
	Analyze(ctx context.Context, req Request) (string, error)
}

type Service struct {
	catalog  Catalog
	profiles Profiles
	advisory AdvisoryClient // nil disables advisory augmentation
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewService(catalog Catalog, profiles Profiles, advisory AdvisoryClient, timeout time.Duration, logger zerolog.Logger) *Service {
	return &Service{catalog: catalog, profiles: profiles, advisory: advisory, timeout: timeout, logger: logger}
}

// Screen runs the full safety screen: pairwise catalog lookups over the
// requested medications, allergy cross-checks, and optional advisory
// augmentation. With a patient id on the request, the caller's recorded
// profile contributes its allergies and conditions before either pass runs.
func (s *Service) Screen(ctx context.Context, req Request, pharmacistID uuid.UUID) (*Result, error) {
	if len(req.Medications) == 0 {
		return nil, errs.Validationf("at least one medication is required")
	}
	if req.PatientID != nil {
		if err := s.mergeProfile(ctx, &req, pharmacistID); err != nil {
			return nil, err
		}
	}

	result := &Result{Source: SourceOK}

	findings, err := s.catalogPass(ctx, req.Medications)
	if err != nil {
		// The catalog is the screen's backbone: without it the result
		// carries no findings and must say so.
		result.Source = SourceUnavailable
		result.SourceReason = err.Error()
		return result, nil
	}
	result.Findings = findings
	result.AllergyAlerts = allergyPass(req.Medications, req.Allergies)

	if s.advisory != nil {
		analysis, err := s.advisoryPass(ctx, req)
		if err != nil {
			result.Source = SourceDegraded
			result.SourceReason = err.Error()
			s.logger.Warn().Err(err).Msg("advisory analysis unavailable, returning catalog findings only")
		} else {
			result.Analysis = &analysis
		}
	}

	return result, nil
}

// mergeProfile folds the patient's recorded allergies and conditions into
// the request. A patient with no profile yet screens on the request alone.
func (s *Service) mergeProfile(ctx context.Context, req *Request, pharmacistID uuid.UUID) error {
	if s.profiles == nil {
		return nil
	}
	prof, err := s.profiles.Get(ctx, *req.PatientID, pharmacistID)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil
		}
		return err
	}
	allergens := make([]string, 0, len(prof.Allergies))
	for _, a := range prof.Allergies {
		allergens = append(allergens, a.Allergen)
	}
	req.Allergies = mergeTerms(req.Allergies, allergens)

	conditions := make([]string, 0, len(prof.Conditions))
	for _, c := range prof.Conditions {
		conditions = append(conditions, c.Name)
	}
	req.Conditions = mergeTerms(req.Conditions, conditions)
	return nil
}

// mergeTerms appends extra terms not already present, comparing
// case-insensitively after trimming.
func mergeTerms(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, t := range base {
		seen[strings.ToLower(strings.TrimSpace(t))] = true
	}
	out := base
	for _, t := range extra {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// catalogPass looks up every unordered pair of distinct medications exactly
// once and collects the hits, sorted by severity descending.
func (s *Service) catalogPass(ctx context.Context, meds []MedicationRef) ([]Finding, error) {
	seen := make(map[string]bool)
	var findings []Finding

	for i := 0; i < len(meds); i++ {
		for j := i + 1; j < len(meds); j++ {
			a, b := interaction.NormalizePair(meds[i].Name, meds[j].Name)
			if strings.EqualFold(a, b) {
				continue
			}
			key := strings.ToLower(a) + "|" + strings.ToLower(b)
			if seen[key] {
				continue
			}
			seen[key] = true

			rec, err := s.catalog.Lookup(ctx, a, b)
			if err != nil {
				if errs.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			findings = append(findings, Finding{
				MedicationA:    rec.MedicationA,
				MedicationB:    rec.MedicationB,
				Type:           rec.Type,
				Severity:       rec.Severity,
				Description:    rec.Description,
				ClinicalEffect: rec.ClinicalEffect,
				Management:     rec.Management,
			})
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity > findings[j].Severity
	})
	return findings, nil
}

// allergyPass cross-checks medications against recorded allergies with
// bidirectional case-insensitive substring matching, so "penicillin" flags
// both "Penicillin V" and an allergen recorded as "penicillins".
func allergyPass(meds []MedicationRef, allergies []string) []AllergyAlert {
	var alerts []AllergyAlert
	for _, med := range meds {
		medLower := strings.ToLower(strings.TrimSpace(med.Name))
		if medLower == "" {
			continue
		}
		for _, allergen := range allergies {
			allergenLower := strings.ToLower(strings.TrimSpace(allergen))
			if allergenLower == "" {
				continue
			}
			if strings.Contains(medLower, allergenLower) || strings.Contains(allergenLower, medLower) {
				alerts = append(alerts, AllergyAlert{Medication: med.Name, Allergen: allergen})
			}
		}
	}
	return alerts
}

func (s *Service) advisoryPass(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.advisory.Analyze(ctx, req)
}
