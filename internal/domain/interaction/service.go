package interaction

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/pharmd/pharmd/pkg/errs"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var validTypes = map[string]bool{
	TypeMinor: true, TypeModerate: true, TypeMajor: true, TypeContraindicated: true,
}

// NormalizePair orders a medication pair so that the lexicographically smaller
// name (case-insensitive) comes first. Lookups and inserts both use the
// normalized order, which makes the pair key unordered.
func NormalizePair(a, b string) (string, string) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if strings.ToLower(a) > strings.ToLower(b) {
		return b, a
	}
	return a, b
}

func (s *Service) Add(ctx context.Context, rec *Record) error {
	if rec.MedicationA == "" || rec.MedicationB == "" {
		return errs.Validationf("both medication names are required")
	}
	if !validTypes[rec.Type] {
		return errs.Validationf("invalid interaction type: %s", rec.Type)
	}
	if rec.Severity < 1 || rec.Severity > 5 {
		return errs.Validationf("severity must be between 1 and 5")
	}
	if rec.Description == "" {
		return errs.Validationf("description is required")
	}
	rec.MedicationA, rec.MedicationB = NormalizePair(rec.MedicationA, rec.MedicationB)
	rec.Active = true
	return s.repo.Create(ctx, rec)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

// Lookup finds an active interaction for the pair regardless of argument
// order or case. Returns errs.ErrNotFound when no interaction is known.
func (s *Service) Lookup(ctx context.Context, a, b string) (*Record, error) {
	if a == "" || b == "" {
		return nil, errs.Validationf("both medication names are required")
	}
	na, nb := NormalizePair(a, b)
	return s.repo.GetByPair(ctx, na, nb)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}
