package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/pharmd/pharmd/pkg/errs"
)

// fakeRepo is a map-backed in-memory Repository. Like the drug_interaction
// table, it enforces one row per medication pair.
type fakeRepo struct {
	records map[uuid.UUID]*Record
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[uuid.UUID]*Record)}
}

func (f *fakeRepo) Create(ctx context.Context, rec *Record) error {
	for _, existing := range f.records {
		if strings.EqualFold(existing.MedicationA, rec.MedicationA) &&
			strings.EqualFold(existing.MedicationB, rec.MedicationB) {
			return fmt.Errorf("%w: %s / %s", errs.ErrDuplicateInteractionPair, rec.MedicationA, rec.MedicationB)
		}
	}
	rec.ID = uuid.New()
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRepo) GetByPair(ctx context.Context, a, b string) (*Record, error) {
	for _, rec := range f.records {
		if !rec.Active {
			continue
		}
		if strings.EqualFold(rec.MedicationA, a) && strings.EqualFold(rec.MedicationB, b) {
			return rec, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeRepo) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	var items []*Record
	for _, rec := range f.records {
		items = append(items, rec)
	}
	return items, len(items), nil
}

func (f *fakeRepo) Update(ctx context.Context, rec *Record) error {
	if _, ok := f.records[rec.ID]; !ok {
		return errs.ErrNotFound
	}
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	rec, ok := f.records[id]
	if !ok {
		return errs.ErrNotFound
	}
	rec.Active = false
	return nil
}

func seedRecord(t *testing.T, svc *Service, a, b, typ string, severity int) *Record {
	t.Helper()
	rec := &Record{
		MedicationA:    a,
		MedicationB:    b,
		Type:           typ,
		Severity:       severity,
		Description:    "test interaction",
		ClinicalEffect: "test effect",
		Management:     "monitor",
	}
	if err := svc.Add(context.Background(), rec); err != nil {
		t.Fatalf("seed %s+%s: %v", a, b, err)
	}
	return rec
}

func TestNormalizePair(t *testing.T) {
	tests := []struct {
		a, b       string
		wantA, wantB string
	}{
		{"Warfarin", "Aspirin", "Aspirin", "Warfarin"},
		{"aspirin", "Warfarin", "aspirin", "Warfarin"},
		{"Aspirin", "Warfarin", "Aspirin", "Warfarin"},
		{" simvastatin ", "Amlodipine", "Amlodipine", "simvastatin"},
	}
	for _, tt := range tests {
		gotA, gotB := NormalizePair(tt.a, tt.b)
		if gotA != tt.wantA || gotB != tt.wantB {
			t.Errorf("NormalizePair(%q, %q) = (%q, %q), want (%q, %q)",
				tt.a, tt.b, gotA, gotB, tt.wantA, tt.wantB)
		}
	}
}

func TestAdd_Validation(t *testing.T) {
	svc := NewService(newFakeRepo())

	tests := []struct {
		name string
		rec  Record
	}{
		{"missing names", Record{Type: TypeMajor, Severity: 5, Description: "x"}},
		{"bad type", Record{MedicationA: "a", MedicationB: "b", Type: "severe", Severity: 3, Description: "x"}},
		{"severity too low", Record{MedicationA: "a", MedicationB: "b", Type: TypeMinor, Severity: 0, Description: "x"}},
		{"severity too high", Record{MedicationA: "a", MedicationB: "b", Type: TypeMinor, Severity: 6, Description: "x"}},
		{"missing description", Record{MedicationA: "a", MedicationB: "b", Type: TypeMinor, Severity: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Add(context.Background(), &tt.rec)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errs.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAdd_NormalizesPairOrder(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	rec := seedRecord(t, svc, "Warfarin", "Aspirin", TypeMajor, 5)

	if rec.MedicationA != "Aspirin" || rec.MedicationB != "Warfarin" {
		t.Errorf("expected normalized pair (Aspirin, Warfarin), got (%s, %s)",
			rec.MedicationA, rec.MedicationB)
	}
}

func TestAdd_DuplicatePair(t *testing.T) {
	svc := NewService(newFakeRepo())
	seedRecord(t, svc, "Warfarin", "Aspirin", TypeMajor, 5)

	// Re-adding the pair in either order collides on the normalized key.
	dup := &Record{
		MedicationA: "aspirin",
		MedicationB: "warfarin",
		Type:        TypeMajor,
		Severity:    4,
		Description: "duplicate entry",
	}
	err := svc.Add(context.Background(), dup)
	if !errors.Is(err, errs.ErrDuplicateInteractionPair) {
		t.Errorf("expected duplicate interaction pair error, got %v", err)
	}
}

func TestLookup_Symmetric(t *testing.T) {
	svc := NewService(newFakeRepo())
	seedRecord(t, svc, "warfarin", "aspirin", TypeMajor, 5)

	// Both argument orders must find the same record.
	forward, err := svc.Lookup(context.Background(), "warfarin", "aspirin")
	if err != nil {
		t.Fatalf("forward lookup: %v", err)
	}
	reverse, err := svc.Lookup(context.Background(), "aspirin", "warfarin")
	if err != nil {
		t.Fatalf("reverse lookup: %v", err)
	}
	if forward.ID != reverse.ID {
		t.Error("expected both lookup orders to return the same record")
	}
}

func TestLookup_CaseInsensitive(t *testing.T) {
	svc := NewService(newFakeRepo())
	seedRecord(t, svc, "Simvastatin", "Amlodipine", TypeModerate, 3)

	rec, err := svc.Lookup(context.Background(), "SIMVASTATIN", "amlodipine")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.Type != TypeModerate {
		t.Errorf("expected moderate, got %s", rec.Type)
	}
}

func TestLookup_UnknownPair(t *testing.T) {
	svc := NewService(newFakeRepo())
	seedRecord(t, svc, "warfarin", "aspirin", TypeMajor, 5)

	_, err := svc.Lookup(context.Background(), "lisinopril", "metoprolol")
	if !errs.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestLookup_IgnoresInactive(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	rec := seedRecord(t, svc, "warfarin", "aspirin", TypeMajor, 5)

	if err := svc.Deactivate(context.Background(), rec.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := svc.Lookup(context.Background(), "warfarin", "aspirin")
	if !errs.IsNotFound(err) {
		t.Errorf("expected not found after deactivation, got %v", err)
	}
}

func TestLookup_EmptyNames(t *testing.T) {
	svc := NewService(newFakeRepo())
	_, err := svc.Lookup(context.Background(), "", "aspirin")
	if !errs.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
