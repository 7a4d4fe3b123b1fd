package reconciliation

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pharmd/pharmd/internal/domain/profile"
	"github.com/pharmd/pharmd/pkg/errs"
)

type fakeRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[uuid.UUID]*Record)}
}

func cloneRecord(r *Record) *Record {
	out := *r
	out.Discrepancies = append([]Discrepancy(nil), r.Discrepancies...)
	out.Sources = append([]string(nil), r.Sources...)
	return &out
}

func (f *fakeRepo) Create(ctx context.Context, r *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = uuid.New()
	f.records[r.ID] = cloneRecord(r)
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return cloneRecord(r), nil
}

func (f *fakeRepo) Update(ctx context.Context, r *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[r.ID]; !ok {
		return errs.ErrNotFound
	}
	f.records[r.ID] = cloneRecord(r)
	return nil
}

func (f *fakeRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Record
	for _, r := range f.records {
		if r.PatientID == patientID {
			out = append(out, cloneRecord(r))
		}
	}
	return out, len(out), nil
}

// fakeProfiles holds one in-memory profile per (patient, pharmacist) pair.
type fakeProfiles struct {
	meds map[string][]profile.Medication
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{meds: make(map[string][]profile.Medication)}
}

func pairKey(patientID, pharmacistID uuid.UUID) string {
	return patientID.String() + "/" + pharmacistID.String()
}

func (f *fakeProfiles) GetOrCreate(ctx context.Context, patientID, pharmacistID uuid.UUID) (*profile.Profile, error) {
	return &profile.Profile{
		PatientID:          patientID,
		PharmacistID:       pharmacistID,
		CurrentMedications: append([]profile.Medication(nil), f.meds[pairKey(patientID, pharmacistID)]...),
	}, nil
}

func (f *fakeProfiles) UpsertMedications(ctx context.Context, patientID, pharmacistID uuid.UUID, meds []profile.Medication) (*profile.Profile, error) {
	k := pairKey(patientID, pharmacistID)
	existing := f.meds[k]
	for _, med := range meds {
		replaced := false
		for i := range existing {
			if existing[i].Name == med.Name {
				existing[i] = med
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, med)
		}
	}
	f.meds[k] = existing
	return f.GetOrCreate(ctx, patientID, pharmacistID)
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	patientID    = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	pharmacistID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func newTestService(profiles *fakeProfiles) (*Service, *fakeRepo) {
	repo := newFakeRepo()
	svc := NewService(repo, profiles, passthroughTx{}, zerolog.New(os.Stderr))
	return svc, repo
}

func seedProfile(profiles *fakeProfiles, meds ...profile.Medication) {
	for i := range meds {
		if meds[i].Status == "" {
			meds[i].Status = profile.MedicationActive
		}
	}
	profiles.meds[pairKey(patientID, pharmacistID)] = meds
}

func TestPerform_AllThreeClasses(t *testing.T) {
	profiles := newFakeProfiles()
	seedProfile(profiles,
		profile.Medication{Name: "Metformin", Dosage: "500mg"},
		profile.Medication{Name: "Lisinopril", Dosage: "10mg"},
	)
	svc, _ := newTestService(profiles)

	rec, err := svc.Perform(context.Background(), patientID, pharmacistID, []string{"patient interview"},
		[]ReportedMedication{
			{Name: "metformin", Dosage: "1000mg"}, // dosage mismatch
			{Name: "Aspirin", Dosage: "81mg"},     // not on profile
			// Lisinopril not reported
		})
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if rec.Status != StatusPending {
		t.Errorf("expected pending record, got %s", rec.Status)
	}
	if len(rec.Discrepancies) != 3 {
		t.Fatalf("expected 3 discrepancies, got %d", len(rec.Discrepancies))
	}

	byType := map[string]Discrepancy{}
	for _, d := range rec.Discrepancies {
		byType[d.Type] = d
	}
	if d, ok := byType[TypeDosageMismatch]; !ok || d.MedicationName != "Metformin" {
		t.Error("expected dosage mismatch on Metformin")
	}
	if d, ok := byType[TypeReportedNotInProfile]; !ok || d.MedicationName != "Aspirin" {
		t.Error("expected reported-not-in-profile on Aspirin")
	}
	if d, ok := byType[TypeProfileNotReported]; !ok || d.MedicationName != "Lisinopril" {
		t.Error("expected profile-not-reported on Lisinopril")
	}
}

func TestPerform_NoDiscrepanciesResolvesImmediately(t *testing.T) {
	profiles := newFakeProfiles()
	seedProfile(profiles, profile.Medication{Name: "Metformin", Dosage: "500mg"})
	svc, _ := newTestService(profiles)

	rec, err := svc.Perform(context.Background(), patientID, pharmacistID, nil,
		[]ReportedMedication{{Name: "Metformin", Dosage: "500mg"}})
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if rec.Status != StatusResolved {
		t.Errorf("expected resolved record, got %s", rec.Status)
	}
	if len(rec.Discrepancies) != 0 {
		t.Errorf("expected no discrepancies, got %d", len(rec.Discrepancies))
	}
}

func TestPerform_IgnoresInactiveMedications(t *testing.T) {
	profiles := newFakeProfiles()
	seedProfile(profiles,
		profile.Medication{Name: "Metformin", Dosage: "500mg"},
		profile.Medication{Name: "OldDrug", Dosage: "5mg", Status: profile.MedicationDiscontinued},
	)
	svc, _ := newTestService(profiles)

	rec, err := svc.Perform(context.Background(), patientID, pharmacistID, nil,
		[]ReportedMedication{{Name: "Metformin", Dosage: "500mg"}})
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if len(rec.Discrepancies) != 0 {
		t.Errorf("discontinued medications should not produce discrepancies, got %d", len(rec.Discrepancies))
	}
}

func TestResolveDiscrepancy_AutoResolvesRecord(t *testing.T) {
	profiles := newFakeProfiles()
	seedProfile(profiles, profile.Medication{Name: "Metformin", Dosage: "500mg"})
	svc, _ := newTestService(profiles)

	rec, err := svc.Perform(context.Background(), patientID, pharmacistID, nil,
		[]ReportedMedication{{Name: "Aspirin", Dosage: "81mg"}})
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if len(rec.Discrepancies) != 2 {
		t.Fatalf("expected 2 discrepancies, got %d", len(rec.Discrepancies))
	}

	rec, err = svc.ResolveDiscrepancy(context.Background(), rec.ID, 0, "confirmed with prescriber", "rph-1", false)
	if err != nil {
		t.Fatalf("resolve first: %v", err)
	}
	if rec.Status != StatusPending {
		t.Errorf("record should stay pending with one discrepancy left, got %s", rec.Status)
	}

	rec, err = svc.ResolveDiscrepancy(context.Background(), rec.ID, 1, "added to profile", "rph-1", false)
	if err != nil {
		t.Fatalf("resolve second: %v", err)
	}
	if rec.Status != StatusResolved {
		t.Errorf("record should auto-resolve when no pending entries remain, got %s", rec.Status)
	}
}

func TestResolveDiscrepancy_Validation(t *testing.T) {
	profiles := newFakeProfiles()
	seedProfile(profiles, profile.Medication{Name: "Metformin", Dosage: "500mg"})
	svc, _ := newTestService(profiles)

	rec, err := svc.Perform(context.Background(), patientID, pharmacistID, nil, nil)
	if err != nil {
		t.Fatalf("perform: %v", err)
	}

	if _, err := svc.ResolveDiscrepancy(context.Background(), rec.ID, 5, "x", "rph-1", false); !errs.IsValidation(err) {
		t.Errorf("expected validation error for out-of-range index, got %v", err)
	}
	if _, err := svc.ResolveDiscrepancy(context.Background(), rec.ID, 0, "", "rph-1", false); !errs.IsValidation(err) {
		t.Errorf("expected validation error for empty resolution, got %v", err)
	}
	if _, err := svc.ResolveDiscrepancy(context.Background(), uuid.New(), 0, "x", "rph-1", false); !errs.IsNotFound(err) {
		t.Errorf("expected not found for unknown record, got %v", err)
	}

	if _, err := svc.ResolveDiscrepancy(context.Background(), rec.ID, 0, "done", "rph-1", false); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := svc.ResolveDiscrepancy(context.Background(), rec.ID, 0, "again", "rph-1", false); !errs.IsValidation(err) {
		t.Errorf("expected validation error for double resolve, got %v", err)
	}
}

func TestResolveDiscrepancy_UpdatesProfile(t *testing.T) {
	profiles := newFakeProfiles()
	seedProfile(profiles,
		profile.Medication{Name: "Metformin", Dosage: "500mg"},
		profile.Medication{Name: "Lisinopril", Dosage: "10mg"},
	)
	svc, _ := newTestService(profiles)

	rec, err := svc.Perform(context.Background(), patientID, pharmacistID, nil,
		[]ReportedMedication{
			{Name: "Metformin", Dosage: "1000mg"},
			{Name: "Aspirin", Dosage: "81mg"},
		})
	if err != nil {
		t.Fatalf("perform: %v", err)
	}

	for i := range rec.Discrepancies {
		rec, err = svc.ResolveDiscrepancy(context.Background(), rec.ID, i, "apply patient report", "rph-1", true)
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}

	prof, _ := profiles.GetOrCreate(context.Background(), patientID, pharmacistID)
	byName := map[string]profile.Medication{}
	for _, m := range prof.CurrentMedications {
		byName[m.Name] = m
	}

	if byName["Metformin"].Dosage != "1000mg" {
		t.Errorf("dosage mismatch resolution should update the dosage, got %s", byName["Metformin"].Dosage)
	}
	if byName["Lisinopril"].Status != profile.MedicationDiscontinued {
		t.Errorf("unreported medication should be discontinued, got %s", byName["Lisinopril"].Status)
	}
	aspirin, ok := byName["Aspirin"]
	if !ok {
		t.Fatal("reported medication should be added to the profile")
	}
	if aspirin.Status != profile.MedicationActive || aspirin.Dosage != "81mg" {
		t.Errorf("added medication should be active with the reported dosage, got %+v", aspirin)
	}
}
