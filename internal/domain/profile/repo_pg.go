package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmd/pharmd/internal/platform/db"
	"github.com/pharmd/pharmd/pkg/errs"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const profileCols = `id, patient_id, pharmacist_id, current_medications, allergies,
	conditions, compliance, alerts, retired, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		p          Profile
		meds       []byte
		allergies  []byte
		conditions []byte
		compliance []byte
		alerts     []byte
	)
	err := row.Scan(&p.ID, &p.PatientID, &p.PharmacistID, &meds, &allergies,
		&conditions, &compliance, &alerts, &p.Retired, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meds, &p.CurrentMedications); err != nil {
		return nil, fmt.Errorf("unmarshal medications: %w", err)
	}
	if err := json.Unmarshal(allergies, &p.Allergies); err != nil {
		return nil, fmt.Errorf("unmarshal allergies: %w", err)
	}
	if err := json.Unmarshal(conditions, &p.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshal conditions: %w", err)
	}
	if err := json.Unmarshal(compliance, &p.Compliance); err != nil {
		return nil, fmt.Errorf("unmarshal compliance: %w", err)
	}
	if err := json.Unmarshal(alerts, &p.Alerts); err != nil {
		return nil, fmt.Errorf("unmarshal alerts: %w", err)
	}
	return &p, nil
}

func marshalDoc(p *Profile) (meds, allergies, conditions, compliance, alerts []byte, err error) {
	if meds, err = json.Marshal(emptyIfNilMeds(p.CurrentMedications)); err != nil {
		return
	}
	if allergies, err = json.Marshal(emptyIfNilAllergies(p.Allergies)); err != nil {
		return
	}
	if conditions, err = json.Marshal(emptyIfNilConditions(p.Conditions)); err != nil {
		return
	}
	if compliance, err = json.Marshal(p.Compliance); err != nil {
		return
	}
	alerts, err = json.Marshal(emptyIfNilAlerts(p.Alerts))
	return
}

// nil slices marshal to JSON null; the columns always hold arrays.
func emptyIfNilMeds(v []Medication) []Medication {
	if v == nil {
		return []Medication{}
	}
	return v
}

func emptyIfNilAllergies(v []Allergy) []Allergy {
	if v == nil {
		return []Allergy{}
	}
	return v
}

func emptyIfNilConditions(v []Condition) []Condition {
	if v == nil {
		return []Condition{}
	}
	return v
}

func emptyIfNilAlerts(v []Alert) []Alert {
	if v == nil {
		return []Alert{}
	}
	return v
}

func (r *repoPG) Create(ctx context.Context, p *Profile) error {
	p.ID = uuid.New()
	meds, allergies, conditions, compliance, alerts, err := marshalDoc(p)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_profile (id, patient_id, pharmacist_id, current_medications,
			allergies, conditions, compliance, alerts, retired)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.PatientID, p.PharmacistID, meds, allergies, conditions, compliance, alerts, p.Retired)
	return err
}

func (r *repoPG) GetByPatient(ctx context.Context, patientID, pharmacistID uuid.UUID) (*Profile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM patient_profile WHERE patient_id = $1 AND pharmacist_id = $2`,
		patientID, pharmacistID))
}

func (r *repoPG) Update(ctx context.Context, p *Profile) error {
	meds, allergies, conditions, compliance, alerts, err := marshalDoc(p)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_profile
		SET current_medications = $2, allergies = $3, conditions = $4, compliance = $5,
			alerts = $6, retired = $7, updated_at = NOW()
		WHERE id = $1`,
		p.ID, meds, allergies, conditions, compliance, alerts, p.Retired)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
