package interaction

import (
	"context"
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

const recordCols = `id, medication_a, medication_b, interaction_type, description,
	clinical_effect, mechanism, management, evidence_level, severity, active, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.MedicationA, &rec.MedicationB, &rec.Type, &rec.Description,
		&rec.ClinicalEffect, &rec.Mechanism, &rec.Management, &rec.EvidenceLevel,
		&rec.Severity, &rec.Active, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return &rec, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO drug_interaction (id, medication_a, medication_b, interaction_type, description,
			clinical_effect, mechanism, management, evidence_level, severity, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.ID, rec.MedicationA, rec.MedicationB, rec.Type, rec.Description,
		rec.ClinicalEffect, rec.Mechanism, rec.Management, rec.EvidenceLevel,
		rec.Severity, rec.Active)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s / %s", errs.ErrDuplicateInteractionPair, rec.MedicationA, rec.MedicationB)
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM drug_interaction WHERE id = $1`, id))
}

func (r *repoPG) GetByPair(ctx context.Context, a, b string) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, `
		SELECT `+recordCols+` FROM drug_interaction
		WHERE LOWER(medication_a) = LOWER($1) AND LOWER(medication_b) = LOWER($2) AND active
		ORDER BY severity DESC LIMIT 1`, a, b))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM drug_interaction`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM drug_interaction ORDER BY severity DESC, created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE drug_interaction SET interaction_type=$2, description=$3, clinical_effect=$4,
			mechanism=$5, management=$6, evidence_level=$7, severity=$8, active=$9, updated_at=NOW()
		WHERE id = $1`,
		rec.ID, rec.Type, rec.Description, rec.ClinicalEffect,
		rec.Mechanism, rec.Management, rec.EvidenceLevel, rec.Severity, rec.Active)
	return err
}

func (r *repoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE drug_interaction SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
