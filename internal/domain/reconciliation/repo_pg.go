package reconciliation

import (
	"context"
	"errors"

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

const recordCols = `id, patient_id, performed_by, sources, status, reconciled_at, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.PerformedBy, &rec.Sources,
		&rec.Status, &rec.ReconciledAt, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return &rec, err
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	conn := r.conn(ctx)
	_, err := conn.Exec(ctx, `
		INSERT INTO reconciliation_record (id, patient_id, performed_by, sources, status, reconciled_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ID, rec.PatientID, rec.PerformedBy, rec.Sources, rec.Status, rec.ReconciledAt)
	if err != nil {
		return err
	}
	return r.insertDiscrepancies(ctx, conn, rec)
}

func (r *repoPG) insertDiscrepancies(ctx context.Context, conn queryable, rec *Record) error {
	for i, d := range rec.Discrepancies {
		_, err := conn.Exec(ctx, `
			INSERT INTO reconciliation_discrepancy (record_id, idx, type, medication_name,
				description, reported_dosage, status, resolution, resolved_by, resolved_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			rec.ID, i, d.Type, d.MedicationName, d.Description, d.ReportedDosage,
			d.Status, d.Resolution, d.ResolvedBy, d.ResolvedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) loadDiscrepancies(ctx context.Context, conn queryable, rec *Record) error {
	rows, err := conn.Query(ctx, `
		SELECT type, medication_name, description, reported_dosage, status, resolution, resolved_by, resolved_at
		FROM reconciliation_discrepancy WHERE record_id = $1 ORDER BY idx ASC`, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var d Discrepancy
		if err := rows.Scan(&d.Type, &d.MedicationName, &d.Description, &d.ReportedDosage,
			&d.Status, &d.Resolution, &d.ResolvedBy, &d.ResolvedAt); err != nil {
			return err
		}
		rec.Discrepancies = append(rec.Discrepancies, d)
	}
	return rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	conn := r.conn(ctx)
	rec, err := scanRecord(conn.QueryRow(ctx,
		`SELECT `+recordCols+` FROM reconciliation_record WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadDiscrepancies(ctx, conn, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	conn := r.conn(ctx)
	tag, err := conn.Exec(ctx, `
		UPDATE reconciliation_record
		SET status = $2, reconciled_at = $3, updated_at = NOW()
		WHERE id = $1`, rec.ID, rec.Status, rec.ReconciledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	if _, err := conn.Exec(ctx,
		`DELETE FROM reconciliation_discrepancy WHERE record_id = $1`, rec.ID); err != nil {
		return err
	}
	return r.insertDiscrepancies(ctx, conn, rec)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	conn := r.conn(ctx)

	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM reconciliation_record WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `
		SELECT `+recordCols+` FROM reconciliation_record
		WHERE patient_id = $1 ORDER BY reconciled_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, rec := range records {
		if err := r.loadDiscrepancies(ctx, conn, rec); err != nil {
			return nil, 0, err
		}
	}
	return records, total, nil
}
