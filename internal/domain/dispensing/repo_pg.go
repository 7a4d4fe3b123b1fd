package dispensing

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

const recordCols = `id, prescription_id, patient_id, pharmacist_id, prescriber_id,
	record_number, verification_status, verification_notes, status, hold_reason,
	cancellation_reason, dispensed_at, total_amount, payment, pickup, quality_checks,
	refills_remaining, max_refills, version, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec           Record
		payment       []byte
		pickup        []byte
		qualityChecks []byte
	)
	err := row.Scan(&rec.ID, &rec.PrescriptionID, &rec.PatientID, &rec.PharmacistID, &rec.PrescriberID,
		&rec.RecordNumber, &rec.VerificationStatus, &rec.VerificationNotes, &rec.Status, &rec.HoldReason,
		&rec.CancellationReason, &rec.DispensedAt, &rec.TotalAmount, &payment, &pickup, &qualityChecks,
		&rec.RefillsRemaining, &rec.MaxRefills, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if payment != nil {
		if err := json.Unmarshal(payment, &rec.Payment); err != nil {
			return nil, fmt.Errorf("unmarshal payment: %w", err)
		}
	}
	if pickup != nil {
		if err := json.Unmarshal(pickup, &rec.Pickup); err != nil {
			return nil, fmt.Errorf("unmarshal pickup: %w", err)
		}
	}
	if qualityChecks != nil {
		if err := json.Unmarshal(qualityChecks, &rec.QualityChecks); err != nil {
			return nil, fmt.Errorf("unmarshal quality checks: %w", err)
		}
	}
	return &rec, nil
}

func marshalOptional(v interface{}, isNil bool) ([]byte, error) {
	if isNil {
		return nil, nil
	}
	return json.Marshal(v)
}

func marshalDocs(rec *Record) (payment, pickup, qualityChecks []byte, err error) {
	if payment, err = marshalOptional(rec.Payment, rec.Payment == nil); err != nil {
		return
	}
	if pickup, err = marshalOptional(rec.Pickup, rec.Pickup == nil); err != nil {
		return
	}
	qualityChecks, err = marshalOptional(rec.QualityChecks, rec.QualityChecks == nil)
	return
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	rec.Version = 1
	payment, pickup, qualityChecks, err := marshalDocs(rec)
	if err != nil {
		return err
	}
	conn := r.conn(ctx)
	_, err = conn.Exec(ctx, `
		INSERT INTO dispense_record (id, prescription_id, patient_id, pharmacist_id, prescriber_id,
			record_number, verification_status, verification_notes, status, hold_reason,
			cancellation_reason, dispensed_at, total_amount, payment, pickup, quality_checks,
			refills_remaining, max_refills, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		rec.ID, rec.PrescriptionID, rec.PatientID, rec.PharmacistID, rec.PrescriberID,
		rec.RecordNumber, rec.VerificationStatus, rec.VerificationNotes, rec.Status, rec.HoldReason,
		rec.CancellationReason, rec.DispensedAt, rec.TotalAmount, payment, pickup, qualityChecks,
		rec.RefillsRemaining, rec.MaxRefills, rec.Version)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateRecordNumber, rec.RecordNumber)
	}
	if err != nil {
		return err
	}
	return r.insertLines(ctx, conn, rec)
}

func (r *repoPG) insertLines(ctx context.Context, conn queryable, rec *Record) error {
	for i, l := range rec.Lines {
		_, err := conn.Exec(ctx, `
			INSERT INTO dispense_line (record_id, idx, inventory_item_id, medication_name,
				prescribed_dosage, prescribed_frequency, prescribed_duration,
				dispensed_quantity, days_supply, unit_price, total_price,
				batch_number, expiry_date, substituted, substitution_reason,
				counseling_provided, counseling_notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			rec.ID, i, l.InventoryItemID, l.MedicationName,
			l.PrescribedDosage, l.PrescribedFrequency, l.PrescribedDuration,
			l.DispensedQuantity, l.DaysSupply, l.UnitPrice, l.TotalPrice,
			l.BatchNumber, l.ExpiryDate, l.Substituted, l.SubstitutionReason,
			l.CounselingProvided, l.CounselingNotes)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) loadLines(ctx context.Context, conn queryable, rec *Record) error {
	rows, err := conn.Query(ctx, `
		SELECT inventory_item_id, medication_name, prescribed_dosage, prescribed_frequency,
			prescribed_duration, dispensed_quantity, days_supply, unit_price, total_price,
			batch_number, expiry_date, substituted, substitution_reason,
			counseling_provided, counseling_notes
		FROM dispense_line WHERE record_id = $1 ORDER BY idx ASC`, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.InventoryItemID, &l.MedicationName, &l.PrescribedDosage, &l.PrescribedFrequency,
			&l.PrescribedDuration, &l.DispensedQuantity, &l.DaysSupply, &l.UnitPrice, &l.TotalPrice,
			&l.BatchNumber, &l.ExpiryDate, &l.Substituted, &l.SubstitutionReason,
			&l.CounselingProvided, &l.CounselingNotes); err != nil {
			return err
		}
		rec.Lines = append(rec.Lines, l)
	}
	return rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	conn := r.conn(ctx)
	rec, err := scanRecord(conn.QueryRow(ctx,
		`SELECT `+recordCols+` FROM dispense_record WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, conn, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repoPG) GetByRecordNumber(ctx context.Context, number string) (*Record, error) {
	conn := r.conn(ctx)
	rec, err := scanRecord(conn.QueryRow(ctx,
		`SELECT `+recordCols+` FROM dispense_record WHERE record_number = $1`, number))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, conn, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	payment, pickup, qualityChecks, err := marshalDocs(rec)
	if err != nil {
		return err
	}
	conn := r.conn(ctx)
	tag, err := conn.Exec(ctx, `
		UPDATE dispense_record
		SET verification_status = $3, verification_notes = $4, status = $5, hold_reason = $6,
			cancellation_reason = $7, dispensed_at = $8, total_amount = $9, payment = $10, pickup = $11,
			quality_checks = $12, refills_remaining = $13, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`,
		rec.ID, rec.Version, rec.VerificationStatus, rec.VerificationNotes, rec.Status, rec.HoldReason,
		rec.CancellationReason, rec.DispensedAt, rec.TotalAmount, payment, pickup, qualityChecks, rec.RefillsRemaining)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := conn.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM dispense_record WHERE id = $1)`, rec.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return errs.ErrNotFound
		}
		return fmt.Errorf("%w: record %s was modified concurrently", errs.ErrInvalidStateTransition, rec.ID)
	}
	rec.Version++

	if _, err := conn.Exec(ctx, `DELETE FROM dispense_line WHERE record_id = $1`, rec.ID); err != nil {
		return err
	}
	return r.insertLines(ctx, conn, rec)
}

func (r *repoPG) list(ctx context.Context, where string, arg interface{}, limit, offset int) ([]*Record, int, error) {
	conn := r.conn(ctx)

	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM dispense_record `+where, arg).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx,
		`SELECT `+recordCols+` FROM dispense_record `+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		arg, limit, offset)
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
		if err := r.loadLines(ctx, conn, rec); err != nil {
			return nil, 0, err
		}
	}
	return records, total, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return r.list(ctx, `WHERE patient_id = $1`, patientID, limit, offset)
}

func (r *repoPG) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Record, int, error) {
	return r.list(ctx, `WHERE status = $1`, status, limit, offset)
}

func (r *repoPG) CountCompletedByPrescription(ctx context.Context, prescriptionID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM dispense_record
		WHERE prescription_id = $1 AND status = $2`, prescriptionID, StatusCompleted).Scan(&n)
	return n, err
}
