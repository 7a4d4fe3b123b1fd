package inventory

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

const itemCols = `id, pharmacist_id, medication_name, generic_name, brand_name, manufacturer,
	registry_code, dosage_form, strength, batch_number, manufacturing_date, expiry_date,
	current_stock, minimum_stock, maximum_stock, unit_price, cost_price,
	storage_conditions, category, controlled_schedule, active, last_restocked,
	created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var i Item
	err := row.Scan(&i.ID, &i.PharmacistID, &i.MedicationName, &i.GenericName, &i.BrandName, &i.Manufacturer,
		&i.RegistryCode, &i.DosageForm, &i.Strength, &i.BatchNumber, &i.ManufacturingDate, &i.ExpiryDate,
		&i.CurrentStock, &i.MinimumStock, &i.MaximumStock, &i.UnitPrice, &i.CostPrice,
		&i.StorageConditions, &i.Category, &i.ControlledSchedule, &i.Active, &i.LastRestocked,
		&i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return &i, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repoPG) Create(ctx context.Context, item *Item) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medication_inventory (id, pharmacist_id, medication_name, generic_name, brand_name,
			manufacturer, registry_code, dosage_form, strength, batch_number,
			manufacturing_date, expiry_date, current_stock, minimum_stock, maximum_stock,
			unit_price, cost_price, storage_conditions, category, controlled_schedule, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		item.ID, item.PharmacistID, item.MedicationName, item.GenericName, item.BrandName,
		item.Manufacturer, item.RegistryCode, item.DosageForm, item.Strength, item.BatchNumber,
		item.ManufacturingDate, item.ExpiryDate, item.CurrentStock, item.MinimumStock, item.MaximumStock,
		item.UnitPrice, item.CostPrice, item.StorageConditions, item.Category, item.ControlledSchedule,
		item.Active)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateRegistryCode, item.RegistryCode)
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM medication_inventory WHERE id = $1`, id))
}

func (r *repoPG) GetByRegistryCode(ctx context.Context, code string) (*Item, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM medication_inventory WHERE registry_code = $1`, code))
}

func (r *repoPG) Search(ctx context.Context, filter SearchFilter, limit, offset int) ([]*Item, int, error) {
	where := `WHERE active`
	args := []interface{}{}
	idx := 1

	if filter.Query != "" {
		where += fmt.Sprintf(` AND (medication_name ILIKE $%d OR generic_name ILIKE $%d
			OR brand_name ILIKE $%d OR registry_code ILIKE $%d OR batch_number ILIKE $%d)`,
			idx, idx, idx, idx, idx)
		args = append(args, "%"+filter.Query+"%")
		idx++
	}
	if filter.Category != "" {
		where += fmt.Sprintf(` AND category = $%d`, idx)
		args = append(args, filter.Category)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medication_inventory `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataArgs := append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s FROM medication_inventory %s ORDER BY medication_name ASC LIMIT $%d OFFSET $%d`,
		itemCols, where, idx, idx+1), dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) Restock(ctx context.Context, id uuid.UUID, qty int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication_inventory
		SET current_stock = current_stock + $2, last_restocked = NOW(), updated_at = NOW()
		WHERE id = $1 AND active`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Deduct relies on a single conditional UPDATE so concurrent deductions can
// never drive stock below zero: the row is locked for the duration of the
// statement and the predicate re-checks the balance.
func (r *repoPG) Deduct(ctx context.Context, id uuid.UUID, qty int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication_inventory
		SET current_stock = current_stock - $2, updated_at = NOW()
		WHERE id = $1 AND active AND current_stock >= $2`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM medication_inventory WHERE id = $1 AND active)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return errs.ErrNotFound
	}
	return fmt.Errorf("%w: item %s", errs.ErrInsufficientStock, id)
}

func (r *repoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE medication_inventory SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repoPG) AlertCandidates(ctx context.Context, withinDays int) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+itemCols+` FROM medication_inventory
		WHERE active AND (current_stock <= minimum_stock
			OR expiry_date BETWEEN NOW() AND NOW() + make_interval(days => $1))
		ORDER BY expiry_date ASC`, withinDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
