package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"pharmstock/internal/types"
)

// MedicineRepository provides data access for the medicines table.
type MedicineRepository struct {
	db DBTX
}

// NewMedicineRepository creates a MedicineRepository backed by the given
// database connection (pool or transaction).
func NewMedicineRepository(db DBTX) *MedicineRepository {
	return &MedicineRepository{db: db}
}

const medicineColumns = `id, name, category, price, dosage, manufacturer,
	quantity, stock_quantity, expiry_date, created_at, updated_at`

// List returns all medicines ordered by name.
func (r *MedicineRepository) List(ctx context.Context) ([]*types.Medicine, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+medicineColumns+` FROM medicines ORDER BY name`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list medicines", err)
	}
	defer rows.Close()

	var medicines []*types.Medicine
	for rows.Next() {
		m, scanErr := scanMedicine(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan medicine row", scanErr)
		}
		medicines = append(medicines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating medicine rows", err)
	}
	return medicines, nil
}

// GetByID returns a single medicine or a not-found error.
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*types.Medicine, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+medicineColumns+` FROM medicines WHERE id = $1`, id)
	m, err := scanMedicine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundMedicine, "medicine not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get medicine", err)
	}
	return m, nil
}

// Create inserts a new medicine. The caller sets the ID and timestamps are
// assigned by the database.
func (r *MedicineRepository) Create(ctx context.Context, m *types.Medicine) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO medicines
		 (id, name, category, price, dosage, manufacturer, quantity, stock_quantity, expiry_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		m.ID, m.Name, m.Category, m.Price, m.Dosage, m.Manufacturer,
		m.Quantity, m.StockQuantity, m.ExpiryDate,
	)
	if err := row.Scan(&m.CreatedAt, &m.UpdatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create medicine", err)
	}
	return nil
}

// Update replaces all mutable fields of a medicine.
func (r *MedicineRepository) Update(ctx context.Context, m *types.Medicine) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE medicines SET
			name = $1, category = $2, price = $3, dosage = $4,
			manufacturer = $5, quantity = $6, stock_quantity = $7,
			expiry_date = $8, updated_at = NOW()
		 WHERE id = $9`,
		m.Name, m.Category, m.Price, m.Dosage, m.Manufacturer,
		m.Quantity, m.StockQuantity, m.ExpiryDate, m.ID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update medicine", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundMedicine, "medicine not found", nil)
	}
	return nil
}

// Delete removes a medicine by id.
func (r *MedicineRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete medicine", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundMedicine, "medicine not found", nil)
	}
	return nil
}

// scanMedicine scans a medicines row from either pgx.Row or pgx.Rows.
func scanMedicine(row pgx.Row) (*types.Medicine, error) {
	var (
		m          types.Medicine
		expiryDate *time.Time
	)
	err := row.Scan(
		&m.ID, &m.Name, &m.Category, &m.Price, &m.Dosage, &m.Manufacturer,
		&m.Quantity, &m.StockQuantity, &expiryDate, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.ExpiryDate = expiryDate
	return &m, nil
}
