package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/waterlog/routeledger/internal/model"
)

// ErrTruckNotFound is returned when a truck lookup fails.
var ErrTruckNotFound = errors.New("truck not found")

const truckColumns = `id, plate, nickname, brand, model, year, is_active, created_at, updated_at`

// TruckRepo provides methods to create and retrieve trucks.
type TruckRepo struct {
	db *sql.DB
}

// NewTruckRepo constructs a TruckRepo with the given DB handle.
func NewTruckRepo(db *sql.DB) *TruckRepo { return &TruckRepo{db: db} }

func scanTruck(s scanner) (*model.Truck, error) {
	var t model.Truck
	if err := s.Scan(&t.ID, &t.Plate, &t.Nickname, &t.Brand, &t.Model, &t.Year, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTx inserts a truck.  Plates are stored upper-cased; a plate that is
// already registered yields ErrDuplicate.
func (r *TruckRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Truck) error {
	t.Plate = strings.ToUpper(strings.TrimSpace(t.Plate))
	res, err := tx.ExecContext(ctx,
		`INSERT INTO trucks (plate, nickname, brand, model, year, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Plate, t.Nickname, t.Brand, t.Model, t.Year, t.IsActive, t.CreatedAt, t.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := lastID(res)
	if err != nil {
		return err
	}
	created, err := r.get(ctx, tx, id)
	if err != nil {
		return err
	}
	*t = *created
	return nil
}

// GetByIDTx fetches a truck by id inside a transaction.
func (r *TruckRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Truck, error) {
	return r.get(ctx, tx, id)
}

func (r *TruckRepo) get(ctx context.Context, q queryer, id uint64) (*model.Truck, error) {
	t, err := scanTruck(q.QueryRowContext(ctx, `SELECT `+truckColumns+` FROM trucks WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTruckNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListActive returns the trucks available for dispatch ordered by plate.
func (r *TruckRepo) ListActive(ctx context.Context) ([]model.Truck, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+truckColumns+` FROM trucks WHERE is_active = ? ORDER BY plate`, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Truck{}
	for rows.Next() {
		t, err := scanTruck(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
