package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/waterlog/routeledger/internal/model"
)

// ErrClientNotFound is returned when a client lookup fails.
var ErrClientNotFound = errors.New("client not found")

const clientColumns = `id, name, address, special_price, is_active, created_at`

// ClientRepo encapsulates all database queries related to clients.
type ClientRepo struct {
	db *sql.DB
}

// NewClientRepo constructs a ClientRepo with the provided DB handle.
func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{db: db} }

func scanClient(s scanner) (*model.Client, error) {
	var c model.Client
	if err := s.Scan(&c.ID, &c.Name, &c.Address, &c.SpecialPrice, &c.IsActive, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateTx inserts a client and reads it back into c.
func (r *ClientRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Client) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO clients (name, address, special_price, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Address, c.SpecialPrice, c.IsActive, c.CreatedAt)
	if err != nil {
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
	*c = *created
	return nil
}

// UpdateTx overwrites name, address and special price.  It returns
// ErrClientNotFound when no row matches.
func (r *ClientRepo) UpdateTx(ctx context.Context, tx *sql.Tx, c *model.Client) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE clients SET name = ?, address = ?, special_price = ? WHERE id = ?`,
		c.Name, c.Address, c.SpecialPrice, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrClientNotFound
	}
	return nil
}

// DeactivateTx marks a client inactive.  Clients are never deleted so that
// historical sales keep their reference.
func (r *ClientRepo) DeactivateTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `UPDATE clients SET is_active = ? WHERE id = ?`, false, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrClientNotFound
	}
	return nil
}

// GetByID fetches a client by id regardless of its active flag.
func (r *ClientRepo) GetByID(ctx context.Context, id uint64) (*model.Client, error) {
	return r.get(ctx, r.db, id)
}

// GetByIDTx is GetByID inside a transaction.
func (r *ClientRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Client, error) {
	return r.get(ctx, tx, id)
}

func (r *ClientRepo) get(ctx context.Context, q queryer, id uint64) (*model.Client, error) {
	c, err := scanClient(q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListActive returns active clients ordered by name.
func (r *ClientRepo) ListActive(ctx context.Context) ([]model.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE is_active = ? ORDER BY name, id`, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SpecialPricesTx returns the special price of every known client in ids,
// active or not.  Ids with no matching row are absent from the map.
func (r *ClientRepo) SpecialPricesTx(ctx context.Context, tx *sql.Tx, ids []uint64) (map[uint64]decimal.NullDecimal, error) {
	out := make(map[uint64]decimal.NullDecimal, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT id, special_price FROM clients WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var price decimal.NullDecimal
		if err := rows.Scan(&id, &price); err != nil {
			return nil, err
		}
		out[id] = price
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
