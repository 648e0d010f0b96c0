package repository

import (
	"context"
	"database/sql"

	"github.com/waterlog/routeledger/internal/model"
)

// SalesRepo stores the per-client sales lines of a route.  A route's lines
// are always replaced as a set.
type SalesRepo struct {
	db *sql.DB
}

// NewSalesRepo returns a new SalesRepo bound to the given database.
func NewSalesRepo(db *sql.DB) *SalesRepo { return &SalesRepo{db: db} }

// ReplaceForRouteTx deletes every existing line of the route and inserts
// lines in a single statement.  The RouteID of each line is overwritten
// with routeID.  Passing an empty slice just clears the route.
func (r *SalesRepo) ReplaceForRouteTx(ctx context.Context, tx *sql.Tx, routeID uint64, lines []model.SalesDetail) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sales_details WHERE route_id = ?`, routeID); err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	query := `INSERT INTO sales_details (route_id, client_id, quantity, unit_price, subtotal) VALUES `
	args := make([]any, 0, len(lines)*5)
	for i, l := range lines {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, routeID, l.ClientID, l.Quantity, l.UnitPrice, l.Subtotal)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ListByRoute returns the sales lines of a route ordered by id.
func (r *SalesRepo) ListByRoute(ctx context.Context, routeID uint64) ([]model.SalesDetail, error) {
	return r.list(ctx, r.db, routeID)
}

func (r *SalesRepo) list(ctx context.Context, q queryer, routeID uint64) ([]model.SalesDetail, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, route_id, client_id, quantity, unit_price, subtotal
		 FROM sales_details WHERE route_id = ? ORDER BY id`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.SalesDetail{}
	for rows.Next() {
		var d model.SalesDetail
		if err := rows.Scan(&d.ID, &d.RouteID, &d.ClientID, &d.Quantity, &d.UnitPrice, &d.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
