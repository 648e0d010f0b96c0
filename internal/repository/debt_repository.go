package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/waterlog/routeledger/internal/model"
)

// ErrDebtNotFound is returned when a debt record lookup fails.
var ErrDebtNotFound = errors.New("debt record not found")

const debtColumns = `id, route_id, amount, status, notes, resolution_notes, created_at, resolved_at, resolved_by`

// DebtRepo persists debt records raised by route settlement.
type DebtRepo struct {
	db *sql.DB
}

// NewDebtRepo returns a new DebtRepo bound to the given database.
func NewDebtRepo(db *sql.DB) *DebtRepo { return &DebtRepo{db: db} }

func scanDebt(s scanner) (*model.DebtRecord, error) {
	var d model.DebtRecord
	var status string
	if err := s.Scan(&d.ID, &d.RouteID, &d.Amount, &status, &d.Notes, &d.ResolutionNotes, &d.CreatedAt, &d.ResolvedAt, &d.ResolvedBy); err != nil {
		return nil, err
	}
	st, err := model.ParseDebtStatus(status)
	if err != nil {
		return nil, err
	}
	d.Status = st
	return &d, nil
}

// CreateTx inserts a debt record within the caller's transaction.
func (r *DebtRepo) CreateTx(ctx context.Context, tx *sql.Tx, d *model.DebtRecord) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO debt_records (route_id, amount, status, notes, created_at) VALUES (?, ?, ?, ?, ?)`,
		d.RouteID, d.Amount, string(d.Status), d.Notes, d.CreatedAt)
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
	*d = *created
	return nil
}

// GetByIDTx fetches a debt record inside a transaction.
func (r *DebtRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.DebtRecord, error) {
	return r.get(ctx, tx, id)
}

func (r *DebtRepo) get(ctx context.Context, q queryer, id uint64) (*model.DebtRecord, error) {
	d, err := scanDebt(q.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM debt_records WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDebtNotFound
		}
		return nil, err
	}
	return d, nil
}

// ResolveTx moves a debt from one status to another and writes who resolved
// it and when; both are NULL while the debt is still open.  The update is
// conditional on the current status; if the record changed concurrently
// ErrConflict is returned.
func (r *DebtRepo) ResolveTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.DebtStatus, notes sql.NullString, by sql.NullInt64, at sql.NullTime) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE debt_records SET status = ?, resolution_notes = ?, resolved_at = ?, resolved_by = ?
		 WHERE id = ? AND status = ?`,
		string(to), notes, at, by, id, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// ListByStatus returns debts with the given status, newest first.  An empty
// status lists every record.
func (r *DebtRepo) ListByStatus(ctx context.Context, status model.DebtStatus) ([]model.DebtRecord, error) {
	if status == "" {
		return r.list(ctx, `SELECT `+debtColumns+` FROM debt_records ORDER BY id DESC`)
	}
	return r.list(ctx, `SELECT `+debtColumns+` FROM debt_records WHERE status = ? ORDER BY id DESC`, string(status))
}

// ListByRoute returns the debts raised for a route ordered by id.
func (r *DebtRepo) ListByRoute(ctx context.Context, routeID uint64) ([]model.DebtRecord, error) {
	return r.list(ctx, `SELECT `+debtColumns+` FROM debt_records WHERE route_id = ? ORDER BY id`, routeID)
}

func (r *DebtRepo) list(ctx context.Context, q string, args ...any) ([]model.DebtRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.DebtRecord{}
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
