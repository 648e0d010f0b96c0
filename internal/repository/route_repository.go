package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/waterlog/routeledger/internal/model"
)

// ErrRouteNotFound is returned when a route manifest lookup fails.
var ErrRouteNotFound = errors.New("route not found")

const routeColumns = `id, driver_id, truck_id, route_date, initial_full_bottles, initial_empty_bottles,
	checkout_at, checkout_by, returned_full_bottles, returned_empty_bottles, reported_damaged,
	notes, evidence_verified, checkin_at, checkin_by, audit_status, debt_amount,
	reconcile_strategy, reconcile_delta, reconcile_message, created_at, updated_at`

// RouteRepo persists route manifests.  Manifests are never deleted; the
// check-in snapshot and outcome are written once by CompleteCheckInTx.
type RouteRepo struct {
	db *sql.DB
}

// NewRouteRepo constructs a RouteRepo with the provided DB handle.
func NewRouteRepo(db *sql.DB) *RouteRepo { return &RouteRepo{db: db} }

func scanRoute(s scanner) (*model.RouteManifest, error) {
	var m model.RouteManifest
	var status string
	err := s.Scan(
		&m.ID, &m.DriverID, &m.TruckID, &m.RouteDate, &m.InitialFullBottles, &m.InitialEmptyBottles,
		&m.CheckoutAt, &m.CheckoutBy, &m.ReturnedFull, &m.ReturnedEmpty, &m.ReportedDamaged,
		&m.Notes, &m.EvidenceVerified, &m.CheckinAt, &m.CheckinBy, &status, &m.DebtAmount,
		&m.Strategy, &m.Delta, &m.Message, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if m.AuditStatus, err = model.ParseAuditStatus(status); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateTx inserts a manifest within the scope of an existing transaction
// and reads it back so the caller receives a fully populated record.
func (r *RouteRepo) CreateTx(ctx context.Context, tx *sql.Tx, m *model.RouteManifest) error {
	const q = `INSERT INTO route_manifests
		(driver_id, truck_id, route_date, initial_full_bottles, initial_empty_bottles,
		 checkout_at, checkout_by, evidence_verified, audit_status, debt_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		m.DriverID, m.TruckID, m.RouteDate, m.InitialFullBottles, m.InitialEmptyBottles,
		m.CheckoutAt, m.CheckoutBy, m.EvidenceVerified, string(m.AuditStatus), m.DebtAmount,
		m.CheckoutAt, m.CheckoutAt)
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
	*m = *created
	return nil
}

// GetByID fetches a manifest by id.  It returns ErrRouteNotFound if no row
// is found.
func (r *RouteRepo) GetByID(ctx context.Context, id uint64) (*model.RouteManifest, error) {
	return r.get(ctx, r.db, id)
}

// GetByIDTx is GetByID inside a transaction.
func (r *RouteRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.RouteManifest, error) {
	return r.get(ctx, tx, id)
}

func (r *RouteRepo) get(ctx context.Context, q queryer, id uint64) (*model.RouteManifest, error) {
	m, err := scanRoute(q.QueryRowContext(ctx, `SELECT `+routeColumns+` FROM route_manifests WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}
	return m, nil
}

// CompleteCheckInTx writes the check-in snapshot and reconciliation outcome.
// The update only applies while the stored status still equals from; when
// another request settled the route first no row matches and ErrConflict
// is returned.
func (r *RouteRepo) CompleteCheckInTx(ctx context.Context, tx *sql.Tx, m *model.RouteManifest, from model.AuditStatus) error {
	const q = `UPDATE route_manifests SET
		returned_full_bottles = ?, returned_empty_bottles = ?, reported_damaged = ?,
		notes = ?, evidence_verified = ?, checkin_at = ?, checkin_by = ?,
		audit_status = ?, debt_amount = ?,
		reconcile_strategy = ?, reconcile_delta = ?, reconcile_message = ?,
		updated_at = ?
		WHERE id = ? AND audit_status = ?`
	res, err := tx.ExecContext(ctx, q,
		m.ReturnedFull, m.ReturnedEmpty, m.ReportedDamaged,
		m.Notes, m.EvidenceVerified, m.CheckinAt, m.CheckinBy,
		string(m.AuditStatus), m.DebtAmount,
		m.Strategy, m.Delta, m.Message,
		m.CheckinAt.Time,
		m.ID, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// ListByDate returns the manifests dispatched on the given day ordered by id.
func (r *RouteRepo) ListByDate(ctx context.Context, day time.Time) ([]model.RouteManifest, error) {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+routeColumns+` FROM route_manifests WHERE route_date = ? ORDER BY id`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RouteManifest{}
	for rows.Next() {
		m, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
