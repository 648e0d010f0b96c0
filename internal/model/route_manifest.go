package model

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AuditStatus is the lifecycle state of a route manifest.
type AuditStatus string

const (
	StatusCreated               AuditStatus = "CREATED"
	StatusInProgress            AuditStatus = "IN_PROGRESS"
	StatusPendingReconciliation AuditStatus = "PENDING_RECONCILIATION"
	StatusDebt                  AuditStatus = "DEBT"
	StatusLockedDebt            AuditStatus = "LOCKED_DEBT"
	StatusClosed                AuditStatus = "CLOSED"
)

// routeTransitions lists the allowed moves of the manifest state machine.
// PENDING_RECONCILIATION and DEBT are valid states with no edges; they are
// reserved for a manual review workflow.
var routeTransitions = map[AuditStatus][]AuditStatus{
	StatusCreated:    {StatusInProgress},
	StatusInProgress: {StatusClosed, StatusLockedDebt},
}

// AllAuditStatuses returns every defined status in declaration order.
func AllAuditStatuses() []AuditStatus {
	return []AuditStatus{
		StatusCreated,
		StatusInProgress,
		StatusPendingReconciliation,
		StatusDebt,
		StatusLockedDebt,
		StatusClosed,
	}
}

// ParseAuditStatus converts a stored value into an AuditStatus.
func ParseAuditStatus(s string) (AuditStatus, error) {
	for _, st := range AllAuditStatuses() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown audit status %q", s)
}

// CanTransition reports whether the manifest may move from s to next.
func (s AuditStatus) CanTransition(next AuditStatus) bool {
	for _, to := range routeTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends the primary flow.
func (s AuditStatus) Terminal() bool {
	return s == StatusClosed || s == StatusLockedDebt
}

// RouteManifest is one truck-driver-day dispatch, from checkout to
// settlement.  It corresponds to a row in the `route_manifests` table.
//
// Fields:
//
//	ID                  – primary key identifier.
//	DriverID, TruckID   – driver (a CHOFER user) and truck dispatched.
//	RouteDate           – dispatch date (UTC midnight).
//	InitialFullBottles  – full bottles loaded at checkout.
//	InitialEmptyBottles – always 0 at checkout.
//	CheckoutAt/By       – when and by whom the truck was dispatched.
//	Returned*           – check-in snapshot, NULL until check-in.
//	AuditStatus         – lifecycle state, see routeTransitions.
//	DebtAmount          – outcome of reconciliation, never negative.
//	Strategy, Delta, Message – diagnostics from reconciliation.
type RouteManifest struct {
	ID                  uint64          // route_manifests.id
	DriverID            uint64          // route_manifests.driver_id
	TruckID             uint64          // route_manifests.truck_id
	RouteDate           time.Time       // route_manifests.route_date
	InitialFullBottles  int             // route_manifests.initial_full_bottles
	InitialEmptyBottles int             // route_manifests.initial_empty_bottles
	CheckoutAt          time.Time       // route_manifests.checkout_at
	CheckoutBy          uint64          // route_manifests.checkout_by
	ReturnedFull        sql.NullInt64   // route_manifests.returned_full_bottles
	ReturnedEmpty       sql.NullInt64   // route_manifests.returned_empty_bottles
	ReportedDamaged     sql.NullInt64   // route_manifests.reported_damaged
	Notes               sql.NullString  // route_manifests.notes
	EvidenceVerified    bool            // route_manifests.evidence_verified
	CheckinAt           sql.NullTime    // route_manifests.checkin_at
	CheckinBy           sql.NullInt64   // route_manifests.checkin_by
	AuditStatus         AuditStatus     // route_manifests.audit_status
	DebtAmount          decimal.Decimal // route_manifests.debt_amount
	Strategy            sql.NullString  // route_manifests.reconcile_strategy
	Delta               sql.NullInt64   // route_manifests.reconcile_delta
	Message             sql.NullString  // route_manifests.reconcile_message
	CreatedAt           time.Time       // route_manifests.created_at
	UpdatedAt           time.Time       // route_manifests.updated_at
}

// CheckedIn reports whether the check-in snapshot has been written.
func (r *RouteManifest) CheckedIn() bool { return r.CheckinAt.Valid }

// Snapshot returns the audit representation of the manifest.  It is what
// gets stored as old_value/new_value in the audit log.
func (r *RouteManifest) Snapshot() map[string]any {
	snap := map[string]any{
		"id":                    r.ID,
		"driver_id":             r.DriverID,
		"truck_id":              r.TruckID,
		"route_date":            r.RouteDate.Format("2006-01-02"),
		"initial_full_bottles":  r.InitialFullBottles,
		"initial_empty_bottles": r.InitialEmptyBottles,
		"audit_status":          string(r.AuditStatus),
		"debt_amount":           r.DebtAmount.StringFixed(2),
		"evidence_verified":     r.EvidenceVerified,
	}
	if r.CheckedIn() {
		snap["returned_full_bottles"] = r.ReturnedFull.Int64
		snap["returned_empty_bottles"] = r.ReturnedEmpty.Int64
		snap["reported_damaged"] = r.ReportedDamaged.Int64
		snap["checkin_at"] = r.CheckinAt.Time.UTC().Format(time.RFC3339)
		if r.Notes.Valid {
			snap["notes"] = r.Notes.String
		}
		if r.Strategy.Valid {
			snap["strategy"] = r.Strategy.String
		}
		if r.Delta.Valid {
			snap["delta"] = r.Delta.Int64
		}
	}
	return snap
}
