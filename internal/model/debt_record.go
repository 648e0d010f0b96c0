package model

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DebtStatus is the resolution state of a debt record.
type DebtStatus string

const (
	DebtPending  DebtStatus = "PENDING"  // awaiting payment
	DebtDeducted DebtStatus = "DEDUCTED" // deducted from payroll
	DebtForgiven DebtStatus = "FORGIVEN" // forgiven by an admin
	DebtDisputed DebtStatus = "DISPUTED" // under review
	DebtPaid     DebtStatus = "PAID"     // paid in cash
)

var debtTransitions = map[DebtStatus][]DebtStatus{
	DebtPending:  {DebtDeducted, DebtForgiven, DebtDisputed, DebtPaid},
	DebtDisputed: {DebtPending, DebtDeducted, DebtForgiven, DebtPaid},
}

// ParseDebtStatus converts a stored or requested value into a DebtStatus.
func ParseDebtStatus(s string) (DebtStatus, error) {
	switch st := DebtStatus(s); st {
	case DebtPending, DebtDeducted, DebtForgiven, DebtDisputed, DebtPaid:
		return st, nil
	}
	return "", fmt.Errorf("unknown debt status %q", s)
}

// CanTransition reports whether a debt may move from s to next.  DEDUCTED,
// FORGIVEN and PAID have no outgoing edges: a settled debt is immutable.
func (s DebtStatus) CanTransition(next DebtStatus) bool {
	for _, to := range debtTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Settled reports whether s is terminal.
func (s DebtStatus) Settled() bool { return len(debtTransitions[s]) == 0 }

// DebtRecord tracks money owed to the plant after an inventory shortfall.
// Its resolution workflow is independent of the route's own status.
type DebtRecord struct {
	ID              uint64          // debt_records.id
	RouteID         uint64          // debt_records.route_id
	Amount          decimal.Decimal // debt_records.amount
	Status          DebtStatus      // debt_records.status
	Notes           sql.NullString  // debt_records.notes
	ResolutionNotes sql.NullString  // debt_records.resolution_notes
	CreatedAt       time.Time       // debt_records.created_at
	ResolvedAt      sql.NullTime    // debt_records.resolved_at
	ResolvedBy      sql.NullInt64   // debt_records.resolved_by
}

// Snapshot returns the audit representation of the record.
func (d *DebtRecord) Snapshot() map[string]any {
	snap := map[string]any{
		"id":       d.ID,
		"route_id": d.RouteID,
		"amount":   d.Amount.StringFixed(2),
		"status":   string(d.Status),
	}
	if d.ResolutionNotes.Valid {
		snap["resolution_notes"] = d.ResolutionNotes.String
	}
	if d.ResolvedBy.Valid {
		snap["resolved_by"] = d.ResolvedBy.Int64
	}
	return snap
}
