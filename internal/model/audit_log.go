package model

import (
	"database/sql"
	"time"
)

// Audit actions.
const (
	ActionRouteCheckout     = "ROUTE_CHECKOUT"
	ActionRouteCheckin      = "ROUTE_CHECKIN"
	ActionClientCreated     = "CLIENT_CREATED"
	ActionClientUpdated     = "CLIENT_UPDATED"
	ActionClientDeactivated = "CLIENT_DEACTIVATED"
	ActionTruckCreated      = "TRUCK_CREATED"
	ActionDriverCreated     = "DRIVER_CREATED"
)

// DebtAction returns the audit action recorded when a debt moves to status.
func DebtAction(status DebtStatus) string { return "DEBT_" + string(status) }

// Entity types referenced by audit entries.
const (
	EntityRoute  = "RouteManifest"
	EntityDebt   = "DebtRecord"
	EntityClient = "Client"
	EntityTruck  = "Truck"
	EntityUser   = "User"
)

// AuditLog is an immutable record of a sensitive action.  Rows are only
// ever inserted.  OldValue and NewValue hold JSON snapshots.
type AuditLog struct {
	ID         uint64         // audit_logs.id
	OccurredAt time.Time      // audit_logs.occurred_at
	ActorID    uint64         // audit_logs.actor_id
	Action     string         // audit_logs.action
	EntityType string         // audit_logs.entity_type
	EntityID   uint64         // audit_logs.entity_id
	OldValue   sql.NullString // audit_logs.old_value (JSON)
	NewValue   sql.NullString // audit_logs.new_value (JSON)
	IPAddress  sql.NullString // audit_logs.ip_address
	UserAgent  sql.NullString // audit_logs.user_agent
	Notes      sql.NullString // audit_logs.notes
}
