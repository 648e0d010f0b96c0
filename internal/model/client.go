package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client is a delivery point that buys bottles on a route.  A client may
// carry a special price; NULL (or zero) means the plant's global bottle
// price applies.  Clients are never deleted, only deactivated.
//
// Fields:
//
//	ID           – primary key identifier.
//	Name         – display name, e.g. "Ingenio La Gloria".
//	Address      – optional delivery address.
//	SpecialPrice – per-client override price (nullable).
//	IsActive     – false once deactivated.
//	CreatedAt    – creation timestamp.
type Client struct {
	ID           uint64              // clients.id
	Name         string              // clients.name
	Address      *string             // clients.address (nullable)
	SpecialPrice decimal.NullDecimal // clients.special_price (nullable)
	IsActive     bool                // clients.is_active
	CreatedAt    time.Time           // clients.created_at
}
